package postgres

import (
	stderrors "errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/kamranshah125/turum/pkg/errors"
)

// uniqueViolation is the SQLSTATE postgres reports for a duplicate key
const uniqueViolation pq.ErrorCode = "23505"

// mapUniqueViolation turns a duplicate key error into ErrConflict and passes anything else through
func mapUniqueViolation(err error, resource, id string) error {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return &errors.ErrConflict{Message: fmt.Sprintf("%s %s conflicts with an existing row (%s)", resource, id, pqErr.Constraint)}
	}
	return err
}
