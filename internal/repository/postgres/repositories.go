package postgres

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/repository"
)

// NewRepositories creates a new set of repositories
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		IntegrationOrder: NewIntegrationOrderRepository(db, logger),
		VariantMap:       NewVariantMapRepository(db, logger),
	}
}
