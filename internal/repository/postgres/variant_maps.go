package postgres

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/kamranshah125/turum/internal/domain"
	"github.com/kamranshah125/turum/pkg/errors"
)

type variantMapRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVariantMapRepository creates a new variant map repository
func NewVariantMapRepository(db *sql.DB, logger *zap.Logger) *variantMapRepository {
	return &variantMapRepository{
		db:     db,
		logger: logger,
	}
}

func scanVariantMap(row rowScanner) (*domain.VariantMap, error) {
	var m domain.VariantMap
	var supplierSKU sql.NullString
	err := row.Scan(
		&m.ID,
		&m.ShopifySKU,
		&m.ShopifySize,
		&m.SupplierVariantID,
		&supplierSKU,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.SupplierSKU = nullStringPtr(supplierSKU)
	return &m, nil
}

func (r *variantMapRepository) GetBySKUAndSize(ctx context.Context, sku, size string) (*domain.VariantMap, error) {
	query := `
		SELECT id, shopify_sku, shopify_size, supplier_variant_id, supplier_sku, created_at, updated_at
		FROM variant_maps
		WHERE shopify_sku = $1 AND shopify_size = $2
	`

	m, err := scanVariantMap(r.db.QueryRowContext(ctx, query, sku, size))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "variant_map", ID: sku + "/" + size}
	}
	if err != nil {
		r.logger.Error("Failed to get variant map", zap.String("sku", sku), zap.Error(err))
		return nil, err
	}
	return m, nil
}

func (r *variantMapRepository) ListBySKU(ctx context.Context, sku string) ([]*domain.VariantMap, error) {
	query := `
		SELECT id, shopify_sku, shopify_size, supplier_variant_id, supplier_sku, created_at, updated_at
		FROM variant_maps
		WHERE shopify_sku = $1
		ORDER BY shopify_size
	`

	rows, err := r.db.QueryContext(ctx, query, sku)
	if err != nil {
		r.logger.Error("Failed to list variant maps", zap.String("sku", sku), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var maps []*domain.VariantMap
	for rows.Next() {
		m, err := scanVariantMap(rows)
		if err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, rows.Err()
}

func (r *variantMapRepository) Upsert(ctx context.Context, m *domain.VariantMap) error {
	query := `
		INSERT INTO variant_maps (shopify_sku, shopify_size, supplier_variant_id, supplier_sku, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (shopify_sku, shopify_size) DO UPDATE SET
			supplier_variant_id = EXCLUDED.supplier_variant_id,
			supplier_sku = EXCLUDED.supplier_sku,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, m.ShopifySKU, m.ShopifySize, m.SupplierVariantID, m.SupplierSKU).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert variant map", zap.String("sku", m.ShopifySKU), zap.Error(err))
		return mapUniqueViolation(err, "variant_map", m.ShopifySKU+"/"+m.ShopifySize)
	}
	return nil
}
