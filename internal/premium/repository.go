// AngelaMos | 2026
// repository.go

package premium

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/recipes-api/internal/core"
)

type Repository interface {
	Create(ctx context.Context, pkg *Package) error
	ListActive(ctx context.Context) ([]Package, error)
	FindIDByProductID(ctx context.Context, productID string) (*string, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, pkg *Package) error {
	now := time.Now().UTC()
	pkg.CreatedAt = now
	pkg.UpdatedAt = now

	var productID sql.NullString
	if pkg.StoreProductID != nil {
		productID = sql.NullString{String: *pkg.StoreProductID, Valid: true}
	}

	query := r.db.Rebind(`
		INSERT INTO premium_packages (id, name, store_product_id,
		                              price_monthly, price_yearly, trial_days,
		                              description, is_active, created_at,
		                              updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		pkg.ID,
		pkg.Name,
		productID,
		pkg.PriceMonthly,
		pkg.PriceYearly,
		pkg.TrialDays,
		pkg.Description,
		pkg.IsActive,
		pkg.CreatedAt,
		pkg.UpdatedAt,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create package: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create package: %w", err)
	}

	return nil
}

func (r *repository) ListActive(ctx context.Context) ([]Package, error) {
	query := r.db.Rebind(`
		SELECT id, name, store_product_id, price_monthly, price_yearly,
		       trial_days, description, is_active, created_at, updated_at
		FROM premium_packages
		WHERE is_active = ?
		ORDER BY price_monthly, name`)

	pkgs := []Package{}
	if err := r.db.SelectContext(ctx, &pkgs, query, true); err != nil {
		return nil, fmt.Errorf("list active packages: %w", err)
	}

	return pkgs, nil
}

func (r *repository) FindIDByProductID(
	ctx context.Context,
	productID string,
) (*string, error) {
	query := r.db.Rebind(`
		SELECT id FROM premium_packages WHERE store_product_id = ?`)

	var id string
	err := r.db.GetContext(ctx, &id, query, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find package by product: %w", err)
	}

	return &id, nil
}

func (r *repository) Exists(ctx context.Context, id string) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM premium_packages WHERE id = ?`)

	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return false, fmt.Errorf("package exists: %w", err)
	}

	return count > 0, nil
}
