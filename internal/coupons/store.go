package coupons

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("coupon not found")

// Conf reads admin-owned coupon definitions. The core never writes them;
// redemption bookkeeping lives with the order store.
type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// GetByCode looks a coupon up case-insensitively.
func (c *Conf) GetByCode(ctx context.Context, code string) (Definition, error) {
	query := `
		SELECT code, kind, value, min_order_amount, max_discount_amount,
		       global_usage_limit, per_user_usage_limit, valid_from, valid_until,
		       applicable_categories, excluded_categories,
		       applicable_product_refs, excluded_product_refs,
		       customer_segment, first_time_only, min_quantity, max_quantity, is_active
		FROM coupons
		WHERE UPPER(code) = UPPER($1)
	`

	var def Definition
	var appCats, exclCats, appRefs, exclRefs []byte
	err := c.db.QueryRowContext(ctx, query, code).Scan(
		&def.Code, &def.Kind, &def.Value, &def.MinOrderAmount, &def.MaxDiscountAmount,
		&def.GlobalUsageLimit, &def.PerUserUsageLimit, &def.ValidFrom, &def.ValidUntil,
		&appCats, &exclCats, &appRefs, &exclRefs,
		&def.Segment, &def.FirstTimeOnly, &def.MinQuantity, &def.MaxQuantity, &def.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Definition{}, ErrNotFound
		}
		return Definition{}, fmt.Errorf("failed to query coupon %q: %w", code, err)
	}

	for _, col := range []struct {
		raw []byte
		out *[]string
	}{
		{appCats, &def.ApplicableCategories},
		{exclCats, &def.ExcludedCategories},
		{appRefs, &def.ApplicableProductRefs},
		{exclRefs, &def.ExcludedProductRefs},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.out); err != nil {
			return Definition{}, fmt.Errorf("failed to decode coupon list column: %w", err)
		}
	}

	return def, nil
}
