package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Harry808275/evertrust23-sub000/internal/intent"

	"github.com/google/uuid"
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

// Materialize durably converts a completed intent into an order. The
// whole write is one transaction keyed on the orders.intent_id unique
// constraint: concurrent duplicate deliveries race on the insert itself,
// not on a check-then-act, so at most one wins. The loser sees zero rows
// and reports created=false, which the webhook handler acknowledges as
// success.
//
// Inventory decrements and coupon bookkeeping ride in the same
// transaction. The decrement rows are guarded by their own
// (intent_id, product_id) key so a partial retry cannot double-decrement,
// and the coupon used_count bump is a single atomic UPDATE.
func (c *Conf) Materialize(ctx context.Context, in intent.Intent) (string, bool, error) {
	orderID := uuid.NewString()
	created := false

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		queryInsertOrder := `
			INSERT INTO orders (id, intent_id, user_id, total_price, status, coupon_code, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			ON CONFLICT (intent_id) DO NOTHING
			RETURNING id
		`
		err := tx.QueryRowContext(ctx, queryInsertOrder,
			orderID, in.IntentID, in.UserRef, in.Total, StatusPending, nullable(in.CouponCode),
		).Scan(&orderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Another delivery of this intent already materialized it;
				// surface the existing order so the caller can still ack.
				queryExisting := `SELECT id FROM orders WHERE intent_id = $1`
				if err := tx.QueryRowContext(ctx, queryExisting, in.IntentID).Scan(&orderID); err != nil {
					return fmt.Errorf("failed to load existing order: %w", err)
				}
				return nil
			}
			return fmt.Errorf("failed to insert order: %w", err)
		}

		queryInsertItem := `
			INSERT INTO order_items (order_id, product_id, name, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5)
		`
		queryInsertDecrement := `
			INSERT INTO inventory_decrements (intent_id, product_id, quantity, created_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (intent_id, product_id) DO NOTHING
		`
		for _, item := range in.Items {
			if _, err := tx.ExecContext(ctx, queryInsertItem,
				orderID, item.ProductRef, item.Name, item.UnitPrice, item.Quantity); err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
			if _, err := tx.ExecContext(ctx, queryInsertDecrement,
				in.IntentID, item.ProductRef, item.Quantity); err != nil {
				return fmt.Errorf("failed to record inventory decrement: %w", err)
			}
		}

		if in.CouponCode != "" {
			queryRedemption := `
				INSERT INTO coupon_redemptions (intent_id, coupon_code, user_id, created_at)
				VALUES ($1, UPPER($2), $3, NOW())
				ON CONFLICT (intent_id) DO NOTHING
			`
			if _, err := tx.ExecContext(ctx, queryRedemption, in.IntentID, in.CouponCode, in.UserRef); err != nil {
				return fmt.Errorf("failed to record coupon redemption: %w", err)
			}
			queryBumpUsage := `
				UPDATE coupons SET used_count = used_count + 1 WHERE UPPER(code) = UPPER($1)
			`
			if _, err := tx.ExecContext(ctx, queryBumpUsage, in.CouponCode); err != nil {
				return fmt.Errorf("failed to bump coupon usage: %w", err)
			}
		}

		created = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return orderID, created, nil
}

// CountCouponUsage returns how many times a coupon has been redeemed
// overall and by one user. The evaluator treats these as a read-only,
// possibly stale snapshot.
func (c *Conf) CountCouponUsage(ctx context.Context, code string, userID string) (int, int, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE user_id = $2)
		FROM coupon_redemptions
		WHERE coupon_code = UPPER($1)
	`
	var global, user int
	if err := c.db.QueryRowContext(ctx, query, code, userID).Scan(&global, &user); err != nil {
		return 0, 0, fmt.Errorf("failed to count coupon usage: %w", err)
	}
	return global, user, nil
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if er := tx.Rollback(); er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
