package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/huarazguide/internal/core/domain"
)

// CouponRepo implements ports.CouponRepository.
type CouponRepo struct {
	db *DB
}

func NewCouponRepo(db *DB) *CouponRepo {
	return &CouponRepo{db: db}
}

const upsertCoupon = `
	INSERT INTO coupons (id, business_id, title, description, code, expiry_date)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE
	SET business_id = EXCLUDED.business_id, title = EXCLUDED.title,
	    description = EXCLUDED.description, code = EXCLUDED.code, expiry_date = EXCLUDED.expiry_date`

func (r *CouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO coupons (id, business_id, title, description, code, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.BusinessID, c.Title, c.Description, c.Code, c.ExpiryDate)
	return err
}

func (r *CouponRepo) UpsertBatch(ctx context.Context, cs []domain.Coupon) error {
	batch := &pgx.Batch{}
	for _, c := range cs {
		batch.Queue(upsertCoupon, c.ID, c.BusinessID, c.Title, c.Description, c.Code, c.ExpiryDate)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range cs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

func (r *CouponRepo) query(ctx context.Context, sql string, args ...any) ([]domain.Coupon, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Coupon
	for rows.Next() {
		var c domain.Coupon
		if err := rows.Scan(&c.ID, &c.BusinessID, &c.Title, &c.Description, &c.Code, &c.ExpiryDate); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CouponRepo) List(ctx context.Context) ([]domain.Coupon, error) {
	return r.query(ctx, `
		SELECT id, business_id, title, description, code, expiry_date
		FROM coupons ORDER BY expiry_date, id
	`)
}

func (r *CouponRepo) ListByBusiness(ctx context.Context, businessID string) ([]domain.Coupon, error) {
	return r.query(ctx, `
		SELECT id, business_id, title, description, code, expiry_date
		FROM coupons WHERE business_id = $1 ORDER BY expiry_date, id
	`, businessID)
}

func (r *CouponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, business_id, title, description, code, expiry_date
		FROM coupons WHERE code = $1
	`, code).Scan(&c.ID, &c.BusinessID, &c.Title, &c.Description, &c.Code, &c.ExpiryDate)
	if err != nil {
		return nil, notFound(err, "coupon "+code)
	}
	return &c, nil
}
