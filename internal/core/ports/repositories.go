package ports

import (
	"context"

	"github.com/samirrijal/huarazguide/internal/core/domain"
)

// BusinessRepository persists directory listings.
type BusinessRepository interface {
	// Create inserts a new business and fails with ErrConflict when the id is taken.
	Create(ctx context.Context, b *domain.Business) error
	Upsert(ctx context.Context, b *domain.Business) error
	UpsertBatch(ctx context.Context, bs []domain.Business) error
	GetByID(ctx context.Context, id string) (*domain.Business, error)
	// List returns one page of matching businesses, sponsored first then by
	// name, along with the total number of matches.
	List(ctx context.Context, filter domain.BusinessFilter, limit, offset int) ([]domain.Business, int, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status) error
	UpdateSponsorship(ctx context.Context, sp *domain.Sponsorship) error
	UpdateLocation(ctx context.Context, id string, loc domain.GeoPoint) error
}

// CouponRepository persists coupons.
type CouponRepository interface {
	Create(ctx context.Context, c *domain.Coupon) error
	UpsertBatch(ctx context.Context, cs []domain.Coupon) error
	List(ctx context.Context) ([]domain.Coupon, error)
	ListByBusiness(ctx context.Context, businessID string) ([]domain.Coupon, error)
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
}
