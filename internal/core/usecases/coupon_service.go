package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/ports"
)

const (
	defaultQRSize = 256
	maxQRSize     = 1024
)

// CouponService handles coupon-related business logic.
type CouponService struct {
	coupons    ports.CouponRepository
	businesses ports.BusinessRepository
	qr         ports.QREncoder
	now        func() time.Time
}

// NewCouponService creates a new CouponService.
func NewCouponService(coupons ports.CouponRepository, businesses ports.BusinessRepository, qr ports.QREncoder) *CouponService {
	return &CouponService{coupons: coupons, businesses: businesses, qr: qr, now: time.Now}
}

// List returns coupons that have not expired.
func (s *CouponService) List(ctx context.Context) ([]domain.Coupon, error) {
	all, err := s.coupons.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.active(all), nil
}

// ListByBusiness returns a business's coupons that have not expired.
func (s *CouponService) ListByBusiness(ctx context.Context, businessID string) ([]domain.Coupon, error) {
	cs, err := s.coupons.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return s.active(cs), nil
}

func (s *CouponService) active(cs []domain.Coupon) []domain.Coupon {
	now := s.now()
	out := make([]domain.Coupon, 0, len(cs))
	for i := range cs {
		if !cs[i].Expired(now) {
			out = append(out, cs[i])
		}
	}
	return out
}

// GetByCode returns a coupon by its redemption code.
func (s *CouponService) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%w: coupon code must not be empty", domain.ErrInvalidArgument)
	}
	return s.coupons.GetByCode(ctx, code)
}

// Create adds a coupon for an existing business.
func (s *CouponService) Create(ctx context.Context, c *domain.Coupon) error {
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	if c.ID == "" || c.Code == "" || strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: id, code and title are required", domain.ErrInvalidArgument)
	}
	if _, err := s.businesses.GetByID(ctx, c.BusinessID); err != nil {
		return fmt.Errorf("coupon business %s: %w", c.BusinessID, err)
	}
	return s.coupons.Create(ctx, c)
}

// Import upserts coupons as given, used by the data ingestor.
func (s *CouponService) Import(ctx context.Context, cs []domain.Coupon) error {
	for i := range cs {
		cs[i].Code = strings.ToUpper(strings.TrimSpace(cs[i].Code))
		if cs[i].ID == "" || cs[i].Code == "" {
			return fmt.Errorf("%w: coupon %d lacks id or code", domain.ErrInvalidArgument, i)
		}
	}
	return s.coupons.UpsertBatch(ctx, cs)
}

// QRCode renders the coupon's code as a PNG of size pixels.
func (s *CouponService) QRCode(ctx context.Context, code string, size int) ([]byte, error) {
	if s.qr == nil {
		return nil, fmt.Errorf("%w: qr encoder not configured", domain.ErrUnavailable)
	}
	c, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = defaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}
	png, err := s.qr.PNG(c.Code, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
