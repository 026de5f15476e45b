package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/ports"
)

// SponsorshipService manages paid placement of listings.
type SponsorshipService struct {
	businesses ports.BusinessRepository
	cache      ports.CacheService
	publisher  ports.EventPublisher
	scheduler  ports.SponsorshipScheduler
	now        func() time.Time
}

// NewSponsorshipService creates a new SponsorshipService. scheduler may be
// nil, in which case end dates are stored but never enforced.
func NewSponsorshipService(
	businesses ports.BusinessRepository,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	scheduler ports.SponsorshipScheduler,
) *SponsorshipService {
	return &SponsorshipService{
		businesses: businesses,
		cache:      cache,
		publisher:  publisher,
		scheduler:  scheduler,
		now:        time.Now,
	}
}

// Set applies sp and schedules its expiry when it has an end date.
func (s *SponsorshipService) Set(ctx context.Context, sp *domain.Sponsorship) error {
	if !sp.Level.Valid() {
		return fmt.Errorf("%w: unknown ad level %q", domain.ErrInvalidArgument, sp.Level)
	}
	if sp.Level == domain.AdLevelNone {
		sp.StartDate, sp.EndDate = nil, nil
	}
	if sp.StartDate != nil && sp.EndDate != nil && sp.EndDate.Before(*sp.StartDate) {
		return fmt.Errorf("%w: end date before start date", domain.ErrInvalidArgument)
	}
	if sp.EndDate != nil && !sp.EndDate.After(s.now()) {
		return fmt.Errorf("%w: end date already passed", domain.ErrInvalidArgument)
	}

	if err := s.businesses.UpdateSponsorship(ctx, sp); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "businesses:id:"+sp.BusinessID)
	}
	if s.publisher != nil {
		_ = s.publisher.PublishSponsorshipChanged(ctx, sp)
	}

	if sp.EndDate != nil && s.scheduler != nil {
		if err := s.scheduler.ScheduleExpiry(ctx, sp.BusinessID, *sp.EndDate); err != nil {
			return fmt.Errorf("schedule expiry: %w", err)
		}
	}
	return nil
}

// Expire downgrades a listing to no ad level if its sponsorship still ends
// at end. A renewed sponsorship (different end date) is left alone, and the
// returned bool is false.
func (s *SponsorshipService) Expire(ctx context.Context, businessID string, end time.Time) (bool, error) {
	b, err := s.businesses.GetByID(ctx, businessID)
	if err != nil {
		return false, err
	}
	if b.AdLevel == domain.AdLevelNone || b.AdEndDate == nil || !b.AdEndDate.Equal(end) {
		return false, nil
	}

	sp := &domain.Sponsorship{BusinessID: businessID, Level: domain.AdLevelNone}
	if err := s.businesses.UpdateSponsorship(ctx, sp); err != nil {
		return false, err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "businesses:id:"+businessID)
	}
	if s.publisher != nil {
		_ = s.publisher.PublishSponsorshipChanged(ctx, sp)
	}
	return true, nil
}
