package workflows

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/huarazguide/internal/pkg/metrics"
)

// SponsorshipExpirer downgrades a business whose sponsorship ended.
type SponsorshipExpirer interface {
	Expire(ctx context.Context, businessID string, end time.Time) (bool, error)
}

// SponsorshipActivities holds the activity implementations for the sponsorship workflow.
type SponsorshipActivities struct {
	Sponsorships SponsorshipExpirer
}

// ExpireSponsorship removes the ad level if the sponsorship still ends at end.
func (a *SponsorshipActivities) ExpireSponsorship(ctx context.Context, businessID string, end time.Time) (bool, error) {
	expired, err := a.Sponsorships.Expire(ctx, businessID, end)
	if err != nil {
		return false, fmt.Errorf("expire sponsorship %s: %w", businessID, err)
	}
	if !expired {
		slog.InfoContext(ctx, "sponsorship renewed or already cleared", "business_id", businessID)
		return false, nil
	}
	metrics.SponsorshipsExpired.Inc()
	slog.InfoContext(ctx, "sponsorship expired", "business_id", businessID, "end", end)
	return true, nil
}
