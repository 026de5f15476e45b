package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/ports"
	"github.com/samirrijal/huarazguide/internal/pkg/geospatial"
)

var tracer = otel.Tracer("github.com/samirrijal/huarazguide/internal/core/usecases")

const (
	defaultPageSize = 20
	maxPageSize     = 100

	defaultNearbyRadius = 1000.0
	maxNearbyRadius     = 20000.0
)

// BusinessService handles directory listings.
type BusinessService struct {
	businesses ports.BusinessRepository
	cache      ports.CacheService
	publisher  ports.EventPublisher
	bounds     domain.GeoBounds
	now        func() time.Time
}

// NewBusinessService creates a new BusinessService. Locations outside bounds
// are rejected on update. cache and publisher may be nil.
func NewBusinessService(businesses ports.BusinessRepository, cache ports.CacheService, publisher ports.EventPublisher, bounds domain.GeoBounds) *BusinessService {
	return &BusinessService{
		businesses: businesses,
		cache:      cache,
		publisher:  publisher,
		bounds:     bounds,
		now:        time.Now,
	}
}

// Bounds returns the map rectangle locations must fall within.
func (s *BusinessService) Bounds() domain.GeoBounds { return s.bounds }

// List returns one page of approved businesses matching filter.
func (s *BusinessService) List(ctx context.Context, filter domain.BusinessFilter, limit, offset int) ([]domain.Business, int, error) {
	filter.Status = domain.StatusApproved
	return s.list(ctx, filter, limit, offset)
}

// ListAdmin returns businesses in any status (or the one filter names).
func (s *BusinessService) ListAdmin(ctx context.Context, filter domain.BusinessFilter, limit, offset int) ([]domain.Business, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, filter.Status)
	}
	return s.list(ctx, filter, limit, offset)
}

type businessPage struct {
	Items []domain.Business `json:"items"`
	Total int               `json:"total"`
}

func (s *BusinessService) list(ctx context.Context, filter domain.BusinessFilter, limit, offset int) ([]domain.Business, int, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidArgument, filter.Category)
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	filter.Query = strings.TrimSpace(filter.Query)

	cacheKey := fmt.Sprintf("businesses:list:%s:%s:%s:%d:%d", filter.Status, filter.Category, strings.ToLower(filter.Query), limit, offset)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var page businessPage
			if err := json.Unmarshal(data, &page); err == nil {
				return page.Items, page.Total, nil
			}
		}
	}

	items, total, err := s.businesses.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	// Short TTL: mutations only evict the per-id key.
	if s.cache != nil {
		if data, err := json.Marshal(businessPage{Items: items, Total: total}); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 60)
		}
	}
	return items, total, nil
}

// AllApproved returns every approved business in directory order.
func (s *BusinessService) AllApproved(ctx context.Context) ([]domain.Business, error) {
	var out []domain.Business
	for {
		page, total, err := s.businesses.List(ctx, domain.BusinessFilter{Status: domain.StatusApproved}, maxPageSize, len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) == 0 || len(out) >= total {
			break
		}
	}
	SortDirectory(out)
	return out, nil
}

// Sponsored returns approved businesses with an active ad level.
func (s *BusinessService) Sponsored(ctx context.Context) ([]domain.Business, error) {
	all, err := s.AllApproved(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Business, 0, len(all))
	for i := range all {
		if all[i].Sponsored() {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// NearbyBusiness is a directory entry with its distance from the query point.
type NearbyBusiness struct {
	domain.Business
	DistanceMeters float64 `json:"distance_meters"`
}

// Nearby returns approved businesses within radius meters of p, closest first.
func (s *BusinessService) Nearby(ctx context.Context, p domain.GeoPoint, radius float64, limit int) ([]NearbyBusiness, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: invalid coordinates", domain.ErrInvalidArgument)
	}
	if radius <= 0 || radius > maxNearbyRadius {
		radius = defaultNearbyRadius
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	all, err := s.AllApproved(ctx)
	if err != nil {
		return nil, err
	}
	box := geospatial.BoundingBox(p.Lat, p.Lng, radius)
	out := make([]NearbyBusiness, 0, limit)
	for i := range all {
		loc := all[i].Location
		if !box.Contains(loc.Lat, loc.Lng) {
			continue
		}
		d := geospatial.Haversine(p.Lat, p.Lng, loc.Lat, loc.Lng)
		if d <= radius {
			out = append(out, NearbyBusiness{Business: all[i], DistanceMeters: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetByID returns a single business.
func (s *BusinessService) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	cacheKey := "businesses:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var b domain.Business
			if err := json.Unmarshal(data, &b); err == nil {
				return &b, nil
			}
		}
	}

	b, err := s.businesses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(b); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}
	return b, nil
}

// Submit registers a new listing awaiting moderation. The id is always
// assigned here; a client-chosen id is discarded.
func (s *BusinessService) Submit(ctx context.Context, b *domain.Business) error {
	b.ID = uuid.NewString()
	if err := s.validate(b); err != nil {
		return err
	}
	now := s.now()
	b.Status = domain.StatusPending
	b.AdLevel = domain.AdLevelNone
	b.AdStartDate, b.AdEndDate = nil, nil
	b.CreatedAt, b.UpdatedAt = now, now
	return s.businesses.Create(ctx, b)
}

// Import upserts listings as given, used by the data ingestor.
func (s *BusinessService) Import(ctx context.Context, bs []domain.Business) error {
	now := s.now()
	for i := range bs {
		if err := s.validate(&bs[i]); err != nil {
			return fmt.Errorf("business %s: %w", bs[i].ID, err)
		}
		if bs[i].Status == "" {
			bs[i].Status = domain.StatusApproved
		}
		if bs[i].AdLevel == "" {
			bs[i].AdLevel = domain.AdLevelNone
		}
		if bs[i].CreatedAt.IsZero() {
			bs[i].CreatedAt = now
		}
		bs[i].UpdatedAt = now
	}
	if err := s.businesses.UpsertBatch(ctx, bs); err != nil {
		return fmt.Errorf("upsert businesses: %w", err)
	}
	for i := range bs {
		s.evict(ctx, bs[i].ID)
	}
	return nil
}

func (s *BusinessService) validate(b *domain.Business) error {
	if b.ID == "" || strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: id and name are required", domain.ErrInvalidArgument)
	}
	if !b.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", domain.ErrInvalidArgument, b.Category)
	}
	if b.AdLevel != "" && !b.AdLevel.Valid() {
		return fmt.Errorf("%w: unknown ad level %q", domain.ErrInvalidArgument, b.AdLevel)
	}
	if b.Status != "" && !b.Status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, b.Status)
	}
	if !s.bounds.Contains(b.Location) {
		return fmt.Errorf("%w: %+v", domain.ErrOutOfBounds, b.Location)
	}
	return nil
}

// SetStatus moves a listing through moderation.
func (s *BusinessService) SetStatus(ctx context.Context, id string, status domain.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	if err := s.businesses.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	s.evict(ctx, id)
	return nil
}

// MoveLocation stores a new position for a listing and announces it.
// sessionID identifies the map session that moved it, if any.
func (s *BusinessService) MoveLocation(ctx context.Context, id string, loc domain.GeoPoint, sessionID string) error {
	ctx, span := tracer.Start(ctx, "BusinessService.MoveLocation")
	defer span.End()
	span.SetAttributes(
		attribute.String("business.id", id),
		attribute.Float64("location.lat", loc.Lat),
		attribute.Float64("location.lng", loc.Lng),
	)

	if !s.bounds.Contains(loc) {
		return fmt.Errorf("%w: %+v", domain.ErrOutOfBounds, loc)
	}
	if err := s.businesses.UpdateLocation(ctx, id, loc); err != nil {
		span.RecordError(err)
		return err
	}
	s.evict(ctx, id)

	if s.publisher != nil {
		_ = s.publisher.PublishMarkerMoved(ctx, &domain.MarkerMoved{
			BusinessID: id,
			Location:   loc,
			SessionID:  sessionID,
			Time:       s.now(),
		})
	}
	return nil
}

func (s *BusinessService) evict(ctx context.Context, id string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "businesses:id:"+id)
	}
}

// SortDirectory orders listings premium, estandar, none, then by name.
func SortDirectory(bs []domain.Business) {
	sort.SliceStable(bs, func(i, j int) bool {
		ri, rj := bs[i].AdLevel.Rank(), bs[j].AdLevel.Rank()
		if ri != rj {
			return ri > rj
		}
		return strings.ToLower(bs[i].Name) < strings.ToLower(bs[j].Name)
	})
}
