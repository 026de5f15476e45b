package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/usecases"
)

// --- Mock BusinessRepository ---

type mockBusinessRepo struct {
	getByIDFn           func(ctx context.Context, id string) (*domain.Business, error)
	listFn              func(ctx context.Context, f domain.BusinessFilter, limit, offset int) ([]domain.Business, int, error)
	createFn            func(ctx context.Context, b *domain.Business) error
	upsertFn            func(ctx context.Context, b *domain.Business) error
	upsertBatchFn       func(ctx context.Context, bs []domain.Business) error
	updateStatusFn      func(ctx context.Context, id string, s domain.Status) error
	updateSponsorshipFn func(ctx context.Context, sp *domain.Sponsorship) error
	updateLocationFn    func(ctx context.Context, id string, loc domain.GeoPoint) error
}

func (m *mockBusinessRepo) Create(ctx context.Context, b *domain.Business) error {
	if m.createFn != nil {
		return m.createFn(ctx, b)
	}
	return nil
}

func (m *mockBusinessRepo) Upsert(ctx context.Context, b *domain.Business) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, b)
	}
	return nil
}

func (m *mockBusinessRepo) UpsertBatch(ctx context.Context, bs []domain.Business) error {
	if m.upsertBatchFn != nil {
		return m.upsertBatchFn(ctx, bs)
	}
	return nil
}

func (m *mockBusinessRepo) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockBusinessRepo) List(ctx context.Context, f domain.BusinessFilter, limit, offset int) ([]domain.Business, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f, limit, offset)
	}
	return nil, 0, nil
}

func (m *mockBusinessRepo) UpdateStatus(ctx context.Context, id string, s domain.Status) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, s)
	}
	return nil
}

func (m *mockBusinessRepo) UpdateSponsorship(ctx context.Context, sp *domain.Sponsorship) error {
	if m.updateSponsorshipFn != nil {
		return m.updateSponsorshipFn(ctx, sp)
	}
	return nil
}

func (m *mockBusinessRepo) UpdateLocation(ctx context.Context, id string, loc domain.GeoPoint) error {
	if m.updateLocationFn != nil {
		return m.updateLocationFn(ctx, id, loc)
	}
	return nil
}

// --- Mock CacheService ---

type mockCache struct {
	data    map[string][]byte
	deleted []string
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (c *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (c *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	c.deleted = append(c.deleted, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	moved     []domain.MarkerMoved
	sponsored []domain.Sponsorship
}

func (p *mockPublisher) PublishMarkerMoved(ctx context.Context, ev *domain.MarkerMoved) error {
	p.moved = append(p.moved, *ev)
	return nil
}

func (p *mockPublisher) PublishSponsorshipChanged(ctx context.Context, sp *domain.Sponsorship) error {
	p.sponsored = append(p.sponsored, *sp)
	return nil
}

var testBounds = domain.GeoBounds{North: -9.48, South: -9.58, West: -77.56, East: -77.48}

func sampleBusinesses() []domain.Business {
	return []domain.Business{
		{ID: "1", Name: "El Fogón", Category: domain.CategoryPolleria, AdLevel: domain.AdLevelPremium, Status: domain.StatusApproved, Location: domain.GeoPoint{Lat: -9.527, Lng: -77.528}},
		{ID: "4", Name: "Mar y Pisco", Category: domain.CategoryCevicheria, AdLevel: domain.AdLevelEstandar, Status: domain.StatusApproved, Location: domain.GeoPoint{Lat: -9.530, Lng: -77.530}},
		{ID: "9", Name: "Lavandería Andina", Category: domain.CategoryLaundry, AdLevel: domain.AdLevelNone, Status: domain.StatusApproved, Location: domain.GeoPoint{Lat: -9.520, Lng: -77.525}},
	}
}

// --- Tests ---

func TestBusinessService_ListForcesApproved(t *testing.T) {
	var gotFilter domain.BusinessFilter
	var gotLimit int
	repo := &mockBusinessRepo{
		listFn: func(ctx context.Context, f domain.BusinessFilter, limit, offset int) ([]domain.Business, int, error) {
			gotFilter, gotLimit = f, limit
			return sampleBusinesses(), 3, nil
		},
	}
	svc := usecases.NewBusinessService(repo, nil, nil, testBounds)

	items, total, err := svc.List(context.Background(), domain.BusinessFilter{Status: domain.StatusPending, Query: "  pisco "}, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("expected 3 items, got %d/%d", len(items), total)
	}
	want := domain.BusinessFilter{Status: domain.StatusApproved, Query: "pisco"}
	if diff := cmp.Diff(want, gotFilter); diff != "" {
		t.Errorf("filter mismatch (-want +got):\n%s", diff)
	}
	if gotLimit != 20 {
		t.Errorf("expected default limit 20, got %d", gotLimit)
	}
}

func TestBusinessService_ListRejectsUnknownCategory(t *testing.T) {
	svc := usecases.NewBusinessService(&mockBusinessRepo{}, nil, nil, testBounds)
	_, _, err := svc.List(context.Background(), domain.BusinessFilter{Category: "spaceport"}, 10, 0)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestBusinessService_ListUsesCache(t *testing.T) {
	calls := 0
	repo := &mockBusinessRepo{
		listFn: func(ctx context.Context, f domain.BusinessFilter, limit, offset int) ([]domain.Business, int, error) {
			calls++
			return sampleBusinesses(), 3, nil
		},
	}
	svc := usecases.NewBusinessService(repo, newMockCache(), nil, testBounds)

	for i := 0; i < 2; i++ {
		if _, _, err := svc.List(context.Background(), domain.BusinessFilter{}, 10, 0); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("expected one repository call, got %d", calls)
	}
}

func TestSortDirectory(t *testing.T) {
	bs := []domain.Business{
		{ID: "a", Name: "zeta", AdLevel: domain.AdLevelNone},
		{ID: "b", Name: "Alpha", AdLevel: domain.AdLevelNone},
		{ID: "c", Name: "Mid", AdLevel: domain.AdLevelEstandar},
		{ID: "d", Name: "Top", AdLevel: domain.AdLevelPremium},
	}
	usecases.SortDirectory(bs)

	var ids []string
	for _, b := range bs {
		ids = append(ids, b.ID)
	}
	if diff := cmp.Diff([]string{"d", "c", "b", "a"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestBusinessService_AllApprovedPages(t *testing.T) {
	all := sampleBusinesses()
	repo := &mockBusinessRepo{
		listFn: func(ctx context.Context, f domain.BusinessFilter, limit, offset int) ([]domain.Business, int, error) {
			if offset >= len(all) {
				return nil, len(all), nil
			}
			end := offset + 2
			if end > len(all) {
				end = len(all)
			}
			return all[offset:end], len(all), nil
		},
	}
	svc := usecases.NewBusinessService(repo, nil, nil, testBounds)

	got, err := svc.AllApproved(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != "1" {
		t.Errorf("expected all 3 sorted businesses, got %+v", got)
	}
}

func TestBusinessService_MoveLocation(t *testing.T) {
	var stored domain.GeoPoint
	repo := &mockBusinessRepo{
		updateLocationFn: func(ctx context.Context, id string, loc domain.GeoPoint) error {
			stored = loc
			return nil
		},
	}
	cache := newMockCache()
	pub := &mockPublisher{}
	svc := usecases.NewBusinessService(repo, cache, pub, testBounds)

	loc := domain.GeoPoint{Lat: -9.53, Lng: -77.52}
	if err := svc.MoveLocation(context.Background(), "1", loc, "sess"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != loc {
		t.Errorf("expected %v stored, got %v", loc, stored)
	}
	if diff := cmp.Diff([]string{"businesses:id:1"}, cache.deleted); diff != "" {
		t.Errorf("cache eviction mismatch:\n%s", diff)
	}
	if len(pub.moved) != 1 || pub.moved[0].SessionID != "sess" || pub.moved[0].Location != loc {
		t.Errorf("unexpected events: %+v", pub.moved)
	}
}

func TestBusinessService_MoveLocationOutOfBounds(t *testing.T) {
	called := false
	repo := &mockBusinessRepo{
		updateLocationFn: func(ctx context.Context, id string, loc domain.GeoPoint) error {
			called = true
			return nil
		},
	}
	svc := usecases.NewBusinessService(repo, nil, nil, testBounds)

	err := svc.MoveLocation(context.Background(), "1", domain.GeoPoint{Lat: -12.04, Lng: -77.03}, "")
	if !errors.Is(err, domain.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if called {
		t.Error("repository must not be called for out-of-bounds moves")
	}
}

func TestBusinessService_SetStatus(t *testing.T) {
	svc := usecases.NewBusinessService(&mockBusinessRepo{}, nil, nil, testBounds)

	if err := svc.SetStatus(context.Background(), "1", "archived"); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if err := svc.SetStatus(context.Background(), "1", domain.StatusRejected); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBusinessService_SubmitStartsPending(t *testing.T) {
	var saved *domain.Business
	repo := &mockBusinessRepo{
		createFn: func(ctx context.Context, b *domain.Business) error {
			saved = b
			return nil
		},
	}
	svc := usecases.NewBusinessService(repo, nil, nil, testBounds)

	b := &domain.Business{
		ID: "new", Name: "Panadería Sol", Category: domain.CategoryBakery,
		AdLevel: domain.AdLevelPremium, Status: domain.StatusApproved,
		Location: domain.GeoPoint{Lat: -9.52, Lng: -77.53},
	}
	if err := svc.Submit(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Status != domain.StatusPending || saved.AdLevel != domain.AdLevelNone {
		t.Errorf("expected pending listing without ads, got %s/%s", saved.Status, saved.AdLevel)
	}
	if saved.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestBusinessService_SubmitCannotOverwriteListing(t *testing.T) {
	existing := &domain.Business{
		ID: "1", Name: "El Fogón", Category: domain.CategoryRestaurant,
		Status: domain.StatusApproved, AdLevel: domain.AdLevelPremium,
		Location: domain.GeoPoint{Lat: -9.527, Lng: -77.528},
	}
	rows := map[string]*domain.Business{"1": existing}
	repo := &mockBusinessRepo{
		createFn: func(ctx context.Context, b *domain.Business) error {
			if _, ok := rows[b.ID]; ok {
				return domain.ErrConflict
			}
			rows[b.ID] = b
			return nil
		},
		upsertFn: func(ctx context.Context, b *domain.Business) error {
			t.Fatalf("submission must not upsert, got id %q", b.ID)
			return nil
		},
	}
	svc := usecases.NewBusinessService(repo, nil, nil, testBounds)

	b := &domain.Business{
		ID: "1", Name: "Hijacked", Category: domain.CategoryRestaurant,
		Location: domain.GeoPoint{Lat: -9.52, Lng: -77.53},
	}
	if err := svc.Submit(context.Background(), b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ID == "1" || b.ID == "" {
		t.Errorf("expected a server-assigned id, got %q", b.ID)
	}
	if got := rows["1"]; got.Name != "El Fogón" || got.Status != domain.StatusApproved || got.AdLevel != domain.AdLevelPremium {
		t.Errorf("existing listing changed: %+v", got)
	}
	if len(rows) != 2 {
		t.Errorf("expected the submission stored under its own id, got %d rows", len(rows))
	}
}

func TestBusinessService_SubmitReportsConflict(t *testing.T) {
	repo := &mockBusinessRepo{
		createFn: func(ctx context.Context, b *domain.Business) error {
			return fmt.Errorf("%w: business %s", domain.ErrConflict, b.ID)
		},
	}
	svc := usecases.NewBusinessService(repo, nil, nil, testBounds)

	err := svc.Submit(context.Background(), &domain.Business{
		Name: "Panadería Sol", Category: domain.CategoryBakery,
		Location: domain.GeoPoint{Lat: -9.52, Lng: -77.53},
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestBusinessService_ImportValidates(t *testing.T) {
	svc := usecases.NewBusinessService(&mockBusinessRepo{}, nil, nil, testBounds)

	bad := []domain.Business{{ID: "x", Name: "Nowhere", Category: domain.CategoryHotel, Location: domain.GeoPoint{}}}
	if err := svc.Import(context.Background(), bad); !errors.Is(err, domain.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestBusinessService_Nearby(t *testing.T) {
	repo := &mockBusinessRepo{
		listFn: func(ctx context.Context, f domain.BusinessFilter, limit, offset int) ([]domain.Business, int, error) {
			if offset > 0 {
				return nil, 3, nil
			}
			return sampleBusinesses(), 3, nil
		},
	}
	svc := usecases.NewBusinessService(repo, nil, nil, testBounds)

	got, err := svc.Nearby(context.Background(), domain.GeoPoint{Lat: -9.527, Lng: -77.528}, 500, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "4" {
		t.Fatalf("expected [1 4] within 500m, got %+v", got)
	}
	if got[0].DistanceMeters != 0 || got[1].DistanceMeters < 300 || got[1].DistanceMeters > 500 {
		t.Errorf("unexpected distances %v, %v", got[0].DistanceMeters, got[1].DistanceMeters)
	}

	if _, err := svc.Nearby(context.Background(), domain.GeoPoint{Lat: 120}, 500, 10); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
