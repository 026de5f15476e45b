package usecases_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/mapview"
	"github.com/samirrijal/huarazguide/internal/core/usecases"
)

type mockProber struct {
	dim   domain.ImageDimensions
	err   error
	calls int
}

func (m *mockProber) Probe(ctx context.Context, url string) (domain.ImageDimensions, error) {
	m.calls++
	return m.dim, m.err
}

type mapRig struct {
	svc   *usecases.MapService
	mu    sync.Mutex
	moves map[string]domain.GeoPoint
	pub   *mockPublisher
}

func newMapRig(t *testing.T, prober *mockProber) *mapRig {
	t.Helper()
	r := &mapRig{moves: map[string]domain.GeoPoint{}, pub: &mockPublisher{}}
	repo := &mockBusinessRepo{
		listFn: func(ctx context.Context, f domain.BusinessFilter, limit, offset int) ([]domain.Business, int, error) {
			if offset > 0 {
				return nil, 3, nil
			}
			return sampleBusinesses(), 3, nil
		},
		updateLocationFn: func(ctx context.Context, id string, loc domain.GeoPoint) error {
			r.mu.Lock()
			r.moves[id] = loc
			r.mu.Unlock()
			return nil
		},
	}
	businesses := usecases.NewBusinessService(repo, nil, r.pub, testBounds)
	svc, err := usecases.NewMapService(businesses, prober, usecases.MapSettings{
		ImageURL:   "https://example.test/huaraz.png",
		Bounds:     testBounds,
		Viewport:   mapview.DefaultViewportConfig(),
		SessionTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("NewMapService: %v", err)
	}
	r.svc = svc
	return r
}

func markerByID(f mapview.Frame, id string) (mapview.Marker, bool) {
	for _, m := range f.Markers {
		if m.ID == id {
			return m, true
		}
	}
	return mapview.Marker{}, false
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestMapService_OpenProbesOnce(t *testing.T) {
	prober := &mockProber{dim: domain.ImageDimensions{Width: 1000, Height: 1000}}
	r := newMapRig(t, prober)

	for i := 0; i < 2; i++ {
		view, err := r.svc.Open(context.Background(), usecases.OpenMapSession{Width: 500, Height: 500})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if view.Frame.Status != mapview.ImageReady || len(view.Frame.Markers) != 3 {
			t.Fatalf("unexpected frame: %+v", view.Frame)
		}
	}
	if prober.calls != 1 {
		t.Errorf("expected image probed once, got %d", prober.calls)
	}
	if r.svc.Count() != 2 {
		t.Errorf("expected 2 sessions, got %d", r.svc.Count())
	}
}

func TestMapService_FeaturedMarkers(t *testing.T) {
	r := newMapRig(t, &mockProber{dim: domain.ImageDimensions{Width: 1000, Height: 1000}})
	view, err := r.svc.Open(context.Background(), usecases.OpenMapSession{Width: 1000, Height: 1000})
	if err != nil {
		t.Fatal(err)
	}
	fogon, _ := markerByID(view.Frame, "1")
	laundry, _ := markerByID(view.Frame, "9")
	if fogon.Kind != mapview.KindFeatured || laundry.Kind != mapview.KindStandard {
		t.Errorf("unexpected kinds: %v %v", fogon.Kind, laundry.Kind)
	}
}

func TestMapService_ProbeFailureShowsError(t *testing.T) {
	r := newMapRig(t, &mockProber{err: errors.New("404 not found")})

	view, err := r.svc.Open(context.Background(), usecases.OpenMapSession{Width: 500, Height: 500})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if view.Frame.Status != mapview.ImageFailed || len(view.Frame.Markers) != 0 {
		t.Errorf("expected failed frame without markers, got %+v", view.Frame)
	}
}

func TestMapService_DragPersistsOnRelease(t *testing.T) {
	r := newMapRig(t, &mockProber{dim: domain.ImageDimensions{Width: 1000, Height: 1000}})
	ctx := context.Background()
	view, err := r.svc.Open(ctx, usecases.OpenMapSession{Width: 1000, Height: 1000, Editable: true})
	if err != nil {
		t.Fatal(err)
	}

	// El Fogón sits at image (400, 470) with the identity transform.
	frame, err := r.svc.Dispatch(ctx, view.ID, []mapview.Event{
		{Kind: mapview.PointerDown, X: 400, Y: 470},
		{Kind: mapview.PointerMove, X: 500, Y: 500},
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if frame.State != mapview.StateDraggingMarker || frame.DraggingID != "1" {
		t.Fatalf("expected drag of 1, got %v %q", frame.State, frame.DraggingID)
	}
	if len(r.moves) != 0 {
		t.Fatal("position must not persist before release")
	}

	frame, err = r.svc.Dispatch(ctx, view.ID, []mapview.Event{{Kind: mapview.PointerUp}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	got := r.moves["1"]
	if !near(got.Lat, -9.53) || !near(got.Lng, -77.52) {
		t.Errorf("expected (-9.53, -77.52) persisted, got %+v", got)
	}
	m, _ := markerByID(frame, "1")
	if !near(m.Screen.X, 500) || !near(m.Screen.Y, 500) {
		t.Errorf("marker not at drop point: %+v", m.Screen)
	}
	if len(r.pub.moved) != 1 || r.pub.moved[0].SessionID != view.ID {
		t.Errorf("expected marker-moved event from session, got %+v", r.pub.moved)
	}
}

func TestMapService_DragOutsideBoundsReverts(t *testing.T) {
	r := newMapRig(t, &mockProber{dim: domain.ImageDimensions{Width: 1000, Height: 1000}})
	ctx := context.Background()
	view, _ := r.svc.Open(ctx, usecases.OpenMapSession{Width: 1000, Height: 1000, Editable: true})

	frame, err := r.svc.Dispatch(ctx, view.ID, []mapview.Event{
		{Kind: mapview.PointerDown, X: 400, Y: 470},
		{Kind: mapview.PointerMove, X: -100, Y: -100},
		{Kind: mapview.PointerUp},
	})
	if !errors.Is(err, domain.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	m, _ := markerByID(frame, "1")
	if !near(m.Screen.X, 400) || !near(m.Screen.Y, 470) {
		t.Errorf("marker not reverted: %+v", m.Screen)
	}
}

func TestMapService_CloseMidDragPersists(t *testing.T) {
	r := newMapRig(t, &mockProber{dim: domain.ImageDimensions{Width: 1000, Height: 1000}})
	ctx := context.Background()
	view, _ := r.svc.Open(ctx, usecases.OpenMapSession{Width: 1000, Height: 1000, Editable: true})

	if _, err := r.svc.Dispatch(ctx, view.ID, []mapview.Event{
		{Kind: mapview.PointerDown, X: 400, Y: 470},
		{Kind: mapview.PointerMove, X: 500, Y: 500},
	}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := r.svc.Close(ctx, view.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, ok := r.moves["1"]
	if !ok || !near(got.Lat, -9.53) || !near(got.Lng, -77.52) {
		t.Errorf("expected open drag persisted on close, got %+v (ok=%v)", got, ok)
	}
	if r.svc.Count() != 0 {
		t.Errorf("expected no sessions, got %d", r.svc.Count())
	}
}

func TestMapService_CloseMidDragRejected(t *testing.T) {
	r := newMapRig(t, &mockProber{dim: domain.ImageDimensions{Width: 1000, Height: 1000}})
	ctx := context.Background()
	view, _ := r.svc.Open(ctx, usecases.OpenMapSession{Width: 1000, Height: 1000, Editable: true})

	_, _ = r.svc.Dispatch(ctx, view.ID, []mapview.Event{
		{Kind: mapview.PointerDown, X: 400, Y: 470},
		{Kind: mapview.PointerMove, X: -100, Y: -100},
	})
	if err := r.svc.Close(ctx, view.ID); !errors.Is(err, domain.ErrOutOfBounds) {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
	if len(r.moves) != 0 {
		t.Errorf("rejected position persisted: %+v", r.moves)
	}
	if _, err := r.svc.Frame(view.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected session closed anyway, got %v", err)
	}
}

func TestMapService_EvictMidDragPersists(t *testing.T) {
	r := newMapRig(t, &mockProber{dim: domain.ImageDimensions{Width: 1000, Height: 1000}})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.svc.SetNow(func() time.Time { return now })
	ctx := context.Background()
	view, _ := r.svc.Open(ctx, usecases.OpenMapSession{Width: 1000, Height: 1000, Editable: true})

	_, _ = r.svc.Dispatch(ctx, view.ID, []mapview.Event{
		{Kind: mapview.PointerDown, X: 400, Y: 470},
		{Kind: mapview.PointerMove, X: 500, Y: 500},
	})
	now = now.Add(5 * time.Minute)
	n, err := r.svc.Evict(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 eviction without error, got %d, %v", n, err)
	}
	if _, ok := r.moves["1"]; !ok {
		t.Error("expected open drag persisted on eviction")
	}
}

func TestMapService_UpdatesFanOut(t *testing.T) {
	r := newMapRig(t, &mockProber{dim: domain.ImageDimensions{Width: 1000, Height: 1000}})
	ctx := context.Background()
	view, _ := r.svc.Open(ctx, usecases.OpenMapSession{Width: 1000, Height: 1000})

	first, cancelFirst, err := r.svc.Updates(view.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, cancelSecond, _ := r.svc.Updates(view.ID)
	defer cancelSecond()

	r.svc.ApplyMarkerMoved(&domain.MarkerMoved{BusinessID: "9", Location: domain.GeoPoint{Lat: -9.53, Lng: -77.52}})
	for name, ch := range map[string]<-chan struct{}{"first": first, "second": second} {
		select {
		case <-ch:
		default:
			t.Errorf("%s subscriber missed the update", name)
		}
	}

	cancelFirst()
	if _, ok := <-first; ok {
		t.Error("expected cancelled channel closed")
	}
	cancelFirst()

	if err := r.svc.Close(ctx, view.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := <-second; ok {
		t.Error("expected channel closed with the session")
	}
}

func TestMapService_UnknownSession(t *testing.T) {
	r := newMapRig(t, &mockProber{dim: domain.ImageDimensions{Width: 10, Height: 10}})
	if _, err := r.svc.Frame("missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := r.svc.Close(context.Background(), "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestMapService_EvictsIdleSessions(t *testing.T) {
	r := newMapRig(t, &mockProber{dim: domain.ImageDimensions{Width: 10, Height: 10}})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.svc.SetNow(func() time.Time { return now })

	view, err := r.svc.Open(context.Background(), usecases.OpenMapSession{Width: 10, Height: 10})
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(30 * time.Second)
	if n, _ := r.svc.Evict(context.Background()); n != 0 {
		t.Fatalf("evicted an active session")
	}
	now = now.Add(2 * time.Minute)
	if n, _ := r.svc.Evict(context.Background()); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := r.svc.Frame(view.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected evicted session gone, got %v", err)
	}
}

func TestMapService_ResizeAndReset(t *testing.T) {
	r := newMapRig(t, &mockProber{dim: domain.ImageDimensions{Width: 1000, Height: 1000}})
	ctx := context.Background()
	view, _ := r.svc.Open(ctx, usecases.OpenMapSession{Width: 500, Height: 500})

	frame, err := r.svc.Resize(view.ID, 1000, 500)
	if err != nil {
		t.Fatal(err)
	}
	if !near(frame.Transform.Scale, 0.5) || !near(frame.Transform.TranslateX, 250) {
		t.Errorf("unexpected transform after resize: %+v", frame.Transform)
	}

	_, _ = r.svc.Dispatch(ctx, view.ID, []mapview.Event{{Kind: mapview.Wheel, X: 10, Y: 10, DeltaY: -1}})
	frame, _ = r.svc.Reset(view.ID)
	if !near(frame.Transform.Scale, 0.5) {
		t.Errorf("reset should refit, got %+v", frame.Transform)
	}
}

func TestMapService_ApplyMarkerMovedSkipsOrigin(t *testing.T) {
	r := newMapRig(t, &mockProber{dim: domain.ImageDimensions{Width: 1000, Height: 1000}})
	ctx := context.Background()
	a, _ := r.svc.Open(ctx, usecases.OpenMapSession{Width: 1000, Height: 1000})
	b, _ := r.svc.Open(ctx, usecases.OpenMapSession{Width: 1000, Height: 1000})

	updates, cancel, err := r.svc.Updates(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()
	n := r.svc.ApplyMarkerMoved(&domain.MarkerMoved{
		BusinessID: "9",
		Location:   domain.GeoPoint{Lat: -9.53, Lng: -77.52},
		SessionID:  a.ID,
	})
	if n != 1 {
		t.Fatalf("expected 1 session updated, got %d", n)
	}
	select {
	case <-updates:
	default:
		t.Error("expected update signal")
	}

	frame, _ := r.svc.Frame(b.ID)
	m, _ := markerByID(frame, "9")
	if !near(m.Screen.X, 500) || !near(m.Screen.Y, 500) {
		t.Errorf("marker not moved in other session: %+v", m.Screen)
	}
}

func TestMapService_ApplySponsorship(t *testing.T) {
	r := newMapRig(t, &mockProber{dim: domain.ImageDimensions{Width: 1000, Height: 1000}})
	view, _ := r.svc.Open(context.Background(), usecases.OpenMapSession{Width: 1000, Height: 1000})

	if n := r.svc.ApplySponsorship(&domain.Sponsorship{BusinessID: "9", Level: domain.AdLevelPremium}); n != 1 {
		t.Fatalf("expected 1 session updated, got %d", n)
	}
	frame, _ := r.svc.Frame(view.ID)
	if m, _ := markerByID(frame, "9"); m.Kind != mapview.KindFeatured {
		t.Errorf("expected featured marker, got %v", m.Kind)
	}
}
