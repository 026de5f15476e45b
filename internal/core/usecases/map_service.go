package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/mapview"
	"github.com/samirrijal/huarazguide/internal/core/ports"
)

// MapSettings describes the city map image and how sessions view it.
type MapSettings struct {
	ImageURL string
	Bounds   domain.GeoBounds
	// Image is the intrinsic image size. When zero it is probed from ImageURL.
	Image       domain.ImageDimensions
	Viewport    mapview.ViewportConfig
	HitRadius   float64
	SessionTTL  time.Duration
	MaxSessions int
}

// MapConfig is the public description of the map served to clients.
type MapConfig struct {
	ImageURL  string                  `json:"image_url"`
	Bounds    domain.GeoBounds        `json:"bounds"`
	Image     *domain.ImageDimensions `json:"image,omitempty"`
	Viewport  mapview.ViewportConfig  `json:"viewport"`
	HitRadius float64                 `json:"hit_radius"`
}

// OpenMapSession are the parameters of a new viewport session.
type OpenMapSession struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Editable bool    `json:"editable"`
}

// MapSessionView is a session id with its first frame.
type MapSessionView struct {
	ID    string        `json:"id"`
	Frame mapview.Frame `json:"frame"`
}

type markerCommit struct {
	id       string
	from, to domain.GeoPoint
}

type mapSession struct {
	id string

	mu       sync.Mutex
	m        *mapview.Map
	pois     []mapview.PointOfInterest
	index    map[string]int
	origin   map[string]domain.GeoPoint
	commits  []markerCommit
	lastUsed time.Time
	subs     map[chan struct{}]struct{}
}

func (ms *mapSession) onMove(id string, pos domain.GeoPoint) {
	i, ok := ms.index[id]
	if !ok {
		return
	}
	if _, ok := ms.origin[id]; !ok {
		ms.origin[id] = ms.pois[i].Location
	}
	ms.pois[i].Location = pos
}

func (ms *mapSession) onDragEnd(id string) {
	from, ok := ms.origin[id]
	if !ok {
		return
	}
	delete(ms.origin, id)
	ms.commits = append(ms.commits, markerCommit{id: id, from: from, to: ms.pois[ms.index[id]].Location})
}

// takeCommits returns and clears the drags that ended since the last call.
// Callers hold ms.mu.
func (ms *mapSession) takeCommits() []markerCommit {
	c := ms.commits
	ms.commits = nil
	return c
}

func (ms *mapSession) signal() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for ch := range ms.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// MapService runs interactive map viewport sessions over the directory.
type MapService struct {
	businesses *BusinessService
	prober     ports.ImageProber
	cfg        MapSettings
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*mapSession

	imgMu sync.Mutex
	image *domain.ImageDimensions
}

// NewMapService validates settings and creates a MapService.
func NewMapService(businesses *BusinessService, prober ports.ImageProber, cfg MapSettings) (*MapService, error) {
	if err := cfg.Bounds.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Viewport.Validate(); err != nil {
		return nil, err
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	s := &MapService{
		businesses: businesses,
		prober:     prober,
		cfg:        cfg,
		now:        time.Now,
		sessions:   make(map[string]*mapSession),
	}
	if cfg.Image.Validate() == nil {
		dim := cfg.Image
		s.image = &dim
	}
	return s, nil
}

// Config returns the map description served to clients.
func (s *MapService) Config(ctx context.Context) MapConfig {
	out := MapConfig{
		ImageURL:  s.cfg.ImageURL,
		Bounds:    s.cfg.Bounds,
		Viewport:  s.cfg.Viewport,
		HitRadius: s.cfg.HitRadius,
	}
	if dim, err := s.imageDimensions(ctx); err == nil {
		out.Image = &dim
	}
	return out
}

func (s *MapService) imageDimensions(ctx context.Context) (domain.ImageDimensions, error) {
	s.imgMu.Lock()
	defer s.imgMu.Unlock()
	if s.image != nil {
		return *s.image, nil
	}
	if s.prober == nil || s.cfg.ImageURL == "" {
		return domain.ImageDimensions{}, fmt.Errorf("%w: no image size configured", domain.ErrInvalidImage)
	}
	dim, err := s.prober.Probe(ctx, s.cfg.ImageURL)
	if err != nil {
		return domain.ImageDimensions{}, err
	}
	if err := dim.Validate(); err != nil {
		return domain.ImageDimensions{}, err
	}
	s.image = &dim
	return dim, nil
}

// POIFromBusiness converts a listing into a map point of interest.
func POIFromBusiness(b *domain.Business) mapview.PointOfInterest {
	kind := mapview.KindStandard
	if b.Sponsored() {
		kind = mapview.KindFeatured
	}
	return mapview.PointOfInterest{
		ID:       b.ID,
		Location: b.Location,
		Label:    b.Name,
		Kind:     kind,
		Icon:     string(b.Category),
	}
}

// Open starts a session sized to the client's container.
func (s *MapService) Open(ctx context.Context, req OpenMapSession) (*MapSessionView, error) {
	if _, err := s.Evict(ctx); err != nil {
		slog.Warn("map session eviction", "error", err)
	}
	s.mu.Lock()
	full := s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions
	s.mu.Unlock()
	if full {
		return nil, fmt.Errorf("%w: too many map sessions", domain.ErrUnavailable)
	}

	bs, err := s.businesses.AllApproved(ctx)
	if err != nil {
		return nil, fmt.Errorf("load points of interest: %w", err)
	}
	ms := &mapSession{
		id:       uuid.NewString(),
		pois:     make([]mapview.PointOfInterest, len(bs)),
		index:    make(map[string]int, len(bs)),
		origin:   make(map[string]domain.GeoPoint),
		lastUsed: s.now(),
		subs:     make(map[chan struct{}]struct{}),
	}
	for i := range bs {
		ms.pois[i] = POIFromBusiness(&bs[i])
		ms.index[bs[i].ID] = i
	}

	m, err := mapview.New(mapview.Config{
		Bounds:    s.cfg.Bounds,
		Viewport:  s.cfg.Viewport,
		HitRadius: s.cfg.HitRadius,
		Gesture: mapview.GestureOptions{
			Editable:     req.Editable,
			OnMarkerMove: ms.onMove,
			OnDragEnd:    ms.onDragEnd,
		},
	})
	if err != nil {
		return nil, err
	}
	ms.m = m
	m.Resize(req.Width, req.Height)
	if dim, err := s.imageDimensions(ctx); err != nil {
		m.ImageFailed(err)
	} else if err := m.ImageLoaded(dim); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[ms.id] = ms
	s.mu.Unlock()

	return &MapSessionView{ID: ms.id, Frame: m.Frame(ms.pois)}, nil
}

func (s *MapService) session(id string) (*mapSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	ms.lastUsed = s.now()
	return ms, nil
}

// Dispatch applies events in order and returns the resulting frame. Marker
// drags that ended during the batch are persisted; a rejected position is
// reverted in the session and reported in the error.
func (s *MapService) Dispatch(ctx context.Context, id string, events []mapview.Event) (mapview.Frame, error) {
	ms, err := s.session(id)
	if err != nil {
		return mapview.Frame{}, err
	}

	ms.mu.Lock()
	for _, ev := range events {
		ms.m.Dispatch(ev, ms.pois)
	}
	commits := ms.takeCommits()
	ms.mu.Unlock()

	err = s.commit(ctx, ms, commits)
	return s.frame(ms), err
}

// commit persists finished drags, reverting each rejected marker to where
// the drag started.
func (s *MapService) commit(ctx context.Context, ms *mapSession, commits []markerCommit) error {
	var errs []error
	for _, c := range commits {
		if err := s.businesses.MoveLocation(ctx, c.id, c.to, ms.id); err != nil {
			errs = append(errs, fmt.Errorf("move %s: %w", c.id, err))
			ms.mu.Lock()
			if i, ok := ms.index[c.id]; ok {
				ms.pois[i].Location = c.from
			}
			ms.mu.Unlock()
		}
	}
	return errors.Join(errs...)
}

// finish releases any gesture in progress and persists a drag it ended.
func (s *MapService) finish(ctx context.Context, ms *mapSession) error {
	ms.mu.Lock()
	ms.m.Dispatch(mapview.Event{Kind: mapview.ReleaseAll}, ms.pois)
	commits := ms.takeCommits()
	for ch := range ms.subs {
		close(ch)
		delete(ms.subs, ch)
	}
	ms.mu.Unlock()
	return s.commit(ctx, ms, commits)
}

// Resize refits the session's map to a new container size.
func (s *MapService) Resize(id string, width, height float64) (mapview.Frame, error) {
	ms, err := s.session(id)
	if err != nil {
		return mapview.Frame{}, err
	}
	ms.mu.Lock()
	ms.m.Resize(width, height)
	ms.mu.Unlock()
	return s.frame(ms), nil
}

// Reset discards the session's pan and zoom.
func (s *MapService) Reset(id string) (mapview.Frame, error) {
	ms, err := s.session(id)
	if err != nil {
		return mapview.Frame{}, err
	}
	ms.mu.Lock()
	ms.m.ResetView()
	ms.mu.Unlock()
	return s.frame(ms), nil
}

// Frame returns the session's current frame.
func (s *MapService) Frame(id string) (mapview.Frame, error) {
	ms, err := s.session(id)
	if err != nil {
		return mapview.Frame{}, err
	}
	return s.frame(ms), nil
}

func (s *MapService) frame(ms *mapSession) mapview.Frame {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.m.Frame(ms.pois)
}

// Updates subscribes to changes of the session's points of interest made
// from outside the session. Every subscriber gets its own channel; cancel
// unsubscribes. The channel is closed when the session ends.
func (s *MapService) Updates(id string) (<-chan struct{}, func(), error) {
	ms, err := s.session(id)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan struct{}, 1)
	ms.mu.Lock()
	ms.subs[ch] = struct{}{}
	ms.mu.Unlock()
	cancel := func() {
		ms.mu.Lock()
		defer ms.mu.Unlock()
		if _, ok := ms.subs[ch]; ok {
			delete(ms.subs, ch)
			close(ch)
		}
	}
	return ch, cancel, nil
}

// Close ends a session. A marker drag still in progress is released and
// persisted like any other drag; a rejected position is returned as the error.
func (s *MapService) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	ms, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s.finish(ctx, ms)
}

// Count returns the number of open sessions.
func (s *MapService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Evict closes sessions idle for longer than the TTL and returns how many.
// Drags left open in them are persisted; failures are joined into the error.
func (s *MapService) Evict(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.SessionTTL)
	s.mu.Lock()
	var expired []*mapSession
	for id, ms := range s.sessions {
		if ms.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			expired = append(expired, ms)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, ms := range expired {
		if err := s.finish(ctx, ms); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", ms.id, err))
		}
	}
	return len(expired), errors.Join(errs...)
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (s *MapService) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Evict(ctx); err != nil {
				slog.Warn("map session eviction", "error", err)
			}
		}
	}
}

// ApplyMarkerMoved mirrors a persisted move into every other session.
func (s *MapService) ApplyMarkerMoved(ev *domain.MarkerMoved) int {
	return s.each(ev.SessionID, func(ms *mapSession) bool {
		i, ok := ms.index[ev.BusinessID]
		if !ok {
			return false
		}
		// A local drag in progress wins over the remote position.
		if _, dragging := ms.origin[ev.BusinessID]; dragging {
			return false
		}
		ms.pois[i].Location = ev.Location
		return true
	})
}

// ApplySponsorship updates marker kinds after a sponsorship change.
func (s *MapService) ApplySponsorship(sp *domain.Sponsorship) int {
	kind := mapview.KindStandard
	if sp.Level == domain.AdLevelPremium || sp.Level == domain.AdLevelEstandar {
		kind = mapview.KindFeatured
	}
	return s.each("", func(ms *mapSession) bool {
		i, ok := ms.index[sp.BusinessID]
		if !ok || ms.pois[i].Kind == kind {
			return false
		}
		ms.pois[i].Kind = kind
		return true
	})
}

func (s *MapService) each(skip string, fn func(ms *mapSession) bool) int {
	s.mu.Lock()
	targets := make([]*mapSession, 0, len(s.sessions))
	for id, ms := range s.sessions {
		if id != skip {
			targets = append(targets, ms)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, ms := range targets {
		ms.mu.Lock()
		changed := fn(ms)
		ms.mu.Unlock()
		if changed {
			ms.signal()
			n++
		}
	}
	return n
}
