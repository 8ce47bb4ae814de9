package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"mediaserver/internal/domain"
	"mediaserver/internal/infra"
	"mediaserver/internal/providers/image"
	"mediaserver/internal/providers/video"
)

var errUpstreamDown = errors.New("upstream down")

type memRepo struct {
	mu        sync.Mutex
	recs      map[string]*domain.HistoryRecord
	insertErr error
}

func newMemRepo() *memRepo {
	return &memRepo{recs: make(map[string]*domain.HistoryRecord)}
}

func (m *memRepo) Insert(ctx context.Context, rec *domain.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.recs[rec.ID]; ok {
		return domain.ErrConflict
	}
	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.recs[rec.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(ctx context.Context, id string) (*domain.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memRepo) GetForOwner(ctx context.Context, id, username string) (*domain.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok || rec.Username != username {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memRepo) ListByUsername(ctx context.Context, username string, page, pageSize int, kind domain.Kind) (*domain.HistoryPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*domain.HistoryRecord
	for _, rec := range m.recs {
		if username != "" && rec.Username != username {
			continue
		}
		if kind != "" && rec.Kind != kind {
			continue
		}
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	out := &domain.HistoryPage{TotalCount: len(all)}
	start := (page - 1) * pageSize
	for i := start; i < len(all) && i < start+pageSize; i++ {
		out.Items = append(out.Items, *all[i])
	}
	return out, nil
}

func (m *memRepo) MarkCompleted(ctx context.Context, id string, urls []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok || rec.Status != domain.StatusProcessing {
		return false, nil
	}
	rec.Status = domain.StatusCompleted
	rec.GeneratedURLs = append([]string(nil), urls...)
	rec.ErrorMessage = ""
	rec.UpdatedAt = time.Now()
	return true, nil
}

func (m *memRepo) MarkFailed(ctx context.Context, id, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok || rec.Status != domain.StatusProcessing {
		return false, nil
	}
	rec.Status = domain.StatusFailed
	rec.ErrorMessage = message
	rec.GeneratedURLs = nil
	rec.UpdatedAt = time.Now()
	return true, nil
}

func (m *memRepo) FailStale(ctx context.Context, olderThan time.Time, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, rec := range m.recs {
		if rec.Status == domain.StatusProcessing && rec.CreatedAt.Before(olderThan) {
			rec.Status = domain.StatusFailed
			rec.ErrorMessage = message
			n++
		}
	}
	return n, nil
}

func (m *memRepo) get(id string) *domain.HistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

func (m *memRepo) onlyRecord() *domain.HistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.recs {
		cp := *rec
		return &cp
	}
	return nil
}

type stubStore struct {
	mu         sync.Mutex
	files      map[string][]byte
	fetched    []string
	writeErr   error
	saveErr    error
	resolveDir string
	counter    int
}

func newStubStore() *stubStore {
	return &stubStore{files: make(map[string][]byte)}
}

func (s *stubStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return "", s.writeErr
	}
	s.files[key] = append([]byte(nil), data...)
	return key, nil
}

func (s *stubStore) SaveFromURL(ctx context.Context, remoteURL, prefix, folder, ext string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.fetched = append(s.fetched, remoteURL)
	s.counter++
	key := fmt.Sprintf("%s/%s-%d%s", folder, prefix, s.counter, ext)
	s.files[key] = []byte("stub")
	return key, nil
}

func (s *stubStore) Resolve(key string) (string, error) {
	if s.resolveDir == "" {
		return "", fmt.Errorf("no resolve dir configured")
	}
	return s.resolveDir + "/" + key, nil
}

type stubImageGen struct {
	mu      sync.Mutex
	assets  []image.Asset
	err     error
	calls   int
	lastReq image.GenerateRequest
}

func (g *stubImageGen) Generate(ctx context.Context, req image.GenerateRequest) ([]image.Asset, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastReq = req
	if g.err != nil {
		return nil, g.err
	}
	return g.assets, nil
}

type stubVideoSub struct {
	mu      sync.Mutex
	err     error
	lastReq video.SubmitRequest
	done    chan struct{}
}

func newStubVideoSub() *stubVideoSub {
	return &stubVideoSub{done: make(chan struct{}, 1)}
}

func (g *stubVideoSub) Submit(ctx context.Context, req video.SubmitRequest) error {
	g.mu.Lock()
	g.lastReq = req
	err := g.err
	g.mu.Unlock()
	g.done <- struct{}{}
	return err
}

func (g *stubVideoSub) last() video.SubmitRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastReq
}

func newTestApp(repo *memRepo, store *stubStore, images *stubImageGen, videos *stubVideoSub) *App {
	app := &App{
		Config:   &infra.Config{PublicBaseURL: "https://media.example.com"},
		Logger:   zerolog.Nop(),
		History:  repo,
		Store:    store,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	if images != nil {
		app.Images = images
	}
	if videos != nil {
		app.Videos = videos
	}
	return app
}
