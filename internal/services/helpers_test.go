package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lovemoney/internal/amqp"
	"lovemoney/internal/cache"
	"lovemoney/internal/core"
	"lovemoney/internal/docstore"
	"lovemoney/internal/docstore/memory"
	"lovemoney/internal/period"
	"lovemoney/internal/records"
)

const uid = "u1"

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func reais(cents int64) core.Money {
	return core.Money{Cents: cents}
}

func month(t *testing.T, y int, m time.Month) period.Period {
	t.Helper()
	p, err := period.Month(y, m, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// spyStore counts queries and can fail or hold queries.
type spyStore struct {
	docstore.Store
	queries atomic.Int64

	mu      sync.Mutex
	failOn  string
	failErr error
	gate    *gate
}

// gate holds every query until its context ends.
type gate struct {
	entered chan struct{}
	once    sync.Once
}

func (s *spyStore) Query(ctx context.Context, coll docstore.CollectionRef, q docstore.Query) ([]docstore.Document, error) {
	s.queries.Add(1)
	s.mu.Lock()
	failOn, failErr, g := s.failOn, s.failErr, s.gate
	s.mu.Unlock()

	if failOn != "" && strings.HasSuffix(coll.Path(), failOn) {
		return nil, failErr
	}
	if g != nil {
		g.once.Do(func() { close(g.entered) })
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.Store.Query(ctx, coll, q)
}

func (s *spyStore) fail(suffix string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn, s.failErr = suffix, err
}

// hold makes queries block and returns a channel closed by the first one.
func (s *spyStore) hold() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = &gate{entered: make(chan struct{})}
	return s.gate.entered
}

func (s *spyStore) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.RecordsChangedMessage
}

func (p *fakePublisher) PublishRecordsChanged(_ context.Context, msg *amqp.RecordsChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) last() *amqp.RecordsChangedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		return nil
	}
	return p.msgs[len(p.msgs)-1]
}

type env struct {
	mem       *memory.Store
	store     *spyStore
	repo      *records.Repository
	revisions *Revisions
	pub       *fakePublisher
	changes   *Changes
	loader    *Loader
	mutations *Mutations
	forms     *Forms
	dashboard *Dashboard
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mem := memory.New()
	spy := &spyStore{Store: mem}
	repo := records.NewRepository(spy, time.UTC, nil)
	revs := NewRevisions()
	pub := &fakePublisher{}
	changes := NewChanges(revs, pub, nil)
	loader := NewLoader(repo, cache.NewLRUCache[Summary](16, time.Minute), revs, nil)
	e := &env{
		mem:       mem,
		store:     spy,
		repo:      repo,
		revisions: revs,
		pub:       pub,
		changes:   changes,
		loader:    loader,
		mutations: NewMutations(repo, changes, nil),
		forms:     NewForms(repo, changes),
		dashboard: NewDashboard(repo, loader),
	}
	return e
}
