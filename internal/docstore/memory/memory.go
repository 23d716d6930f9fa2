// Package memory is an in-process document store for tests and local runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"lovemoney/internal/docstore"
)

type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]docstore.Fields
}

func New() *Store {
	return &Store{collections: make(map[string]map[string]docstore.Fields)}
}

// NewFromFile seeds a store from a JSON file shaped as
// {"collection/path": {"docId": {field: value}}}. Timestamps use the
// {"$time": "RFC3339"} form written by docstore.EncodeJSON.
// A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for coll, docs := range raw {
		for id, body := range docs {
			fields, err := docstore.DecodeJSON(body)
			if err != nil {
				return nil, fmt.Errorf("seed %s/%s: %w", coll, id, err)
			}
			s.docs(coll)[id] = fields
		}
	}
	return s, nil
}

// docs returns the collection map, creating it. Caller holds the write lock.
func (s *Store) docs(coll string) map[string]docstore.Fields {
	m, ok := s.collections[coll]
	if !ok {
		m = make(map[string]docstore.Fields)
		s.collections[coll] = m
	}
	return m
}

func (s *Store) Get(ctx context.Context, ref docstore.DocRef) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.collections[ref.Collection.Path()][ref.ID]
	if !ok {
		return docstore.Document{}, fmt.Errorf("%s: %w", ref, docstore.ErrNotFound)
	}
	return docstore.Document{ID: ref.ID, Fields: f.Clone()}, nil
}

func (s *Store) Query(ctx context.Context, coll docstore.CollectionRef, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []docstore.Document
	for id, f := range s.collections[coll.Path()] {
		if q.Match(f) {
			out = append(out, docstore.Document{ID: id, Fields: f.Clone()})
		}
	}
	docstore.SortByID(out)
	return out, nil
}

func (s *Store) Create(ctx context.Context, coll docstore.CollectionRef, fields docstore.Fields) (string, error) {
	b := docstore.NewBatch()
	ref := b.Create(coll, fields)
	if err := s.Commit(ctx, b); err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (s *Store) Update(ctx context.Context, ref docstore.DocRef, fields docstore.Fields) error {
	b := docstore.NewBatch()
	b.Update(ref, fields)
	return s.Commit(ctx, b)
}

func (s *Store) Delete(ctx context.Context, ref docstore.DocRef) error {
	b := docstore.NewBatch()
	b.Delete(ref)
	return s.Commit(ctx, b)
}

// Commit validates every mutation before applying any, so a failing batch
// leaves the store untouched.
func (s *Store) Commit(ctx context.Context, b *docstore.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make(map[string]bool)
	deleted := make(map[string]bool)
	for _, m := range b.Mutations() {
		path := m.Ref.Path()
		switch m.Type {
		case docstore.MutationCreate:
			if _, exists := s.collections[m.Ref.Collection.Path()][m.Ref.ID]; exists || created[path] {
				return fmt.Errorf("create %s: document already exists", path)
			}
			created[path] = true
			delete(deleted, path)
		case docstore.MutationUpdate:
			_, exists := s.collections[m.Ref.Collection.Path()][m.Ref.ID]
			if (!exists && !created[path]) || deleted[path] {
				return fmt.Errorf("update %s: %w", path, docstore.ErrNotFound)
			}
		case docstore.MutationDelete:
			deleted[path] = true
			delete(created, path)
		}
	}

	for _, m := range b.Mutations() {
		coll := m.Ref.Collection.Path()
		switch m.Type {
		case docstore.MutationCreate:
			s.docs(coll)[m.Ref.ID] = m.Fields.Clone()
		case docstore.MutationUpdate:
			s.docs(coll)[m.Ref.ID].Merge(m.Fields)
		case docstore.MutationDelete:
			delete(s.docs(coll), m.Ref.ID)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error {
	return nil
}

// Len returns the number of documents in a collection.
func (s *Store) Len(coll docstore.CollectionRef) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[coll.Path()])
}
