// Package docstore defines the document-store port used by the record
// repository: collections of schemaless documents addressed by slash paths,
// simple equality and single-field range queries, and atomic batches.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidPath  = errors.New("invalid document path")
	ErrInvalidQuery = errors.New("invalid query")
)

// Store is implemented by every backend.
type Store interface {
	// Get returns one document or ErrNotFound.
	Get(ctx context.Context, ref DocRef) (Document, error)
	// Query returns the documents of one collection matching q, ordered by ID.
	Query(ctx context.Context, coll CollectionRef, q Query) ([]Document, error)
	// Create stores fields under a generated ID.
	Create(ctx context.Context, coll CollectionRef, fields Fields) (string, error)
	// Update merges fields into an existing document or returns ErrNotFound.
	Update(ctx context.Context, ref DocRef, fields Fields) error
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, ref DocRef) error
	// Commit applies every mutation of b or none of them.
	Commit(ctx context.Context, b *Batch) error
	Ping(ctx context.Context) error
	Close() error
}

// Document is an opaque key-value mapping with its ID.
type Document struct {
	ID     string
	Fields Fields
}

// NewID generates a document ID.
func NewID() string {
	return uuid.NewString()
}

// CollectionRef addresses a collection, e.g. "usuarios/u1/cartoes/c1/gastos".
type CollectionRef struct {
	path string
}

// Collection joins path segments. Segments must be non-empty and free of '/'.
func Collection(segments ...string) (CollectionRef, error) {
	if len(segments) == 0 || len(segments)%2 == 0 {
		return CollectionRef{}, fmt.Errorf("%w: collection needs an odd number of segments, got %d", ErrInvalidPath, len(segments))
	}
	for _, s := range segments {
		if err := validSegment(s); err != nil {
			return CollectionRef{}, err
		}
	}
	return CollectionRef{path: strings.Join(segments, "/")}, nil
}

// MustCollection is Collection for static paths.
func MustCollection(segments ...string) CollectionRef {
	c, err := Collection(segments...)
	if err != nil {
		panic(err)
	}
	return c
}

func validSegment(s string) error {
	if strings.TrimSpace(s) == "" || strings.Contains(s, "/") {
		return fmt.Errorf("%w: bad segment %q", ErrInvalidPath, s)
	}
	return nil
}

// Path is the slash-joined collection path.
func (c CollectionRef) Path() string { return c.path }

func (c CollectionRef) String() string { return c.path }

// IsZero reports an unset reference.
func (c CollectionRef) IsZero() bool { return c.path == "" }

// Doc addresses a document in c.
func (c CollectionRef) Doc(id string) (DocRef, error) {
	if c.IsZero() {
		return DocRef{}, fmt.Errorf("%w: empty collection", ErrInvalidPath)
	}
	if err := validSegment(id); err != nil {
		return DocRef{}, err
	}
	return DocRef{Collection: c, ID: id}, nil
}

// DocRef addresses one document.
type DocRef struct {
	Collection CollectionRef
	ID         string
}

// Path is the full document path.
func (d DocRef) Path() string { return d.Collection.path + "/" + d.ID }

func (d DocRef) String() string { return d.Path() }

// Sub addresses a sub-collection of the document.
func (d DocRef) Sub(name string) (CollectionRef, error) {
	if err := validSegment(name); err != nil {
		return CollectionRef{}, err
	}
	return CollectionRef{path: d.Path() + "/" + name}, nil
}

// Op is a comparison operator.
type Op string

const (
	OpEq      Op = "=="
	OpGT      Op = ">"
	OpGTE     Op = ">="
	OpLT      Op = "<"
	OpLTE     Op = "<="
	// OpMissing matches documents where the field is absent or null.
	// Its value is ignored.
	OpMissing Op = "missing"
)

func (o Op) valid() bool {
	switch o {
	case OpEq, OpGT, OpGTE, OpLT, OpLTE, OpMissing:
		return true
	}
	return false
}

// IsRange is true for the ordering operators.
func (o Op) IsRange() bool {
	switch o {
	case OpGT, OpGTE, OpLT, OpLTE:
		return true
	}
	return false
}

// Filter is one predicate on a field.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query is a conjunction of filters.
type Query struct {
	Filters []Filter
}

// Where starts a query.
func Where(field string, op Op, value any) Query {
	return Query{}.Where(field, op, value)
}

// Where appends a filter.
func (q Query) Where(field string, op Op, value any) Query {
	fs := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(fs, q.Filters)
	q.Filters = append(fs, Filter{Field: field, Op: op, Value: normalize(value)})
	return q
}

// Validate enforces the supported query shape: equality or missing on any
// field and range operators on at most one field.
func (q Query) Validate() error {
	rangeField := ""
	for _, f := range q.Filters {
		if strings.TrimSpace(f.Field) == "" {
			return fmt.Errorf("%w: empty field", ErrInvalidQuery)
		}
		if !f.Op.valid() {
			return fmt.Errorf("%w: operator %q", ErrInvalidQuery, f.Op)
		}
		if !f.Op.IsRange() {
			continue
		}
		if rangeField != "" && rangeField != f.Field {
			return fmt.Errorf("%w: range filters on %q and %q", ErrInvalidQuery, rangeField, f.Field)
		}
		rangeField = f.Field
	}
	return nil
}

// Match evaluates q against fields. A missing field only matches OpMissing.
func (q Query) Match(fields Fields) bool {
	for _, f := range q.Filters {
		v, ok := fields[f.Field]
		if f.Op == OpMissing {
			if ok && v != nil {
				return false
			}
			continue
		}
		if !ok || v == nil {
			return false
		}
		c, ok := compare(v, f.Value)
		if !ok {
			return false
		}
		switch f.Op {
		case OpEq:
			if c != 0 {
				return false
			}
		case OpGT:
			if c <= 0 {
				return false
			}
		case OpGTE:
			if c < 0 {
				return false
			}
		case OpLT:
			if c >= 0 {
				return false
			}
		case OpLTE:
			if c > 0 {
				return false
			}
		}
	}
	return true
}

// SortByID orders documents by ID in place.
func SortByID(docs []Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}

// MutationType is the kind of write in a batch.
type MutationType int

const (
	MutationCreate MutationType = iota
	MutationUpdate
	MutationDelete
)

func (t MutationType) String() string {
	switch t {
	case MutationCreate:
		return "create"
	case MutationUpdate:
		return "update"
	case MutationDelete:
		return "delete"
	}
	return "unknown"
}

// Mutation is one write of a batch.
type Mutation struct {
	Type   MutationType
	Ref    DocRef
	Fields Fields
}

// Batch collects writes committed atomically by Store.Commit.
type Batch struct {
	mutations []Mutation
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Create queues a new document and returns its reference.
func (b *Batch) Create(coll CollectionRef, fields Fields) DocRef {
	ref := DocRef{Collection: coll, ID: NewID()}
	b.mutations = append(b.mutations, Mutation{Type: MutationCreate, Ref: ref, Fields: fields.Clone()})
	return ref
}

// Update queues a merge into an existing document.
func (b *Batch) Update(ref DocRef, fields Fields) {
	b.mutations = append(b.mutations, Mutation{Type: MutationUpdate, Ref: ref, Fields: fields.Clone()})
}

// Delete queues a removal.
func (b *Batch) Delete(ref DocRef) {
	b.mutations = append(b.mutations, Mutation{Type: MutationDelete, Ref: ref})
}

// Mutations returns the queued writes in order.
func (b *Batch) Mutations() []Mutation {
	return b.mutations
}

// Len is the number of queued writes.
func (b *Batch) Len() int {
	return len(b.mutations)
}
