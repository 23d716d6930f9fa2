// Package sqlite stores documents as JSON rows in a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lovemoney/internal/docstore"

	_ "modernc.org/sqlite"
)

const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// indexedFields maps fields with an expression index to their SQL expression.
// Equality filters on them are pushed down to SQLite.
var indexedFields = map[string]string{
	"chaveUnica": "json_extract(body, '$.chaveUnica')",
}

// dateFields maps indexed timestamp fields to their whole-second epoch
// expression. Range filters on them are pushed down widened to whole
// seconds; the exact bounds are still checked by Query.Match.
var dateFields = map[string]string{
	"data":          `unixepoch(json_extract(body, '$.data."$time"'))`,
	"dataPagamento": `unixepoch(json_extract(body, '$.dataPagamento."$time"'))`,
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file if needed and migrates it.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?" + pragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Get(ctx context.Context, ref docstore.DocRef) (docstore.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`,
		ref.Collection.Path(), ref.ID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, fmt.Errorf("%s: %w", ref, docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref, err)
	}
	fields, err := docstore.DecodeJSON([]byte(body))
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", ref, err)
	}
	return docstore.Document{ID: ref.ID, Fields: fields}, nil
}

func (s *Store) Query(ctx context.Context, coll docstore.CollectionRef, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	sqlText, args := buildQuery(coll, q)
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	defer rows.Close()

	var out []docstore.Document
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", coll, err)
		}
		fields, err := docstore.DecodeJSON([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", coll, id, err)
		}
		// Every filter is evaluated here as well so that timestamp and
		// numeric comparisons follow docstore semantics exactly.
		if q.Match(fields) {
			out = append(out, docstore.Document{ID: id, Fields: fields})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	return out, nil
}

func ceilUnix(t time.Time) int64 {
	if t.Nanosecond() > 0 {
		return t.Unix() + 1
	}
	return t.Unix()
}

func buildQuery(coll docstore.CollectionRef, q docstore.Query) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, body FROM documents WHERE collection = ?`)
	args := []any{coll.Path()}
	for _, f := range q.Filters {
		if f.Op.IsRange() {
			expr, ok := dateFields[f.Field]
			t, isTime := f.Value.(time.Time)
			if !ok || !isTime {
				continue
			}
			switch f.Op {
			case docstore.OpGT, docstore.OpGTE:
				sb.WriteString(" AND " + expr + " >= ?")
				args = append(args, t.Unix())
			case docstore.OpLT, docstore.OpLTE:
				sb.WriteString(" AND " + expr + " <= ?")
				args = append(args, ceilUnix(t))
			}
			continue
		}
		expr, ok := indexedFields[f.Field]
		if !ok || f.Op != docstore.OpEq {
			continue
		}
		if v, isString := f.Value.(string); isString {
			sb.WriteString(" AND " + expr + " = ?")
			args = append(args, v)
		}
	}
	sb.WriteString(` ORDER BY id`)
	return sb.String(), args
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

// Commit runs the whole batch in one transaction.
func (s *Store) Commit(ctx context.Context, b *docstore.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC().Format(time.RFC3339Nano)
	for _, m := range b.Mutations() {
		if err := apply(ctx, tx, m, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func apply(ctx context.Context, tx *sql.Tx, m docstore.Mutation, now string) error {
	coll, id := m.Ref.Collection.Path(), m.Ref.ID
	switch m.Type {
	case docstore.MutationCreate:
		body, err := docstore.EncodeJSON(m.Fields)
		if err != nil {
			return fmt.Errorf("create %s: %w", m.Ref, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			coll, id, string(body), now, now); err != nil {
			return fmt.Errorf("create %s: %w", m.Ref, err)
		}

	case docstore.MutationUpdate:
		var body string
		err := tx.QueryRowContext(ctx,
			`SELECT body FROM documents WHERE collection = ? AND id = ?`, coll, id).Scan(&body)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update %s: %w", m.Ref, docstore.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("update %s: %w", m.Ref, err)
		}
		fields, err := docstore.DecodeJSON([]byte(body))
		if err != nil {
			return fmt.Errorf("update %s: %w", m.Ref, err)
		}
		fields.Merge(m.Fields)
		merged, err := docstore.EncodeJSON(fields)
		if err != nil {
			return fmt.Errorf("update %s: %w", m.Ref, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?`,
			string(merged), now, coll, id); err != nil {
			return fmt.Errorf("update %s: %w", m.Ref, err)
		}

	case docstore.MutationDelete:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`, coll, id); err != nil {
			return fmt.Errorf("delete %s: %w", m.Ref, err)
		}

	default:
		return fmt.Errorf("unknown mutation %v", m.Type)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
