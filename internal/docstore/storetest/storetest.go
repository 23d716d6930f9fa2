// Package storetest holds behaviour tests shared by every docstore backend.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"lovemoney/internal/docstore"
)

// Run exercises a backend. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) docstore.Store) {
	t.Run("CreateGet", func(t *testing.T) { testCreateGet(t, newStore(t)) })
	t.Run("UpdateMerges", func(t *testing.T) { testUpdateMerges(t, newStore(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("RangeQuery", func(t *testing.T) { testRangeQuery(t, newStore(t)) })
	t.Run("EqualityQuery", func(t *testing.T) { testEqualityQuery(t, newStore(t)) })
	t.Run("MissingQuery", func(t *testing.T) { testMissingQuery(t, newStore(t)) })
	t.Run("CollectionsIsolated", func(t *testing.T) { testCollectionsIsolated(t, newStore(t)) })
	t.Run("BatchAtomic", func(t *testing.T) { testBatchAtomic(t, newStore(t)) })
	t.Run("BatchApplies", func(t *testing.T) { testBatchApplies(t, newStore(t)) })
}

var (
	expenses = docstore.MustCollection("usuarios", "u1", "gastos")
	boletos  = docstore.MustCollection("usuarios", "u1", "boletos")
	others   = docstore.MustCollection("usuarios", "u2", "gastos")
)

func day(d int) time.Time {
	return time.Date(2024, time.May, d, 12, 0, 0, 0, time.UTC)
}

func mustCreate(t *testing.T, s docstore.Store, coll docstore.CollectionRef, f docstore.Fields) docstore.DocRef {
	t.Helper()
	id, err := s.Create(context.Background(), coll, f)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	ref, err := coll.Doc(id)
	if err != nil {
		t.Fatalf("Doc() error = %v", err)
	}
	return ref
}

func testCreateGet(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref := mustCreate(t, s, expenses, docstore.Fields{
		"descricao": "Mercado",
		"valor":     150.25,
		"parcela":   1,
		"data":      day(3),
		"recorrente": true,
		"canceladaEm": nil,
	})
	doc, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.ID != ref.ID {
		t.Errorf("ID = %q, want %q", doc.ID, ref.ID)
	}
	if doc.Fields.String("descricao") != "Mercado" {
		t.Errorf("descricao = %v", doc.Fields["descricao"])
	}
	if v, _ := doc.Fields.Float("valor"); v != 150.25 {
		t.Errorf("valor = %v", doc.Fields["valor"])
	}
	if v, ok := doc.Fields.Int("parcela"); !ok || v != 1 {
		t.Errorf("parcela = %v", doc.Fields["parcela"])
	}
	if v, ok := doc.Fields.Time("data"); !ok || !v.Equal(day(3)) {
		t.Errorf("data = %v", doc.Fields["data"])
	}
	if v, ok := doc.Fields.Bool("recorrente"); !ok || !v {
		t.Errorf("recorrente = %v", doc.Fields["recorrente"])
	}
	if doc.Fields.Has("canceladaEm") {
		t.Errorf("canceladaEm = %v, want nil", doc.Fields["canceladaEm"])
	}

	missing, _ := expenses.Doc("nope")
	if _, err := s.Get(ctx, missing); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func testUpdateMerges(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref := mustCreate(t, s, expenses, docstore.Fields{"descricao": "Luz", "valor": 100.0})
	if err := s.Update(ctx, ref, docstore.Fields{"valor": 120.5}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	doc, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Fields.String("descricao") != "Luz" {
		t.Error("Update must keep untouched fields")
	}
	if v, _ := doc.Fields.Float("valor"); v != 120.5 {
		t.Errorf("valor = %v, want 120.5", v)
	}
}

func testUpdateMissing(t *testing.T, s docstore.Store) {
	ref, _ := expenses.Doc("ghost")
	if err := s.Update(context.Background(), ref, docstore.Fields{"valor": 1.0}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

func testDelete(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	ref := mustCreate(t, s, expenses, docstore.Fields{"descricao": "Gás"})
	if err := s.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, ref); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Get after Delete error = %v", err)
	}
	if err := s.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete(missing) error = %v, want nil", err)
	}
}

func testRangeQuery(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	for _, d := range []int{1, 10, 20, 31} {
		mustCreate(t, s, expenses, docstore.Fields{"data": day(d), "dia": d})
	}
	mustCreate(t, s, expenses, docstore.Fields{"descricao": "sem data"})

	tests := []struct {
		name string
		q    docstore.Query
		want []int
	}{
		{"inclusive both", docstore.Where("data", docstore.OpGTE, day(10)).Where("data", docstore.OpLTE, day(20)), []int{10, 20}},
		{"exclusive end", docstore.Where("data", docstore.OpGTE, day(10)).Where("data", docstore.OpLT, day(20)), []int{10}},
		{"exclusive start", docstore.Where("data", docstore.OpGT, day(1)).Where("data", docstore.OpLTE, day(31)), []int{10, 20, 31}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.Query(ctx, expenses, tt.q)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			got := map[int]bool{}
			for _, d := range docs {
				v, _ := d.Fields.Int("dia")
				got[v] = true
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got days %v, want %v", got, tt.want)
			}
			for _, w := range tt.want {
				if !got[w] {
					t.Errorf("missing day %d", w)
				}
			}
			for i := 1; i < len(docs); i++ {
				if docs[i-1].ID > docs[i].ID {
					t.Fatal("results must be ordered by ID")
				}
			}
		})
	}

	bad := docstore.Where("data", docstore.OpGTE, day(1)).Where("criadoEm", docstore.OpLTE, day(2))
	if _, err := s.Query(ctx, expenses, bad); !errors.Is(err, docstore.ErrInvalidQuery) {
		t.Errorf("Query(two range fields) error = %v, want ErrInvalidQuery", err)
	}
}

func testEqualityQuery(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		mustCreate(t, s, boletos, docstore.Fields{"chaveUnica": "g1", "parcela": i})
	}
	mustCreate(t, s, boletos, docstore.Fields{"chaveUnica": "g2", "parcela": 1})

	docs, err := s.Query(ctx, boletos, docstore.Where("chaveUnica", docstore.OpEq, "g1"))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d docs, want 3", len(docs))
	}
	for _, d := range docs {
		if d.Fields.String("chaveUnica") != "g1" {
			t.Errorf("unexpected doc %v", d.Fields)
		}
	}
}

func testMissingQuery(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	mustCreate(t, s, expenses, docstore.Fields{"data": day(5), "descricao": "datada"})
	mustCreate(t, s, expenses, docstore.Fields{"descricao": "sem data"})
	mustCreate(t, s, expenses, docstore.Fields{"data": nil, "descricao": "data nula"})

	docs, err := s.Query(ctx, expenses, docstore.Where("data", docstore.OpMissing, nil))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	got := map[string]bool{}
	for _, d := range docs {
		got[d.Fields.String("descricao")] = true
	}
	if len(got) != 2 || !got["sem data"] || !got["data nula"] {
		t.Errorf("missing query returned %v, want the two undated docs", got)
	}

	// A missing filter combines with a range on another field.
	q := docstore.Where("data", docstore.OpMissing, nil).Where("criadoEm", docstore.OpGTE, day(1))
	if _, err := s.Query(ctx, expenses, q); err != nil {
		t.Errorf("Query(missing + range) error = %v", err)
	}
}

func testCollectionsIsolated(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	mustCreate(t, s, expenses, docstore.Fields{"descricao": "u1"})
	mustCreate(t, s, others, docstore.Fields{"descricao": "u2"})

	docs, err := s.Query(ctx, others, docstore.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].Fields.String("descricao") != "u2" {
		t.Fatalf("collection leak: %v", docs)
	}
}

func testBatchAtomic(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	keep := mustCreate(t, s, boletos, docstore.Fields{"chaveUnica": "g", "parcela": 1})
	missing, _ := boletos.Doc("does-not-exist")

	b := docstore.NewBatch()
	b.Delete(keep)
	b.Create(boletos, docstore.Fields{"chaveUnica": "g", "parcela": 2})
	b.Update(missing, docstore.Fields{"valor": 1.0})
	if err := s.Commit(ctx, b); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Commit() error = %v, want ErrNotFound", err)
	}

	docs, err := s.Query(ctx, boletos, docstore.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != keep.ID {
		t.Fatalf("failed batch must leave the store untouched, got %v", docs)
	}
}

func testBatchApplies(t *testing.T, s docstore.Store) {
	ctx := context.Background()
	a := mustCreate(t, s, boletos, docstore.Fields{"parcela": 1, "dataPagamento": day(5)})
	b := mustCreate(t, s, boletos, docstore.Fields{"parcela": 2, "dataPagamento": day(6)})

	batch := docstore.NewBatch()
	batch.Update(a, docstore.Fields{"dataPagamento": day(15)})
	batch.Delete(b)
	created := batch.Create(boletos, docstore.Fields{"parcela": 3})
	if err := s.Commit(ctx, batch); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	doc, err := s.Get(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := doc.Fields.Time("dataPagamento"); !v.Equal(day(15)) {
		t.Errorf("dataPagamento = %v", v)
	}
	if _, err := s.Get(ctx, b); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("deleted doc still present: %v", err)
	}
	if _, err := s.Get(ctx, created); err != nil {
		t.Errorf("created doc missing: %v", err)
	}
}
