package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"lovemoney/internal/docstore"
	"lovemoney/internal/docstore/storetest"
)

func TestBuildFilter(t *testing.T) {
	coll := docstore.MustCollection("usuarios", "u1", "cartoes", "c1", "gastos")
	start := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	got := buildFilter(coll, docstore.Where("data", docstore.OpGTE, start).
		Where("data", docstore.OpLT, end).
		Where("tipo", docstore.OpEq, "assinaturas"))

	want := bson.D{
		{Key: "collection", Value: "usuarios/u1/cartoes/c1/gastos"},
		{Key: "fields.data", Value: bson.D{{Key: "$gte", Value: start}, {Key: "$lt", Value: end}}},
		{Key: "fields.tipo", Value: bson.D{{Key: "$eq", Value: "assinaturas"}}},
	}
	gotJSON, _ := bson.MarshalExtJSON(got, true, false)
	wantJSON, _ := bson.MarshalExtJSON(want, true, false)
	if string(gotJSON) != string(wantJSON) {
		t.Errorf("buildFilter() = %s, want %s", gotJSON, wantJSON)
	}
}

func TestBuildFilter_Missing(t *testing.T) {
	got := buildFilter(docstore.MustCollection("usuarios", "u1", "gastos"), docstore.Where("data", docstore.OpMissing, nil))
	want := bson.D{
		{Key: "collection", Value: "usuarios/u1/gastos"},
		{Key: "fields.data", Value: bson.D{{Key: "$eq", Value: nil}}},
	}
	gotJSON, _ := bson.MarshalExtJSON(got, true, false)
	wantJSON, _ := bson.MarshalExtJSON(want, true, false)
	if string(gotJSON) != string(wantJSON) {
		t.Errorf("buildFilter() = %s, want %s", gotJSON, wantJSON)
	}
}

func TestBuildFilter_Empty(t *testing.T) {
	got := buildFilter(docstore.MustCollection("usuarios", "u1", "gastos"), docstore.Query{})
	if len(got) != 1 || got[0].Key != "collection" {
		t.Errorf("buildFilter() = %v", got)
	}
}

func TestFromBSON(t *testing.T) {
	when := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	got := fromBSON(bson.M{
		"data":     primitive.NewDateTimeFromTime(when),
		"parcela":  int32(3),
		"valor":    99.9,
		"servico":  "Netflix",
		"canceled": primitive.Null{},
	})
	if d, ok := got.Time("data"); !ok || !d.Equal(when) {
		t.Errorf("data = %v", got["data"])
	}
	if n, ok := got.Int("parcela"); !ok || n != 3 {
		t.Errorf("parcela = %#v", got["parcela"])
	}
	if v, _ := got.Float("valor"); v != 99.9 {
		t.Errorf("valor = %v", got["valor"])
	}
	if got.Has("canceled") {
		t.Errorf("canceled = %v, want nil", got["canceled"])
	}
}

// TestStore runs against a live replica set when MONGO_TEST_URI is set.
func TestStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	storetest.Run(t, func(t *testing.T) docstore.Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db := "lovemoney_test_" + docstore.NewID()[:8]
		s, err := Open(ctx, uri, db)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		t.Cleanup(func() {
			_ = s.client.Database(db).Drop(context.Background())
			s.Close()
		})
		return s
	})
}
