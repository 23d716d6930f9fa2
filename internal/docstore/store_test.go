package docstore

import (
	"errors"
	"testing"
	"time"
)

func TestCollection(t *testing.T) {
	c, err := Collection("usuarios", "u1", "cartoes")
	if err != nil {
		t.Fatalf("Collection() error = %v", err)
	}
	d, err := c.Doc("c1")
	if err != nil {
		t.Fatalf("Doc() error = %v", err)
	}
	sub, err := d.Sub("gastos")
	if err != nil {
		t.Fatalf("Sub() error = %v", err)
	}
	if sub.Path() != "usuarios/u1/cartoes/c1/gastos" {
		t.Errorf("Path() = %q", sub.Path())
	}

	bad := [][]string{
		{},
		{"usuarios", "u1"},
		{"usuarios", "", "gastos"},
		{"usuarios", "a/b", "gastos"},
	}
	for _, segs := range bad {
		if _, err := Collection(segs...); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Collection(%v) error = %v, want ErrInvalidPath", segs, err)
		}
	}
	if _, err := c.Doc(""); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Doc(\"\") error = %v", err)
	}
}

func TestQueryValidate(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)

	ok := []Query{
		{},
		Where("data", OpGTE, from).Where("data", OpLTE, to),
		Where("tipo", OpEq, "assinaturas").Where("data", OpLT, to),
		Where("data", OpMissing, nil).Where("criadoEm", OpGTE, from),
	}
	for i, q := range ok {
		if err := q.Validate(); err != nil {
			t.Errorf("case %d: Validate() error = %v", i, err)
		}
	}

	bad := []Query{
		Where("data", OpGTE, from).Where("criadoEm", OpLTE, to),
		Where("", OpEq, "x"),
		Where("data", Op("!="), from),
	}
	for i, q := range bad {
		if err := q.Validate(); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("case %d: Validate() error = %v, want ErrInvalidQuery", i, err)
		}
	}
}

func TestQueryMatch(t *testing.T) {
	may10 := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	doc := Fields{
		"data":       may10,
		"valor":      int64(100),
		"chaveUnica": "g1",
		"recorrente": true,
		"cancelado":  nil,
	}

	tests := []struct {
		name string
		q    Query
		want bool
	}{
		{"empty query", Query{}, true},
		{"inclusive lower bound", Where("data", OpGTE, may10), true},
		{"exclusive upper bound", Where("data", OpLT, may10), false},
		{"inclusive upper bound", Where("data", OpLTE, may10), true},
		{"strict lower bound", Where("data", OpGT, may10), false},
		{"string equality", Where("chaveUnica", OpEq, "g1"), true},
		{"string inequality", Where("chaveUnica", OpEq, "g2"), false},
		{"int against float", Where("valor", OpEq, 100.0), true},
		{"int against int", Where("valor", OpGT, 99), true},
		{"bool equality", Where("recorrente", OpEq, true), true},
		{"type mismatch", Where("data", OpEq, "2024-05-10"), false},
		{"missing field", Where("dataPagamento", OpGTE, may10), false},
		{"absent field is missing", Where("dataPagamento", OpMissing, nil), true},
		{"null field is missing", Where("cancelado", OpMissing, nil), true},
		{"present field is not missing", Where("data", OpMissing, nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Match(doc); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFieldsAccessors(t *testing.T) {
	ts := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	f := Fields{
		"s":      "texto",
		"f":      12.5,
		"i":      int64(3),
		"n":      "19,90",
		"num":    "19.90",
		"b":      false,
		"t":      ts,
		"ts":     "2024-01-05T12:00:00Z",
		"absent": nil,
	}

	if f.String("s") != "texto" || f.String("f") != "" {
		t.Error("String() mismatch")
	}
	if v, ok := f.Float("f"); !ok || v != 12.5 {
		t.Errorf("Float(f) = %v, %v", v, ok)
	}
	if v, ok := f.Float("num"); !ok || v != 19.9 {
		t.Errorf("Float(num) = %v, %v", v, ok)
	}
	if _, ok := f.Float("n"); ok {
		t.Error("Float should reject comma decimals")
	}
	if v, ok := f.Int("i"); !ok || v != 3 {
		t.Errorf("Int(i) = %v, %v", v, ok)
	}
	if _, ok := f.Int("f"); ok {
		t.Error("Int should reject fractional values")
	}
	if v, ok := f.Bool("b"); !ok || v {
		t.Errorf("Bool(b) = %v, %v", v, ok)
	}
	if v, ok := f.Time("t"); !ok || !v.Equal(ts) {
		t.Errorf("Time(t) = %v, %v", v, ok)
	}
	if v, ok := f.Time("ts"); !ok || !v.Equal(ts) {
		t.Errorf("Time(ts) = %v, %v", v, ok)
	}
	if f.Has("absent") || !f.Has("b") {
		t.Error("Has() mismatch")
	}
}

func TestJSONEncoding(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.FixedZone("BRT", -3*60*60))
	in := Fields{
		"descricao":   "Netflix",
		"valor":       39.9,
		"parcela":     3,
		"recorrente":  true,
		"diaPagamento": ts,
		"canceladaEm": nil,
	}
	data, err := EncodeJSON(in)
	if err != nil {
		t.Fatalf("EncodeJSON() error = %v", err)
	}
	out, err := DecodeJSON(data)
	if err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}

	if out.String("descricao") != "Netflix" {
		t.Errorf("descricao = %v", out["descricao"])
	}
	if v, _ := out.Float("valor"); v != 39.9 {
		t.Errorf("valor = %v", out["valor"])
	}
	if v, ok := out["parcela"].(int64); !ok || v != 3 {
		t.Errorf("parcela = %#v", out["parcela"])
	}
	if v, ok := out.Time("diaPagamento"); !ok || !v.Equal(ts) {
		t.Errorf("diaPagamento = %v", out["diaPagamento"])
	}
	if v, ok := out["canceladaEm"]; !ok || v != nil {
		t.Errorf("canceladaEm = %#v", v)
	}

	if _, err := EncodeJSON(Fields{"x": []string{"a"}}); err == nil {
		t.Error("expected error for unsupported type")
	}
	if _, err := DecodeJSON([]byte(`{"x":{"nested":1}}`)); err == nil {
		t.Error("expected error for nested object")
	}
}

func TestBatch(t *testing.T) {
	coll := MustCollection("usuarios", "u1", "boletos")
	b := NewBatch()
	r1 := b.Create(coll, Fields{"parcela": 1})
	r2 := b.Create(coll, Fields{"parcela": 2})
	b.Update(r1, Fields{"valor": 10.0})
	b.Delete(r2)

	if b.Len() != 4 {
		t.Fatalf("Len() = %d", b.Len())
	}
	if r1.ID == "" || r1.ID == r2.ID {
		t.Fatalf("generated IDs must be unique: %q %q", r1.ID, r2.ID)
	}
	types := []MutationType{MutationCreate, MutationCreate, MutationUpdate, MutationDelete}
	for i, m := range b.Mutations() {
		if m.Type != types[i] {
			t.Errorf("mutation %d = %s, want %s", i, m.Type, types[i])
		}
	}
	if _, ok := b.Mutations()[0].Fields["parcela"].(int64); !ok {
		t.Error("batch fields should be normalized")
	}
}
