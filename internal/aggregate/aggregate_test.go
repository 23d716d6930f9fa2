package aggregate

import (
	"math/rand"
	"testing"
	"time"

	"lovemoney/internal/core"
)

func money(c int64) core.Money { return core.Money{Cents: c} }

func fixture() map[core.Kind][]core.Record {
	d := time.Date(2024, time.May, 3, 12, 0, 0, 0, time.UTC)
	return map[core.Kind][]core.Record{
		core.KindExpense: {
			core.Expense{ID: "e1", Category: "Mercado", Amount: money(15000), Date: d},
			core.Expense{ID: "e2", Category: "Mercado", Amount: money(2550), Date: d},
			core.Expense{ID: "e3", Category: "", Amount: money(1000), Date: d},
			core.Expense{ID: "e4", Category: "Farmácia", Date: d}, // missing amount
		},
		core.KindSubscription: {
			core.Subscription{ID: "s1", Service: "Netflix", Amount: money(3990), Recurring: true},
			core.Subscription{ID: "s2", Service: "", Description: "Academia", Amount: money(9900), Recurring: true},
		},
		core.KindCardSubscription: {
			core.CardSubscriptionCharge{Subscription: core.Subscription{ID: "cs1", Service: "Spotify", Amount: money(2190), Recurring: true}, CardID: "c1"},
		},
		core.KindBoleto: {
			core.InstallmentMember{ID: "b1", Type: core.KindBoleto, Description: "Curso", Amount: money(10000)},
		},
		core.KindLoan: {
			core.InstallmentMember{ID: "l1", Type: core.KindLoan, Bank: "Caixa", Amount: money(50000)},
		},
		core.KindCardCharge: {
			core.CardCharge{ID: "cc1", CardID: "c1", Category: "Mercado", Amount: money(3333)},
			core.CardCharge{ID: "cc2", CardID: "c1", Category: "Roupas", Amount: money(3334)},
			core.CardCharge{ID: "cc3", CardID: "c2", Category: "Roupas", Amount: money(100)},
		},
	}
}

func sum(t Totals) core.Money {
	var s core.Money
	for _, m := range t.ByGroup {
		s = s.Add(m)
	}
	return s
}

func TestAggregate_NaturalKey(t *testing.T) {
	got := Aggregate(fixture(), nil, nil)

	want := map[Bucket]int64{
		{core.KindExpense, "Mercado"}:           17550,
		{core.KindExpense, DefaultCategory}:     1000,
		{core.KindExpense, "Farmácia"}:          0,
		{core.KindSubscription, "Netflix"}:      3990,
		{core.KindSubscription, "Academia"}:     9900,
		{core.KindCardSubscription, "Spotify"}:  2190,
		{core.KindBoleto, "Curso"}:              10000,
		{core.KindLoan, "Caixa"}:                50000,
		{core.KindCardCharge, "c1"}:             6667,
		{core.KindCardCharge, "c2"}:             100,
	}
	if len(got.ByGroup) != len(want) {
		t.Fatalf("got %d groups, want %d: %v", len(got.ByGroup), len(want), got.ByGroup)
	}
	for b, cents := range want {
		if got.ByGroup[b].Cents != cents {
			t.Errorf("%v = %d, want %d", b, got.ByGroup[b].Cents, cents)
		}
	}
	if got.Grand.Cents != 101397 {
		t.Errorf("Grand = %d, want 101397", got.Grand.Cents)
	}
	if got.Grand != sum(got) {
		t.Errorf("Grand %d != sum of groups %d", got.Grand.Cents, sum(got).Cents)
	}
	if got.Count != 12 {
		t.Errorf("Count = %d, want 12", got.Count)
	}
}

func TestAggregate_Predicate(t *testing.T) {
	onlyExpenses := func(r core.Record) bool { return r.Kind() == core.KindExpense }
	got := Aggregate(fixture(), onlyExpenses, nil)
	if got.Grand.Cents != 18550 {
		t.Fatalf("Grand = %d, want 18550", got.Grand.Cents)
	}
	if got.Kind(core.KindCardCharge).Cents != 0 {
		t.Error("filtered kinds must not contribute")
	}
}

func TestAggregate_CategoryKey(t *testing.T) {
	categorized := func(r core.Record) bool {
		return r.Kind() == core.KindExpense || r.Kind() == core.KindCardCharge
	}
	got := Aggregate(fixture(), categorized, CategoryKey).ByName()

	want := []Group{
		{Bucket{Name: "Mercado"}, money(20883)},
		{Bucket{Name: "Roupas"}, money(3434)},
		{Bucket{Name: DefaultCategory}, money(1000)},
		{Bucket{Name: "Farmácia"}, money(0)},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i].Name != want[i].Name || got[i].Amount != want[i].Amount {
			t.Errorf("group %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAggregate_OrderIndependentAndIdempotent(t *testing.T) {
	base := fixture()
	first := Aggregate(base, nil, nil)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make(map[core.Kind][]core.Record, len(base))
		for k, recs := range base {
			cp := append([]core.Record(nil), recs...)
			rng.Shuffle(len(cp), func(a, b int) { cp[a], cp[b] = cp[b], cp[a] })
			shuffled[k] = cp
		}
		again := Aggregate(shuffled, nil, nil)
		if again.Grand != first.Grand {
			t.Fatalf("Grand changed under reordering: %d vs %d", again.Grand.Cents, first.Grand.Cents)
		}
		for b, m := range first.ByGroup {
			if again.ByGroup[b] != m {
				t.Fatalf("%v changed under reordering", b)
			}
		}
	}
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate(nil, nil, nil)
	if got.Grand.Cents != 0 || len(got.ByGroup) != 0 {
		t.Fatalf("expected empty totals, got %+v", got)
	}
	withNil := Aggregate(map[core.Kind][]core.Record{core.KindExpense: {nil}}, nil, nil)
	if withNil.Count != 0 {
		t.Fatal("nil records must be skipped")
	}
}

func TestTotals_ByKindAndGroups(t *testing.T) {
	got := Aggregate(fixture(), nil, nil)
	sections := got.ByKind()
	if sections[core.KindExpense].Cents != 18550 || sections[core.KindCardCharge].Cents != 6767 {
		t.Errorf("sections = %v", sections)
	}
	var total core.Money
	for _, m := range sections {
		total = total.Add(m)
	}
	if total != got.Grand {
		t.Error("section totals must add up to Grand")
	}

	groups := got.Groups()
	if groups[0].Name != "Caixa" || groups[0].Amount.Cents != 50000 {
		t.Errorf("largest group = %v", groups[0])
	}
	for i := 1; i < len(groups); i++ {
		if groups[i].Amount.Cents > groups[i-1].Amount.Cents {
			t.Fatalf("groups not sorted by amount: %v", groups)
		}
	}
}

func TestNaturalKey_InstallmentFallback(t *testing.T) {
	tests := []struct {
		rec  core.InstallmentMember
		want string
	}{
		{core.InstallmentMember{Description: "Carro", Bank: "Itau"}, "Carro"},
		{core.InstallmentMember{Beneficiary: "Escola"}, "Escola"},
		{core.InstallmentMember{Bank: "Caixa"}, "Caixa"},
		{core.InstallmentMember{FinancingType: "Imóvel"}, "Imóvel"},
	}
	for _, tt := range tests {
		if got := NaturalKey(tt.rec); got != tt.want {
			t.Errorf("NaturalKey(%+v) = %q, want %q", tt.rec, got, tt.want)
		}
	}
}
