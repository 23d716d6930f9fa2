// Package aggregate sums filtered records into grouped totals.
package aggregate

import (
	"sort"
	"strings"

	"lovemoney/internal/core"
)

// DefaultCategory groups expenses and charges saved without a category.
const DefaultCategory = "Outros"

// Bucket identifies one group. Kind keeps equal names from different kinds
// (a "Netflix" category and a "Netflix" service) apart.
type Bucket struct {
	Kind core.Kind
	Name string
}

// Predicate selects the records that count.
type Predicate func(core.Record) bool

// GroupKeyFunc names the group a record is summed into.
type GroupKeyFunc func(core.Record) string

// Totals is the result of Aggregate. Grand always equals the sum of ByGroup.
type Totals struct {
	ByGroup map[Bucket]core.Money
	Grand   core.Money
	Count   int
}

// Group is one bucket with its amount.
type Group struct {
	Bucket
	Amount core.Money
}

// Aggregate applies keep to every record and sums the survivors into
// buckets named by key. A nil keep counts everything and a nil key uses
// NaturalKey. Amounts are integer cents, so the result does not depend
// on record order.
func Aggregate(byKind map[core.Kind][]core.Record, keep Predicate, key GroupKeyFunc) Totals {
	if key == nil {
		key = NaturalKey
	}
	t := Totals{ByGroup: make(map[Bucket]core.Money)}
	for _, recs := range byKind {
		for _, r := range recs {
			if r == nil {
				continue
			}
			if keep != nil && !keep(r) {
				continue
			}
			b := Bucket{Kind: r.Kind(), Name: key(r)}
			t.ByGroup[b] = t.ByGroup[b].Add(r.Value())
			t.Grand = t.Grand.Add(r.Value())
			t.Count++
		}
	}
	return t
}

// ByKind returns per-kind section subtotals.
func (t Totals) ByKind() map[core.Kind]core.Money {
	out := make(map[core.Kind]core.Money)
	for b, m := range t.ByGroup {
		out[b.Kind] = out[b.Kind].Add(m)
	}
	return out
}

// Kind returns the subtotal for one kind.
func (t Totals) Kind(kind core.Kind) core.Money {
	var sum core.Money
	for b, m := range t.ByGroup {
		if b.Kind == kind {
			sum = sum.Add(m)
		}
	}
	return sum
}

// Groups lists buckets by amount descending, then kind, then name.
func (t Totals) Groups() []Group {
	groups := make([]Group, 0, len(t.ByGroup))
	for b, m := range t.ByGroup {
		groups = append(groups, Group{Bucket: b, Amount: m})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Amount.Cents != groups[j].Amount.Cents {
			return groups[i].Amount.Cents > groups[j].Amount.Cents
		}
		if groups[i].Kind != groups[j].Kind {
			return groups[i].Kind < groups[j].Kind
		}
		return groups[i].Name < groups[j].Name
	})
	return groups
}

// ByName merges buckets with the same name across kinds. Used for category
// breakdowns where an expense and a card charge share a category.
func (t Totals) ByName() []Group {
	merged := make(map[string]core.Money)
	for b, m := range t.ByGroup {
		merged[b.Name] = merged[b.Name].Add(m)
	}
	groups := make([]Group, 0, len(merged))
	for name, m := range merged {
		groups = append(groups, Group{Bucket: Bucket{Name: name}, Amount: m})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Amount.Cents != groups[j].Amount.Cents {
			return groups[i].Amount.Cents > groups[j].Amount.Cents
		}
		return groups[i].Name < groups[j].Name
	})
	return groups
}

// NaturalKey groups each kind by its natural field: category for expenses,
// service for subscriptions, card for card charges, description for
// installments.
func NaturalKey(rec core.Record) string {
	switch r := rec.(type) {
	case core.Expense:
		return category(r.Category)
	case core.Subscription:
		return r.Label()
	case core.CardSubscriptionCharge:
		return r.Label()
	case core.CardCharge:
		return r.CardID
	case core.InstallmentMember:
		return firstNonEmpty(r.Description, r.Beneficiary, r.Bank, r.FinancingType)
	default:
		return ""
	}
}

// CategoryKey groups expenses and card charges by category. Subscriptions
// and installments fall back to NaturalKey.
func CategoryKey(rec core.Record) string {
	switch r := rec.(type) {
	case core.Expense:
		return category(r.Category)
	case core.CardCharge:
		return category(r.Category)
	default:
		return NaturalKey(rec)
	}
}

func category(c string) string {
	if c = strings.TrimSpace(c); c == "" {
		return DefaultCategory
	}
	return c
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
