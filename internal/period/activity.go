package period

import (
	"fmt"
	"time"

	"lovemoney/internal/billing"
	"lovemoney/internal/core"
)

// Reporter receives data-quality events for records that cannot be judged.
type Reporter interface {
	DataQuality(rec core.Record, reason string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(rec core.Record, reason string)

func (f ReporterFunc) DataQuality(rec core.Record, reason string) { f(rec, reason) }

// Issue is one recorded data-quality event.
type Issue struct {
	Kind     core.Kind
	RecordID string
	Reason   string
}

// Issues collects data-quality events in memory.
type Issues []Issue

func (is *Issues) DataQuality(rec core.Record, reason string) {
	*is = append(*is, Issue{Kind: rec.Kind(), RecordID: rec.RecordID(), Reason: reason})
}

// Window is everything a rule needs to judge one period.
type Window struct {
	Period Period
	// Cycles maps card ID to its statement cycle for Period.
	// Cards without a cycle are absent.
	Cycles map[string]billing.Cycle
	Report Reporter
}

func (w Window) report(rec core.Record, reason string) {
	if w.Report != nil {
		w.Report.DataQuality(rec, reason)
	}
}

// Rule decides whether a record counts toward a window.
type Rule interface {
	Active(rec core.Record, w Window) bool
}

// CalendarRule counts records dated inside the calendar month.
type CalendarRule struct{}

// Active returns true if the record's date falls in [Start, End].
func (CalendarRule) Active(rec core.Record, w Window) bool {
	d, ok := dateOf(rec)
	if !ok {
		w.report(rec, "missing date")
		return false
	}
	return w.Period.Contains(d)
}

// CycleRule counts card charges dated inside their card's statement cycle.
type CycleRule struct{}

// Active returns true if the charge date falls in the card's [start, end).
func (CycleRule) Active(rec core.Record, w Window) bool {
	charge, ok := rec.(core.CardCharge)
	if !ok {
		return false
	}
	if charge.Date.IsZero() {
		w.report(rec, "missing date")
		return false
	}
	cycle, ok := w.Cycles[charge.CardID]
	if !ok {
		return false
	}
	return cycle.Contains(charge.Date)
}

// SubscriptionRule counts subscriptions that started by the end of the period
// and were either still recurring or cancelled no earlier than its first day.
type SubscriptionRule struct{}

// Active applies the payment-day and cancellation cutoffs.
func (SubscriptionRule) Active(rec core.Record, w Window) bool {
	sub, ok := subscriptionOf(rec)
	if !ok {
		return false
	}
	if sub.PaymentDay.IsZero() {
		w.report(rec, "missing payment day")
		return false
	}
	if sub.PaymentDay.After(w.Period.End) {
		return false
	}
	if sub.Recurring {
		return true
	}
	if sub.CancelledAt == nil {
		w.report(rec, "not recurring and no cancellation date")
		return false
	}
	cancelled := core.StartOfDay(sub.CancelledAt.In(w.Period.Location()))
	return !cancelled.Before(w.Period.Start)
}

// rules maps each record kind to the rule that judges it.
var rules = map[core.Kind]Rule{
	core.KindExpense:          CalendarRule{},
	core.KindBoleto:           CalendarRule{},
	core.KindPix:              CalendarRule{},
	core.KindFinancing:        CalendarRule{},
	core.KindLoan:             CalendarRule{},
	core.KindCardCharge:       CycleRule{},
	core.KindSubscription:     SubscriptionRule{},
	core.KindCardSubscription: SubscriptionRule{},
}

// RuleFor returns the activity rule for kind.
func RuleFor(kind core.Kind) (Rule, error) {
	rule, ok := rules[kind]
	if !ok {
		return nil, fmt.Errorf("no activity rule for %q: %w", kind, core.ErrUnknownKind)
	}
	return rule, nil
}

// IsActiveInPeriod reports whether rec counts toward w. It never fails:
// records that cannot be judged are excluded and reported.
func IsActiveInPeriod(rec core.Record, w Window) bool {
	rule, err := RuleFor(rec.Kind())
	if err != nil {
		w.report(rec, err.Error())
		return false
	}
	return rule.Active(rec, w)
}

// IsCurrentlyActive is the management-list predicate: a subscription that is
// recurring and has never been cancelled, regardless of any period.
func IsCurrentlyActive(rec core.Record) bool {
	sub, ok := subscriptionOf(rec)
	return ok && sub.Active()
}

// Predicate binds IsActiveInPeriod to w.
func Predicate(w Window) func(core.Record) bool {
	return func(rec core.Record) bool {
		return IsActiveInPeriod(rec, w)
	}
}

func dateOf(rec core.Record) (time.Time, bool) {
	var d time.Time
	switch r := rec.(type) {
	case core.Expense:
		d = r.Date
	case core.InstallmentMember:
		d = r.DueDate
	case core.CardCharge:
		d = r.Date
	default:
		return time.Time{}, false
	}
	return d, !d.IsZero()
}

func subscriptionOf(rec core.Record) (core.Subscription, bool) {
	switch r := rec.(type) {
	case core.Subscription:
		return r, true
	case core.CardSubscriptionCharge:
		return r.Subscription, true
	default:
		return core.Subscription{}, false
	}
}
