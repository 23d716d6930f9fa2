package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"lovemoney/internal/core"
	"lovemoney/internal/log"
	"lovemoney/internal/records"
)

var (
	ErrNotCancellable   = errors.New("only subscriptions can be cancelled")
	ErrAlreadyCancelled = errors.New("subscription already cancelled")
	ErrNotGrouped       = errors.New("record is not part of an installment group")
)

// Mutations changes stored records. Every operation reaches the store
// before anything else observes the change; on failure nothing is
// invalidated or published.
type Mutations struct {
	repo    *records.Repository
	changes *Changes
	now     func() time.Time
	logger  *log.Logger
}

func NewMutations(repo *records.Repository, changes *Changes, logger *log.Logger) *Mutations {
	if logger == nil {
		logger = log.Discard()
	}
	return &Mutations{
		repo:    repo,
		changes: changes,
		now:     time.Now,
		logger:  logger.WithComponent(log.ComponentMutations),
	}
}

// Cancel ends a subscription of either origin as of now.
func (m *Mutations) Cancel(ctx context.Context, uid string, ref records.Ref) error {
	if !ref.Kind.IsSubscription() {
		return fmt.Errorf("%s: %w", ref.Kind, ErrNotCancellable)
	}
	rec, err := m.repo.Get(ctx, uid, ref)
	if err != nil {
		return err
	}
	sub, ok := subscriptionOf(rec)
	if !ok {
		return fmt.Errorf("%s: %w", rec.Kind(), ErrNotCancellable)
	}
	if sub.CancelledAt != nil || !sub.Recurring {
		return ErrAlreadyCancelled
	}

	at := m.now().In(m.repo.Location())
	if err := m.repo.CancelSubscription(ctx, uid, records.RefOf(rec), at); err != nil {
		return err
	}
	m.changes.Record(ctx, uid, rec.Kind(), log.OpCancel, []string{rec.RecordID()})
	return nil
}

// Delete removes a record. A member of an installment group takes the
// whole group with it in one atomic batch. It returns how many records
// were deleted.
func (m *Mutations) Delete(ctx context.Context, uid string, ref records.Ref) (int, error) {
	rec, err := m.repo.Get(ctx, uid, ref)
	if err != nil {
		return 0, err
	}

	refs := []records.Ref{records.RefOf(rec)}
	if key := groupKeyOf(rec); key != "" {
		members, err := m.repo.Group(ctx, uid, records.RefOf(rec), key)
		if err != nil {
			return 0, err
		}
		if len(members) > 0 {
			refs = refs[:0]
			for _, member := range members {
				refs = append(refs, records.RefOf(member))
			}
		}
	}

	if err := m.repo.DeleteAll(ctx, uid, refs); err != nil {
		return 0, err
	}
	m.changes.Record(ctx, uid, rec.Kind(), log.OpDelete, refIDs(refs))
	return len(refs), nil
}

// EditAmount overwrites the amount of the addressed record only. Other
// members of its group keep their amounts.
func (m *Mutations) EditAmount(ctx context.Context, uid string, ref records.Ref, amount core.Money) error {
	if amount.Cents < 0 {
		return core.Invalid("amount", core.ErrInvalidAmount)
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := m.repo.UpdateAmount(ctx, uid, ref, amount); err != nil {
		return err
	}
	m.changes.Record(ctx, uid, ref.Kind, log.OpEditAmount, []string{ref.ID})
	return nil
}

// EditMember changes the date and/or the amount of one installment member.
func (m *Mutations) EditMember(ctx context.Context, uid string, ref records.Ref, date *time.Time, amount *core.Money) error {
	if !ref.Kind.GroupBearing() {
		return fmt.Errorf("%s: %w", ref.Kind, ErrNotGrouped)
	}
	if date == nil && amount == nil {
		return core.Invalid("date", core.ErrInvalidDate)
	}
	if amount != nil && amount.Cents < 0 {
		return core.Invalid("amount", core.ErrInvalidAmount)
	}
	if date != nil && date.IsZero() {
		return core.Invalid("date", core.ErrInvalidDate)
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := m.repo.UpdateMember(ctx, uid, ref, date, amount); err != nil {
		return err
	}
	m.changes.Record(ctx, uid, ref.Kind, log.OpEditMember, []string{ref.ID})
	return nil
}

// RescheduleGroup moves every member of the record's group so that member
// n falls n-1 months after base. Days past the end of a month clamp to
// its last day. It returns the number of members moved.
func (m *Mutations) RescheduleGroup(ctx context.Context, uid string, ref records.Ref, base time.Time) (int, error) {
	if !ref.Kind.GroupBearing() {
		return 0, fmt.Errorf("%s: %w", ref.Kind, ErrNotGrouped)
	}
	if base.IsZero() {
		return 0, core.Invalid("date", core.ErrInvalidDate)
	}
	rec, err := m.repo.Get(ctx, uid, ref)
	if err != nil {
		return 0, err
	}
	key := groupKeyOf(rec)
	if key == "" {
		return 0, ErrNotGrouped
	}
	members, err := m.repo.Group(ctx, uid, records.RefOf(rec), key)
	if err != nil {
		return 0, err
	}

	sort.SliceStable(members, func(i, j int) bool {
		si, sj := sequenceOf(members[i]), sequenceOf(members[j])
		if si != sj {
			return si < sj
		}
		return members[i].RecordID() < members[j].RecordID()
	})

	base = core.StartOfDay(base.In(m.repo.Location()))
	moves := make([]records.Dated, len(members))
	for i, member := range members {
		offset := i
		if seq := sequenceOf(member); seq >= 1 {
			offset = seq - 1
		}
		moves[i] = records.Dated{Ref: records.RefOf(member), Date: core.AddMonths(base, offset)}
	}

	if err := m.repo.Reschedule(ctx, uid, moves); err != nil {
		return 0, err
	}
	ids := make([]string, len(moves))
	for i, mv := range moves {
		ids[i] = mv.Ref.ID
	}
	m.changes.Record(ctx, uid, rec.Kind(), log.OpReschedule, ids)
	return len(moves), nil
}

func subscriptionOf(rec core.Record) (core.Subscription, bool) {
	switch r := rec.(type) {
	case core.Subscription:
		return r, true
	case core.CardSubscriptionCharge:
		return r.Subscription, true
	}
	return core.Subscription{}, false
}

func groupKeyOf(rec core.Record) string {
	switch r := rec.(type) {
	case core.InstallmentMember:
		return r.GroupKey
	case core.CardCharge:
		return r.GroupKey
	}
	return ""
}

func sequenceOf(rec core.Record) int {
	switch r := rec.(type) {
	case core.InstallmentMember:
		return r.Sequence
	case core.CardCharge:
		return r.Sequence
	}
	return 0
}

func refIDs(refs []records.Ref) []string {
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids
}
