// Package records maps the per-user document collections to typed records.
package records

import (
	"context"
	"fmt"
	"time"

	"lovemoney/internal/billing"
	"lovemoney/internal/core"
	"lovemoney/internal/docstore"
	"lovemoney/internal/log"
)

// ErrNotFound is returned when an addressed record does not exist.
var ErrNotFound = docstore.ErrNotFound

type Repository struct {
	store  docstore.Store
	loc    *time.Location
	logger *log.StructuredLogger
}

// NewRepository reads and writes records in store. Dates are returned in loc.
func NewRepository(store docstore.Store, loc *time.Location, logger *log.Logger) *Repository {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Repository{
		store:  store,
		loc:    loc,
		logger: log.NewStructuredLogger(logger.WithComponent(log.ComponentRecords)),
	}
}

// Location is the calendar records are decoded in.
func (r *Repository) Location() *time.Location {
	return r.loc
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func (r *Repository) decoder() *decoder {
	return &decoder{loc: r.loc}
}

func (r *Repository) flush(ctx context.Context, uid string, kind core.Kind, id string, d *decoder) {
	for _, reason := range d.problems {
		r.logger.LogDataQuality(ctx, uid, string(kind), id, reason)
	}
	d.problems = d.problems[:0]
}

func (r *Repository) query(ctx context.Context, uid string, kind core.Kind, cardID string, q docstore.Query) ([]docstore.Document, error) {
	coll, err := collectionFor(uid, kind, cardID)
	if err != nil {
		return nil, err
	}
	docs, err := r.store.Query(ctx, coll, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	return docs, nil
}

// Expenses returns expenses dated in [from, to], followed by expenses
// with no date at all.
func (r *Repository) Expenses(ctx context.Context, uid string, from, to time.Time) ([]core.Record, error) {
	q := docstore.Where(FieldDate, docstore.OpGTE, from).Where(FieldDate, docstore.OpLTE, to)
	return r.listDated(ctx, uid, core.KindExpense, "", FieldDate, q)
}

// Installments returns members of kind due in [from, to], followed by
// members with no due date.
func (r *Repository) Installments(ctx context.Context, uid string, kind core.Kind, from, to time.Time) ([]core.Record, error) {
	if !kind.IsInstallment() {
		return nil, core.Invalid("kind", core.ErrUnknownKind)
	}
	q := docstore.Where(FieldDueDate, docstore.OpGTE, from).Where(FieldDueDate, docstore.OpLTE, to)
	return r.listDated(ctx, uid, kind, "", FieldDueDate, q)
}

// Subscriptions returns every direct-debit subscription. Activity in a
// period depends on the cancellation date, so no date filter is applied.
func (r *Repository) Subscriptions(ctx context.Context, uid string) ([]core.Record, error) {
	return r.list(ctx, uid, core.KindSubscription, "", docstore.Query{})
}

// CardCharges returns the purchases of a card dated in [cycle.Start, cycle.End),
// followed by undated purchases. Card-billed subscriptions in the same
// collection are skipped.
func (r *Repository) CardCharges(ctx context.Context, uid, cardID string, cycle billing.Cycle) ([]core.Record, error) {
	q := docstore.Where(FieldDate, docstore.OpGTE, cycle.Start).Where(FieldDate, docstore.OpLT, cycle.End)
	recs, err := r.listDated(ctx, uid, core.KindCardCharge, cardID, FieldDate, q)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, rec := range recs {
		if rec.Kind() == core.KindCardCharge {
			out = append(out, rec)
		}
	}
	return out, nil
}

// CardSubscriptions returns the subscriptions billed to a card.
func (r *Repository) CardSubscriptions(ctx context.Context, uid, cardID string) ([]core.Record, error) {
	q := docstore.Where(FieldType, docstore.OpEq, TipoCardSubscription)
	return r.list(ctx, uid, core.KindCardSubscription, cardID, q)
}

// listDated runs the ranged query q and adds the documents that lack
// dateField, which a range never matches. Those come back with a zero date
// so the period rules can report them instead of dropping them silently.
func (r *Repository) listDated(ctx context.Context, uid string, kind core.Kind, cardID, dateField string, q docstore.Query) ([]core.Record, error) {
	recs, err := r.list(ctx, uid, kind, cardID, q)
	if err != nil {
		return nil, err
	}
	undated, err := r.list(ctx, uid, kind, cardID, docstore.Where(dateField, docstore.OpMissing, nil))
	if err != nil {
		return nil, err
	}
	return append(recs, undated...), nil
}

func (r *Repository) list(ctx context.Context, uid string, kind core.Kind, cardID string, q docstore.Query) ([]core.Record, error) {
	docs, err := r.query(ctx, uid, kind, cardID, q)
	if err != nil {
		return nil, err
	}
	d := r.decoder()
	out := make([]core.Record, 0, len(docs))
	for _, doc := range docs {
		rec, _ := d.record(kind, cardID, doc)
		r.flush(ctx, uid, rec.Kind(), doc.ID, d)
		out = append(out, rec)
	}
	return out, nil
}

// Cards returns every card of the user.
func (r *Repository) Cards(ctx context.Context, uid string) ([]core.Card, error) {
	coll, err := userCollection(uid, CollCards)
	if err != nil {
		return nil, err
	}
	docs, err := r.store.Query(ctx, coll, docstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	d := r.decoder()
	cards := make([]core.Card, 0, len(docs))
	for _, doc := range docs {
		cards = append(cards, d.card(doc))
		r.flush(ctx, uid, "card", doc.ID, d)
	}
	return cards, nil
}

// Card returns one card or ErrNotFound.
func (r *Repository) Card(ctx context.Context, uid, id string) (core.Card, error) {
	coll, err := userCollection(uid, CollCards)
	if err != nil {
		return core.Card{}, err
	}
	ref, err := coll.Doc(id)
	if err != nil {
		return core.Card{}, core.Invalid("card_id", err)
	}
	doc, err := r.store.Get(ctx, ref)
	if err != nil {
		return core.Card{}, fmt.Errorf("get card: %w", err)
	}
	d := r.decoder()
	card := d.card(doc)
	r.flush(ctx, uid, "card", doc.ID, d)
	return card, nil
}

// Get loads the record at ref. For card collections the stored tipo decides
// between charge and subscription.
func (r *Repository) Get(ctx context.Context, uid string, ref Ref) (core.Record, error) {
	dr, err := docRef(uid, ref)
	if err != nil {
		return nil, err
	}
	doc, err := r.store.Get(ctx, dr)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref.Kind, err)
	}
	d := r.decoder()
	rec, ok := d.record(ref.Kind, ref.CardID, doc)
	if !ok {
		return nil, core.Invalid("kind", core.ErrUnknownKind)
	}
	r.flush(ctx, uid, rec.Kind(), doc.ID, d)
	return rec, nil
}

// Group returns every member sharing groupKey in the collection of ref.
func (r *Repository) Group(ctx context.Context, uid string, ref Ref, groupKey string) ([]core.Record, error) {
	q := docstore.Where(FieldGroupKey, docstore.OpEq, groupKey)
	recs, err := r.list(ctx, uid, ref.Kind, ref.CardID, q)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, rec := range recs {
		if rec.Kind() == ref.Kind {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AddExpense stores a validated expense and returns its ID.
func (r *Repository) AddExpense(ctx context.Context, uid string, e core.Expense) (string, error) {
	return r.add(ctx, uid, core.KindExpense, "", encodeExpense(e))
}

func (r *Repository) AddSubscription(ctx context.Context, uid string, s core.Subscription) (string, error) {
	return r.add(ctx, uid, core.KindSubscription, "", encodeSubscription(s, TipoSubscription))
}

func (r *Repository) AddCardSubscription(ctx context.Context, uid string, s core.CardSubscriptionCharge) (string, error) {
	return r.add(ctx, uid, core.KindCardSubscription, s.CardID, encodeSubscription(s.Subscription, TipoCardSubscription))
}

func (r *Repository) AddCard(ctx context.Context, uid string, c core.Card) (string, error) {
	coll, err := userCollection(uid, CollCards)
	if err != nil {
		return "", err
	}
	id, err := r.store.Create(ctx, coll, encodeCard(c))
	if err != nil {
		return "", fmt.Errorf("create card: %w", err)
	}
	return id, nil
}

func (r *Repository) add(ctx context.Context, uid string, kind core.Kind, cardID string, f docstore.Fields) (string, error) {
	coll, err := collectionFor(uid, kind, cardID)
	if err != nil {
		return "", err
	}
	id, err := r.store.Create(ctx, coll, f)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", kind, err)
	}
	return id, nil
}

// AddInstallments stores a whole group in one batch and returns the IDs in
// member order.
func (r *Repository) AddInstallments(ctx context.Context, uid string, members []core.InstallmentMember) ([]string, error) {
	b := docstore.NewBatch()
	ids := make([]string, 0, len(members))
	for _, m := range members {
		coll, err := collectionFor(uid, m.Type, "")
		if err != nil {
			return nil, err
		}
		ids = append(ids, b.Create(coll, encodeInstallment(m)).ID)
	}
	if err := r.store.Commit(ctx, b); err != nil {
		return nil, fmt.Errorf("create installments: %w", err)
	}
	return ids, nil
}

// AddCardCharges stores the installments of one purchase in one batch.
func (r *Repository) AddCardCharges(ctx context.Context, uid string, charges []core.CardCharge) ([]string, error) {
	b := docstore.NewBatch()
	ids := make([]string, 0, len(charges))
	for _, c := range charges {
		coll, err := cardCollection(uid, c.CardID)
		if err != nil {
			return nil, core.Invalid("card_id", err)
		}
		ids = append(ids, b.Create(coll, encodeCardCharge(c)).ID)
	}
	if err := r.store.Commit(ctx, b); err != nil {
		return nil, fmt.Errorf("create card charges: %w", err)
	}
	return ids, nil
}

// CancelSubscription clears the recurring flag and stamps the cancellation.
func (r *Repository) CancelSubscription(ctx context.Context, uid string, ref Ref, at time.Time) error {
	return r.update(ctx, uid, ref, docstore.Fields{
		FieldRecurring:   false,
		FieldCancelledAt: at,
	})
}

// UpdateAmount overwrites the amount of one record.
func (r *Repository) UpdateAmount(ctx context.Context, uid string, ref Ref, amount core.Money) error {
	return r.update(ctx, uid, ref, docstore.Fields{FieldAmount: amount.Reais()})
}

// UpdateMember changes the date and/or amount of one record. Nil leaves a
// field untouched.
func (r *Repository) UpdateMember(ctx context.Context, uid string, ref Ref, date *time.Time, amount *core.Money) error {
	f := docstore.Fields{}
	if date != nil {
		f[DateField(ref.Kind)] = *date
	}
	if amount != nil {
		f[FieldAmount] = amount.Reais()
	}
	if len(f) == 0 {
		return nil
	}
	return r.update(ctx, uid, ref, f)
}

func (r *Repository) update(ctx context.Context, uid string, ref Ref, f docstore.Fields) error {
	dr, err := docRef(uid, ref)
	if err != nil {
		return err
	}
	if err := r.store.Update(ctx, dr, f); err != nil {
		return fmt.Errorf("update %s: %w", ref.Kind, err)
	}
	return nil
}

// DeleteAll removes every ref in one atomic batch.
func (r *Repository) DeleteAll(ctx context.Context, uid string, refs []Ref) error {
	b := docstore.NewBatch()
	for _, ref := range refs {
		dr, err := docRef(uid, ref)
		if err != nil {
			return err
		}
		b.Delete(dr)
	}
	if err := r.store.Commit(ctx, b); err != nil {
		return fmt.Errorf("delete %d records: %w", len(refs), err)
	}
	return nil
}

// Dated pairs a record with a new date.
type Dated struct {
	Ref  Ref
	Date time.Time
}

// Reschedule moves every record to its new date in one atomic batch.
func (r *Repository) Reschedule(ctx context.Context, uid string, moves []Dated) error {
	b := docstore.NewBatch()
	for _, m := range moves {
		dr, err := docRef(uid, m.Ref)
		if err != nil {
			return err
		}
		b.Update(dr, docstore.Fields{DateField(m.Ref.Kind): m.Date})
	}
	if err := r.store.Commit(ctx, b); err != nil {
		return fmt.Errorf("reschedule %d records: %w", len(moves), err)
	}
	return nil
}
