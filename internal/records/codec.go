package records

import (
	"time"

	"lovemoney/internal/core"
	"lovemoney/internal/docstore"
)

// decoder reads documents leniently. Anything it has to guess at is noted
// in problems and reported as a data-quality event by the repository.
type decoder struct {
	loc      *time.Location
	problems []string
}

func (d *decoder) note(reason string) {
	d.problems = append(d.problems, reason)
}

// amount reads the first present key. A missing amount is zero.
func (d *decoder) amount(f docstore.Fields, keys ...string) core.Money {
	for _, k := range keys {
		if !f.Has(k) {
			continue
		}
		v, ok := f.Float(k)
		if !ok {
			d.note("unreadable amount")
			return core.Money{}
		}
		m, ok := core.MoneyFromFloat(v)
		if !ok {
			d.note("non-finite amount")
		}
		return m
	}
	d.note("missing amount")
	return core.Money{}
}

func (d *decoder) time(f docstore.Fields, key string) time.Time {
	t, ok := f.Time(key)
	if !ok {
		return time.Time{}
	}
	return t.In(d.loc)
}

func (d *decoder) optionalTime(f docstore.Fields, key string) *time.Time {
	t := d.time(f, key)
	if t.IsZero() {
		return nil
	}
	return &t
}

func (d *decoder) int(f docstore.Fields, keys ...string) int {
	for _, k := range keys {
		if n, ok := f.Int(k); ok {
			return n
		}
	}
	return 0
}

func (d *decoder) expense(doc docstore.Document) core.Expense {
	f := doc.Fields
	return core.Expense{
		ID:          doc.ID,
		Description: f.String(FieldDescription),
		Category:    f.String(FieldCategory),
		Amount:      d.amount(f, FieldAmount),
		Date:        d.time(f, FieldDate),
		CreatedAt:   d.time(f, FieldCreatedAt),
	}
}

func (d *decoder) subscription(doc docstore.Document) core.Subscription {
	f := doc.Fields
	s := core.Subscription{
		ID:          doc.ID,
		Service:     f.String(FieldService),
		Description: f.String(FieldDescription),
		Amount:      d.amount(f, FieldAmount),
		PaymentDay:  d.time(f, FieldPaymentDay),
		CancelledAt: d.optionalTime(f, FieldCancelledAt),
		CreatedAt:   d.time(f, FieldCreatedAt),
	}
	// Card-billed subscriptions written by older clients only carry data.
	if s.PaymentDay.IsZero() {
		s.PaymentDay = d.time(f, FieldDate)
	}
	recurring, ok := f.Bool(FieldRecurring)
	if !ok {
		recurring = s.CancelledAt == nil
		d.note("missing recurring flag")
	}
	s.Recurring = recurring
	if !s.Consistent() {
		d.note("recurring flag disagrees with cancellation date")
	}
	return s
}

func (d *decoder) installment(kind core.Kind, doc docstore.Document) core.InstallmentMember {
	f := doc.Fields
	return core.InstallmentMember{
		ID:            doc.ID,
		Type:          kind,
		GroupKey:      f.String(FieldGroupKey),
		Sequence:      d.int(f, FieldSequence),
		Total:         d.int(f, FieldTotal, FieldTotalLegacy),
		Amount:        d.amount(f, FieldAmount, FieldAmountLegacy),
		DueDate:       d.time(f, FieldDueDate),
		Description:   f.String(FieldDescription),
		Beneficiary:   f.String(FieldBeneficiary),
		FinancingType: f.String(FieldFinancingType),
		Bank:          f.String(FieldBank),
		CreatedAt:     d.time(f, FieldCreatedAt),
	}
}

// cardDoc decodes a document of a card's collection into a charge or a
// card-billed subscription depending on its tipo.
func (d *decoder) cardDoc(cardID string, doc docstore.Document) core.Record {
	if isCardSubscription(doc.Fields) {
		return core.CardSubscriptionCharge{Subscription: d.subscription(doc), CardID: cardID}
	}
	f := doc.Fields
	return core.CardCharge{
		ID:          doc.ID,
		CardID:      cardID,
		Description: f.String(FieldDescription),
		Category:    f.String(FieldCategory),
		Amount:      d.amount(f, FieldAmount, FieldAmountLegacy),
		Date:        d.time(f, FieldDate),
		GroupKey:    f.String(FieldGroupKey),
		Sequence:    d.int(f, FieldSequence),
		Total:       d.int(f, FieldTotal, FieldTotalLegacy),
		CreatedAt:   d.time(f, FieldCreatedAt),
	}
}

func (d *decoder) card(doc docstore.Document) core.Card {
	f := doc.Fields
	c := core.Card{
		ID:         doc.ID,
		Bank:       f.String(FieldBank),
		Nickname:   f.String(FieldNickname),
		ClosingDay: d.int(f, FieldClosingDay),
		DueDay:     d.int(f, FieldDueDay),
		CreatedAt:  d.time(f, FieldCreatedAt),
	}
	if !c.HasCycle() {
		d.note("card without closing or due day")
	}
	return c
}

// record decodes doc as kind. Card-scoped kinds need cardID.
func (d *decoder) record(kind core.Kind, cardID string, doc docstore.Document) (core.Record, bool) {
	switch {
	case kind == core.KindExpense:
		return d.expense(doc), true
	case kind == core.KindSubscription:
		return d.subscription(doc), true
	case kind.IsInstallment():
		return d.installment(kind, doc), true
	case kind.CardScoped():
		return d.cardDoc(cardID, doc), true
	}
	return nil, false
}

func isCardSubscription(f docstore.Fields) bool {
	return f.String(FieldType) == TipoCardSubscription
}

func encodeExpense(e core.Expense) docstore.Fields {
	return docstore.Fields{
		FieldDescription: e.Description,
		FieldCategory:    e.Category,
		FieldAmount:      e.Amount.Reais(),
		FieldDate:        e.Date,
		FieldCreatedAt:   e.CreatedAt,
		FieldType:        TipoExpense,
	}
}

func encodeSubscription(s core.Subscription, tipo string) docstore.Fields {
	return docstore.Fields{
		FieldService:     s.Service,
		FieldDescription: s.Description,
		FieldAmount:      s.Amount.Reais(),
		FieldPaymentDay:  s.PaymentDay,
		FieldRecurring:   s.Recurring,
		FieldCancelledAt: s.CancelledAt,
		FieldCreatedAt:   s.CreatedAt,
		FieldType:        tipo,
	}
}

func encodeInstallment(m core.InstallmentMember) docstore.Fields {
	f := docstore.Fields{
		FieldDescription: m.Description,
		FieldAmount:      m.Amount.Reais(),
		FieldDueDate:     m.DueDate,
		FieldGroupKey:    m.GroupKey,
		FieldSequence:    m.Sequence,
		FieldTotal:       m.Total,
		FieldCreatedAt:   m.CreatedAt,
		FieldType:        kindTipos[m.Type],
	}
	switch m.Type {
	case core.KindBoleto, core.KindPix:
		f[FieldBeneficiary] = m.Beneficiary
	case core.KindFinancing:
		f[FieldFinancingType] = m.FinancingType
	case core.KindLoan:
		f[FieldBank] = m.Bank
	}
	return f
}

func encodeCardCharge(c core.CardCharge) docstore.Fields {
	f := docstore.Fields{
		FieldDescription: c.Description,
		FieldCategory:    c.Category,
		FieldAmount:      c.Amount.Reais(),
		FieldDate:        c.Date,
		FieldCreatedAt:   c.CreatedAt,
		FieldType:        TipoCardCharge,
	}
	if c.GroupKey != "" {
		f[FieldGroupKey] = c.GroupKey
		f[FieldSequence] = c.Sequence
		f[FieldTotal] = c.Total
	}
	return f
}

func encodeCard(c core.Card) docstore.Fields {
	return docstore.Fields{
		FieldBank:       c.Bank,
		FieldNickname:   c.Nickname,
		FieldClosingDay: c.ClosingDay,
		FieldDueDay:     c.DueDay,
		FieldCreatedAt:  c.CreatedAt,
	}
}
