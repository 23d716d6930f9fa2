package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"lovemoney/internal/core"
	"lovemoney/internal/log"
	"lovemoney/internal/records"
)

// MaxInstallments bounds the size of one installment group.
const MaxInstallments = 420

type ExpenseInput struct {
	Description string
	Category    string
	Amount      core.Money
	Date        time.Time
}

// SubscriptionInput creates a direct-debit subscription, or a card-billed
// one when CardID is set.
type SubscriptionInput struct {
	Service     string
	Description string
	Amount      core.Money
	PaymentDay  time.Time
	CardID      string
}

type InstallmentInput struct {
	Kind          core.Kind
	Description   string
	Count         int
	Amount        core.Money // per installment
	FirstDate     time.Time
	Beneficiary   string
	FinancingType string
	Bank          string
}

type CardPurchaseInput struct {
	CardID      string
	Description string
	Category    string
	Total       core.Money
	Count       int
	Date        time.Time
}

type CardInput struct {
	Bank       string
	Nickname   string
	ClosingDay int
	DueDay     int
}

// Forms validates user input and creates records. Nothing is written
// unless the whole input is valid.
type Forms struct {
	repo        *records.Repository
	changes     *Changes
	now         func() time.Time
	newGroupKey func() string
}

func NewForms(repo *records.Repository, changes *Changes) *Forms {
	return &Forms{
		repo:        repo,
		changes:     changes,
		now:         time.Now,
		newGroupKey: uuid.NewString,
	}
}

func (f *Forms) day(t time.Time) time.Time {
	return core.StartOfDay(t.In(f.repo.Location()))
}

func (f *Forms) CreateExpense(ctx context.Context, uid string, in ExpenseInput) (string, error) {
	e := core.Expense{
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Amount:      in.Amount,
		Date:        in.Date,
		CreatedAt:   f.now(),
	}
	if !e.Date.IsZero() {
		e.Date = f.day(e.Date)
	}
	if err := e.Validate(); err != nil {
		return "", err
	}
	id, err := f.repo.AddExpense(ctx, uid, e)
	if err != nil {
		return "", err
	}
	f.changes.Record(ctx, uid, core.KindExpense, log.OpCreate, []string{id})
	return id, nil
}

// CreateSubscription always creates a recurring subscription. A card
// origin requires an existing card.
func (f *Forms) CreateSubscription(ctx context.Context, uid string, in SubscriptionInput) (string, error) {
	s := core.Subscription{
		Service:     strings.TrimSpace(in.Service),
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount,
		PaymentDay:  in.PaymentDay,
		Recurring:   true,
		CreatedAt:   f.now(),
	}
	if s.Description == "" {
		s.Description = s.Service
	}
	if !s.PaymentDay.IsZero() {
		s.PaymentDay = f.day(s.PaymentDay)
	}

	cardID := strings.TrimSpace(in.CardID)
	if cardID == "" {
		if err := s.Validate(); err != nil {
			return "", err
		}
		id, err := f.repo.AddSubscription(ctx, uid, s)
		if err != nil {
			return "", err
		}
		f.changes.Record(ctx, uid, core.KindSubscription, log.OpCreate, []string{id})
		return id, nil
	}

	cs := core.CardSubscriptionCharge{Subscription: s, CardID: cardID}
	if err := cs.Validate(); err != nil {
		return "", err
	}
	if err := f.requireCard(ctx, uid, cardID); err != nil {
		return "", err
	}
	id, err := f.repo.AddCardSubscription(ctx, uid, cs)
	if err != nil {
		return "", err
	}
	f.changes.Record(ctx, uid, core.KindCardSubscription, log.OpCreate, []string{id})
	return id, nil
}

func (f *Forms) requireCard(ctx context.Context, uid, cardID string) error {
	_, err := f.repo.Card(ctx, uid, cardID)
	if errors.Is(err, records.ErrNotFound) {
		return core.Invalid("card_id", fmt.Errorf("%w: %s", core.ErrMissingCard, cardID))
	}
	return err
}

func validCount(n int) error {
	if n < 1 || n > MaxInstallments {
		return core.Invalid("count", core.ErrInvalidCount)
	}
	return nil
}

// CreateInstallments writes a boleto, pix, financing or loan group in one
// batch. Member n is due n-1 months after FirstDate.
func (f *Forms) CreateInstallments(ctx context.Context, uid string, in InstallmentInput) ([]string, error) {
	if !in.Kind.IsInstallment() {
		return nil, core.Invalid("kind", core.ErrUnknownKind)
	}
	if err := validCount(in.Count); err != nil {
		return nil, err
	}
	if in.FirstDate.IsZero() {
		return nil, core.Invalid("first_date", core.ErrInvalidDate)
	}

	first := f.day(in.FirstDate)
	key := f.newGroupKey()
	now := f.now()
	members := make([]core.InstallmentMember, in.Count)
	for i := range members {
		members[i] = core.InstallmentMember{
			Type:          in.Kind,
			GroupKey:      key,
			Sequence:      i + 1,
			Total:         in.Count,
			Amount:        in.Amount,
			DueDate:       core.AddMonths(first, i),
			Description:   strings.TrimSpace(in.Description),
			Beneficiary:   strings.TrimSpace(in.Beneficiary),
			FinancingType: strings.TrimSpace(in.FinancingType),
			Bank:          strings.TrimSpace(in.Bank),
			CreatedAt:     now,
		}
		if err := members[i].Validate(); err != nil {
			return nil, err
		}
	}

	ids, err := f.repo.AddInstallments(ctx, uid, members)
	if err != nil {
		return nil, err
	}
	f.changes.Record(ctx, uid, in.Kind, log.OpCreate, ids)
	return ids, nil
}

// CreateCardPurchase splits Total into Count charges whose cents add up to
// Total exactly; earlier installments absorb the remainder. Installment n
// is dated n-1 months after the purchase so it lands in a later statement.
func (f *Forms) CreateCardPurchase(ctx context.Context, uid string, in CardPurchaseInput) ([]string, error) {
	if err := validCount(in.Count); err != nil {
		return nil, err
	}
	if err := in.Total.Validate(); err != nil {
		return nil, core.Invalid("amount", err)
	}
	if in.Total.Cents < int64(in.Count) {
		return nil, core.Invalid("amount", fmt.Errorf("%w: less than one cent per installment", core.ErrInvalidAmount))
	}
	if in.Date.IsZero() {
		return nil, core.Invalid("date", core.ErrInvalidDate)
	}

	date := f.day(in.Date)
	parts := in.Total.Split(in.Count)
	key := ""
	if in.Count > 1 {
		key = f.newGroupKey()
	}
	now := f.now()
	charges := make([]core.CardCharge, in.Count)
	for i := range charges {
		charges[i] = core.CardCharge{
			CardID:      strings.TrimSpace(in.CardID),
			Description: strings.TrimSpace(in.Description),
			Category:    strings.TrimSpace(in.Category),
			Amount:      parts[i],
			Date:        core.AddMonths(date, i),
			CreatedAt:   now,
		}
		if key != "" {
			charges[i].GroupKey = key
			charges[i].Sequence = i + 1
			charges[i].Total = in.Count
		}
		if err := charges[i].Validate(); err != nil {
			return nil, err
		}
	}
	if err := f.requireCard(ctx, uid, charges[0].CardID); err != nil {
		return nil, err
	}

	ids, err := f.repo.AddCardCharges(ctx, uid, charges)
	if err != nil {
		return nil, err
	}
	f.changes.Record(ctx, uid, core.KindCardCharge, log.OpCreate, ids)
	return ids, nil
}

func (f *Forms) CreateCard(ctx context.Context, uid string, in CardInput) (string, error) {
	c := core.Card{
		Bank:       strings.TrimSpace(in.Bank),
		Nickname:   strings.TrimSpace(in.Nickname),
		ClosingDay: in.ClosingDay,
		DueDay:     in.DueDay,
		CreatedAt:  f.now(),
	}
	if err := c.Validate(); err != nil {
		return "", err
	}
	id, err := f.repo.AddCard(ctx, uid, c)
	if err != nil {
		return "", err
	}
	f.changes.Record(ctx, uid, "card", log.OpCreate, []string{id})
	return id, nil
}
