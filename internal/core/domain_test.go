package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	for _, k := range AllKinds {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := ParseKind("invoice"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestKindClassification(t *testing.T) {
	tests := []struct {
		kind         Kind
		subscription bool
		groupBearing bool
		cardScoped   bool
	}{
		{KindExpense, false, false, false},
		{KindSubscription, true, false, false},
		{KindCardSubscription, true, false, true},
		{KindBoleto, false, true, false},
		{KindPix, false, true, false},
		{KindFinancing, false, true, false},
		{KindLoan, false, true, false},
		{KindCardCharge, false, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if tt.kind.IsSubscription() != tt.subscription {
				t.Errorf("IsSubscription() = %v", !tt.subscription)
			}
			if tt.kind.GroupBearing() != tt.groupBearing {
				t.Errorf("GroupBearing() = %v", !tt.groupBearing)
			}
			if tt.kind.CardScoped() != tt.cardScoped {
				t.Errorf("CardScoped() = %v", !tt.cardScoped)
			}
		})
	}
}

func TestCardSubscriptionChargeKind(t *testing.T) {
	var r Record = CardSubscriptionCharge{
		Subscription: Subscription{ID: "s1", Amount: Money{Cents: 990}},
		CardID:       "c1",
	}
	if r.Kind() != KindCardSubscription {
		t.Fatalf("Kind() = %q", r.Kind())
	}
	if r.RecordID() != "s1" || r.Value().Cents != 990 {
		t.Fatalf("promoted fields not exposed: %q %d", r.RecordID(), r.Value().Cents)
	}
}

func TestSubscriptionState(t *testing.T) {
	now := time.Now()
	active := Subscription{Recurring: true}
	cancelled := Subscription{Recurring: false, CancelledAt: &now}
	broken := Subscription{Recurring: false}

	if !active.Active() || !active.Consistent() {
		t.Error("recurring subscription should be active and consistent")
	}
	if cancelled.Active() || !cancelled.Consistent() {
		t.Error("cancelled subscription should be inactive and consistent")
	}
	if broken.Consistent() {
		t.Error("non-recurring without cancellation should be inconsistent")
	}
}

func TestExpenseValidate(t *testing.T) {
	date := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	good := Expense{Description: "Mercado", Category: "Mercado", Amount: Money{Cents: 100}, Date: date}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name  string
		mod   func(*Expense)
		field string
		err   error
	}{
		{"empty description", func(e *Expense) { e.Description = "  " }, "description", ErrEmptyDescription},
		{"long description", func(e *Expense) { e.Description = strings.Repeat("a", 201) }, "description", ErrDescriptionTooLong},
		{"zero amount", func(e *Expense) { e.Amount = Money{} }, "amount", ErrInvalidAmount},
		{"zero date", func(e *Expense) { e.Date = time.Time{} }, "date", ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := good
			tt.mod(&e)
			err := e.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field || !errors.Is(err, tt.err) {
				t.Errorf("got %v, want field %q err %v", err, tt.field, tt.err)
			}
		})
	}
}

func TestInstallmentMemberValidate(t *testing.T) {
	base := InstallmentMember{
		Type:        KindBoleto,
		GroupKey:    "g",
		Sequence:    1,
		Total:       3,
		Amount:      Money{Cents: 10000},
		DueDate:     time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
		Description: "Curso",
		Beneficiary: "Escola",
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name string
		mod  func(*InstallmentMember)
		err  error
	}{
		{"boleto without beneficiary", func(m *InstallmentMember) { m.Beneficiary = "" }, ErrEmptyBeneficiary},
		{"loan without bank", func(m *InstallmentMember) { m.Type = KindLoan }, ErrEmptyBank},
		{"financing without type", func(m *InstallmentMember) { m.Type = KindFinancing }, ErrEmptyFinancingType},
		{"sequence beyond total", func(m *InstallmentMember) { m.Sequence = 4 }, ErrInvalidSequence},
		{"zero total", func(m *InstallmentMember) { m.Total = 0 }, ErrInvalidCount},
		{"not an installment kind", func(m *InstallmentMember) { m.Type = KindExpense }, ErrUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base
			tt.mod(&m)
			if err := m.Validate(); !errors.Is(err, tt.err) {
				t.Errorf("Validate() = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestCardValidate(t *testing.T) {
	tests := []struct {
		name string
		card Card
		err  error
	}{
		{"valid", Card{Bank: "Nubank", ClosingDay: 3, DueDay: 10}, nil},
		{"missing bank", Card{ClosingDay: 3, DueDay: 10}, ErrEmptyBank},
		{"closing zero", Card{Bank: "Inter", DueDay: 10}, ErrInvalidDay},
		{"due too large", Card{Bank: "Inter", ClosingDay: 3, DueDay: 32}, ErrInvalidDay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.card.Validate()
			if tt.err == nil && err != nil {
				t.Fatalf("expected ok, got %v", err)
			}
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Fatalf("Validate() = %v, want %v", err, tt.err)
			}
		})
	}
	if !(Card{ClosingDay: 1, DueDay: 8}).HasCycle() || (Card{DueDay: 8}).HasCycle() {
		t.Error("HasCycle() mismatch")
	}
}

func TestCardChargeValidate(t *testing.T) {
	c := CardCharge{Description: "TV", Amount: Money{Cents: 1}, Date: time.Now()}
	if err := c.Validate(); !errors.Is(err, ErrMissingCard) {
		t.Fatalf("expected ErrMissingCard, got %v", err)
	}
	c.CardID = "card"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	c.GroupKey = "g"
	if err := c.Validate(); !errors.Is(err, ErrInvalidSequence) {
		t.Fatalf("expected ErrInvalidSequence, got %v", err)
	}
}
