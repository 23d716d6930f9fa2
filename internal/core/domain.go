package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies the variant of a stored record.
type Kind string

const (
	KindExpense          Kind = "expense"
	KindSubscription     Kind = "subscription"
	KindCardSubscription Kind = "card_subscription"
	KindBoleto           Kind = "boleto"
	KindPix              Kind = "pix"
	KindFinancing        Kind = "financing"
	KindLoan             Kind = "loan"
	KindCardCharge       Kind = "card_charge"
)

// InstallmentKinds are the kinds stored as InstallmentMember groups in their own collection.
var InstallmentKinds = []Kind{KindBoleto, KindPix, KindFinancing, KindLoan}

// AllKinds lists every record kind in a stable order.
var AllKinds = []Kind{
	KindExpense,
	KindSubscription,
	KindCardSubscription,
	KindBoleto,
	KindPix,
	KindFinancing,
	KindLoan,
	KindCardCharge,
}

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.TrimSpace(strings.ToLower(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsSubscription is true for both subscription origins.
func (k Kind) IsSubscription() bool {
	return k == KindSubscription || k == KindCardSubscription
}

// IsInstallment is true for boleto, pix, financing and loan.
func (k Kind) IsInstallment() bool {
	for _, ik := range InstallmentKinds {
		if k == ik {
			return true
		}
	}
	return false
}

// GroupBearing reports whether records of this kind may share a group key.
func (k Kind) GroupBearing() bool {
	return k.IsInstallment() || k == KindCardCharge
}

// CardScoped reports whether records of this kind live under a card.
func (k Kind) CardScoped() bool {
	return k == KindCardCharge || k == KindCardSubscription
}

// Record is the closed set of record variants. Only types in this package implement it.
type Record interface {
	Kind() Kind
	RecordID() string
	Value() Money
	isRecord()
}

type (
	// Expense is a single occurrence, counted in the calendar month of Date.
	Expense struct {
		ID          string
		Description string
		Category    string
		Amount      Money
		Date        time.Time
		CreatedAt   time.Time
	}

	// Subscription is a direct-debit recurring charge anchored at PaymentDay.
	Subscription struct {
		ID          string
		Service     string
		Description string
		Amount      Money
		PaymentDay  time.Time
		Recurring   bool
		CancelledAt *time.Time
		CreatedAt   time.Time
	}

	// CardSubscriptionCharge is a subscription billed to a card.
	CardSubscriptionCharge struct {
		Subscription
		CardID string
	}

	// InstallmentMember is one installment of a boleto, pix, financing or loan group.
	InstallmentMember struct {
		ID            string
		Type          Kind
		GroupKey      string
		Sequence      int
		Total         int
		Amount        Money
		DueDate       time.Time
		Description   string
		Beneficiary   string // boleto, pix
		FinancingType string // financing
		Bank          string // loan
		CreatedAt     time.Time
	}

	// CardCharge is a purchase on a card; multi-installment purchases share GroupKey.
	CardCharge struct {
		ID          string
		CardID      string
		Description string
		Category    string
		Amount      Money
		Date        time.Time
		GroupKey    string
		Sequence    int
		Total       int
		CreatedAt   time.Time
	}

	// Card owns a sub-collection of charges. Zero ClosingDay or DueDay means unset.
	Card struct {
		ID         string
		Bank       string
		Nickname   string
		ClosingDay int
		DueDay     int
		CreatedAt  time.Time
	}
)

func (e Expense) Kind() Kind       { return KindExpense }
func (e Expense) RecordID() string { return e.ID }
func (e Expense) Value() Money     { return e.Amount }
func (Expense) isRecord()          {}

func (s Subscription) Kind() Kind       { return KindSubscription }
func (s Subscription) RecordID() string { return s.ID }
func (s Subscription) Value() Money     { return s.Amount }
func (Subscription) isRecord()          {}

func (c CardSubscriptionCharge) Kind() Kind { return KindCardSubscription }

func (m InstallmentMember) Kind() Kind       { return m.Type }
func (m InstallmentMember) RecordID() string { return m.ID }
func (m InstallmentMember) Value() Money     { return m.Amount }
func (InstallmentMember) isRecord()          {}

func (c CardCharge) Kind() Kind       { return KindCardCharge }
func (c CardCharge) RecordID() string { return c.ID }
func (c CardCharge) Value() Money     { return c.Amount }
func (CardCharge) isRecord()          {}

// Active reports the currently-active state: recurring and never cancelled.
func (s Subscription) Active() bool {
	return s.Recurring && s.CancelledAt == nil
}

// Consistent checks the recurring/cancelled invariant.
func (s Subscription) Consistent() bool {
	return s.Recurring == (s.CancelledAt == nil)
}

// Label is the display name of the subscription.
func (s Subscription) Label() string {
	if strings.TrimSpace(s.Service) != "" {
		return s.Service
	}
	return s.Description
}

// HasCycle reports whether both statement days are set.
func (c Card) HasCycle() bool {
	return c.ClosingDay > 0 && c.DueDay > 0
}

// Label is the nickname when present, otherwise the bank.
func (c Card) Label() string {
	if strings.TrimSpace(c.Nickname) != "" {
		return c.Nickname
	}
	return c.Bank
}

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidYear        = errors.New("invalid year")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidCount       = errors.New("invalid installment count")
	ErrInvalidSequence    = errors.New("invalid installment sequence")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrEmptyService       = errors.New("empty service")
	ErrEmptyBeneficiary   = errors.New("empty beneficiary")
	ErrEmptyBank          = errors.New("empty bank")
	ErrEmptyFinancingType = errors.New("empty financing type")
	ErrMissingCard        = errors.New("missing card")
	ErrUnknownKind        = errors.New("unknown record kind")
)

// MaxDescriptionLen bounds free-text fields.
const MaxDescriptionLen = 200

// ValidationError ties a validation failure to the offending field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Invalid builds a *ValidationError.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func validateText(field, s string, empty error) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return Invalid(field, empty)
	}
	if len(s) > MaxDescriptionLen {
		return Invalid(field, ErrDescriptionTooLong)
	}
	return nil
}

func validateDate(field string, t time.Time) error {
	if t.IsZero() {
		return Invalid(field, ErrInvalidDate)
	}
	return nil
}

func (e Expense) Validate() error {
	if err := validateText("description", e.Description, ErrEmptyDescription); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	return validateDate("date", e.Date)
}

func (s Subscription) Validate() error {
	if err := validateText("service", s.Service, ErrEmptyService); err != nil {
		return err
	}
	if err := s.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	return validateDate("payment_day", s.PaymentDay)
}

func (c CardSubscriptionCharge) Validate() error {
	if strings.TrimSpace(c.CardID) == "" {
		return Invalid("card_id", ErrMissingCard)
	}
	return c.Subscription.Validate()
}

func (m InstallmentMember) Validate() error {
	if !m.Type.IsInstallment() {
		return Invalid("kind", ErrUnknownKind)
	}
	if err := validateText("description", m.Description, ErrEmptyDescription); err != nil {
		return err
	}
	switch m.Type {
	case KindBoleto, KindPix:
		if err := validateText("beneficiary", m.Beneficiary, ErrEmptyBeneficiary); err != nil {
			return err
		}
	case KindLoan:
		if err := validateText("bank", m.Bank, ErrEmptyBank); err != nil {
			return err
		}
	case KindFinancing:
		if err := validateText("financing_type", m.FinancingType, ErrEmptyFinancingType); err != nil {
			return err
		}
	}
	if m.Total < 1 {
		return Invalid("total", ErrInvalidCount)
	}
	if m.Sequence < 1 || m.Sequence > m.Total {
		return Invalid("sequence", ErrInvalidSequence)
	}
	if err := m.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	return validateDate("due_date", m.DueDate)
}

func (c CardCharge) Validate() error {
	if strings.TrimSpace(c.CardID) == "" {
		return Invalid("card_id", ErrMissingCard)
	}
	if err := validateText("description", c.Description, ErrEmptyDescription); err != nil {
		return err
	}
	if c.GroupKey != "" && (c.Sequence < 1 || c.Sequence > c.Total) {
		return Invalid("sequence", ErrInvalidSequence)
	}
	if err := c.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	return validateDate("date", c.Date)
}

func (c Card) Validate() error {
	if err := validateText("bank", c.Bank, ErrEmptyBank); err != nil {
		return err
	}
	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return Invalid("closing_day", ErrInvalidDay)
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return Invalid("due_day", ErrInvalidDay)
	}
	return nil
}
