package http

import (
	"net/http"
	"strings"
	"time"

	"lovemoney/internal/core"
	"lovemoney/internal/services"
)

type expenseRequest struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date, s.deps.Repo.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := s.deps.Forms.CreateExpense(r.Context(), r.PathValue("uid"), services.ExpenseInput{
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Amount:      amount,
		Date:        date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(createdDTO{IDs: []string{id}}).Write(w)
}

type subscriptionRequest struct {
	Service     string `json:"service"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	PaymentDay  string `json:"payment_day"`
	CardID      string `json:"card_id"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	day, err := parseDate("payment_day", req.PaymentDay, s.deps.Repo.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := s.deps.Forms.CreateSubscription(r.Context(), r.PathValue("uid"), services.SubscriptionInput{
		Service:     sanitizeInput(req.Service),
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		PaymentDay:  day,
		CardID:      strings.TrimSpace(req.CardID),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(createdDTO{IDs: []string{id}}).Write(w)
}

type installmentRequest struct {
	Kind          string `json:"kind"`
	Description   string `json:"description"`
	Count         int    `json:"count"`
	Amount        string `json:"amount"`
	FirstDate     string `json:"first_date"`
	Beneficiary   string `json:"beneficiary"`
	FinancingType string `json:"financing_type"`
	Bank          string `json:"bank"`
}

func (s *Server) handleCreateInstallments(w http.ResponseWriter, r *http.Request) {
	var req installmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		writeError(w, r, core.Invalid("kind", err))
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	first, err := parseDate("first_date", req.FirstDate, s.deps.Repo.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}

	ids, err := s.deps.Forms.CreateInstallments(r.Context(), r.PathValue("uid"), services.InstallmentInput{
		Kind:          kind,
		Description:   sanitizeInput(req.Description),
		Count:         req.Count,
		Amount:        amount,
		FirstDate:     first,
		Beneficiary:   sanitizeInput(req.Beneficiary),
		FinancingType: sanitizeInput(req.FinancingType),
		Bank:          sanitizeInput(req.Bank),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(createdDTO{IDs: ids}).Write(w)
}

type cardRequest struct {
	Bank       string `json:"bank"`
	Nickname   string `json:"nickname"`
	ClosingDay int    `json:"closing_day"`
	DueDay     int    `json:"due_day"`
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.deps.Forms.CreateCard(r.Context(), r.PathValue("uid"), services.CardInput{
		Bank:       sanitizeInput(req.Bank),
		Nickname:   sanitizeInput(req.Nickname),
		ClosingDay: req.ClosingDay,
		DueDay:     req.DueDay,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(createdDTO{IDs: []string{id}}).Write(w)
}

type purchaseRequest struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Total       string `json:"total"`
	Count       int    `json:"count"`
	Date        string `json:"date"`
}

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	total, err := parseAmount("total", req.Total)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate("date", req.Date, s.deps.Repo.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}

	ids, err := s.deps.Forms.CreateCardPurchase(r.Context(), r.PathValue("uid"), services.CardPurchaseInput{
		CardID:      r.PathValue("cardId"),
		Description: sanitizeInput(req.Description),
		Category:    sanitizeInput(req.Category),
		Total:       total,
		Count:       req.Count,
		Date:        date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(createdDTO{IDs: ids}).Write(w)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	ref, err := parseRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Mutations.Cancel(r.Context(), r.PathValue("uid"), ref); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// handleDelete removes the record, or its whole group for grouped kinds.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ref, err := parseRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.deps.Mutations.Delete(r.Context(), r.PathValue("uid"), ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(affectedDTO{Affected: n}).Write(w)
}

type amountRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleEditAmount(w http.ResponseWriter, r *http.Request) {
	ref, err := parseRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Mutations.EditAmount(r.Context(), r.PathValue("uid"), ref, amount); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type memberRequest struct {
	Date   *string `json:"date"`
	Amount *string `json:"amount"`
}

func (s *Server) handleEditMember(w http.ResponseWriter, r *http.Request) {
	ref, err := parseRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var amount *core.Money
	if req.Amount != nil {
		m, err := parseAmount("amount", *req.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		amount = &m
	}
	var due *time.Time
	if req.Date != nil {
		d, err := parseDate("date", *req.Date, s.deps.Repo.Location())
		if err != nil {
			writeError(w, r, err)
			return
		}
		due = &d
	}

	if err := s.deps.Mutations.EditMember(r.Context(), r.PathValue("uid"), ref, due, amount); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

type rescheduleRequest struct {
	Base string `json:"base"`
}

// handleReschedule re-dates the record's whole group from a new base date.
func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	ref, err := parseRef(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req rescheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	base, err := parseDate("base", req.Base, s.deps.Repo.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := s.deps.Mutations.RescheduleGroup(r.Context(), r.PathValue("uid"), ref, base)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(affectedDTO{Affected: n}).Write(w)
}
