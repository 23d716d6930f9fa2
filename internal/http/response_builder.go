package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"lovemoney/internal/aggregate"
	"lovemoney/internal/auth"
	"lovemoney/internal/core"
	"lovemoney/internal/docstore"
	"lovemoney/internal/log"
	"lovemoney/internal/middleware/trace"
	"lovemoney/internal/services"
)

// JSONResponse builds a JSON response with a fluent API.
type JSONResponse struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse starts a 200 response.
func NewJSONResponse() *JSONResponse {
	return &JSONResponse{statusCode: http.StatusOK, headers: make(map[string]string)}
}

func (b *JSONResponse) Status(code int) *JSONResponse {
	b.statusCode = code
	return b
}

func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

func (b *JSONResponse) Body(v any) *JSONResponse {
	b.body = v
	return b
}

// Write sends the response. A nil body writes only the status.
func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, docstore.ErrInvalidPath),
		errors.Is(err, docstore.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotCancellable),
		errors.Is(err, services.ErrAlreadyCancelled),
		errors.Is(err, services.ErrNotGrouped),
		errors.Is(err, services.ErrStaleSelection):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return log.ErrorTypeValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return log.ErrorTypeAuth
	case http.StatusNotFound:
		return log.ErrorTypeNotFound
	case http.StatusConflict:
		return log.ErrorTypeConflict
	case http.StatusGatewayTimeout:
		return log.ErrorTypeTimeout
	}
	return log.ErrorTypeDatabase
}

// writeError logs err and answers with its mapped status. Store failures
// are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{
		Error:     err.Error(),
		RequestID: trace.GetRequestID(r.Context()),
	}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
		body.Error = verr.Err.Error()
	}
	if status >= 500 {
		body.Error = http.StatusText(status)
	}

	logger := log.FromContext(r.Context())
	fields := log.NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
		WithErrorType(errorType(status))
	fields[log.FieldStatusCode] = status
	if status >= 500 {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, log.ComponentHTTP, r.Pattern, fields)
	} else {
		logger.WithComponent(log.ComponentHTTP).DebugContext(r.Context(), "Request rejected", fields.WithError(err).ToSlice()...)
	}

	NewJSONResponse().Status(status).Body(body).Write(w)
}

// Money is an amount on the wire.
type Money struct {
	Cents     int64  `json:"cents"`
	Formatted string `json:"formatted"`
}

func moneyOf(m core.Money) Money {
	return Money{Cents: m.Cents, Formatted: formatReais(m)}
}

type groupDTO struct {
	Kind   core.Kind `json:"kind,omitempty"`
	Name   string    `json:"name"`
	Amount Money     `json:"amount"`
}

func groupsOf(groups []aggregate.Group) []groupDTO {
	out := make([]groupDTO, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupDTO{Kind: g.Kind, Name: g.Name, Amount: moneyOf(g.Amount)})
	}
	return out
}

type cardTotalDTO struct {
	CardID    string `json:"card_id"`
	Label     string `json:"label"`
	HasCycle  bool   `json:"has_cycle"`
	CycleFrom string `json:"cycle_from,omitempty"`
	CycleTo   string `json:"cycle_to,omitempty"`
	Amount    Money  `json:"amount"`
}

func cardTotalsOf(cards []services.CardTotal) []cardTotalDTO {
	out := make([]cardTotalDTO, 0, len(cards))
	for _, c := range cards {
		dto := cardTotalDTO{CardID: c.CardID, Label: c.Label, HasCycle: c.HasCycle, Amount: moneyOf(c.Amount)}
		if c.HasCycle {
			dto.CycleFrom = c.CycleStart.Format(dateLayout)
			dto.CycleTo = c.CycleEnd.Format(dateLayout)
		}
		out = append(out, dto)
	}
	return out
}

type summaryDTO struct {
	UserID            string              `json:"user_id"`
	Period            string              `json:"period"`
	Grand             Money               `json:"grand"`
	Count             int                 `json:"count"`
	Sections          map[core.Kind]Money `json:"sections"`
	Groups            []groupDTO          `json:"groups"`
	Cards             []cardTotalDTO      `json:"cards"`
	DataQualityIssues int                 `json:"data_quality_issues"`
}

func summaryOf(s services.Summary) summaryDTO {
	sections := make(map[core.Kind]Money, len(s.Sections))
	for k, m := range s.Sections {
		sections[k] = moneyOf(m)
	}
	return summaryDTO{
		UserID:            s.UserID,
		Period:            s.Period,
		Grand:             moneyOf(s.Grand),
		Count:             s.Count,
		Sections:          sections,
		Groups:            groupsOf(s.Groups),
		Cards:             cardTotalsOf(s.Cards),
		DataQualityIssues: s.DataQualityIssues,
	}
}

type subscriptionDTO struct {
	ID         string    `json:"id"`
	Kind       core.Kind `json:"kind"`
	CardID     string    `json:"card_id,omitempty"`
	Service    string    `json:"service"`
	Amount     Money     `json:"amount"`
	PaymentDay string    `json:"payment_day"`
}

func subscriptionsOf(items []services.SubscriptionItem) []subscriptionDTO {
	out := make([]subscriptionDTO, 0, len(items))
	for _, it := range items {
		out = append(out, subscriptionDTO{
			ID:         it.ID,
			Kind:       it.Kind,
			CardID:     it.CardID,
			Service:    it.Service,
			Amount:     moneyOf(it.Amount),
			PaymentDay: it.PaymentDay.Format(dateLayout),
		})
	}
	return out
}

type cardRankDTO struct {
	CardID      string `json:"card_id"`
	Label       string `json:"label"`
	NextClosing string `json:"next_closing"`
	DaysLeft    int    `json:"days_left"`
}

type dashboardDTO struct {
	Period        string            `json:"period"`
	Categories    []groupDTO        `json:"categories"`
	CategoryTotal Money             `json:"category_total"`
	BestCards     []cardRankDTO     `json:"best_cards"`
	Subscriptions []subscriptionDTO `json:"subscriptions"`
	Cards         []cardTotalDTO    `json:"cards"`
}

func dashboardOf(v *services.DashboardView) dashboardDTO {
	ranks := make([]cardRankDTO, 0, len(v.BestCards))
	for _, r := range v.BestCards {
		ranks = append(ranks, cardRankDTO{
			CardID:      r.Card.ID,
			Label:       r.Card.Label(),
			NextClosing: r.NextClosing.Format(dateLayout),
			DaysLeft:    r.DaysLeft,
		})
	}
	return dashboardDTO{
		Period:        v.Period,
		Categories:    groupsOf(v.Categories),
		CategoryTotal: moneyOf(v.CategoryTotal),
		BestCards:     ranks,
		Subscriptions: subscriptionsOf(v.Subscriptions),
		Cards:         cardTotalsOf(v.Cards),
	}
}

type createdDTO struct {
	IDs []string `json:"ids"`
}

type affectedDTO struct {
	Affected int `json:"affected"`
}
