package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lovemoney/internal/auth"
	"lovemoney/internal/billing"
	"lovemoney/internal/core"
	"lovemoney/internal/docstore"
	"lovemoney/internal/services"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.Invalid("amount", core.ErrInvalidAmount), http.StatusBadRequest},
		{"invalid path", fmt.Errorf("get: %w", docstore.ErrInvalidPath), http.StatusBadRequest},
		{"not found", fmt.Errorf("get x: %w", docstore.ErrNotFound), http.StatusNotFound},
		{"not cancellable", fmt.Errorf("expense: %w", services.ErrNotCancellable), http.StatusConflict},
		{"already cancelled", services.ErrAlreadyCancelled, http.StatusConflict},
		{"not grouped", services.ErrNotGrouped, http.StatusConflict},
		{"stale selection", services.ErrStaleSelection, http.StatusConflict},
		{"missing token", auth.ErrMissingToken, http.StatusUnauthorized},
		{"invalid token", fmt.Errorf("%w: expired", auth.ErrInvalidToken), http.StatusUnauthorized},
		{"forbidden", auth.ErrForbidden, http.StatusForbidden},
		{"timeout", fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"store failure", errors.New("connection reset"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWriteError_HidesStoreFailures(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("mongo: secret host unreachable"))

	mustStatus(t, w, http.StatusBadGateway)
	body := decode[errorBody](t, w)
	if body.Error != http.StatusText(http.StatusBadGateway) {
		t.Errorf("error = %q", body.Error)
	}
}

func TestWriteError_ValidationField(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodPost, "/", nil), core.Invalid("description", core.ErrEmptyDescription))

	mustStatus(t, w, http.StatusBadRequest)
	body := decode[errorBody](t, w)
	if body.Field != "description" || body.Error != core.ErrEmptyDescription.Error() {
		t.Errorf("body = %+v", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestJSONResponse_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Header("X-Test", "1").Write(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 || w.Header().Get("X-Test") != "1" {
		t.Errorf("got %d %q %v", w.Code, w.Body.String(), w.Header())
	}
}

func TestCardTotalsOf_CycleDates(t *testing.T) {
	cycle, err := billing.CycleFor(2024, time.May, 3, 10, time.UTC)
	if err != nil {
		t.Fatalf("CycleFor: %v", err)
	}
	cards := []services.CardTotal{
		{CardID: "c1", Label: "Nubank", HasCycle: true, CycleStart: cycle.Start, CycleEnd: cycle.LastDay(), Amount: core.Money{Cents: 3334}},
		{CardID: "c2", Label: "Inter"},
	}

	got := cardTotalsOf(cards)
	if got[0].CycleFrom != "2024-04-03" || got[0].CycleTo != "2024-05-02" {
		t.Errorf("cycle = %s..%s, want 2024-04-03..2024-05-02", got[0].CycleFrom, got[0].CycleTo)
	}
	if got[1].CycleFrom != "" || got[1].CycleTo != "" {
		t.Errorf("card without cycle got dates %s..%s", got[1].CycleFrom, got[1].CycleTo)
	}
}

func TestFormatReais(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "R$ 0,00"},
		{5, "R$ 0,05"},
		{3990, "R$ 39,90"},
		{123456, "R$ 1.234,56"},
		{100000000, "R$ 1.000.000,00"},
		{-2550, "-R$ 25,50"},
	}
	for _, tt := range tests {
		if got := formatReais(core.Money{Cents: tt.cents}); got != tt.want {
			t.Errorf("formatReais(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Mercado  ", "Mercado"},
		{"Pa\x00da\x07ria", "Padaria"},
		{"linha\nnova", "linhanova"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := make([]rune, maxTextLength+10)
	for i := range long {
		long[i] = 'á'
	}
	if got := []rune(sanitizeInput(string(long))); len(got) != maxTextLength {
		t.Errorf("length = %d, want %d", len(got), maxTextLength)
	}
}
