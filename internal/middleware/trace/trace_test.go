package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"lovemoney/internal/log"
)

func TestHandler_RequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(log.NewText(&buf, slog.LevelInfo, log.ComponentHTTP), func(*http.Request) string { return "198.51.100.1" })

	var seen string
	var ctxLogger *log.Logger
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		ctxLogger = log.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated", "", false},
		{"client id kept", "abc-123", true},
		{"unsafe id replaced", "a b<c>", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.incoming != "" {
				r.Header.Set(HeaderRequestID, tt.incoming)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			got := w.Header().Get(HeaderRequestID)
			if got != seen {
				t.Errorf("header %q != context %q", got, seen)
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("request ID = %q, want %q", got, tt.incoming)
			}
			if !tt.keep {
				if _, err := uuid.Parse(got); err != nil {
					t.Errorf("generated ID %q is not a UUID", got)
				}
			}
			if ctxLogger == nil {
				t.Fatal("no logger in context")
			}
			out := buf.String()
			if !strings.Contains(out, "status_code=418") || !strings.Contains(out, got) {
				t.Errorf("completion log missing fields: %s", out)
			}
		})
	}

	if m.GetMetrics().TotalRequests != 3 {
		t.Errorf("TotalRequests = %d", m.GetMetrics().TotalRequests)
	}
	if m.GetMetrics().InFlight != 0 {
		t.Errorf("InFlight = %d", m.GetMetrics().InFlight)
	}
}

func TestResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	rw.Write([]byte("x"))
	rw.WriteHeader(http.StatusInternalServerError)
	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d", rw.statusCode)
	}
}
