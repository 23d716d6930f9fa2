package http

import (
	"context"
	"errors"
	"net/http"

	"lovemoney/internal/core"
	"lovemoney/internal/log"
	"lovemoney/internal/period"
	"lovemoney/internal/services"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if err := s.deps.Repo.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed",
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldError, err)
		NewJSONResponse().Status(http.StatusServiceUnavailable).Body(map[string]string{"status": "unavailable"}).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r.URL.Query(), s.now(), s.deps.Repo.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.deps.Loader.Summary(r.Context(), r.PathValue("uid"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(summaryOf(sum)).Write(w)
}

type selectRequest struct {
	Year       int  `json:"year"`
	MonthIndex *int `json:"monthIndex"`
}

type selectionDTO struct {
	Selected string     `json:"selected"`
	Summary  summaryDTO `json:"summary"`
}

// handleSelect switches the user's period. A selection overtaken by a newer
// one answers 409 so the client drops it.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.MonthIndex == nil {
		writeError(w, r, core.Invalid("monthIndex", core.ErrInvalidMonth))
		return
	}
	p, err := period.FromIndex(req.Year, *req.MonthIndex, s.deps.Repo.Location())
	if err != nil {
		writeError(w, r, core.Invalid("period", err))
		return
	}

	uid := r.PathValue("uid")
	sum, err := s.deps.View.Select(r.Context(), uid, p)
	if err != nil {
		if errors.Is(err, services.ErrStaleSelection) {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Selection superseded",
				log.FieldOperation, log.OpSelect,
				log.FieldUserID, uid,
				log.FieldPeriod, p.String())
		}
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(selectionDTO{Selected: p.String(), Summary: summaryOf(sum)}).Write(w)
}

func (s *Server) handleActiveSubscriptions(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Dashboard.ActiveSubscriptions(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(subscriptionsOf(items)).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r.URL.Query(), s.now(), s.deps.Repo.Location())
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.deps.Dashboard.Build(r.Context(), r.PathValue("uid"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(dashboardOf(view)).Write(w)
}
