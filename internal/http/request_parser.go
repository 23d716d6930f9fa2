package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lovemoney/internal/core"
	"lovemoney/internal/period"
	"lovemoney/internal/records"
)

const (
	maxBodyBytes = 64 << 10
	dateLayout   = "2006-01-02"
)

// errBody marks a request body that could not be decoded.
var errBody = errors.New("malformed request body")

// decodeJSON reads one JSON object from r into dst. Unknown fields and
// trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.Invalid("body", fmt.Errorf("%w: %v", errBody, err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return core.Invalid("body", fmt.Errorf("%w: trailing data", errBody))
	}
	return nil
}

// MonthParams holds year/month query parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads year and month (1-12), defaulting each to now.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return params, core.Invalid("year", core.ErrInvalidYear)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return params, core.Invalid("month", core.ErrInvalidMonth)
		}
		params.Month = m
	}
	return params, nil
}

// parsePeriod resolves the ?year=&month= query to a period in loc.
func parsePeriod(query url.Values, now time.Time, loc *time.Location) (period.Period, error) {
	params, err := ParseMonthParams(query, now.In(loc))
	if err != nil {
		return period.Period{}, err
	}
	p, err := period.Month(params.Year, time.Month(params.Month), loc)
	if err != nil {
		return period.Period{}, core.Invalid("period", err)
	}
	return p, nil
}

// parseAmount converts a decimal string ("12,34" or "12.34") to Money.
func parseAmount(field, s string) (core.Money, error) {
	m, err := core.ParseAmount(s)
	if err != nil {
		return core.Money{}, core.Invalid(field, err)
	}
	return m, nil
}

// parseDate reads a YYYY-MM-DD date as midnight in loc.
func parseDate(field, s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, core.Invalid(field, core.ErrInvalidDate)
	}
	return t, nil
}

// parseRef builds the record reference from the {kind}/{id} path values and
// the optional ?card= query parameter.
func parseRef(r *http.Request) (records.Ref, error) {
	kind, err := core.ParseKind(r.PathValue("kind"))
	if err != nil {
		return records.Ref{}, core.Invalid("kind", err)
	}
	ref := records.Ref{
		Kind:   kind,
		ID:     strings.TrimSpace(r.PathValue("id")),
		CardID: strings.TrimSpace(r.URL.Query().Get("card")),
	}
	if !kind.CardScoped() {
		ref.CardID = ""
	}
	if err := ref.Validate(); err != nil {
		return records.Ref{}, err
	}
	return ref, nil
}
