package http

import (
	"strconv"
	"strings"
	"unicode"

	"lovemoney/internal/core"
)

// maxTextLength bounds free-text fields before they reach validation.
const maxTextLength = 500

// formatReais renders cents the way the app shows money: "R$ 1.234,56".
func formatReais(m core.Money) string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	frac := cents % 100

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	s := "R$ " + b.String() + "," + strconv.FormatInt(frac/10, 10) + strconv.FormatInt(frac%10, 10)
	if neg {
		return "-" + s
	}
	return s
}

// sanitizeInput trims whitespace, drops control characters and caps the length.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxTextLength {
		s = string(r[:maxTextLength])
	}
	return s
}
