package billing

import (
	"sort"
	"time"

	"lovemoney/internal/core"
)

// CardRank is a card with the number of days left until its next closing.
type CardRank struct {
	Card        core.Card
	NextClosing time.Time
	DaysLeft    int
}

// NextClosing returns the first closing date of card strictly after today.
// A purchase on the closing day itself already falls in the next statement,
// so a closing equal to today rolls to the following month.
func NextClosing(card core.Card, today time.Time) time.Time {
	today = core.StartOfDay(today)
	closing := core.ClampedDate(today.Year(), today.Month(), card.ClosingDay, today.Location())
	if !closing.After(today) {
		closing = core.ClampedDate(today.Year(), today.Month()+1, card.ClosingDay, today.Location())
	}
	return closing
}

// RankCards orders cards by how long a purchase made today waits before
// its statement closes, longest first. Cards without a cycle are skipped.
func RankCards(cards []core.Card, today time.Time) []CardRank {
	today = core.StartOfDay(today)
	ranks := make([]CardRank, 0, len(cards))
	for _, c := range cards {
		if !c.HasCycle() {
			continue
		}
		next := NextClosing(c, today)
		ranks = append(ranks, CardRank{
			Card:        c,
			NextClosing: next,
			DaysLeft:    Cycle{Start: today, End: next}.Days(),
		})
	}
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].DaysLeft != ranks[j].DaysLeft {
			return ranks[i].DaysLeft > ranks[j].DaysLeft
		}
		return ranks[i].Card.ID < ranks[j].Card.ID
	})
	return ranks
}
