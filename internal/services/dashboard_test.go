package services

import (
	"context"
	"testing"
	"time"

	"lovemoney/internal/core"
)

func TestDashboard_Build(t *testing.T) {
	e := newEnv(t)
	fx := seed(t, e)
	e.dashboard.now = func() time.Time { return time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC) }

	view, err := e.dashboard.Build(context.Background(), uid, month(t, 2024, time.May))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// Calendar month: the May expense, the May 3 Nubank charge and the
	// uncategorised Inter charge. April charges in the May statement do not count.
	if view.CategoryTotal.Cents != 18777 {
		t.Errorf("CategoryTotal = %d, want 18777", view.CategoryTotal.Cents)
	}
	if len(view.Categories) != 2 {
		t.Fatalf("Categories = %+v", view.Categories)
	}
	if c := view.Categories[0]; c.Name != "Mercado" || c.Amount.Cents != 11000 {
		t.Errorf("top category = %s %d", c.Name, c.Amount.Cents)
	}
	if c := view.Categories[1]; c.Name != "Outros" || c.Amount.Cents != 7777 {
		t.Errorf("second category = %s %d", c.Name, c.Amount.Cents)
	}

	if len(view.BestCards) != 1 || view.BestCards[0].Card.ID != fx.nubank {
		t.Errorf("BestCards = %+v", view.BestCards)
	} else if !view.BestCards[0].NextClosing.Equal(day(2024, 6, 3)) {
		t.Errorf("next closing = %v", view.BestCards[0].NextClosing)
	}

	if len(view.Cards) != 2 || view.Cards[1].Amount.Cents != 10000 {
		t.Errorf("Cards = %+v", view.Cards)
	}
}

func TestDashboard_ActiveSubscriptions(t *testing.T) {
	e := newEnv(t)
	fx := seed(t, e)

	items, err := e.dashboard.ActiveSubscriptions(context.Background(), uid)
	if err != nil {
		t.Fatal(err)
	}
	pos := map[string]int{}
	for i, it := range items {
		pos[it.Service] = i
	}
	if _, ok := pos["Gym"]; ok {
		t.Error("cancelled subscription listed")
	}
	spotify, okS := pos["Spotify"]
	netflix, okN := pos["Netflix"]
	if !okS || !okN {
		t.Fatalf("items = %+v", items)
	}
	if spotify > netflix {
		t.Error("day 1 subscription should come before day 15")
	}
	if it := items[spotify]; it.Kind != core.KindCardSubscription || it.CardID != fx.nubank {
		t.Errorf("Spotify item = %+v", it)
	}
}
