package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"lovemoney/internal/aggregate"
	"lovemoney/internal/billing"
	"lovemoney/internal/core"
	"lovemoney/internal/period"
	"lovemoney/internal/records"
)

// SubscriptionItem is one row of the active subscriptions list.
type SubscriptionItem struct {
	ID         string
	Kind       core.Kind
	CardID     string
	Service    string
	Amount     core.Money
	PaymentDay time.Time
}

// DashboardView is the month overview: spending by category, where to buy
// today, what keeps charging and each card's statement.
type DashboardView struct {
	Period        string
	Categories    []aggregate.Group
	CategoryTotal core.Money
	BestCards     []billing.CardRank
	Subscriptions []SubscriptionItem
	Cards         []CardTotal
}

type Dashboard struct {
	repo   *records.Repository
	loader *Loader
	now    func() time.Time
}

func NewDashboard(repo *records.Repository, loader *Loader) *Dashboard {
	return &Dashboard{repo: repo, loader: loader, now: time.Now}
}

// ActiveSubscriptions lists the currently active subscriptions of both
// origins, ordered by payment day of month and then service.
func (d *Dashboard) ActiveSubscriptions(ctx context.Context, uid string) ([]SubscriptionItem, error) {
	cards, err := d.repo.Cards(ctx, uid)
	if err != nil {
		return nil, err
	}
	direct, err := d.repo.Subscriptions(ctx, uid)
	if err != nil {
		return nil, err
	}
	all := direct
	for _, card := range cards {
		recs, err := d.repo.CardSubscriptions(ctx, uid, card.ID)
		if err != nil {
			return nil, err
		}
		all = append(all, recs...)
	}

	items := make([]SubscriptionItem, 0, len(all))
	for _, rec := range all {
		if !period.IsCurrentlyActive(rec) {
			continue
		}
		sub, _ := subscriptionOf(rec)
		ref := records.RefOf(rec)
		items = append(items, SubscriptionItem{
			ID:         rec.RecordID(),
			Kind:       rec.Kind(),
			CardID:     ref.CardID,
			Service:    sub.Label(),
			Amount:     sub.Amount,
			PaymentDay: sub.PaymentDay,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := items[i].PaymentDay.Day(), items[j].PaymentDay.Day()
		if di != dj {
			return di < dj
		}
		if items[i].Service != items[j].Service {
			return items[i].Service < items[j].Service
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// Build assembles the dashboard for p. Category totals use the calendar
// month for card charges too, unlike statement totals.
func (d *Dashboard) Build(ctx context.Context, uid string, p period.Period) (*DashboardView, error) {
	view := &DashboardView{Period: p.String()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		groups, total, err := d.categories(gctx, uid, p)
		if err != nil {
			return err
		}
		view.Categories, view.CategoryTotal = groups, total
		return nil
	})
	g.Go(func() error {
		cards, err := d.repo.Cards(gctx, uid)
		if err != nil {
			return err
		}
		view.BestCards = billing.RankCards(cards, d.now().In(p.Location()))
		return nil
	})
	g.Go(func() error {
		subs, err := d.ActiveSubscriptions(gctx, uid)
		if err != nil {
			return err
		}
		view.Subscriptions = subs
		return nil
	})
	g.Go(func() error {
		sum, err := d.loader.Summary(gctx, uid, p)
		if err != nil {
			return err
		}
		view.Cards = sum.Cards
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build dashboard: %w", err)
	}
	return view, nil
}

func (d *Dashboard) categories(ctx context.Context, uid string, p period.Period) ([]aggregate.Group, core.Money, error) {
	expenses, err := d.repo.Expenses(ctx, uid, p.Start, p.End)
	if err != nil {
		return nil, core.Money{}, err
	}
	cards, err := d.repo.Cards(ctx, uid)
	if err != nil {
		return nil, core.Money{}, err
	}
	month := billing.Cycle{Start: p.Start, End: p.End.Add(time.Nanosecond)}
	var charges []core.Record
	for _, card := range cards {
		recs, err := d.repo.CardCharges(ctx, uid, card.ID, month)
		if err != nil {
			return nil, core.Money{}, err
		}
		charges = append(charges, recs...)
	}

	w := period.Window{Period: p}
	calendar := period.CalendarRule{}
	totals := aggregate.Aggregate(map[core.Kind][]core.Record{
		core.KindExpense:    expenses,
		core.KindCardCharge: charges,
	}, func(rec core.Record) bool {
		return calendar.Active(rec, w)
	}, aggregate.CategoryKey)
	return totals.ByName(), totals.Grand, nil
}
