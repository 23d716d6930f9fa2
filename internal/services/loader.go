package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"lovemoney/internal/aggregate"
	"lovemoney/internal/billing"
	"lovemoney/internal/cache"
	"lovemoney/internal/core"
	"lovemoney/internal/log"
	"lovemoney/internal/period"
	"lovemoney/internal/records"
)

// CardTotal is one card's statement for a period.
type CardTotal struct {
	CardID     string     `json:"card_id"`
	Label      string     `json:"label"`
	HasCycle   bool       `json:"has_cycle"`
	CycleStart time.Time  `json:"cycle_start,omitempty"`
	// CycleEnd is the inclusive last day of the cycle.
	CycleEnd   time.Time  `json:"cycle_end,omitempty"`
	Amount     core.Money `json:"amount"`
}

// Summary is the cacheable part of a loaded period.
type Summary struct {
	UserID            string                   `json:"user_id"`
	Period            string                   `json:"period"`
	Grand             core.Money               `json:"grand"`
	Count             int                      `json:"count"`
	Sections          map[core.Kind]core.Money `json:"sections"`
	Groups            []aggregate.Group        `json:"groups"`
	Cards             []CardTotal              `json:"cards"`
	DataQualityIssues int                      `json:"data_quality_issues"`
}

// Snapshot is a fully loaded period: the records, the cycles used to judge
// card charges and the resulting totals.
type Snapshot struct {
	Summary
	Window  period.Window
	Records map[core.Kind][]core.Record
	Issues  period.Issues
	Totals  aggregate.Totals
}

// Loader fetches and aggregates one user's period.
type Loader struct {
	repo      *records.Repository
	cache     cache.Cache[Summary]
	revisions *Revisions
	logger    *log.Logger
}

// NewLoader builds a loader. A nil cache disables caching.
func NewLoader(repo *records.Repository, c cache.Cache[Summary], revisions *Revisions, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Discard()
	}
	if revisions == nil {
		revisions = NewRevisions()
	}
	return &Loader{
		repo:      repo,
		cache:     c,
		revisions: revisions,
		logger:    logger.WithComponent(log.ComponentLoader),
	}
}

func (l *Loader) cacheKey(uid string, p period.Period) string {
	return fmt.Sprintf("summary:%s:%s:%s", uid, l.revisions.Current(uid), p)
}

// Summary returns the cached summary of the period, loading it on a miss.
func (l *Loader) Summary(ctx context.Context, uid string, p period.Period) (Summary, error) {
	key := l.cacheKey(uid, p)
	if l.cache != nil {
		if s, ok := l.cache.Get(ctx, key); ok {
			return s, nil
		}
	}

	snap, err := l.Load(ctx, uid, p)
	if err != nil {
		return Summary{}, err
	}
	// A write that landed while loading has bumped the revision; the key
	// computed before the load then is simply never read again.
	if l.cache != nil {
		l.cache.Set(ctx, key, snap.Summary)
	}
	return snap.Summary, nil
}

// Load fetches every kind concurrently and aggregates the period. The first
// failing fetch cancels the others and its error is returned.
func (l *Loader) Load(ctx context.Context, uid string, p period.Period) (*Snapshot, error) {
	start := time.Now()
	loc := p.Location()

	var mu sync.Mutex
	byKind := make(map[core.Kind][]core.Record)
	add := func(kind core.Kind, recs []core.Record) {
		mu.Lock()
		defer mu.Unlock()
		byKind[kind] = append(byKind[kind], recs...)
	}
	cycles := make(map[string]billing.Cycle)
	var cards []core.Card

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := l.repo.Expenses(gctx, uid, p.Start, p.End)
		if err != nil {
			return fmt.Errorf("load expenses: %w", err)
		}
		add(core.KindExpense, recs)
		return nil
	})
	g.Go(func() error {
		recs, err := l.repo.Subscriptions(gctx, uid)
		if err != nil {
			return fmt.Errorf("load subscriptions: %w", err)
		}
		add(core.KindSubscription, recs)
		return nil
	})
	for _, kind := range core.InstallmentKinds {
		kind := kind
		g.Go(func() error {
			recs, err := l.repo.Installments(gctx, uid, kind, p.Start, p.End)
			if err != nil {
				return fmt.Errorf("load %s: %w", kind, err)
			}
			add(kind, recs)
			return nil
		})
	}
	g.Go(func() error {
		var err error
		cards, err = l.repo.Cards(gctx, uid)
		if err != nil {
			return fmt.Errorf("load cards: %w", err)
		}
		for _, card := range cards {
			if c, err := billing.CardCycle(card, p.Year, p.Month, loc); err == nil {
				cycles[card.ID] = c
			}
		}

		cg, cctx := errgroup.WithContext(gctx)
		for _, card := range cards {
			card := card
			if cycle, ok := cycles[card.ID]; ok {
				cg.Go(func() error {
					recs, err := l.repo.CardCharges(cctx, uid, card.ID, cycle)
					if err != nil {
						return fmt.Errorf("load charges of card %s: %w", card.ID, err)
					}
					add(core.KindCardCharge, recs)
					return nil
				})
			}
			cg.Go(func() error {
				recs, err := l.repo.CardSubscriptions(cctx, uid, card.ID)
				if err != nil {
					return fmt.Errorf("load subscriptions of card %s: %w", card.ID, err)
				}
				add(core.KindCardSubscription, recs)
				return nil
			})
		}
		return cg.Wait()
	})
	if err := g.Wait(); err != nil {
		l.logger.ErrorContext(ctx, "Period load failed",
			log.FieldUserID, uid,
			log.FieldPeriod, p.String(),
			log.FieldError, err)
		return nil, err
	}

	rep := &issueLog{ctx: ctx, uid: uid, logger: log.NewStructuredLogger(l.logger)}
	w := period.Window{Period: p, Cycles: cycles, Report: rep}
	totals := aggregate.Aggregate(byKind, period.Predicate(w), aggregate.NaturalKey)

	snap := &Snapshot{
		Summary: Summary{
			UserID:            uid,
			Period:            p.String(),
			Grand:             totals.Grand,
			Count:             totals.Count,
			Sections:          totals.ByKind(),
			Groups:            totals.Groups(),
			Cards:             cardTotals(cards, cycles, totals),
			DataQualityIssues: len(rep.issues),
		},
		Window:  w,
		Records: byKind,
		Issues:  rep.issues,
		Totals:  totals,
	}

	l.logger.DebugContext(ctx, "Period loaded",
		log.FieldUserID, uid,
		log.FieldPeriod, p.String(),
		log.FieldCount, totals.Count,
		log.FieldDuration, time.Since(start).Milliseconds())
	return snap, nil
}

// cardTotals lists every card with its charges for the period, in label order.
func cardTotals(cards []core.Card, cycles map[string]billing.Cycle, totals aggregate.Totals) []CardTotal {
	out := make([]CardTotal, 0, len(cards))
	for _, card := range cards {
		ct := CardTotal{
			CardID: card.ID,
			Label:  card.Label(),
			Amount: totals.ByGroup[aggregate.Bucket{Kind: core.KindCardCharge, Name: card.ID}],
		}
		if c, ok := cycles[card.ID]; ok {
			ct.HasCycle = true
			ct.CycleStart = c.Start
			ct.CycleEnd = c.LastDay()
		}
		out = append(out, ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].CardID < out[j].CardID
	})
	return out
}
