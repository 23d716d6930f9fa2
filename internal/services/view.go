package services

import (
	"context"
	"errors"
	"sync"

	"lovemoney/internal/log"
	"lovemoney/internal/period"
)

// ErrStaleSelection is returned by a load that was superseded by a newer
// selection of the same user. Its result must not be shown.
var ErrStaleSelection = errors.New("selection superseded by a newer one")

// DefaultMaxSelections bounds how many users' selections are remembered.
const DefaultMaxSelections = 10000

type selection struct {
	gen    uint64
	period period.Period
	set    bool
	cancel context.CancelFunc
	used   uint64
}

// PeriodView tracks the period each user is looking at. Selecting a new
// period cancels the load of the previous one. When more than max users
// are tracked, the least recently selected idle user is forgotten.
type PeriodView struct {
	loader *Loader
	logger *log.Logger
	max    int

	mu         sync.Mutex
	selections map[string]*selection
	clock      uint64
}

func NewPeriodView(loader *Loader, logger *log.Logger) *PeriodView {
	if logger == nil {
		logger = log.Discard()
	}
	return &PeriodView{
		loader:     loader,
		logger:     logger.WithComponent(log.ComponentLoader),
		max:        DefaultMaxSelections,
		selections: make(map[string]*selection),
	}
}

// evictIdle drops the least recently used selection without a load in
// flight. Must be called with mu held.
func (v *PeriodView) evictIdle() {
	var (
		oldest string
		found  bool
		used   uint64
	)
	for uid, sel := range v.selections {
		if sel.cancel != nil {
			continue
		}
		if !found || sel.used < used {
			oldest, used, found = uid, sel.used, true
		}
	}
	if found {
		delete(v.selections, oldest)
	}
}

// Select makes p the user's current period and loads its summary. If another
// Select for the same user starts before this one finishes, this one returns
// ErrStaleSelection.
func (v *PeriodView) Select(ctx context.Context, uid string, p period.Period) (Summary, error) {
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	v.mu.Lock()
	sel, ok := v.selections[uid]
	if !ok {
		if len(v.selections) >= v.max {
			v.evictIdle()
		}
		sel = &selection{}
		v.selections[uid] = sel
	}
	v.clock++
	sel.used = v.clock
	if sel.cancel != nil {
		sel.cancel()
	}
	sel.gen++
	gen := sel.gen
	sel.period = p
	sel.set = true
	sel.cancel = cancel
	v.mu.Unlock()

	sum, err := v.loader.Summary(lctx, uid, p)

	v.mu.Lock()
	current := sel.gen == gen
	if current {
		sel.cancel = nil
	}
	v.mu.Unlock()

	if !current {
		v.logger.DebugContext(ctx, "Discarding superseded selection",
			log.FieldUserID, uid,
			log.FieldPeriod, p.String())
		return Summary{}, ErrStaleSelection
	}
	return sum, err
}

// Selected returns the user's current period, if any.
func (v *PeriodView) Selected(uid string) (period.Period, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	sel, ok := v.selections[uid]
	if !ok || !sel.set {
		return period.Period{}, false
	}
	return sel.period, true
}
