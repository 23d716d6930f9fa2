package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"lovemoney/internal/amqp"
	"lovemoney/internal/core"
	"lovemoney/internal/log"
)

// Revisions versions each user's data. Cached summaries are keyed by the
// revision, so replacing it makes every cached summary of the user
// unreachable. Tokens are random so that instances sharing a cache agree
// on a revision only after seeing the same change event.
type Revisions struct {
	mu     sync.Mutex
	seed   string
	tokens map[string]string
}

func NewRevisions() *Revisions {
	return &Revisions{seed: uuid.NewString(), tokens: make(map[string]string)}
}

// Current returns the user's revision token.
func (r *Revisions) Current(uid string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tok, ok := r.tokens[uid]; ok {
		return tok
	}
	return r.seed
}

// Bump replaces the user's revision and returns the new token.
func (r *Revisions) Bump(uid string) string {
	tok := uuid.NewString()
	r.Observe(uid, tok)
	return tok
}

// Observe adopts a revision announced by another instance.
func (r *Revisions) Observe(uid, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[uid] = token
}

// EventPublisher announces committed mutations. *amqp.Client implements it.
type EventPublisher interface {
	PublishRecordsChanged(ctx context.Context, msg *amqp.RecordsChangedMessage) error
}

// Changes invalidates cached summaries after a write and tells the other
// instances to do the same.
type Changes struct {
	revisions  *Revisions
	publisher  EventPublisher
	logger     *log.Logger
	structured *log.StructuredLogger
}

// NewChanges wires revisions to an optional publisher.
func NewChanges(revisions *Revisions, publisher EventPublisher, logger *log.Logger) *Changes {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentMutations)
	return &Changes{
		revisions:  revisions,
		publisher:  publisher,
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
	}
}

// Record is called after the store confirmed a write. Publishing failures
// are logged; the write itself already succeeded.
func (c *Changes) Record(ctx context.Context, uid string, kind core.Kind, op string, ids []string) {
	rev := c.revisions.Bump(uid)
	c.structured.LogMutation(ctx, op, uid, string(kind), ids)

	if c.publisher == nil {
		return
	}
	msg := amqp.NewRecordsChangedMessage(uid, string(kind), op, ids, rev)
	if err := c.publisher.PublishRecordsChanged(ctx, msg); err != nil {
		c.logger.ErrorContext(ctx, "Failed to publish records changed message",
			log.FieldUserID, uid,
			log.FieldError, err)
	}
}

// Apply handles a change event from any instance.
func (c *Changes) Apply(ctx context.Context, msg *amqp.RecordsChangedMessage) error {
	c.revisions.Observe(msg.UserID, msg.Revision)
	c.logger.DebugContext(ctx, "Revision updated from event",
		log.FieldUserID, msg.UserID,
		log.FieldOperation, msg.Op)
	return nil
}
