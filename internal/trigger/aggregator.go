package trigger

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"cardstack/api/internal/store"
)

// cardStore is the slice of the data store the trigger jobs need.
type cardStore interface {
	GetCard(ctx context.Context, orgID, cardID string) (store.Card, error)
	CountLiveSubCards(ctx context.Context, orgID, cardID string) (int, error)
	CountLiveFileItems(ctx context.Context, orgID, cardID string) (int, error)
	SetCardLabelCount(ctx context.Context, orgID, cardID string, count int) error
	InsertFileItem(ctx context.Context, item store.FileItem) (bool, error)
	ListPurgeRequested(ctx context.Context, limit int) ([]store.Card, error)
	HardDeleteCard(ctx context.Context, orgID, cardID string) error
}

// ChildWrite marks a create/update/delete of a sub-card or file item
// beneath a card. The event carries no payload beyond the card identity:
// the recount always reads current state.
type ChildWrite struct {
	OrgID  string
	CardID string
}

// Aggregator maintains cards.label_count as a recount-from-scratch.
// Deltas would double-count under retried or reordered events; a full
// recount makes duplicate and out-of-order deliveries self-correcting.
type Aggregator struct {
	store cardStore
}

func NewAggregator(dataStore cardStore) *Aggregator {
	return &Aggregator{store: dataStore}
}

// Recompute loads the parent card, recounts its live children, and writes
// the sum with a fresh last_updated in a single update. A missing parent
// is the expected race with a concurrent hard delete and is a no-op.
func (a *Aggregator) Recompute(ctx context.Context, orgID, cardID string) error {
	if _, err := a.store.GetCard(ctx, orgID, cardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	subCards, err := a.store.CountLiveSubCards(ctx, orgID, cardID)
	if err != nil {
		return err
	}
	files, err := a.store.CountLiveFileItems(ctx, orgID, cardID)
	if err != nil {
		return err
	}

	return a.store.SetCardLabelCount(ctx, orgID, cardID, subCards+files)
}

// Dispatcher serializes child-write events into aggregator recomputes.
// Failed recomputes are requeued; the recount is idempotent, so retries
// and duplicates are safe.
type Dispatcher struct {
	agg    *Aggregator
	events chan ChildWrite
}

func NewDispatcher(agg *Aggregator) *Dispatcher {
	return &Dispatcher{
		agg:    agg,
		events: make(chan ChildWrite, 256),
	}
}

// Publish enqueues a child-write event. Blocks only when the queue is
// saturated.
func (d *Dispatcher) Publish(event ChildWrite) {
	d.events <- event
}

// Run drains the event queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			if err := d.agg.Recompute(ctx, event.OrgID, event.CardID); err != nil {
				log.Printf("trigger: recompute %s/%s: %v (requeued)", event.OrgID, event.CardID, err)
				go func() {
					time.Sleep(time.Second)
					select {
					case d.events <- event:
					case <-ctx.Done():
					}
				}()
			}
		}
	}
}
