package trigger

import (
	"context"
	"log"
	"time"
)

// blobStore is the slice of the object store the janitor needs.
type blobStore interface {
	RemovePrefix(ctx context.Context, prefix string) (removed, failed int)
}

// Janitor completes hard deletes: phase one stamped purge_requested_at on
// the card; the janitor sweeps the card's upload prefix out of the object
// store best-effort and then removes the card row. The row is removed
// even when blob deletions partially fail; a stray orphaned blob is
// accepted over a card that can never die.
type Janitor struct {
	store    cardStore
	blobs    blobStore
	interval time.Duration
}

func NewJanitor(dataStore cardStore, blobs blobStore, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Janitor{store: dataStore, blobs: blobs, interval: interval}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil {
				log.Printf("trigger: janitor sweep: %v", err)
			}
		}
	}
}

// RunOnce processes the current batch of purge-requested cards. A card
// whose row removal fails stays stamped and is retried next sweep.
func (j *Janitor) RunOnce(ctx context.Context) error {
	cards, err := j.store.ListPurgeRequested(ctx, 20)
	if err != nil {
		return err
	}

	for _, card := range cards {
		removed, failed := j.blobs.RemovePrefix(ctx, UploadPrefix(card.OrgID, card.ID))
		if removed > 0 || failed > 0 {
			log.Printf("trigger: purged card %s/%s uploads: %d removed, %d failed", card.OrgID, card.ID, removed, failed)
		}
		if err := j.store.HardDeleteCard(ctx, card.OrgID, card.ID); err != nil {
			log.Printf("trigger: hard delete %s/%s: %v (will retry)", card.OrgID, card.ID, err)
		}
	}
	return nil
}
