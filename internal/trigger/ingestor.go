package trigger

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"cardstack/api/internal/blob"
	"cardstack/api/internal/store"
	"cardstack/api/internal/util"
)

// Ingestor materializes file_items rows for finalized uploads. Clients
// only write bytes; this is the sole writer of file records, so the
// object store stays the single source of truth for what was uploaded.
type Ingestor struct {
	store cardStore
	agg   *Aggregator
}

func NewIngestor(dataStore cardStore, agg *Aggregator) *Ingestor {
	return &Ingestor{store: dataStore, agg: agg}
}

// HandleFinalize processes one upload-finalized event. Keys outside the
// upload path contract are ignored. The file id is derived from the
// storage path and the insert conflicts on it, so a redelivered event
// inserts nothing and triggers no recount. The event source may deliver
// at-least-once.
func (i *Ingestor) HandleFinalize(ctx context.Context, obj blob.FinalizedObject) error {
	ref, ok := ParseUploadPath(obj.Key)
	if !ok {
		return nil
	}

	// An event can arrive after the janitor hard-deleted the parent.
	// Like Recompute, treat the missing card as the expected race and
	// drop the event instead of failing the file_items FK forever.
	if _, err := i.store.GetCard(ctx, ref.OrgID, ref.CardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	inserted, err := i.store.InsertFileItem(ctx, store.FileItem{
		ID:          util.FileID(obj.Key),
		OrgID:       ref.OrgID,
		CardID:      ref.CardID,
		Name:        ref.Filename,
		StoragePath: obj.Key,
		Size:        obj.Size,
		ContentType: obj.ContentType,
		FileType:    FileTypeFor(obj.ContentType),
		Status:      store.StatusLive,
	})
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	return i.agg.Recompute(ctx, ref.OrgID, ref.CardID)
}

// Run consumes the bucket notification stream until it closes or ctx is
// cancelled. Errors are logged; the deterministic file id makes a retried
// event harmless, so nothing is requeued here.
func (i *Ingestor) Run(ctx context.Context, events <-chan blob.FinalizedObject) {
	for {
		select {
		case <-ctx.Done():
			return
		case obj, ok := <-events:
			if !ok {
				return
			}
			if err := i.HandleFinalize(ctx, obj); err != nil {
				log.Printf("trigger: ingest %s: %v", obj.Key, err)
			}
		}
	}
}
