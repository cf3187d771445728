package trigger

import (
	"context"
	"errors"
	"testing"

	"cardstack/api/internal/store"
)

type fakeBlobStore struct {
	removePrefixFn func(ctx context.Context, prefix string) (int, int)
}

func (f *fakeBlobStore) RemovePrefix(ctx context.Context, prefix string) (int, int) {
	if f.removePrefixFn != nil {
		return f.removePrefixFn(ctx, prefix)
	}
	return 0, 0
}

func TestJanitorSweepsPurgeRequestedCards(t *testing.T) {
	var sweptPrefixes []string
	var deleted []string
	fake := &fakeCardStore{
		listPurgeRequestedFn: func(ctx context.Context, limit int) ([]store.Card, error) {
			return []store.Card{
				{ID: "card_1", OrgID: "org_1"},
				{ID: "card_2", OrgID: "org_1"},
			}, nil
		},
		hardDeleteCardFn: func(ctx context.Context, orgID, cardID string) error {
			deleted = append(deleted, orgID+"/"+cardID)
			return nil
		},
	}
	blobs := &fakeBlobStore{
		removePrefixFn: func(ctx context.Context, prefix string) (int, int) {
			sweptPrefixes = append(sweptPrefixes, prefix)
			return 2, 0
		},
	}

	j := NewJanitor(fake, blobs, 0)
	if err := j.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	if len(sweptPrefixes) != 2 || sweptPrefixes[0] != UploadPrefix("org_1", "card_1") {
		t.Fatalf("swept prefixes = %v", sweptPrefixes)
	}
	if len(deleted) != 2 || deleted[1] != "org_1/card_2" {
		t.Fatalf("deleted = %v", deleted)
	}
}

func TestJanitorRemovesRowDespiteBlobFailures(t *testing.T) {
	// Partial blob failures must not pin the card row forever; an
	// orphaned object is cheaper than an undeletable card.
	deleted := false
	fake := &fakeCardStore{
		listPurgeRequestedFn: func(ctx context.Context, limit int) ([]store.Card, error) {
			return []store.Card{{ID: "card_1", OrgID: "org_1"}}, nil
		},
		hardDeleteCardFn: func(ctx context.Context, orgID, cardID string) error {
			deleted = true
			return nil
		},
	}
	blobs := &fakeBlobStore{
		removePrefixFn: func(ctx context.Context, prefix string) (int, int) {
			return 1, 3
		},
	}

	j := NewJanitor(fake, blobs, 0)
	if err := j.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !deleted {
		t.Fatal("card row survived the sweep")
	}
}

func TestJanitorRetriesFailedRowDeleteNextSweep(t *testing.T) {
	attempts := 0
	pending := []store.Card{{ID: "card_1", OrgID: "org_1"}}
	fake := &fakeCardStore{
		listPurgeRequestedFn: func(ctx context.Context, limit int) ([]store.Card, error) {
			return pending, nil
		},
		hardDeleteCardFn: func(ctx context.Context, orgID, cardID string) error {
			attempts++
			if attempts == 1 {
				return errors.New("deadlock detected")
			}
			pending = nil
			return nil
		},
	}

	j := NewJanitor(fake, &fakeBlobStore{}, 0)
	for i := 0; i < 2; i++ {
		if err := j.RunOnce(context.Background()); err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}
