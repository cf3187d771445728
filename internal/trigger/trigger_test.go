package trigger

import (
	"context"
	"database/sql"

	"cardstack/api/internal/store"
)

type fakeCardStore struct {
	getCardFn            func(ctx context.Context, orgID, cardID string) (store.Card, error)
	countLiveSubCardsFn  func(ctx context.Context, orgID, cardID string) (int, error)
	countLiveFileItemsFn func(ctx context.Context, orgID, cardID string) (int, error)
	setCardLabelCountFn  func(ctx context.Context, orgID, cardID string, count int) error
	insertFileItemFn     func(ctx context.Context, item store.FileItem) (bool, error)
	listPurgeRequestedFn func(ctx context.Context, limit int) ([]store.Card, error)
	hardDeleteCardFn     func(ctx context.Context, orgID, cardID string) error
}

func (f *fakeCardStore) GetCard(ctx context.Context, orgID, cardID string) (store.Card, error) {
	if f.getCardFn != nil {
		return f.getCardFn(ctx, orgID, cardID)
	}
	return store.Card{ID: cardID, OrgID: orgID}, nil
}

func (f *fakeCardStore) CountLiveSubCards(ctx context.Context, orgID, cardID string) (int, error) {
	if f.countLiveSubCardsFn != nil {
		return f.countLiveSubCardsFn(ctx, orgID, cardID)
	}
	return 0, nil
}

func (f *fakeCardStore) CountLiveFileItems(ctx context.Context, orgID, cardID string) (int, error) {
	if f.countLiveFileItemsFn != nil {
		return f.countLiveFileItemsFn(ctx, orgID, cardID)
	}
	return 0, nil
}

func (f *fakeCardStore) SetCardLabelCount(ctx context.Context, orgID, cardID string, count int) error {
	if f.setCardLabelCountFn != nil {
		return f.setCardLabelCountFn(ctx, orgID, cardID, count)
	}
	return nil
}

func (f *fakeCardStore) InsertFileItem(ctx context.Context, item store.FileItem) (bool, error) {
	if f.insertFileItemFn != nil {
		return f.insertFileItemFn(ctx, item)
	}
	return true, nil
}

func (f *fakeCardStore) ListPurgeRequested(ctx context.Context, limit int) ([]store.Card, error) {
	if f.listPurgeRequestedFn != nil {
		return f.listPurgeRequestedFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeCardStore) HardDeleteCard(ctx context.Context, orgID, cardID string) error {
	if f.hardDeleteCardFn != nil {
		return f.hardDeleteCardFn(ctx, orgID, cardID)
	}
	return nil
}

var errNoRows = sql.ErrNoRows
