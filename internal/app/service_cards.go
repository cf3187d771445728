package app

import (
	"context"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"cardstack/api/internal/search"
	"cardstack/api/internal/store"
	"cardstack/api/internal/trigger"
	"cardstack/api/internal/util"
)

var allowedStatuses = map[string]struct{}{
	store.StatusLive:     {},
	store.StatusDisabled: {},
	store.StatusDraft:    {},
}

// Templates

func (s *Service) CreateTemplate(ctx context.Context, orgID, title, description, heroImage, createdBy string) (store.CardTemplate, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.CardTemplate{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	tpl := store.CardTemplate{
		ID:          util.NewID("tpl"),
		OrgID:       orgID,
		Title:       title,
		Description: strings.TrimSpace(description),
		HeroImage:   heroImage,
		Status:      store.StatusLive,
		CreatedBy:   createdBy,
	}
	if err := s.store.InsertTemplate(ctx, tpl); err != nil {
		return store.CardTemplate{}, err
	}
	return tpl, nil
}

func (s *Service) ListTemplates(ctx context.Context, orgID string) ([]store.CardTemplate, error) {
	return s.store.ListTemplates(ctx, orgID)
}

// UpdateTemplate changes description and status only; a template's title
// and hero image are fixed at creation.
func (s *Service) UpdateTemplate(ctx context.Context, orgID, templateID, description, status string) (store.CardTemplate, error) {
	if status != "" {
		if _, ok := allowedStatuses[status]; !ok {
			return store.CardTemplate{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", nil)
		}
	}
	if err := s.store.UpdateTemplate(ctx, orgID, templateID, description, status); err != nil {
		return store.CardTemplate{}, err
	}
	return s.store.GetTemplate(ctx, orgID, templateID)
}

func (s *Service) DeleteTemplate(ctx context.Context, orgID, templateID string) error {
	return s.store.DeleteTemplate(ctx, orgID, templateID)
}

// Cards

// CreateCardFromTemplate instantiates a card by copying the template's
// display fields. The card keeps no live link back to the template.
func (s *Service) CreateCardFromTemplate(ctx context.Context, orgID, templateID, createdBy string) (store.Card, error) {
	if strings.TrimSpace(templateID) == "" {
		return store.Card{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "templateId is required", nil)
	}
	tpl, err := s.store.GetTemplate(ctx, orgID, templateID)
	if err != nil {
		return store.Card{}, err
	}

	card := store.Card{
		ID:          util.NewID("card"),
		OrgID:       orgID,
		TemplateID:  tpl.ID,
		Title:       tpl.Title,
		Description: tpl.Description,
		HeroImage:   tpl.HeroImage,
		LabelCount:  0,
		Status:      store.StatusLive,
	}
	if err := s.store.InsertCard(ctx, card); err != nil {
		return store.Card{}, err
	}

	if s.search != nil {
		s.search.IndexCard(cardRecord(card))
	}
	return s.store.GetCard(ctx, orgID, card.ID)
}

func (s *Service) ListCards(ctx context.Context, orgID, status string) ([]store.Card, error) {
	if status != "" {
		if _, ok := allowedStatuses[status]; !ok {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status filter", nil)
		}
	}
	return s.store.ListCards(ctx, orgID, status)
}

// GetCard returns the card by direct id, tombstoned or not.
func (s *Service) GetCard(ctx context.Context, orgID, cardID string) (store.Card, error) {
	return s.store.GetCard(ctx, orgID, cardID)
}

// UpdateCard patches title/description/hero/status. The update never
// touches label_count, so it cannot clobber a concurrent recount.
func (s *Service) UpdateCard(ctx context.Context, orgID, cardID, title, description, heroImage, status string) (store.Card, error) {
	if status != "" {
		if _, ok := allowedStatuses[status]; !ok {
			return store.Card{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", nil)
		}
	}
	if err := s.store.UpdateCardFields(ctx, orgID, cardID, title, description, heroImage, status); err != nil {
		return store.Card{}, err
	}
	card, err := s.store.GetCard(ctx, orgID, cardID)
	if err != nil {
		return store.Card{}, err
	}
	if s.search != nil {
		if card.Deleted || card.Status != store.StatusLive {
			s.search.DeleteCard(card.ID)
		} else {
			s.search.IndexCard(cardRecord(card))
		}
	}
	return card, nil
}

// DeleteCard tombstones a card. Soft delete leaves the card and its
// children retrievable by direct id. Hard delete additionally stamps a
// purge request; the janitor removes the blobs and rows afterwards, so
// the caller returns before storage cleanup finishes.
func (s *Service) DeleteCard(ctx context.Context, orgID, cardID string, hard bool) error {
	if err := s.store.SoftDeleteCard(ctx, orgID, cardID); err != nil {
		return err
	}
	if hard {
		if err := s.store.RequestCardPurge(ctx, orgID, cardID); err != nil {
			return err
		}
	}
	if s.search != nil {
		s.search.DeleteCard(cardID)
	}
	return nil
}

// Uploads

// UploadToCard writes raw bytes to a fresh object path and returns the
// storage path. It never writes the file record; the ingestor does that
// when the upload-finalized event arrives.
func (s *Service) UploadToCard(ctx context.Context, orgID, cardID, filename, contentType string, size int64, reader io.Reader) (string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" || strings.Contains(filename, "/") {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid filename", nil)
	}

	card, err := s.store.GetCard(ctx, orgID, cardID)
	if err != nil {
		return "", err
	}
	if card.Deleted {
		return "", domainError(http.StatusConflict, "CARD_DELETED", "Card has been deleted", nil)
	}

	key := trigger.NewUploadPath(orgID, cardID, filename)
	if err := s.blobs.Upload(ctx, key, reader, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Sub-content

// SubContentItem is one entry of a card's merged child listing.
type SubContentItem struct {
	Kind        string    `json:"kind"` // "sub_card" or "file"
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	HeroImage   string    `json:"heroImage,omitempty"`
	StoragePath string    `json:"storagePath,omitempty"`
	Size        int64     `json:"size,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	FileType    string    `json:"fileType,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ListSubContent merges a card's live sub-cards and live file items in
// creation order.
func (s *Service) ListSubContent(ctx context.Context, orgID, cardID string) ([]SubContentItem, error) {
	if _, err := s.store.GetCard(ctx, orgID, cardID); err != nil {
		return nil, err
	}

	subCards, err := s.store.ListSubCards(ctx, orgID, cardID, true)
	if err != nil {
		return nil, err
	}
	files, err := s.store.ListFileItems(ctx, orgID, cardID, true)
	if err != nil {
		return nil, err
	}

	items := make([]SubContentItem, 0, len(subCards)+len(files))
	for _, sc := range subCards {
		items = append(items, SubContentItem{
			Kind:        "sub_card",
			ID:          sc.ID,
			Title:       sc.Title,
			Description: sc.Description,
			HeroImage:   sc.HeroImage,
			CreatedAt:   sc.CreatedAt,
		})
	}
	for _, f := range files {
		items = append(items, SubContentItem{
			Kind:        "file",
			ID:          f.ID,
			Title:       f.Name,
			StoragePath: f.StoragePath,
			Size:        f.Size,
			ContentType: f.ContentType,
			FileType:    f.FileType,
			CreatedAt:   f.CreatedAt,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Service) CreateSubCard(ctx context.Context, orgID, cardID, title, description, heroImage, status string) (store.SubCard, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.SubCard{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if status == "" {
		status = store.StatusLive
	}
	if _, ok := allowedStatuses[status]; !ok {
		return store.SubCard{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", nil)
	}

	card, err := s.store.GetCard(ctx, orgID, cardID)
	if err != nil {
		return store.SubCard{}, err
	}
	if card.Deleted {
		return store.SubCard{}, domainError(http.StatusConflict, "CARD_DELETED", "Card has been deleted", nil)
	}

	sub := store.SubCard{
		ID:          util.NewID("sub"),
		OrgID:       orgID,
		CardID:      cardID,
		Title:       title,
		Description: strings.TrimSpace(description),
		HeroImage:   heroImage,
		Status:      status,
	}
	if err := s.store.InsertSubCard(ctx, sub); err != nil {
		return store.SubCard{}, err
	}

	s.events.Publish(trigger.ChildWrite{OrgID: orgID, CardID: cardID})
	if s.search != nil && sub.Status == store.StatusLive {
		s.search.IndexSubCard(subCardRecord(sub))
	}
	return s.store.GetSubCard(ctx, orgID, cardID, sub.ID)
}

func (s *Service) UpdateSubCard(ctx context.Context, orgID, cardID, subCardID, title, description, status string) (store.SubCard, error) {
	if status != "" {
		if _, ok := allowedStatuses[status]; !ok {
			return store.SubCard{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid status", nil)
		}
	}
	if err := s.store.UpdateSubCard(ctx, orgID, cardID, subCardID, title, description, status); err != nil {
		return store.SubCard{}, err
	}

	s.events.Publish(trigger.ChildWrite{OrgID: orgID, CardID: cardID})

	sub, err := s.store.GetSubCard(ctx, orgID, cardID, subCardID)
	if err != nil {
		return store.SubCard{}, err
	}
	if s.search != nil {
		if sub.Status == store.StatusLive {
			s.search.IndexSubCard(subCardRecord(sub))
		} else {
			s.search.DeleteSubCard(sub.ID)
		}
	}
	return sub, nil
}

// DeleteSubCard removes the row, then its hero image object best-effort.
func (s *Service) DeleteSubCard(ctx context.Context, orgID, cardID, subCardID string) error {
	sub, err := s.store.GetSubCard(ctx, orgID, cardID, subCardID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSubCard(ctx, orgID, cardID, subCardID); err != nil {
		return err
	}

	if sub.HeroImage != "" {
		if err := s.blobs.Remove(ctx, sub.HeroImage); err != nil {
			log.Printf("app: remove sub-card hero %s: %v", sub.HeroImage, err)
		}
	}

	s.events.Publish(trigger.ChildWrite{OrgID: orgID, CardID: cardID})
	if s.search != nil {
		s.search.DeleteSubCard(subCardID)
	}
	return nil
}

// DeleteFileItem removes the record, then the stored object best-effort.
func (s *Service) DeleteFileItem(ctx context.Context, orgID, cardID, fileID string) error {
	item, err := s.store.GetFileItem(ctx, orgID, cardID, fileID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteFileItem(ctx, orgID, cardID, fileID); err != nil {
		return err
	}

	if err := s.blobs.Remove(ctx, item.StoragePath); err != nil {
		log.Printf("app: remove file object %s: %v", item.StoragePath, err)
	}

	s.events.Publish(trigger.ChildWrite{OrgID: orgID, CardID: cardID})
	return nil
}

// Usage

func (s *Service) RecordCardView(ctx context.Context, orgID, cardID, viewedBy string) error {
	if _, err := s.store.GetCard(ctx, orgID, cardID); err != nil {
		return err
	}
	return s.store.InsertCardView(ctx, orgID, cardID, viewedBy)
}

func (s *Service) UsageSummary(ctx context.Context, orgID string) (store.UsageSummary, error) {
	return s.store.OrgUsageSummary(ctx, orgID)
}

func cardRecord(c store.Card) search.CardRecord {
	return search.CardRecord{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		OrgID:       c.OrgID,
		Status:      c.Status,
	}
}

func subCardRecord(sc store.SubCard) search.SubCardRecord {
	return search.SubCardRecord{
		ID:          sc.ID,
		Title:       sc.Title,
		Description: sc.Description,
		CardID:      sc.CardID,
		OrgID:       sc.OrgID,
		Status:      sc.Status,
	}
}
