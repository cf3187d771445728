package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ---------------------------------------------------------------------------
// Card templates

func (s *PostgresStore) InsertTemplate(ctx context.Context, tpl CardTemplate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO card_templates (id, org_id, title, description, hero_image, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, tpl.ID, tpl.OrgID, tpl.Title, tpl.Description, tpl.HeroImage, tpl.Status, tpl.CreatedBy)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, orgID, templateID string) (CardTemplate, error) {
	var tpl CardTemplate
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, title, COALESCE(description, ''), COALESCE(hero_image, ''), status, created_by, created_at
		FROM card_templates
		WHERE org_id=$1 AND id=$2
	`, orgID, templateID).Scan(&tpl.ID, &tpl.OrgID, &tpl.Title, &tpl.Description, &tpl.HeroImage, &tpl.Status, &tpl.CreatedBy, &tpl.CreatedAt)
	if err != nil {
		return CardTemplate{}, err
	}
	return tpl, nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context, orgID string) ([]CardTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, org_id, title, COALESCE(description, ''), COALESCE(hero_image, ''), status, created_by, created_at
		FROM card_templates
		WHERE org_id=$1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	items := make([]CardTemplate, 0)
	for rows.Next() {
		var tpl CardTemplate
		if err := rows.Scan(&tpl.ID, &tpl.OrgID, &tpl.Title, &tpl.Description, &tpl.HeroImage, &tpl.Status, &tpl.CreatedBy, &tpl.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		items = append(items, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return items, nil
}

// UpdateTemplate changes description and status only. Templates are
// otherwise immutable blueprints. Empty arguments leave the column
// unchanged.
func (s *PostgresStore) UpdateTemplate(ctx context.Context, orgID, templateID, description, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE card_templates
		SET description=COALESCE(NULLIF($3, ''), description),
		    status=COALESCE(NULLIF($4, ''), status)
		WHERE org_id=$1 AND id=$2
	`, orgID, templateID, description, status)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteTemplate(ctx context.Context, orgID, templateID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM card_templates WHERE org_id=$1 AND id=$2
	`, orgID, templateID)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ---------------------------------------------------------------------------
// Cards

const cardColumns = `id, org_id, COALESCE(template_id, ''), title, COALESCE(description, ''),
	COALESCE(hero_image, ''), label_count, status, deleted, purge_requested_at, last_updated, created_at`

func scanCard(scan func(...any) error) (Card, error) {
	var card Card
	err := scan(&card.ID, &card.OrgID, &card.TemplateID, &card.Title, &card.Description,
		&card.HeroImage, &card.LabelCount, &card.Status, &card.Deleted,
		&card.PurgeRequestedAt, &card.LastUpdated, &card.CreatedAt)
	if err != nil {
		return Card{}, err
	}
	return card, nil
}

func (s *PostgresStore) InsertCard(ctx context.Context, card Card) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (id, org_id, template_id, title, description, hero_image, label_count, status)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, card.ID, card.OrgID, card.TemplateID, card.Title, card.Description, card.HeroImage, card.LabelCount, card.Status)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

// GetCard returns the card regardless of soft-delete state: tombstoned
// cards stay retrievable by direct id lookup.
func (s *PostgresStore) GetCard(ctx context.Context, orgID, cardID string) (Card, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE org_id=$1 AND id=$2
	`, orgID, cardID)
	return scanCard(row.Scan)
}

// ListCards excludes tombstoned cards. An empty status lists all statuses.
func (s *PostgresStore) ListCards(ctx context.Context, orgID, status string) ([]Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE org_id=$1 AND NOT deleted`
	args := []any{orgID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	items := make([]Card, 0)
	for rows.Next() {
		card, err := scanCard(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		items = append(items, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return items, nil
}

// UpdateCardFields is a partial-field update: empty arguments leave the
// column unchanged, and label_count is never touched, so it cannot clobber
// a concurrent recount write.
func (s *PostgresStore) UpdateCardFields(ctx context.Context, orgID, cardID, title, description, heroImage, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET title=COALESCE(NULLIF($3, ''), title),
		    description=COALESCE(NULLIF($4, ''), description),
		    hero_image=COALESCE(NULLIF($5, ''), hero_image),
		    status=COALESCE(NULLIF($6, ''), status),
		    last_updated=NOW()
		WHERE org_id=$1 AND id=$2 AND NOT deleted
	`, orgID, cardID, title, description, heroImage, status)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDeleteCard tombstones the card. The row and its children remain
// retrievable by direct id; default listings filter them out.
func (s *PostgresStore) SoftDeleteCard(ctx context.Context, orgID, cardID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cards SET deleted=TRUE, status='disabled', last_updated=NOW()
		WHERE org_id=$1 AND id=$2
	`, orgID, cardID)
	if err != nil {
		return fmt.Errorf("soft delete card: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete card: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RequestCardPurge is phase one of a hard delete: tombstone plus a purge
// stamp. The janitor completes phase two (blob cleanup, then row removal).
func (s *PostgresStore) RequestCardPurge(ctx context.Context, orgID, cardID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE cards SET deleted=TRUE, status='disabled', purge_requested_at=NOW(), last_updated=NOW()
		WHERE org_id=$1 AND id=$2
	`, orgID, cardID)
	if err != nil {
		return fmt.Errorf("request card purge: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("request card purge: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListPurgeRequested(ctx context.Context, limit int) ([]Card, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cardColumns+` FROM cards
		WHERE purge_requested_at IS NOT NULL
		ORDER BY purge_requested_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list purge requested: %w", err)
	}
	defer rows.Close()

	items := make([]Card, 0)
	for rows.Next() {
		card, err := scanCard(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		items = append(items, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return items, nil
}

// HardDeleteCard removes the card row and its child rows in one
// transaction. Blob cleanup happens before this call; orphaned blobs from
// a partial cleanup are accepted.
func (s *PostgresStore) HardDeleteCard(ctx context.Context, orgID, cardID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin hard delete: %w", err)
	}
	for _, query := range []string{
		`DELETE FROM sub_cards WHERE org_id=$1 AND card_id=$2`,
		`DELETE FROM file_items WHERE org_id=$1 AND card_id=$2`,
		`DELETE FROM cards WHERE org_id=$1 AND id=$2`,
	} {
		if _, err := tx.ExecContext(ctx, query, orgID, cardID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("hard delete card: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit hard delete: %w", err)
	}
	return nil
}

// SetCardLabelCount is the aggregator's single write: the recounted value
// plus a fresh last_updated in one update.
func (s *PostgresStore) SetCardLabelCount(ctx context.Context, orgID, cardID string, count int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cards SET label_count=$3, last_updated=NOW() WHERE org_id=$1 AND id=$2
	`, orgID, cardID, count)
	if err != nil {
		return fmt.Errorf("set label count: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountLiveSubCards(ctx context.Context, orgID, cardID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM sub_cards WHERE org_id=$1 AND card_id=$2 AND status='live'
	`, orgID, cardID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count live sub-cards: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountLiveFileItems(ctx context.Context, orgID, cardID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM file_items WHERE org_id=$1 AND card_id=$2 AND status='live'
	`, orgID, cardID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count live file items: %w", err)
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Sub-cards

func (s *PostgresStore) InsertSubCard(ctx context.Context, sub SubCard) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sub_cards (id, org_id, card_id, title, description, hero_image, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, sub.ID, sub.OrgID, sub.CardID, sub.Title, sub.Description, sub.HeroImage, sub.Status)
	if err != nil {
		return fmt.Errorf("insert sub-card: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSubCard(ctx context.Context, orgID, cardID, subCardID string) (SubCard, error) {
	var sub SubCard
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, card_id, title, COALESCE(description, ''), COALESCE(hero_image, ''), status, created_at
		FROM sub_cards
		WHERE org_id=$1 AND card_id=$2 AND id=$3
	`, orgID, cardID, subCardID).Scan(&sub.ID, &sub.OrgID, &sub.CardID, &sub.Title, &sub.Description, &sub.HeroImage, &sub.Status, &sub.CreatedAt)
	if err != nil {
		return SubCard{}, err
	}
	return sub, nil
}

// ListSubCards returns children in creation order.
func (s *PostgresStore) ListSubCards(ctx context.Context, orgID, cardID string, liveOnly bool) ([]SubCard, error) {
	query := `
		SELECT id, org_id, card_id, title, COALESCE(description, ''), COALESCE(hero_image, ''), status, created_at
		FROM sub_cards
		WHERE org_id=$1 AND card_id=$2`
	if liveOnly {
		query += ` AND status='live'`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, orgID, cardID)
	if err != nil {
		return nil, fmt.Errorf("list sub-cards: %w", err)
	}
	defer rows.Close()

	items := make([]SubCard, 0)
	for rows.Next() {
		var sub SubCard
		if err := rows.Scan(&sub.ID, &sub.OrgID, &sub.CardID, &sub.Title, &sub.Description, &sub.HeroImage, &sub.Status, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sub-card: %w", err)
		}
		items = append(items, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sub-cards: %w", err)
	}
	return items, nil
}

// UpdateSubCard patches title/description/status; empty arguments leave
// the column unchanged.
func (s *PostgresStore) UpdateSubCard(ctx context.Context, orgID, cardID, subCardID, title, description, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sub_cards
		SET title=COALESCE(NULLIF($4, ''), title),
		    description=COALESCE(NULLIF($5, ''), description),
		    status=COALESCE(NULLIF($6, ''), status)
		WHERE org_id=$1 AND card_id=$2 AND id=$3
	`, orgID, cardID, subCardID, title, description, status)
	if err != nil {
		return fmt.Errorf("update sub-card: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sub-card: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeleteSubCard(ctx context.Context, orgID, cardID, subCardID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sub_cards WHERE org_id=$1 AND card_id=$2 AND id=$3
	`, orgID, cardID, subCardID)
	if err != nil {
		return fmt.Errorf("delete sub-card: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete sub-card: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ---------------------------------------------------------------------------
// File items

// InsertFileItem reports whether a row was actually inserted. The unique
// storage_path constraint absorbs duplicate upload-finalize deliveries:
// a redelivered event conflicts and inserts nothing.
func (s *PostgresStore) InsertFileItem(ctx context.Context, item FileItem) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO file_items (id, org_id, card_id, name, storage_path, size, content_type, file_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (storage_path) DO NOTHING
	`, item.ID, item.OrgID, item.CardID, item.Name, item.StoragePath, item.Size, item.ContentType, item.FileType, item.Status)
	if err != nil {
		return false, fmt.Errorf("insert file item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert file item: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) GetFileItem(ctx context.Context, orgID, cardID, fileID string) (FileItem, error) {
	var item FileItem
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, card_id, name, storage_path, size, content_type, file_type, status, last_updated, created_at
		FROM file_items
		WHERE org_id=$1 AND card_id=$2 AND id=$3
	`, orgID, cardID, fileID).Scan(&item.ID, &item.OrgID, &item.CardID, &item.Name, &item.StoragePath,
		&item.Size, &item.ContentType, &item.FileType, &item.Status, &item.LastUpdated, &item.CreatedAt)
	if err != nil {
		return FileItem{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListFileItems(ctx context.Context, orgID, cardID string, liveOnly bool) ([]FileItem, error) {
	query := `
		SELECT id, org_id, card_id, name, storage_path, size, content_type, file_type, status, last_updated, created_at
		FROM file_items
		WHERE org_id=$1 AND card_id=$2`
	if liveOnly {
		query += ` AND status='live'`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, orgID, cardID)
	if err != nil {
		return nil, fmt.Errorf("list file items: %w", err)
	}
	defer rows.Close()

	items := make([]FileItem, 0)
	for rows.Next() {
		var item FileItem
		if err := rows.Scan(&item.ID, &item.OrgID, &item.CardID, &item.Name, &item.StoragePath,
			&item.Size, &item.ContentType, &item.FileType, &item.Status, &item.LastUpdated, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan file item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file items: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteFileItem(ctx context.Context, orgID, cardID, fileID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM file_items WHERE org_id=$1 AND card_id=$2 AND id=$3
	`, orgID, cardID, fileID)
	if err != nil {
		return fmt.Errorf("delete file item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete file item: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
