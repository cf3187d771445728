package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across cards and sub_cards using
// plainto_tsquery and ts_rank, with ts_headline for snippets. Soft-deleted
// cards and their sub-cards never surface.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text, q.OrgID}

	var subQueries []string

	// Cards sub-query
	if q.FilterType == "" || q.FilterType == ResultCard {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'card'::text AS type, c.id, c.title,
				ts_headline('english', coalesce(c.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.id AS card_id, c.org_id, c.status,
				ts_rank(c.fts, %s) AS rank
			FROM cards c
			WHERE c.fts @@ %s AND c.org_id = $2 AND c.deleted = FALSE`, tsQuery, tsQuery, tsQuery))
	}

	// Sub-cards sub-query
	if q.FilterType == "" || q.FilterType == ResultSubCard {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'sub_card'::text AS type, sc.id, sc.title,
				ts_headline('english', coalesce(sc.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				sc.card_id, sc.org_id, sc.status,
				ts_rank(sc.fts, %s) AS rank
			FROM sub_cards sc
			JOIN cards c ON c.id = sc.card_id AND c.org_id = sc.org_id
			WHERE sc.fts @@ %s AND sc.org_id = $2 AND c.deleted = FALSE`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	// Count query
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	// Data query
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, card_id, org_id, status
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.CardID, &r.OrgID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]CardRecord, []SubCardRecord, error) {
	cardRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, coalesce(description, ''), org_id, status
		FROM cards
		WHERE deleted = FALSE
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load cards: %w", err)
	}
	defer cardRows.Close()

	cards := make([]CardRecord, 0)
	for cardRows.Next() {
		var c CardRecord
		if err := cardRows.Scan(&c.ID, &c.Title, &c.Description, &c.OrgID, &c.Status); err != nil {
			return nil, nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := cardRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate cards: %w", err)
	}

	subRows, err := p.db.QueryContext(ctx, `
		SELECT sc.id, sc.title, coalesce(sc.description, ''), sc.card_id, sc.org_id, sc.status
		FROM sub_cards sc
		JOIN cards c ON c.id = sc.card_id AND c.org_id = sc.org_id
		WHERE c.deleted = FALSE
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load sub-cards: %w", err)
	}
	defer subRows.Close()

	subCards := make([]SubCardRecord, 0)
	for subRows.Next() {
		var sc SubCardRecord
		if err := subRows.Scan(&sc.ID, &sc.Title, &sc.Description, &sc.CardID, &sc.OrgID, &sc.Status); err != nil {
			return nil, nil, fmt.Errorf("scan sub-card: %w", err)
		}
		subCards = append(subCards, sc)
	}
	if err := subRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate sub-cards: %w", err)
	}

	return cards, subCards, nil
}
