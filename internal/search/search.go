// Package search provides full-text search over cards and sub-cards,
// Meilisearch first with a Postgres FTS fallback.
package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultCard    ResultType = "card"
	ResultSubCard ResultType = "sub_card"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	CardID  string     `json:"cardId"`
	OrgID   string     `json:"orgId"`
	Status  string     `json:"status,omitempty"`
}

// Query describes a search request. OrgID is always required; searches
// never cross org boundaries.
type Query struct {
	Text       string
	OrgID      string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexCard(c CardRecord) error
	IndexSubCard(sc SubCardRecord) error
	DeleteCard(id string) error
	DeleteSubCard(id string) error
}

// CardRecord is the data we index for a card.
type CardRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	OrgID       string `json:"orgId"`
	Status      string `json:"status"`
}

// SubCardRecord is the data we index for a sub-card.
type SubCardRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CardID      string `json:"cardId"`
	OrgID       string `json:"orgId"`
	Status      string `json:"status"`
}
