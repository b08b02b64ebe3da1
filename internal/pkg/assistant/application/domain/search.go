package assistant

import "time"

// SearchQuery is a write-only audit record of what users ask the assistant.
// UserID is nil for requests made without an authenticated user.
type SearchQuery struct {
	ID        string    `db:"id"`
	UserID    *string   `db:"user_id"`
	Query     string    `db:"query"`
	CreatedAt time.Time `db:"created_at"`
}

// PriceRange bounds a catalog search. Either side may be absent.
type PriceRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// SearchIntent is a structured product-search request extracted from model
// output. It is transient: parsed, executed and discarded within one turn.
// SearchRequest is the literal marker the model is instructed to set; replies
// without it are treated as plain text no matter how JSON-shaped they look.
type SearchIntent struct {
	SearchRequest bool              `json:"search_request"`
	Keywords      []string          `json:"keywords"`
	Categories    []string          `json:"categories"`
	PriceRange    PriceRange        `json:"price_range"`
	Filters       map[string]string `json:"filters"`
}
