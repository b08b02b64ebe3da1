package repository

import "context"

// Product is the read model this service sees of a catalog item.
// OriginalPrice and Description may be absent.
type Product struct {
	ID            string
	Name          string
	Description   *string
	Price         float64
	OriginalPrice *float64
	Category      string
}

// Filter is a conjunctive restriction over active catalog items.
// Keywords are ORed against name/description (case-insensitive contains)
// and the result is ANDed with the remaining clauses. Attributes maps
// column name -> exact value; callers must pass only known attribute keys.
type Filter struct {
	Keywords   []string
	Categories []string
	PriceMin   *float64
	PriceMax   *float64
	Attributes map[string]string
}

// knownAttributes whitelists the product columns an arbitrary filter key may
// address. Anything else never reaches a query.
var knownAttributes = map[string]struct{}{
	"brand":    {},
	"color":    {},
	"size":     {},
	"material": {},
}

// KnownAttribute reports whether key may be used in Filter.Attributes.
func KnownAttribute(key string) bool {
	_, ok := knownAttributes[key]
	return ok
}

// CatalogRepository defines the read-only catalog contract.
// The catalog is owned by another context; this service never writes to it.
type CatalogRepository interface {
	// QueryActiveProducts returns active items matching the filter.
	QueryActiveProducts(ctx context.Context, f Filter) ([]Product, error)

	// ListCategories returns the distinct category names of active items.
	ListCategories(ctx context.Context) ([]string, error)
}
