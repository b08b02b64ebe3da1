package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	cacheport "github.com/NurzhauganovA/aishop/internal/infrastructure/cache/port"
	assistant "github.com/NurzhauganovA/aishop/internal/pkg/assistant/application/domain"
	repository "github.com/NurzhauganovA/aishop/internal/repository/port"
)

const (
	// displayLimit caps the number of items rendered per reply.
	displayLimit = 5

	notFoundReply = "К сожалению, я не нашла подходящих товаров по вашему запросу. Попробуйте изменить условия поиска."

	categoriesCacheKey = "catalog:categories"
	categoriesCacheTTL = 5 * time.Minute
)

// Executor translates a search intent into a catalog query and renders the
// matches as chat text. The cache is optional; when absent or failing, the
// category set is read straight from the catalog.
type Executor struct {
	catalog repository.CatalogRepository
	cache   cacheport.Cache
}

func NewExecutor(catalog repository.CatalogRepository, cache cacheport.Cache) *Executor {
	return &Executor{catalog: catalog, cache: cache}
}

// Search runs the intent against active catalog items and formats the result.
func (e *Executor) Search(ctx context.Context, intent assistant.SearchIntent, userID string) (string, error) {
	filter := e.buildFilter(ctx, intent)

	products, err := e.catalog.QueryActiveProducts(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("search: catalog query: %w", err)
	}
	return FormatProducts(products), nil
}

func (e *Executor) buildFilter(ctx context.Context, intent assistant.SearchIntent) repository.Filter {
	var f repository.Filter

	// Keep only category names that actually exist: a typo or hallucinated
	// category must not empty the result set on its own.
	if len(intent.Categories) > 0 {
		known := e.existingCategories(ctx)
		for _, c := range intent.Categories {
			if _, ok := known[c]; ok {
				f.Categories = append(f.Categories, c)
			}
		}
	}

	for _, kw := range intent.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			f.Keywords = append(f.Keywords, kw)
		}
	}

	f.PriceMin = intent.PriceRange.Min
	f.PriceMax = intent.PriceRange.Max

	for key, value := range intent.Filters {
		if !repository.KnownAttribute(key) {
			continue // unknown keys are silently ignored
		}
		if f.Attributes == nil {
			f.Attributes = make(map[string]string)
		}
		f.Attributes[key] = value
	}

	return f
}

// existingCategories returns the catalog's category names as a lookup set.
// Served from the cache when possible; every failure degrades to an
// uncached read, and a failed read yields an empty set (category restriction
// is then skipped entirely).
func (e *Executor) existingCategories(ctx context.Context) map[string]struct{} {
	if e.cache != nil {
		if raw, err := e.cache.Get(ctx, categoriesCacheKey); err == nil {
			var names []string
			if json.Unmarshal([]byte(raw), &names) == nil {
				return toSet(names)
			}
		}
	}

	names, err := e.catalog.ListCategories(ctx)
	if err != nil {
		slog.Warn("category listing failed, skipping category restriction", "error", err)
		return nil
	}

	if e.cache != nil {
		if raw, err := json.Marshal(names); err == nil {
			if err := e.cache.Set(ctx, categoriesCacheKey, string(raw), categoriesCacheTTL); err != nil {
				slog.Warn("category cache write failed", "error", err)
			}
		}
	}
	return toSet(names)
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// FormatProducts renders matches as a chat reply: at most displayLimit items
// with name, price, discount when the original price beats the current one,
// description and a canonical link, then a note about anything cut off.
func FormatProducts(products []repository.Product) string {
	if len(products) == 0 {
		return notFoundReply
	}

	var b strings.Builder
	b.WriteString("Вот что я нашла по вашему запросу:\n")

	shown := products
	if len(shown) > displayLimit {
		shown = shown[:displayLimit]
	}

	for i, p := range shown {
		fmt.Fprintf(&b, "\n%d. %s — %s ₸", i+1, p.Name, formatPrice(p.Price))
		if p.OriginalPrice != nil && *p.OriginalPrice > p.Price {
			discount := int(math.Round(100 - p.Price / *p.OriginalPrice*100))
			fmt.Fprintf(&b, " (скидка %d%%)", discount)
		}
		if p.Description != nil && strings.TrimSpace(*p.Description) != "" {
			fmt.Fprintf(&b, "\n   %s", strings.TrimSpace(*p.Description))
		}
		fmt.Fprintf(&b, "\n   /products/%s/", p.ID)
	}

	if rest := len(products) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "\n\nИ ещё %d товаров. Уточните запрос, чтобы сузить выборку.", rest)
	}

	return b.String()
}

func formatPrice(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
