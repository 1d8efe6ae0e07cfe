package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fizzycl/partsflow/internal/models"
)

// PageSize is the number of catalog entries rendered per page. The provider
// caps interactive lists at ten rows, and one row may be taken by a
// navigation entry on either side.
const PageSize = 9

// Navigation row titles.
const (
	prevTitle = "Pagina Anterior"
	nextTitle = "Pagina Siguiente"
)

// Resolver renders catalog pages as interactive list choices.
type Resolver struct {
	source Source
}

// NewResolver creates a resolver over a source.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Page renders page n (1-based) of a catalog. When param is non-empty the
// catalog key is suffixed with it, so "models" with param "toyota" reads the
// "models-toyota" list. Navigation rows are included only for pages that
// exist: a previous row when n > 1, a next row when entries remain beyond
// this page.
func (r *Resolver) Page(ctx context.Context, key string, n int, param string) ([]models.Choice, error) {
	if n < 1 {
		return nil, fmt.Errorf("invalid page number %d", n)
	}
	if param != "" {
		key = key + "-" + param
	}

	size, err := r.source.Size(ctx, key)
	if err != nil {
		return nil, err
	}

	start := int64(n-1) * PageSize
	items, err := r.source.Items(ctx, key, start, start+PageSize-1)
	if err != nil {
		return nil, err
	}
	slog.Debug("Resolver.Page: rendered catalog page", "key", key, "page", n, "items", len(items), "size", size)

	choices := make([]models.Choice, 0, len(items)+2)
	if n > 1 {
		choices = append(choices, models.Choice{ID: navChoiceID(n-1, param), Title: prevTitle})
	}
	for _, item := range items {
		choices = append(choices, models.Choice{
			ID:    strings.ToLower(item) + "-id",
			Title: capitalize(item),
		})
	}
	if size > int64(n)*PageSize {
		choices = append(choices, models.Choice{ID: navChoiceID(n+1, param), Title: nextTitle})
	}
	return choices, nil
}

func navChoiceID(page int, param string) string {
	if param == "" {
		return fmt.Sprintf("page-%d", page)
	}
	return fmt.Sprintf("page-%d-%s", page, param)
}

// ParseNavChoice decodes a navigation row id of the form "page-N" or
// "page-N-param". It returns ok=false for any other id.
func ParseNavChoice(id string) (page int, param string, ok bool) {
	rest, found := strings.CutPrefix(id, "page-")
	if !found {
		return 0, "", false
	}
	numPart, paramPart, _ := strings.Cut(rest, "-")
	page, err := strconv.Atoi(numPart)
	if err != nil || page < 1 {
		return 0, "", false
	}
	return page, paramPart, true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
