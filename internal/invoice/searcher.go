package invoice

import (
	"context"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/sync/singleflight"
	"posdash/internal/query"
	"posdash/pkg/models"
)

// SearchPageSize caps the number of candidates a lookup returns.
const SearchPageSize = 25

// ProductLister is the read side of the product collection.
type ProductLister interface {
	List(ctx context.Context, params url.Values) (*models.Page[models.Product], error)
}

// ProductSearcher looks products up by name. Concurrent searches for the
// same text share one backend call.
type ProductSearcher struct {
	products ProductLister
	flight   singleflight.Group
}

// NewProductSearcher creates a searcher over the product collection.
func NewProductSearcher(products ProductLister) *ProductSearcher {
	return &ProductSearcher{products: products}
}

var nameField = []query.Field{{Key: "name"}}

// Search returns products whose name contains text, case-insensitively.
func (s *ProductSearcher) Search(ctx context.Context, text string) ([]Candidate, error) {
	v, err, _ := s.flight.Do(strings.ToLower(text), func() (interface{}, error) {
		return s.search(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]Candidate)), nil
}

func (s *ProductSearcher) search(ctx context.Context, text string) ([]Candidate, error) {
	params := query.Build(
		query.FilterSet{"name": text},
		query.PageRequest{Page: 1, PageSize: SearchPageSize},
		query.Options{Fields: nameField},
	)

	page, err := s.products.List(ctx, params)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(page.Items))
	for _, p := range page.Items {
		candidates = append(candidates, Candidate{
			ProductID: p.DocumentID,
			Name:      p.Name,
			Price:     p.Price,
			Stock:     p.Stock,
		})
	}
	return candidates, nil
}
