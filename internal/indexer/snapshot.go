package indexer

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/reviews"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/errors"
)

// Names of the queryable indexes.
const (
	IndexTitle       = "title"
	IndexDescription = "description"
	IndexBrand       = "brand"
	IndexOrigin      = "origin"
)

// IndexNames lists every queryable index.
var IndexNames = []string{IndexTitle, IndexDescription, IndexBrand, IndexOrigin}

// Snapshot is the frozen result of a build. It is never mutated after
// creation and may be shared freely between readers.
type Snapshot struct {
	Title       index.PositionalSnapshot
	Description index.PositionalSnapshot
	Brand       index.CategoricalSnapshot
	Origin      index.CategoricalSnapshot
	Reviews     map[string]reviews.Stats
}

// Index returns the named index for querying.
func (s *Snapshot) Index(name string) (index.Lookup, error) {
	switch name {
	case IndexTitle:
		return s.Title, nil
	case IndexDescription:
		return s.Description, nil
	case IndexBrand:
		return s.Brand, nil
	case IndexOrigin:
		return s.Origin, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrUnknownIndex, http.StatusNotFound,
			"index %q (valid: %v)", name, IndexNames)
	}
}

// Review returns the review stats of docID.
func (s *Snapshot) Review(docID string) (reviews.Stats, bool) {
	st, ok := s.Reviews[docID]
	return st, ok
}

// Summary counts the contents of a snapshot.
type Summary struct {
	TitleTerms       int `json:"title_terms"`
	DescriptionTerms int `json:"description_terms"`
	BrandTerms       int `json:"brand_terms"`
	OriginTerms      int `json:"origin_terms"`
	Documents        int `json:"documents"`
}

// Summary returns term and document counts.
func (s *Snapshot) Summary() Summary {
	return Summary{
		TitleTerms:       len(s.Title),
		DescriptionTerms: len(s.Description),
		BrandTerms:       len(s.Brand),
		OriginTerms:      len(s.Origin),
		Documents:        len(s.Reviews),
	}
}
