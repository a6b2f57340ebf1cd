// Package ingestion defines the decoded product record accepted by the
// indexing pipeline, the typed view extracted from it, and the Kafka event
// schemas exchanged around a build.
package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/errors"
)

// Field names of a raw product record.
const (
	FieldURL         = "url"
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldFeatures    = "product_features"
	FieldBrand       = "brand"
	FieldOrigin      = "made in"
	FieldReviews     = "product_reviews"
	FieldRating      = "rating"
)

// Record is one decoded product document. Every key is optional and values
// keep whatever JSON shape the producer sent.
type Record map[string]any

// Decode parses a single JSON object into a Record. Anything that is not a
// JSON object is reported as ErrMalformedRecord.
func Decode(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedRecord, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: record is null", apperrors.ErrMalformedRecord)
	}
	return rec, nil
}

// Product is the typed, indexable view of a Record. Empty strings mean the
// field was absent, empty, or malformed.
type Product struct {
	URL         string
	Title       string
	Description string
	Brand       string
	Origin      string
	Ratings     []float64
}

// IndexCompleteEvent is published to Kafka once a build has been exported.
type IndexCompleteEvent struct {
	OutputDir   string    `json:"output_dir"`
	Processed   int64     `json:"processed"`
	Indexed     int64     `json:"indexed"`
	Skipped     int64     `json:"skipped"`
	Malformed   int64     `json:"malformed"`
	TitleTerms  int       `json:"title_terms"`
	DescTerms   int       `json:"description_terms"`
	BrandTerms  int       `json:"brand_terms"`
	OriginTerms int       `json:"origin_terms"`
	DurationMs  int64     `json:"duration_ms"`
	CompletedAt time.Time `json:"completed_at"`
}
