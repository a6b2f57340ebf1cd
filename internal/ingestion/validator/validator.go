// Package validator extracts the indexable fields of a product record. A
// field with the wrong shape is skipped on its own and reported with a
// per-field message; the remaining fields are still returned.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/errors"
)

// FieldErrors holds per-field extraction failure messages.
type FieldErrors struct {
	Fields map[string]string
}

func (e *FieldErrors) Error() string {
	names := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		names = append(names, field)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, field := range names {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

func (e *FieldErrors) Unwrap() error {
	return apperrors.ErrMalformedField
}

func (e *FieldErrors) add(field, format string, args ...any) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = fmt.Sprintf(format, args...)
}

// Extract returns the typed view of rec. The returned *FieldErrors is nil
// when every present field had the expected shape. JSON null is treated the
// same as an absent field.
func Extract(rec ingestion.Record) (*ingestion.Product, *FieldErrors) {
	errs := &FieldErrors{}
	p := &ingestion.Product{
		URL:         stringField(rec, ingestion.FieldURL, ingestion.FieldURL, errs),
		Title:       stringField(rec, ingestion.FieldTitle, ingestion.FieldTitle, errs),
		Description: stringField(rec, ingestion.FieldDescription, ingestion.FieldDescription, errs),
	}

	if raw, ok := rec[ingestion.FieldFeatures]; ok && raw != nil {
		features, isMap := raw.(map[string]any)
		if !isMap {
			errs.add(ingestion.FieldFeatures, "expected object, got %s", typeName(raw))
		} else {
			p.Brand = stringField(features, ingestion.FieldBrand, ingestion.FieldFeatures+"."+ingestion.FieldBrand, errs)
			p.Origin = stringField(features, ingestion.FieldOrigin, ingestion.FieldFeatures+"."+ingestion.FieldOrigin, errs)
		}
	}

	p.Ratings = ratings(rec, errs)

	if len(errs.Fields) == 0 {
		return p, nil
	}
	return p, errs
}

// ratings reads the review list. A review that is not an object, or whose
// rating is not a number, still counts as a review with rating 0.
func ratings(rec ingestion.Record, errs *FieldErrors) []float64 {
	raw, ok := rec[ingestion.FieldReviews]
	if !ok || raw == nil {
		return nil
	}
	list, isList := raw.([]any)
	if !isList {
		errs.add(ingestion.FieldReviews, "expected array, got %s", typeName(raw))
		return nil
	}
	out := make([]float64, 0, len(list))
	for i, item := range list {
		review, isMap := item.(map[string]any)
		if !isMap {
			errs.add(fmt.Sprintf("%s[%d]", ingestion.FieldReviews, i), "expected object, got %s", typeName(item))
			out = append(out, 0)
			continue
		}
		v, present := review[ingestion.FieldRating]
		if !present || v == nil {
			out = append(out, 0)
			continue
		}
		rating, isNum := v.(float64)
		if !isNum {
			errs.add(fmt.Sprintf("%s[%d].%s", ingestion.FieldReviews, i, ingestion.FieldRating), "expected number, got %s", typeName(v))
			rating = 0
		}
		out = append(out, rating)
	}
	return out
}

func stringField(m map[string]any, key, name string, errs *FieldErrors) string {
	raw, ok := m[key]
	if !ok || raw == nil {
		return ""
	}
	s, isString := raw.(string)
	if !isString {
		errs.add(name, "expected string, got %s", typeName(raw))
		return ""
	}
	return s
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
