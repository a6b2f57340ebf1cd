package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordsTotal.WithLabelValues("indexed").Add(3)
	m.TokensIndexedTotal.WithLabelValues("title").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[f.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 3.0, values["catalog_records_total"])
	assert.Equal(t, 1.0, values["catalog_tokens_indexed_total"])
}

func TestNewTwiceOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
