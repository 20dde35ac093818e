package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CriticalInconsistencies.Inc()
	m.WorkItemsProcessed.WithLabelValues("delete", OutcomeAcked).Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CriticalInconsistencies))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.WorkItemsProcessed.WithLabelValues("delete", OutcomeAcked)))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["snippets_critical_inconsistencies_total"])
	assert.True(t, names["snippets_reconcile_processed_total"])
}

func TestNew_TwiceOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
