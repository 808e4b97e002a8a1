package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger("debug", "bluecode-api", &buf)

	orderLogger := ForOrder(Component(logger, "reconciler"), 42, "1042")
	orderLogger.Info().Msg("polling")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "bluecode-api", entry["service"])
	assert.Equal(t, "reconciler", entry["component"])
	assert.Equal(t, float64(42), entry["order_id"])
	assert.Equal(t, "1042", entry["merchant_tx_id"])
	assert.Equal(t, "polling", entry["message"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("nonsense"))
}

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.ProviderRequests.WithLabelValues("register", "ok").Inc()
	m.ReconcileOutcomes.WithLabelValues("success").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["test_provider_requests_total"])
	assert.True(t, names["test_reconcile_outcomes_total"])
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics("dup", reg)
	assert.Panics(t, func() { NewMetrics("dup", reg) })
}
