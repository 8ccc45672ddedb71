package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{SampleRatio: 4}
	cfg.ApplyDefaults()

	require.Equal(t, "orgmgr", cfg.ServiceName)
	require.InDelta(t, 1.0, cfg.SampleRatio, 0.0001)
	require.Equal(t, 10*time.Second, cfg.ExportInterval)

	cfg = Config{ServiceName: "api", SampleRatio: 0.25, ExportInterval: time.Minute}
	cfg.ApplyDefaults()
	require.Equal(t, "api", cfg.ServiceName)
	require.InDelta(t, 0.25, cfg.SampleRatio, 0.0001)
	require.Equal(t, time.Minute, cfg.ExportInterval)
}

func TestGetMetricsSingleton(t *testing.T) {
	m := GetMetrics()
	require.NotNil(t, m)
	require.Same(t, m, GetMetrics())

	// the global no-op provider accepts recordings without a collector
	m.RecordOrgOperation(context.Background(), "create", "ok", 1.5)
	m.RecordLogin(context.Background(), "success")
}
