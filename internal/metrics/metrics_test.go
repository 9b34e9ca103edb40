package metrics_test

import (
	"testing"
	"time"

	"github.com/HARD953/distribut-sub001/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.ObserveRequest("GET", 200, 10*time.Millisecond)
	m.ObserveRequest("GET", 401, 5*time.Millisecond)
	m.ObserveRefresh(metrics.RefreshSucceeded)

	count, err := testutil.GatherAndCount(reg, "console_api_requests_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "console_api_refresh_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)
	_, err = metrics.New(reg)
	require.Error(t, err)
}

func TestNilClientIsNoop(t *testing.T) {
	var m *metrics.Client
	m.ObserveRequest("GET", 200, time.Second)
	m.ObserveRefresh(metrics.RefreshFailed)
}
