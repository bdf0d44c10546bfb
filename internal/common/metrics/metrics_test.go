package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRobotRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewRobot(reg)
	require.NoError(t, err)

	m.Orders.WithLabelValues("SUCCESS").Inc()
	m.ReportFailures.Inc()
	m.ReportFailures.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Orders.WithLabelValues("SUCCESS")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReportFailures))

	n, err := testutil.GatherAndCount(reg, "grocery_robot_report_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewAnalyticsOnSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRobot(reg)
	require.NoError(t, err)
	m, err := NewAnalytics(reg)
	require.NoError(t, err)

	m.Events.WithLabelValues(OutcomeAppended).Add(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Events.WithLabelValues(OutcomeAppended)))
}
