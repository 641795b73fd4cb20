package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Priority(t *testing.T) {
	cases := []struct {
		status Status
		want   int
	}{
		{StatusUnknown, 0},
		{StatusMonitoring, 1},
		{StatusPlanService, 3},
		{StatusCriticalAlarm, 4},
		{StatusFireStop, 5},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.status.Priority(), c.status.String())
	}
}

func TestStatusFromPriority_RoundTrips(t *testing.T) {
	assert.Equal(t, StatusUnknown, StatusFromPriority(0))
	assert.Equal(t, StatusMonitoring, StatusFromPriority(1))
	assert.Equal(t, StatusMonitoring, StatusFromPriority(2)) // priority 2 unused, falls to monitoring
	assert.Equal(t, StatusPlanService, StatusFromPriority(3))
	assert.Equal(t, StatusCriticalAlarm, StatusFromPriority(4))
	assert.Equal(t, StatusFireStop, StatusFromPriority(5))
	assert.Equal(t, StatusFireStop, StatusFromPriority(9))
}

func TestStatusIdle_IsUnknown(t *testing.T) {
	assert.Equal(t, StatusUnknown, StatusIdle)
	assert.Equal(t, "IDLE", StatusIdle.String())
}

func TestRiskLevel_String(t *testing.T) {
	assert.Equal(t, "LOW", RiskLow.String())
	assert.Equal(t, "CRITICAL", RiskCritical.String())
}
