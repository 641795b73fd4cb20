package skf

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
)

func row(vibMax, vibRMS float64, production, warmup, isBreak bool) domain.IntervalRow {
	return domain.IntervalRow{
		VibMax:          vibMax,
		VibRMS:          vibRMS,
		IsProduction:    production,
		IsWarmup:        warmup,
		IsBreak:         isBreak,
	}
}

func TestAnalyze_CrestFactorZeroWhenNonProductiveOrBelowFloor(t *testing.T) {
	cfg := config.DefaultEngineConfig()

	rows := []domain.IntervalRow{
		row(10, 2.0, false, false, true),             // not production
		row(10, 0.05, true, false, false),            // below idle floor
	}
	Analyze(rows, domain.ProfileStandard, cfg)

	assert.Equal(t, 0.0, rows[0].CrestFactor)
	assert.Equal(t, domain.StatusIdle, rows[0].SKFStatus)
	assert.Equal(t, 0.0, rows[1].CrestFactor)
}

func TestAnalyze_WarmupAlwaysMonitoring(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	rows := []domain.IntervalRow{row(100, 2.0, true, true, false)} // cf=50, would be critical but warmup
	Analyze(rows, domain.ProfileStandard, cfg)
	assert.Equal(t, domain.StatusMonitoring, rows[0].SKFStatus)
}

func TestAnalyze_StandardProfileThresholds(t *testing.T) {
	cfg := config.DefaultEngineConfig()

	cases := []struct {
		name string
		cf   float64
		want domain.Status
	}{
		{"below normal max", 2.5, domain.StatusMonitoring},
		{"between normal and warn", 4.0, domain.StatusPlanService},
		{"between warn and crit", 5.5, domain.StatusPlanService},
		{"at/above crit", 6.5, domain.StatusCriticalAlarm},
	}

	for _, c := range cases {
		vibRMS := 1.0
		rows := []domain.IntervalRow{row(c.cf*vibRMS, vibRMS, true, false, false)}
		Analyze(rows, domain.ProfileStandard, cfg)
		assert.Equal(t, c.want, rows[0].SKFStatus, c.name)
	}
}

func TestAnalyze_HeavyImpactProfileUsesWiderThresholds(t *testing.T) {
	cfg := config.DefaultEngineConfig()

	// cf=6.5 is critical for standard profile but only plan-service for heavy impact.
	vibRMS := 1.0
	rows := []domain.IntervalRow{row(6.5, vibRMS, true, false, false)}
	Analyze(rows, domain.ProfileHeavyImpact, cfg)
	assert.Equal(t, domain.StatusPlanService, rows[0].SKFStatus)

	rows2 := []domain.IntervalRow{row(8.5, vibRMS, true, false, false)}
	Analyze(rows2, domain.ProfileHeavyImpact, cfg)
	assert.Equal(t, domain.StatusCriticalAlarm, rows2[0].SKFStatus)
}
