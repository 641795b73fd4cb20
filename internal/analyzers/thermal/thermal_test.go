package thermal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
)

func TestBuildHallLookup_NilWhenEmpty(t *testing.T) {
	assert.Nil(t, buildHallLookup(nil))
}

func TestBuildHallLookup_ForwardAndBackFill(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	hall := []domain.IntervalRow{
		{BucketStart: base, TempMean: 10.0},
		{BucketStart: base.Add(5 * time.Minute), TempMean: 12.0},
	}
	lookup := buildHallLookup(hall)
	require.NotNil(t, lookup)

	assert.Equal(t, 10.0, lookup(base.Add(-time.Hour))) // before all data: back-fill to first
	assert.Equal(t, 10.0, lookup(base.Add(2*time.Minute)))
	assert.Equal(t, 12.0, lookup(base.Add(10*time.Minute)))
}

func TestAnalyze_AmbientCompensationSubtractsHall(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []domain.IntervalRow{
		{BucketStart: base, TempMean: 50.0, IsProduction: true},
	}
	hall := []domain.IntervalRow{{BucketStart: base, TempMean: 20.0}}

	Analyze(rows, hall, cfg)
	assert.InDelta(t, 30.0, rows[0].TempCompensated, 1e-9)
}

func TestAnalyze_NoHallUsesRawTemp(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []domain.IntervalRow{{BucketStart: base, TempMean: 50.0, IsProduction: true}}

	Analyze(rows, nil, cfg)
	assert.InDelta(t, 50.0, rows[0].TempCompensated, 1e-9)
}

func TestClassify_ExtremeFireOverridesEverything(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	row := &domain.IntervalRow{
		TempGradientFinal: 31.0,
		TempMean:          50.0,
		IsBreak:           true, // would otherwise gate to IDLE
		IsProduction:      false,
	}
	assert.Equal(t, domain.StatusFireStop, classify(row, cfg))
}

func TestClassify_NonProductiveIsIdleBelowFireThreshold(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	row := &domain.IntervalRow{TempGradientFinal: 20.0, TempMean: 50.0, IsBreak: true}
	assert.Equal(t, domain.StatusIdle, classify(row, cfg))
}

func TestClassify_Ladder(t *testing.T) {
	cfg := config.DefaultEngineConfig()

	cases := []struct {
		name   string
		grad   float64
		temp   float64
		warmup bool
		want   domain.Status
	}{
		{"below warning", 5.0, 50.0, false, domain.StatusMonitoring},
		{"between warning and critical", 12.0, 50.0, false, domain.StatusPlanService},
		{"critical, hot, not warmup: fire stop", 16.0, 50.0, false, domain.StatusFireStop},
		{"critical but warmup: cold start degrades only", 16.0, 50.0, true, domain.StatusPlanService},
		{"critical but below fire temp floor: cold start", 16.0, 30.0, false, domain.StatusPlanService},
		{"negative gradient clamped to zero: monitoring", -5.0, 50.0, false, domain.StatusMonitoring},
	}

	for _, c := range cases {
		row := &domain.IntervalRow{
			TempGradientFinal: c.grad,
			TempMean:          c.temp,
			IsProduction:      true,
			IsWarmup:          c.warmup,
		}
		assert.Equal(t, c.want, classify(row, cfg), c.name)
	}
}

func TestComputeGradients_PrefersSmoothedOverDiscrete(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.GradientWindowTicks = 2
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rows := []domain.IntervalRow{
		{BucketStart: base, TempCompensated: 10.0},
		{BucketStart: base.Add(30 * time.Minute), TempCompensated: 12.0},
		{BucketStart: base.Add(time.Hour), TempCompensated: 20.0},
	}
	computeGradients(rows, cfg)

	// Row 2: smoothed window spans rows[1..2] (ticks=2), 30min elapsed -> (20-12)/0.5 = 16 C/h;
	// the discrete diff over rows[0..2] would give (20-10)/1h = 10 C/h instead.
	assert.InDelta(t, 16.0, rows[2].TempGradientFinal, 1e-9)
}

func TestComputeGradients_DefaultsToZeroWithoutEnoughHistory(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []domain.IntervalRow{{BucketStart: base, TempCompensated: 10.0}}
	computeGradients(rows, cfg)
	assert.Equal(t, 0.0, rows[0].TempGradientFinal)
}
