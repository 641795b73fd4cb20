package baseline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
)

func TestClassify_NonProductiveIsIdle(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	assert.Equal(t, domain.StatusIdle, classify(&domain.IntervalRow{IsBreak: true}, 1.0, cfg))
	assert.Equal(t, domain.StatusIdle, classify(&domain.IntervalRow{IsProduction: false}, 1.0, cfg))
}

func TestClassify_WarmupOrUnsteadyOrFloorIsMonitoring(t *testing.T) {
	cfg := config.DefaultEngineConfig()

	warmup := &domain.IntervalRow{IsProduction: true, IsWarmup: true, IsSteadyState: true}
	assert.Equal(t, domain.StatusMonitoring, classify(warmup, 1.0, cfg))

	unsteady := &domain.IntervalRow{IsProduction: true, IsSteadyState: false}
	assert.Equal(t, domain.StatusMonitoring, classify(unsteady, 1.0, cfg))

	belowFloor := &domain.IntervalRow{IsProduction: true, IsSteadyState: true}
	assert.Equal(t, domain.StatusMonitoring, classify(belowFloor, cfg.IdleFloorG/2, cfg))
}

func TestClassify_CriticalBandBreachAboveFloorRMS(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	row := &domain.IntervalRow{
		IsProduction:      true,
		IsSteadyState:     true,
		VibRMS:            5.0,
		BandCriticalLower: 0.5,
		BandCriticalUpper: 2.0,
		BandWarningLower:  0.7,
		BandWarningUpper:  1.5,
	}
	assert.Equal(t, domain.StatusCriticalAlarm, classify(row, 1.0, cfg))
}

func TestClassify_CriticalBandBreachBelowMinRMSCapsAtPlanService(t *testing.T) {
	cfg := config.DefaultEngineConfig() // BaselineMinCriticalRMS = 0.3
	row := &domain.IntervalRow{
		IsProduction:      true,
		IsSteadyState:     true,
		VibRMS:            0.2, // outside critical band but below the floor guard
		BandCriticalLower: 0.12,
		BandCriticalUpper: 0.18,
		BandWarningLower:  0.13,
		BandWarningUpper:  0.17,
	}
	// mean 0.15 sits above the idle floor, so the band check is reached.
	assert.Equal(t, domain.StatusPlanService, classify(row, 0.15, cfg))
}

func TestClassify_WarningBandBreachIsPlanService(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	row := &domain.IntervalRow{
		IsProduction:      true,
		IsSteadyState:     true,
		VibRMS:            1.6,
		BandCriticalLower: 0.5,
		BandCriticalUpper: 2.0,
		BandWarningLower:  0.7,
		BandWarningUpper:  1.5,
	}
	assert.Equal(t, domain.StatusPlanService, classify(row, 1.0, cfg))
}

func TestClassify_InsideBandsIsMonitoring(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	row := &domain.IntervalRow{
		IsProduction:      true,
		IsSteadyState:     true,
		VibRMS:            1.0,
		BandCriticalLower: 0.5,
		BandCriticalUpper: 2.0,
		BandWarningLower:  0.7,
		BandWarningUpper:  1.5,
	}
	assert.Equal(t, domain.StatusMonitoring, classify(row, 1.0, cfg))
}

func TestIsSteady_LowCVIsTrueHighCVIsFalse(t *testing.T) {
	cfg := config.DefaultEngineConfig() // SteadyStateWindowTicks=6, SteadyStateMaxCV=0.15

	steadyRows := make([]domain.IntervalRow, 6)
	for i := range steadyRows {
		steadyRows[i] = domain.IntervalRow{VibRMS: 1.0}
	}
	assert.True(t, isSteady(steadyRows, 5, cfg))

	noisyRows := make([]domain.IntervalRow, 6)
	for i := range noisyRows {
		noisyRows[i] = domain.IntervalRow{VibRMS: 1.0}
	}
	noisyRows[5].VibRMS = 5.0
	assert.False(t, isSteady(noisyRows, 5, cfg))
}

func TestIsSteady_ZeroMeanIsFalse(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	rows := []domain.IntervalRow{{VibRMS: 0}}
	assert.False(t, isSteady(rows, 0, cfg))
}

func TestAnalyze_BaselineDeviationPctAndWindowEviction(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.BaselineWindow = 7 * time.Minute

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []domain.IntervalRow{
		{BucketStart: base, VibRMS: 1.0, IsProduction: true},
		{BucketStart: base.Add(5 * time.Minute), VibRMS: 1.0, IsProduction: true},
		{BucketStart: base.Add(10 * time.Minute), VibRMS: 2.0, IsProduction: true},
	}

	Analyze(rows, cfg)

	// Each productive row's own value is folded into the window before its
	// mean is read, so row 2's baseline already includes its 2.0 reading.
	// With a 7-minute window, row 0 (10 minutes before row 2) has been
	// evicted by then, leaving only rows 1 and 2.
	assert.InDelta(t, 1.0, rows[1].Baseline7d, 1e-9)
	assert.InDelta(t, 1.5, rows[2].Baseline7d, 1e-9)
	assert.InDelta(t, 100.0/3.0, rows[2].BaselineDeviationPct, 1e-6) // (2.0-1.5)/1.5*100
}

func TestAnalyze_NonProductiveRowsDoNotEnterBaseline(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []domain.IntervalRow{
		{BucketStart: base, VibRMS: 9.0, IsProduction: false, IsBreak: true},
		{BucketStart: base.Add(5 * time.Minute), VibRMS: 1.0, IsProduction: true},
	}

	Analyze(rows, cfg)

	assert.Equal(t, 0.0, rows[0].Baseline7d)
	assert.Equal(t, domain.StatusIdle, rows[0].SiemensStatus)
}
