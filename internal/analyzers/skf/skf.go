// Package skf implements C3, the crest-factor impulsiveness check.
package skf

import (
	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
)

// Analyze fills CrestFactor and SKFStatus on every row in place. warn/crit
// thresholds are profile-dependent: heavy-impact bearings run hotter crest
// factors under normal operation, so they get more lenient thresholds.
func Analyze(rows []domain.IntervalRow, profile domain.Profile, cfg config.EngineConfig) {
	warn, crit := cfg.SKFStandardWarn, cfg.SKFStandardCrit
	if profile == domain.ProfileHeavyImpact {
		warn, crit = cfg.SKFHeavyWarn, cfg.SKFHeavyCrit
	}

	for i := range rows {
		row := &rows[i]

		row.CrestFactor = crestFactor(row, cfg)
		row.SKFStatus = classify(row, row.CrestFactor, warn, crit, cfg)
	}
}

// crestFactor implements invariant P2: zero wherever non-productive or at
// or below the idle floor, else vib_max / vib_rms.
func crestFactor(row *domain.IntervalRow, cfg config.EngineConfig) float64 {
	if !row.IsProduction || row.VibRMS <= cfg.IdleFloorG {
		return 0
	}
	return row.VibMax / row.VibRMS
}

func classify(row *domain.IntervalRow, cf, warn, crit float64, cfg config.EngineConfig) domain.Status {
	switch {
	case row.IsBreak || !row.IsProduction:
		return domain.StatusIdle
	case row.IsWarmup:
		return domain.StatusMonitoring
	case cf < cfg.SKFNormalMax:
		return domain.StatusMonitoring
	case cf < warn:
		return domain.StatusPlanService
	case cf < crit:
		return domain.StatusPlanService
	default:
		return domain.StatusCriticalAlarm
	}
}
