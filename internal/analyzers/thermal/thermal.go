// Package thermal implements C5, the °C/hour gradient analyzer with
// optional ambient compensation, cold-start guards, and a fire override
// that bypasses every other gate.
package thermal

import (
	"time"

	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
)

// Analyze fills TempCompensated, TempGradientFinal, and AWSStatus on every
// row in place. hall is the hall-ambient sensor's resampled stream
// (already produced by the resample package), or nil when no ambient
// reference is configured.
func Analyze(rows []domain.IntervalRow, hall []domain.IntervalRow, cfg config.EngineConfig) {
	hallLookup := buildHallLookup(hall)

	for i := range rows {
		row := &rows[i]
		if hallLookup != nil {
			row.TempCompensated = row.TempMean - hallLookup(row.BucketStart)
		} else {
			row.TempCompensated = row.TempMean
		}
	}

	computeGradients(rows, cfg)

	for i := range rows {
		rows[i].AWSStatus = classify(&rows[i], cfg)
	}
}

// buildHallLookup returns a function mapping any bucket start to the hall
// sensor's temperature at that time, forward/back-filled from the nearest
// known sample. Returns nil when there is no ambient series.
func buildHallLookup(hall []domain.IntervalRow) func(time.Time) float64 {
	if len(hall) == 0 {
		return nil
	}
	return func(t time.Time) float64 {
		// Samples are time-ordered; find the last hall row at or before t,
		// falling back to the first row (back-fill) if t precedes all data.
		best := hall[0].TempMean
		for _, h := range hall {
			if h.BucketStart.After(t) {
				break
			}
			best = h.TempMean
		}
		return best
	}
}

// computeGradients fills TempGradientFinal using the discrete method
// (diff over GradientWindowTicks), the smoothed method (first/last over a
// rolling window normalized to °C/h), preferring smoothed and falling back
// to discrete, defaulting to 0 when neither is available.
func computeGradients(rows []domain.IntervalRow, cfg config.EngineConfig) {
	ticks := cfg.GradientWindowTicks
	if ticks <= 0 {
		ticks = 12
	}

	for i := range rows {
		var discrete float64
		haveDiscrete := false
		if i >= ticks {
			elapsed := rows[i].BucketStart.Sub(rows[i-ticks].BucketStart).Hours()
			if elapsed > 0 {
				discrete = (rows[i].TempCompensated - rows[i-ticks].TempCompensated) / elapsed
				haveDiscrete = true
			}
		}

		start := i - ticks + 1
		var smoothed float64
		haveSmoothed := false
		if start >= 0 {
			elapsed := rows[i].BucketStart.Sub(rows[start].BucketStart).Hours()
			if elapsed > 0 {
				smoothed = (rows[i].TempCompensated - rows[start].TempCompensated) / elapsed
				haveSmoothed = true
			}
		}

		switch {
		case haveSmoothed:
			rows[i].TempGradientFinal = smoothed
		case haveDiscrete:
			rows[i].TempGradientFinal = discrete
		default:
			rows[i].TempGradientFinal = 0
		}
	}
}

func isExtremeFire(row *domain.IntervalRow, cfg config.EngineConfig) bool {
	return row.TempGradientFinal >= cfg.GradientFireExtreme && row.TempMean >= cfg.GradientMinFireTempC
}

// classify implements the gating and first-match-wins ladder. Only
// positive (heating) gradients are dangerous. Break and non-productive
// intervals are IDLE unless the extreme-fire override fires. Warmup
// intervals can never reach FIRE_STOP through the ladder — a cold sensor
// warming from freezing outdoor air must never stop the line — but they
// still degrade to PLAN_SERVICE once the gradient crosses the critical
// threshold, per the "cold start" row of the classification table.
func classify(row *domain.IntervalRow, cfg config.EngineConfig) domain.Status {
	if isExtremeFire(row, cfg) {
		return domain.StatusFireStop
	}
	if row.IsBreak || !row.IsProduction {
		return domain.StatusIdle
	}

	grad := row.TempGradientFinal
	if grad < 0 {
		grad = 0
	}

	switch {
	case grad < cfg.GradientWarning:
		return domain.StatusMonitoring
	case grad < cfg.GradientCritical:
		return domain.StatusPlanService
	case !row.IsWarmup && row.TempMean >= cfg.GradientMinFireTempC:
		return domain.StatusFireStop
	default:
		// grad >= critical but either still warming up or below the fire
		// temperature floor: a cold start, degraded rather than stopped.
		return domain.StatusPlanService
	}
}
