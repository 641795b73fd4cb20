// Package baseline implements C4, the adaptive rolling-baseline analyzer:
// a μ±Nσ envelope over steady-state productive vibration, gated so that
// transients and ramp-ups never trip it.
package baseline

import (
	"math"

	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
)

// window is a trailing accumulator of (timestamp, value) pairs restricted
// to productive rows, used to compute the rolling μ/σ with min_periods=1
// over a time-based (not count-based) horizon.
type window struct {
	ts    []int64
	vals  []float64
	sum   float64
	sumSq float64
}

func (w *window) push(ts int64, v float64) {
	w.ts = append(w.ts, ts)
	w.vals = append(w.vals, v)
	w.sum += v
	w.sumSq += v * v
}

func (w *window) evictBefore(cutoff int64) {
	i := 0
	for i < len(w.ts) && w.ts[i] < cutoff {
		w.sum -= w.vals[i]
		w.sumSq -= w.vals[i] * w.vals[i]
		i++
	}
	if i > 0 {
		w.ts = w.ts[i:]
		w.vals = w.vals[i:]
	}
}

func (w *window) meanStd() (mean, std float64) {
	n := len(w.vals)
	if n == 0 {
		return 0, 0
	}
	mean = w.sum / float64(n)
	variance := w.sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// Analyze fills Baseline7d/Baseline7dStd/band columns, IsSteadyState,
// BaselineDeviationPct, and SiemensStatus on every row in place.
func Analyze(rows []domain.IntervalRow, cfg config.EngineConfig) {
	w := &window{}
	windowNanos := cfg.BaselineWindow.Nanoseconds()

	for i := range rows {
		row := &rows[i]
		ts := row.BucketStart.UnixNano()

		if row.IsProduction {
			w.evictBefore(ts - windowNanos)
			w.push(ts, row.VibRMS)
		}

		mean, std := w.meanStd()
		row.Baseline7d = mean
		row.Baseline7dStd = std
		row.BandWarningLower = mean - cfg.BaselineSigmaWarning*std
		row.BandWarningUpper = mean + cfg.BaselineSigmaWarning*std
		row.BandCriticalLower = mean - cfg.BaselineSigmaCritical*std
		row.BandCriticalUpper = mean + cfg.BaselineSigmaCritical*std

		if mean > cfg.IdleFloorG {
			row.BaselineDeviationPct = (row.VibRMS - mean) / mean * 100
		} else {
			row.BaselineDeviationPct = 0
		}

		row.IsSteadyState = isSteady(rows, i, cfg)
		row.SiemensStatus = classify(row, mean, cfg)
	}
}

// isSteady reports whether the local coefficient of variation over the
// trailing W_steady-interval window is below the configured threshold.
func isSteady(rows []domain.IntervalRow, i int, cfg config.EngineConfig) bool {
	start := i - cfg.SteadyStateWindowTicks + 1
	if start < 0 {
		start = 0
	}
	var sum, sumSq float64
	n := 0
	for j := start; j <= i; j++ {
		v := rows[j].VibRMS
		sum += v
		sumSq += v * v
		n++
	}
	if n == 0 {
		return false
	}
	mean := sum / float64(n)
	if mean <= 0 {
		return false
	}
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	std := math.Sqrt(variance)
	return std/mean < cfg.SteadyStateMaxCV
}

func classify(row *domain.IntervalRow, mean float64, cfg config.EngineConfig) domain.Status {
	if row.IsBreak || !row.IsProduction {
		return domain.StatusIdle
	}
	if row.IsWarmup || !row.IsSteadyState || mean <= cfg.IdleFloorG {
		return domain.StatusMonitoring
	}

	outsideCritical := row.VibRMS < row.BandCriticalLower || row.VibRMS > row.BandCriticalUpper
	outsideWarning := row.VibRMS < row.BandWarningLower || row.VibRMS > row.BandWarningUpper

	if outsideCritical {
		// Supplemented vibration-floor guard (original_source
		// SIEMENS_MIN_CRITICAL_RMS): very quiet machines never escalate
		// past PLAN_SERVICE even when statistically outside the band.
		if row.VibRMS < cfg.BaselineMinCriticalRMS {
			return domain.StatusPlanService
		}
		return domain.StatusCriticalAlarm
	}
	if outsideWarning {
		return domain.StatusPlanService
	}
	return domain.StatusMonitoring
}
