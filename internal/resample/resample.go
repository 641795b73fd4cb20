// Package resample implements C2: 5-minute aggregation of raw samples into
// wide interval rows, plus the behavioral scheduling classifier
// (IDLE/PRODUCTION/WARMUP/RUNDOWN/BREAK) derived from vibration alone — no
// wall-clock calendar is consulted anywhere in this package.
package resample

import (
	"math"
	"sort"
	"time"

	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
)

// bucketAgg accumulates raw samples for one 5-minute bucket before the
// gap-fill and scheduling passes run.
type bucketAgg struct {
	start time.Time

	vibSum, vibSumSq, vibMax float64
	vibCount                 int
	hasVib                   bool

	tempSum, tempMax, tempMin float64
	tempCount                 int
	hasTemp                   bool
}

// Resample aggregates one sensor's raw samples into a uniform 5-minute
// grid. Samples need not be pre-sorted; the output is strictly increasing
// in BucketStart. Running this twice on the same input yields bit-
// identical rows (law L1): the function is pure over its arguments.
func Resample(samples []domain.Sample, cfg config.EngineConfig) []domain.IntervalRow {
	if len(samples) == 0 {
		return nil
	}

	sorted := make([]domain.Sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	interval := cfg.BucketInterval
	first := floorToInterval(sorted[0].Timestamp, interval)
	last := floorToInterval(sorted[len(sorted)-1].Timestamp, interval)

	numBuckets := int(last.Sub(first)/interval) + 1
	aggs := make([]bucketAgg, numBuckets)
	for i := range aggs {
		aggs[i].start = first.Add(time.Duration(i) * interval)
	}

	for _, sample := range sorted {
		idx := int(floorToInterval(sample.Timestamp, interval).Sub(first) / interval)
		if idx < 0 || idx >= numBuckets {
			continue
		}
		b := &aggs[idx]
		switch sample.Channel {
		case domain.ChannelVibration:
			b.hasVib = true
			b.vibCount++
			b.vibSum += sample.Value
			b.vibSumSq += sample.Value * sample.Value
			if sample.Value > b.vibMax || b.vibCount == 1 {
				b.vibMax = sample.Value
			}
		case domain.ChannelTemperature:
			if !b.hasTemp {
				b.tempMax = sample.Value
				b.tempMin = sample.Value
			}
			b.hasTemp = true
			b.tempCount++
			b.tempSum += sample.Value
			if sample.Value > b.tempMax {
				b.tempMax = sample.Value
			}
			if sample.Value < b.tempMin {
				b.tempMin = sample.Value
			}
		}
	}

	rows := buildRows(aggs, cfg)
	classifySchedule(rows, cfg)
	return rows
}

func floorToInterval(t time.Time, interval time.Duration) time.Time {
	return t.Truncate(interval)
}

// buildRows converts raw aggregates into rows, applying forward-fill up to
// GapFillMaxTicks and dropping rows where both channels stayed empty
// beyond that horizon (invariant 1).
func buildRows(aggs []bucketAgg, cfg config.EngineConfig) []domain.IntervalRow {
	rows := make([]domain.IntervalRow, 0, len(aggs))

	var lastVib *domain.IntervalRow
	var lastTemp *domain.IntervalRow
	vibGap, tempGap := 0, 0

	for _, b := range aggs {
		row := domain.IntervalRow{BucketStart: b.start}

		if b.hasVib {
			row.VibMax = b.vibMax
			row.VibMean = b.vibSum / float64(b.vibCount)
			row.VibRMS = math.Sqrt(b.vibSumSq / float64(b.vibCount))
			row.VibStd = sampleStd(b.vibSum, b.vibSumSq, b.vibCount)
			row.VibCount = b.vibCount
			vibGap = 0
		} else if lastVib != nil && vibGap < cfg.GapFillMaxTicks {
			row.VibMax, row.VibMean, row.VibRMS, row.VibStd, row.VibCount = lastVib.VibMax, lastVib.VibMean, lastVib.VibRMS, lastVib.VibStd, lastVib.VibCount
			vibGap++
		} else {
			vibGap++
		}

		hasTempValue := b.hasTemp
		if b.hasTemp {
			row.TempMean = b.tempSum / float64(b.tempCount)
			row.TempMax = b.tempMax
			row.TempMin = b.tempMin
			tempGap = 0
		} else if lastTemp != nil && tempGap < cfg.GapFillMaxTicks {
			row.TempMean, row.TempMax, row.TempMin = lastTemp.TempMean, lastTemp.TempMax, lastTemp.TempMin
			tempGap++
			hasTempValue = true
		} else {
			tempGap++
		}

		// Drop the row only if neither channel has a value after fill.
		if !b.hasVib && vibGap > cfg.GapFillMaxTicks && !hasTempValue {
			continue
		}

		if b.hasVib {
			cp := row
			lastVib = &cp
		}
		if b.hasTemp {
			cp := row
			lastTemp = &cp
		}

		rows = append(rows, row)
	}

	return rows
}

func sampleStd(sum, sumSq float64, n int) float64 {
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// classifySchedule fills IsProductionRaw/IsRundown/IsProduction/IsBreak/
// IsWarmup in place, purely from VibRMS — no wall-clock calendar.
func classifySchedule(rows []domain.IntervalRow, cfg config.EngineConfig) {
	rundownTicks := cfg.RundownMinutes / int(cfg.BucketInterval/time.Minute)
	warmupTicks := cfg.WarmupMinutes / int(cfg.BucketInterval/time.Minute)

	for i := range rows {
		rows[i].IsProductionRaw = rows[i].VibRMS > cfg.IdleFloorG
	}

	// Run-down: mark rundownTicks rows after each true->false transition.
	rundownRemaining := 0
	for i := range rows {
		if rows[i].IsProductionRaw {
			rundownRemaining = 0
			continue
		}
		wasProductiveBefore := i > 0 && rows[i-1].IsProductionRaw
		if wasProductiveBefore {
			rundownRemaining = rundownTicks
		}
		if rundownRemaining > 0 {
			rows[i].IsRundown = true
			rundownRemaining--
		}
	}

	for i := range rows {
		rows[i].IsProduction = rows[i].IsProductionRaw || rows[i].IsRundown
		rows[i].IsBreak = !rows[i].IsProduction
	}

	// Warmup: mark warmupTicks rows after each false->true transition on
	// IsProduction, clipped to productive intervals.
	warmupRemaining := 0
	for i := range rows {
		wasProductiveBefore := i > 0 && rows[i-1].IsProduction
		if rows[i].IsProduction && !wasProductiveBefore {
			warmupRemaining = warmupTicks
		}
		if !rows[i].IsProduction {
			warmupRemaining = 0
			continue
		}
		if warmupRemaining > 0 {
			rows[i].IsWarmup = true
			warmupRemaining--
		}
	}
}
