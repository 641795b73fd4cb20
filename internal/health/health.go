// Package health implements C8: the weighted composite Health Index, its
// trend, a sigmoid failure probability, RUL extrapolation, and risk
// bucketing.
package health

import (
	"math"
	"time"

	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
)

// Compute fills HealthIndex, HITrend, FailureProb, RULHours, and RiskLevel
// on every row in place.
func Compute(rows []domain.IntervalRow, cfg config.EngineConfig) {
	bucketInterval := cfg.BucketInterval
	if bucketInterval <= 0 {
		bucketInterval = 5 * time.Minute
	}
	trendTicks := int(cfg.HITrendLookback / bucketInterval)
	hourTicks := int(time.Hour / bucketInterval)

	for i := range rows {
		row := &rows[i]
		if !row.IsProduction {
			row.HealthIndexValid = false
			row.FailureProb = 0
			row.RiskLevel = domain.RiskIdle
			continue
		}

		hi := composite(row, cfg)
		hi = applyHardOverrides(row, hi, cfg)
		row.HealthIndex = hi
		row.HealthIndexValid = true
	}

	for i := range rows {
		row := &rows[i]
		if !row.HealthIndexValid {
			continue
		}
		if j := i - trendTicks; j >= 0 && rows[j].HealthIndexValid {
			row.HITrend = row.HealthIndex - rows[j].HealthIndex
			row.HITrendValid = true
		}
	}

	for i := range rows {
		row := &rows[i]
		if !row.HealthIndexValid {
			continue
		}
		row.RULValid = false
		if j := i - hourTicks; j >= 0 && rows[j].HealthIndexValid {
			rate := row.HealthIndex - rows[j].HealthIndex
			if rate < -0.1 && row.HealthIndex > 15 {
				rul := (row.HealthIndex - 15) / -rate
				row.RULHours = clip(rul, 0, cfg.RULMaxHours)
				row.RULValid = true
			}
		}

		trendMod := 0.0
		if row.HITrendValid {
			trendMod = clip(-row.HITrend/100, 0, 0.30)
		}
		pBase := 1 / (1 + math.Exp(-10*(0.45-row.HealthIndex/100)))
		row.FailureProb = math.Min(99, (pBase+trendMod)*100)
		row.RiskLevel = bucketRisk(row.FailureProb)
	}
}

func composite(row *domain.IntervalRow, cfg config.EngineConfig) float64 {
	hVib := hVib(row, cfg)
	hGrad := hGrad(row, cfg)
	hAbsTemp := hAbsTemp(row.TempMean)
	hIso := hIso(row.VibRMS)
	hCF := hCF(row.CrestFactor, cfg)
	hRCF := hRCF(row.RCFScore)

	hi := 0.20*hVib + 0.20*hIso + 0.20*hGrad + 0.15*hAbsTemp + 0.10*hCF + 0.15*hRCF
	return clip(hi, 0, 100)
}

func isSeizure(row *domain.IntervalRow, cfg config.EngineConfig) bool {
	return row.VibRMS < cfg.HISeizureVibRMS && row.TempGradientFinal > cfg.HISeizureGradient
}

func hVib(row *domain.IntervalRow, cfg config.EngineConfig) float64 {
	if isSeizure(row, cfg) {
		return 0
	}
	return clip((1-math.Abs(row.BaselineDeviationPct)/200)*100, 0, 100)
}

func hGrad(row *domain.IntervalRow, cfg config.EngineConfig) float64 {
	grad := row.TempGradientFinal
	if grad < 0 {
		grad = 0
	}
	h := clip((1-grad/15)*100, 0, 100)
	if row.IsWarmup {
		h = 0.5*h + 50
	}
	return h
}

// hAbsTemp linearly interpolates 55°C -> 100 and 90°C -> 0, clipped.
func hAbsTemp(tempMean float64) float64 {
	const lo, hi = 55.0, 90.0
	if tempMean <= lo {
		return 100
	}
	if tempMean >= hi {
		return 0
	}
	frac := (tempMean - lo) / (hi - lo)
	return 100 * (1 - frac)
}

// hIso is piecewise-linear on vib_rms per ISO 10816-1 Class I breakpoints:
// {0->100, 0.71->100, 1.80->50, 4.50->0}.
func hIso(vibRMS float64) float64 {
	points := []struct{ x, y float64 }{
		{0, 100},
		{0.71, 100},
		{1.80, 50},
		{4.50, 0},
	}
	if vibRMS <= points[0].x {
		return points[0].y
	}
	if vibRMS >= points[len(points)-1].x {
		return points[len(points)-1].y
	}
	for k := 0; k < len(points)-1; k++ {
		a, b := points[k], points[k+1]
		if vibRMS >= a.x && vibRMS <= b.x {
			frac := (vibRMS - a.x) / (b.x - a.x)
			return a.y + frac*(b.y-a.y)
		}
	}
	return 0
}

func hCF(cf float64, cfg config.EngineConfig) float64 {
	if cf <= 0 {
		return 100
	}
	return clip((1-(cf-1)/(cfg.HICFCritical-1))*100, 0, 100)
}

func hRCF(rcfScore float64) float64 {
	return clip((rcfScore+0.2)/0.3, 0, 1) * 100
}

func applyHardOverrides(row *domain.IntervalRow, hi float64, cfg config.EngineConfig) float64 {
	if isSeizure(row, cfg) {
		hi = math.Min(hi, 15)
	}
	if row.TempGradientFinal > cfg.HIHardCapGradient {
		hi = math.Min(hi, 25)
	}
	if row.TempMean > cfg.HIHardCapTempMean {
		hi = math.Min(hi, 30)
	}
	return hi
}

func bucketRisk(failureProb float64) domain.RiskLevel {
	switch {
	case failureProb <= 5:
		return domain.RiskLow
	case failureProb <= 25:
		return domain.RiskModerate
	case failureProb <= 60:
		return domain.RiskHigh
	default:
		return domain.RiskCritical
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
