// Package fuser implements C7: a priority lattice over the four analyzer
// channels, per-channel persistence debouncing, a degradation policy for
// transient peaks that never persist, and the final verdict projection.
package fuser

import (
	"strings"

	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
)

// channel is one of the four analyzer inputs the fuser reduces over. Each
// tracks its own persistence streak independently of the others.
type channel struct {
	tag    string
	status func(*domain.IntervalRow) domain.Status
}

var channels = []channel{
	{tag: "SKF", status: func(r *domain.IntervalRow) domain.Status { return r.SKFStatus }},
	{tag: "SIEMENS", status: func(r *domain.IntervalRow) domain.Status { return r.SiemensStatus }},
	{tag: "AWS", status: func(r *domain.IntervalRow) domain.Status { return r.AWSStatus }},
	{tag: "RCF", status: func(r *domain.IntervalRow) domain.Status { return r.RCFStatus }},
}

// Fuse fills FinalVerdict, AlarmSource, and MaxPriority on every row in
// place. profile selects the heavy-impact persistence requirement.
func Fuse(rows []domain.IntervalRow, profile domain.Profile, cfg config.EngineConfig) {
	alarmPersistence := cfg.AlarmPersistenceTicks
	if profile == domain.ProfileHeavyImpact {
		alarmPersistence = cfg.HeavyPersistenceTicks
	}

	streaks := make([]int, len(channels))

	for i := range rows {
		row := &rows[i]
		extremeFire := row.TempGradientFinal >= cfg.GradientFireExtreme && row.TempMean >= cfg.GradientMinFireTempC

		maxPriority := 0
		var activeTags []string

		for c, ch := range channels {
			raw := ch.status(row)
			p := raw.Priority()
			active := p >= 3

			if active {
				streaks[c]++
			} else {
				streaks[c] = 0
			}

			required := alarmPersistence
			if raw == domain.StatusFireStop {
				required = cfg.FirePersistenceTicks
			}

			persisted := extremeFire || streaks[c] >= required

			effective := p
			if active && !persisted {
				effective = degrade(p)
			}

			if effective > maxPriority {
				maxPriority = effective
			}
			if effective >= 3 {
				activeTags = append(activeTags, ch.tag)
			}
		}

		row.MaxPriority = maxPriority
		row.FinalVerdict = domain.StatusFromPriority(maxPriority)
		if len(activeTags) == 0 {
			row.AlarmSource = "-"
		} else {
			row.AlarmSource = strings.Join(activeTags, "+")
		}
	}
}

// degrade steps a priority down one rung on the lattice. Priority 2 is
// unused, so PLAN_SERVICE (3) degrades directly to MONITORING (1).
func degrade(p int) int {
	switch p {
	case 5:
		return 4
	case 4:
		return 3
	case 3:
		return 1
	default:
		return p
	}
}
