package fuser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
)

func TestDegrade_StepsDownOneRungSkippingUnusedPriorityTwo(t *testing.T) {
	assert.Equal(t, 4, degrade(5))
	assert.Equal(t, 3, degrade(4))
	assert.Equal(t, 1, degrade(3))
	assert.Equal(t, 1, degrade(1))
	assert.Equal(t, 0, degrade(0))
}

func TestFuse_SingleTickAlarmDegradesBeforePersistence(t *testing.T) {
	cfg := config.DefaultEngineConfig() // AlarmPersistenceTicks = 2
	rows := []domain.IntervalRow{
		{SKFStatus: domain.StatusPlanService, SiemensStatus: domain.StatusMonitoring, AWSStatus: domain.StatusMonitoring, RCFStatus: domain.StatusMonitoring},
	}
	Fuse(rows, domain.ProfileStandard, cfg)

	assert.Equal(t, 1, rows[0].MaxPriority)
	assert.Equal(t, domain.StatusMonitoring, rows[0].FinalVerdict)
	assert.Equal(t, "-", rows[0].AlarmSource)
}

func TestFuse_PersistsAfterRequiredTicks(t *testing.T) {
	cfg := config.DefaultEngineConfig() // AlarmPersistenceTicks = 2
	rows := []domain.IntervalRow{
		{SKFStatus: domain.StatusPlanService, SiemensStatus: domain.StatusMonitoring, AWSStatus: domain.StatusMonitoring, RCFStatus: domain.StatusMonitoring},
		{SKFStatus: domain.StatusPlanService, SiemensStatus: domain.StatusMonitoring, AWSStatus: domain.StatusMonitoring, RCFStatus: domain.StatusMonitoring},
	}
	Fuse(rows, domain.ProfileStandard, cfg)

	assert.Equal(t, 1, rows[0].MaxPriority)
	assert.Equal(t, 3, rows[1].MaxPriority)
	assert.Equal(t, domain.StatusPlanService, rows[1].FinalVerdict)
	assert.Equal(t, "SKF", rows[1].AlarmSource)
}

func TestFuse_StreakResetsOnNonActiveTick(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	rows := []domain.IntervalRow{
		{SKFStatus: domain.StatusPlanService, SiemensStatus: domain.StatusMonitoring, AWSStatus: domain.StatusMonitoring, RCFStatus: domain.StatusMonitoring},
		{SKFStatus: domain.StatusMonitoring, SiemensStatus: domain.StatusMonitoring, AWSStatus: domain.StatusMonitoring, RCFStatus: domain.StatusMonitoring},
		{SKFStatus: domain.StatusPlanService, SiemensStatus: domain.StatusMonitoring, AWSStatus: domain.StatusMonitoring, RCFStatus: domain.StatusMonitoring},
	}
	Fuse(rows, domain.ProfileStandard, cfg)

	// row2 is the first tick of a fresh streak (row1 reset it), so it still degrades.
	assert.Equal(t, 1, rows[2].MaxPriority)
}

func TestFuse_FireStopNeedsOnlyOneTick(t *testing.T) {
	cfg := config.DefaultEngineConfig() // FirePersistenceTicks = 1
	rows := []domain.IntervalRow{
		{AWSStatus: domain.StatusFireStop, SKFStatus: domain.StatusMonitoring, SiemensStatus: domain.StatusMonitoring, RCFStatus: domain.StatusMonitoring},
	}
	Fuse(rows, domain.ProfileStandard, cfg)

	assert.Equal(t, 5, rows[0].MaxPriority)
	assert.Equal(t, domain.StatusFireStop, rows[0].FinalVerdict)
	assert.Equal(t, "AWS", rows[0].AlarmSource)
}

func TestFuse_ExtremeFireBypassesPersistenceEvenOnFirstTick(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	rows := []domain.IntervalRow{
		{
			SKFStatus:         domain.StatusPlanService,
			SiemensStatus:     domain.StatusMonitoring,
			AWSStatus:         domain.StatusMonitoring,
			RCFStatus:         domain.StatusMonitoring,
			TempGradientFinal: cfg.GradientFireExtreme,
			TempMean:          cfg.GradientMinFireTempC,
		},
	}
	Fuse(rows, domain.ProfileStandard, cfg)

	// extremeFire forces every active channel's persisted flag true, so the
	// single-tick PLAN_SERVICE on SKF does not degrade.
	assert.Equal(t, 3, rows[0].MaxPriority)
}

func TestFuse_HeavyImpactProfileRequiresMorePersistenceTicks(t *testing.T) {
	cfg := config.DefaultEngineConfig() // HeavyPersistenceTicks = 5
	rows := make([]domain.IntervalRow, 4)
	for i := range rows {
		rows[i] = domain.IntervalRow{
			SKFStatus: domain.StatusPlanService, SiemensStatus: domain.StatusMonitoring,
			AWSStatus: domain.StatusMonitoring, RCFStatus: domain.StatusMonitoring,
		}
	}
	Fuse(rows, domain.ProfileHeavyImpact, cfg)

	require.Len(t, rows, 4)
	for i, r := range rows {
		assert.Equal(t, 1, r.MaxPriority, "tick %d should still be below the heavy persistence requirement", i)
	}
}

func TestFuse_MultipleActiveChannelsJoinAlarmSource(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	rows := []domain.IntervalRow{
		{SKFStatus: domain.StatusCriticalAlarm, SiemensStatus: domain.StatusCriticalAlarm, AWSStatus: domain.StatusMonitoring, RCFStatus: domain.StatusMonitoring, TempGradientFinal: cfg.GradientFireExtreme, TempMean: cfg.GradientMinFireTempC},
	}
	Fuse(rows, domain.ProfileStandard, cfg)

	assert.Equal(t, "SKF+SIEMENS", rows[0].AlarmSource)
	assert.Equal(t, 4, rows[0].MaxPriority)
}
