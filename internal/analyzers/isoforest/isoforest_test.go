package isoforest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
)

func makeRows(n int, production bool) []domain.IntervalRow {
	rows := make([]domain.IntervalRow, n)
	for i := range rows {
		rows[i] = domain.IntervalRow{
			VibRMS:            1.0 + float64(i%5)*0.1,
			TempMean:          40.0 + float64(i%3),
			CrestFactor:       3.0,
			TempGradientFinal: 1.0,
			AvgLineVibration:  1.0,
			IsProduction:      production,
		}
	}
	return rows
}

func TestAnalyze_BelowMinRowsAllIdle(t *testing.T) {
	cfg := config.DefaultEngineConfig() // IsoForestMinRows = 500
	rows := makeRows(10, true)

	Analyze(rows, cfg)

	for i, r := range rows {
		assert.Equal(t, domain.StatusIdle, r.RCFStatus, "row %d", i)
	}
}

func TestAnalyze_NonProductiveAlwaysIdleRegardlessOfScore(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.IsoForestMinRows = 10
	cfg.IsoForestTrees = 5
	cfg.IsoForestSampleSize = 8

	rows := makeRows(30, true)
	rows[0].IsProduction = false

	Analyze(rows, cfg)

	assert.Equal(t, domain.StatusIdle, rows[0].RCFStatus)
}

func TestAnalyze_DeterministicGivenSameSeed(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	cfg.IsoForestMinRows = 10
	cfg.IsoForestTrees = 5
	cfg.IsoForestSampleSize = 8

	rowsA := makeRows(40, true)
	rowsB := make([]domain.IntervalRow, len(rowsA))
	copy(rowsB, rowsA)

	Analyze(rowsA, cfg)
	Analyze(rowsB, cfg)

	require.Equal(t, len(rowsA), len(rowsB))
	for i := range rowsA {
		assert.Equal(t, rowsA[i].RCFScore, rowsB[i].RCFScore, "row %d", i)
		assert.Equal(t, rowsA[i].RCFStatus, rowsB[i].RCFStatus, "row %d", i)
	}
}

func TestCFactor_BaseCases(t *testing.T) {
	assert.Equal(t, 0.0, cFactor(0))
	assert.Equal(t, 0.0, cFactor(1))
	assert.Greater(t, cFactor(10), 0.0)
}

func TestHarmonic_NonPositiveIsZero(t *testing.T) {
	assert.Equal(t, 0.0, harmonic(0))
	assert.Equal(t, 0.0, harmonic(-1))
	assert.Greater(t, harmonic(5), 0.0)
}

func TestPercentile_EmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, percentile(nil, 0.5))
}

func TestPercentile_SortsAndIndexesFromLowTail(t *testing.T) {
	scores := []float64{5, 1, 3, 2, 4}
	assert.Equal(t, 1.0, percentile(scores, 0))
	assert.Equal(t, 5.0, percentile(scores, 0.999))
}

func TestMedianOf_OddAndEven(t *testing.T) {
	rows := []domain.IntervalRow{
		{VibRMS: 3}, {VibRMS: 1}, {VibRMS: 2},
	}
	assert.Equal(t, 2.0, medianOf(rows, []int{0, 1, 2}))

	rowsEven := []domain.IntervalRow{
		{VibRMS: 4}, {VibRMS: 1}, {VibRMS: 2}, {VibRMS: 3},
	}
	assert.Equal(t, 2.5, medianOf(rowsEven, []int{0, 1, 2, 3}))

	assert.Equal(t, 0.0, medianOf(nil, nil))
}

func TestStandardize_ZeroStdYieldsZero(t *testing.T) {
	f := [numFeatures]float64{1, 2, 3, 4, 5}
	mean := [numFeatures]float64{1, 2, 3, 4, 5}
	std := [numFeatures]float64{0, 0, 0, 0, 0}
	out := standardize(f, mean, std)
	assert.Equal(t, [numFeatures]float64{0, 0, 0, 0, 0}, out)
}
