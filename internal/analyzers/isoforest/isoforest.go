// Package isoforest implements C6, the multivariate isolation-forest
// anomaly analyzer. The contract is deliberately narrow so the scorer is
// swappable: lower score means more anomalous, and scoring is deterministic
// for a given seed. No isolation-forest library appears anywhere in the
// example pack (see DESIGN.md), so this is a small from-scratch
// implementation of the standard algorithm (Liu, Ting & Zhou, 2008) built
// on math/rand with a fixed seed.
package isoforest

import (
	"math"
	"math/rand"
	"sort"

	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
)

const numFeatures = 5

// Analyze fills RCFScore and RCFStatus on every row in place.
func Analyze(rows []domain.IntervalRow, cfg config.EngineConfig) {
	trainIdx := make([]int, 0, len(rows))
	for i, row := range rows {
		if row.IsProduction {
			trainIdx = append(trainIdx, i)
		}
	}

	if len(trainIdx) < cfg.IsoForestMinRows {
		for i := range rows {
			rows[i].RCFStatus = domain.StatusIdle
		}
		return
	}

	featMean, featStd := fitStandardizer(rows, trainIdx)
	allFeatures := make([][numFeatures]float64, len(rows))
	for i := range rows {
		allFeatures[i] = standardize(featuresOf(&rows[i]), featMean, featStd)
	}

	trainFeatures := make([][numFeatures]float64, len(trainIdx))
	for k, idx := range trainIdx {
		trainFeatures[k] = allFeatures[idx]
	}

	forest := buildForest(trainFeatures, cfg)

	scores := make([]float64, len(rows))
	for i := range rows {
		scores[i] = forest.score(allFeatures[i])
	}

	trainScores := make([]float64, len(trainIdx))
	for k, idx := range trainIdx {
		trainScores[k] = scores[idx]
	}
	warningThreshold := percentile(trainScores, cfg.IsoForestWarningPct)
	criticalThreshold := percentile(trainScores, cfg.IsoForestCriticalPct)

	medianVibRMS := medianOf(rows, trainIdx)

	for i := range rows {
		row := &rows[i]
		row.RCFScore = scores[i]

		if !row.IsProduction {
			row.RCFStatus = domain.StatusIdle
			continue
		}

		gated := row.VibRMS >= cfg.IsoForestVibFloorMult*medianVibRMS && !row.IsRundown

		switch {
		case gated && scores[i] < criticalThreshold:
			row.RCFStatus = domain.StatusCriticalAlarm
		case gated && scores[i] < warningThreshold:
			row.RCFStatus = domain.StatusPlanService
		default:
			row.RCFStatus = domain.StatusMonitoring
		}
	}
}

func featuresOf(row *domain.IntervalRow) [numFeatures]float64 {
	return [numFeatures]float64{
		row.VibRMS,
		row.TempMean,
		row.CrestFactor,
		row.TempGradientFinal,
		row.AvgLineVibration,
	}
}

func fitStandardizer(rows []domain.IntervalRow, trainIdx []int) (mean, std [numFeatures]float64) {
	n := float64(len(trainIdx))
	for _, idx := range trainIdx {
		f := featuresOf(&rows[idx])
		for k := 0; k < numFeatures; k++ {
			mean[k] += f[k]
		}
	}
	for k := 0; k < numFeatures; k++ {
		mean[k] /= n
	}
	for _, idx := range trainIdx {
		f := featuresOf(&rows[idx])
		for k := 0; k < numFeatures; k++ {
			d := f[k] - mean[k]
			std[k] += d * d
		}
	}
	for k := 0; k < numFeatures; k++ {
		std[k] = math.Sqrt(std[k] / n)
	}
	return mean, std
}

func standardize(f, mean, std [numFeatures]float64) [numFeatures]float64 {
	var out [numFeatures]float64
	for k := 0; k < numFeatures; k++ {
		if std[k] == 0 {
			out[k] = 0
			continue
		}
		out[k] = (f[k] - mean[k]) / std[k]
	}
	return out
}

func medianOf(rows []domain.IntervalRow, idx []int) float64 {
	vals := make([]float64, len(idx))
	for k, i := range idx {
		vals[k] = rows[i].VibRMS
	}
	sort.Float64s(vals)
	n := len(vals)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// percentile returns the value at the given fraction (e.g. 0.01 for P1)
// of a score distribution, sorted ascending — the low tail is where the
// anomalous (low-score) rows live.
func percentile(scores []float64, pct float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	idx := int(pct * float64(len(sorted)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// forest is a deterministic isolation forest: a fixed number of trees,
// each built over a bounded random subsample, scoring by mean path length.
type forest struct {
	trees      []*node
	sampleSize int
}

type node struct {
	isLeaf       bool
	size         int
	splitFeature int
	splitValue   float64
	left, right  *node
}

func buildForest(data [][numFeatures]float64, cfg config.EngineConfig) *forest {
	rnd := rand.New(rand.NewSource(cfg.IsoForestSeed))
	sampleSize := cfg.IsoForestSampleSize
	if sampleSize <= 0 || sampleSize > len(data) {
		sampleSize = len(data)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sampleSize))))
	if heightLimit < 1 {
		heightLimit = 1
	}

	f := &forest{trees: make([]*node, 0, cfg.IsoForestTrees), sampleSize: sampleSize}
	for t := 0; t < cfg.IsoForestTrees; t++ {
		sample := sampleWithoutReplacement(data, sampleSize, rnd)
		f.trees = append(f.trees, buildTree(sample, 0, heightLimit, rnd))
	}
	return f
}

func sampleWithoutReplacement(data [][numFeatures]float64, n int, rnd *rand.Rand) [][numFeatures]float64 {
	perm := rnd.Perm(len(data))
	out := make([][numFeatures]float64, n)
	for i := 0; i < n; i++ {
		out[i] = data[perm[i]]
	}
	return out
}

func buildTree(data [][numFeatures]float64, depth, heightLimit int, rnd *rand.Rand) *node {
	if len(data) <= 1 || depth >= heightLimit {
		return &node{isLeaf: true, size: len(data)}
	}

	feature := rnd.Intn(numFeatures)
	minV, maxV := data[0][feature], data[0][feature]
	for _, row := range data {
		if row[feature] < minV {
			minV = row[feature]
		}
		if row[feature] > maxV {
			maxV = row[feature]
		}
	}
	if minV == maxV {
		return &node{isLeaf: true, size: len(data)}
	}

	splitValue := minV + rnd.Float64()*(maxV-minV)

	var left, right [][numFeatures]float64
	for _, row := range data {
		if row[feature] < splitValue {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &node{isLeaf: true, size: len(data)}
	}

	return &node{
		splitFeature: feature,
		splitValue:   splitValue,
		left:         buildTree(left, depth+1, heightLimit, rnd),
		right:        buildTree(right, depth+1, heightLimit, rnd),
	}
}

func pathLength(x [numFeatures]float64, n *node, depth int) float64 {
	if n.isLeaf {
		return float64(depth) + cFactor(n.size)
	}
	if x[n.splitFeature] < n.splitValue {
		return pathLength(x, n.left, depth+1)
	}
	return pathLength(x, n.right, depth+1)
}

// cFactor is the average path length of an unsuccessful search in a BST of
// n nodes, used to correct leaf depth for the points that landed together
// without being fully isolated.
func cFactor(n int) float64 {
	if n <= 1 {
		return 0
	}
	return 2*harmonic(n-1) - (2 * float64(n-1) / float64(n))
}

const eulerMascheroni = 0.5772156649

func harmonic(n int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Log(float64(n)) + eulerMascheroni
}

// score follows sklearn's IsolationForest decision_function convention:
// s(x,n) = 2^(-E(h(x))/c(n)) is close to 1 for anomalies and close to 0.5
// for inliers; the decision score 0.5 - s(x,n) is then negative for
// anomalies and mildly positive for well-behaved points, which is exactly
// the "lower = more anomalous" contract this package promises and the
// range the health-index formula for H_rcf assumes.
func (f *forest) score(x [numFeatures]float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.trees {
		sum += pathLength(x, t, 0)
	}
	avgPathLen := sum / float64(len(f.trees))
	c := cFactor(f.sampleSize)
	if c == 0 {
		return 0
	}
	s := math.Pow(2, -avgPathLen/c)
	return 0.5 - s
}
