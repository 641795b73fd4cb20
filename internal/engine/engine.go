// Package engine implements C9: the per-sensor pipeline orchestrator that
// ties the store, resampler, analyzers, fuser, and health index together
// into one polling cycle, plus snapshot and daily-top event emission.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sawpanic/sentinel/internal/analyzers/baseline"
	"github.com/sawpanic/sentinel/internal/analyzers/isoforest"
	"github.com/sawpanic/sentinel/internal/analyzers/skf"
	"github.com/sawpanic/sentinel/internal/analyzers/thermal"
	"github.com/sawpanic/sentinel/internal/config"
	"github.com/sawpanic/sentinel/internal/domain"
	"github.com/sawpanic/sentinel/internal/fuser"
	"github.com/sawpanic/sentinel/internal/health"
	"github.com/sawpanic/sentinel/internal/resample"
	"github.com/sawpanic/sentinel/internal/store"
)

// SampleFetcher is the inbound vendor source, satisfied by
// internal/adapters/httpsource.Client. Kept as an interface here so the
// engine never imports the HTTP transport it runs over.
type SampleFetcher interface {
	FetchSince(ctx context.Context, sensorID string, since time.Time) ([]domain.Sample, error)
}

// Persister is the columnar history store, satisfied by
// internal/adapters/parquetstore.Store.
type Persister interface {
	Save(ctx context.Context, history map[string][]domain.Sample) error
	Load(ctx context.Context) (map[string][]domain.Sample, error)
}

// Event is one daily-top alarm in the published snapshot.
type Event struct {
	SN           string `json:"sn"`
	Alias        string `json:"alias"`
	Timestamp    string `json:"timestamp"`
	Type         string `json:"type"`
	Msg          string `json:"msg"`
	VibRMS       float64 `json:"vib_rms"`
	TempMean     float64 `json:"temp_mean"`
	TempGradient float64 `json:"temp_gradient"`
}

// jsonFloat serializes NaN/±Inf as JSON null instead of failing to marshal.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
}

// SensorSnapshot is one row of the snapshot's sensor table.
type SensorSnapshot struct {
	SN          string    `json:"sn"`
	Alias       string    `json:"alias"`
	TimestampMS int64     `json:"timestamp"`
	Temp        jsonFloat `json:"temp"`
	VibRMS      jsonFloat `json:"vib_rms"`
	HealthIndex jsonFloat `json:"health_index"`
	FailureProb jsonFloat `json:"failure_prob"`
	Status      string    `json:"status"`
}

// Snapshot is the atomic publish document served to dashboards.
type Snapshot struct {
	ServerTime       string           `json:"server_time"`
	BackfillProgress float64          `json:"mining_progress"`
	Sensors          []SensorSnapshot `json:"sensors"`
	Events           []Event          `json:"events"`
}

// persistEveryNCycles bounds how often the full history is flushed to the
// columnar store; the in-RAM Sample Store is authoritative between flushes.
const persistEveryNCycles = 10

// Engine owns the Sample Store and drives one polling cycle end to end for
// every configured sensor. It is exclusively owned by the process's serve
// loop; Snapshot() is the only method safe to call concurrently from an
// HTTP handler.
type Engine struct {
	cfg       config.EngineConfig
	st        *store.Store
	fetcher   SampleFetcher
	persister Persister
	settings  *config.SettingsWatcher
	sensors   []domain.Sensor
	hallID    string
	loc       *time.Location

	mu                sync.RWMutex
	compensatedRows   map[string][]domain.IntervalRow
	rawRows           map[string][]domain.IntervalRow
	eventsCompensated []Event
	eventsRaw         []Event
	seenCompensated   map[string]bool
	seenRaw           map[string]bool
	backfillProgress  float64
	cycleCount        int
	lastFetchErrors   map[string]int
}

// New constructs an Engine. sensors is the full registry including the hall
// ambient sensor, if any (marked via Sensor.IsHallAmbient).
func New(cfg config.EngineConfig, sensors []domain.Sensor, fetcher SampleFetcher, persister Persister, settings *config.SettingsWatcher) *Engine {
	loc, err := time.LoadLocation(cfg.EventTimezone)
	if err != nil {
		log.Warn().Err(err).Str("tz", cfg.EventTimezone).Msg("falling back to UTC for event day bucketing")
		loc = time.UTC
	}

	hallID := ""
	for _, s := range sensors {
		if s.IsHallAmbient {
			hallID = s.ID
		}
	}

	return &Engine{
		cfg:             cfg,
		st:              store.New(),
		fetcher:         fetcher,
		persister:       persister,
		settings:        settings,
		sensors:         sensors,
		hallID:          hallID,
		loc:             loc,
		compensatedRows: make(map[string][]domain.IntervalRow),
		rawRows:         make(map[string][]domain.IntervalRow),
		seenCompensated: make(map[string]bool),
		seenRaw:         make(map[string]bool),
		lastFetchErrors: make(map[string]int),
	}
}

// Bootstrap loads prior history from the persistence layer before the first
// cycle runs, so a restart does not lose the rolling baseline window.
func (e *Engine) Bootstrap(ctx context.Context) error {
	history, err := e.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap load: %w", err)
	}
	for sensorID, samples := range history {
		e.st.Append(sensorID, samples)
	}
	return nil
}

// RunCycle executes one full poll: fetch deltas, resample, run C3–C8 for
// every sensor, extract daily-top events, and trim retention. It never
// returns an error for a single sensor's transient fetch failure; it
// returns an error only for context cancellation.
func (e *Engine) RunCycle(ctx context.Context) error {
	batches, err := e.fetchAll(ctx)
	if err != nil {
		return err
	}
	for sensorID, batch := range batches {
		e.st.Append(sensorID, batch)
	}

	var hallRows []domain.IntervalRow
	if e.hallID != "" {
		hallRows = resample.Resample(e.st.All(e.hallID), e.cfg)
	}

	baseRows := make(map[string][]domain.IntervalRow)
	for _, sensor := range e.sensors {
		if sensor.IsHallAmbient {
			continue
		}
		baseRows[sensor.ID] = resample.Resample(e.st.All(sensor.ID), e.cfg)
	}

	lineAvg := buildLineAverages(baseRows)

	compensated := make(map[string][]domain.IntervalRow, len(baseRows))
	raw := make(map[string][]domain.IntervalRow, len(baseRows))
	for _, sensor := range e.sensors {
		if sensor.IsHallAmbient {
			continue
		}
		base := baseRows[sensor.ID]
		compensated[sensor.ID] = e.runPipeline(base, sensor, hallRows, lineAvg)
		raw[sensor.ID] = e.runPipeline(base, sensor, nil, lineAvg)
	}

	var newCompensated, newRaw []Event
	for _, sensor := range e.sensors {
		if sensor.IsHallAmbient {
			continue
		}
		newCompensated = append(newCompensated, e.dailyTop(sensor, compensated[sensor.ID], e.seenCompensated)...)
		newRaw = append(newRaw, e.dailyTop(sensor, raw[sensor.ID], e.seenRaw)...)
	}

	e.mu.Lock()
	e.compensatedRows = compensated
	e.rawRows = raw
	e.eventsCompensated = append(e.eventsCompensated, newCompensated...)
	e.eventsRaw = append(e.eventsRaw, newRaw...)
	e.cycleCount++
	cycle := e.cycleCount
	e.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(e.cfg.RetentionDays) * 24 * time.Hour)
	e.st.Trim(cutoff)

	if cycle%persistEveryNCycles == 0 {
		if err := e.persistHistory(ctx); err != nil {
			log.Error().Err(err).Msg("persistence failure, continuing from in-memory state")
		}
	}

	return nil
}

// runPipeline runs C3 through C8 over a copy of base, so the compensated
// and raw variants never share mutable state.
func (e *Engine) runPipeline(base []domain.IntervalRow, sensor domain.Sensor, hallRows []domain.IntervalRow, lineAvg map[int64]float64) []domain.IntervalRow {
	rows := make([]domain.IntervalRow, len(base))
	copy(rows, base)

	profile := domain.DetectProfile(sensor.Alias)

	skf.Analyze(rows, profile, e.cfg)
	baseline.Analyze(rows, e.cfg)
	thermal.Analyze(rows, hallRows, e.cfg)
	injectLineAverage(rows, lineAvg)
	isoforest.Analyze(rows, e.cfg)
	fuser.Fuse(rows, profile, e.cfg)
	health.Compute(rows, e.cfg)

	return rows
}

// buildLineAverages computes avg_line_vibration(t) across every bearing
// sensor's resampled stream, keyed by bucket start.
func buildLineAverages(baseRows map[string][]domain.IntervalRow) map[int64]float64 {
	sum := make(map[int64]float64)
	count := make(map[int64]int)
	for _, rows := range baseRows {
		for _, row := range rows {
			key := row.BucketStart.UnixNano()
			sum[key] += row.VibRMS
			count[key]++
		}
	}
	avg := make(map[int64]float64, len(sum))
	for key, total := range sum {
		avg[key] = total / float64(count[key])
	}
	return avg
}

func injectLineAverage(rows []domain.IntervalRow, avg map[int64]float64) {
	for i := range rows {
		rows[i].AvgLineVibration = avg[rows[i].BucketStart.UnixNano()]
	}
}

// fetchAll fetches every sensor's delta since its last known timestamp,
// bounded by MaxConcurrency in-flight requests. A per-sensor transient
// failure is logged and dropped; batches are only returned once every
// in-flight fetch has settled, so a mid-cycle cancellation leaves the
// store untouched.
func (e *Engine) fetchAll(ctx context.Context) (map[string][]domain.Sample, error) {
	sem := semaphore.NewWeighted(int64(e.cfg.MaxConcurrency))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	batches := make(map[string][]domain.Sample)
	fetchErrors := make(map[string]int)

	for _, sensor := range e.sensors {
		sensor := sensor
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			since, _ := e.st.LastTS(sensor.ID)
			samples, err := e.fetcher.FetchSince(gctx, sensor.ID, since)
			if err != nil {
				log.Warn().Err(err).Str("sensor", sensor.ID).Msg("transient fetch failure, skipping this cycle")
				mu.Lock()
				fetchErrors[sensor.ID]++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			batches[sensor.ID] = samples
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch cycle canceled: %w", err)
	}
	// A fetch cut short by cancellation is logged above like any transient
	// failure, so check the cycle's context before handing batches back.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch cycle canceled: %w", err)
	}

	e.mu.Lock()
	e.lastFetchErrors = fetchErrors
	e.mu.Unlock()

	return batches, nil
}

// LastFetchErrors returns the per-sensor transient fetch failure counts
// from the most recently completed cycle's fetch phase.
func (e *Engine) LastFetchErrors() map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]int, len(e.lastFetchErrors))
	for k, v := range e.lastFetchErrors {
		out[k] = v
	}
	return out
}

// dailyTop picks the single highest-priority row per represented day
// (max_priority >= 3), deduping against seen (sensor, day) keys in place.
func (e *Engine) dailyTop(sensor domain.Sensor, rows []domain.IntervalRow, seen map[string]bool) []Event {
	best := make(map[string]domain.IntervalRow)
	for _, row := range rows {
		if row.MaxPriority < 3 {
			continue
		}
		day := row.BucketStart.In(e.loc).Format("2006-01-02")
		cur, ok := best[day]
		if !ok || row.MaxPriority > cur.MaxPriority {
			best[day] = row
		}
	}

	days := make([]string, 0, len(best))
	for day := range best {
		days = append(days, day)
	}
	sort.Strings(days)

	var events []Event
	for _, day := range days {
		key := sensor.ID + "|" + day
		if seen[key] {
			continue
		}
		seen[key] = true

		row := best[day]
		events = append(events, Event{
			SN:           sensor.ID,
			Alias:        sensor.Alias,
			Timestamp:    row.BucketStart.Format(time.RFC3339),
			Type:         row.FinalVerdict.String(),
			Msg:          fmt.Sprintf("%s verdict, alarm source %s", row.FinalVerdict, row.AlarmSource),
			VibRMS:       row.VibRMS,
			TempMean:     row.TempMean,
			TempGradient: row.TempGradientFinal,
		})
	}
	return events
}

func (e *Engine) persistHistory(ctx context.Context) error {
	history := make(map[string][]domain.Sample)
	for _, sensor := range e.sensors {
		history[sensor.ID] = e.st.All(sensor.ID)
	}
	return e.persister.Save(ctx, history)
}

// Snapshot builds the current publish document. The active event log and
// per-sensor display fields follow the runtime setting's hall-compensation
// toggle; sensors that have never reported a row surface as INAKTIV so the
// UI's alias table is stable from process start.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	useComp := e.settings.Current().UseHallCompensation
	rowsMap, events := e.rawRows, e.eventsRaw
	if useComp {
		rowsMap, events = e.compensatedRows, e.eventsCompensated
	}

	sensors := make([]SensorSnapshot, 0, len(e.sensors))
	for _, sensor := range e.sensors {
		if sensor.IsHallAmbient {
			continue
		}
		rows := rowsMap[sensor.ID]
		if len(rows) == 0 {
			sensors = append(sensors, SensorSnapshot{
				SN:     sensor.ID,
				Alias:  sensor.Alias,
				Status: "INAKTIV",
			})
			continue
		}

		last := rows[len(rows)-1]
		hi := jsonFloat(math.NaN())
		if last.HealthIndexValid {
			hi = jsonFloat(last.HealthIndex)
		}

		sensors = append(sensors, SensorSnapshot{
			SN:          sensor.ID,
			Alias:       sensor.Alias,
			TimestampMS: last.BucketStart.UnixMilli(),
			Temp:        jsonFloat(last.TempMean),
			VibRMS:      jsonFloat(last.VibRMS),
			HealthIndex: hi,
			FailureProb: jsonFloat(last.FailureProb),
			Status:      last.FinalVerdict.String(),
		})
	}

	return Snapshot{
		ServerTime:       time.Now().In(e.loc).Format("2006-01-02 15:04:05"),
		BackfillProgress: e.backfillProgress,
		Sensors:          sensors,
		Events:           append([]Event(nil), events...),
	}
}

// SetBackfillProgress records backfill progress (0..100) for display during a
// historical catch-up run.
func (e *Engine) SetBackfillProgress(pct float64) {
	e.mu.Lock()
	e.backfillProgress = pct
	e.mu.Unlock()
}

// Rows returns the last computed rows for one sensor, following the same
// runtime hall-compensation toggle as Snapshot. Used by the report command
// over a completed run; returns nil for a sensor with no rows yet.
func (e *Engine) Rows(sensorID string) []domain.IntervalRow {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rowsMap := e.rawRows
	if e.settings.Current().UseHallCompensation {
		rowsMap = e.compensatedRows
	}
	return append([]domain.IntervalRow(nil), rowsMap[sensorID]...)
}

// Publish serializes the current snapshot and writes it atomically: a temp
// file in the same directory, then a rename, so readers never observe a
// partial write.
func (e *Engine) Publish(path string) error {
	snap := e.Snapshot()
	return writeAtomicJSON(path, snap)
}

func writeAtomicJSON(path string, v interface{}) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}
