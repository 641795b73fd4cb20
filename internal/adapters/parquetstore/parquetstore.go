// Package parquetstore implements the persistence layout: a single
// columnar file with columns sn, timestamp (ms int), unit, value. The
// engine only depends on Save/Load; it never inspects the file format.
package parquetstore

import (
	"context"
	"fmt"
	"os"
	"time"

	goparquet "github.com/fraugster/parquet-go"
	"github.com/fraugster/parquet-go/floor"
	"github.com/fraugster/parquet-go/parquetschema"

	"github.com/sawpanic/sentinel/internal/domain"
)

const schemaText = `message sample {
	required binary sn (STRING);
	required int64 timestamp;
	required binary unit (STRING);
	required double value;
}`

// row is the on-disk shape: one record per raw sample, flattened across
// every sensor and channel.
type row struct {
	SN        string  `parquet:"name=sn"`
	Timestamp int64   `parquet:"name=timestamp"`
	Unit      string  `parquet:"name=unit"`
	Value     float64 `parquet:"name=value"`
}

// Store reads and writes the full sample history to a single Parquet file
// at path. Save overwrites the file wholesale; the engine calls it on a
// cadence with a complete in-memory history, not incrementally.
type Store struct {
	path string
}

// New constructs a Store writing to path.
func New(path string) *Store {
	return &Store{path: path}
}

// Save writes every sensor's full sample history to the configured path, in
// one shot. A failure here is logged by the caller and never fatal: the
// engine continues serving from in-memory state.
func (s *Store) Save(ctx context.Context, history map[string][]domain.Sample) error {
	schemaDef, err := parquetschema.ParseSchemaDefinition(schemaText)
	if err != nil {
		return fmt.Errorf("parse parquet schema: %w", err)
	}

	w, err := floor.NewFileWriter(s.path, goparquet.WithSchemaDefinition(schemaDef))
	if err != nil {
		return fmt.Errorf("open parquet writer: %w", err)
	}

	for sensorID, samples := range history {
		for _, sample := range samples {
			if ctx.Err() != nil {
				w.Close()
				return ctx.Err()
			}
			rec := row{
				SN:        sensorID,
				Timestamp: sample.Timestamp.UnixMilli(),
				Unit:      unitOf(sample.Channel),
				Value:     sample.Value,
			}
			if err := w.Write(rec); err != nil {
				w.Close()
				return fmt.Errorf("write sample row: %w", err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// Load reads the full sample history back, grouped by sensor id. A missing
// file is not an error: it means a fresh deployment with no prior history.
func (s *Store) Load(ctx context.Context) (map[string][]domain.Sample, error) {
	history := make(map[string][]domain.Sample)

	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return history, nil
		}
		return nil, fmt.Errorf("stat parquet file: %w", err)
	}

	r, err := floor.NewFileReader(s.path)
	if err != nil {
		return nil, fmt.Errorf("open parquet reader: %w", err)
	}
	defer r.Close()

	for r.Next() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var rec row
		if err := r.Scan(&rec); err != nil {
			return nil, fmt.Errorf("scan parquet row: %w", err)
		}
		channel := domain.NormalizeUnit(rec.Unit)
		if channel == domain.ChannelUnknown {
			continue
		}
		history[rec.SN] = append(history[rec.SN], domain.Sample{
			Timestamp: time.UnixMilli(rec.Timestamp),
			SensorID:  rec.SN,
			Channel:   channel,
			Value:     rec.Value,
		})
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}

	return history, nil
}

func unitOf(channel domain.Channel) string {
	switch channel {
	case domain.ChannelVibration:
		return "g"
	case domain.ChannelTemperature:
		return "°C"
	default:
		return ""
	}
}
