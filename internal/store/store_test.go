package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/sentinel/internal/domain"
)

func sampleAt(sec int64, ch domain.Channel, v float64) domain.Sample {
	return domain.Sample{Timestamp: time.Unix(sec, 0), SensorID: "SN-1", Channel: ch, Value: v}
}

func TestAppend_SortsAndDedupesLatestWriteWins(t *testing.T) {
	s := New()
	s.Append("SN-1", []domain.Sample{
		sampleAt(20, domain.ChannelVibration, 1.0),
		sampleAt(10, domain.ChannelVibration, 0.5),
	})
	s.Append("SN-1", []domain.Sample{
		sampleAt(10, domain.ChannelVibration, 0.9), // duplicate (ts, channel): latest wins
	})

	all := s.All("SN-1")
	require.Len(t, all, 2)
	assert.Equal(t, time.Unix(10, 0), all[0].Timestamp)
	assert.Equal(t, 0.9, all[0].Value)
	assert.Equal(t, time.Unix(20, 0), all[1].Timestamp)
}

func TestSince_ReturnsAtOrAfter(t *testing.T) {
	s := New()
	s.Append("SN-1", []domain.Sample{
		sampleAt(10, domain.ChannelVibration, 1),
		sampleAt(20, domain.ChannelVibration, 2),
		sampleAt(30, domain.ChannelVibration, 3),
	})

	got := s.Since("SN-1", time.Unix(20, 0))
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Value)
	assert.Equal(t, 3.0, got[1].Value)
}

func TestLastTS_EmptySensorReportsFalse(t *testing.T) {
	s := New()
	_, ok := s.LastTS("unknown")
	assert.False(t, ok)

	s.Append("SN-1", []domain.Sample{sampleAt(5, domain.ChannelVibration, 1)})
	ts, ok := s.LastTS("SN-1")
	assert.True(t, ok)
	assert.Equal(t, time.Unix(5, 0), ts)
}

func TestTrim_EvictsOlderThanCutoff(t *testing.T) {
	s := New()
	s.Append("SN-1", []domain.Sample{
		sampleAt(10, domain.ChannelVibration, 1),
		sampleAt(20, domain.ChannelVibration, 2),
		sampleAt(30, domain.ChannelVibration, 3),
	})

	s.Trim(time.Unix(20, 0))

	all := s.All("SN-1")
	require.Len(t, all, 2)
	assert.Equal(t, time.Unix(20, 0), all[0].Timestamp)
}

func TestTail_ReturnsLastNOldestFirst(t *testing.T) {
	s := New()
	s.Append("SN-1", []domain.Sample{
		sampleAt(10, domain.ChannelVibration, 1),
		sampleAt(20, domain.ChannelVibration, 2),
		sampleAt(30, domain.ChannelVibration, 3),
	})

	got := s.Tail("SN-1", 2)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Value)
	assert.Equal(t, 3.0, got[1].Value)

	assert.Nil(t, s.Tail("SN-1", 0))
	assert.Nil(t, s.Tail("nonexistent", 5))
}

func TestSensorIDs_SortedAcrossSensors(t *testing.T) {
	s := New()
	s.Append("SN-2", []domain.Sample{sampleAt(1, domain.ChannelVibration, 1)})
	s.Append("SN-1", []domain.Sample{sampleAt(1, domain.ChannelVibration, 1)})

	assert.Equal(t, []string{"SN-1", "SN-2"}, s.SensorIDs())
}
