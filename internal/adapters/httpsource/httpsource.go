// Package httpsource implements the inbound vendor REST sample fetcher:
// one sensor's (from, to, limit)-windowed history per call, rate-limited,
// circuit-broken, and tolerant of malformed records.
package httpsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sawpanic/sentinel/internal/domain"
)

// item is one raw record as the vendor API returns it. Timestamp may arrive
// as an epoch-millisecond number or an ISO-8601 string; Values carries the
// multi-channel shape, Unit/Value the single-channel shape.
type item struct {
	Timestamp json.RawMessage `json:"timestamp"`
	Unit      string          `json:"unit"`
	Value     float64         `json:"value"`
	Values    []struct {
		Index int     `json:"index"`
		Value float64 `json:"value"`
	} `json:"values"`
}

// envelope tolerates both a bare JSON array and a wrapping object with a
// "data" or "items" field, depending on vendor response shape.
type envelope struct {
	Data  []item `json:"data"`
	Items []item `json:"items"`
}

// Client fetches sample deltas over HTTP, with a token-bucket limiter and a
// circuit breaker guarding the vendor endpoint from cascading retries.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	baseURL    string
	apiKey     string
	systemID   string
}

// New constructs a Client. limit is the sustained requests/second budget;
// burst allows short spikes up to that many in-flight requests.
func New(baseURL, apiKey, systemID string, limit rate.Limit, burst int) *Client {
	st := gobreaker.Settings{
		Name:     "httpsource",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
	}

	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    gobreaker.NewCircuitBreaker(st),
		baseURL:    baseURL,
		apiKey:     apiKey,
		systemID:   systemID,
	}
}

// FetchSince retrieves every sample for sensorID strictly after since, up to
// now. A non-200 response or network error is returned to the caller, who
// is expected to log and skip the sensor for this cycle rather than fail
// the whole batch.
func (c *Client) FetchSince(ctx context.Context, sensorID string, since time.Time) ([]domain.Sample, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doFetch(ctx, sensorID, since)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch sensor %s: %w", sensorID, err)
	}
	return result.([]domain.Sample), nil
}

func (c *Client) doFetch(ctx context.Context, sensorID string, since time.Time) ([]domain.Sample, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	q := u.Query()
	q.Set("sn", sensorID)
	q.Set("system_id", c.systemID)
	q.Set("from_ms", strconv.FormatInt(since.UnixMilli(), 10))
	q.Set("to_ms", strconv.FormatInt(time.Now().UnixMilli(), 10))
	q.Set("limit", "10000")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	items, err := parseEnvelope(body)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return toSamples(sensorID, items), nil
}

// parseEnvelope accepts either a bare array or a {data:[...]}/{items:[...]}
// wrapper, since vendor API shape is not guaranteed stable across versions.
func parseEnvelope(body []byte) ([]item, error) {
	var arr []item
	if err := json.Unmarshal(body, &arr); err == nil {
		return arr, nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	if len(env.Data) > 0 {
		return env.Data, nil
	}
	return env.Items, nil
}

// toSamples converts vendor items to domain.Sample, silently dropping
// malformed records: missing timestamp, unrecognized unit, or an index
// outside {1, 2} in the multi-channel shape.
func toSamples(sensorID string, items []item) []domain.Sample {
	samples := make([]domain.Sample, 0, len(items)*2)

	for _, it := range items {
		ts, ok := parseTimestamp(it.Timestamp)
		if !ok {
			log.Debug().Str("sensor", sensorID).Msg("dropping sample with malformed timestamp")
			continue
		}

		if len(it.Values) > 0 {
			for _, v := range it.Values {
				channel := channelFromIndex(v.Index)
				if channel == domain.ChannelUnknown {
					continue
				}
				samples = append(samples, domain.Sample{Timestamp: ts, SensorID: sensorID, Channel: channel, Value: v.Value})
			}
			continue
		}

		channel := domain.NormalizeUnit(it.Unit)
		if channel == domain.ChannelUnknown {
			log.Debug().Str("sensor", sensorID).Str("unit", it.Unit).Msg("dropping sample with unrecognized unit")
			continue
		}
		samples = append(samples, domain.Sample{Timestamp: ts, SensorID: sensorID, Channel: channel, Value: it.Value})
	}

	return samples
}

func channelFromIndex(index int) domain.Channel {
	switch index {
	case 1:
		return domain.ChannelVibration
	case 2:
		return domain.ChannelTemperature
	default:
		return domain.ChannelUnknown
	}
}

func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
