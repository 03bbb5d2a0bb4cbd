package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second
	// DefaultInterval is the default time between two pushes
	DefaultInterval = 30 * time.Second
)

// PushRegistry implements Registry for push-based metrics collection.
// Metric updates only touch memory; Run or Flush write the latest value of
// every series to the remote write endpoint.
type PushRegistry struct {
	pusher   *pusher
	interval time.Duration
	logger   *slog.Logger
}

// PushConfig configures a PushRegistry.
type PushConfig struct {
	// URL is the base URL of the remote write endpoint (e.g., "http://localhost:9090").
	URL string
	// Prefix is the metric name prefix. All metric names will be prefixed with this value
	// followed by an underscore.
	Prefix string
	// Job is the job label for all metrics.
	Job string
	// Instance is the instance label for all metrics.
	Instance string
	// Timeout is the HTTP client timeout. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Interval is the time between pushes made by Run. Defaults to DefaultInterval.
	Interval time.Duration
	// Logger receives push failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewPushRegistry creates a new PushRegistry that pushes metrics to the given URL.
func NewPushRegistry(cfg PushConfig) *PushRegistry {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &pusher{
		url:        strings.TrimSuffix(cfg.URL, "/") + "/api/v1/write",
		httpClient: &http.Client{Timeout: timeout},
		prefix:     cfg.Prefix,
		job:        cfg.Job,
		instance:   cfg.Instance,
		series:     make(map[string]*series),
	}
	return &PushRegistry{
		pusher:   p,
		interval: interval,
		logger:   logger,
	}
}

// NewGauge creates a new push-based Gauge.
func (r *PushRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	return &pushGauge{pusher: r.pusher, name: opts.Name}, nil
}

// NewGaugeVec creates a new push-based GaugeVec.
func (r *PushRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	return &pushGaugeVec{pusher: r.pusher, name: opts.Name}, nil
}

// NewCounter creates a new push-based Counter.
func (r *PushRegistry) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	return &pushCounter{pusher: r.pusher, name: opts.Name}, nil
}

// NewCounterVec creates a new push-based CounterVec.
func (r *PushRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	return &pushCounterVec{pusher: r.pusher, name: opts.Name}, nil
}

// Run pushes metrics every interval until ctx is cancelled, then makes a
// final push with a fresh context.
func (r *PushRegistry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), r.pusher.httpClient.Timeout)
			if err := r.Flush(flushCtx); err != nil {
				r.logger.Warn("final metrics push failed", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.logger.Warn("metrics push failed", "error", err)
			}
		}
	}
}

// Flush writes the current value of every series that changed since the last
// successful flush.
func (r *PushRegistry) Flush(ctx context.Context) error {
	return r.pusher.flush(ctx)
}

// series is the latest value of one metric/label combination.
type series struct {
	name    string
	labels  map[string]string
	value   float64
	version uint64 // bumped on every update
	pushed  uint64 // version last written successfully
}

// pusher holds pending values and handles remote write to VictoriaMetrics/Prometheus.
type pusher struct {
	url        string
	httpClient *http.Client
	prefix     string
	job        string
	instance   string

	mu     sync.Mutex
	series map[string]*series // protected by mu
}

// update applies fn to the stored value of the series.
func (p *pusher) update(name string, labels map[string]string, fn func(float64) float64) {
	key := seriesKey(name, labels)

	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.series[key]
	if !ok {
		s = &series{name: name, labels: labels}
		p.series[key] = s
	}
	s.value = fn(s.value)
	s.version++
}

// pending is a series captured for a write, with the version it was read at.
type pending struct {
	s       *series
	version uint64
}

func (p *pusher) flush(ctx context.Context) error {
	p.mu.Lock()
	timeseries := make([]prompb.TimeSeries, 0, len(p.series))
	var flushed []pending
	now := time.Now()
	for _, s := range p.series {
		if s.version == s.pushed {
			continue
		}
		timeseries = append(timeseries, p.toTimeSeries(s, now))
		flushed = append(flushed, pending{s: s, version: s.version})
	}
	p.mu.Unlock()

	if len(timeseries) == 0 {
		return nil
	}

	if err := p.write(ctx, timeseries); err != nil {
		return err
	}

	// A series updated again during the write keeps a newer version and is
	// sent by the next flush.
	p.mu.Lock()
	for _, f := range flushed {
		f.s.pushed = f.version
	}
	p.mu.Unlock()
	return nil
}

func (p *pusher) write(ctx context.Context, timeseries []prompb.TimeSeries) error {
	req := &prompb.WriteRequest{
		Timeseries: timeseries,
	}

	data, err := proto.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling write request: %w", err)
	}

	compressed := snappy.Encode(nil, data)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// toTimeSeries converts a series to Prometheus TimeSeries format. Must be
// called with mu held.
func (p *pusher) toTimeSeries(s *series, now time.Time) prompb.TimeSeries {
	promLabels := make([]prompb.Label, 0, len(s.labels)+3)

	metricName := s.name
	if p.prefix != "" {
		metricName = p.prefix + "_" + s.name
	}
	promLabels = append(promLabels, prompb.Label{
		Name:  "__name__",
		Value: metricName,
	})

	if p.job != "" {
		promLabels = append(promLabels, prompb.Label{Name: "job", Value: p.job})
	}
	if p.instance != "" {
		promLabels = append(promLabels, prompb.Label{Name: "instance", Value: p.instance})
	}
	for k, v := range s.labels {
		promLabels = append(promLabels, prompb.Label{Name: k, Value: v})
	}
	// Remote write receivers expect labels sorted by name.
	sort.Slice(promLabels, func(i, j int) bool {
		return promLabels[i].Name < promLabels[j].Name
	})

	return prompb.TimeSeries{
		Labels: promLabels,
		Samples: []prompb.Sample{{
			Value:     s.value,
			Timestamp: now.UnixMilli(),
		}},
	}
}

// seriesKey creates a stable map key from a name and its labels.
func seriesKey(name string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString(",")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(labels[k])
	}
	return b.String()
}

// pushGauge implements Gauge for push mode.
type pushGauge struct {
	pusher *pusher
	name   string
	labels map[string]string
}

func (g *pushGauge) Set(v float64) {
	g.pusher.update(g.name, g.labels, func(float64) float64 { return v })
}

// pushGaugeVec implements GaugeVec for push mode.
type pushGaugeVec struct {
	pusher *pusher
	name   string
}

func (g *pushGaugeVec) With(labels prometheus.Labels) Gauge {
	return &pushGauge{pusher: g.pusher, name: g.name, labels: labels}
}

// pushCounter implements Counter for push mode.
type pushCounter struct {
	pusher *pusher
	name   string
	labels map[string]string
}

func (c *pushCounter) Inc() {
	c.Add(1)
}

func (c *pushCounter) Add(v float64) {
	if v < 0 {
		panic("counter cannot decrease in value")
	}
	c.pusher.update(c.name, c.labels, func(cur float64) float64 { return cur + v })
}

// pushCounterVec implements CounterVec for push mode.
type pushCounterVec struct {
	pusher *pusher
	name   string
}

func (c *pushCounterVec) With(labels prometheus.Labels) Counter {
	return &pushCounter{pusher: c.pusher, name: c.name, labels: labels}
}
