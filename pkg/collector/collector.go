package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/starsystemlabs/nebula-telemetry/pkg/event"
)

const (
	// DefaultBatchSize triggers an eager flush once this many events
	// are pending.
	DefaultBatchSize = 50
	// DefaultFlushInterval is the background flush cadence.
	DefaultFlushInterval = 30 * time.Second
	// DefaultMaxPending caps the buffer. Past it the oldest events
	// are dropped, losing stale data rather than growing unbounded.
	DefaultMaxPending = 1000
)

// Options configures a Collector. The zero value of any field falls
// back to the defaults.
type Options struct {
	Endpoint      string
	WidgetID      string
	BatchSize     int
	FlushInterval time.Duration
	MaxPending    int
	HTTPClient    *http.Client
	Logger        *logrus.Logger
}

// Summary is a point-in-time view of the collector state.
type Summary struct {
	PendingCount int                `json:"pending_count"`
	WidgetID     string             `json:"widget_id"`
	Breaker      BreakerState       `json:"circuit_breaker"`
	Types        map[event.Kind]int `json:"types"`
}

// Collector buffers telemetry events and posts them to the ingest
// endpoint in batches. Flushes go through a circuit breaker so a
// down backend does not stall the caller.
type Collector struct {
	opts    Options
	client  *http.Client
	log     *logrus.Logger
	breaker *CircuitBreaker

	mu      sync.Mutex
	pending []event.Event
	session event.SessionSummary
	started time.Time

	// flushMu serializes Flush so overlapping flushes cannot send the
	// same batch twice or trim events another flush delivered.
	flushMu sync.Mutex

	stop chan struct{}
	done chan struct{}
}

// New builds a collector and starts its background flush loop.
func New(opts Options) *Collector {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.MaxPending <= 0 {
		opts.MaxPending = DefaultMaxPending
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	c := &Collector{
		opts:    opts,
		client:  opts.HTTPClient,
		log:     opts.Logger,
		breaker: NewCircuitBreaker(DefaultFailureThreshold, DefaultBreakerTimeout),
		started: time.Now(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.flushLoop()
	return c
}

func (c *Collector) flushLoop() {
	defer close(c.done)
	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.FlushBestEffort(context.Background())
		case <-c.stop:
			return
		}
	}
}

// Track buffers one event, stamping the widget id and timestamp when
// absent. Reaching the batch size triggers an async flush.
func (c *Collector) Track(e event.Event) {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.WidgetID == "" {
		e.WidgetID = c.opts.WidgetID
	}

	c.mu.Lock()
	c.pending = append(c.pending, e)
	if len(c.pending) > c.opts.MaxPending {
		c.pending = c.pending[len(c.pending)-c.opts.MaxPending:]
	}
	c.recordSession(e)
	full := len(c.pending) >= c.opts.BatchSize
	c.mu.Unlock()

	if full {
		go c.FlushBestEffort(context.Background())
	}
}

func (c *Collector) recordSession(e event.Event) {
	switch e.Kind {
	case event.KindInteraction:
		c.session.Interactions++
		if e.Failed() {
			c.session.Errors++
		}
	case event.KindRPC:
		c.session.RPCCalls++
	case event.KindWalletConnect:
		if e.Succeeded() {
			c.session.WalletConnections++
		}
	case event.KindLoadError:
		c.session.Errors++
	}
}

// TrackLoad records a widget load.
func (c *Collector) TrackLoad(success bool, loadTime float64) {
	c.Track(event.Event{
		Kind:     event.KindLoad,
		Success:  event.Bool(success),
		LoadTime: loadTime,
	})
}

// TrackRender records one render pass.
func (c *Collector) TrackRender(renderTime float64) {
	c.Track(event.Event{
		Kind:       event.KindRender,
		Success:    event.Bool(true),
		RenderTime: renderTime,
	})
}

// TrackWalletConnect records a wallet connection attempt.
func (c *Collector) TrackWalletConnect(success bool, walletType string) {
	c.Track(event.Event{
		Kind:       event.KindWalletConnect,
		Success:    event.Bool(success),
		WalletType: walletType,
	})
}

// TrackInteraction records a user action such as stake, claim or
// mine, classifying any error it carried.
func (c *Collector) TrackInteraction(action string, success bool, errMsg string) {
	e := event.Event{
		Kind:    event.KindInteraction,
		Action:  action,
		Success: event.Bool(success),
	}
	if errMsg != "" {
		info := event.CategorizeError("", "", errMsg)
		e.Error = &info
	}
	c.Track(e)
}

// TrackRPC records one RPC call.
func (c *Collector) TrackRPC(method string, success bool, duration float64) {
	c.Track(event.Event{
		Kind:     event.KindRPC,
		Method:   method,
		Success:  event.Bool(success),
		Duration: duration,
	})
}

// TrackTransaction records a transaction submission.
func (c *Collector) TrackTransaction(success bool, txHash string, gasUsed int64) {
	c.Track(event.Event{
		Kind:    event.KindTransaction,
		Success: event.Bool(success),
		TxHash:  txHash,
		GasUsed: gasUsed,
	})
}

// TrackCustom records a named event with no fixed shape.
func (c *Collector) TrackCustom(name string) {
	c.Track(event.Event{
		Kind:      event.KindCustom,
		EventName: name,
	})
}

// Flush posts all pending events through the breaker. Pending events
// are kept on failure so a later flush can retry them. Only one flush
// runs at a time; Track stays non-blocking because it only takes the
// buffer lock.
func (c *Collector) Flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	batch := make([]event.Event, len(c.pending))
	copy(batch, c.pending)
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	err := c.breaker.Do(func() error {
		return c.send(ctx, batch)
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	// Drop exactly what was sent. Events tracked during the flush
	// stay pending.
	if len(c.pending) >= len(batch) {
		c.pending = c.pending[len(batch):]
	} else {
		c.pending = nil
	}
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"count":     len(batch),
		"widget_id": c.opts.WidgetID,
	}).Debug("flushed telemetry batch")
	return nil
}

// FlushBestEffort flushes, logging instead of returning errors. An
// open breaker is quietly skipped.
func (c *Collector) FlushBestEffort(ctx context.Context) {
	if err := c.Flush(ctx); err != nil {
		if errors.Is(err, ErrBreakerOpen) {
			c.log.WithError(err).Debug("flush blocked by circuit breaker")
			return
		}
		c.log.WithError(err).Warn("failed to flush telemetry batch")
	}
}

func (c *Collector) send(ctx context.Context, batch []event.Event) error {
	body, err := json.Marshal(map[string][]event.Event{"metrics": batch})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send batch: backend returned %d", resp.StatusCode)
	}
	return nil
}

// Summary reports the pending buffer, breaker state and per-kind
// counts.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make(map[event.Kind]int, 8)
	for _, e := range c.pending {
		types[e.Kind]++
	}
	return Summary{
		PendingCount: len(c.pending),
		WidgetID:     c.opts.WidgetID,
		Breaker:      c.breaker.State(),
		Types:        types,
	}
}

// Close stops the flush loop, appends a session summary event and
// makes a final flush attempt.
func (c *Collector) Close(ctx context.Context) error {
	close(c.stop)
	<-c.done

	c.mu.Lock()
	summary := c.session
	summary.DurationMS = time.Since(c.started).Milliseconds()
	c.pending = append(c.pending, event.Event{
		Kind:      event.KindCustom,
		EventName: "session_summary",
		Timestamp: time.Now().UnixMilli(),
		WidgetID:  c.opts.WidgetID,
		Session:   &summary,
	})
	c.mu.Unlock()

	return c.Flush(ctx)
}
