// Package upstream consumes another instance's SSE feed of fuel level
// envelopes and republishes every event locally.
package upstream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/observability"
)

// State is the connection state of the consumer.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

const maxLineSize = 64 * 1024

var errStreamEnded = errors.New("upstream stream ended")

// Publisher receives republished events.
type Publisher interface {
	Publish(event domain.FuelLevelEvent)
}

// Consumer reads an SSE feed and reconnects after a fixed retry interval
// whenever the connection drops.
type Consumer struct {
	url     string
	retry   time.Duration
	client  *http.Client
	pub     Publisher
	logger  *slog.Logger
	metrics *observability.Metrics
	state   atomic.Int32
}

// NewConsumer creates a Consumer for the feed at url.
func NewConsumer(url string, retry time.Duration, pub Publisher, logger *slog.Logger, metrics *observability.Metrics) *Consumer {
	return &Consumer{
		url:     url,
		retry:   retry,
		client:  &http.Client{},
		pub:     pub,
		logger:  logger,
		metrics: metrics,
	}
}

// Status returns the current connection state.
func (c *Consumer) Status() State {
	return State(c.state.Load())
}

// Run consumes the feed until the context is cancelled. It never gives up
// on its own.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("upstream consumer starting", "url", c.url, "retry_interval", c.retry.String())

	b := backoff.WithContext(backoff.NewConstantBackOff(c.retry), ctx)
	operation := func() error {
		err := c.consume(ctx)
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("upstream disconnected", "error", err, "retry_in", wait.String())
	}

	err := backoff.RetryNotify(operation, b, notify)
	c.setState(StateDisconnected)
	if ctx.Err() != nil {
		c.logger.Info("upstream consumer stopped")
		return nil
	}
	return err
}

func (c *Consumer) consume(ctx context.Context) error {
	c.setState(StateConnecting)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build upstream request: %w", err))
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connect upstream: unexpected status %d", resp.StatusCode)
	}

	c.setState(StateConnected)
	c.logger.Info("upstream connected", "url", c.url)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				c.dispatch(strings.Join(data, "\n"))
				data = data[:0]
			}
		case strings.HasPrefix(line, ":"):
			// comment or heartbeat
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read upstream: %w", err)
	}
	return errStreamEnded
}

func (c *Consumer) dispatch(payload string) {
	event, err := domain.UnmarshalEnvelope([]byte(payload))
	if err != nil {
		c.logger.Warn("skipping malformed upstream event", "error", err)
		return
	}
	c.pub.Publish(event)
}

func (c *Consumer) setState(s State) {
	if State(c.state.Swap(int32(s))) != s {
		c.metrics.UpstreamState.Set(float64(s))
		c.logger.Debug("upstream state changed", "state", s.String())
	}
}
