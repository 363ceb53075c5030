package alerting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"paystream-cloud/internal/observability/metrics"
	streams "paystream-cloud/internal/streams/domain"
)

// StreamSource lists the streams to watch.
type StreamSource interface {
	ListActive(ctx context.Context) ([]streams.Stream, error)
}

// Clock provides time for scheduling.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

type sentRecord struct {
	health string
	at     time.Time
}

// Checker periodically scans active streams and notifies when a stream's
// runway degrades to warning or critical. One notification per stream per
// health level, re-sent after the cooldown.
type Checker struct {
	source   StreamSource
	channel  Channel
	template *Template
	clock    Clock
	logger   *log.Logger
	interval time.Duration
	cooldown time.Duration

	mu   sync.Mutex
	sent map[string]sentRecord
}

// Option configures the checker.
type Option func(*Checker)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(c *Checker) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithInterval sets the scan interval.
func WithInterval(interval time.Duration) Option {
	return func(c *Checker) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithCooldown sets the minimum interval between repeat notifications for
// the same stream and health level.
func WithCooldown(cooldown time.Duration) Option {
	return func(c *Checker) {
		if cooldown > 0 {
			c.cooldown = cooldown
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTemplate overrides the alert template.
func WithTemplate(template *Template) Option {
	return func(c *Checker) {
		if template != nil {
			c.template = template
		}
	}
}

// NewChecker constructs a runway checker.
func NewChecker(source StreamSource, channel Channel, opts ...Option) (*Checker, error) {
	if source == nil {
		return nil, errors.New("runway checker: nil stream source")
	}
	if channel == nil {
		return nil, errors.New("runway checker: nil channel")
	}
	defaultTemplate, err := NewTemplate("")
	if err != nil {
		return nil, err
	}
	checker := &Checker{
		source:   source,
		channel:  channel,
		template: defaultTemplate,
		clock:    systemClock{},
		interval: time.Minute,
		cooldown: 6 * time.Hour,
		sent:     make(map[string]sentRecord),
	}
	for _, opt := range opts {
		opt(checker)
	}
	return checker, nil
}

// Run scans on the configured interval until the context is cancelled.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.CheckOnce(ctx); err != nil && c.logger != nil {
				c.logger.Printf("runway check failed: %v", err)
			}
		}
	}
}

// CheckOnce performs a single scan.
func (c *Checker) CheckOnce(ctx context.Context) error {
	rows, err := c.source.ListActive(ctx)
	if err != nil {
		return err
	}
	now := c.clock.Now().UTC()
	for i := range rows {
		stream := &rows[i]
		state := streams.ComputeState(stream, now)
		if state.Health == streams.HealthHealthy {
			c.clear(stream.ID)
			continue
		}
		if !c.shouldSend(stream.ID, state.Health, now) {
			continue
		}
		content, err := c.template.Render(TemplateData{
			StreamID:         stream.ID,
			TenantID:         stream.TenantID,
			SenderAccountID:  stream.SenderAccountID,
			Health:           state.Health,
			HealthLabel:      strings.ToUpper(state.Health),
			Runway:           (time.Duration(state.RunwaySeconds) * time.Second).String(),
			FundedRemaining:  fmt.Sprintf("%.6f", stream.FundedAmount-state.Total),
			FlowRatePerMonth: fmt.Sprintf("%.6f", stream.FlowRatePerMonth),
		})
		if err != nil {
			continue
		}
		if err := c.channel.Send(ctx, content); err != nil {
			if c.logger != nil {
				c.logger.Printf("runway alert send failed for %s: %v", stream.ID, err)
			}
			continue
		}
		metrics.IncRunwayAlert(state.Health)
		c.markSent(stream.ID, state.Health, now)
	}
	return nil
}

func (c *Checker) shouldSend(streamID, health string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.sent[streamID]
	if !ok {
		return true
	}
	if record.health != health {
		return true
	}
	return now.Sub(record.at) >= c.cooldown
}

func (c *Checker) markSent(streamID, health string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[streamID] = sentRecord{health: health, at: now}
}

func (c *Checker) clear(streamID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sent, streamID)
}
