package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/percoguru/kvstore/internal/telemetry/metric"
)

// DefaultCompactionMinGap is the default minimum spacing between automatic
// compactions.
const DefaultCompactionMinGap = 10 * time.Second

// CompactionConfig configures automatic compaction. Both triggers are off
// when their value is zero; Compact can always be called directly.
type CompactionConfig struct {
	// Interval compacts on a fixed period.
	Interval time.Duration

	// WALMaxBytes compacts once the WAL grows past this size.
	WALMaxBytes int64

	// MinGap is the minimum time between two size-triggered compactions.
	MinGap time.Duration
}

// DefaultCompactionConfig returns automatic compaction disabled.
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{MinGap: DefaultCompactionMinGap}
}

func (c CompactionConfig) enabled() bool {
	return c.Interval > 0 || c.WALMaxBytes > 0
}

func (c CompactionConfig) validate() error {
	if c.Interval < 0 {
		return fmt.Errorf("storage: compaction interval must not be negative")
	}
	if c.WALMaxBytes < 0 {
		return fmt.Errorf("storage: compaction wal_max_bytes must not be negative")
	}
	if c.MinGap < 0 {
		return fmt.Errorf("storage: compaction min_gap must not be negative")
	}
	return nil
}

// compactor runs automatic compactions in the background.
type compactor struct {
	engine  *Engine
	cfg     CompactionConfig
	limiter *rate.Limiter

	notifyCh chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func newCompactor(e *Engine, cfg CompactionConfig) *compactor {
	limit := rate.Inf
	if cfg.MinGap > 0 {
		limit = rate.Every(cfg.MinGap)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &compactor{
		engine:   e,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		notifyCh: make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *compactor) start() {
	c.wg.Add(1)
	go c.loop()
}

// notify asks for a size-triggered compaction. It never blocks.
func (c *compactor) notify() {
	select {
	case c.notifyCh <- struct{}{}:
	default:
	}
}

func (c *compactor) stop() {
	c.cancel()
	c.wg.Wait()
}

func (c *compactor) loop() {
	defer c.wg.Done()

	var tick <-chan time.Time
	if c.cfg.Interval > 0 {
		ticker := time.NewTicker(c.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			c.run(metric.TriggerInterval)

		case <-c.notifyCh:
			if err := c.limiter.Wait(c.ctx); err != nil {
				return
			}
			// An interval run may have emptied the WAL while we waited.
			if c.engine.wal.Size() < c.cfg.WALMaxBytes {
				continue
			}
			c.run(metric.TriggerWALSize)

		case <-c.ctx.Done():
			return
		}
	}
}

// run compacts once. Failures are logged by compact and retried on the
// next trigger.
func (c *compactor) run(trigger string) {
	c.engine.compact(c.ctx, trigger)
}
