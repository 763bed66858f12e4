package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/percoguru/kvstore/internal/storage/snapshot"
	"github.com/percoguru/kvstore/internal/storage/wal"
	"github.com/percoguru/kvstore/internal/telemetry/metric"
	"github.com/percoguru/kvstore/internal/telemetry/tracer"
	"github.com/percoguru/kvstore/pkg/crypto/adaptive"
)

// Default file names inside the data directory.
const (
	DefaultSnapshotFile = "kvstore.snap"
	DefaultWALFile      = "kvstore.wal"
)

// Config configures the storage engine.
type Config struct {
	// DataDir is the base directory for the WAL and snapshot files. It may
	// be empty when both paths are set explicitly.
	DataDir string

	// WAL configuration. Path defaults to DataDir/kvstore.wal.
	WAL wal.Config

	// Snapshot configuration. Path defaults to DataDir/kvstore.snap.
	Snapshot snapshot.Config

	// Compaction configures automatic compaction.
	Compaction CompactionConfig

	// Cipher, when set, encrypts both files with the same key. Set
	// WAL.Cipher and Snapshot.Cipher instead to use a key per file.
	Cipher adaptive.Cipher

	// Logger is the structured logger.
	Logger *slog.Logger

	// Metrics receives operation and storage metrics. A private registry
	// is created when nil.
	Metrics *metric.Registry

	// Tracer opens the engine spans. Defaults to the global provider.
	Tracer trace.Tracer
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:    dataDir,
		WAL:        wal.DefaultConfig(filepath.Join(dataDir, DefaultWALFile)),
		Snapshot:   snapshot.DefaultConfig(filepath.Join(dataDir, DefaultSnapshotFile)),
		Compaction: DefaultCompactionConfig(),
		Logger:     slog.Default(),
	}
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	Keys             int            `json:"keys" yaml:"keys"`
	WALPath          string         `json:"wal_path" yaml:"wal_path"`
	WALBytes         int64          `json:"wal_bytes" yaml:"wal_bytes"`
	WALRecords       int            `json:"wal_records" yaml:"wal_records"`
	WALSyncMode      wal.SyncMode   `json:"wal_sync_mode" yaml:"wal_sync_mode"`
	SnapshotPath     string         `json:"snapshot_path" yaml:"snapshot_path"`
	Snapshot         *snapshot.Info `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
	SnapshotFallback bool           `json:"snapshot_fallback" yaml:"snapshot_fallback"`
	Compactions      uint64         `json:"compactions" yaml:"compactions"`
	LastCompaction   time.Time      `json:"last_compaction,omitempty" yaml:"last_compaction,omitempty"`
	Encrypted        bool           `json:"encrypted" yaml:"encrypted"`
}

// Engine is the durable key-value store.
type Engine struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metric.Registry
	tracer  trace.Tracer

	// mu guards data, the order of WAL appends and the fields below.
	mu       sync.RWMutex
	data     map[string]string
	wal      *wal.Log
	snapshot *snapshot.Manager
	closed   bool

	lastSnapshot     *snapshot.Info
	lastCompaction   time.Time
	compactions      uint64
	snapshotFallback bool

	poisoned atomic.Bool

	compactor *compactor
}

// Open recovers the store from its files and returns it ready for use.
//
// Recovery loads the snapshot and replays the WAL over it. A corrupt
// snapshot is discarded with a warning; any WAL decode failure, unreadable
// snapshot or wrong encryption key fails Open.
func Open(cfg Config) (*Engine, error) {
	if cfg.WAL.Path == "" || cfg.Snapshot.Path == "" {
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("storage: data_dir is required")
		}
		if cfg.WAL.Path == "" {
			cfg.WAL.Path = filepath.Join(cfg.DataDir, DefaultWALFile)
		}
		if cfg.Snapshot.Path == "" {
			cfg.Snapshot.Path = filepath.Join(cfg.DataDir, DefaultSnapshotFile)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metric.NewRegistry()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = tracer.Global()
	}
	if err := cfg.Compaction.validate(); err != nil {
		return nil, err
	}

	if cfg.Cipher != nil {
		cfg.WAL.Cipher = cfg.Cipher
		cfg.Snapshot.Cipher = cfg.Cipher
	}
	cfg.WAL.Logger = cfg.Logger
	if cfg.WAL.SyncMode == "" {
		cfg.WAL.SyncMode = wal.SyncModeSync
	}

	snapMgr, err := snapshot.NewManager(cfg.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("storage: create snapshot manager: %w", err)
	}

	walLog, err := wal.Open(cfg.WAL)
	if err != nil {
		return nil, fmt.Errorf("storage: open wal: %w", err)
	}

	e := &Engine{
		cfg:      cfg,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
		wal:      walLog,
		snapshot: snapMgr,
	}

	if err := e.recover(context.Background()); err != nil {
		walLog.Close()
		return nil, err
	}

	if cfg.Compaction.enabled() {
		e.compactor = newCompactor(e, cfg.Compaction)
		e.compactor.start()
	}
	return e, nil
}

// recover loads the snapshot and replays the WAL.
func (e *Engine) recover(ctx context.Context) (err error) {
	startTime := time.Now()
	ctx, span := e.tracer.Start(ctx, "storage.Recover")
	defer func() { tracer.End(span, err) }()

	e.logger.InfoContext(ctx, "storage recovery started",
		"snapshot", e.cfg.Snapshot.Path,
		"wal", e.cfg.WAL.Path)

	data, info, err := e.snapshot.Load()
	switch {
	case err == nil:
		e.lastSnapshot = info
		e.metrics.SnapshotBytes.Set(float64(info.Size))
		e.logger.InfoContext(ctx, "snapshot loaded",
			"id", info.ID,
			"key_count", info.KeyCount,
			"size_bytes", info.Size,
			"elapsed", time.Since(startTime))
	case errors.Is(err, snapshot.ErrNoSnapshot):
		e.logger.InfoContext(ctx, "no snapshot found, starting with empty store")
	case snapshot.IsCorrupted(err):
		// The compacted state is gone; the WAL still holds what came after it.
		e.logger.WarnContext(ctx, "snapshot is corrupt, discarding it and starting from an empty map",
			"path", e.cfg.Snapshot.Path,
			"error", err)
		e.metrics.SnapshotFallbacks.Inc()
		e.snapshotFallback = true
		data = make(map[string]string)
	default:
		return fmt.Errorf("storage: load snapshot: %w", err)
	}

	replayStart := time.Now()
	recs, err := e.wal.Replay()
	if err != nil {
		return fmt.Errorf("storage: replay wal: %w", err)
	}
	for _, rec := range recs {
		rec.Apply(data)
	}
	if len(recs) > 0 {
		e.logger.InfoContext(ctx, "wal replayed",
			"records_applied", len(recs),
			"elapsed", time.Since(replayStart))
	}

	e.data = data
	e.metrics.SetStorage(len(e.data), e.wal.Size(), e.wal.Records())

	span.SetAttributes(
		attribute.Int("kv.keys", len(e.data)),
		attribute.Int("kv.wal_records", len(recs)))
	e.logger.InfoContext(ctx, "recovery completed",
		"elapsed", time.Since(startTime),
		"key_count", len(e.data))
	return nil
}

// Set stores value under key. The record is durably appended to the WAL
// before the new value becomes visible. Keys and values must be valid UTF-8;
// anything else fails with ErrSerialization and nothing is written.
func (e *Engine) Set(ctx context.Context, key, value string) (err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "storage.Set", trace.WithAttributes(attribute.String("kv.key", key)))
	defer func() { e.finish(span, "set", start, err) }()

	if err = checkText("key", key); err != nil {
		return err
	}
	if err = checkText("value", value); err != nil {
		return err
	}

	err = e.mutate(func() error {
		if err := e.wal.Append(wal.NewSetRecord(key, value)); err != nil {
			return err
		}
		e.data[key] = value
		return nil
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "set failed", "key", key, "error", err)
		return err
	}
	e.maybeCompact()
	return nil
}

// Get returns the value stored under key. It never touches the WAL.
//
// Get panics with ErrLockPoisoned once a writer has panicked inside the
// store: the map may be half updated and no answer can be trusted.
func (e *Engine) Get(ctx context.Context, key string) (string, bool) {
	start := time.Now()

	e.mu.RLock()
	if e.poisoned.Load() {
		e.mu.RUnlock()
		panic(ErrLockPoisoned)
	}
	value, ok := e.data[key]
	e.mu.RUnlock()

	result := metric.ResultOK
	if !ok {
		result = metric.ResultNotFound
	}
	e.metrics.ObserveOperation("get", result, time.Since(start))
	return value, ok
}

// Remove deletes key. The removal is appended to the WAL even when the key
// is absent, in which case ErrKeyNotFound is returned after the append. A
// key that is not valid UTF-8 fails with ErrSerialization before the append.
func (e *Engine) Remove(ctx context.Context, key string) (err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "storage.Remove", trace.WithAttributes(attribute.String("kv.key", key)))
	defer func() { e.finish(span, "remove", start, err) }()

	if err = checkText("key", key); err != nil {
		return err
	}

	err = e.mutate(func() error {
		if err := e.wal.Append(wal.NewRemoveRecord(key)); err != nil {
			return err
		}
		if _, ok := e.data[key]; !ok {
			return ErrKeyNotFound.WithDetails("key %q", key)
		}
		delete(e.data, key)
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			e.logger.ErrorContext(ctx, "remove failed", "key", key, "error", err)
		}
		return err
	}
	e.maybeCompact()
	return nil
}

// Compact writes the whole map as the new snapshot and empties the WAL.
// All other operations wait until it finishes. If the snapshot cannot be
// written the WAL is left untouched.
func (e *Engine) Compact(ctx context.Context) error {
	return e.compact(ctx, metric.TriggerManual)
}

func (e *Engine) compact(ctx context.Context, trigger string) (err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "storage.Compact", trace.WithAttributes(attribute.String("kv.trigger", trigger)))
	defer func() {
		e.metrics.RecordCompaction(trigger, err)
		e.finish(span, "compact", start, err)
	}()

	var info *snapshot.Info
	err = e.mutate(func() error {
		var serr error
		info, serr = e.snapshot.Store(e.data)
		if serr != nil {
			return fmt.Errorf("storage: write snapshot: %w", serr)
		}
		e.lastSnapshot = info
		e.metrics.SnapshotBytes.Set(float64(info.Size))

		// The new snapshot already includes every WAL record, so replaying
		// them again after a failed truncate is harmless.
		if terr := e.wal.Truncate(); terr != nil {
			return fmt.Errorf("storage: truncate wal: %w", terr)
		}
		e.lastCompaction = time.Now()
		e.compactions++
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrClosed) {
			e.logger.ErrorContext(ctx, "compaction failed", "trigger", trigger, "error", err)
		}
		return err
	}

	e.logger.InfoContext(ctx, "snapshot created",
		"id", info.ID,
		"key_count", info.KeyCount,
		"size_bytes", info.Size,
		"compression", info.Compression,
		"trigger", trigger,
		"elapsed", time.Since(start))
	return nil
}

// mutate runs fn under the write lock. A panic in fn poisons the engine.
func (e *Engine) mutate(fn func() error) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.poisoned.Load() {
		return ErrLockPoisoned
	}
	if e.closed {
		return ErrClosed
	}

	defer func() {
		if r := recover(); r != nil {
			e.poisoned.Store(true)
			e.logger.Error("panic inside write section, store is poisoned", "panic", r)
			err = ErrLockPoisoned.WithDetails("%v", r)
		}
	}()

	err = fn()
	e.metrics.SetStorage(len(e.data), e.wal.Size(), e.wal.Records())
	return err
}

func (e *Engine) finish(span trace.Span, op string, start time.Time, err error) {
	result := metric.ResultOK
	spanErr := err
	switch {
	case errors.Is(err, ErrKeyNotFound):
		result = metric.ResultNotFound
		spanErr = nil
	case err != nil:
		result = metric.ResultError
	}
	e.metrics.ObserveOperation(op, result, time.Since(start))
	tracer.End(span, spanErr)
}

// maybeCompact wakes the compactor when the WAL has outgrown its limit.
func (e *Engine) maybeCompact() {
	if e.compactor == nil || e.cfg.Compaction.WALMaxBytes <= 0 {
		return
	}
	if e.wal.Size() >= e.cfg.Compaction.WALMaxBytes {
		e.compactor.notify()
	}
}

// Len returns the number of keys.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.data)
}

// Stats returns a point-in-time view of the engine.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Stats{
		Keys:             len(e.data),
		WALPath:          e.wal.Path(),
		WALBytes:         e.wal.Size(),
		WALRecords:       e.wal.Records(),
		WALSyncMode:      e.cfg.WAL.SyncMode,
		SnapshotPath:     e.snapshot.Path(),
		Snapshot:         e.lastSnapshot,
		SnapshotFallback: e.snapshotFallback,
		Compactions:      e.compactions,
		LastCompaction:   e.lastCompaction,
		Encrypted:        e.cfg.WAL.Cipher != nil || e.cfg.Snapshot.Cipher != nil,
	}
}

// Metrics returns the registry the engine reports to.
func (e *Engine) Metrics() *metric.Registry {
	return e.metrics
}

// Close stops automatic compaction, then syncs and closes the WAL. Later
// writes return ErrClosed. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.logger.Info("shutting down storage engine")

	if e.compactor != nil {
		e.compactor.stop()
	}

	if err := e.wal.Close(); err != nil {
		e.logger.Error("close wal failed", "error", err)
		return fmt.Errorf("storage: close wal: %w", err)
	}

	e.logger.Info("storage engine shutdown complete")
	return nil
}
