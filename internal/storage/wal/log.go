package wal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/percoguru/kvstore/internal/core/domain"
	"github.com/percoguru/kvstore/pkg/crypto/adaptive"
)

// File permissions.
const (
	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750
)

// DefaultSyncInterval is the fsync period in batch mode.
const DefaultSyncInterval = 100 * time.Millisecond

// SyncMode defines when appended records reach stable storage.
type SyncMode string

const (
	// SyncModeSync fsyncs every append before it returns.
	SyncModeSync SyncMode = "sync"
	// SyncModeBatch fsyncs on a timer. A crash can lose the records
	// appended since the last tick.
	SyncModeBatch SyncMode = "batch"
)

// Config configures the log.
type Config struct {
	Path string

	SyncMode     SyncMode
	SyncInterval time.Duration

	Cipher adaptive.Cipher
	Logger *slog.Logger
}

// DefaultConfig returns the default log configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:         path,
		SyncMode:     SyncModeSync,
		SyncInterval: DefaultSyncInterval,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.SyncMode == "" {
		cfg.SyncMode = SyncModeSync
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// Log is an append-only record file.
//
// Methods are safe for concurrent use. Callers that need the log order to
// match some other state, like the store map, must serialize around Append
// themselves.
type Log struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	file    *os.File
	size    int64
	records int
	dirty   bool
	closed  bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Open opens the log at cfg.Path, creating it and its directory if needed.
// Call Replay before the first Append to validate existing content.
func Open(cfg Config) (*Log, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("wal: path is required")
	}
	switch cfg.SyncMode {
	case "", SyncModeSync, SyncModeBatch:
	default:
		return nil, fmt.Errorf("wal: unknown sync mode %q", cfg.SyncMode)
	}
	applyDefaults(&cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.Path), DefaultDirPerm); err != nil {
		return nil, domain.IOError("create wal dir", err)
	}

	l := &Log{
		cfg:    cfg,
		logger: cfg.Logger,
		stopCh: make(chan struct{}),
	}
	if err := l.reopenLocked(); err != nil {
		return nil, err
	}

	if cfg.SyncMode == SyncModeBatch {
		l.startSyncLoop()
	}
	return l, nil
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.cfg.Path
}

// Size returns the number of bytes in the log.
func (l *Log) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Records returns the number of records in the log.
func (l *Log) Records() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records
}

// Append writes rec as one line and, in sync mode, fsyncs it. On error
// the file is cut back so the failed record is not left behind.
func (l *Log) Append(rec *Record) error {
	line, err := encodeLine(rec, l.cfg.Cipher)
	if err != nil {
		return domain.SerializationError("encode wal record", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return domain.ErrClosed.Wrap(ErrClosed)
	}
	if l.file == nil {
		if err := l.reopenLocked(); err != nil {
			return err
		}
	}

	n, err := l.file.Write(line)
	if err != nil {
		if n > 0 {
			l.rollbackLocked()
		}
		return domain.IOError("append wal record", err)
	}

	if l.cfg.SyncMode == SyncModeSync {
		if err := l.file.Sync(); err != nil {
			l.rollbackLocked()
			return domain.IOError("sync wal", err)
		}
	} else {
		l.dirty = true
	}

	l.size += int64(n)
	l.records++
	return nil
}

// rollbackLocked cuts the file back to the last acknowledged record.
func (l *Log) rollbackLocked() {
	if err := l.file.Truncate(l.size); err != nil {
		l.logger.Error("wal rollback failed", "path", l.cfg.Path, "size", l.size, "error", err)
	}
}

// Replay reads every record in append order. A missing file yields no
// records. An incomplete final line is dropped, logged and cut from the
// file; any other undecodable line fails the replay.
func (l *Log) Replay() ([]*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.IOError("open wal for replay", err)
	}
	defer f.Close()

	rd := NewReader(f, l.cfg.Cipher)
	recs, err := rd.ReadAll()
	if err != nil {
		switch {
		case errors.Is(err, ErrTornRecord):
			l.logger.Warn("wal has an incomplete final record, dropping it",
				"path", l.cfg.Path,
				"valid_bytes", rd.Offset(),
				"error", err)
			if l.file != nil && !l.closed {
				if err := l.file.Truncate(rd.Offset()); err != nil {
					return nil, domain.IOError("repair wal tail", err)
				}
				if err := l.file.Sync(); err != nil {
					return nil, domain.IOError("sync wal", err)
				}
			}
		case isDecodeError(err):
			return nil, domain.SerializationError("replay wal", err)
		default:
			return nil, domain.IOError("read wal", err)
		}
	}

	l.size = rd.Offset()
	l.records = len(recs)
	return recs, nil
}

func isDecodeError(err error) bool {
	return errors.Is(err, ErrCorruptedRecord) ||
		errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrInvalidOp) ||
		errors.Is(err, ErrDecrypt)
}

// Truncate atomically replaces the log with an empty file.
func (l *Log) Truncate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return domain.ErrClosed.Wrap(ErrClosed)
	}

	dir := filepath.Dir(l.cfg.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(l.cfg.Path)+".*.tmp")
	if err != nil {
		return domain.IOError("create empty wal", err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(DefaultFilePerm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return domain.IOError("chmod empty wal", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return domain.IOError("sync empty wal", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return domain.IOError("close empty wal", err)
	}
	if err := os.Rename(tmpPath, l.cfg.Path); err != nil {
		os.Remove(tmpPath)
		return domain.IOError("rename empty wal", err)
	}
	// From here on the path names the empty file. The old handle points at
	// an unlinked inode and must be swapped even if the dir sync fails.
	dirErr := syncDir(dir)

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	l.size = 0
	l.records = 0
	l.dirty = false

	if err := l.reopenLocked(); err != nil {
		return err
	}
	if dirErr != nil {
		return domain.IOError("sync wal dir", dirErr)
	}
	return nil
}

// Sync flushes appended records to stable storage.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.syncLocked()
}

func (l *Log) syncLocked() error {
	if l.file == nil || !l.dirty {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return domain.IOError("sync wal", err)
	}
	l.dirty = false
	return nil
}

// Close syncs and closes the log. It is safe to call more than once.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.stopCh)
	l.mu.Unlock()

	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	syncErr := l.syncLocked()
	closeErr := l.file.Close()
	l.file = nil
	if syncErr != nil {
		return syncErr
	}
	if closeErr != nil {
		return domain.IOError("close wal", closeErr)
	}
	return nil
}

func (l *Log) reopenLocked() error {
	f, err := os.OpenFile(l.cfg.Path, os.O_CREATE|os.O_RDWR|os.O_APPEND, DefaultFilePerm)
	if err != nil {
		return domain.IOError("open wal", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return domain.IOError("stat wal", err)
	}
	l.file = f
	l.size = stat.Size()
	return nil
}

func (l *Log) startSyncLoop() {
	ticker := time.NewTicker(l.cfg.SyncInterval)
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := l.Sync(); err != nil {
					l.logger.Error("wal background sync failed", "error", err)
				}
			case <-l.stopCh:
				return
			}
		}
	}()
}

// syncDir fsyncs a directory so a rename inside it is durable.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
