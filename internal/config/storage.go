package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/percoguru/kvstore/internal/storage"
	"github.com/percoguru/kvstore/internal/storage/snapshot"
	"github.com/percoguru/kvstore/internal/storage/wal"
	"github.com/percoguru/kvstore/internal/telemetry/metric"
	"github.com/percoguru/kvstore/pkg/crypto/adaptive"
)

// Key derivation purposes. Each file gets its own subkey of the master key.
const (
	PurposeWAL      = "kvstore/wal"
	PurposeSnapshot = "kvstore/snapshot"
)

// StorageConfig translates a verified configuration into an engine
// configuration. Relative file names are resolved against the data dir.
func (c *Config) StorageConfig(log *slog.Logger, metrics *metric.Registry) (storage.Config, error) {
	compression, err := snapshot.ParseCompression(c.Storage.SnapshotCompression)
	if err != nil {
		return storage.Config{}, err
	}

	cfg := storage.DefaultConfig(c.Storage.DataDir)
	cfg.WAL.Path = c.resolve(c.Storage.WALFile)
	cfg.WAL.SyncMode = wal.SyncMode(c.Storage.WALSyncMode)
	cfg.WAL.SyncInterval = c.Storage.WALSyncInterval
	cfg.Snapshot.Path = c.resolve(c.Storage.SnapshotFile)
	cfg.Snapshot.Compression = compression
	cfg.Compaction = storage.CompactionConfig{
		Interval:    c.Compaction.Interval,
		WALMaxBytes: c.Compaction.WALMaxBytes,
		MinGap:      c.Compaction.MinGap,
	}
	cfg.Metrics = metrics
	if log != nil {
		cfg.Logger = log
	}

	if c.Security.EncryptionKey != "" {
		master, err := adaptive.ParseKey(c.Security.EncryptionKey)
		if err != nil {
			return storage.Config{}, fmt.Errorf("security.encryption_key: %w", err)
		}
		cipherType := adaptive.CipherType(c.Security.Cipher)
		if cipherType == "" {
			cipherType = adaptive.CipherAuto
		}
		if cfg.WAL.Cipher, err = adaptive.NewForPurpose(master, PurposeWAL, cipherType); err != nil {
			return storage.Config{}, fmt.Errorf("wal cipher: %w", err)
		}
		if cfg.Snapshot.Cipher, err = adaptive.NewForPurpose(master, PurposeSnapshot, cipherType); err != nil {
			return storage.Config{}, fmt.Errorf("snapshot cipher: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Storage.DataDir, name)
}
