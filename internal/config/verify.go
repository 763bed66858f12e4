package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/percoguru/kvstore/internal/storage/snapshot"
	"github.com/percoguru/kvstore/internal/storage/wal"
	"github.com/percoguru/kvstore/internal/telemetry/logger"
	"github.com/percoguru/kvstore/pkg/crypto/adaptive"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyCompaction(&cfg.Compaction); err != nil {
		return err
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyStorage(cfg *StorageSection) error {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("storage.data_dir is required")
	}
	if cfg.SnapshotFile == "" {
		return errors.New("storage.snapshot_file is required")
	}
	if cfg.WALFile == "" {
		return errors.New("storage.wal_file is required")
	}
	if cfg.SnapshotFile == cfg.WALFile {
		return errors.New("storage.snapshot_file and storage.wal_file must differ")
	}

	switch wal.SyncMode(cfg.WALSyncMode) {
	case wal.SyncModeSync, wal.SyncModeBatch:
	default:
		return fmt.Errorf("storage.wal_sync_mode %q must be sync or batch", cfg.WALSyncMode)
	}
	if cfg.WALSyncInterval < 0 {
		return errors.New("storage.wal_sync_interval must not be negative")
	}
	if wal.SyncMode(cfg.WALSyncMode) == wal.SyncModeBatch && cfg.WALSyncInterval == 0 {
		return errors.New("storage.wal_sync_interval is required in batch mode")
	}

	if _, err := snapshot.ParseCompression(cfg.SnapshotCompression); err != nil {
		return fmt.Errorf("storage.snapshot_compression: %w", err)
	}
	return nil
}

func verifyCompaction(cfg *CompactionSection) error {
	if cfg.Interval < 0 {
		return errors.New("compaction.interval must not be negative")
	}
	if cfg.WALMaxBytes < 0 {
		return errors.New("compaction.wal_max_bytes must not be negative")
	}
	if cfg.MinGap < 0 {
		return errors.New("compaction.min_gap must not be negative")
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	switch adaptive.CipherType(cfg.Cipher) {
	case "", adaptive.CipherAuto, adaptive.CipherAESGCM, adaptive.CipherChaCha20:
	default:
		return fmt.Errorf("security.cipher %q must be auto, aes-gcm or chacha20-poly1305", cfg.Cipher)
	}
	if cfg.EncryptionKey == "" {
		return nil
	}
	if _, err := adaptive.ParseKey(cfg.EncryptionKey); err != nil {
		return fmt.Errorf("security.encryption_key: %w", err)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level %q must be debug, info, warn or error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("log.format %q must be json or text", cfg.Format)
	}
}
