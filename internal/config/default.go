package config

import (
	"github.com/percoguru/kvstore/internal/storage"
	"github.com/percoguru/kvstore/internal/storage/snapshot"
	"github.com/percoguru/kvstore/internal/storage/wal"
	"github.com/percoguru/kvstore/pkg/crypto/adaptive"
)

// Default configuration values.
const (
	DefaultDataDir             = "./data"
	DefaultSnapshotFile        = storage.DefaultSnapshotFile
	DefaultWALFile             = storage.DefaultWALFile
	DefaultWALSyncMode         = string(wal.SyncModeSync)
	DefaultWALSyncInterval     = wal.DefaultSyncInterval
	DefaultSnapshotCompression = string(snapshot.CompressionNone)

	DefaultCompactionMinGap = storage.DefaultCompactionMinGap

	DefaultCipher = string(adaptive.CipherAuto)

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
)

// Default returns the default configuration. Automatic compaction is off.
func Default() *Config {
	return &Config{
		Storage: StorageSection{
			DataDir:             DefaultDataDir,
			SnapshotFile:        DefaultSnapshotFile,
			WALFile:             DefaultWALFile,
			WALSyncMode:         DefaultWALSyncMode,
			WALSyncInterval:     DefaultWALSyncInterval,
			SnapshotCompression: DefaultSnapshotCompression,
		},
		Compaction: CompactionSection{
			Interval:    0,
			WALMaxBytes: 0,
			MinGap:      DefaultCompactionMinGap,
		},
		Security: SecuritySection{
			Cipher: DefaultCipher,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
