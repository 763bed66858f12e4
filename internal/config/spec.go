package config

import "time"

// Config is the root configuration for kvstore.
type Config struct {
	Storage    StorageSection    `koanf:"storage" json:"storage" yaml:"storage"`
	Compaction CompactionSection `koanf:"compaction" json:"compaction" yaml:"compaction"`
	Security   SecuritySection   `koanf:"security" json:"security" yaml:"security"`
	Log        LogSection        `koanf:"log" json:"log" yaml:"log"`
}

// StorageSection configures the WAL and snapshot files.
type StorageSection struct {
	DataDir      string `koanf:"data_dir" json:"data_dir" yaml:"data_dir"`
	SnapshotFile string `koanf:"snapshot_file" json:"snapshot_file" yaml:"snapshot_file"`
	WALFile      string `koanf:"wal_file" json:"wal_file" yaml:"wal_file"`

	// WALSyncMode is "sync" (fsync per append) or "batch" (fsync every
	// WALSyncInterval).
	WALSyncMode     string        `koanf:"wal_sync_mode" json:"wal_sync_mode" yaml:"wal_sync_mode"`
	WALSyncInterval time.Duration `koanf:"wal_sync_interval" json:"wal_sync_interval" yaml:"wal_sync_interval"`

	SnapshotCompression string `koanf:"snapshot_compression" json:"snapshot_compression" yaml:"snapshot_compression"`
}

// CompactionSection configures automatic compaction. Zero values disable
// the corresponding trigger.
type CompactionSection struct {
	Interval    time.Duration `koanf:"interval" json:"interval" yaml:"interval"`
	WALMaxBytes int64         `koanf:"wal_max_bytes" json:"wal_max_bytes" yaml:"wal_max_bytes"`
	MinGap      time.Duration `koanf:"min_gap" json:"min_gap" yaml:"min_gap"`
}

// SecuritySection configures at-rest encryption.
type SecuritySection struct {
	// EncryptionKey is a hex encoded 16, 24 or 32 byte master key. Empty
	// disables encryption.
	EncryptionKey string `koanf:"encryption_key" json:"encryption_key" yaml:"encryption_key"`
	Cipher        string `koanf:"cipher" json:"cipher" yaml:"cipher"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}
