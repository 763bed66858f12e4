package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/percoguru/kvstore/internal/infra/confloader"
	"github.com/percoguru/kvstore/internal/storage/snapshot"
	"github.com/percoguru/kvstore/internal/storage/wal"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Storage.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.Storage.DataDir, DefaultDataDir)
	}
	if cfg.Storage.WALSyncMode != DefaultWALSyncMode {
		t.Errorf("WALSyncMode = %q, want %q", cfg.Storage.WALSyncMode, DefaultWALSyncMode)
	}
	if cfg.Storage.WALSyncInterval != DefaultWALSyncInterval {
		t.Errorf("WALSyncInterval = %v, want %v", cfg.Storage.WALSyncInterval, DefaultWALSyncInterval)
	}
	if cfg.Compaction.Interval != 0 || cfg.Compaction.WALMaxBytes != 0 {
		t.Errorf("automatic compaction should be off by default: %+v", cfg.Compaction)
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify(Default()) error = %v", err)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "batch mode", modify: func(c *Config) { c.Storage.WALSyncMode = "batch" }},
		{name: "encrypted", modify: func(c *Config) { c.Security.EncryptionKey = testKey; c.Security.Cipher = "chacha20-poly1305" }},
		{name: "empty data dir", modify: func(c *Config) { c.Storage.DataDir = " " }, wantErr: "storage.data_dir"},
		{name: "empty wal file", modify: func(c *Config) { c.Storage.WALFile = "" }, wantErr: "storage.wal_file"},
		{name: "same file names", modify: func(c *Config) { c.Storage.WALFile = c.Storage.SnapshotFile }, wantErr: "must differ"},
		{name: "unknown sync mode", modify: func(c *Config) { c.Storage.WALSyncMode = "never" }, wantErr: "storage.wal_sync_mode"},
		{name: "batch without interval", modify: func(c *Config) {
			c.Storage.WALSyncMode = "batch"
			c.Storage.WALSyncInterval = 0
		}, wantErr: "batch mode"},
		{name: "unknown compression", modify: func(c *Config) { c.Storage.SnapshotCompression = "gzip" }, wantErr: "storage.snapshot_compression"},
		{name: "negative interval", modify: func(c *Config) { c.Compaction.Interval = -time.Second }, wantErr: "compaction.interval"},
		{name: "negative wal size", modify: func(c *Config) { c.Compaction.WALMaxBytes = -1 }, wantErr: "compaction.wal_max_bytes"},
		{name: "negative min gap", modify: func(c *Config) { c.Compaction.MinGap = -1 }, wantErr: "compaction.min_gap"},
		{name: "unknown cipher", modify: func(c *Config) { c.Security.Cipher = "rot13" }, wantErr: "security.cipher"},
		{name: "key not hex", modify: func(c *Config) { c.Security.EncryptionKey = "not-hex" }, wantErr: "security.encryption_key"},
		{name: "key too short", modify: func(c *Config) { c.Security.EncryptionKey = "0011" }, wantErr: "security.encryption_key"},
		{name: "bad log level", modify: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "bad log format", modify: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := Verify(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Verify() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Verify() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Security.EncryptionKey = testKey

	sanitized := Sanitize(cfg)

	if cfg.Security.EncryptionKey != testKey {
		t.Error("original config should not be modified")
	}
	if sanitized.Security.EncryptionKey == testKey {
		t.Error("sanitized config should mask the encryption key")
	}
	if len(sanitized.Security.EncryptionKey) != len(testKey) {
		t.Errorf("masked key length = %d, want %d", len(sanitized.Security.EncryptionKey), len(testKey))
	}
	if !strings.HasPrefix(sanitized.Security.EncryptionKey, "00") || !strings.HasSuffix(sanitized.Security.EncryptionKey, "1f") {
		t.Errorf("masked key = %q", sanitized.Security.EncryptionKey)
	}
}

func TestSanitize_ShortAndEmpty(t *testing.T) {
	cfg := Default()
	if got := Sanitize(cfg).Security.EncryptionKey; got != "" {
		t.Errorf("empty key sanitized to %q", got)
	}
	cfg.Security.EncryptionKey = "abc"
	if got := Sanitize(cfg).Security.EncryptionKey; got != "****" {
		t.Errorf("short key sanitized to %q, want ****", got)
	}
}

func TestStorageConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Storage.DataDir = dir
	cfg.Storage.WALSyncMode = "batch"
	cfg.Storage.SnapshotCompression = "zstd"
	cfg.Compaction.Interval = time.Minute
	cfg.Compaction.WALMaxBytes = 1 << 20

	sc, err := cfg.StorageConfig(nil, nil)
	if err != nil {
		t.Fatalf("StorageConfig() error = %v", err)
	}
	if sc.WAL.Path != filepath.Join(dir, DefaultWALFile) {
		t.Errorf("WAL.Path = %q", sc.WAL.Path)
	}
	if sc.Snapshot.Path != filepath.Join(dir, DefaultSnapshotFile) {
		t.Errorf("Snapshot.Path = %q", sc.Snapshot.Path)
	}
	if sc.WAL.SyncMode != wal.SyncModeBatch {
		t.Errorf("WAL.SyncMode = %q", sc.WAL.SyncMode)
	}
	if sc.Snapshot.Compression != snapshot.CompressionZstd {
		t.Errorf("Snapshot.Compression = %q", sc.Snapshot.Compression)
	}
	if sc.Compaction.Interval != time.Minute || sc.Compaction.WALMaxBytes != 1<<20 {
		t.Errorf("Compaction = %+v", sc.Compaction)
	}
	if sc.WAL.Cipher != nil || sc.Snapshot.Cipher != nil {
		t.Error("ciphers should be nil without a key")
	}
	if sc.Logger == nil {
		t.Error("Logger should default to a non-nil logger")
	}
}

func TestStorageConfig_AbsolutePaths(t *testing.T) {
	cfg := Default()
	abs := filepath.Join(t.TempDir(), "elsewhere.wal")
	cfg.Storage.WALFile = abs

	sc, err := cfg.StorageConfig(nil, nil)
	if err != nil {
		t.Fatalf("StorageConfig() error = %v", err)
	}
	if sc.WAL.Path != abs {
		t.Errorf("WAL.Path = %q, want %q", sc.WAL.Path, abs)
	}
}

func TestStorageConfig_Encryption(t *testing.T) {
	cfg := Default()
	cfg.Security.EncryptionKey = testKey
	cfg.Security.Cipher = "aes-gcm"

	sc, err := cfg.StorageConfig(nil, nil)
	if err != nil {
		t.Fatalf("StorageConfig() error = %v", err)
	}
	if sc.WAL.Cipher == nil || sc.Snapshot.Cipher == nil {
		t.Fatal("both files should get a cipher")
	}

	// Subkeys differ per file, so the snapshot cipher cannot open WAL data.
	sealed, err := sc.WAL.Cipher.Encrypt([]byte("payload"), nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := sc.Snapshot.Cipher.Decrypt(sealed, nil); err == nil {
		t.Error("snapshot cipher decrypted data sealed with the wal cipher")
	}
	if got, err := sc.WAL.Cipher.Decrypt(sealed, nil); err != nil || string(got) != "payload" {
		t.Errorf("Decrypt = %q, %v", got, err)
	}
}

func TestStorageConfig_BadKey(t *testing.T) {
	cfg := Default()
	cfg.Security.EncryptionKey = "zz"
	if _, err := cfg.StorageConfig(nil, nil); err == nil {
		t.Error("StorageConfig() should fail on an invalid key")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kvstore.yaml")
	content := `
storage:
  data_dir: /var/lib/kvstore
  wal_sync_mode: batch
  wal_sync_interval: 250ms
compaction:
  interval: 5m
  wal_max_bytes: 1048576
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("KVSTORE_LOG_FORMAT", "json")

	loader := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithOverrides(map[string]any{"storage.data_dir": "/tmp/override"}),
	)
	cfg, err := Load(loader)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Storage.DataDir != "/tmp/override" {
		t.Errorf("DataDir = %q, override should win", cfg.Storage.DataDir)
	}
	if cfg.Storage.WALSyncMode != "batch" || cfg.Storage.WALSyncInterval != 250*time.Millisecond {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Compaction.Interval != 5*time.Minute || cfg.Compaction.WALMaxBytes != 1048576 {
		t.Errorf("Compaction = %+v", cfg.Compaction)
	}
	if cfg.Compaction.MinGap != DefaultCompactionMinGap {
		t.Errorf("MinGap = %v, default should be kept", cfg.Compaction.MinGap)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Storage.WALFile != DefaultWALFile {
		t.Errorf("WALFile = %q, default should be kept", cfg.Storage.WALFile)
	}
}

func TestLoad_Invalid(t *testing.T) {
	loader := confloader.NewLoader(
		confloader.WithOverrides(map[string]any{"storage.wal_sync_mode": "sometimes"}),
	)
	if _, err := Load(loader); err == nil {
		t.Fatal("Load() should reject an invalid sync mode")
	}
}
