package benchmark

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/percoguru/kvstore/internal/storage"
	"github.com/percoguru/kvstore/internal/storage/wal"
	"github.com/percoguru/kvstore/pkg/crypto/adaptive"
)

// KeyCounts defines the store sizes for benchmarking.
var KeyCounts = []int{1000, 10000, 100000}

// SmallKeyCounts for quick benchmarks.
var SmallKeyCounts = []int{1000, 10000}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func benchKey(i int) string {
	return fmt.Sprintf("key-%08d", i)
}

func benchValue(size int) string {
	return strings.Repeat("v", size)
}

// sampleMap builds count pairs with values of valueSize bytes.
func sampleMap(count, valueSize int) map[string]string {
	m := make(map[string]string, count)
	v := benchValue(valueSize)
	for i := 0; i < count; i++ {
		m[benchKey(i)] = v
	}
	return m
}

func benchCipher(b *testing.B) adaptive.Cipher {
	b.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	c, err := adaptive.New(key)
	if err != nil {
		b.Fatalf("adaptive.New: %v", err)
	}
	return c
}

// openEngine opens an engine in a temp dir. Batch sync keeps the disk out
// of the numbers unless a benchmark asks for sync mode.
func openEngine(b *testing.B, mode wal.SyncMode) *storage.Engine {
	b.Helper()
	cfg := storage.DefaultConfig(b.TempDir())
	cfg.WAL.SyncMode = mode
	cfg.Logger = discard
	e, err := storage.Open(cfg)
	if err != nil {
		b.Fatalf("Open: %v", err)
	}
	b.Cleanup(func() { e.Close() })
	return e
}
