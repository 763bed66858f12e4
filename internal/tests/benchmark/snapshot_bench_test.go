package benchmark

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/percoguru/kvstore/internal/storage/snapshot"
)

var compressions = []snapshot.Compression{
	snapshot.CompressionNone,
	snapshot.CompressionSnappy,
	snapshot.CompressionZstd,
	snapshot.CompressionLZ4,
}

func newManager(b *testing.B, c snapshot.Compression) *snapshot.Manager {
	b.Helper()
	m, err := snapshot.NewManager(snapshot.Config{
		Path:        filepath.Join(b.TempDir(), "bench.snap"),
		Compression: c,
	})
	if err != nil {
		b.Fatalf("NewManager: %v", err)
	}
	return m
}

// BenchmarkSnapshotStore benchmarks writing a snapshot per codec.
func BenchmarkSnapshotStore(b *testing.B) {
	data := sampleMap(10000, 64)
	for _, c := range compressions {
		b.Run(string(c), func(b *testing.B) {
			m := newManager(b, c)

			b.ResetTimer()
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				info, err := m.Store(data)
				if err != nil {
					b.Fatalf("Store failed: %v", err)
				}
				b.ReportMetric(float64(info.Size), "bytes/snapshot")
			}
		})
	}
}

// BenchmarkSnapshotLoad benchmarks reading a snapshot per codec and size.
func BenchmarkSnapshotLoad(b *testing.B) {
	for _, c := range compressions {
		for _, count := range SmallKeyCounts {
			b.Run(fmt.Sprintf("%s/keys_%d", c, count), func(b *testing.B) {
				m := newManager(b, c)
				if _, err := m.Store(sampleMap(count, 64)); err != nil {
					b.Fatalf("Store failed: %v", err)
				}

				b.ResetTimer()
				b.ReportAllocs()

				for i := 0; i < b.N; i++ {
					data, _, err := m.Load()
					if err != nil {
						b.Fatalf("Load failed: %v", err)
					}
					if len(data) != count {
						b.Fatalf("Load returned %d keys, want %d", len(data), count)
					}
				}
			})
		}
	}
}
