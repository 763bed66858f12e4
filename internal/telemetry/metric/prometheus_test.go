package metric

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.registry == nil {
		t.Error("registry field is nil")
	}
	if r.Operations == nil || r.OperationDuration == nil {
		t.Error("operation metrics are nil")
	}
	if r.Keys == nil || r.WALBytes == nil || r.WALRecords == nil || r.SnapshotBytes == nil {
		t.Error("storage metrics are nil")
	}
	if r.Compactions == nil || r.SnapshotFallbacks == nil {
		t.Error("compaction metrics are nil")
	}
}

func TestRegistries_AreIndependent(t *testing.T) {
	r1 := NewRegistry()
	r2 := NewRegistry()

	r1.SnapshotFallbacks.Inc()

	if got := r1.Value("kvstore_snapshot_fallbacks_total"); got != 1 {
		t.Errorf("r1 fallbacks = %v, want 1", got)
	}
	if got := r2.Value("kvstore_snapshot_fallbacks_total"); got != 0 {
		t.Errorf("r2 fallbacks = %v, want 0", got)
	}
}

func TestObserveOperation(t *testing.T) {
	r := NewRegistry()

	r.ObserveOperation("set", ResultOK, time.Millisecond)
	r.ObserveOperation("set", ResultOK, 2*time.Millisecond)
	r.ObserveOperation("remove", ResultNotFound, time.Millisecond)

	if got := r.Value("kvstore_operations_total", "op", "set", "result", ResultOK); got != 2 {
		t.Errorf("set ok = %v, want 2", got)
	}
	if got := r.Value("kvstore_operations_total", "op", "remove", "result", ResultNotFound); got != 1 {
		t.Errorf("remove not_found = %v, want 1", got)
	}
	if got := r.Value("kvstore_operations_total"); got != 3 {
		t.Errorf("all operations = %v, want 3", got)
	}
	if got := r.Value("kvstore_operation_duration_seconds_count", "op", "set"); got != 2 {
		t.Errorf("set duration count = %v, want 2", got)
	}
}

func TestSetStorage(t *testing.T) {
	r := NewRegistry()
	r.SetStorage(42, 4096, 7)
	r.SnapshotBytes.Set(1024)

	tests := []struct {
		name string
		want float64
	}{
		{"kvstore_keys", 42},
		{"kvstore_wal_bytes", 4096},
		{"kvstore_wal_records", 7},
		{"kvstore_snapshot_bytes", 1024},
	}
	for _, tt := range tests {
		if got := r.Value(tt.name); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRecordCompaction(t *testing.T) {
	r := NewRegistry()
	r.RecordCompaction(TriggerManual, nil)
	r.RecordCompaction(TriggerWALSize, nil)
	r.RecordCompaction(TriggerWALSize, errors.New("disk full"))

	if got := r.Value("kvstore_compactions_total", "trigger", TriggerWALSize, "result", ResultOK); got != 1 {
		t.Errorf("wal_size ok = %v, want 1", got)
	}
	if got := r.Value("kvstore_compactions_total", "result", ResultError); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestGather_OnlyStoreMetrics(t *testing.T) {
	r := NewRegistry()
	r.ObserveOperation("get", ResultOK, time.Microsecond)

	mfs, err := r.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatal("Gather returned no families")
	}
	for _, mf := range mfs {
		if !strings.HasPrefix(mf.GetName(), "kvstore_") {
			t.Errorf("unexpected family %q", mf.GetName())
		}
	}

	// Runtime metrics are still registered for the raw gatherer.
	all, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gatherer().Gather: %v", err)
	}
	found := false
	for _, mf := range all {
		if mf.GetName() == "go_goroutines" {
			found = true
		}
	}
	if !found {
		t.Error("expected go_goroutines metric")
	}
}

func TestSamples_Sorted(t *testing.T) {
	r := NewRegistry()
	r.SetStorage(1, 2, 3)

	samples, err := r.Samples()
	if err != nil {
		t.Fatalf("Samples: %v", err)
	}
	for i := 1; i < len(samples); i++ {
		if samples[i-1].Name > samples[i].Name {
			t.Fatalf("samples not sorted: %q before %q", samples[i-1].Name, samples[i].Name)
		}
	}
}

func TestValue_Missing(t *testing.T) {
	r := NewRegistry()
	if got := r.Value("kvstore_does_not_exist"); got != 0 {
		t.Errorf("missing metric = %v, want 0", got)
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.ObserveOperation("set", ResultOK, time.Microsecond)
				r.SetStorage(j, int64(j), j)
			}
		}()
	}
	wg.Wait()

	if got := r.Value("kvstore_operations_total", "op", "set"); got != 1000 {
		t.Errorf("set operations = %v, want 1000", got)
	}
}
