package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newBuffered(t *testing.T, level, format string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: level, Format: format, Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line %q is not JSON: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{format: "json", want: `"msg":"store opened"`},
		{format: "", want: `"msg":"store opened"`},
		{format: "text", want: `msg="store opened"`},
		{format: "CONSOLE", want: `msg="store opened"`},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			l, buf := newBuffered(t, "info", tt.format)
			l.Info("store opened", "keys", 3)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output %q does not contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestLogger_RedactsStoredValues(t *testing.T) {
	l, buf := newBuffered(t, "debug", "json")

	l.Debug("set applied", "key", "user:1", "value", "hunter2")
	l.Warn("config loaded", "encryption_key", "00112233445566778899aabbccddeeff")
	l.Info("remote", "client_secret", "abc", "old_value", "prev")
	l.Info("no key configured", "encryption_key", "")

	recs := decodeLines(t, buf)
	if len(recs) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(recs), buf.String())
	}
	if recs[0]["key"] != "user:1" {
		t.Errorf("key = %v, keys are not redacted", recs[0]["key"])
	}
	for i, field := range []string{"value", "encryption_key", "client_secret"} {
		if got := recs[i][field]; got != redactedValue {
			t.Errorf("line %d %s = %v, want %q", i, field, got, redactedValue)
		}
	}
	if recs[2]["old_value"] != redactedValue {
		t.Errorf("old_value = %v", recs[2]["old_value"])
	}
	if recs[3]["encryption_key"] != "" {
		t.Errorf("empty encryption_key = %v, want it left empty", recs[3]["encryption_key"])
	}
	if strings.Contains(buf.String(), "hunter2") || strings.Contains(buf.String(), "0011223344") {
		t.Errorf("secret leaked into output:\n%s", buf.String())
	}
}

// The engine logs through the *slog.Logger returned by Slog, so it must
// share redaction and the dynamic level.
func TestLogger_SlogSharesHandler(t *testing.T) {
	l, buf := newBuffered(t, "warn", "json")
	s := l.Slog()
	if s == nil {
		t.Fatal("Slog() = nil")
	}

	s.Info("recovery completed")
	if buf.Len() != 0 {
		t.Fatalf("info line written at warn level: %s", buf.String())
	}

	s.Warn("snapshot is corrupt, starting empty", "value", "payload")
	recs := decodeLines(t, buf)
	if len(recs) != 1 || recs[0]["value"] != redactedValue {
		t.Fatalf("Slog output = %s", buf.String())
	}

	buf.Reset()
	SetLevel("debug")
	s.Debug("wal replayed", "records", 2)
	if !strings.Contains(buf.String(), "wal replayed") {
		t.Errorf("SetLevel did not reach the slog logger: %q", buf.String())
	}
}

func TestLogger_WithKeepsAttributes(t *testing.T) {
	l, buf := newBuffered(t, "info", "json")
	op := l.With("op", "compact", "value", "x")

	op.Info("snapshot created", "size_bytes", 128)

	recs := decodeLines(t, buf)
	if len(recs) != 1 {
		t.Fatalf("got %d lines", len(recs))
	}
	if recs[0]["op"] != "compact" || recs[0]["size_bytes"] != float64(128) {
		t.Errorf("record = %v", recs[0])
	}
	if recs[0]["value"] != redactedValue {
		t.Errorf("attribute added with With was not redacted: %v", recs[0]["value"])
	}

	buf.Reset()
	l.Info("plain")
	if strings.Contains(buf.String(), "compact") {
		t.Error("With modified the parent logger")
	}
}

func TestSetLevel_Reload(t *testing.T) {
	l, buf := newBuffered(t, "warn", "text")
	t.Cleanup(func() { SetLevel("info") })

	steps := []struct {
		level     string
		wantLevel string
		debug     bool
		info      bool
		warn      bool
	}{
		{level: "warn", wantLevel: "warn", warn: true},
		{level: "debug", wantLevel: "debug", debug: true, info: true, warn: true},
		{level: "error", wantLevel: "error"},
		{level: "WARNING", wantLevel: "warn", warn: true},
		{level: "bogus", wantLevel: "info", info: true, warn: true},
	}
	for _, s := range steps {
		SetLevel(s.level)
		if got := GetLevel(); got != s.wantLevel {
			t.Errorf("SetLevel(%q): GetLevel() = %q, want %q", s.level, got, s.wantLevel)
		}

		buf.Reset()
		l.Debug("d")
		l.Info("i")
		l.Warn("w")
		out := buf.String()
		for msg, want := range map[string]bool{"msg=d": s.debug, "msg=i": s.info, "msg=w": s.warn} {
			if strings.Contains(out, msg) != want {
				t.Errorf("level %q: %s written = %v, want %v", s.level, msg, !want, want)
			}
		}
	}
}

func TestValidLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "DEBUG"} {
		if !ValidLevel(level) {
			t.Errorf("ValidLevel(%q) = false", level)
		}
	}
	for _, level := range []string{"", "trace", "fatal", "verbose"} {
		if ValidLevel(level) {
			t.Errorf("ValidLevel(%q) = true", level)
		}
	}
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, buf := newBuffered(t, "info", "json")
	SetDefault(l)
	if Default() != l {
		t.Fatal("Default() did not return the logger passed to SetDefault")
	}

	Info("compaction finished", "trigger", "manual")
	Error("compaction failed", "error", "disk full")
	Debug("hidden")

	recs := decodeLines(t, buf)
	if len(recs) != 2 {
		t.Fatalf("got %d lines:\n%s", len(recs), buf.String())
	}
	if recs[0]["level"] != "INFO" || recs[1]["level"] != "ERROR" {
		t.Errorf("levels = %v, %v", recs[0]["level"], recs[1]["level"])
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "info" || cfg.Format != "json" || cfg.Output == nil {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}
