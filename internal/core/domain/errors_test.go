package domain

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "bare kind",
			err:      ErrKeyNotFound,
			expected: "[KV-KEY-4040] key not found",
		},
		{
			name:     "with details",
			err:      ErrKeyNotFound.WithDetails("key %q", "a"),
			expected: `[KV-KEY-4040] key not found: key "a"`,
		},
		{
			name:     "with cause",
			err:      IOError("append wal", io.ErrShortWrite),
			expected: "[KV-IO-5001] i/o error: append wal: short write",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	wrapped := fmt.Errorf("storage: set: %w", SerializationError("encode record", errors.New("bad")))

	if !errors.Is(wrapped, ErrSerialization) {
		t.Error("errors.Is should match the kind through fmt wrapping")
	}
	if errors.Is(wrapped, ErrIO) {
		t.Error("errors.Is should not match a different kind")
	}
	if errors.Is(ErrIO, io.EOF) {
		t.Error("errors.Is should not match a non-domain error")
	}
}

func TestError_Unwrap(t *testing.T) {
	err := IOError("sync", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("cause should be reachable through errors.Is")
	}
}

func TestCode(t *testing.T) {
	if got := Code(fmt.Errorf("x: %w", ErrClosed)); got != "KV-SYS-5030" {
		t.Errorf("Code() = %q, want %q", got, "KV-SYS-5030")
	}
	if got := Code(io.EOF); got != "" {
		t.Errorf("Code(io.EOF) = %q, want empty", got)
	}
}

func TestKindsAreDistinct(t *testing.T) {
	kinds := []*Error{ErrIO, ErrSerialization, ErrLockPoisoned, ErrKeyNotFound, ErrClosed}
	seen := make(map[string]bool)
	for _, k := range kinds {
		if seen[k.Code] {
			t.Errorf("duplicate code %s", k.Code)
		}
		seen[k.Code] = true
	}
}
