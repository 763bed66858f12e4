package wal

import (
	"errors"
	"time"
)

// Errors for WAL operations.
var (
	ErrCorruptedRecord  = errors.New("wal: corrupted record")
	ErrChecksumMismatch = errors.New("wal: checksum mismatch")
	ErrInvalidOp        = errors.New("wal: invalid record op")
	ErrTornRecord       = errors.New("wal: incomplete final record")
	ErrDecrypt          = errors.New("wal: decrypt value")
	ErrInvalidText      = errors.New("wal: key or value is not valid UTF-8")
	ErrClosed           = errors.New("wal: log is closed")
)

// Op is the kind of mutation a record carries.
type Op uint8

const (
	OpUnspecified Op = iota
	OpSet
	OpRemove
)

// String returns the wire name of the op.
func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpRemove:
		return "remove"
	default:
		return "unspecified"
	}
}

func parseOp(s string) (Op, error) {
	switch s {
	case "set":
		return OpSet, nil
	case "remove":
		return OpRemove, nil
	default:
		return OpUnspecified, ErrInvalidOp
	}
}

// Record is one durable mutation.
//
// Timestamp is Unix milliseconds at creation; replay ignores it.
type Record struct {
	Op        Op
	Key       string
	Value     string
	Timestamp int64
}

// NewSetRecord creates a SET record.
func NewSetRecord(key, value string) *Record {
	return &Record{
		Op:        OpSet,
		Key:       key,
		Value:     value,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewRemoveRecord creates a REMOVE record.
func NewRemoveRecord(key string) *Record {
	return &Record{
		Op:        OpRemove,
		Key:       key,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Apply applies the record to m.
func (r *Record) Apply(m map[string]string) {
	switch r.Op {
	case OpSet:
		m[r.Key] = r.Value
	case OpRemove:
		delete(m, r.Key)
	}
}
