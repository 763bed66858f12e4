package storage

import (
	"unicode/utf8"

	"github.com/percoguru/kvstore/internal/core/domain"
)

// Error kinds returned by the engine. Compare with errors.Is.
var (
	ErrIO            = domain.ErrIO
	ErrSerialization = domain.ErrSerialization
	ErrKeyNotFound   = domain.ErrKeyNotFound
	ErrLockPoisoned  = domain.ErrLockPoisoned
	ErrClosed        = domain.ErrClosed
)

// checkText rejects strings the JSON based WAL and snapshot formats would
// rewrite. Invalid UTF-8 is stored as U+FFFD, so distinct keys could merge
// on reload.
func checkText(field, s string) error {
	if !utf8.ValidString(s) {
		return ErrSerialization.WithDetails("%s is not valid UTF-8", field)
	}
	return nil
}
