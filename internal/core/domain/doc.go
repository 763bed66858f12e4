// Package domain defines the error kinds shared by every layer of the
// key-value store.
//
// Errors carry a stable code and compare by that code, so a kind can be
// wrapped with extra detail or a cause at any layer and still match with
// errors.Is at the call site:
//
//   - ErrIO: a file could not be opened, written, synced or renamed
//   - ErrSerialization: a record or snapshot could not be encoded or decoded
//   - ErrKeyNotFound: remove of a key that is not present
//   - ErrLockPoisoned: a writer panicked while holding the store lock
//   - ErrClosed: the store has been closed
package domain
