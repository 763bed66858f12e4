// Package storage provides the durable key-value store.
//
// The engine keeps every pair in an in-memory map and makes it survive
// restarts with two files:
//
//   - WAL: every Set and Remove is appended before the map changes
//   - Snapshot: the whole map, written by compaction, after which the WAL
//     is emptied
//
// Open loads the snapshot, replays the WAL on top of it and is then ready.
// One sync.RWMutex guards the map and the log. Writers append and mutate
// inside the same critical section, so the order of records in the WAL is
// the order in which readers observe the changes. Compact holds the write
// lock while it writes the snapshot and truncates the WAL, so no record can
// fall between the two.
//
// A snapshot that fails its checksums is discarded with a warning and the
// store starts from the WAL alone. A WAL that cannot be decoded fails Open.
package storage
