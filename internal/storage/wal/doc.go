// Package wal provides the write-ahead log of the key-value store.
//
// Every mutation is appended to the log and synced to disk before it is
// applied to the in-memory map, so the map can be rebuilt after a crash by
// replaying the log on top of the last snapshot.
//
// Record types:
//
//   - SET: key now holds value
//   - REMOVE: key is absent
//
// Format: one record per line, in append order.
//
//	<crc32:8 lowercase hex> <payload JSON>\n
//
// Where:
//   - CRC32 (IEEE) covers the payload bytes
//   - Payload is {"op":"set"|"remove","key":...,"value":...,"ts":...}
//   - With a cipher configured, value is replaced by enc_value, the base64
//     AEAD ciphertext of the value bound to its key
//
// A final line without a newline is an append that never completed. Replay
// drops it and cuts the file back to the last complete record. Any complete
// line that fails to decode is corruption and fails the replay.
//
// Truncate replaces the file with an empty one through a temp file and
// rename, so a crash leaves either the old log or an empty one.
package wal
