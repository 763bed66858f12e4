// Package snapshot reads and writes the compacted state of the key-value
// store as a single file.
//
// File layout:
//
//	[magic:8 "KVSNAP01"]
//	[HeaderLen:4][HeaderJSON:HeaderLen]
//	[DataLen:4][Data:DataLen]
//	[checksum:32 SHA-256 of all bytes above]
//
// Data is the JSON object of all pairs, compressed with the codec named in
// the header and then, when a cipher is configured, sealed with it. The
// header also records the xxh3 hash and length of the uncompressed JSON so a
// decode that passes the outer checksum is still verified end to end.
//
// Store writes a temp file in the same directory, fsyncs it, renames it over
// the snapshot and fsyncs the directory. A reader therefore sees either the
// previous snapshot or the new one, never a mix.
//
// Load distinguishes three outcomes that callers treat differently:
//
//   - ErrNoSnapshot: no file yet, start empty
//   - corruption (ErrInvalidMagic, ErrChecksumMismatch, ErrCorrupted): the
//     file exists but cannot be trusted
//   - anything else (I/O, ErrKeyMismatch): the file may be fine but this
//     process cannot read it
package snapshot
