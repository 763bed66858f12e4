// Package adaptive provides at-rest encryption for the key-value store.
//
// A single hex encoded master key is configured by the operator. Separate
// subkeys for the write-ahead log and the snapshot file are derived from it
// with HKDF, and each is used with an AEAD cipher:
//
//   - AES-GCM: preferred when hardware AES support is available
//   - ChaCha20-Poly1305: fallback for other architectures
//
// Usage:
//
//	master, err := adaptive.ParseKey(hexKey)
//	c, err := adaptive.NewForPurpose(master, "kvstore/wal", adaptive.CipherAuto)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive
