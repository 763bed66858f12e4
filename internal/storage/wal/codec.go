package wal

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"unicode/utf8"

	"github.com/percoguru/kvstore/pkg/crypto/adaptive"
)

// crcLen is the width of the hex checksum prefix.
const crcLen = 8

type wirePayload struct {
	Op        string  `json:"op"`
	Key       string  `json:"key"`
	Value     *string `json:"value,omitempty"`
	EncValue  string  `json:"enc_value,omitempty"`
	Timestamp int64   `json:"ts"`
}

// encodeLine renders rec as one newline terminated log line.
func encodeLine(rec *Record, cipher adaptive.Cipher) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("wal: record is nil")
	}
	if rec.Op != OpSet && rec.Op != OpRemove {
		return nil, ErrInvalidOp
	}
	// JSON would replace invalid bytes with U+FFFD.
	if !utf8.ValidString(rec.Key) || (rec.Op == OpSet && !utf8.ValidString(rec.Value)) {
		return nil, ErrInvalidText
	}

	p := wirePayload{
		Op:        rec.Op.String(),
		Key:       rec.Key,
		Timestamp: rec.Timestamp,
	}

	if rec.Op == OpSet {
		if cipher == nil {
			v := rec.Value
			p.Value = &v
		} else {
			sealed, err := cipher.Encrypt([]byte(rec.Value), []byte(rec.Key))
			if err != nil {
				return nil, fmt.Errorf("wal: encrypt value: %w", err)
			}
			p.EncValue = base64.StdEncoding.EncodeToString(sealed)
		}
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("wal: marshal payload: %w", err)
	}

	out := make([]byte, 0, crcLen+1+len(payload)+1)
	out = fmt.Appendf(out, "%08x", crc32.ChecksumIEEE(payload))
	out = append(out, ' ')
	out = append(out, payload...)
	out = append(out, '\n')
	return out, nil
}

// decodeLine parses one log line with its trailing newline removed.
func decodeLine(line []byte, cipher adaptive.Cipher) (*Record, error) {
	if len(line) < crcLen+2 || line[crcLen] != ' ' {
		return nil, ErrCorruptedRecord
	}

	var want [4]byte
	if _, err := hex.Decode(want[:], line[:crcLen]); err != nil {
		return nil, ErrCorruptedRecord
	}
	payload := line[crcLen+1:]
	got := crc32.ChecksumIEEE(payload)
	if binary.BigEndian.Uint32(want[:]) != got {
		return nil, ErrChecksumMismatch
	}

	var p wirePayload
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedRecord, err)
	}

	op, err := parseOp(p.Op)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Op:        op,
		Key:       p.Key,
		Timestamp: p.Timestamp,
	}

	if op == OpSet {
		switch {
		case p.EncValue != "":
			if cipher == nil {
				return nil, fmt.Errorf("%w: encrypted record but no cipher configured", ErrCorruptedRecord)
			}
			sealed, err := base64.StdEncoding.DecodeString(p.EncValue)
			if err != nil {
				return nil, fmt.Errorf("%w: decode value: %v", ErrCorruptedRecord, err)
			}
			plain, err := cipher.Decrypt(sealed, []byte(p.Key))
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
			}
			rec.Value = string(plain)
		case p.Value != nil:
			rec.Value = *p.Value
		default:
			return nil, fmt.Errorf("%w: set record without value", ErrCorruptedRecord)
		}
	}

	return rec, nil
}
