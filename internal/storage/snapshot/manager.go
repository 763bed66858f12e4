package snapshot

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/zeebo/xxh3"

	"github.com/percoguru/kvstore/internal/core/domain"
	"github.com/percoguru/kvstore/pkg/crypto/adaptive"
)

var magicBytes = []byte("KVSNAP01")

const (
	checksumSize  = 32
	headerVersion = 1

	// maxHeaderSize bounds the header allocation when reading a damaged file.
	maxHeaderSize = 1 << 16

	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750
)

var (
	ErrNoSnapshot       = errors.New("snapshot: no snapshot file")
	ErrInvalidMagic     = errors.New("snapshot: invalid magic bytes")
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	ErrCorrupted        = errors.New("snapshot: corrupted content")
	ErrKeyMismatch      = errors.New("snapshot: encryption key does not match snapshot")
	ErrInvalidText      = errors.New("snapshot: key or value is not valid UTF-8")
)

// IsCorrupted reports whether err means the snapshot file exists but its
// content cannot be trusted.
func IsCorrupted(err error) bool {
	return errors.Is(err, ErrInvalidMagic) ||
		errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrCorrupted)
}

type snapshotHeader struct {
	Version     int         `json:"version"`
	ID          string      `json:"id"`
	CreatedAt   int64       `json:"created_at"`
	KeyCount    int         `json:"key_count"`
	Compression Compression `json:"compression"`
	Encrypted   bool        `json:"encrypted"`
	RawSize     int         `json:"raw_size"`
	DataHash    uint64      `json:"data_xxh3"`
}

// Config configures the snapshot manager.
type Config struct {
	Path        string
	Compression Compression
	Cipher      adaptive.Cipher
}

// DefaultConfig returns the default snapshot configuration.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		Compression: CompressionNone,
	}
}

// Manager reads and writes one snapshot file.
type Manager struct {
	cfg Config
}

// NewManager creates a manager, creating the snapshot directory if needed.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("snapshot: path is required")
	}
	c, err := ParseCompression(string(cfg.Compression))
	if err != nil {
		return nil, err
	}
	cfg.Compression = c

	if err := os.MkdirAll(filepath.Dir(cfg.Path), DefaultDirPerm); err != nil {
		return nil, domain.IOError("create snapshot dir", err)
	}
	return &Manager{cfg: cfg}, nil
}

// Path returns the snapshot file path.
func (m *Manager) Path() string {
	return m.cfg.Path
}

// Info contains metadata about a snapshot.
type Info struct {
	ID          string      `json:"id" yaml:"id"`
	KeyCount    int         `json:"key_count" yaml:"key_count"`
	CreatedAt   int64       `json:"created_at" yaml:"created_at"`
	Size        int64       `json:"size" yaml:"size"`
	Path        string      `json:"path" yaml:"path"`
	Checksum    string      `json:"checksum" yaml:"checksum"`
	Compression Compression `json:"compression" yaml:"compression"`
	Encrypted   bool        `json:"encrypted" yaml:"encrypted"`
}

// Store writes data as the new snapshot, atomically replacing the old one.
func (m *Manager) Store(data map[string]string) (*Info, error) {
	now := time.Now()
	id := ulid.Make().String()

	for k, v := range data {
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return nil, domain.SerializationError("encode snapshot", fmt.Errorf("%w: key %q", ErrInvalidText, k))
		}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, domain.SerializationError("marshal snapshot", err)
	}

	hdr := snapshotHeader{
		Version:     headerVersion,
		ID:          id,
		CreatedAt:   now.UnixMilli(),
		KeyCount:    len(data),
		Compression: m.cfg.Compression,
		Encrypted:   m.cfg.Cipher != nil,
		RawSize:     len(raw),
		DataHash:    xxh3.Hash(raw),
	}

	block, err := compress(m.cfg.Compression, raw)
	if err != nil {
		return nil, domain.SerializationError("compress snapshot", err)
	}
	if m.cfg.Cipher != nil {
		block, err = m.cfg.Cipher.Encrypt(block, additionalData(id))
		if err != nil {
			return nil, domain.SerializationError("encrypt snapshot", err)
		}
	}
	if uint64(len(block)) > math.MaxUint32 {
		return nil, domain.SerializationError("encode snapshot", fmt.Errorf("data block of %d bytes exceeds format limit", len(block)))
	}

	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return nil, domain.SerializationError("marshal snapshot header", err)
	}

	dir := filepath.Dir(m.cfg.Path)
	file, err := os.CreateTemp(dir, filepath.Base(m.cfg.Path)+".*.tmp")
	if err != nil {
		return nil, domain.IOError("create snapshot temp file", err)
	}
	tempPath := file.Name()
	defer os.Remove(tempPath)

	sum, err := writeFile(file, hdrJSON, block)
	if err != nil {
		file.Close()
		return nil, domain.IOError("write snapshot", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, domain.IOError("sync snapshot", err)
	}
	if err := file.Close(); err != nil {
		return nil, domain.IOError("close snapshot", err)
	}

	stat, err := os.Stat(tempPath)
	if err != nil {
		return nil, domain.IOError("stat snapshot", err)
	}

	if err := os.Rename(tempPath, m.cfg.Path); err != nil {
		return nil, domain.IOError("rename snapshot", err)
	}
	if err := syncDir(dir); err != nil {
		return nil, domain.IOError("sync snapshot dir", err)
	}

	return &Info{
		ID:          id,
		KeyCount:    len(data),
		CreatedAt:   hdr.CreatedAt,
		Size:        stat.Size(),
		Path:        m.cfg.Path,
		Checksum:    hex.EncodeToString(sum),
		Compression: hdr.Compression,
		Encrypted:   hdr.Encrypted,
	}, nil
}

func writeFile(file *os.File, hdrJSON, block []byte) ([]byte, error) {
	if err := file.Chmod(DefaultFilePerm); err != nil {
		return nil, err
	}

	hash := sha256.New()
	w := bufio.NewWriter(io.MultiWriter(file, hash))

	var lenBuf [4]byte
	w.Write(magicBytes)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(hdrJSON)))
	w.Write(lenBuf[:])
	w.Write(hdrJSON)
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(block)))
	w.Write(lenBuf[:])
	w.Write(block)
	if err := w.Flush(); err != nil {
		return nil, err
	}

	// Trailer is not part of the hash.
	sum := hash.Sum(nil)
	if _, err := file.Write(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// Load reads the snapshot. It returns ErrNoSnapshot with an empty map when
// the file does not exist.
func (m *Manager) Load() (map[string]string, *Info, error) {
	f, err := os.Open(m.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil, ErrNoSnapshot
		}
		return nil, nil, domain.IOError("open snapshot", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, nil, domain.IOError("stat snapshot", err)
	}
	size := stat.Size()
	if size < int64(len(magicBytes))+checksumSize {
		return nil, nil, corrupted(fmt.Errorf("%w: file is %d bytes", ErrChecksumMismatch, size))
	}

	content := make([]byte, size)
	if _, err := io.ReadFull(f, content); err != nil {
		return nil, nil, domain.IOError("read snapshot", err)
	}

	body, trailer := content[:size-checksumSize], content[size-checksumSize:]
	sum := sha256.Sum256(body)
	if !bytes.Equal(sum[:], trailer) {
		return nil, nil, corrupted(ErrChecksumMismatch)
	}
	if !bytes.HasPrefix(body, magicBytes) {
		return nil, nil, corrupted(ErrInvalidMagic)
	}
	rest := body[len(magicBytes):]

	hdrJSON, rest, err := readBlock(rest, maxHeaderSize)
	if err != nil {
		return nil, nil, corrupted(fmt.Errorf("%w: header: %v", ErrCorrupted, err))
	}
	var hdr snapshotHeader
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, nil, corrupted(fmt.Errorf("%w: unmarshal header: %v", ErrCorrupted, err))
	}
	if hdr.Version != headerVersion {
		return nil, nil, corrupted(fmt.Errorf("%w: unsupported version %d", ErrCorrupted, hdr.Version))
	}

	block, rest, err := readBlock(rest, len(rest))
	if err != nil {
		return nil, nil, corrupted(fmt.Errorf("%w: data: %v", ErrCorrupted, err))
	}
	if len(rest) != 0 {
		return nil, nil, corrupted(fmt.Errorf("%w: %d trailing bytes", ErrCorrupted, len(rest)))
	}

	switch {
	case hdr.Encrypted && m.cfg.Cipher == nil:
		return nil, nil, domain.SerializationError("load snapshot", fmt.Errorf("%w: snapshot is encrypted but no key is configured", ErrKeyMismatch))
	case !hdr.Encrypted && m.cfg.Cipher != nil:
		// Written before encryption was enabled; readable as is.
	case hdr.Encrypted:
		block, err = m.cfg.Cipher.Decrypt(block, additionalData(hdr.ID))
		if err != nil {
			return nil, nil, domain.SerializationError("load snapshot", fmt.Errorf("%w: %v", ErrKeyMismatch, err))
		}
	}

	raw, err := decompress(hdr.Compression, block)
	if err != nil {
		return nil, nil, corrupted(fmt.Errorf("%w: decompress: %v", ErrCorrupted, err))
	}
	if len(raw) != hdr.RawSize || xxh3.Hash(raw) != hdr.DataHash {
		return nil, nil, corrupted(fmt.Errorf("%w: content hash mismatch", ErrCorrupted))
	}

	data := make(map[string]string, hdr.KeyCount)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, nil, corrupted(fmt.Errorf("%w: unmarshal data: %v", ErrCorrupted, err))
	}
	if len(data) != hdr.KeyCount {
		return nil, nil, corrupted(fmt.Errorf("%w: header says %d keys, data has %d", ErrCorrupted, hdr.KeyCount, len(data)))
	}

	return data, &Info{
		ID:          hdr.ID,
		KeyCount:    hdr.KeyCount,
		CreatedAt:   hdr.CreatedAt,
		Size:        size,
		Path:        m.cfg.Path,
		Checksum:    hex.EncodeToString(trailer),
		Compression: hdr.Compression,
		Encrypted:   hdr.Encrypted,
	}, nil
}

func corrupted(err error) error {
	return domain.SerializationError("load snapshot", err)
}

// readBlock splits a length prefixed block off b.
func readBlock(b []byte, limit int) (block, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, io.ErrUnexpectedEOF
	}
	n := int(binary.BigEndian.Uint32(b[:4]))
	b = b[4:]
	if n > limit || n > len(b) {
		return nil, nil, fmt.Errorf("length %d exceeds %d available bytes", n, len(b))
	}
	return b[:n], b[n:], nil
}

func additionalData(id string) []byte {
	return append(append([]byte{}, magicBytes...), id...)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
