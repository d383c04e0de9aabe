package object

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// FileStore is a content-addressed object store on disk with a 2-character
// fan-out directory layout: objects/ab/cdef0123...
//
// Each loose object is a zstd-compressed record "kind len\0payload", where
// payload is the object encoded in the store's persistence codec. The
// content hash is always computed over the canonical encoding (see HashOf),
// so the same logical object lands at the same path regardless of codec.
type FileStore struct {
	root   string
	format Format
	codec  Codec
}

// NewFileStore creates a FileStore rooted at the given directory, persisting
// payloads in the given format. The objects/ subdirectory is created lazily
// on first write.
func NewFileStore(root string, format Format) *FileStore {
	return &FileStore{root: root, format: format, codec: NewCodec(format)}
}

func (s *FileStore) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", string(h[:2]), string(h[2:]))
}

// Has reports whether the store contains an object with the given hash.
func (s *FileStore) Has(h Hash) bool {
	if h.IsNull() {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Put stores an object and returns its content hash. Writing content that
// is already present is a no-op. Writes are atomic: data goes to a temp
// file which is then renamed into place.
func (s *FileStore) Put(o Object) (Hash, error) {
	h := HashOf(o)
	if s.Has(h) {
		return h, nil
	}

	payload, err := s.codec.Encode(o)
	if err != nil {
		return NullHash, fmt.Errorf("object put: %w", err)
	}
	record := make([]byte, 0, len(payload)+32)
	record = fmt.Appendf(record, "%s %d\x00", o.Kind(), len(payload))
	record = append(record, payload...)
	compressed := compressRecord(record)

	dir := filepath.Join(s.root, "objects", string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return NullHash, fmt.Errorf("object put mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return NullHash, fmt.Errorf("object put tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return NullHash, fmt.Errorf("object put: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return NullHash, fmt.Errorf("object put close: %w", err)
	}
	if err := os.Rename(tmpName, s.objectPath(h)); err != nil {
		os.Remove(tmpName)
		return NullHash, fmt.Errorf("object put rename: %w", err)
	}
	return h, nil
}

// Get retrieves an object by hash, verifying the stored kind against the
// expected kind before decoding.
func (s *FileStore) Get(h Hash, kind ObjectType) (Object, error) {
	storedKind, payload, err := s.readRecord(h)
	if err != nil {
		return nil, err
	}
	if err := checkKind(h, storedKind, kind); err != nil {
		return nil, err
	}
	return s.codec.Decode(kind, payload)
}

// KindOf reports the stored kind of an object from its record envelope.
func (s *FileStore) KindOf(h Hash) (ObjectType, error) {
	kind, _, err := s.readRecord(h)
	return kind, err
}

func (s *FileStore) readRecord(h Hash) (ObjectType, []byte, error) {
	if h.IsNull() {
		return "", nil, fmt.Errorf("object get: null id: %w", ErrNotFound)
	}
	compressed, err := os.ReadFile(s.objectPath(h))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("object %s: %w", h, ErrNotFound)
		}
		return "", nil, fmt.Errorf("object get %s: %w", h, err)
	}
	raw, err := decompressRecord(compressed)
	if err != nil {
		return "", nil, fmt.Errorf("object get %s: %w", h, err)
	}

	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("object get %s: invalid record (no NUL)", h)
	}
	header := string(raw[:nulIdx])
	payload := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("object get %s: invalid header %q", h, header)
	}
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("object get %s: invalid length %q: %w", h, parts[1], err)
	}
	if len(payload) != length {
		return "", nil, fmt.Errorf("object get %s: length mismatch (header=%d, actual=%d)", h, length, len(payload))
	}
	return ObjectType(parts[0]), payload, nil
}

// List walks the fan-out layout and calls fn for every stored hash. Used by
// garbage collection's sweep phase.
func (s *FileStore) List(fn func(Hash) error) error {
	objects := filepath.Join(s.root, "objects")
	fanouts, err := os.ReadDir(objects)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("object list: %w", err)
	}
	for _, fan := range fanouts {
		if !fan.IsDir() || len(fan.Name()) != 2 {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(objects, fan.Name()))
		if err != nil {
			return fmt.Errorf("object list: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			if err := fn(Hash(fan.Name() + e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// Remove deletes a loose object. Removing an absent object is a no-op.
func (s *FileStore) Remove(h Hash) error {
	err := os.Remove(s.objectPath(h))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("object remove %s: %w", h, err)
	}
	return nil
}

func compressRecord(data []byte) []byte {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		// Only reachable through invalid encoder options.
		panic("object: zstd writer: " + err.Error())
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func decompressRecord(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic("object: zstd reader: " + err.Error())
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress record: %w", err)
	}
	return out, nil
}
