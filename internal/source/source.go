// Package source loads the raw bytes the disassembler works on. Plain files
// are memory mapped; encrypted or compressed inputs are unwrapped into
// memory first.
package source

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"hexdis/internal/xxtea"
)

// ErrOutOfRange is returned when a requested window starts past the end
// of the input.
var ErrOutOfRange = errors.New("source: offset out of range")

// Kind records how the bytes were unwrapped.
type Kind int

const (
	Raw Kind = iota
	Gzip
	Zip
)

func (k Kind) String() string {
	switch k {
	case Gzip:
		return "gzip"
	case Zip:
		return "zip"
	}
	return "raw"
}

// Options controls unwrapping. With an empty Key the input is never
// decrypted.
type Options struct {
	Key       []byte
	Signature []byte
	// Raw disables gzip and zip detection.
	Raw bool
}

// Source is a read-only byte source. It implements io.ReaderAt,
// io.ReadSeeker and io.Closer.
type Source struct {
	name      string
	data      []byte
	mapped    bool
	f         *os.File
	pos       int64
	kind      Kind
	encrypted bool
}

var (
	_ io.ReaderAt   = (*Source)(nil)
	_ io.ReadSeeker = (*Source)(nil)
	_ io.Closer     = (*Source)(nil)
)

// Open opens path. Without unwrapping options the file is mapped rather
// than read.
func Open(path string, opts Options) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if fi.IsDir() {
		f.Close()
		return nil, fmt.Errorf("open source: %s is a directory", path)
	}

	var data []byte
	if fi.Size() > 0 {
		data, err = syscall.Mmap(int(f.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("mmap source: %w", err)
		}
	}
	s := &Source{name: path, data: data, mapped: data != nil, f: f}

	out, kind, encrypted, err := unwrap(data, path, opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	if encrypted || kind != Raw {
		// The unwrapped copy lives on the heap; drop the mapping.
		if err := s.Close(); err != nil {
			return nil, err
		}
		return &Source{name: path, data: out, kind: kind, encrypted: encrypted}, nil
	}
	return s, nil
}

// FromBytes wraps data that is already in memory.
func FromBytes(name string, data []byte, opts Options) (*Source, error) {
	out, kind, encrypted, err := unwrap(data, name, opts)
	if err != nil {
		return nil, err
	}
	return &Source{name: name, data: out, kind: kind, encrypted: encrypted}, nil
}

func (s *Source) Name() string { return s.name }

func (s *Source) Kind() Kind { return s.kind }

// Encrypted reports whether the input was XXTEA decrypted.
func (s *Source) Encrypted() bool { return s.encrypted }

// Len is the number of unwrapped bytes.
func (s *Source) Len() int64 { return int64(len(s.data)) }

func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, off)
	}
	if off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *Source) Read(p []byte) (int, error) {
	if s.pos >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += int64(n)
	return n, nil
}

func (s *Source) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = int64(len(s.data)) + offset
	default:
		return 0, errors.New("source: invalid whence")
	}
	if abs < 0 {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, abs)
	}
	s.pos = abs
	return abs, nil
}

// Window returns up to n bytes starting at off without copying. n < 0
// means through the end of the input. The slice is only valid until
// Close.
func (s *Source) Window(off, n int64) ([]byte, error) {
	if off < 0 || off > int64(len(s.data)) {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, off, len(s.data))
	}
	end := int64(len(s.data))
	if n >= 0 && off+n < end {
		end = off + n
	}
	return s.data[off:end], nil
}

// Close releases the mapping. It is safe to call more than once.
func (s *Source) Close() error {
	var errs []error
	if s.mapped && s.data != nil {
		errs = append(errs, syscall.Munmap(s.data))
	}
	s.data = nil
	s.mapped = false
	if s.f != nil {
		errs = append(errs, s.f.Close())
		s.f = nil
	}
	return errors.Join(errs...)
}

// unwrap decrypts and decompresses data as requested. The returned slice
// aliases data when nothing was done.
func unwrap(data []byte, name string, opts Options) ([]byte, Kind, bool, error) {
	out := data
	encrypted := false
	if len(opts.Key) > 0 {
		dec, err := decrypt(data, opts.Key, opts.Signature)
		if err != nil {
			return nil, Raw, false, fmt.Errorf("decrypt %s: %w", name, err)
		}
		slog.Debug("decrypted input", "file", name, "size", len(data), "plain", len(dec))
		out, encrypted = dec, true
	}
	if opts.Raw {
		return out, Raw, encrypted, nil
	}
	dec, kind, err := decompress(out, name)
	if err != nil {
		return nil, Raw, false, err
	}
	return dec, kind, encrypted, nil
}

// decrypt handles both signature placements: in front of the ciphertext,
// or inside it in front of the plaintext.
func decrypt(data, key, signature []byte) ([]byte, error) {
	if len(signature) > 0 && bytes.HasPrefix(data, signature) {
		return xxtea.Decrypt(data[len(signature):], key)
	}
	return xxtea.DecryptWithSignature(data, key, signature)
}

// decompress checks for gzip and zip magic and inflates the data. Zip
// archives yield their first entry.
func decompress(data []byte, name string) ([]byte, Kind, error) {
	switch {
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, Raw, fmt.Errorf("gzip %s: %w", name, err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, Raw, fmt.Errorf("gzip %s: %w", name, err)
		}
		slog.Debug("inflated gzip input", "file", name, "size", len(data), "inflated", len(out))
		return out, Gzip, nil

	case len(data) >= 4 && bytes.Equal(data[:4], []byte("PK\x03\x04")):
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, Raw, fmt.Errorf("zip %s: %w", name, err)
		}
		if len(zr.File) == 0 {
			return nil, Raw, fmt.Errorf("zip %s: archive is empty", name)
		}
		entry := zr.File[0]
		rc, err := entry.Open()
		if err != nil {
			return nil, Raw, fmt.Errorf("zip %s: %w", name, err)
		}
		defer rc.Close()
		out, err := io.ReadAll(rc)
		if err != nil {
			return nil, Raw, fmt.Errorf("zip %s: %w", name, err)
		}
		slog.Debug("extracted zip entry", "file", name, "entry", entry.Name, "size", len(out))
		return out, Zip, nil
	}
	return data, Raw, nil
}
