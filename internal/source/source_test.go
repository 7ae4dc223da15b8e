package source

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"hexdis/internal/xxtea"
)

var code = []byte{0xFA, 0x31, 0xC0, 0x8E, 0xD8, 0x8E, 0xD0, 0xBC, 0x00, 0x7C, 0xFB, 0xF4}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zipped(t *testing.T, entry string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(entry)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encrypted(t *testing.T, data []byte, key, sig string) []byte {
	t.Helper()
	out, err := xxtea.EncryptWithSignature(data, []byte(key), []byte(sig))
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name     string
		file     []byte
		opts     Options
		wantKind Kind
		wantEnc  bool
	}{
		{name: "raw", file: code, wantKind: Raw},
		{name: "gzip", file: gzipped(t, code), wantKind: Gzip},
		{name: "zip", file: zipped(t, "boot.bin", code), wantKind: Zip},
		{
			name:    "xxtea",
			file:    encrypted(t, code, "secret", ""),
			opts:    Options{Key: []byte("secret")},
			wantEnc: true,
		},
		{
			name:    "xxtea signature inside",
			file:    encrypted(t, code, "secret", "SIG"),
			opts:    Options{Key: []byte("secret"), Signature: []byte("SIG")},
			wantEnc: true,
		},
		{
			name:    "xxtea signature in front",
			file:    append([]byte("SIG"), encrypted(t, code, "secret", "")...),
			opts:    Options{Key: []byte("secret"), Signature: []byte("SIG")},
			wantEnc: true,
		},
		{
			name:     "xxtea then gzip",
			file:     encrypted(t, gzipped(t, code), "secret", ""),
			opts:     Options{Key: []byte("secret")},
			wantKind: Gzip,
			wantEnc:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Open(writeFile(t, "input", tt.file), tt.opts)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer src.Close()

			got, err := io.ReadAll(src)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if diff := cmp.Diff(code, got); diff != "" {
				t.Errorf("content mismatch (-want +got):\n%s", diff)
			}
			if src.Kind() != tt.wantKind || src.Encrypted() != tt.wantEnc {
				t.Errorf("Kind() = %s, Encrypted() = %v; want %s, %v", src.Kind(), src.Encrypted(), tt.wantKind, tt.wantEnc)
			}
		})
	}
}

func TestOpenRawOptionKeepsCompressedBytes(t *testing.T) {
	gz := gzipped(t, code)
	src, err := Open(writeFile(t, "input.gz", gz), Options{Raw: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()
	if src.Len() != int64(len(gz)) || src.Kind() != Raw {
		t.Errorf("Len() = %d, Kind() = %s", src.Len(), src.Kind())
	}
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(filepath.Join(dir, "missing"), Options{}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: err = %v", err)
	}
	if _, err := Open(dir, Options{}); err == nil {
		t.Error("directory opened")
	}
	wrongKey := writeFile(t, "enc", encrypted(t, code, "secret", "SIG"))
	if _, err := Open(wrongKey, Options{Key: []byte("secret"), Signature: []byte("GIS")}); !errors.Is(err, xxtea.ErrSignatureMismatch) {
		t.Errorf("wrong signature: err = %v", err)
	}
}

func TestEmptyFile(t *testing.T) {
	src, err := Open(writeFile(t, "empty", nil), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()
	if src.Len() != 0 {
		t.Errorf("Len() = %d", src.Len())
	}
	if _, err := src.Read(make([]byte, 4)); err != io.EOF {
		t.Errorf("Read on empty = %v, want io.EOF", err)
	}
}

func TestReadAtAndSeek(t *testing.T) {
	src, err := FromBytes("mem", code, Options{})
	if err != nil {
		t.Fatal(err)
	}

	p := make([]byte, 4)
	if n, err := src.ReadAt(p, 2); n != 4 || err != nil || !bytes.Equal(p, code[2:6]) {
		t.Errorf("ReadAt(2) = %d, %v, % X", n, err, p)
	}
	if n, err := src.ReadAt(p, int64(len(code)-2)); n != 2 || err != io.EOF {
		t.Errorf("short ReadAt = %d, %v; want 2, EOF", n, err)
	}
	if _, err := src.ReadAt(p, -1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("ReadAt(-1) err = %v", err)
	}

	if pos, err := src.Seek(-3, io.SeekEnd); err != nil || pos != int64(len(code)-3) {
		t.Fatalf("Seek(-3, end) = %d, %v", pos, err)
	}
	rest, _ := io.ReadAll(src)
	if !bytes.Equal(rest, code[len(code)-3:]) {
		t.Errorf("tail = % X", rest)
	}
	if _, err := src.Seek(-1, io.SeekStart); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Seek(-1) err = %v", err)
	}
	if pos, _ := src.Seek(100, io.SeekStart); pos != 100 {
		t.Errorf("Seek past end = %d", pos)
	}
	if _, err := src.Read(p); err != io.EOF {
		t.Errorf("Read past end = %v", err)
	}
}

func TestWindow(t *testing.T) {
	src, _ := FromBytes("mem", code, Options{})
	tests := []struct {
		name    string
		off, n  int64
		want    []byte
		wantErr bool
	}{
		{name: "head", off: 0, n: 3, want: code[:3]},
		{name: "to end", off: 10, n: -1, want: code[10:]},
		{name: "clipped", off: 10, n: 50, want: code[10:]},
		{name: "at end", off: int64(len(code)), n: 4, want: []byte{}},
		{name: "past end", off: 100, n: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := src.Window(tt.off, tt.n)
			if tt.wantErr {
				if !errors.Is(err, ErrOutOfRange) {
					t.Errorf("err = %v, want ErrOutOfRange", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Window(%d, %d) mismatch (-want +got):\n%s", tt.off, tt.n, diff)
			}
		})
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	src, err := Open(writeFile(t, "input", code), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if src.Len() != 0 {
		t.Error("closed source still exposes data")
	}
}
