package cmd

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"hexdis/internal/config"
	"hexdis/internal/source"
	"hexdis/internal/xxtea"
)

var prologue = []byte{0x55, 0x89, 0xE5, 0x83, 0xEC, 0x08, 0x90, 0xC3}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.EnvPath, filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("HEXDIS_NO_COLOR", "1")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestListing(t *testing.T) {
	path := writeFile(t, "code.bin", prologue)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "whole file",
			args: []string{"--no-tui", "--base", "0x401000", path},
			want: []string{
				"0000000000401000  55        push ebp",
				"0000000000401001  89 E5     mov ebp, esp",
				"0000000000401003  83 EC 08  sub esp, 0x00000008",
				"0000000000401006  90        nop",
				"0000000000401007  C3        ret",
			},
		},
		{
			name: "count",
			args: []string{"-n", "--base", "0x401000", "--count", "2", path},
			want: []string{
				"0000000000401000  55     push ebp",
				"0000000000401001  89 E5  mov ebp, esp",
			},
		},
		{
			name: "offset moves the base",
			args: []string{"-n", "--base", "0x401000", "--offset", "3", "--length", "3", "--format", "dec", path},
			want: []string{
				"0000000000401003  83 EC 08  sub esp, 8",
			},
		},
		{
			name: "16-bit",
			args: []string{"-n", "--arch", "x86_16", "--offset", "3", path},
			want: []string{
				"0000000000000003  83 EC 08  sub sp, 0x0008",
				"0000000000000006  90        nop",
				"0000000000000007  C3        ret",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := execute(t, nil, tt.args...)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			want := strings.Join(tt.want, "\n") + "\n"
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("listing mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListingFromStdin(t *testing.T) {
	got, err := execute(t, bytes.NewReader([]byte{0xFA, 0xF4}), "-n", "--arch", "16", "--base", "0x7c00")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := "0000000000007C00  FA  cli\n0000000000007C01  F4  hlt\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stdin listing mismatch (-want +got):\n%s", diff)
	}
}

func TestEncryptedInput(t *testing.T) {
	enc, err := xxtea.EncryptWithSignature(prologue, []byte("k3y"), []byte("SIG"))
	if err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, "code.enc", enc)

	got, err := execute(t, nil, "-n", "--key", "k3y", "--signature", "SIG", "--count", "1", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if want := "0000000000000000  55  push ebp\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	if _, err := execute(t, nil, "-n", "--key", "k3y", "--signature", "BAD", path); !errors.Is(err, xxtea.ErrSignatureMismatch) {
		t.Errorf("wrong signature: err = %v", err)
	}
}

func TestJSONOutput(t *testing.T) {
	path := writeFile(t, "code.bin", prologue)
	out, err := execute(t, nil, "--json", "--base", "0x401000", "--count", "3", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var got JSONOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	want := JSONOutput{
		File:   path,
		Arch:   "x86_32",
		Base:   0x401000,
		Format: "hex",
		Instructions: []JSONInst{
			{Address: 0x401000, Bytes: "55", Text: "push ebp"},
			{Address: 0x401001, Bytes: "89 E5", Text: "mov ebp, esp"},
			{Address: 0x401003, Bytes: "83 EC 08", Text: "sub esp, 0x00000008"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFileAndFlagPrecedence(t *testing.T) {
	path := writeFile(t, "code.bin", []byte{0xB8, 0x34, 0x12})
	cfg := writeFile(t, "config.toml", []byte("arch = \"x86_16\"\nformat = \"dec\"\nbase = 0x100\n"))

	got, err := execute(t, nil, "-n", "--config", cfg, path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if want := "0000000000000100  B8 34 12  mov ax, 4660\n"; got != want {
		t.Errorf("config listing = %q, want %q", got, want)
	}

	got, err = execute(t, nil, "-n", "--config", cfg, "--format", "hex", "--base", "0", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if want := "0000000000000000  B8 34 12  mov ax, 0x1234\n"; got != want {
		t.Errorf("flag listing = %q, want %q", got, want)
	}
}

func TestErrors(t *testing.T) {
	path := writeFile(t, "code.bin", prologue)
	empty := writeFile(t, "empty.bin", nil)

	tests := []struct {
		name    string
		args    []string
		wantIs  error
		wantMsg string
	}{
		{name: "bad arch", args: []string{"-n", "--arch", "mips", path}, wantMsg: "unknown architecture"},
		{name: "bad format", args: []string{"-n", "--format", "oct", path}, wantMsg: "unknown number format"},
		{name: "bad base", args: []string{"-n", "--base", "zz", path}, wantMsg: "--base"},
		{name: "negative count", args: []string{"-n", "--count", "-1", path}, wantMsg: "--count"},
		{name: "bad offset", args: []string{"-n", "--offset", "x", path}, wantMsg: "--offset"},
		{name: "offset past end", args: []string{"-n", "--offset", "100", path}, wantIs: source.ErrOutOfRange},
		{name: "empty input", args: []string{"-n", empty}, wantIs: errNothingDecoded},
		{name: "missing file", args: []string{"-n", filepath.Join(t.TempDir(), "nope")}, wantIs: os.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, nil, tt.args...)
			if err == nil {
				t.Fatal("execute succeeded")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("err = %v, want %v", err, tt.wantIs)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

const (
	elfLoadVA  = 0x08048000
	elfCodeOff = 52 + 32
)

// writeELF writes a minimal executable whose only segment holds code.
func writeELF(t *testing.T, machine elf.Machine, code []byte) string {
	t.Helper()
	total := uint32(elfCodeOff + len(code))
	hdr := elf.Header32{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     elfLoadVA + elfCodeOff,
		Phoff:     52,
		Ehsize:    52,
		Phentsize: 32,
		Phnum:     1,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	prog := elf.Prog32{
		Type:   uint32(elf.PT_LOAD),
		Vaddr:  elfLoadVA,
		Paddr:  elfLoadVA,
		Filesz: total,
		Memsz:  total,
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Align:  0x1000,
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		t.Fatal(err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, prog); err != nil {
		t.Fatal(err)
	}
	buf.Write(code)
	return writeFile(t, "a.out", buf.Bytes())
}

func TestELFInput(t *testing.T) {
	path := writeELF(t, elf.EM_386, prologue)

	got, err := execute(t, nil, "-n", "--arch", "x86_16", "--offset", "84", "--count", "2", "--elf", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := "0000000008048054  55     push bp\n0000000008048055  89 E5  mov bp, sp\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("explicit arch mismatch (-want +got):\n%s", diff)
	}

	// Detected from the magic, with the mode taken from the header.
	out, err := execute(t, nil, "--json", "--offset", "84", "--count", "1", path)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var doc JSONOutput
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Arch != "x86_32" || doc.Base != elfLoadVA+elfCodeOff || len(doc.Instructions) != 1 || doc.Instructions[0].Text != "push ebp" {
		t.Errorf("ELF JSON = %+v", doc)
	}
}

func TestSchema(t *testing.T) {
	out, err := execute(t, nil, "schema")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{`"max_count"`, `"page_size"`, `"x86_16"`, `"bin"`} {
		if !strings.Contains(out, want) {
			t.Errorf("schema is missing %s:\n%s", want, out)
		}
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Errorf("schema is not JSON: %v", err)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "", want: -1},
		{in: "0", want: 0},
		{in: "512", want: 512},
		{in: "0x200", want: 0x200},
		{in: "0o17", want: 15},
		{in: "-4", wantErr: true},
		{in: "ten", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseSize("offset", tt.in)
		if (err != nil) != tt.wantErr || (!tt.wantErr && got != tt.want) {
			t.Errorf("parseSize(%q) = %d, %v; want %d, err %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}
