package numfmt

import (
	"errors"
	"testing"
)

func TestUnsigned(t *testing.T) {
	tests := []struct {
		v    uint64
		w    Width
		f    Format
		want string
	}{
		{0x1, Byte, Hex, "0x01"},
		{0xABC, Word, Hex, "0x0ABC"},
		{0x1234, Byte, Hex, "0x34"},
		{0xFFFFFFFF, Dword, Hex, "0xFFFFFFFF"},
		{0x1, Qword, Hex, "0x0000000000000001"},
		{255, Byte, Dec, "255"},
		{0x10000, Word, Dec, "0"},
		{5, Byte, Bin, "0b00000101"},
		{1, Word, Bin, "0b0000000000000001"},
	}
	for _, tt := range tests {
		if got := Unsigned(tt.v, tt.w, tt.f); got != tt.want {
			t.Errorf("Unsigned(%#x, %d, %s) = %q, want %q", tt.v, tt.w, tt.f, got, tt.want)
		}
	}
}

func TestSigned(t *testing.T) {
	tests := []struct {
		v    int64
		w    Width
		f    Format
		want string
	}{
		{-4, Byte, Hex, "-0x04"},
		{-128, Byte, Hex, "-0x80"},
		{0x7F, Byte, Hex, "0x7F"},
		{0xFC, Byte, Hex, "-0x04"},
		{-4, Byte, Dec, "-4"},
		{-1, Dword, Hex, "-0x00000001"},
		{16, Word, Dec, "16"},
	}
	for _, tt := range tests {
		if got := Signed(tt.v, tt.w, tt.f); got != tt.want {
			t.Errorf("Signed(%d, %d, %s) = %q, want %q", tt.v, tt.w, tt.f, got, tt.want)
		}
	}
}

func TestFit(t *testing.T) {
	tests := []struct {
		v    uint64
		min  Width
		want Width
	}{
		{0, Byte, Byte},
		{0x100, Byte, Word},
		{0x100, Word, Word},
		{0x10000, Word, Dword},
		{0, Dword, Dword},
		{1 << 40, Word, Qword},
	}
	for _, tt := range tests {
		if got := Fit(tt.v, tt.min); got != tt.want {
			t.Errorf("Fit(%#x, %d) = %d, want %d", tt.v, tt.min, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"hex", Hex, false},
		{"DEC", Dec, false},
		{" bin ", Bin, false},
		{"16", Hex, false},
		{"octal", Hex, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownFormat) {
					t.Errorf("ParseFormat(%q) error = %v, want ErrUnknownFormat", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestFormatCycle(t *testing.T) {
	f := Hex
	seen := []string{f.String()}
	for range 3 {
		f = f.Next()
		seen = append(seen, f.String())
	}
	want := []string{"HEX", "DEC", "BIN", "HEX"}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("cycle = %v, want %v", seen, want)
		}
	}
}

func TestFormatText(t *testing.T) {
	b, err := Bin.MarshalText()
	if err != nil || string(b) != "bin" {
		t.Fatalf("MarshalText() = %q, %v", b, err)
	}
	var f Format
	if err := f.UnmarshalText([]byte("dec")); err != nil || f != Dec {
		t.Errorf("UnmarshalText(dec) = %v, %v", f, err)
	}
	if err := f.UnmarshalText([]byte("nope")); err == nil {
		t.Error("UnmarshalText(nope) succeeded")
	}
}
