// Package numfmt renders integers in the number bases a hex editor shows
// operands in: hexadecimal, decimal and binary, at a fixed byte width.
package numfmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Format is the textual base used for numeric operands.
type Format int

const (
	Hex Format = iota
	Dec
	Bin
)

// ErrUnknownFormat is returned by ParseFormat for names it does not know.
var ErrUnknownFormat = errors.New("unknown number format")

func (f Format) String() string {
	switch f {
	case Hex:
		return "HEX"
	case Dec:
		return "DEC"
	case Bin:
		return "BIN"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Next cycles HEX -> DEC -> BIN -> HEX.
func (f Format) Next() Format {
	return (f + 1) % 3
}

// ParseFormat accepts "hex", "dec" and "bin" in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hex", "h", "16":
		return Hex, nil
	case "dec", "d", "10":
		return Dec, nil
	case "bin", "b", "2":
		return Bin, nil
	}
	return Hex, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// MarshalText lets a Format live in config files.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(f.String())), nil
}

func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Width is an operand width in bytes.
type Width int

const (
	Byte  Width = 1
	Word  Width = 2
	Dword Width = 4
	Qword Width = 8
)

// Bits returns the width in bits.
func (w Width) Bits() int { return int(w) * 8 }

func (w Width) mask() uint64 {
	if w >= Qword || w <= 0 {
		return ^uint64(0)
	}
	return uint64(1)<<w.Bits() - 1
}

// Fit returns the smallest width, not below min, that holds v.
func Fit(v uint64, min Width) Width {
	for _, w := range []Width{Byte, Word, Dword} {
		if w >= min && v&^w.mask() == 0 {
			return w
		}
	}
	return Qword
}

// Unsigned renders v truncated to w. Hex and binary are zero padded to
// the full width.
func Unsigned(v uint64, w Width, f Format) string {
	v &= w.mask()
	switch f {
	case Dec:
		return strconv.FormatUint(v, 10)
	case Bin:
		s := strconv.FormatUint(v, 2)
		return "0b" + pad(s, w.Bits())
	default:
		s := strings.ToUpper(strconv.FormatUint(v, 16))
		return "0x" + pad(s, int(w)*2)
	}
}

// Signed renders v as a value of width w with a leading minus sign when
// negative. The magnitude is formatted like Unsigned.
func Signed(v int64, w Width, f Format) string {
	v = signExtend(uint64(v), w)
	if v < 0 {
		return "-" + Unsigned(uint64(-v), w, f)
	}
	return Unsigned(uint64(v), w, f)
}

func signExtend(v uint64, w Width) int64 {
	if w >= Qword {
		return int64(v)
	}
	shift := 64 - w.Bits()
	return int64(v<<shift) >> shift
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}
