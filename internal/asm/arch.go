// Package asm is the x86 disassembly engine: a bounded code cursor, a
// static opcode decode table, the per-instruction decode record and the
// loop that turns a byte block into an ordered instruction list.
//
// The engine never fails on its input. Bytes that do not decode become
// one-byte "db" placeholders, truncated instructions are decoded from
// zero-filled reads, and the only failure signal is an empty result.
package asm

import (
	"errors"
	"fmt"
	"strings"

	"hexdis/internal/numfmt"
)

// Arch selects the default operand and address size.
type Arch int

const (
	Arch16 Arch = 16
	Arch32 Arch = 32
)

// ErrUnknownArch is returned by ParseArch.
var ErrUnknownArch = errors.New("unknown architecture")

func (a Arch) String() string {
	switch a {
	case Arch16:
		return "x86_16"
	case Arch32:
		return "x86_32"
	}
	return fmt.Sprintf("Arch(%d)", int(a))
}

// Width is the default operand and address width of the architecture.
func (a Arch) Width() numfmt.Width {
	if a == Arch16 {
		return numfmt.Word
	}
	return numfmt.Dword
}

// Toggle returns the other architecture.
func (a Arch) Toggle() Arch {
	if a == Arch16 {
		return Arch32
	}
	return Arch16
}

// ParseArch accepts the canonical names plus a few common aliases.
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "16", "x86_16", "x86-16", "8086", "i8086":
		return Arch16, nil
	case "32", "x86_32", "x86-32", "i386", "386", "x86":
		return Arch32, nil
	}
	return Arch32, fmt.Errorf("%w: %q", ErrUnknownArch, s)
}

func (a Arch) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Arch) UnmarshalText(b []byte) error {
	v, err := ParseArch(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// flip swaps a word width for a dword width and back. Used for the
// operand-size and address-size override prefixes.
func flip(w numfmt.Width) numfmt.Width {
	if w == numfmt.Word {
		return numfmt.Dword
	}
	return numfmt.Word
}
