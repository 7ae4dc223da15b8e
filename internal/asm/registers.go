package asm

import "hexdis/internal/numfmt"

var (
	regs8  = [8]string{"al", "cl", "dl", "bl", "ah", "ch", "dh", "bh"}
	regs16 = [8]string{"ax", "cx", "dx", "bx", "sp", "bp", "si", "di"}
	regs32 = [8]string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}

	// ModRM.reg encoding order of the segment registers. 6 and 7 are
	// reserved.
	segRegs = [6]Segment{SegES, SegCS, SegSS, SegDS, SegFS, SegGS}
)

// Register numbers used by the 16-bit addressing table.
const (
	regBX = 3
	regBP = 5
	regSI = 6
	regDI = 7

	regNone = -1
)

// gpr names general purpose register n at the given width.
func gpr(n int, w numfmt.Width) string {
	if n < 0 || n > 7 {
		return "?"
	}
	switch w {
	case numfmt.Byte:
		return regs8[n]
	case numfmt.Word:
		return regs16[n]
	default:
		return regs32[n]
	}
}

// Segment is a segment register, used for override prefixes and for the
// segment register operands of mov/push/pop.
type Segment uint8

const (
	SegNone Segment = iota
	SegCS
	SegDS
	SegES
	SegSS
	SegFS
	SegGS
)

var segNames = [...]string{
	SegCS: "cs",
	SegDS: "ds",
	SegES: "es",
	SegSS: "ss",
	SegFS: "fs",
	SegGS: "gs",
}

func (s Segment) String() string {
	if s == SegNone || int(s) >= len(segNames) {
		return ""
	}
	return segNames[s]
}

// segmentPrefix maps a segment override prefix byte to its register.
func segmentPrefix(b byte) (Segment, bool) {
	switch b {
	case 0x26:
		return SegES, true
	case 0x2E:
		return SegCS, true
	case 0x36:
		return SegSS, true
	case 0x3E:
		return SegDS, true
	case 0x64:
		return SegFS, true
	case 0x65:
		return SegGS, true
	}
	return SegNone, false
}
