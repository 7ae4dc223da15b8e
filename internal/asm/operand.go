package asm

import (
	"strings"

	"hexdis/internal/numfmt"
)

// Memory is a decoded memory reference.
type Memory struct {
	Base      int // register number, regNone when absent
	Index     int
	Scale     uint8
	Disp      int64
	DispWidth numfmt.Width // 0 when there is no displacement
	AddrWidth numfmt.Width // selects 16- or 32-bit register names
}

// Operand is a resolved operand.
type Operand struct {
	Param
	Width    numfmt.Width // resolved size, 0 when the size is don't-care
	Reg      int          // register number for register operands
	Mem      *Memory      // set for memory operands
	Imm      uint64       // immediate, far offset or relative displacement
	Selector uint16       // far pointer selector
}

// IsMemory reports whether the operand references memory.
func (o Operand) IsMemory() bool { return o.Mem != nil }

// resolveOperand reads whatever the parameter needs from buf. It reports
// false when the encoding is not valid for the parameter, e.g. a register
// form where only memory is allowed.
func (i *Instruction) resolveOperand(buf *Buffer, p Param) (Operand, bool) {
	o := Operand{Param: p, Width: p.Size.width(i.opSize), Reg: regNone}
	rm := i.modrm
	switch p.Kind {
	case KindRM:
		if rm.Mod == 3 {
			o.Reg = int(rm.RM)
			return o, true
		}
		o.Mem = i.resolveMemory(buf)
	case KindMem:
		if rm.Mod == 3 {
			return o, false
		}
		o.Mem = i.resolveMemory(buf)
	case KindReg, KindCtrl, KindDebug:
		o.Reg = int(rm.Reg)
	case KindRegRM:
		o.Reg = int(rm.RM)
	case KindSeg:
		if int(rm.Reg) >= len(segRegs) {
			return o, false
		}
		o.Reg = int(rm.Reg)
	case KindOpReg:
		o.Reg = int(i.opcode.Key[i.opcode.KeyLen-1] & 0b111)
	case KindImm:
		o.Imm = buf.ReadValue(int(o.Width))
	case KindImmS:
		o.Imm = uint64(int64(int8(buf.NextByte())))
	case KindRel:
		w := o.Width
		o.Imm = uint64(signExtend(buf.ReadValue(int(w)), w))
	case KindMoffs:
		o.Mem = &Memory{
			Base:      regNone,
			Index:     regNone,
			Disp:      int64(buf.ReadValue(int(i.addrSize))),
			DispWidth: i.addrSize,
			AddrWidth: i.addrSize,
		}
	case KindFar:
		o.Imm = buf.ReadValue(int(i.opSize))
		o.Selector = uint16(buf.ReadValue(2))
	}
	return o, true
}

// resolveMemory decodes the memory form of the ModRM byte, reading any
// SIB byte and displacement.
func (i *Instruction) resolveMemory(buf *Buffer) *Memory {
	rm := i.modrm
	mem := &Memory{Base: regNone, Index: regNone, Scale: 1, AddrWidth: i.addrSize}

	if i.addrSize == numfmt.Word {
		if rm.Mod == 0 && rm.RM == 6 {
			mem.DispWidth = numfmt.Word
			mem.Disp = int64(buf.ReadValue(2))
			return mem
		}
		mem.Base, mem.Index = addressing16[rm.RM][0], addressing16[rm.RM][1]
		switch rm.Mod {
		case 1:
			mem.DispWidth = numfmt.Byte
		case 2:
			mem.DispWidth = numfmt.Word
		}
	} else {
		base := int(rm.RM)
		if rm.RM == 4 {
			sib := buf.NextByte()
			mem.Scale = 1 << (sib >> 6)
			if idx := int(sib >> 3 & 0b111); idx != 4 {
				mem.Index = idx
			}
			base = int(sib & 0b111)
			if base == 5 && rm.Mod == 0 {
				base = regNone
				mem.DispWidth = numfmt.Dword
			}
		} else if rm.Mod == 0 && rm.RM == 5 {
			base = regNone
			mem.DispWidth = numfmt.Dword
		}
		mem.Base = base
		switch rm.Mod {
		case 1:
			mem.DispWidth = numfmt.Byte
		case 2:
			mem.DispWidth = numfmt.Dword
		}
	}

	if mem.DispWidth != 0 {
		mem.Disp = signExtend(buf.ReadValue(int(mem.DispWidth)), mem.DispWidth)
	}
	return mem
}

// addressing16 lists base and index registers for each 16-bit rm value.
var addressing16 = [8][2]int{
	{regBX, regSI},
	{regBX, regDI},
	{regBP, regSI},
	{regBP, regDI},
	{regSI, regNone},
	{regDI, regNone},
	{regBP, regNone},
	{regBX, regNone},
}

func signExtend(v uint64, w numfmt.Width) int64 {
	switch w {
	case numfmt.Byte:
		return int64(int8(v))
	case numfmt.Word:
		return int64(int16(v))
	case numfmt.Dword:
		return int64(int32(v))
	}
	return int64(v)
}

var ptrNames = map[numfmt.Width]string{
	numfmt.Byte:  "byte ptr ",
	numfmt.Word:  "word ptr ",
	numfmt.Dword: "dword ptr ",
	6:            "fword ptr ",
	numfmt.Qword: "qword ptr ",
}

func (i *Instruction) operandText(o Operand, f numfmt.Format) string {
	switch o.Kind {
	case KindRM, KindMem, KindMoffs:
		if o.Mem != nil {
			return ptrNames[o.Width] + i.SegmentOverrideName() + memoryText(o.Mem, f)
		}
		return gpr(o.Reg, o.Width)
	case KindReg, KindOpReg, KindRegRM:
		return gpr(o.Reg, o.Width)
	case KindSeg:
		return segRegs[o.Reg].String()
	case KindCtrl:
		return "cr" + string(rune('0'+o.Reg))
	case KindDebug:
		return "dr" + string(rune('0'+o.Reg))
	case KindImm, KindImmS:
		return numfmt.Unsigned(o.Imm, o.Width, f)
	case KindRel:
		target := uint64(i.End()) + o.Imm
		switch {
		case i.opSize == numfmt.Word && i.End() <= 0xFFFF:
			target &= 0xFFFF
		case i.opSize == numfmt.Dword:
			target &= 0xFFFFFFFF
		}
		return numfmt.Unsigned(target, numfmt.Fit(target, i.opSize), f)
	case KindFar:
		return numfmt.Unsigned(uint64(o.Selector), numfmt.Word, f) + ":" + numfmt.Unsigned(o.Imm, i.opSize, f)
	}
	return ""
}

func memoryText(mem *Memory, f numfmt.Format) string {
	var sb strings.Builder
	sb.WriteByte('[')
	if mem.Base != regNone {
		sb.WriteString(gpr(mem.Base, mem.AddrWidth))
	}
	if mem.Index != regNone {
		if mem.Base != regNone {
			sb.WriteByte('+')
		}
		sb.WriteString(gpr(mem.Index, mem.AddrWidth))
		if mem.Scale > 1 {
			sb.WriteByte('*')
			sb.WriteByte('0' + mem.Scale)
		}
	}
	switch {
	case mem.DispWidth == 0:
	case mem.Base == regNone && mem.Index == regNone:
		sb.WriteString(numfmt.Unsigned(uint64(mem.Disp), mem.DispWidth, f))
	case mem.Disp < 0:
		sb.WriteString(numfmt.Signed(mem.Disp, mem.DispWidth, f))
	default:
		sb.WriteByte('+')
		sb.WriteString(numfmt.Signed(mem.Disp, mem.DispWidth, f))
	}
	sb.WriteByte(']')
	return sb.String()
}
