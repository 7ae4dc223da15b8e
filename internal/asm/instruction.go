package asm

import (
	"strings"

	"hexdis/internal/disasm"
	"hexdis/internal/numfmt"
)

// ModRM is the decoded addressing byte that follows many opcodes.
type ModRM struct {
	Mod uint8 // bits 6-7
	Reg uint8 // bits 3-5
	RM  uint8 // bits 0-2
}

func modrmReg(b byte) uint8 { return b >> 3 & 0b111 }

// Prefix is the repeat/lock state of an instruction.
type Prefix uint8

const (
	PrefixNone Prefix = iota
	PrefixLock
	PrefixRep
	PrefixRepne
)

// Instruction is the decode record for a single instruction. The zero
// value is a cleared record.
type Instruction struct {
	address  int64
	opcode   *Opcode
	segment  Segment
	modrm    ModRM
	hasModRM bool
	params   [MaxOperands]Param
	operands [MaxOperands]Operand
	prefix   Prefix
	opSize   numfmt.Width
	addrSize numfmt.Width

	code      []byte // every byte consumed
	opcodeLen int    // prefixes and opcode bytes at the front of code
	text      string
}

// Clear resets every field to its zero value.
func (i *Instruction) Clear() {
	*i = Instruction{}
}

func (i *Instruction) Address() int64 { return i.address }

func (i *Instruction) SetAddress(a int64) { i.address = a }

// SetOpcode binds a descriptor. The operand slots take the descriptor's
// parameters with no resolved values and the prefix flag returns to none.
func (i *Instruction) SetOpcode(op *Opcode) {
	i.opcode = op
	i.prefix = PrefixNone
	i.operands = [MaxOperands]Operand{}
	i.params = [MaxOperands]Param{}
	if op != nil {
		i.params = op.Params
	}
}

// Opcode returns the bound descriptor. ok is false before SetOpcode and
// for placeholder records.
func (i *Instruction) Opcode() (op *Opcode, ok bool) {
	return i.opcode, i.opcode != nil
}

func (i *Instruction) SetSegmentOverride(s Segment) { i.segment = s }

func (i *Instruction) SegmentOverride() Segment { return i.segment }

// SegmentOverrideName is the assembler prefix for the override, "cs:" and
// so on, or "" when there is none.
func (i *Instruction) SegmentOverrideName() string {
	if name := i.segment.String(); name != "" {
		return name + ":"
	}
	return ""
}

func (i *Instruction) SetPrefix(p Prefix) { i.prefix = p }

func (i *Instruction) Prefix() Prefix { return i.prefix }

// DecodeModRMByte splits b into its mod, reg and rm fields and stores them.
func (i *Instruction) DecodeModRMByte(b byte) ModRM {
	i.modrm = ModRM{
		Mod: b >> 6 & 0b11,
		Reg: modrmReg(b),
		RM:  b & 0b111,
	}
	i.hasModRM = true
	return i.modrm
}

// ModRM returns the decoded addressing byte; ok is false when the
// instruction has none.
func (i *Instruction) ModRM() (ModRM, bool) { return i.modrm, i.hasModRM }

// Param returns the static description of operand slot n.
func (i *Instruction) Param(n int) Param { return i.params[n] }

// Operand returns the resolved operand in slot n.
func (i *Instruction) Operand(n int) Operand { return i.operands[n] }

func (i *Instruction) setOperand(n int, o Operand) { i.operands[n] = o }

// OperandSize is the effective operand width, after any 0x66 prefix.
func (i *Instruction) OperandSize() numfmt.Width { return i.opSize }

// AddressSize is the effective address width, after any 0x67 prefix.
func (i *Instruction) AddressSize() numfmt.Width { return i.addrSize }

func (i *Instruction) setSizes(op, addr numfmt.Width) {
	i.opSize, i.addrSize = op, addr
}

// SetMachineCode captures the bytes consumed since start, up to the cursor
// and never past the code length. The bytes before opcodeEnd are the
// prefixes and opcode; the rest were consumed by operand resolution.
func (i *Instruction) SetMachineCode(buf *Buffer, start, opcodeEnd int) {
	span := buf.Slice(start, buf.InstructionPointer())
	i.code = append(i.code[:0], span...)
	i.opcodeLen = clamp(opcodeEnd-start, 0, len(i.code))
}

// MachineCode returns the prefix and opcode bytes.
func (i *Instruction) MachineCode() []byte { return i.code[:i.opcodeLen] }

// Len is the length of MachineCode.
func (i *Instruction) Len() int { return i.opcodeLen }

// OperandBytes returns the ModRM, SIB, displacement and immediate bytes.
func (i *Instruction) OperandBytes() []byte { return i.code[i.opcodeLen:] }

// Bytes returns everything the instruction consumed.
func (i *Instruction) Bytes() []byte { return i.code }

// Size is the number of bytes the instruction consumed.
func (i *Instruction) Size() int { return len(i.code) }

// End is the address just past the instruction.
func (i *Instruction) End() int64 { return i.address + int64(len(i.code)) }

// Text is the rendered assembler text.
func (i *Instruction) Text() string { return i.text }

// Mnemonic is the first word of the rendered text, after any prefix.
func (i *Instruction) Mnemonic() string {
	f := strings.Fields(i.text)
	for _, w := range f {
		switch w {
		case "lock", "rep", "repe", "repne":
			continue
		}
		if strings.HasSuffix(w, ":") {
			continue
		}
		return w
	}
	return ""
}

// Render produces the assembler text from the bound descriptor, using the
// template for the effective operand size. Records without a descriptor
// render as a data byte.
func (i *Instruction) Render(f numfmt.Format) string {
	if i.opcode == nil {
		var b byte
		if len(i.code) > 0 {
			b = i.code[0]
		}
		i.text = "db " + numfmt.Unsigned(uint64(b), numfmt.Byte, f)
		return i.text
	}

	width := i.opSize
	if i.opcode.Flags&FlagAddrTemplate != 0 {
		width = i.addrSize
	}
	text := i.opcode.Template(width)
	usedSegment := false
	for n, p := range i.params {
		if p.Kind == KindNone {
			continue
		}
		o := i.operands[n]
		if o.IsMemory() {
			usedSegment = true
		}
		text = strings.Replace(text, "%s", i.operandText(o, f), 1)
	}

	var sb strings.Builder
	switch i.prefix {
	case PrefixLock:
		sb.WriteString("lock ")
	case PrefixRep:
		if i.opcode.Flags&FlagRepe != 0 {
			sb.WriteString("repe ")
		} else {
			sb.WriteString("rep ")
		}
	case PrefixRepne:
		sb.WriteString("repne ")
	}
	if !usedSegment && i.segment != SegNone {
		sb.WriteString(i.SegmentOverrideName())
		sb.WriteByte(' ')
	}
	sb.WriteString(text)
	i.text = sb.String()
	return i.text
}

// Inst converts the record to the architecture-neutral form used by
// listings and viewers.
func (i *Instruction) Inst() disasm.Inst {
	return disasm.Inst{
		VA:   i.address,
		Text: i.text,
		Op:   i.Mnemonic(),
		Raw:  append([]byte(nil), i.code...),
	}
}

// Stream converts a decoded batch for listing.
func Stream(insts []Instruction) disasm.Stream {
	s := make(disasm.Stream, len(insts))
	for n := range insts {
		s[n] = insts[n].Inst()
	}
	return s
}
