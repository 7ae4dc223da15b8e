package asm

import (
	"io"

	"github.com/charmbracelet/log"

	"hexdis/internal/numfmt"
)

// maxPrefixes bounds the legacy prefix run of one instruction. An x86
// instruction is at most 15 bytes, so a longer run cannot be valid.
const maxPrefixes = 14

// Disassembler runs the decode loop over a Buffer. It holds no per-run
// state and may be shared between goroutines, each with its own Buffer.
type Disassembler struct {
	table  *Table
	logger *log.Logger
}

// Option configures a Disassembler.
type Option func(*Disassembler)

// WithTable replaces the built-in opcode table.
func WithTable(t *Table) Option {
	return func(d *Disassembler) { d.table = t }
}

// WithLogger sets the logger for decode diagnostics. The default discards.
func WithLogger(l *log.Logger) Option {
	return func(d *Disassembler) { d.logger = l }
}

func New(opts ...Option) *Disassembler {
	d := &Disassembler{}
	for _, opt := range opts {
		opt(d)
	}
	if d.table == nil {
		d.table = DefaultTable()
	}
	if d.logger == nil {
		d.logger = log.New(io.Discard)
	}
	return d
}

// Table returns the opcode table in use.
func (d *Disassembler) Table() *Table { return d.table }

// Disassemble decodes instructions from the cursor onwards until the code
// runs out or maxCount instructions have been produced (maxCount <= 0
// means no limit). An empty result means nothing could be decoded.
//
// It panics if buf is nil.
func (d *Disassembler) Disassemble(buf *Buffer, maxCount int, arch Arch, format numfmt.Format) []Instruction {
	if buf == nil {
		panic("asm: Disassemble with nil buffer")
	}
	var out []Instruction
	invalid := 0
	for buf.Remaining() > 0 && (maxCount <= 0 || len(out) < maxCount) {
		inst := d.Decode(buf, arch, format)
		if _, ok := inst.Opcode(); !ok {
			invalid++
		}
		out = append(out, inst)
	}
	d.logger.Debug("disassembled",
		"arch", arch,
		"base", buf.BaseAddress(),
		"count", len(out),
		"invalid", invalid,
		"ip", buf.InstructionPointer())
	return out
}

// Decode decodes the single instruction at the cursor and leaves the
// cursor just past it. It always consumes at least one byte when any
// valid code remains.
func (d *Disassembler) Decode(buf *Buffer, arch Arch, format numfmt.Format) Instruction {
	var inst Instruction
	start := buf.InstructionPointer()
	inst.SetAddress(buf.CurrentAddress())

	opSize, addrSize := arch.Width(), arch.Width()
	seg := SegNone
	rep := PrefixNone
	n := 0
prefixes:
	for ; n < maxPrefixes && buf.Remaining() > 0; n++ {
		b := buf.PeekByte(0)
		switch b {
		case 0x66:
			opSize = flip(arch.Width())
		case 0x67:
			addrSize = flip(arch.Width())
		case 0xF0:
			rep = PrefixLock
		case 0xF2:
			rep = PrefixRepne
		case 0xF3:
			rep = PrefixRep
		default:
			s, ok := segmentPrefix(b)
			if !ok {
				break prefixes
			}
			seg = s
		}
		buf.NextByte()
	}
	if n == maxPrefixes {
		d.logger.Debug("prefix run too long", "address", inst.Address())
		return d.placeholder(buf, start, inst.Address(), format)
	}

	op := d.table.FindOpcode(buf)
	if op == nil || op.Len() > buf.Remaining() {
		d.logger.Debug("invalid opcode", "address", inst.Address(), "byte", buf.PeekByte(0))
		return d.placeholder(buf, start, inst.Address(), format)
	}

	inst.SetOpcode(op)
	inst.setSizes(opSize, addrSize)
	inst.SetSegmentOverride(seg)
	inst.SetPrefix(rep)
	buf.AdvanceInstructionPointer(op.Len())
	opcodeEnd := buf.InstructionPointer()

	if op.NeedsModRM() {
		inst.DecodeModRMByte(buf.NextByte())
	}
	for slot, p := range op.Params {
		if p.Kind == KindNone {
			continue
		}
		o, ok := inst.resolveOperand(buf, p)
		if !ok {
			d.logger.Debug("invalid operand encoding", "address", inst.Address(), "opcode", op.String())
			return d.placeholder(buf, start, inst.Address(), format)
		}
		inst.setOperand(slot, o)
	}

	inst.SetMachineCode(buf, start, opcodeEnd)
	buf.Seek(start + inst.Size())
	inst.Render(format)
	return inst
}

// placeholder rewinds to start and emits the byte there as data.
func (d *Disassembler) placeholder(buf *Buffer, start int, addr int64, format numfmt.Format) Instruction {
	var inst Instruction
	inst.SetAddress(addr)
	buf.Seek(start)
	buf.NextByte()
	inst.SetMachineCode(buf, start, start+1)
	inst.Render(format)
	return inst
}

// Disassemble decodes code based at base with the built-in table.
func Disassemble(code []byte, base int64, arch Arch, format numfmt.Format) []Instruction {
	return New().Disassemble(NewBufferFrom(code, base), 0, arch, format)
}
