package asm

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"hexdis/internal/numfmt"
)

// escape introduces the two- and three-byte opcode spaces.
const escape = 0x0F

// OperandKind says where an operand comes from in the encoding.
type OperandKind uint8

const (
	KindNone   OperandKind = iota
	KindRM                 // ModRM r/m: register or memory
	KindMem                // ModRM r/m, memory forms only
	KindReg                // ModRM reg: general register
	KindRegRM              // ModRM r/m read as a register whatever mod says
	KindSeg                // ModRM reg: segment register
	KindCtrl               // ModRM reg: control register
	KindDebug              // ModRM reg: debug register
	KindOpReg              // register in the low three bits of the opcode
	KindImm                // immediate
	KindImmS               // byte immediate sign-extended to the operand size
	KindRel                // relative branch displacement
	KindMoffs              // direct memory offset of address size
	KindFar                // direct far pointer, offset then selector
)

// OperandSize is the size class of an operand.
type OperandSize uint8

const (
	SizeAny   OperandSize = iota // don't care
	SizeByte
	SizeWord
	SizeDword
	SizeQword
	SizeVar // word or dword, following the operand size
	SizeFar // segment:offset pointer, 4 or 6 bytes
)

// width resolves a size class against the effective operand size. It is
// zero for SizeAny.
func (s OperandSize) width(opSize numfmt.Width) numfmt.Width {
	switch s {
	case SizeByte:
		return numfmt.Byte
	case SizeWord:
		return numfmt.Word
	case SizeDword:
		return numfmt.Dword
	case SizeQword:
		return numfmt.Qword
	case SizeVar:
		return opSize
	case SizeFar:
		return opSize + numfmt.Word
	}
	return 0
}

// Param is the static description of one operand slot.
type Param struct {
	Kind OperandKind
	Size OperandSize
}

func (p Param) usesModRM() bool {
	switch p.Kind {
	case KindRM, KindMem, KindReg, KindRegRM, KindSeg, KindCtrl, KindDebug:
		return true
	}
	return false
}

// MaxOperands is the number of operand slots in a descriptor.
const MaxOperands = 3

// Flags are per-descriptor rendering hints.
type Flags uint8

const (
	// FlagRepe spells a 0xF3 prefix "repe" instead of "rep".
	FlagRepe Flags = 1 << iota
	// FlagAddrTemplate picks the template by address size, as for jcxz.
	FlagAddrTemplate
)

// Opcode describes one instruction encoding. Descriptors are built once
// into a Table and never modified afterwards.
type Opcode struct {
	Key    [3]byte
	KeyLen int
	// Group is the ModRM reg value that selects this descriptor within an
	// extension group, or -1 when the descriptor is not grouped.
	Group int8

	Mnemonic16 string
	Mnemonic32 string
	Params     [MaxOperands]Param
	Flags      Flags
}

// Len is the number of opcode bytes, excluding any ModRM byte.
func (o *Opcode) Len() int { return o.KeyLen }

// Bytes returns the opcode key.
func (o *Opcode) Bytes() []byte { return o.Key[:o.KeyLen] }

// Grouped reports whether the descriptor is selected by a ModRM reg value.
func (o *Opcode) Grouped() bool { return o.Group >= 0 }

// Template returns the mnemonic template for an operand width.
func (o *Opcode) Template(opSize numfmt.Width) string {
	if opSize == numfmt.Word {
		return o.Mnemonic16
	}
	return o.Mnemonic32
}

// Name is the bare mnemonic of the 32-bit template.
func (o *Opcode) Name() string {
	name, _, _ := strings.Cut(o.Mnemonic32, " ")
	return name
}

// NeedsModRM reports whether decoding reads a ModRM byte after the opcode.
func (o *Opcode) NeedsModRM() bool {
	if o.Grouped() {
		return true
	}
	for _, p := range o.Params {
		if p.usesModRM() {
			return true
		}
	}
	return false
}

// NumOperands counts the used operand slots.
func (o *Opcode) NumOperands() int {
	n := 0
	for _, p := range o.Params {
		if p.Kind != KindNone {
			n++
		}
	}
	return n
}

func (o *Opcode) String() string {
	var sb strings.Builder
	for i, b := range o.Bytes() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	if o.Grouped() {
		fmt.Fprintf(&sb, " /%d", o.Group)
	}
	sb.WriteString(" ")
	sb.WriteString(o.Name())
	return sb.String()
}

type group [8]*Opcode

// Table is the decode tree. It is read-only once built and safe for
// concurrent lookups.
type Table struct {
	one      [256]*Opcode
	oneGroup [256]*group
	two      [256]*Opcode
	twoGroup [256]*group
	three    map[[2]byte]*Opcode // keyed by the two bytes after 0x0F
	count    int
}

// NewTable indexes the given descriptors. Overlapping keys are an error.
func NewTable(ops []Opcode) (*Table, error) {
	t := &Table{three: make(map[[2]byte]*Opcode)}
	for i := range ops {
		op := &ops[i]
		if err := t.insert(op); err != nil {
			return nil, fmt.Errorf("opcode %d (%s): %w", i, op, err)
		}
		t.count++
	}
	return t, nil
}

func (t *Table) insert(op *Opcode) error {
	k := op.Key
	switch {
	case op.KeyLen == 1 && k[0] != escape:
		return place(&t.one[k[0]], &t.oneGroup[k[0]], op)
	case op.KeyLen == 2 && k[0] == escape:
		return place(&t.two[k[1]], &t.twoGroup[k[1]], op)
	case op.KeyLen == 3 && k[0] == escape && !op.Grouped():
		key := [2]byte{k[1], k[2]}
		if t.three[key] != nil {
			return errors.New("duplicate key")
		}
		t.three[key] = op
		return nil
	}
	return errors.New("unsupported key shape")
}

func place(single **Opcode, grp **group, op *Opcode) error {
	if !op.Grouped() {
		if *single != nil || *grp != nil {
			return errors.New("duplicate key")
		}
		*single = op
		return nil
	}
	if op.Group > 7 || *single != nil {
		return errors.New("bad group entry")
	}
	if *grp == nil {
		*grp = new(group)
	}
	if (*grp)[op.Group] != nil {
		return errors.New("duplicate group entry")
	}
	(*grp)[op.Group] = op
	return nil
}

// Len is the number of descriptors in the table.
func (t *Table) Len() int { return t.count }

// FindOpcode classifies the bytes at the cursor without moving it. It
// returns nil when no descriptor matches. Three-byte matches win over the
// two-byte group sharing their prefix.
func (t *Table) FindOpcode(buf *Buffer) *Opcode {
	b0 := buf.PeekByte(0)
	if b0 != escape {
		if g := t.oneGroup[b0]; g != nil {
			return g[modrmReg(buf.PeekByte(1))]
		}
		return t.one[b0]
	}
	b1 := buf.PeekByte(1)
	if op := t.three[[2]byte{b1, buf.PeekByte(2)}]; op != nil {
		return op
	}
	if g := t.twoGroup[b1]; g != nil {
		return g[modrmReg(buf.PeekByte(2))]
	}
	return t.two[b1]
}

// Lookup is FindOpcode over a plain byte slice.
func (t *Table) Lookup(code []byte) *Opcode {
	return t.FindOpcode(NewBufferFrom(code, 0))
}

// DefaultTable returns the built-in opcode table, building it on first use.
var DefaultTable = sync.OnceValue(func() *Table {
	t, err := NewTable(opcodeList())
	if err != nil {
		panic("asm: bad built-in opcode table: " + err.Error())
	}
	return t
})
