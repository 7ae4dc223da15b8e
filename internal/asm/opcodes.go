package asm

import "strings"

// Operand shorthands, named after the Intel manual's operand codes.
var (
	eb  = Param{KindRM, SizeByte}
	ew  = Param{KindRM, SizeWord}
	ev  = Param{KindRM, SizeVar}
	gb  = Param{KindReg, SizeByte}
	gw  = Param{KindReg, SizeWord}
	gv  = Param{KindReg, SizeVar}
	sw  = Param{KindSeg, SizeWord}
	m   = Param{KindMem, SizeAny}
	mp  = Param{KindMem, SizeFar}
	mq  = Param{KindMem, SizeQword}
	rd  = Param{KindRegRM, SizeDword}
	cd  = Param{KindCtrl, SizeDword}
	dd  = Param{KindDebug, SizeDword}
	ib  = Param{KindImm, SizeByte}
	iw  = Param{KindImm, SizeWord}
	iv  = Param{KindImm, SizeVar}
	ibs = Param{KindImmS, SizeVar}
	jb  = Param{KindRel, SizeByte}
	jv  = Param{KindRel, SizeVar}
	ob  = Param{KindMoffs, SizeByte}
	ov  = Param{KindMoffs, SizeVar}
	zb  = Param{KindOpReg, SizeByte}
	zv  = Param{KindOpReg, SizeVar}
	zd  = Param{KindOpReg, SizeDword}
	ap  = Param{KindFar, SizeFar}
)

// Condition code suffixes in encoding order.
var conds = [16]string{"o", "no", "b", "ae", "e", "ne", "be", "a", "s", "ns", "p", "np", "l", "ge", "le", "g"}

// newOpcode builds a descriptor. A template of the form "a|b" gives the
// 16-bit and 32-bit spellings; a single template is used for both.
func newOpcode(key []byte, grp int8, tmpl string, params []Param) Opcode {
	op := Opcode{KeyLen: len(key), Group: grp}
	copy(op.Key[:], key)
	op.Mnemonic16, op.Mnemonic32 = tmpl, tmpl
	if t16, t32, ok := strings.Cut(tmpl, "|"); ok {
		op.Mnemonic16, op.Mnemonic32 = t16, t32
	}
	copy(op.Params[:], params)
	return op
}

func op1(b byte, tmpl string, params ...Param) Opcode {
	return newOpcode([]byte{b}, -1, tmpl, params)
}

func grp1(b byte, reg int8, tmpl string, params ...Param) Opcode {
	return newOpcode([]byte{b}, reg, tmpl, params)
}

func op2(b byte, tmpl string, params ...Param) Opcode {
	return newOpcode([]byte{escape, b}, -1, tmpl, params)
}

func grp2(b byte, reg int8, tmpl string, params ...Param) Opcode {
	return newOpcode([]byte{escape, b}, reg, tmpl, params)
}

func op3(b1, b2 byte, tmpl string) Opcode {
	return newOpcode([]byte{escape, b1, b2}, -1, tmpl, nil)
}

func (o Opcode) with(f Flags) Opcode {
	o.Flags |= f
	return o
}

// arith is the add/or/adc/sbb/and/sub/xor/cmp family at base.
func arith(base byte, name string) []Opcode {
	return []Opcode{
		op1(base+0, name+" %s, %s", eb, gb),
		op1(base+1, name+" %s, %s", ev, gv),
		op1(base+2, name+" %s, %s", gb, eb),
		op1(base+3, name+" %s, %s", gv, ev),
		op1(base+4, name+" al, %s", ib),
		op1(base+5, name+" ax, %s|"+name+" eax, %s", iv),
	}
}

// extension builds all eight members of a one-byte group from a name list;
// empty names leave the slot undefined.
func extension(b byte, names [8]string, suffix string, params ...Param) []Opcode {
	var ops []Opcode
	for reg, name := range names {
		if name == "" {
			continue
		}
		ops = append(ops, grp1(b, int8(reg), name+suffix, params...))
	}
	return ops
}

var (
	aluNames   = [8]string{"add", "or", "adc", "sbb", "and", "sub", "xor", "cmp"}
	shiftNames = [8]string{"rol", "ror", "rcl", "rcr", "shl", "shr", "sal", "sar"}
)

func opcodeList() []Opcode {
	var ops []Opcode
	add := func(o ...Opcode) { ops = append(ops, o...) }

	for i, name := range aluNames {
		add(arith(byte(i*8), name)...)
	}

	add(
		op1(0x06, "push es"), op1(0x07, "pop es"),
		op1(0x0E, "push cs"),
		op1(0x16, "push ss"), op1(0x17, "pop ss"),
		op1(0x1E, "push ds"), op1(0x1F, "pop ds"),
		op1(0x27, "daa"), op1(0x2F, "das"), op1(0x37, "aaa"), op1(0x3F, "aas"),
	)

	for r := byte(0); r < 8; r++ {
		add(
			op1(0x40+r, "inc %s", zv),
			op1(0x48+r, "dec %s", zv),
			op1(0x50+r, "push %s", zv),
			op1(0x58+r, "pop %s", zv),
			op1(0xB0+r, "mov %s, %s", zb, ib),
			op1(0xB8+r, "mov %s, %s", zv, iv),
		)
		if r > 0 {
			add(op1(0x90+r, "xchg ax, %s|xchg eax, %s", zv))
		}
	}

	add(
		op1(0x60, "pusha|pushad"),
		op1(0x61, "popa|popad"),
		op1(0x62, "bound %s, %s", gv, m),
		op1(0x63, "arpl %s, %s", ew, gw),
		op1(0x68, "push %s", iv),
		op1(0x69, "imul %s, %s, %s", gv, ev, iv),
		op1(0x6A, "push %s", ibs),
		op1(0x6B, "imul %s, %s, %s", gv, ev, ibs),
		op1(0x6C, "insb"),
		op1(0x6D, "insw|insd"),
		op1(0x6E, "outsb"),
		op1(0x6F, "outsw|outsd"),
	)

	for cc, name := range conds {
		add(
			op1(0x70+byte(cc), "j"+name+" %s", jb),
			op2(0x40+byte(cc), "cmov"+name+" %s, %s", gv, ev),
			op2(0x80+byte(cc), "j"+name+" %s", jv),
			op2(0x90+byte(cc), "set"+name+" %s", eb),
		)
	}

	add(extension(0x80, aluNames, " %s, %s", eb, ib)...)
	add(extension(0x81, aluNames, " %s, %s", ev, iv)...)
	add(extension(0x82, aluNames, " %s, %s", eb, ib)...)
	add(extension(0x83, aluNames, " %s, %s", ev, ibs)...)

	add(
		op1(0x84, "test %s, %s", eb, gb),
		op1(0x85, "test %s, %s", ev, gv),
		op1(0x86, "xchg %s, %s", eb, gb),
		op1(0x87, "xchg %s, %s", ev, gv),
		op1(0x88, "mov %s, %s", eb, gb),
		op1(0x89, "mov %s, %s", ev, gv),
		op1(0x8A, "mov %s, %s", gb, eb),
		op1(0x8B, "mov %s, %s", gv, ev),
		op1(0x8C, "mov %s, %s", ew, sw),
		op1(0x8D, "lea %s, %s", gv, m),
		op1(0x8E, "mov %s, %s", sw, ew),
		grp1(0x8F, 0, "pop %s", ev),
		op1(0x90, "nop"),
		op1(0x98, "cbw|cwde"),
		op1(0x99, "cwd|cdq"),
		op1(0x9A, "call far %s", ap),
		op1(0x9B, "wait"),
		op1(0x9C, "pushf|pushfd"),
		op1(0x9D, "popf|popfd"),
		op1(0x9E, "sahf"),
		op1(0x9F, "lahf"),

		op1(0xA0, "mov al, %s", ob),
		op1(0xA1, "mov ax, %s|mov eax, %s", ov),
		op1(0xA2, "mov %s, al", ob),
		op1(0xA3, "mov %s, ax|mov %s, eax", ov),
		op1(0xA4, "movsb"),
		op1(0xA5, "movsw|movsd"),
		op1(0xA6, "cmpsb").with(FlagRepe),
		op1(0xA7, "cmpsw|cmpsd").with(FlagRepe),
		op1(0xA8, "test al, %s", ib),
		op1(0xA9, "test ax, %s|test eax, %s", iv),
		op1(0xAA, "stosb"),
		op1(0xAB, "stosw|stosd"),
		op1(0xAC, "lodsb"),
		op1(0xAD, "lodsw|lodsd"),
		op1(0xAE, "scasb").with(FlagRepe),
		op1(0xAF, "scasw|scasd").with(FlagRepe),
	)

	add(extension(0xC0, shiftNames, " %s, %s", eb, ib)...)
	add(extension(0xC1, shiftNames, " %s, %s", ev, ib)...)
	add(extension(0xD0, shiftNames, " %s, 1", eb)...)
	add(extension(0xD1, shiftNames, " %s, 1", ev)...)
	add(extension(0xD2, shiftNames, " %s, cl", eb)...)
	add(extension(0xD3, shiftNames, " %s, cl", ev)...)

	add(
		op1(0xC2, "ret %s", iw),
		op1(0xC3, "ret"),
		op1(0xC4, "les %s, %s", gv, mp),
		op1(0xC5, "lds %s, %s", gv, mp),
		grp1(0xC6, 0, "mov %s, %s", eb, ib),
		grp1(0xC7, 0, "mov %s, %s", ev, iv),
		op1(0xC8, "enter %s, %s", iw, ib),
		op1(0xC9, "leave"),
		op1(0xCA, "retf %s", iw),
		op1(0xCB, "retf"),
		op1(0xCC, "int3"),
		op1(0xCD, "int %s", ib),
		op1(0xCE, "into"),
		op1(0xCF, "iretw|iretd"),
		op1(0xD4, "aam %s", ib),
		op1(0xD5, "aad %s", ib),
		op1(0xD6, "salc"),
		op1(0xD7, "xlatb"),

		op1(0xE0, "loopne %s", jb),
		op1(0xE1, "loope %s", jb),
		op1(0xE2, "loop %s", jb),
		op1(0xE3, "jcxz %s|jecxz %s", jb).with(FlagAddrTemplate),
		op1(0xE4, "in al, %s", ib),
		op1(0xE5, "in ax, %s|in eax, %s", ib),
		op1(0xE6, "out %s, al", ib),
		op1(0xE7, "out %s, ax|out %s, eax", ib),
		op1(0xE8, "call %s", jv),
		op1(0xE9, "jmp %s", jv),
		op1(0xEA, "jmp far %s", ap),
		op1(0xEB, "jmp %s", jb),
		op1(0xEC, "in al, dx"),
		op1(0xED, "in ax, dx|in eax, dx"),
		op1(0xEE, "out dx, al"),
		op1(0xEF, "out dx, ax|out dx, eax"),

		op1(0xF1, "int1"),
		op1(0xF4, "hlt"),
		op1(0xF5, "cmc"),
		op1(0xF8, "clc"),
		op1(0xF9, "stc"),
		op1(0xFA, "cli"),
		op1(0xFB, "sti"),
		op1(0xFC, "cld"),
		op1(0xFD, "std"),

		grp1(0xF6, 0, "test %s, %s", eb, ib),
		grp1(0xF6, 1, "test %s, %s", eb, ib),
		grp1(0xF7, 0, "test %s, %s", ev, iv),
		grp1(0xF7, 1, "test %s, %s", ev, iv),
	)
	unary := [8]string{"", "", "not", "neg", "mul", "imul", "div", "idiv"}
	add(extension(0xF6, unary, " %s", eb)...)
	add(extension(0xF7, unary, " %s", ev)...)

	add(
		grp1(0xFE, 0, "inc %s", eb),
		grp1(0xFE, 1, "dec %s", eb),
		grp1(0xFF, 0, "inc %s", ev),
		grp1(0xFF, 1, "dec %s", ev),
		grp1(0xFF, 2, "call %s", ev),
		grp1(0xFF, 3, "call far %s", mp),
		grp1(0xFF, 4, "jmp %s", ev),
		grp1(0xFF, 5, "jmp far %s", mp),
		grp1(0xFF, 6, "push %s", ev),
	)

	// Two-byte space.
	add(
		grp2(0x00, 0, "sldt %s", ew),
		grp2(0x00, 1, "str %s", ew),
		grp2(0x00, 2, "lldt %s", ew),
		grp2(0x00, 3, "ltr %s", ew),
		grp2(0x00, 4, "verr %s", ew),
		grp2(0x00, 5, "verw %s", ew),

		grp2(0x01, 0, "sgdt %s", m),
		grp2(0x01, 1, "sidt %s", m),
		grp2(0x01, 2, "lgdt %s", m),
		grp2(0x01, 3, "lidt %s", m),
		grp2(0x01, 4, "smsw %s", ew),
		grp2(0x01, 6, "lmsw %s", ew),
		grp2(0x01, 7, "invlpg %s", m),

		op3(0x01, 0xC8, "monitor"),
		op3(0x01, 0xC9, "mwait"),
		op3(0x01, 0xCA, "clac"),
		op3(0x01, 0xCB, "stac"),
		op3(0x01, 0xD0, "xgetbv"),
		op3(0x01, 0xD1, "xsetbv"),
		op3(0x01, 0xD5, "xend"),
		op3(0x01, 0xD6, "xtest"),
		op3(0x01, 0xF9, "rdtscp"),

		op2(0x02, "lar %s, %s", gv, ew),
		op2(0x03, "lsl %s, %s", gv, ew),
		op2(0x06, "clts"),
		op2(0x08, "invd"),
		op2(0x09, "wbinvd"),
		op2(0x0B, "ud2"),
		grp2(0x1F, 0, "nop %s", ev),
		op2(0x20, "mov %s, %s", rd, cd),
		op2(0x21, "mov %s, %s", rd, dd),
		op2(0x22, "mov %s, %s", cd, rd),
		op2(0x23, "mov %s, %s", dd, rd),
		op2(0x30, "wrmsr"),
		op2(0x31, "rdtsc"),
		op2(0x32, "rdmsr"),
		op2(0x33, "rdpmc"),
		op2(0x34, "sysenter"),
		op2(0x35, "sysexit"),

		op2(0xA0, "push fs"),
		op2(0xA1, "pop fs"),
		op2(0xA2, "cpuid"),
		op2(0xA3, "bt %s, %s", ev, gv),
		op2(0xA4, "shld %s, %s, %s", ev, gv, ib),
		op2(0xA5, "shld %s, %s, cl", ev, gv),
		op2(0xA8, "push gs"),
		op2(0xA9, "pop gs"),
		op2(0xAA, "rsm"),
		op2(0xAB, "bts %s, %s", ev, gv),
		op2(0xAC, "shrd %s, %s, %s", ev, gv, ib),
		op2(0xAD, "shrd %s, %s, cl", ev, gv),
		op2(0xAF, "imul %s, %s", gv, ev),
		op2(0xB0, "cmpxchg %s, %s", eb, gb),
		op2(0xB1, "cmpxchg %s, %s", ev, gv),
		op2(0xB2, "lss %s, %s", gv, mp),
		op2(0xB3, "btr %s, %s", ev, gv),
		op2(0xB4, "lfs %s, %s", gv, mp),
		op2(0xB5, "lgs %s, %s", gv, mp),
		op2(0xB6, "movzx %s, %s", gv, eb),
		op2(0xB7, "movzx %s, %s", gv, ew),
		grp2(0xBA, 4, "bt %s, %s", ev, ib),
		grp2(0xBA, 5, "bts %s, %s", ev, ib),
		grp2(0xBA, 6, "btr %s, %s", ev, ib),
		grp2(0xBA, 7, "btc %s, %s", ev, ib),
		op2(0xBB, "btc %s, %s", ev, gv),
		op2(0xBC, "bsf %s, %s", gv, ev),
		op2(0xBD, "bsr %s, %s", gv, ev),
		op2(0xBE, "movsx %s, %s", gv, eb),
		op2(0xBF, "movsx %s, %s", gv, ew),
		op2(0xC0, "xadd %s, %s", eb, gb),
		op2(0xC1, "xadd %s, %s", ev, gv),
		grp2(0xC7, 1, "cmpxchg8b %s", mq),
	)
	for r := byte(0); r < 8; r++ {
		add(op2(0xC8+r, "bswap %s", zd))
	}
	return ops
}
