package asm

// Buffer is a fixed-capacity byte block with a read cursor. Only the first
// CodeLength bytes are valid; every read outside them yields zero.
type Buffer struct {
	data []byte
	base int64
	size int // code length
	ip   int
}

// NewBuffer allocates a block of the given capacity with no valid code.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, capacity)}
}

// NewBufferFrom returns a buffer holding a copy of code, based at base.
func NewBufferFrom(code []byte, base int64) *Buffer {
	b := NewBuffer(len(code))
	b.Load(code)
	b.SetBaseAddress(base)
	return b
}

// Load copies code into the block, replacing its contents, and sets the
// code length to the number of bytes copied. The cursor is reset.
func (b *Buffer) Load(code []byte) int {
	n := copy(b.data, code)
	clear(b.data[n:])
	b.size = n
	b.ip = 0
	return n
}

func (b *Buffer) Capacity() int { return len(b.data) }

func (b *Buffer) CodeLength() int { return b.size }

// SetCodeLength bounds the valid part of the block to n bytes, clamped to
// the capacity.
func (b *Buffer) SetCodeLength(n int) {
	b.size = clamp(n, 0, len(b.data))
}

func (b *Buffer) BaseAddress() int64 { return b.base }

func (b *Buffer) SetBaseAddress(a int64) { b.base = a }

// CurrentAddress is the base address plus the instruction pointer.
func (b *Buffer) CurrentAddress() int64 { return b.base + int64(b.ip) }

func (b *Buffer) InstructionPointer() int { return b.ip }

func (b *Buffer) ResetInstructionPointer() { b.ip = 0 }

// Seek moves the cursor to ip, clamped to [0, capacity].
func (b *Buffer) Seek(ip int) {
	b.ip = clamp(ip, 0, len(b.data))
}

// AdvanceInstructionPointer moves the cursor forward by n, never past
// the capacity.
func (b *Buffer) AdvanceInstructionPointer(n int) {
	if n > len(b.data)-b.ip {
		n = len(b.data) - b.ip
	}
	b.Seek(b.ip + n)
}

// Remaining reports how many valid bytes are left at the cursor.
func (b *Buffer) Remaining() int {
	if b.ip >= b.size {
		return 0
	}
	return b.size - b.ip
}

// PeekByte returns the byte offset bytes past the cursor without moving
// it, or 0 outside the valid code.
func (b *Buffer) PeekByte(offset int) byte {
	i := b.ip + offset
	if i < 0 || i >= b.size || i >= len(b.data) {
		return 0
	}
	return b.data[i]
}

// NextByte returns the byte at the cursor and moves past it. The cursor
// advances by one even when the read is past the end of the code.
func (b *Buffer) NextByte() byte {
	v := b.PeekByte(0)
	b.AdvanceInstructionPointer(1)
	return v
}

// ReadValue reads a little-endian value of size bytes (1 to 8) and moves
// the cursor past it. A read that would cross the code length yields 0;
// the cursor still advances so repeated calls always make progress.
// Other sizes return 0 and leave the cursor alone.
func (b *Buffer) ReadValue(size int) uint64 {
	if size < 1 || size > 8 {
		return 0
	}
	var v uint64
	if b.ip+size <= b.size {
		for i := size - 1; i >= 0; i-- {
			v = v<<8 | uint64(b.data[b.ip+i])
		}
	}
	b.AdvanceInstructionPointer(size)
	return v
}

// Slice returns the valid bytes in [from, to), clipped to the code length.
// The result aliases the block.
func (b *Buffer) Slice(from, to int) []byte {
	from = clamp(from, 0, b.size)
	to = clamp(to, from, b.size)
	return b.data[from:to]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
