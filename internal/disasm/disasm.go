// Package disasm defines a common instruction representation used
// across the engine, the reference decoder and the listing writers.
package disasm

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Inst is a simplified decoded instruction.
type Inst struct {
	VA   int64  // address of the instruction
	Text string // formatted disassembly string
	Op   string // mnemonic in lowercase
	Raw  []byte // every byte the instruction consumed
}

// Stream is a linear sequence of instructions.
type Stream []Inst

// Size is the total number of bytes covered by the stream.
func (s Stream) Size() int {
	n := 0
	for _, in := range s {
		n += len(in.Raw)
	}
	return n
}

// MaxRaw is the longest instruction encoding in the stream.
func (s Stream) MaxRaw() int {
	n := 0
	for _, in := range s {
		n = max(n, len(in.Raw))
	}
	return n
}

// Line renders one listing line with the byte column padded to width
// bytes, without the trailing newline.
func (in Inst) Line(width int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%016X  ", uint64(in.VA))
	for i := 0; i < width; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if i < len(in.Raw) {
			fmt.Fprintf(&sb, "%02X", in.Raw[i])
		} else {
			sb.WriteString("  ")
		}
	}
	sb.WriteString("  ")
	sb.WriteString(in.Text)
	return sb.String()
}

// WriteListing writes the canonical listing: address, bytes padded to
// the longest instruction of the batch, then the text, one per line.
func (s Stream) WriteListing(w io.Writer) error {
	bw := bufio.NewWriter(w)
	width := s.MaxRaw()
	for _, in := range s {
		if _, err := bw.WriteString(in.Line(width)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Listing returns the canonical listing as a string.
func (s Stream) Listing() string {
	var sb strings.Builder
	_ = s.WriteListing(&sb)
	return sb.String()
}

// Lines returns the listing split into lines, for viewers that style
// each line on its own.
func (s Stream) Lines() []string {
	width := s.MaxRaw()
	lines := make([]string, len(s))
	for i, in := range s {
		lines[i] = in.Line(width)
	}
	return lines
}
