package disasm

import (
	"strings"
	"testing"
)

func TestListingPadsToWidestInstruction(t *testing.T) {
	s := Stream{
		{VA: 0x10, Text: "nop", Raw: []byte{0x90}},
		{VA: 0x11, Text: "mov eax, 0x00000001", Raw: []byte{0xB8, 0x01, 0x00, 0x00, 0x00}},
	}
	want := "0000000000000010  90              nop\n" +
		"0000000000000011  B8 01 00 00 00  mov eax, 0x00000001\n"
	if got := s.Listing(); got != want {
		t.Errorf("Listing() =\n%q\nwant\n%q", got, want)
	}
	if s.MaxRaw() != 5 || s.Size() != 6 {
		t.Errorf("MaxRaw() = %d, Size() = %d", s.MaxRaw(), s.Size())
	}
}

func TestLinesMatchListing(t *testing.T) {
	s := Stream{
		{VA: 0x7C00, Text: "cli", Raw: []byte{0xFA}},
		{VA: 0x7C01, Text: "xor ax, ax", Raw: []byte{0x31, 0xC0}},
	}
	lines := s.Lines()
	if got := strings.Join(lines, "\n") + "\n"; got != s.Listing() {
		t.Errorf("Lines() and Listing() disagree:\n%q\n%q", got, s.Listing())
	}
}

func TestEmptyStream(t *testing.T) {
	var s Stream
	if s.Listing() != "" || len(s.Lines()) != 0 {
		t.Error("empty stream should render nothing")
	}
}
