// Package elfx opens x86 ELF binaries, locates executable code and maps
// virtual addresses to file offsets.
package elfx

import (
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"sort"
	"syscall"

	"github.com/ianlancetaylor/demangle"
)

// ErrUnmapped is returned when a virtual address lies outside every
// PT_LOAD segment.
var ErrUnmapped = errors.New("elfx: address not mapped")

type Image struct {
	Path  string
	File  *elf.File
	All   []byte
	Loads []Seg
	Text  Section
	Syms  []Symbol
	f     *os.File
}

type Seg struct {
	Vaddr, Off, Filesz uint64
	Flags              elf.ProgFlag
}

type Section struct {
	Name          string
	VA, Off, Size uint64
}

// Symbol is a function symbol. Label is the demangled name, or Name when
// it does not demangle.
type Symbol struct {
	Name  string
	Label string
	Addr  uint64
	Size  uint64
}

func Open(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}

	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	all, err := syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	im := &Image{Path: path, File: f, All: all, f: of}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{
			Vaddr:  p.Vaddr,
			Off:    p.Off,
			Filesz: p.Filesz,
			Flags:  p.Flags,
		})
	}

	if s := f.Section(".text"); s != nil && s.Type != elf.SHT_NOBITS {
		im.Text = Section{s.Name, s.Addr, s.Offset, s.Size}
	}
	// Stripped of section headers: fall back to the first executable segment.
	if im.Text.Size == 0 {
		for _, l := range im.Loads {
			if l.Flags&elf.PF_X != 0 && l.Filesz > 0 {
				im.Text = Section{"LOAD(exec)", l.Vaddr, l.Off, l.Filesz}
				break
			}
		}
	}

	im.loadSymbols()
	return im, nil
}

// Close unmaps the memory and closes the underlying files.
func (im *Image) Close() error {
	var errs []error
	if im.All != nil {
		errs = append(errs, syscall.Munmap(im.All))
		im.All = nil
	}
	if im.f != nil {
		errs = append(errs, im.f.Close())
		im.f = nil
	}
	if im.File != nil {
		errs = append(errs, im.File.Close())
		im.File = nil
	}
	return errors.Join(errs...)
}

// ArchBits is the default operand width of the machine the image targets:
// 32 for EM_386. ok is false for anything else.
func (im *Image) ArchBits() (bits int, ok bool) {
	if im.File.Machine == elf.EM_386 && im.File.Class == elf.ELFCLASS32 {
		return 32, true
	}
	return 0, false
}

// Entry is the image entry point.
func (im *Image) Entry() uint64 { return im.File.Entry }

// VA2Off translates a virtual address into a file offset
// using PT_LOAD segments. It returns false if VA is unmapped.
func (im *Image) VA2Off(va uint64) (uint64, bool) {
	for _, l := range im.Loads {
		if va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return l.Off + (va - l.Vaddr), true
		}
	}
	return 0, false
}

// Off2VA is the inverse of VA2Off.
func (im *Image) Off2VA(off uint64) (uint64, bool) {
	for _, l := range im.Loads {
		if off >= l.Off && off < l.Off+l.Filesz {
			return l.Vaddr + (off - l.Off), true
		}
	}
	return 0, false
}

// SliceVA returns a subslice of the mapped file corresponding to the
// virtual address range [va, va+size), shortened to the end of the
// segment holding va.
func (im *Image) SliceVA(va, size uint64) ([]byte, error) {
	for _, l := range im.Loads {
		if va < l.Vaddr || va >= l.Vaddr+l.Filesz {
			continue
		}
		off := l.Off + (va - l.Vaddr)
		end := min(off+size, l.Off+l.Filesz, uint64(len(im.All)))
		if off > end {
			return nil, fmt.Errorf("%w: %#x", ErrUnmapped, va)
		}
		return im.All[off:end], nil
	}
	return nil, fmt.Errorf("%w: %#x", ErrUnmapped, va)
}

// TextBytes returns the code of the text section.
func (im *Image) TextBytes() []byte {
	end := min(im.Text.Off+im.Text.Size, uint64(len(im.All)))
	if im.Text.Off >= end {
		return nil
	}
	return im.All[im.Text.Off:end]
}

// SymbolAt returns the function symbol covering va, or the nearest one
// below it when sizes are unknown.
func (im *Image) SymbolAt(va uint64) (Symbol, bool) {
	i := sort.Search(len(im.Syms), func(i int) bool { return im.Syms[i].Addr > va })
	if i == 0 {
		return Symbol{}, false
	}
	s := im.Syms[i-1]
	if s.Size != 0 && va >= s.Addr+s.Size {
		return Symbol{}, false
	}
	return s, true
}

// loadSymbols collects function symbols from .symtab, falling back to
// .dynsym for stripped binaries.
func (im *Image) loadSymbols() {
	syms, err := im.File.Symbols()
	if err != nil || len(syms) == 0 {
		syms, err = im.File.DynamicSymbols()
		if err != nil {
			return
		}
	}

	seen := make(map[uint64]bool)
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 || seen[s.Value] {
			continue
		}
		seen[s.Value] = true
		im.Syms = append(im.Syms, Symbol{
			Name:  s.Name,
			Label: Label(s.Name),
			Addr:  s.Value,
			Size:  s.Size,
		})
	}
	sort.Slice(im.Syms, func(i, j int) bool { return im.Syms[i].Addr < im.Syms[j].Addr })
}

// Label demangles a C++ symbol name, returning name unchanged when it is
// not mangled.
func Label(name string) string {
	if d := demangle.Filter(name); d != "" {
		return d
	}
	return name
}
