package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/arch/x86/x86asm"
	"golang.org/x/sync/errgroup"

	"hexdis/internal/asm"
	"hexdis/internal/elfx"
	"hexdis/internal/numfmt"
	"hexdis/internal/source"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <file>...",
		Short: "Cross-check instruction lengths against the Go x86 decoder",
		Long: `Verify walks each file with the hexdis engine and decodes the same offsets
with golang.org/x/arch. It reports instructions whose lengths disagree, and
opcodes that the reference decodes but hexdis leaves as db. Only length
disagreements make the command fail.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runVerify,
	}
	cmd.Flags().IntP("jobs", "J", runtime.NumCPU(), "Files checked in parallel")
	cmd.Flags().BoolP("verbose", "v", false, "List every disagreement")
	return cmd
}

// mismatch is one instruction where the two decoders disagree.
type mismatch struct {
	addr   int64
	bytes  []byte
	ours   string
	oursN  int
	theirs string
	refN   int
}

type verifyResult struct {
	name         string
	instructions int
	unknown      int // placeholders where the reference decodes
	mismatches   []mismatch
}

func runVerify(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	jobs, _ := cmd.Flags().GetInt("jobs")
	verbose, _ := cmd.Flags().GetBool("verbose")

	results := make([]verifyResult, len(args))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(jobs, 1))
	for i, path := range args {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			code, base, arch, err := loadForVerify(path, s)
			if err != nil {
				return err
			}
			results[i] = verifyCode(code, base, arch)
			results[i].name = path
			slog.Debug("verified", "file", path, "instructions", results[i].instructions, "mismatches", len(results[i].mismatches))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	total := 0
	for _, r := range results {
		writeVerifyResult(cmd.OutOrStdout(), r, verbose)
		total += len(r.mismatches)
	}
	if total > 0 {
		return fmt.Errorf("%d length mismatches", total)
	}
	return nil
}

func loadForVerify(path string, s settings) (code []byte, base int64, arch asm.Arch, err error) {
	if hasELFMagic(path) {
		im, err := elfx.Open(path)
		if err != nil {
			return nil, 0, 0, err
		}
		defer im.Close()
		arch = s.Arch
		if bits, ok := im.ArchBits(); ok && !s.archSet {
			arch = asm.Arch(bits)
		}
		text := im.TextBytes()
		return append([]byte(nil), text...), int64(im.Text.VA), arch, nil
	}
	src, err := source.Open(path, source.Options{})
	if err != nil {
		return nil, 0, 0, err
	}
	defer src.Close()
	data, err := src.Window(0, -1)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("verify %s: %w", path, err)
	}
	return append([]byte(nil), data...), int64(s.Base), s.Arch, nil
}

// verifyCode decodes code with both decoders at every instruction boundary
// hexdis produces.
func verifyCode(code []byte, base int64, arch asm.Arch) verifyResult {
	insts := asm.Disassemble(code, base, arch, numfmt.Hex)
	res := verifyResult{instructions: len(insts)}
	off := 0
	for _, inst := range insts {
		n := inst.Size()
		ref, err := x86asm.Decode(code[off:], int(arch))
		placeholder := inst.Mnemonic() == "db"
		switch {
		case err != nil:
			// Both agree there is nothing here, or hexdis knows an
			// encoding the reference rejects; neither is a length bug.
		case placeholder:
			res.unknown++
		case ref.Len != n:
			res.mismatches = append(res.mismatches, mismatch{
				addr:   inst.Address(),
				bytes:  code[off:min(off+max(n, ref.Len), len(code))],
				ours:   inst.Text(),
				oursN:  n,
				theirs: x86asm.IntelSyntax(ref, uint64(inst.Address()), nil),
				refN:   ref.Len,
			})
		}
		off += n
	}
	return res
}

func writeVerifyResult(w io.Writer, r verifyResult, verbose bool) {
	fmt.Fprintf(w, "%s: %d instructions, %d unknown to hexdis, %d length mismatches\n",
		r.name, r.instructions, r.unknown, len(r.mismatches))
	if !verbose {
		return
	}
	for _, m := range r.mismatches {
		fmt.Fprintf(w, "  %08X  % X\n    hexdis %d: %s\n    x86asm %d: %s\n", m.addr, m.bytes, m.oursN, m.ours, m.refN, m.theirs)
	}
}
