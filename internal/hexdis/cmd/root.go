package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	pathpkg "path/filepath"
	"runtime/pprof"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"hexdis/internal/asm"
	"hexdis/internal/config"
	"hexdis/internal/disasm"
	"hexdis/internal/elfx"
	hlog "hexdis/internal/hexdis/log"
	"hexdis/internal/numfmt"
	"hexdis/internal/source"
	"hexdis/internal/ui/colorize"
)

// errNothingDecoded is returned when the selected window holds no code.
var errNothingDecoded = errors.New("nothing to disassemble")

var elfMagic = []byte("\x7fELF")

// settings is the configuration after flags are applied on top of the
// config file.
type settings struct {
	config.Config
	archSet bool // --arch was given, so it wins over the ELF header
	debug   bool
}

// input is the code window selected for disassembly.
type input struct {
	name  string
	code  []byte
	base  int64
	arch  asm.Arch
	syms  []elfx.Symbol
	close func() error
}

func (in *input) Close() error {
	if in.close == nil {
		return nil
	}
	return in.close()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hexdis [file]",
		Short: "x86 disassembler for raw code blocks",
		Long: `Hexdis disassembles 16-bit and 32-bit x86 machine code from raw dumps,
boot sectors, firmware images and ELF executables. On a terminal it opens an
interactive listing; otherwise it prints the canonical listing.`,
		Example: `
# Browse a boot sector
hexdis --arch x86_16 --base 0x7c00 boot.bin

# Print 20 instructions from offset 0x200 in decimal
hexdis -n --offset 0x200 --count 20 --format dec firmware.img

# Disassemble the text section of an i386 executable
hexdis --elf ./a.out

# Read from a pipe
xxd -r -p code.hex | hexdis --no-tui
  `,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveSettings(cmd)
			if err != nil {
				return err
			}
			hlog.Setup(s.LogLevel, s.debug)
			slog.Debug("settings", "arch", s.Arch, "format", s.Format, "base", s.Base, "count", s.MaxCount)
			return nil
		},
		RunE: runRoot,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default $XDG_CONFIG_HOME/hexdis/config.toml)")
	pf.StringP("arch", "a", "", "Decode mode: x86_16 or x86_32")
	pf.String("format", "", "Number format: hex, dec or bin")
	pf.String("base", "", "Address of the first byte of the input")
	pf.Int("count", 0, "Stop after this many instructions (0 for no limit)")
	pf.Bool("color", true, "Highlight listings on a terminal")
	pf.BoolP("debug", "d", false, "Debug")

	f := rootCmd.Flags()
	f.String("offset", "0", "Start this many bytes into the input")
	f.String("length", "", "Disassemble at most this many bytes")
	f.Bool("elf", false, "Treat the input as an ELF executable and use its text section")
	f.String("key", "", "XXTEA key to decrypt the input with")
	f.String("signature", "", "XXTEA signature expected in front of the plaintext")
	f.BoolP("no-tui", "n", false, "Print the listing instead of opening the viewer")
	f.BoolP("json", "j", false, "Print instructions as JSON")
	f.String("cpuprofile", "", "Write CPU profile to file")
	f.String("memprofile", "", "Write memory profile to file")

	rootCmd.AddCommand(newFollowCmd(), newVerifyCmd(), newSchemaCmd())
	return rootCmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	if cpuprofile, _ := cmd.Flags().GetString("cpuprofile"); cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}
	if memprofile, _ := cmd.Flags().GetString("memprofile"); memprofile != "" {
		defer func() {
			f, err := os.Create(memprofile)
			if err != nil {
				slog.Error("could not create memory profile", "error", err)
				return
			}
			defer f.Close()
			if err := pprof.WriteHeapProfile(f); err != nil {
				slog.Error("could not write memory profile", "error", err)
			}
		}()
	}

	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	in, err := openInput(cmd, args, s)
	if err != nil {
		return err
	}
	defer in.Close()

	noTUI, _ := cmd.Flags().GetBool("no-tui")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()
	tty := isTerminal(out)

	switch {
	case jsonOutput:
		return writeJSON(out, in, s)
	case noTUI || !tty:
		return writeListing(out, in, s, tty && s.Color)
	}

	program := tea.NewProgram(
		newModel(in, s),
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
	)
	if _, err := program.Run(); err != nil {
		slog.Error("TUI run error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// resolveSettings loads the config file and applies explicit flags.
func resolveSettings(cmd *cobra.Command) (settings, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return settings{}, err
	}
	s := settings{Config: cfg}
	s.debug, _ = flags.GetBool("debug")

	if flags.Changed("arch") {
		v, _ := flags.GetString("arch")
		if s.Arch, err = asm.ParseArch(v); err != nil {
			return settings{}, err
		}
		s.archSet = true
	}
	if flags.Changed("format") {
		v, _ := flags.GetString("format")
		if s.Format, err = numfmt.ParseFormat(v); err != nil {
			return settings{}, err
		}
	}
	if flags.Changed("base") {
		v, _ := flags.GetString("base")
		if s.Base, err = strconv.ParseUint(v, 0, 64); err != nil {
			return settings{}, fmt.Errorf("invalid --base %q: %w", v, err)
		}
	}
	if flags.Changed("count") {
		s.MaxCount, _ = flags.GetInt("count")
		if s.MaxCount < 0 {
			return settings{}, fmt.Errorf("invalid --count %d", s.MaxCount)
		}
	}
	if flags.Changed("color") {
		s.Color, _ = flags.GetBool("color")
	}
	if s.debug {
		s.LogLevel = "debug"
	}
	return s, nil
}

// parseSize parses a byte count or offset. Empty means unset (-1).
func parseSize(name, v string) (int64, error) {
	if v == "" {
		return -1, nil
	}
	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid --%s %q", name, v)
	}
	return n, nil
}

// openInput reads the file argument, or stdin when it is a pipe, and cuts
// out the window selected by --offset and --length.
func openInput(cmd *cobra.Command, args []string, s settings) (*input, error) {
	flags := cmd.Flags()
	offsetFlag, _ := flags.GetString("offset")
	lengthFlag, _ := flags.GetString("length")
	offset, err := parseSize("offset", offsetFlag)
	if err != nil {
		return nil, err
	}
	offset = max(offset, 0)
	length, err := parseSize("length", lengthFlag)
	if err != nil {
		return nil, err
	}
	key, _ := flags.GetString("key")
	signature, _ := flags.GetString("signature")
	forceELF, _ := flags.GetBool("elf")
	opts := source.Options{Key: []byte(key), Signature: []byte(signature)}

	var src *source.Source
	switch {
	case len(args) == 1 && args[0] != "-":
		path, err := pathpkg.Abs(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path: %w", err)
		}
		if key == "" && (forceELF || hasELFMagic(path)) {
			return openELF(path, offset, length, s, forceELF)
		}
		if src, err = source.Open(path, opts); err != nil {
			return nil, err
		}
	default:
		data, err := readStdin(cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		if src, err = source.FromBytes("stdin", data, opts); err != nil {
			return nil, err
		}
	}

	code, err := src.Window(offset, length)
	if err != nil {
		src.Close()
		return nil, err
	}
	slog.Debug("opened input", "name", src.Name(), "kind", src.Kind(), "size", src.Len(), "window", len(code))
	return &input{
		name:  src.Name(),
		code:  code,
		base:  int64(s.Base) + offset,
		arch:  s.Arch,
		close: src.Close,
	}, nil
}

func openELF(path string, offset, length int64, s settings, forced bool) (*input, error) {
	im, err := elfx.Open(path)
	if err != nil {
		return nil, err
	}
	text := im.TextBytes()
	if offset > int64(len(text)) {
		im.Close()
		return nil, fmt.Errorf("%w: offset %d past %s (%d bytes)", source.ErrOutOfRange, offset, im.Text.Name, len(text))
	}
	text = text[offset:]
	if length >= 0 && length < int64(len(text)) {
		text = text[:length]
	}

	arch := s.Arch
	if !s.archSet {
		if bits, ok := im.ArchBits(); ok {
			arch = asm.Arch(bits)
		} else {
			slog.Warn("not an i386 image, decoding with the configured arch", "file", path, "machine", im.File.Machine, "arch", arch)
		}
	}
	slog.Debug("opened elf", "file", path, "section", im.Text.Name, "va", im.Text.VA, "size", len(text), "symbols", len(im.Syms), "forced", forced)
	return &input{
		name:  path,
		code:  text,
		base:  int64(im.Text.VA) + offset,
		arch:  arch,
		syms:  im.Syms,
		close: im.Close,
	}, nil
}

func hasELFMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(elfMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, elfMagic)
}

// readStdin reads piped input. An interactive stdin is a usage error.
func readStdin(r io.Reader) ([]byte, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(f.Fd()) {
		return nil, errors.New("usage: hexdis <file>, or pipe code on stdin")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return data, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// disassemble decodes the whole window.
func disassemble(in *input, s settings) disasm.Stream {
	d := asm.New(asm.WithLogger(hlog.Logger()))
	buf := asm.NewBufferFrom(in.code, in.base)
	return asm.Stream(d.Disassemble(buf, s.MaxCount, in.arch, s.Format))
}

func writeListing(w io.Writer, in *input, s settings, color bool) error {
	stream := disassemble(in, s)
	if len(stream) == 0 {
		return errNothingDecoded
	}
	if !color {
		return stream.WriteListing(w)
	}
	for _, line := range stream.Lines() {
		if _, err := fmt.Fprintln(w, colorize.Line(line)); err != nil {
			return err
		}
	}
	return nil
}

// JSONOutput is the --json document.
type JSONOutput struct {
	File         string     `json:"file"`
	Arch         string     `json:"arch"`
	Base         uint64     `json:"base"`
	Format       string     `json:"format"`
	Instructions []JSONInst `json:"instructions"`
}

type JSONInst struct {
	Address uint64 `json:"address"`
	Bytes   string `json:"bytes"`
	Text    string `json:"text"`
}

func writeJSON(w io.Writer, in *input, s settings) error {
	stream := disassemble(in, s)
	if len(stream) == 0 {
		return errNothingDecoded
	}
	doc := JSONOutput{
		File:         in.name,
		Arch:         in.arch.String(),
		Base:         uint64(in.base),
		Format:       strings.ToLower(s.Format.String()),
		Instructions: make([]JSONInst, len(stream)),
	}
	for i, inst := range stream {
		doc.Instructions[i] = JSONInst{
			Address: uint64(inst.VA),
			Bytes:   fmt.Sprintf("% X", inst.Raw),
			Text:    inst.Text,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// bypassFang reports whether the arguments ask for plain output, in which
// case fang's styled help and errors would only get in the way.
func bypassFang(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "--no-tui", "-n", "--json", "-j":
			return true
		}
	}
	return !term.IsTerminal(os.Stdout.Fd())
}

func Execute() {
	rootCmd := newRootCmd()
	defer hlog.Close()

	if bypassFang(os.Args[1:]) {
		if err := rootCmd.Execute(); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
