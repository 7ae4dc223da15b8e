package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"

	"hexdis/internal/asm"
	hlog "hexdis/internal/hexdis/log"
)

func newFollowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "follow <file>",
		Short: "Disassemble hex lines as they are appended to a file",
		Long: `Follow watches a text file of hex encoded machine code, one block per line,
and prints the listing of every new line. Addresses continue from line to
line, starting at --base. Text after '#' or ';' is ignored.`,
		Example: `
# Watch a trace written by an emulator
hexdis follow --arch x86_16 --base 0x7c00 trace.hex`,
		Args: cobra.ExactArgs(1),
		RunE: runFollow,
	}
	cmd.Flags().Bool("from-end", false, "Skip lines already in the file")
	cmd.Flags().Bool("no-follow", false, "Stop at the end of the file")
	return cmd
}

func runFollow(cmd *cobra.Command, args []string) error {
	s, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	fromEnd, _ := cmd.Flags().GetBool("from-end")
	noFollow, _ := cmd.Flags().GetBool("no-follow")

	cfg := tail.Config{
		Follow:    !noFollow,
		ReOpen:    !noFollow,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	}
	if fromEnd {
		cfg.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}
	t, err := tail.TailFile(args[0], cfg)
	if err != nil {
		return fmt.Errorf("follow %s: %w", args[0], err)
	}
	defer t.Cleanup()

	ctx := cmd.Context()
	f := follower{
		d:    asm.New(asm.WithLogger(hlog.Logger())),
		s:    s,
		addr: int64(s.Base),
		out:  cmd.OutOrStdout(),
	}
	for {
		select {
		case <-ctx.Done():
			return t.Stop()
		case line, ok := <-t.Lines:
			if !ok {
				return nil
			}
			if line.Err != nil {
				return fmt.Errorf("follow %s: %w", args[0], line.Err)
			}
			if err := f.feed(line.Num, line.Text); err != nil {
				return err
			}
		}
	}
}

// follower disassembles hex lines with addresses running across lines.
type follower struct {
	d    *asm.Disassembler
	s    settings
	addr int64
	out  io.Writer
}

func (f *follower) feed(num int, text string) error {
	code, err := parseHexLine(text)
	if err != nil {
		slog.Warn("skipping line", "line", num, "error", err)
		return nil
	}
	if len(code) == 0 {
		return nil
	}
	stream := asm.Stream(f.d.Disassemble(asm.NewBufferFrom(code, f.addr), f.s.MaxCount, f.s.Arch, f.s.Format))
	f.addr += int64(len(code))
	return stream.WriteListing(f.out)
}

// parseHexLine decodes a line such as "55 89e5 0x83 EC08 ; prologue".
func parseHexLine(line string) ([]byte, error) {
	if i := strings.IndexAny(line, "#;"); i >= 0 {
		line = line[:i]
	}
	var sb strings.Builder
	for _, field := range strings.Fields(line) {
		field = strings.TrimPrefix(strings.TrimPrefix(field, "0x"), "0X")
		sb.WriteString(field)
	}
	digits := sb.String()
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits in %q", strings.TrimSpace(line))
	}
	return hex.DecodeString(digits)
}
