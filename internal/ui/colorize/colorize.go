// Package colorize highlights x86 listings for terminal output.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Enabled reports whether colour output is allowed. HEXDIS_NO_COLOR and
// NO_COLOR turn it off.
func Enabled() bool {
	return os.Getenv("HEXDIS_NO_COLOR") == "" && os.Getenv("NO_COLOR") == ""
}

// Disable turns colour off for the rest of the process.
func Disable() {
	os.Setenv("HEXDIS_NO_COLOR", "1")
}

// getAssemblyLexer returns the Intel-syntax lexer with fallbacks
func getAssemblyLexer() chroma.Lexer {
	for _, name := range []string{"nasm", "tasm", "gas"} {
		if lexer := lexers.Get(name); lexer != nil {
			return chroma.Coalesce(lexer)
		}
	}
	return nil
}

// getDisasmStyle returns the disassembly style with fallbacks
func getDisasmStyle() *chroma.Style {
	for _, name := range []string{"disasm-dark", "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Assembly highlights instruction text, one instruction per line.
func Assembly(code string) (string, error) {
	if !Enabled() {
		return code, nil
	}
	lexer := getAssemblyLexer()
	if lexer == nil {
		return code, nil
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}
	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getDisasmStyle(), iterator); err != nil {
		return code, err
	}
	return buf.String(), nil
}

// Line colours one canonical listing line: the address in gray, the byte
// column in teal and the instruction through the lexer. Lines that do not
// look like listing lines are highlighted whole.
func Line(line string) string {
	if !Enabled() {
		return line
	}

	addr, rest, ok := strings.Cut(line, "  ")
	if !ok || !isHex(addr) {
		return assemblyLine(line)
	}
	hexBytes, text := splitBytes(rest)

	return fmt.Sprintf("\033[38;2;79;79;79m%s\033[0m  \033[38;2;124;156;157m%s\033[0m%s",
		addr, hexBytes, assemblyLine(text))
}

// splitBytes separates the byte column, including its padding and the
// two-space gap, from the instruction text.
func splitBytes(s string) (string, string) {
	i := 0
	for i+1 < len(s) {
		switch {
		case s[i] == ' ':
			i++
		case isUpperHex(s[i]) && isUpperHex(s[i+1]) && (i+2 == len(s) || s[i+2] == ' '):
			i += 2
		default:
			return s[:i], s[i:]
		}
	}
	return s, ""
}

func assemblyLine(text string) string {
	out, err := Assembly(text)
	if err != nil {
		return text
	}
	return strings.ReplaceAll(out, "\n", "")
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHexChar(s[i]) {
			return false
		}
	}
	return true
}

// isUpperHex matches the digits of the byte column. Mnemonics are lower
// case, so "db" or "add" never look like bytes.
func isUpperHex(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'A' && ch <= 'F')
}

func isHexChar(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// Strip removes ANSI escape sequences.
func Strip(s string) string {
	var result strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}
