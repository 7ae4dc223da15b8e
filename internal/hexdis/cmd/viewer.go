package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	pathpkg "path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/v2/list"
	"github.com/charmbracelet/bubbles/v2/spinner"
	"github.com/charmbracelet/bubbles/v2/textinput"
	"github.com/charmbracelet/bubbles/v2/viewport"
	tea "github.com/charmbracelet/bubbletea/v2"

	"hexdis/internal/asm"
	"hexdis/internal/disasm"
	"hexdis/internal/elfx"
	hlog "hexdis/internal/hexdis/log"
	"hexdis/internal/hexdis/styles"
	"hexdis/internal/numfmt"
	"hexdis/internal/ui/colorize"
)

type viewMode int

const (
	viewListing viewMode = iota
	viewSymbols
	viewGoto
)

type symbolItem struct {
	address uint64
	label   string
}

func (i symbolItem) FilterValue() string { return i.label }

type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, listItem list.Item) {
	i, ok := listItem.(symbolItem)
	if !ok {
		return
	}
	indicator, name := " ", styles.SymbolName.Render(i.label)
	if index == m.Index() {
		indicator, name = ">", styles.Selected.Render(i.label)
	}
	fmt.Fprintf(w, " %s  %s  %s", indicator, styles.SymbolAddr.Render(fmt.Sprintf("%08x", i.address)), name)
}

// pageMsg carries one decoded page.
type pageMsg struct {
	start  int
	next   int
	stream disasm.Stream
}

// decodePageCmd decodes up to count instructions starting start bytes into
// code. Every page gets a freshly seeked buffer, so pages can be decoded in
// any order.
func decodePageCmd(d *asm.Disassembler, code []byte, base int64, start, count int, arch asm.Arch, format numfmt.Format) tea.Cmd {
	return func() tea.Msg {
		buf := asm.NewBufferFrom(code, base)
		buf.Seek(start)
		insts := d.Disassemble(buf, count, arch, format)
		return pageMsg{start: start, next: buf.InstructionPointer(), stream: asm.Stream(insts)}
	}
}

type model struct {
	in       *input
	d        *asm.Disassembler
	arch     asm.Arch
	format   numfmt.Format
	pageSize int
	color    bool

	mode     viewMode
	viewport viewport.Model
	symbols  list.Model
	prompt   textinput.Model
	spinner  spinner.Model

	start   int   // offset of the current page
	next    int   // offset after the current page
	history []int // starts of earlier pages, for paging back
	page    disasm.Stream
	loading bool
	status  string

	width  int
	height int
}

func newModel(in *input, s settings) model {
	vp := viewport.New()
	vp.SetWidth(80)
	vp.SetHeight(22)

	items := make([]list.Item, 0, len(in.syms))
	for _, sym := range in.syms {
		items = append(items, symbolItem{address: sym.Addr, label: sym.Label})
	}
	symbols := list.New(items, itemDelegate{}, 80, 22)
	symbols.Title = "Symbols"
	symbols.Styles.Title = styles.Title
	symbols.SetShowStatusBar(false)

	ti := textinput.New()
	ti.Prompt = "goto 0x"
	ti.Placeholder = fmt.Sprintf("%x", in.base)
	ti.CharLimit = 16

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return model{
		in:       in,
		d:        asm.New(asm.WithLogger(hlog.Logger())),
		arch:     in.arch,
		format:   s.Format,
		pageSize: max(s.PageSize, 1),
		color:    s.Color && colorize.Enabled(),
		viewport: vp,
		symbols:  symbols,
		prompt:   ti,
		spinner:  sp,
		loading:  true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.decode(0), m.spinner.Tick)
}

func (m model) decode(start int) tea.Cmd {
	return decodePageCmd(m.d, m.in.code, m.in.base, start, m.pageSize, m.arch, m.format)
}

// redecode decodes the current page again after a mode or format change.
func (m *model) redecode() tea.Cmd {
	m.loading = true
	return tea.Batch(m.decode(m.start), m.spinner.Tick)
}

// jump moves to the page starting at va and resets the paging history.
func (m *model) jump(va uint64) tea.Cmd {
	off := int64(va) - m.in.base
	if off < 0 || off >= int64(len(m.in.code)) {
		m.status = fmt.Sprintf("0x%x is outside 0x%x-0x%x", va, m.in.base, m.in.base+int64(len(m.in.code)))
		return nil
	}
	m.history = m.history[:0]
	m.start = int(off)
	m.status = ""
	return m.redecode()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case pageMsg:
		m.loading = false
		m.start, m.next, m.page = msg.start, msg.next, msg.stream
		slog.Debug("decoded page", "start", msg.start, "next", msg.next, "count", len(msg.stream))
		m.updateContent()
		m.viewport.GotoTop()
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		if m.loading {
			m.updateContent()
			return m, cmd
		}
		return m, nil

	case tea.WindowSizeMsg:
		if msg.Width != m.width || msg.Height != m.height {
			m.width = msg.Width
			m.height = msg.Height
			m.viewport.SetWidth(msg.Width)
			m.viewport.SetHeight(msg.Height - 2)
			m.symbols.SetWidth(msg.Width)
			m.symbols.SetHeight(msg.Height - 2)
			m.updateContent()
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case viewGoto:
			switch msg.String() {
			case "esc":
				m.mode = viewListing
				m.prompt.Blur()
				return m, nil
			case "enter":
				m.mode = viewListing
				m.prompt.Blur()
				text := strings.TrimPrefix(strings.TrimSpace(m.prompt.Value()), "0x")
				m.prompt.SetValue("")
				va, err := strconv.ParseUint(text, 16, 64)
				if err != nil {
					m.status = fmt.Sprintf("bad address %q", text)
					m.updateContent()
					return m, nil
				}
				cmd = m.jump(va)
				m.updateContent()
				return m, cmd
			}
			m.prompt, cmd = m.prompt.Update(msg)
			return m, cmd

		case viewSymbols:
			if m.symbols.FilterState() == list.Filtering {
				if msg.String() == "ctrl+c" {
					return m, tea.Quit
				}
				m.symbols, cmd = m.symbols.Update(msg)
				return m, cmd
			}
			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "esc", "s":
				m.mode = viewListing
				return m, nil
			case "enter":
				if item, ok := m.symbols.SelectedItem().(symbolItem); ok {
					m.mode = viewListing
					cmd = m.jump(item.address)
					m.updateContent()
					return m, cmd
				}
				return m, nil
			}
			m.symbols, cmd = m.symbols.Update(msg)
			return m, cmd

		default:
			switch msg.String() {
			case "q", "ctrl+c":
				return m, tea.Quit
			case "g":
				m.mode = viewGoto
				return m, m.prompt.Focus()
			case "s":
				if len(m.in.syms) > 0 {
					m.mode = viewSymbols
				}
				return m, nil
			case "a":
				m.arch = m.arch.Toggle()
				return m, m.redecode()
			case "f":
				m.format = m.format.Next()
				return m, m.redecode()
			case "n", "pgdown", "space":
				if m.loading || m.next >= len(m.in.code) {
					return m, nil
				}
				m.history = append(m.history, m.start)
				m.start = m.next
				return m, m.redecode()
			case "p", "pgup", "b":
				if m.loading || len(m.history) == 0 {
					return m, nil
				}
				m.start = m.history[len(m.history)-1]
				m.history = m.history[:len(m.history)-1]
				return m, m.redecode()
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var content string
	switch m.mode {
	case viewSymbols:
		content = m.symbols.View()
	default:
		content = m.viewport.View()
	}

	var menu string
	switch m.mode {
	case viewSymbols:
		menu = " Enter: go to symbol • /: filter • Esc: back • Q: quit "
	case viewGoto:
		menu = m.prompt.View()
	default:
		menu = fmt.Sprintf(" %s %s • N/P: page • G: goto • A: arch • F: format", m.arch, strings.ToLower(m.format.String()))
		if len(m.in.syms) > 0 {
			menu += " • S: symbols"
		}
		menu += " • Q: quit "
	}
	return content + "\n" + styles.MenuBar.Width(m.width).Render(menu)
}

func (m *model) header() string {
	name := m.in.name
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := pathpkg.Rel(cwd, name); err == nil && !strings.HasPrefix(rel, "..") {
			name = rel
		}
	}
	lines := []string{
		"; " + name,
		fmt.Sprintf("; %s at 0x%08x, %d bytes", m.arch, m.in.base, len(m.in.code)),
	}
	if sym, ok := m.symbolAt(uint64(m.in.base) + uint64(m.start)); ok {
		lines = append(lines, "; in "+sym.Label)
	}
	return fmt.Sprintf("# hexdis\n\n```\n%s\n```", strings.Join(lines, "\n"))
}

func (m *model) symbolAt(va uint64) (elfx.Symbol, bool) {
	var best elfx.Symbol
	found := false
	for _, s := range m.in.syms {
		if s.Addr > va {
			break
		}
		if va < s.Addr+max(s.Size, 1) {
			best, found = s, true
		}
	}
	return best, found
}

// labels maps symbol addresses to their labels, for the current page.
func (m *model) labels() map[int64]string {
	if len(m.in.syms) == 0 || len(m.page) == 0 {
		return nil
	}
	lo, hi := m.page[0].VA, m.page[len(m.page)-1].VA
	out := make(map[int64]string)
	for _, s := range m.in.syms {
		va := int64(s.Addr)
		if va >= lo && va <= hi {
			out[va] = s.Label
		}
	}
	return out
}

func (m *model) updateContent() {
	width := m.width
	if width == 0 {
		width = 80
	}
	markdown := m.header()
	if m.loading {
		markdown += fmt.Sprintf("\n\n%s Decoding...", m.spinner.View())
	}
	var header string
	if renderer := styles.GetMarkdownRenderer(width - 2); renderer != nil {
		header, _ = renderer.Render(markdown)
	} else {
		header = markdown + "\n"
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSuffix(header, "\n"))
	sb.WriteString("\n")
	if m.status != "" {
		sb.WriteString(styles.Error.Render(m.status))
		sb.WriteString("\n\n")
	}
	labels := m.labels()
	for i, line := range m.page.Lines() {
		if label, ok := labels[m.page[i].VA]; ok {
			sb.WriteString("\n")
			sb.WriteString(styles.Title.Render(label + ":"))
			sb.WriteString("\n")
		}
		if m.color {
			line = colorize.Line(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if !m.loading && m.next < len(m.in.code) {
		sb.WriteString(styles.Status.Render(fmt.Sprintf("\n%d of %d bytes, N for more", m.next, len(m.in.code))))
	}
	m.viewport.SetContent(strings.TrimSuffix(sb.String(), "\n"))
}
