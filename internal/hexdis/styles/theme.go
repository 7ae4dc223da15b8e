// Package styles holds the colours and lipgloss styles of the listing
// viewer.
package styles

import (
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/exp/charmtone"
)

var (
	MenuBar = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("252")).
		Padding(0, 1)

	Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("99")).
		MarginLeft(2)

	Status = lipgloss.NewStyle().
		Foreground(charmtone.Squid)

	Error = lipgloss.NewStyle().
		Foreground(charmtone.Cheeky).
		Bold(true)

	Spinner = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))

	Prompt = lipgloss.NewStyle().Foreground(charmtone.Malibu)

	// SymbolAddr and SymbolName style entries of the symbol list.
	SymbolAddr = lipgloss.NewStyle().Foreground(lipgloss.Color("#4F4F4F"))
	SymbolName = lipgloss.NewStyle().Foreground(charmtone.Smoke)
	Selected   = lipgloss.NewStyle().Foreground(charmtone.Zest).Bold(true)
)
