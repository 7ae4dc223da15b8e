package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// DisasmDark colours mnemonics white, registers teal and numbers pink.
var DisasmDark = styles.Register(chroma.MustNewStyle("disasm-dark", chroma.StyleEntries{
	chroma.Text:       "#FFFFFF",
	chroma.Background: "bg:#1e1e1e",
	chroma.Comment:    "#6A9955",

	// nasm tokenises mnemonics as functions and keywords
	chroma.Keyword:       "#FFFFFF",
	chroma.KeywordPseudo: "#DCDCAA", // db placeholders
	chroma.NameFunction:  "#FFFFFF",
	chroma.Name:          "#7C9C9D",
	chroma.NameBuiltin:   "#7C9C9D", // registers
	chroma.NameVariable:  "#7C9C9D",
	chroma.NameLabel:     "#FFD700",

	chroma.LiteralNumber:        "#FF5F87",
	chroma.LiteralNumberHex:     "#FF5F87",
	chroma.LiteralNumberBin:     "#FF5F87",
	chroma.LiteralNumberOct:     "#FF5F87",
	chroma.LiteralNumberInteger: "#FF5F87",

	chroma.Operator:    "#D4D4D4",
	chroma.Punctuation: "#D4D4D4",
	chroma.String:      "#EACD53",
}))
