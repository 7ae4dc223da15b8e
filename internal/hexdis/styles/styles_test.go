package styles

import (
	"strings"
	"testing"
)

func TestMarkdownRendererKeepsCode(t *testing.T) {
	r := GetMarkdownRenderer(60)
	if r == nil {
		t.Fatal("GetMarkdownRenderer returned nil")
	}
	out, err := r.Render("# hexdis\n\n```\nx86_32 at 0x00401000\n```\n")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"hexdis", "0x00401000"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered card lacks %q:\n%s", want, out)
		}
	}
}
