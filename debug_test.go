package cssstyle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestStylesheetDump(t *testing.T) {
	ss := NewRenderingGrammar().NewStylesheet()
	addLayer(t, ss, `box, #special > label { color: red !important; padding: 1px }`, UserAgent)
	addLayer(t, ss, `x { y: z }`, Author)
	dump := ss.Dump()
	for _, want := range []string{
		"stylesheet",
		"[user-agent]  layer 1 buffer",
		"[author]  layer 2 buffer",
		"box, #special > label",
		"color: #ff0000 !important",
		"[edges]  padding: 1px 1px 1px 1px",
		"[opaque]  y: z",
	} {
		assert.True(t, strings.Contains(dump, want), "missing %q in\n%s", want, dump)
	}
}

func TestBlockString(t *testing.T) {
	blocks := consumeStylesheet(tokenizeCSSString(`a > b { color: red; width: 1px }`), zap.NewNop())
	if len(blocks) != 1 {
		t.Fatalf("len(blocks) = %d, want 1", len(blocks))
	}
	want := "a > b {\n    color:red;\n    width:1px;\n}"
	if got := blocks[0].String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
