package cssstyle

import (
	"testing"

	"go.uber.org/zap"
)

func TestNestedAtrule(t *testing.T) {

	str := `
	@page {
		size: a5;
		@bottom-right-corner {
			border: 4pt solid green;
			border-bottom-color: rebeccapurple;
		}

		/* @top-left-corner {
			border: 1pt solid green;
			border-bottom-color: rebeccapurple;
		} */

	@top-right-corner {
			border: 3pt solid green;
			border-bottom-color: rebeccapurple;
		}
	}
	box { color: red; }`
	toks := tokenizeCSSString(str)
	blocks := consumeStylesheet(toks, zap.NewNop())
	if got, want := len(blocks), 1; got != want {
		t.Fatalf("len(blocks) = %d, want %d", got, want)
	}
	if got, want := blocks[0].componentValues.String(), "box"; got != want {
		t.Errorf("selector = %q, want %q", got, want)
	}
	if got, want := len(blocks[0].rules), 1; got != want {
		t.Errorf("len(rules) = %d, want %d", got, want)
	}
}

func TestFontFaceSkipped(t *testing.T) {
	str := `@font-face {
		font-family: "Trickster";
		src:
		  local("Trickster"),
		  url("trickster-COLRv1.otf") format("opentype") tech(color-COLRv1),
		  url("trickster-outline.otf") format("opentype");
	  }
	  @import "other.css";
	  p { margin: 0 }`
	blocks := consumeStylesheet(tokenizeCSSString(str), zap.NewNop())
	if got, want := len(blocks), 1; got != want {
		t.Fatalf("len(blocks) = %d, want %d", got, want)
	}
}

func TestConsumeDeclarations(t *testing.T) {
	str := `color: red; src: local("a"), url(b.otf) format("opentype"); ; broken; width:10px`
	rules := consumeDeclarations(tokenizeCSSString(str), zap.NewNop())
	if got, want := len(rules), 3; got != want {
		t.Fatalf("len(rules) = %d, want %d", got, want)
	}
	for i, want := range []string{"color", "src", "width"} {
		if got := rules[i].key.String(); got != want {
			t.Errorf("rules[%d].key = %q, want %q", i, got, want)
		}
	}
	if got, want := rules[2].value.text(), "10px"; got != want {
		t.Errorf("rules[2].value = %q, want %q", got, want)
	}
}

func TestDeclarationWithParenthesis(t *testing.T) {
	str := `background-image: url("a;b.png"); color: rgb(1, 2, 3)`
	rules := consumeDeclarations(tokenizeCSSString(str), zap.NewNop())
	if got, want := len(rules), 2; got != want {
		t.Fatalf("len(rules) = %d, want %d", got, want)
	}
	if got, want := rules[1].value.text(), "rgb(1, 2, 3)"; got != want {
		t.Errorf("value = %q, want %q", got, want)
	}
}

func TestNestedBlockDropped(t *testing.T) {
	str := `a { color: red; b { color: blue } width: 1px }`
	blocks := consumeStylesheet(tokenizeCSSString(str), zap.NewNop())
	if got, want := len(blocks), 1; got != want {
		t.Fatalf("len(blocks) = %d, want %d", got, want)
	}
	if got, want := len(blocks[0].rules), 2; got != want {
		t.Errorf("len(rules) = %d, want %d", got, want)
	}
}

func TestUnterminatedBlock(t *testing.T) {
	blocks := consumeStylesheet(tokenizeCSSString(`a { color: red; } b { color: blue`), zap.NewNop())
	if got, want := len(blocks), 2; got != want {
		t.Fatalf("len(blocks) = %d, want %d", got, want)
	}
}

func TestTrimSpace(t *testing.T) {
	toks := tokenizeCSSString("  a b  ")
	if got, want := trimSpace(toks).String(), "a b"; got != want {
		t.Errorf("trimSpace = %q, want %q", got, want)
	}
	if got := trimSpace(tokenizeCSSString("   ")); len(got) != 0 {
		t.Errorf("trimSpace of blanks = %q, want empty", got.String())
	}
}
