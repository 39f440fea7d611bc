package cssstyle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specialBox() *NodeFuncs {
	return &NodeFuncs{
		Type:  "box",
		GetID: func() (string, bool) { return "special", true },
	}
}

func colorOf(t *testing.T, st *Style, name string) string {
	t.Helper()
	c, ok := st.GetColor(name)
	require.True(t, ok, "%s not set", name)
	return c.String()
}

func TestSpecificityWins(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	addLayer(t, ss, `#special { color: blue } box { color: red }`, Author)
	assert.Equal(t, "#0000ff", colorOf(t, ss.Query(specialBox()), "color"))
	assert.Equal(t, "#ff0000", colorOf(t, ss.QueryType("box"), "color"))
}

func TestSourceOrder(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	addLayer(t, ss, `box { color: red } box { color: blue }`, Author)
	assert.Equal(t, "#0000ff", colorOf(t, ss.QueryType("box"), "color"))

	// later layers win on equal specificity
	addLayer(t, ss, `box { color: green }`, Author)
	assert.Equal(t, "#008000", colorOf(t, ss.QueryType("box"), "color"))
}

func TestLastDeclarationInRuleWins(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	addLayer(t, ss, `box { color: red; color: blue }`, Author)
	assert.Equal(t, "#0000ff", colorOf(t, ss.QueryType("box"), "color"))
}

func TestOriginPrecedence(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	// author layer loaded first, low specificity
	addLayer(t, ss, `box { color: green }`, Author)
	addLayer(t, ss, `#special { color: red }`, UserAgent)
	addLayer(t, ss, `box#special { color: blue; opacity: 0.5 }`, User)
	st := ss.Query(specialBox())
	assert.Equal(t, "#008000", colorOf(t, st, "color"))
	o, ok := st.GetDouble("opacity")
	require.True(t, ok)
	assert.Equal(t, 0.5, o)

	ss2 := NewGrammar().NewStylesheet()
	addLayer(t, ss2, `#special { color: red }`, UserAgent)
	addLayer(t, ss2, `box { color: blue }`, User)
	assert.Equal(t, "#0000ff", colorOf(t, ss2.Query(specialBox()), "color"))
}

func TestImportant(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	addLayer(t, ss, `box { color: red !important }`, UserAgent)
	addLayer(t, ss, `#special { color: blue }`, Author)
	st := ss.Query(specialBox())
	assert.Equal(t, "#ff0000", colorOf(t, st, "color"))
	assert.True(t, st.IsImportant("color"))

	// among important declarations the usual order applies
	addLayer(t, ss, `box { color: green ! important }`, Author)
	assert.Equal(t, "#008000", colorOf(t, ss.Query(specialBox()), "color"))
}

func TestInlineStyle(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	addLayer(t, ss, `#special { color: blue; opacity: 1 } box { background-color: red !important }`, Author)
	n := specialBox()
	n.GetStyle = func() (string, bool) {
		return "color: green; background-color: white; opacity: 0.3 !important; bogus", true
	}
	st := ss.Query(n)
	assert.True(t, st.Matched())
	assert.Equal(t, "#008000", colorOf(t, st, "color"))
	assert.Equal(t, "#ff0000", colorOf(t, st, "background-color"))
	o, ok := st.GetDouble("opacity")
	require.True(t, ok)
	assert.Equal(t, 0.3, o)
}

func TestInlineOnlyMatches(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	n := &NodeFuncs{Type: "label", GetStyle: func() (string, bool) { return "color: red", true }}
	st := ss.Query(n)
	assert.True(t, st.Matched())
	assert.Equal(t, "#ff0000", colorOf(t, st, "color"))
}

func TestBaseStyle(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	addLayer(t, ss, `box { color: red }`, Author)
	base := ss.QueryType("box")

	addLayer(t, ss, `label { opacity: 0.5 } label.red { color: blue }`, Author)
	n := &NodeFuncs{
		Type:         "label",
		GetBaseStyle: func() (*Style, bool) { return base, true },
	}
	st := ss.Query(n)
	assert.Equal(t, "#ff0000", colorOf(t, st, "color"))
	_, ok := st.GetDouble("opacity")
	assert.True(t, ok)

	n.GetClasses = func() []string { return []string{"red"} }
	assert.Equal(t, "#0000ff", colorOf(t, ss.Query(n), "color"))
}

func TestEmptyMatch(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	addLayer(t, ss, `box { color: red }`, Author)
	st := ss.QueryType("nothing")
	assert.Equal(t, 0, st.Len())
	assert.False(t, st.Matched())
	assert.Empty(t, st.Names())
	assert.True(t, st.Equal(NewGrammar().NewStylesheet().QueryType("box")))

	st = ss.Query(nil)
	assert.Equal(t, 0, st.Len())
}

func TestMatchedWithoutProperties(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	addLayer(t, ss, `box { }`, Author)
	st := ss.QueryType("box")
	assert.True(t, st.Matched())
	assert.Equal(t, 0, st.Len())
}

func TestMalformedRecovery(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	addLayer(t, ss, `
		a { color: red; }
		b c d > { color: blue }
		@media print { a { color: blue } }
		e { width: 10px; height: ; opacity: 0.5 }
		f { color: notacolor; opacity: 0.25; 12: 3 }
		g { color: red`, Author)

	assert.Equal(t, "#ff0000", colorOf(t, ss.QueryType("a"), "color"))
	assert.False(t, ss.QueryType("d").Matched())

	e := ss.QueryType("e")
	assert.Equal(t, []string{"opacity", "width"}, e.Names())

	f := ss.QueryType("f")
	assert.Equal(t, []string{"opacity"}, f.Names())

	assert.Equal(t, "#ff0000", colorOf(t, ss.QueryType("g"), "color"))
}

func TestSelectorListSpecificity(t *testing.T) {
	ss := NewGrammar().NewStylesheet()
	addLayer(t, ss, `#special, box { color: red } box.x { color: blue }`, Author)
	// #special matches with (1,0,0) and beats box.x
	n := specialBox()
	n.GetClasses = func() []string { return []string{"x"} }
	assert.Equal(t, "#ff0000", colorOf(t, ss.Query(n), "color"))
	// without the id the list only scores (0,0,1)
	assert.Equal(t, "#0000ff", colorOf(t, ss.Query(&NodeFuncs{Type: "box", GetClasses: n.GetClasses}), "color"))
}
