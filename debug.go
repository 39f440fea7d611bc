package cssstyle

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"
)

func indent(s string) string {
	ret := []string{}
	for _, line := range strings.Split(s, "\n") {
		ret = append(ret, "    "+line)
	}
	return strings.Join(ret, "\n")
}

func (b sBlock) String() string {
	ret := []string{b.componentValues.String() + " {"}
	for _, v := range b.rules {
		ret = append(ret, indent(v.key.String()+":"+v.value.String()+";"))
	}
	ret = append(ret, "}")
	return strings.Join(ret, "\n")
}

func (t tokenstream) String() string {
	ret := []string{}
	for _, tok := range t {
		ret = append(ret, tokenText(tok))
	}
	return strings.Join(ret, "")
}

func (d *declaration) String() string {
	s := d.property + ": " + d.value.String()
	if d.important {
		s += " !important"
	}
	return s
}

func (r *rule) selectorText() string {
	sels := make([]string, len(r.selectors))
	for i, s := range r.selectors {
		sels[i] = s.String()
	}
	return strings.Join(sels, ", ")
}

// Dump returns a tree of the live layers with their rules and typed
// declarations.
func (ss *Stylesheet) Dump() string {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	tree := treeprint.NewWithRoot("stylesheet")
	for _, l := range ss.layers {
		lb := tree.AddMetaBranch(l.origin.String(), fmt.Sprintf("layer %d %s", l.id, l.source))
		for _, r := range l.rules {
			rb := lb.AddMetaBranch(r.index, r.selectorText())
			for _, d := range r.decls {
				rb.AddMetaNode(d.value.Kind().String(), d.String())
			}
		}
	}
	return tree.String()
}

// Dump returns a tree of the resolved properties.
func (s *Style) Dump() string {
	root := "style"
	if !s.matched {
		root = "style (unmatched)"
	}
	tree := treeprint.NewWithRoot(root)
	for _, n := range s.Names() {
		e := s.props[n]
		meta := e.value.Kind().String()
		if e.important {
			meta += " !important"
		}
		tree.AddMetaNode(meta, n+": "+e.value.String())
	}
	return tree.String()
}
