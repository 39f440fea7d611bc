package cssstyle

import (
	"cmp"
	"slices"

	"go.uber.org/zap"
)

// candidate is a rule that matched the queried node.
type candidate struct {
	layer       *layer
	rule        *rule
	specificity Specificity
}

// compareCandidates orders by origin, specificity, layer load order and
// source order. Later entries take precedence.
func compareCandidates(a, b candidate) int {
	if c := cmp.Compare(a.layer.origin, b.layer.origin); c != 0 {
		return c
	}
	if c := a.specificity.Compare(b.specificity); c != 0 {
		return c
	}
	if c := cmp.Compare(a.layer.loadIndex, b.layer.loadIndex); c != 0 {
		return c
	}
	return cmp.Compare(a.rule.index, b.rule.index)
}

// Query resolves the style of a node over all live layers. A node that no
// rule matches yields an empty Style with Matched() == false. Every Node the
// engine obtains during the query is released before Query returns. A nil
// node yields an empty Style.
//
// The layer set is read locked for the whole query. Adapter callbacks must
// not wait for an add or unload on ss to finish.
func (ss *Stylesheet) Query(node Node) *Style {
	if node == nil {
		return newStyleBuilder().build()
	}
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	q := &queryState{log: ss.grammar.log}
	defer q.release()
	v := q.view(node, 0)

	cands := ss.collect(v)
	slices.SortStableFunc(cands, compareCandidates)

	b := newStyleBuilder()
	if bs, ok := node.(BaseStyler); ok {
		if base, ok := bs.BaseStyle(); ok && base != nil {
			b.addBase(base)
		}
	}
	var inline []*declaration
	defer func() {
		for _, d := range inline {
			d.owner.release()
		}
	}()
	if is, ok := node.(InlineStyler); ok {
		if text, ok := is.InlineStyle(); ok && text != "" {
			inline = ss.grammar.compileInline(text)
		}
	}
	for _, c := range cands {
		b.apply(c.rule.decls, false)
	}
	b.apply(inline, false)
	for _, c := range cands {
		b.apply(c.rule.decls, true)
	}
	b.apply(inline, true)
	b.matched = len(cands) > 0 || len(inline) > 0

	if vp, ok := node.(ViewportProvider); ok {
		b.viewport, b.hasViewport = vp.Viewport()
	}
	st := b.build()
	if ce := ss.grammar.log.Check(zap.DebugLevel, "query"); ce != nil {
		fields := []zap.Field{
			zap.String("type", v.typeName),
			zap.Int("matches", len(cands)),
			zap.Int("properties", st.Len()),
		}
		if in, ok := node.(Instancer); ok {
			fields = append(fields, zap.Any("instance", in.Instance()))
		}
		ce.Write(fields...)
	}
	return st
}

// collect returns the matching rules of all layers. The caller holds the read
// lock.
func (ss *Stylesheet) collect(v *nodeView) []candidate {
	var cands []candidate
	for _, l := range ss.layers {
		for _, r := range l.rules {
			if ok, sp := r.matches(v); ok {
				cands = append(cands, candidate{layer: l, rule: r, specificity: sp})
			}
		}
	}
	return cands
}

// typeNode is a node with nothing but a type name.
type typeNode string

func (t typeNode) TypeName() string { return string(t) }

// QueryType resolves the style of a node that has only a type name.
func (ss *Stylesheet) QueryType(typeName string) *Style {
	return ss.Query(typeNode(typeName))
}
