package cssstyle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/speedata/css/scanner"
)

// Specificity is the weight of a selector: ids, classes (including attribute
// predicates and pseudo-classes) and types.
type Specificity [3]int

// Less reports whether s is strictly lower than other.
func (s Specificity) Less(other Specificity) bool {
	for i := range s {
		if s[i] != other[i] {
			return s[i] < other[i]
		}
	}
	return false
}

// Compare returns -1, 0 or 1.
func (s Specificity) Compare(other Specificity) int {
	switch {
	case s.Less(other):
		return -1
	case other.Less(s):
		return 1
	}
	return 0
}

// Combinator joins two compound selectors.
type Combinator int

const (
	// Descendant matches any ancestor ("a b").
	Descendant Combinator = iota
	// Child matches the direct container ("a > b").
	Child
)

// AttrOp is the comparison of an attribute predicate.
type AttrOp int

// Attribute predicate operators.
const (
	AttrExists    AttrOp = iota // [a]
	AttrEquals                  // [a=v]
	AttrIncludes                // [a~=v]
	AttrDash                    // [a|=v]
	AttrPrefix                  // [a^=v]
	AttrSuffix                  // [a$=v]
	AttrSubstring               // [a*=v]
)

var attrOps = map[string]AttrOp{
	"=":  AttrEquals,
	"~=": AttrIncludes,
	"|=": AttrDash,
	"^=": AttrPrefix,
	"$=": AttrSuffix,
	"*=": AttrSubstring,
}

type attrPredicate struct {
	name  string
	op    AttrOp
	value string
}

func (a attrPredicate) matches(val string, ok bool) bool {
	if !ok {
		return false
	}
	switch a.op {
	case AttrExists:
		return true
	case AttrEquals:
		return val == a.value
	case AttrIncludes:
		for _, f := range strings.Fields(val) {
			if f == a.value {
				return true
			}
		}
		return false
	case AttrDash:
		return val == a.value || strings.HasPrefix(val, a.value+"-")
	case AttrPrefix:
		return a.value != "" && strings.HasPrefix(val, a.value)
	case AttrSuffix:
		return a.value != "" && strings.HasSuffix(val, a.value)
	case AttrSubstring:
		return a.value != "" && strings.Contains(val, a.value)
	}
	return false
}

// compound is a sequence of simple selectors without combinator.
type compound struct {
	typeName string // empty or "*" match any type
	id       string
	classes  []string
	pseudo   []string
	attrs    []attrPredicate
}

func (c *compound) empty() bool {
	return c.typeName == "" && c.id == "" && len(c.classes) == 0 && len(c.pseudo) == 0 && len(c.attrs) == 0
}

func (c *compound) matches(v *nodeView) bool {
	if c.typeName != "" && c.typeName != "*" && !v.isA(c.typeName) {
		return false
	}
	if c.id != "" && (!v.hasID || v.id != c.id) {
		return false
	}
	for _, cl := range c.classes {
		if _, ok := v.classes[cl]; !ok {
			return false
		}
	}
	for _, ps := range c.pseudo {
		if _, ok := v.pseudo[ps]; !ok {
			return false
		}
	}
	for _, a := range c.attrs {
		if !a.matches(v.attribute(a.name)) {
			return false
		}
	}
	return true
}

func (c *compound) String() string {
	var sb strings.Builder
	sb.WriteString(c.typeName)
	if c.id != "" {
		sb.WriteString("#" + c.id)
	}
	for _, cl := range c.classes {
		sb.WriteString("." + cl)
	}
	for _, ps := range c.pseudo {
		sb.WriteString(":" + ps)
	}
	for _, a := range c.attrs {
		sb.WriteString("[" + a.name)
		if a.op != AttrExists {
			for k, op := range attrOps {
				if op == a.op {
					sb.WriteString(k)
				}
			}
			sb.WriteString(`"` + a.value + `"`)
		}
		sb.WriteString("]")
	}
	if sb.Len() == 0 {
		return "*"
	}
	return sb.String()
}

// Selector is a chain of compound selectors. combinators[i] joins steps[i]
// and steps[i+1].
type Selector struct {
	steps       []compound
	combinators []Combinator
}

// Specificity is computed from the selector alone.
func (s *Selector) Specificity() Specificity {
	var sp Specificity
	for _, st := range s.steps {
		if st.id != "" {
			sp[0]++
		}
		sp[1] += len(st.classes) + len(st.pseudo) + len(st.attrs)
		if st.typeName != "" && st.typeName != "*" {
			sp[2]++
		}
	}
	return sp
}

func (s *Selector) String() string {
	var sb strings.Builder
	for i := range s.steps {
		if i > 0 {
			if s.combinators[i-1] == Child {
				sb.WriteString(" > ")
			} else {
				sb.WriteString(" ")
			}
		}
		sb.WriteString(s.steps[i].String())
	}
	return sb.String()
}

// match tests the rightmost compound against v and walks the combinator chain
// up the container chain.
func (s *Selector) match(v *nodeView) bool {
	last := len(s.steps) - 1
	if last < 0 || !s.steps[last].matches(v) {
		return false
	}
	return s.matchAncestors(last, v)
}

// matchAncestors checks steps[:idx] given that steps[idx] matched v.
func (s *Selector) matchAncestors(idx int, v *nodeView) bool {
	if idx == 0 {
		return true
	}
	step := &s.steps[idx-1]
	if s.combinators[idx-1] == Child {
		p := v.container()
		return p != nil && step.matches(p) && s.matchAncestors(idx-1, p)
	}
	for p := v.container(); p != nil; p = p.container() {
		if step.matches(p) && s.matchAncestors(idx-1, p) {
			return true
		}
	}
	return false
}

var (
	errEmptySelector = errors.New("empty selector")
	errCombinator    = errors.New("misplaced combinator")
)

// parseSelectorGroup parses a comma separated list of selectors. An error in
// any of them invalidates the whole list.
func parseSelectorGroup(toks tokenstream) ([]*Selector, error) {
	var sels []*Selector
	start := 0
	for i := 0; i <= len(toks); i++ {
		if i < len(toks) && !isDelim(toks[i], ",") {
			continue
		}
		sel, err := parseSelector(trimSpace(toks[start:i]))
		if err != nil {
			return nil, err
		}
		sels = append(sels, sel)
		start = i + 1
	}
	return sels, nil
}

func parseSelector(toks tokenstream) (*Selector, error) {
	if len(toks) == 0 {
		return nil, errEmptySelector
	}
	sel := &Selector{}
	var cur *compound
	pending := -1
	closeCompound := func() {
		if cur != nil {
			sel.steps = append(sel.steps, *cur)
			cur = nil
		}
	}
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.Type == scanner.S:
			if cur != nil {
				closeCompound()
				pending = int(Descendant)
			}
			continue
		case isDelim(t, ">"):
			closeCompound()
			if len(sel.steps) == 0 || pending == int(Child) {
				return nil, errCombinator
			}
			pending = int(Child)
			continue
		}
		if cur == nil {
			if len(sel.steps) > 0 {
				if pending < 0 {
					return nil, errCombinator
				}
				sel.combinators = append(sel.combinators, Combinator(pending))
			}
			pending = -1
			cur = &compound{}
		}
		var err error
		if i, err = parseSimple(toks, i, cur); err != nil {
			return nil, err
		}
	}
	closeCompound()
	if pending == int(Child) {
		return nil, errCombinator
	}
	if len(sel.steps) == 0 {
		return nil, errEmptySelector
	}
	return sel, nil
}

// parseSimple adds the simple selector starting at toks[i] to c and returns
// the position of its last token.
func parseSimple(toks tokenstream, i int, c *compound) (int, error) {
	t := toks[i]
	switch {
	case t.Type == scanner.Ident || isDelim(t, "*"):
		if !c.empty() {
			return i, fmt.Errorf("type selector %q must come first", t.Value)
		}
		c.typeName = t.Value
		return i, nil
	case t.Type == scanner.Hash:
		if c.id != "" {
			return i, errors.New("more than one id")
		}
		c.id = strings.TrimPrefix(t.Value, "#")
		return i, nil
	case isDelim(t, "."):
		if i+1 >= len(toks) || toks[i+1].Type != scanner.Ident {
			return i, errors.New("class name expected")
		}
		c.classes = append(c.classes, toks[i+1].Value)
		return i + 1, nil
	case isDelim(t, ":"):
		if i+1 >= len(toks) || toks[i+1].Type != scanner.Ident {
			return i, errors.New("unsupported pseudo selector")
		}
		c.pseudo = append(c.pseudo, strings.ToLower(toks[i+1].Value))
		return i + 1, nil
	case isDelim(t, "["):
		return parseAttribute(toks, i, c)
	}
	return i, fmt.Errorf("unexpected %q in selector", t.Value)
}

func parseAttribute(toks tokenstream, i int, c *compound) (int, error) {
	next := func() *scanner.Token {
		i++
		for i < len(toks) && toks[i].Type == scanner.S {
			i++
		}
		if i < len(toks) {
			return toks[i]
		}
		return nil
	}
	t := next()
	if t == nil || t.Type != scanner.Ident {
		return i, errors.New("attribute name expected")
	}
	pred := attrPredicate{name: t.Value}
	t = next()
	if t == nil {
		return i, errors.New("unterminated attribute selector")
	}
	if isDelim(t, "]") {
		c.attrs = append(c.attrs, pred)
		return i, nil
	}
	opText := t.Value
	if t.Type == scanner.Delim && strings.ContainsAny(t.Value, "~|^$*") && i+1 < len(toks) && isDelim(toks[i+1], "=") {
		i++
		opText += "="
	}
	op, ok := attrOps[opText]
	if !ok {
		return i, fmt.Errorf("unknown attribute operator %q", opText)
	}
	pred.op = op
	t = next()
	if t == nil {
		return i, errors.New("attribute value expected")
	}
	switch t.Type {
	case scanner.Ident, scanner.Number:
		pred.value = t.Value
	case scanner.String:
		pred.value = unquote(t.Value)
	default:
		return i, errors.New("attribute value expected")
	}
	if t = next(); t == nil || !isDelim(t, "]") {
		return i, errors.New("unterminated attribute selector")
	}
	c.attrs = append(c.attrs, pred)
	return i, nil
}
