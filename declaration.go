package cssstyle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/speedata/css/scanner"
	"go.uber.org/zap"
)

// RawValue is the text of a declaration after function calls have been
// replaced.
type RawValue struct {
	Property string
	Text     string
	BaseURI  string
}

// Fields splits the value at whitespace outside of parenthesis and quotes.
func (r RawValue) Fields() []string {
	return splitOutside(r.Text, func(c byte) bool { return c == ' ' || c == '\t' || c == '\n' })
}

// List splits the value at commas outside of parenthesis and quotes.
func (r RawValue) List() []string {
	parts := splitOutside(r.Text, func(c byte) bool { return c == ',' })
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func splitOutside(s string, sep func(byte) bool) []string {
	var ret []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && sep(c):
			if strings.TrimSpace(s[start:i]) != "" {
				ret = append(ret, s[start:i])
			}
			start = i + 1
		}
	}
	if strings.TrimSpace(s[start:]) != "" {
		ret = append(ret, s[start:])
	}
	return ret
}

// declaration is a single property of a rule with its value bound to the
// property type known at parse time.
type declaration struct {
	property  string
	raw       string
	value     Value
	ptype     *PropertyType
	owner     *share
	important bool
}

var (
	errNoProperty = errors.New("missing property name")
	errNoValue    = errors.New("missing value")
)

func (g *Grammar) compileDeclarations(qrules []qrule, baseURI string) []*declaration {
	decls := make([]*declaration, 0, len(qrules))
	for _, q := range qrules {
		d, err := g.compileDeclaration(q, baseURI)
		if err != nil {
			g.log.Debug("dropping declaration",
				zap.String("property", q.key.String()),
				zap.String("value", q.value.text()),
				zap.Error(err))
			continue
		}
		decls = append(decls, d)
	}
	return decls
}

func (g *Grammar) compileDeclaration(q qrule, baseURI string) (*declaration, error) {
	if len(q.key) != 1 || q.key[0].Type != scanner.Ident {
		return nil, errNoProperty
	}
	d := &declaration{property: strings.ToLower(q.key[0].Value)}
	toks, important := stripImportant(q.value)
	d.important = important
	if len(toks) == 0 {
		return nil, errNoValue
	}
	text, err := g.substitute(toks, baseURI)
	if err != nil {
		return nil, err
	}
	d.raw = text
	raw := RawValue{Property: d.property, Text: text, BaseURI: baseURI}
	pt, ok := g.PropertyType(d.property)
	if !ok || pt == nil || pt.Parse == nil {
		d.value = Opaque(text)
		return d, nil
	}
	v, err := pt.Parse(raw, g, pt.UserData)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%s: no value", d.property)
	}
	d.value = v
	d.ptype = pt
	d.owner = newShare(v, pt)
	return d, nil
}

// stripImportant removes a trailing "! important" and reports whether it was
// present.
func stripImportant(toks tokenstream) (tokenstream, bool) {
	toks = trimSpace(toks)
	n := len(toks)
	if n < 2 {
		return toks, false
	}
	last := toks[n-1]
	if last.Type != scanner.Ident || !strings.EqualFold(last.Value, "important") {
		return toks, false
	}
	rest := trimSpace(toks[:n-1])
	if len(rest) == 0 || !isDelim(rest[len(rest)-1], "!") {
		return toks, false
	}
	return trimSpace(rest[:len(rest)-1]), true
}

// substitute returns the canonical text of a value with all calls to
// registered functions replaced by their result.
func (g *Grammar) substitute(toks tokenstream, baseURI string) (string, error) {
	var sb strings.Builder
	space := false
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Type == scanner.S {
			space = sb.Len() > 0
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		switch t.Type {
		case scanner.Function:
			end := matchingParen(toks[i+1:])
			inner := toks[i+1 : i+1+end]
			name := functionName(t)
			i = i + 1 + end
			if fn, ok := g.function(name); ok {
				args, err := g.arguments(inner, baseURI)
				if err != nil {
					return "", err
				}
				res, ok := fn.Handler(FunctionCall{Name: name, Args: args, BaseURI: baseURI, UserData: fn.UserData})
				if !ok {
					return "", fmt.Errorf("function %s() could not be resolved", name)
				}
				sb.WriteString(res)
				continue
			}
			s, err := g.substitute(inner, baseURI)
			if err != nil {
				return "", err
			}
			sb.WriteString(tokenText(t) + s + ")")
		case scanner.URI:
			if fn, ok := g.function("url"); ok {
				res, ok := fn.Handler(FunctionCall{Name: "url", Args: []string{uriValue(t)}, BaseURI: baseURI, UserData: fn.UserData})
				if !ok {
					return "", fmt.Errorf("function url() could not be resolved")
				}
				sb.WriteString(res)
				continue
			}
			sb.WriteString(tokenText(t))
		default:
			sb.WriteString(tokenText(t))
		}
	}
	return sb.String(), nil
}

// matchingParen returns the position of the ")" closing an already consumed
// function token, or len(toks) if there is none.
func matchingParen(toks tokenstream) int {
	level := 1
	for i, t := range toks {
		switch {
		case t.Type == scanner.Function, isDelim(t, "("):
			level++
		case isDelim(t, ")"):
			level--
			if level == 0 {
				return i
			}
		}
	}
	return len(toks)
}

// arguments splits the tokens of a function call at top level commas and
// resolves nested calls.
func (g *Grammar) arguments(toks tokenstream, baseURI string) ([]string, error) {
	var args []string
	depth, start := 0, 0
	add := func(part tokenstream) error {
		s, err := g.substitute(trimSpace(part), baseURI)
		if err != nil {
			return err
		}
		args = append(args, unquote(s))
		return nil
	}
	for i, t := range toks {
		switch {
		case t.Type == scanner.Function, isDelim(t, "("):
			depth++
		case isDelim(t, ")"):
			depth--
		case depth == 0 && isDelim(t, ","):
			if err := add(toks[start:i]); err != nil {
				return nil, err
			}
			start = i + 1
		}
	}
	if len(trimSpace(toks)) > 0 {
		if err := add(toks[start:]); err != nil {
			return nil, err
		}
	}
	return args, nil
}
