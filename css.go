package cssstyle

import (
	"strings"

	"github.com/speedata/css/scanner"
	"go.uber.org/zap"
)

// tokenstream is a list of CSS tokens
type tokenstream []*scanner.Token

// qrule is a single "key: value" pair of a block.
type qrule struct {
	key   tokenstream
	value tokenstream
}

// sBlock is a block with a selector
type sBlock struct {
	componentValues tokenstream // the "selector"
	rules           []qrule     // the key-value pairs
}

// tokenizeCSSString returns the tokens of a CSS text without comments.
func tokenizeCSSString(contents string) tokenstream {
	var toks tokenstream
	s := scanner.New(contents)
	for {
		t := s.Next()
		if t.Type == scanner.EOF || t.Type == scanner.Error {
			break
		}
		switch t.Type {
		case scanner.Comment:
			// ignore
		default:
			if t.Value == "<!--" || t.Value == "-->" {
				continue
			}
			toks = append(toks, t)
		}
	}
	return toks
}

func isDelim(t *scanner.Token, val string) bool {
	return t.Type == scanner.Delim && t.Value == val
}

// findClosingBrace returns the position of the "}" matching an already
// consumed "{". ok is false if the block is not terminated.
func findClosingBrace(toks tokenstream) (int, bool) {
	level := 1
	for i, t := range toks {
		if t.Type == scanner.Delim {
			switch t.Value {
			case "{":
				level++
			case "}":
				level--
				if level == 0 {
					return i, true
				}
			}
		}
	}
	return len(toks), false
}

// trimSpace removes leading and trailing whitespace tokens.
func trimSpace(toks tokenstream) tokenstream {
	i := 0
	for i < len(toks) && toks[i].Type == scanner.S {
		i++
	}
	j := len(toks)
	for j > i && toks[j-1].Type == scanner.S {
		j--
	}
	return toks[i:j]
}

// consumeStylesheet splits the top level of a stylesheet into blocks. At-rules
// (with or without a block) and stray tokens are skipped.
func consumeStylesheet(toks tokenstream, log *zap.Logger) []sBlock {
	var blocks []sBlock
	start := 0
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Type != scanner.Delim {
			continue
		}
		switch t.Value {
		case "{":
			prelude := trimSpace(toks[start:i])
			end, ok := findClosingBrace(toks[i+1:])
			inner := toks[i+1 : i+1+end]
			if !ok {
				log.Debug("unterminated block", zap.String("prelude", prelude.String()))
			}
			i = i + 1 + end
			start = i + 1
			if len(prelude) > 0 && prelude[0].Type == scanner.AtKeyword {
				log.Debug("skipping at-rule", zap.String("rule", prelude.String()))
				continue
			}
			blocks = append(blocks, sBlock{
				componentValues: prelude,
				rules:           consumeDeclarations(inner, log),
			})
		case ";":
			prelude := trimSpace(toks[start:i])
			if len(prelude) > 0 {
				log.Debug("skipping statement", zap.String("statement", prelude.String()))
			}
			start = i + 1
		case "}":
			log.Debug("stray closing brace")
			start = i + 1
		}
	}
	if start >= len(toks) {
		return blocks
	}
	if rest := trimSpace(toks[start:]); len(rest) > 0 {
		log.Debug("skipping trailing tokens", zap.String("tokens", rest.String()))
	}
	return blocks
}

// consumeDeclarations splits the contents of a block (without the braces) into
// key-value pairs. Entries without a colon and nested blocks are dropped.
func consumeDeclarations(toks tokenstream, log *zap.Logger) []qrule {
	var rules []qrule
	start, colon, depth := 0, -1, 0
	flush := func(end int) {
		entry := trimSpace(toks[start:end])
		if len(entry) == 0 {
			return
		}
		if colon < 0 {
			log.Debug("dropping declaration without colon", zap.String("declaration", entry.String()))
			return
		}
		rules = append(rules, qrule{
			key:   trimSpace(toks[start:colon]),
			value: trimSpace(toks[colon+1 : end]),
		})
	}
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.Type {
		case scanner.Function:
			depth++
			continue
		case scanner.Delim:
		default:
			continue
		}
		switch t.Value {
		case "(", "[":
			depth++
		case ")", "]":
			if depth > 0 {
				depth--
			}
		case ":":
			if depth == 0 && colon < 0 {
				colon = i
			}
		case ";":
			if depth == 0 {
				flush(i)
				start, colon = i+1, -1
			}
		case "{":
			end, _ := findClosingBrace(toks[i+1:])
			log.Debug("dropping nested block", zap.String("prelude", trimSpace(toks[start:i]).String()))
			i = i + 1 + end
			start, colon, depth = i+1, -1, 0
		}
	}
	if start < len(toks) {
		flush(len(toks))
	}
	return rules
}

// unquote removes surrounding quotes from a string.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

// uriValue returns the address of a url(...) token.
func uriValue(t *scanner.Token) string {
	v := strings.TrimSpace(t.Value)
	if len(v) > 4 && strings.EqualFold(v[:4], "url(") {
		v = strings.TrimSuffix(v[4:], ")")
	}
	return unquote(v)
}

// functionName returns the name of a function token.
func functionName(t *scanner.Token) string {
	return strings.ToLower(strings.TrimSuffix(t.Value, "("))
}

// tokenText returns the canonical CSS text for a token.
func tokenText(t *scanner.Token) string {
	switch t.Type {
	case scanner.S:
		return " "
	case scanner.Hash:
		return "#" + strings.TrimPrefix(t.Value, "#")
	case scanner.AtKeyword:
		return "@" + strings.TrimPrefix(t.Value, "@")
	case scanner.String:
		return `"` + unquote(t.Value) + `"`
	case scanner.Function:
		return strings.TrimSuffix(t.Value, "(") + "("
	case scanner.URI:
		return "url(" + uriValue(t) + ")"
	case scanner.Local:
		return "local(" + unquote(t.Value) + ")"
	case scanner.Format:
		return "format(" + unquote(t.Value) + ")"
	case scanner.Tech:
		return "tech(" + unquote(t.Value) + ")"
	}
	return t.Value
}

// text returns the canonical text of the token stream with runs of whitespace
// collapsed.
func (t tokenstream) text() string {
	var sb strings.Builder
	space := false
	for _, tok := range trimSpace(t) {
		if tok.Type == scanner.S {
			space = true
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.WriteString(tokenText(tok))
	}
	return sb.String()
}
