package cssstyle

import (
	"fmt"
	"maps"
	"os"
	"sync"

	"go.uber.org/zap"
)

// ParseFunc turns the text of a declaration into a typed value. userData is
// the UserData of the PropertyType.
type ParseFunc func(raw RawValue, g *Grammar, userData any) (Value, error)

// ConvertFunc converts a value to another kind. It reports false if the
// conversion is not supported.
type ConvertFunc func(v Value, target Kind) (Value, bool)

// PropertyType describes how the values of a property are parsed. Convert and
// Destroy are optional. A value is destroyed once its layer is unloaded and
// every Style holding it has been released or collected. Destroy may run on
// the garbage collector's cleanup goroutine.
type PropertyType struct {
	Name     string
	Parse    ParseFunc
	Convert  ConvertFunc
	Destroy  func(Value)
	UserData any
}

// FunctionCall is handed to a Function handler. Args are the comma separated
// arguments with quotes removed.
type FunctionCall struct {
	Name     string
	Args     []string
	BaseURI  string
	UserData any
}

// Function is a CSS function like url(). The handler returns the text that
// replaces the call, or false if the call cannot be resolved. In that case the
// declaration is dropped.
type Function struct {
	Handler  func(call FunctionCall) (string, bool)
	UserData any
}

// Grammar holds the property types and functions used to compile
// stylesheets. A grammar can be shared by any number of stylesheets.
// Registration after the first stylesheet has been parsed only affects
// stylesheets parsed later.
type Grammar struct {
	mu        sync.RWMutex
	types     map[string]*PropertyType
	functions map[string]*Function
	log       *zap.Logger
}

// Option configures a Grammar.
type Option func(*Grammar)

// WithLogger sets the logger for parse diagnostics. Dropped rules and
// declarations are reported at debug level.
func WithLogger(log *zap.Logger) Option {
	return func(g *Grammar) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGrammar returns a grammar with only the generic property types
// registered (see BasePropertyTypes).
func NewGrammar(opts ...Option) *Grammar {
	g := &Grammar{
		types:     make(map[string]*PropertyType),
		functions: make(map[string]*Function),
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	g.log = g.log.Named("css")
	g.AddPropertyTypes(BasePropertyTypes())
	return g
}

// NewRenderingGrammar returns a grammar with the base property types and the
// box, border, font, background and appearance types of
// RenderingPropertyTypes.
func NewRenderingGrammar(opts ...Option) *Grammar {
	g := NewGrammar(opts...)
	g.AddPropertyTypes(RenderingPropertyTypes())
	return g
}

// AddPropertyTypes registers property types by property name. An existing
// registration for a name is replaced.
func (g *Grammar) AddPropertyTypes(types map[string]*PropertyType) {
	g.mu.Lock()
	defer g.mu.Unlock()
	maps.Copy(g.types, types)
}

// AddFunctions registers CSS functions by name (without the parenthesis).
func (g *Grammar) AddFunctions(fns map[string]*Function) {
	g.mu.Lock()
	defer g.mu.Unlock()
	maps.Copy(g.functions, fns)
}

// PropertyType returns the registered type for a property name.
func (g *Grammar) PropertyType(name string) (*PropertyType, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	pt, ok := g.types[name]
	return pt, ok
}

func (g *Grammar) function(name string) (*Function, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn, ok := g.functions[name]
	return fn, ok && fn != nil && fn.Handler != nil
}

// Logger returns the diagnostics logger of the grammar.
func (g *Grammar) Logger() *zap.Logger {
	return g.log
}

// NewStylesheet returns an empty stylesheet bound to this grammar.
func (g *Grammar) NewStylesheet() *Stylesheet {
	return &Stylesheet{grammar: g}
}

// NewStylesheetFromBuffer returns a stylesheet with buf loaded as an author
// layer.
func (g *Grammar) NewStylesheetFromBuffer(buf []byte) (*Stylesheet, error) {
	ss := g.NewStylesheet()
	if _, err := ss.AddFromBuffer(buf, Author, ""); err != nil {
		return nil, err
	}
	return ss, nil
}

// NewStylesheetFromFile returns a stylesheet with the file loaded as an
// author layer.
func (g *Grammar) NewStylesheetFromFile(path string) (*Stylesheet, error) {
	ss := g.NewStylesheet()
	if _, err := ss.AddFromFile(path, Author); err != nil {
		return nil, err
	}
	return ss, nil
}

// compile parses CSS text into rules. Malformed rules and declarations are
// dropped.
func (g *Grammar) compile(src string, baseURI string) []*rule {
	blocks := consumeStylesheet(tokenizeCSSString(src), g.log)
	rules := make([]*rule, 0, len(blocks))
	for _, b := range blocks {
		sels, err := parseSelectorGroup(b.componentValues)
		if err != nil {
			g.log.Debug("dropping rule", zap.String("selector", b.componentValues.String()), zap.Error(err))
			continue
		}
		rules = append(rules, &rule{
			selectors: sels,
			decls:     g.compileDeclarations(b.rules, baseURI),
			index:     len(rules),
		})
	}
	return rules
}

// compileInline parses the contents of an inline style block.
func (g *Grammar) compileInline(text string) []*declaration {
	return g.compileDeclarations(consumeDeclarations(tokenizeCSSString(text), g.log), "")
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cssstyle: read stylesheet: %w", err)
	}
	return data, nil
}
