package cssstyle

import (
	"runtime"
	"slices"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// entry is one resolved property. rank is the position in the cascade, higher
// ranks were applied later.
type entry struct {
	value     Value
	raw       string
	ptype     *PropertyType
	owner     *share
	important bool
	rank      int
}

// Style is the resolved, immutable result of a query. A Style keeps the
// values it resolved alive after their layer is unloaded. Release hands them
// back early; otherwise they are handed back when the Style is collected.
type Style struct {
	props       map[string]entry
	matched     bool
	viewport    Viewport
	hasViewport bool
	hash        uint64
	refs        *styleRefs
	cleanup     runtime.Cleanup
}

type styleBuilder struct {
	props       map[string]entry
	next        int
	matched     bool
	viewport    Viewport
	hasViewport bool
}

func newStyleBuilder() *styleBuilder {
	return &styleBuilder{props: make(map[string]entry)}
}

// addBase copies the properties of a base style, keeping their relative
// order.
func (b *styleBuilder) addBase(base *Style) {
	names := base.Names()
	sort.SliceStable(names, func(i, j int) bool { return base.props[names[i]].rank < base.props[names[j]].rank })
	for _, n := range names {
		e := base.props[n]
		e.rank = b.next
		b.next++
		b.props[n] = e
	}
}

// apply sets the declarations with the given importance.
func (b *styleBuilder) apply(decls []*declaration, important bool) {
	for _, d := range decls {
		if d.important != important {
			continue
		}
		b.props[d.property] = entry{
			value:     d.value,
			raw:       d.raw,
			ptype:     d.ptype,
			owner:     d.owner,
			important: d.important,
			rank:      b.next,
		}
		b.next++
	}
}

func (b *styleBuilder) build() *Style {
	s := &Style{
		props:       b.props,
		matched:     b.matched,
		viewport:    b.viewport,
		hasViewport: b.hasViewport,
	}
	s.hash = s.computeHash()
	var shares []*share
	for _, e := range s.props {
		if e.owner != nil {
			e.owner.acquire()
			shares = append(shares, e.owner)
		}
	}
	if len(shares) > 0 {
		s.refs = &styleRefs{shares: shares}
		s.cleanup = runtime.AddCleanup(s, (*styleRefs).drop, s.refs)
	}
	return s
}

// Release lets go of the values held by s. Values whose layer is gone are
// destroyed when their last holder lets go. s must not be read afterwards.
// Calling Release more than once is harmless.
func (s *Style) Release() {
	if s == nil || s.refs == nil {
		return
	}
	s.cleanup.Stop()
	s.refs.drop()
}

func (s *Style) computeHash() uint64 {
	d := xxhash.New()
	for _, n := range s.Names() {
		e := s.props[n]
		d.WriteString(n)
		d.Write([]byte{0})
		d.WriteString(e.value.Kind().String())
		d.Write([]byte{0})
		d.WriteString(e.value.String())
		d.Write([]byte{0})
	}
	return d.Sum64()
}

// Hash returns a content hash over the resolved properties. Equal styles have
// equal hashes.
func (s *Style) Hash() uint64 {
	return s.hash
}

// Equal reports whether both styles resolve the same properties to the same
// values.
func (s *Style) Equal(other *Style) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.hash != other.hash || len(s.props) != len(other.props) {
		return false
	}
	for n, e := range s.props {
		o, ok := other.props[n]
		if !ok || o.value.Kind() != e.value.Kind() || o.value.String() != e.value.String() {
			return false
		}
	}
	return true
}

// Matched reports whether any rule or inline declaration applied to the node.
func (s *Style) Matched() bool {
	return s.matched
}

// Len returns the number of resolved properties.
func (s *Style) Len() int {
	return len(s.props)
}

// Names returns the resolved property names in sorted order.
func (s *Style) Names() []string {
	names := make([]string, 0, len(s.props))
	for n := range s.props {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Has reports whether a property is resolved.
func (s *Style) Has(name string) bool {
	_, ok := s.props[name]
	return ok
}

// Viewport returns the viewport the node reported during the query.
func (s *Style) Viewport() (Viewport, bool) {
	return s.viewport, s.hasViewport
}

// Get returns the value of a property, whatever its kind.
func (s *Style) Get(name string) (Value, bool) {
	e, ok := s.props[name]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Raw returns the declaration text of a property after function
// substitution.
func (s *Style) Raw(name string) (string, bool) {
	e, ok := s.props[name]
	return e.raw, ok
}

// IsImportant reports whether the winning declaration was marked !important.
func (s *Style) IsImportant(name string) bool {
	return s.props[name].important
}

// as returns the value of a property as the given kind, converting it through
// the property type if needed.
func (s *Style) as(name string, k Kind) (Value, bool) {
	e, ok := s.props[name]
	if !ok {
		return nil, false
	}
	return convert(e, k)
}

func convert(e entry, k Kind) (Value, bool) {
	if e.value.Kind() == k {
		return e.value, true
	}
	if e.ptype == nil || e.ptype.Convert == nil {
		return nil, false
	}
	v, ok := e.ptype.Convert(e.value, k)
	if !ok || v == nil || v.Kind() != k {
		return nil, false
	}
	return v, true
}

// GetDouble returns a numeric property.
func (s *Style) GetDouble(name string) (float64, bool) {
	v, ok := s.as(name, KindNumber)
	if !ok {
		return 0, false
	}
	n, ok := v.(Number)
	return float64(n), ok
}

// GetString returns a text or keyword property.
func (s *Style) GetString(name string) (string, bool) {
	e, ok := s.props[name]
	if !ok {
		return "", false
	}
	switch v := e.value.(type) {
	case Text:
		return string(v), true
	case Keyword:
		return string(v), true
	}
	v, ok := convert(e, KindText)
	if !ok {
		return "", false
	}
	t, ok := v.(Text)
	return string(t), ok
}

// GetColor returns a color property.
func (s *Style) GetColor(name string) (Color, bool) {
	v, ok := s.as(name, KindColor)
	if !ok {
		return Color{}, false
	}
	c, ok := v.(Color)
	return c, ok
}

// GetLength returns a length property.
func (s *Style) GetLength(name string) (Length, bool) {
	v, ok := s.as(name, KindLength)
	if !ok {
		return Length{}, false
	}
	l, ok := v.(Length)
	return l, ok
}

// Pixels returns a length property converted to px, using the viewport for
// viewport units.
func (s *Style) Pixels(name string) (float64, bool) {
	l, ok := s.GetLength(name)
	if !ok {
		return 0, false
	}
	return l.Pixels(s.viewport, s.hasViewport)
}

// GetEdges returns a padding or margin shorthand as it was declared.
func (s *Style) GetEdges(name string) (Edges, bool) {
	v, ok := s.as(name, KindEdges)
	if !ok {
		return Edges{}, false
	}
	e, ok := v.(Edges)
	return e, ok
}

// GetBorder returns a border shorthand property.
func (s *Style) GetBorder(name string) (Border, bool) {
	v, ok := s.as(name, KindBorder)
	if !ok {
		return Border{}, false
	}
	b, ok := v.(Border)
	return b, ok
}

// GetFont returns the font shorthand property.
func (s *Style) GetFont(name string) (Font, bool) {
	v, ok := s.as(name, KindFont)
	if !ok {
		return Font{}, false
	}
	f, ok := v.(Font)
	return f, ok
}

// GetImage returns an image property such as background-image.
func (s *Style) GetImage(name string) (Image, bool) {
	v, ok := s.as(name, KindImage)
	if !ok {
		return Image{}, false
	}
	i, ok := v.(Image)
	return i, ok
}

// GetAppearance returns an appearance property.
func (s *Style) GetAppearance(name string) (Appearance, bool) {
	v, ok := s.as(name, KindAppearance)
	if !ok {
		return "", false
	}
	a, ok := v.(Appearance)
	return a, ok
}

// InterpretFunc parses the raw text of a property into a host value.
type InterpretFunc func(raw RawValue, userData any) (any, error)

// Interpret runs the declaration text of a property through fn. This serves
// property types the grammar does not know.
func (s *Style) Interpret(name string, fn InterpretFunc, userData any) (any, bool) {
	e, ok := s.props[name]
	if !ok || fn == nil {
		return nil, false
	}
	v, err := fn(RawValue{Property: name, Text: e.raw}, userData)
	if err != nil {
		return nil, false
	}
	return v, true
}

// ranked returns the entries of the given names that are set, in cascade
// order.
func (s *Style) ranked(names ...string) []string {
	var set []string
	for _, n := range names {
		if _, ok := s.props[n]; ok {
			set = append(set, n)
		}
	}
	sort.SliceStable(set, func(i, j int) bool { return s.props[set[i]].rank < s.props[set[j]].rank })
	return set
}

// composeEdges combines a shorthand with its per side longhands. The one
// applied later in the cascade wins for each side.
func (s *Style) composeEdges(prefix string) (Edges, bool) {
	var (
		ret Edges
		ok  bool
	)
	names := []string{prefix}
	for _, side := range sideNames {
		names = append(names, prefix+"-"+side)
	}
	for _, n := range s.ranked(names...) {
		e := s.props[n]
		if n == prefix {
			if v, good := convert(e, KindEdges); good {
				ret = v.(Edges)
				ok = true
			}
			continue
		}
		side := sideFromName(strings.TrimPrefix(n, prefix+"-"))
		if v, good := convert(e, KindLength); good {
			ret.setSide(side, v.(Length))
			ok = true
		}
	}
	return ret, ok
}

func sideFromName(name string) Side {
	for i, n := range sideNames {
		if n == name {
			return Side(i)
		}
	}
	return Top
}

// Padding combines "padding" and "padding-<side>".
func (s *Style) Padding() (Edges, bool) {
	return s.composeEdges("padding")
}

// Margin combines "margin" and "margin-<side>".
func (s *Style) Margin() (Edges, bool) {
	return s.composeEdges("margin")
}

// BorderSide combines the border shorthands and longhands that apply to one
// side.
func (s *Style) BorderSide(side Side) (Border, bool) {
	var (
		ret Border
		ok  bool
	)
	sn := "border-" + side.String()
	for _, n := range s.ranked("border", sn, "border-width", sn+"-width", "border-color", sn+"-color", "border-style", sn+"-style") {
		e := s.props[n]
		switch n {
		case "border", sn:
			v, good := convert(e, KindBorder)
			if !good {
				continue
			}
			b := v.(Border)
			if b.HasWidth {
				ret.Width, ret.HasWidth = b.Width, true
			}
			if b.HasStyle {
				ret.Style, ret.HasStyle = b.Style, true
			}
			if b.HasColor {
				ret.Color, ret.HasColor = b.Color, true
			}
			ok = true
		case "border-width":
			if v, good := convert(e, KindEdges); good {
				ret.Width, ret.HasWidth, ok = v.(Edges).Side(side), true, true
			}
		case sn + "-width":
			if v, good := convert(e, KindLength); good {
				ret.Width, ret.HasWidth, ok = v.(Length), true, true
			}
		case "border-color", sn + "-color":
			if v, good := convert(e, KindColor); good {
				ret.Color, ret.HasColor, ok = v.(Color), true, true
			}
		case "border-style", sn + "-style":
			if k, good := e.value.(Keyword); good {
				ret.Style, ret.HasStyle, ok = k, true, true
			}
		}
	}
	return ret, ok
}

// Map returns the resolved properties as text.
func (s *Style) Map() map[string]string {
	m := make(map[string]string, len(s.props))
	for n, e := range s.props {
		m[n] = e.value.String()
	}
	return m
}

// String returns the resolved properties in declaration syntax, sorted by
// name.
func (s *Style) String() string {
	var sb strings.Builder
	for _, n := range s.Names() {
		sb.WriteString(n + ": " + s.props[n].value.String() + ";\n")
	}
	return sb.String()
}
