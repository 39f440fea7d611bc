package cssstyle

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// generic keywords every property accepts.
var cssWideKeywords = map[string]bool{
	"inherit": true,
	"initial": true,
	"unset":   true,
}

func isWideKeyword(s string) bool {
	return cssWideKeywords[strings.ToLower(s)]
}

// ParseNumber parses a plain number.
func ParseNumber(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

// ParseLength parses a number with an optional unit, for example "3px",
// "1.5em" or "0".
func ParseLength(s string) (Length, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	idx := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != '-' && r != '+'
	})
	num, unit := s, ""
	if idx >= 0 {
		num, unit = s[:idx], s[idx:]
	}
	if num == "" {
		return Length{}, fmt.Errorf("invalid length %q", s)
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, fmt.Errorf("invalid length %q", s)
	}
	if !knownUnits[Unit(unit)] {
		return Length{}, fmt.Errorf("unknown unit %q", unit)
	}
	return Length{Value: f, Unit: Unit(unit)}, nil
}

// ParseColor parses hex colors (#rgb, #rgba, #rrggbb, #rrggbbaa), rgb() and
// rgba() calls, the named CSS colors and "transparent".
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "transparent":
		return Color{Alpha: 0}, nil
	case strings.HasPrefix(s, "#"):
		return parseHexColor(s)
	case strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba("):
		return parseRGBFunction(s)
	}
	if rgba, ok := colornames.Map[s]; ok {
		c, _ := colorful.MakeColor(rgba)
		return Color{RGB: c, Alpha: 1}, nil
	}
	return Color{}, fmt.Errorf("invalid color %q", s)
}

func parseHexColor(s string) (Color, error) {
	alpha := 1.0
	switch len(s) {
	case 5:
		a, err := strconv.ParseUint(s[4:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid color %q", s)
		}
		alpha = float64(a) / 15
		s = s[:4]
	case 9:
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("invalid color %q", s)
		}
		alpha = float64(a) / 255
		s = s[:7]
	case 4, 7:
	default:
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{RGB: c, Alpha: alpha}, nil
}

func parseRGBFunction(s string) (Color, error) {
	open := strings.IndexByte(s, '(')
	if !strings.HasSuffix(s, ")") {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	args := strings.Split(s[open+1:len(s)-1], ",")
	if len(args) != 3 && len(args) != 4 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	var ch [3]float64
	for i := range 3 {
		a := strings.TrimSpace(args[i])
		if p, ok := strings.CutSuffix(a, "%"); ok {
			f, err := ParseNumber(p)
			if err != nil {
				return Color{}, err
			}
			ch[i] = f / 100
			continue
		}
		f, err := ParseNumber(a)
		if err != nil {
			return Color{}, err
		}
		ch[i] = f / 255
	}
	alpha := 1.0
	if len(args) == 4 {
		a := strings.TrimSpace(args[3])
		if p, ok := strings.CutSuffix(a, "%"); ok {
			f, err := ParseNumber(p)
			if err != nil {
				return Color{}, err
			}
			alpha = f / 100
		} else {
			f, err := ParseNumber(a)
			if err != nil {
				return Color{}, err
			}
			alpha = f
		}
	}
	c := colorful.Color{R: ch[0], G: ch[1], B: ch[2]}.Clamped()
	return Color{RGB: c, Alpha: min(max(alpha, 0), 1)}, nil
}

// ParseEdges distributes one to four lengths on the four sides the way CSS
// does for padding and margin.
func ParseEdges(fields []string) (Edges, error) {
	if len(fields) < 1 || len(fields) > 4 {
		return Edges{}, fmt.Errorf("need one to four values, got %d", len(fields))
	}
	l := make([]Length, len(fields))
	for i, f := range fields {
		v, err := ParseLength(f)
		if err != nil {
			return Edges{}, err
		}
		l[i] = v
	}
	switch len(l) {
	case 1:
		return Edges{l[0], l[0], l[0], l[0]}, nil
	case 2:
		return Edges{l[0], l[1], l[0], l[1]}, nil
	case 3:
		return Edges{l[0], l[1], l[2], l[1]}, nil
	}
	return Edges{l[0], l[1], l[2], l[3]}, nil
}

var borderStyles = map[string]bool{
	"none": true, "hidden": true, "dotted": true, "dashed": true, "solid": true,
	"double": true, "groove": true, "ridge": true, "inset": true, "outset": true,
}

var borderWidths = map[string]Length{
	"thin":   {Value: 1, Unit: UnitPx},
	"medium": {Value: 3, Unit: UnitPx},
	"thick":  {Value: 5, Unit: UnitPx},
}

func parseBorderWidth(s string) (Length, error) {
	if l, ok := borderWidths[strings.ToLower(s)]; ok {
		return l, nil
	}
	return ParseLength(s)
}

// ParseBorder parses "[width] [style] [color]" in any order.
func ParseBorder(fields []string) (Border, error) {
	var b Border
	if len(fields) == 0 || len(fields) > 3 {
		return b, errors.New("need one to three border values")
	}
	for _, f := range fields {
		lf := strings.ToLower(f)
		switch {
		case borderStyles[lf] && !b.HasStyle:
			b.Style, b.HasStyle = Keyword(lf), true
			continue
		case !b.HasWidth:
			if l, err := parseBorderWidth(f); err == nil {
				b.Width, b.HasWidth = l, true
				continue
			}
		}
		if c, err := ParseColor(f); err == nil && !b.HasColor {
			b.Color, b.HasColor = c, true
			continue
		}
		return Border{}, fmt.Errorf("invalid border value %q", f)
	}
	return b, nil
}

var fontWeights = map[string]int{
	"normal": 400,
	"bold":   700,
}

var fontStyles = map[string]bool{
	"normal": true, "italic": true, "oblique": true,
}

func parseFontWeight(s string) (int, bool) {
	if w, ok := fontWeights[strings.ToLower(s)]; ok {
		return w, true
	}
	w, err := strconv.Atoi(s)
	if err != nil || w < 1 || w > 1000 {
		return 0, false
	}
	return w, true
}

// ParseFont parses the font shorthand
// "[style] [weight] size[/line-height] family[, family]*".
func ParseFont(raw RawValue) (Font, error) {
	var f Font
	fields := raw.Fields()
	i := 0
	for ; i < len(fields); i++ {
		lf := strings.ToLower(fields[i])
		if fontStyles[lf] && f.Style == "" && lf != "normal" {
			f.Style = Keyword(lf)
			continue
		}
		if lf == "normal" {
			continue
		}
		if w, ok := parseFontWeight(lf); ok && f.Weight == 0 {
			f.Weight = w
			continue
		}
		break
	}
	if i >= len(fields) {
		return Font{}, errors.New("font size missing")
	}
	size, lh, hasLH := strings.Cut(fields[i], "/")
	l, err := ParseLength(size)
	if err != nil {
		return Font{}, err
	}
	f.Size = l
	if hasLH {
		if lh == "" && i+1 < len(fields) {
			i++
			lh = fields[i]
		}
		v, err := ParseLength(lh)
		if err != nil {
			return Font{}, err
		}
		f.LineHeight, f.HasLineHeight = v, true
	} else if i+1 < len(fields) && strings.HasPrefix(fields[i+1], "/") {
		i++
		rest := strings.TrimPrefix(fields[i], "/")
		if rest == "" && i+1 < len(fields) {
			i++
			rest = fields[i]
		}
		v, err := ParseLength(rest)
		if err != nil {
			return Font{}, err
		}
		f.LineHeight, f.HasLineHeight = v, true
	}
	family := strings.Join(fields[i+1:], " ")
	for _, fam := range (RawValue{Text: family}).List() {
		f.Family = append(f.Family, unquote(fam))
	}
	if len(f.Family) == 0 {
		return Font{}, errors.New("font family missing")
	}
	return f, nil
}

// ParseImage parses "none" or a url().
func ParseImage(s string) (Image, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "none") {
		return Image{None: true}, nil
	}
	if len(s) > 5 && strings.EqualFold(s[:4], "url(") && strings.HasSuffix(s, ")") {
		return Image{URI: unquote(s[4 : len(s)-1])}, nil
	}
	return Image{}, fmt.Errorf("invalid image %q", s)
}

// single returns the only field of a value.
func single(raw RawValue) (string, error) {
	f := raw.Fields()
	if len(f) != 1 {
		return "", fmt.Errorf("%s: expected a single value, got %q", raw.Property, raw.Text)
	}
	return f[0], nil
}

// keywordOr returns a Keyword for CSS wide keywords and the extra keywords
// given.
func keywordOr(s string, extra ...string) (Keyword, bool) {
	ls := strings.ToLower(s)
	if isWideKeyword(ls) {
		return Keyword(ls), true
	}
	for _, e := range extra {
		if ls == e {
			return Keyword(ls), true
		}
	}
	return "", false
}

func convertLength(v Value, target Kind) (Value, bool) {
	switch x := v.(type) {
	case Length:
		if target == KindNumber && (x.Unit == UnitNone || x.Unit == UnitPx) {
			return Number(x.Value), true
		}
	case Number:
		if target == KindLength {
			return Length{Value: float64(x)}, true
		}
	}
	return nil, false
}

// NumberType parses plain numbers. The values convert to unitless lengths.
func NumberType() *PropertyType {
	return &PropertyType{
		Name: "number",
		Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
			s, err := single(raw)
			if err != nil {
				return nil, err
			}
			if k, ok := keywordOr(s); ok {
				return k, nil
			}
			f, err := ParseNumber(s)
			if err != nil {
				return nil, err
			}
			return Number(f), nil
		},
		Convert: convertLength,
	}
}

// LengthType parses a length or one of the given keywords. Lengths in px or
// without a unit convert to numbers.
func LengthType(keywords ...string) *PropertyType {
	return &PropertyType{
		Name: "length",
		Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
			s, err := single(raw)
			if err != nil {
				return nil, err
			}
			if k, ok := keywordOr(s, keywords...); ok {
				return k, nil
			}
			l, err := ParseLength(s)
			if err != nil {
				return nil, err
			}
			return l, nil
		},
		Convert: convertLength,
	}
}

// ColorType parses colors.
func ColorType() *PropertyType {
	return &PropertyType{
		Name: "color",
		Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
			s := strings.TrimSpace(raw.Text)
			if k, ok := keywordOr(s, "currentcolor"); ok {
				return k, nil
			}
			c, err := ParseColor(s)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

// KeywordType accepts one identifier out of a set. An empty set accepts any
// identifier.
func KeywordType(allowed ...string) *PropertyType {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	return &PropertyType{
		Name: "keyword",
		Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
			s, err := single(raw)
			if err != nil {
				return nil, err
			}
			ls := strings.ToLower(s)
			if isWideKeyword(ls) || len(set) == 0 || set[ls] {
				return Keyword(ls), nil
			}
			return nil, fmt.Errorf("%s: unknown keyword %q", raw.Property, s)
		},
	}
}

// TextType keeps the value as text with quotes removed.
func TextType() *PropertyType {
	return &PropertyType{
		Name: "text",
		Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
			return Text(unquote(raw.Text)), nil
		},
	}
}

// EdgesType parses the padding and margin shorthands.
func EdgesType() *PropertyType {
	return &PropertyType{
		Name: "edges",
		Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
			e, err := ParseEdges(raw.Fields())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", raw.Property, err)
			}
			return e, nil
		},
		Convert: func(v Value, target Kind) (Value, bool) {
			e := v.(Edges)
			if target == KindLength && e.Top == e.Right && e.Top == e.Bottom && e.Top == e.Left {
				return e.Top, true
			}
			return nil, false
		},
	}
}

// BorderWidthType parses border-width, a set of one to four widths.
func BorderWidthType() *PropertyType {
	return &PropertyType{
		Name: "border-width",
		Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
			fields := raw.Fields()
			for i, f := range fields {
				if l, ok := borderWidths[strings.ToLower(f)]; ok {
					fields[i] = l.String()
				}
			}
			e, err := ParseEdges(fields)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", raw.Property, err)
			}
			return e, nil
		},
	}
}

// BorderSideWidthType parses the width of one border side. The keywords
// thin, medium and thick are mapped to 1px, 3px and 5px.
func BorderSideWidthType() *PropertyType {
	return &PropertyType{
		Name: "border-side-width",
		Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
			s, err := single(raw)
			if err != nil {
				return nil, err
			}
			if k, ok := keywordOr(s); ok {
				return k, nil
			}
			l, err := parseBorderWidth(s)
			if err != nil {
				return nil, err
			}
			return l, nil
		},
		Convert: convertLength,
	}
}

// BorderType parses the border shorthands.
func BorderType() *PropertyType {
	return &PropertyType{
		Name: "border",
		Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
			if s := strings.TrimSpace(raw.Text); strings.EqualFold(s, "none") {
				return Border{Style: "none", HasStyle: true}, nil
			}
			b, err := ParseBorder(raw.Fields())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", raw.Property, err)
			}
			return b, nil
		},
	}
}

// FontType parses the font shorthand.
func FontType() *PropertyType {
	return &PropertyType{
		Name: "font",
		Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
			f, err := ParseFont(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", raw.Property, err)
			}
			return f, nil
		},
	}
}

// FontWeightType parses font-weight as a number. normal and bold are mapped
// to 400 and 700.
func FontWeightType() *PropertyType {
	return &PropertyType{
		Name: "font-weight",
		Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
			s, err := single(raw)
			if err != nil {
				return nil, err
			}
			if k, ok := keywordOr(s, "bolder", "lighter"); ok {
				return k, nil
			}
			w, ok := parseFontWeight(s)
			if !ok {
				return nil, fmt.Errorf("invalid font weight %q", s)
			}
			return Number(w), nil
		},
	}
}

// ImageType parses background-image.
func ImageType() *PropertyType {
	return &PropertyType{
		Name: "image",
		Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
			i, err := ParseImage(raw.Text)
			if err != nil {
				return nil, err
			}
			return i, nil
		},
	}
}

// AppearanceType parses the name of a theme drawing function.
func AppearanceType() *PropertyType {
	return &PropertyType{
		Name: "appearance",
		Parse: func(raw RawValue, _ *Grammar, _ any) (Value, error) {
			s, err := single(raw)
			if err != nil {
				return nil, err
			}
			return Appearance(strings.ToLower(unquote(s))), nil
		},
	}
}

// BasePropertyTypes returns the generic property types: colors, opacity,
// sizes, text layout keywords and font-family.
func BasePropertyTypes() map[string]*PropertyType {
	m := map[string]*PropertyType{
		"color":            ColorType(),
		"background-color": ColorType(),
		"opacity":          NumberType(),
		"z-index":          NumberType(),
		"font-family":      TextType(),
		"display":          KeywordType(),
		"visibility":       KeywordType("visible", "hidden", "collapse"),
		"text-align":       KeywordType("left", "right", "center", "justify", "start", "end"),
		"white-space":      KeywordType("normal", "nowrap", "pre", "pre-wrap", "pre-line"),
		"position":         KeywordType("static", "relative", "absolute", "fixed", "sticky"),
		"float":            KeywordType("left", "right", "none"),
		"direction":        KeywordType("ltr", "rtl"),
		"vertical-align":   LengthType("baseline", "sub", "super", "top", "middle", "bottom", "text-top", "text-bottom"),
	}
	for _, n := range []string{"width", "height", "min-width", "min-height", "max-width", "max-height"} {
		m[n] = LengthType("auto", "none")
	}
	for _, n := range []string{"font-size", "line-height", "letter-spacing", "word-spacing", "text-indent"} {
		m[n] = LengthType("normal")
	}
	return m
}

// RenderingPropertyTypes returns the box, border, font, background and
// appearance property types. Shorthands are stored under their own name and
// are never split into longhands, see Style.Padding, Style.Margin and
// Style.BorderSide.
func RenderingPropertyTypes() map[string]*PropertyType {
	m := map[string]*PropertyType{
		"padding":          EdgesType(),
		"margin":           EdgesType(),
		"border":           BorderType(),
		"border-width":     BorderWidthType(),
		"border-color":     ColorType(),
		"border-style":     KeywordType("none", "hidden", "dotted", "dashed", "solid", "double", "groove", "ridge", "inset", "outset"),
		"border-radius":    LengthType(),
		"font":             FontType(),
		"font-weight":      FontWeightType(),
		"font-style":       KeywordType("normal", "italic", "oblique"),
		"background-image": ImageType(),
		"appearance":       AppearanceType(),
	}
	for _, side := range sideNames {
		m["padding-"+side] = LengthType()
		m["margin-"+side] = LengthType("auto")
		m["border-"+side] = BorderType()
		m["border-"+side+"-width"] = BorderSideWidthType()
		m["border-"+side+"-color"] = ColorType()
		m["border-"+side+"-style"] = m["border-style"]
	}
	return m
}
