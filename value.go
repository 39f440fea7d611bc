package cssstyle

import (
	"fmt"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Kind tells the variant of a resolved property value.
type Kind int

// The value kinds known to the engine. Hosts use KindCustom for everything
// else.
const (
	KindNumber Kind = iota + 1
	KindLength
	KindColor
	KindText
	KindKeyword
	KindEdges
	KindBorder
	KindFont
	KindImage
	KindAppearance
	KindOpaque
	KindCustom
)

var kindNames = map[Kind]string{
	KindNumber:     "number",
	KindLength:     "length",
	KindColor:      "color",
	KindText:       "text",
	KindKeyword:    "keyword",
	KindEdges:      "edges",
	KindBorder:     "border",
	KindFont:       "font",
	KindImage:      "image",
	KindAppearance: "appearance",
	KindOpaque:     "opaque",
	KindCustom:     "custom",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a typed property value. The concrete types of this package are
// Number, Length, Color, Text, Keyword, Edges, Border, Font, Image,
// Appearance, Opaque and Custom.
type Value interface {
	Kind() Kind
	String() string
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Number is a plain number without a unit.
type Number float64

func (Number) Kind() Kind       { return KindNumber }
func (n Number) String() string { return formatFloat(float64(n)) }

// Unit is a CSS length unit.
type Unit string

// Length units. UnitNone is used for unitless numbers like "0".
const (
	UnitNone    Unit = ""
	UnitPx      Unit = "px"
	UnitPt      Unit = "pt"
	UnitPc      Unit = "pc"
	UnitIn      Unit = "in"
	UnitCm      Unit = "cm"
	UnitMm      Unit = "mm"
	UnitEm      Unit = "em"
	UnitEx      Unit = "ex"
	UnitRem     Unit = "rem"
	UnitPercent Unit = "%"
	UnitVw      Unit = "vw"
	UnitVh      Unit = "vh"
	UnitVmin    Unit = "vmin"
	UnitVmax    Unit = "vmax"
)

var knownUnits = map[Unit]bool{
	UnitNone: true, UnitPx: true, UnitPt: true, UnitPc: true, UnitIn: true,
	UnitCm: true, UnitMm: true, UnitEm: true, UnitEx: true, UnitRem: true,
	UnitPercent: true, UnitVw: true, UnitVh: true, UnitVmin: true, UnitVmax: true,
}

// Length is a number with a unit.
type Length struct {
	Value float64
	Unit  Unit
}

func (Length) Kind() Kind       { return KindLength }
func (l Length) String() string { return formatFloat(l.Value) + string(l.Unit) }

// Pixels converts the length to px. Relative units other than the viewport
// units cannot be resolved without a font context and report false.
func (l Length) Pixels(vp Viewport, hasViewport bool) (float64, bool) {
	switch l.Unit {
	case UnitNone, UnitPx:
		return l.Value, true
	case UnitPt:
		return l.Value * 96 / 72, true
	case UnitPc:
		return l.Value * 16, true
	case UnitIn:
		return l.Value * 96, true
	case UnitCm:
		return l.Value * 96 / 2.54, true
	case UnitMm:
		return l.Value * 96 / 25.4, true
	}
	if !hasViewport {
		return 0, false
	}
	switch l.Unit {
	case UnitVw:
		return l.Value * vp.Width / 100, true
	case UnitVh:
		return l.Value * vp.Height / 100, true
	case UnitVmin:
		return l.Value * min(vp.Width, vp.Height) / 100, true
	case UnitVmax:
		return l.Value * max(vp.Width, vp.Height) / 100, true
	}
	return 0, false
}

// Color is an sRGB color with alpha.
type Color struct {
	RGB   colorful.Color
	Alpha float64
}

func (Color) Kind() Kind { return KindColor }

func (c Color) String() string {
	if c.Alpha >= 1 {
		return c.RGB.Hex()
	}
	r, g, b := c.RGB.RGB255()
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", r, g, b, formatFloat(c.Alpha))
}

// RGBA implements color.Color with premultiplied alpha.
func (c Color) RGBA() (r, g, b, a uint32) {
	r8, g8, b8 := c.RGB.Clamped().RGB255()
	alpha := min(max(c.Alpha, 0), 1)
	a = uint32(alpha*0xffff + 0.5)
	r = uint32(r8) * 0x101 * a / 0xffff
	g = uint32(g8) * 0x101 * a / 0xffff
	b = uint32(b8) * 0x101 * a / 0xffff
	return
}

// Text is a free form string, quoted strings are stored without quotes.
type Text string

func (Text) Kind() Kind       { return KindText }
func (t Text) String() string { return string(t) }

// Keyword is a single CSS identifier such as "auto" or "solid".
type Keyword string

func (Keyword) Kind() Kind       { return KindKeyword }
func (k Keyword) String() string { return string(k) }

// Edges holds the four values of a padding or margin shorthand.
type Edges struct {
	Top, Right, Bottom, Left Length
}

func (Edges) Kind() Kind { return KindEdges }

func (e Edges) String() string {
	return strings.Join([]string{e.Top.String(), e.Right.String(), e.Bottom.String(), e.Left.String()}, " ")
}

// Side returns the value for one side.
func (e Edges) Side(s Side) Length {
	switch s {
	case Top:
		return e.Top
	case Right:
		return e.Right
	case Bottom:
		return e.Bottom
	}
	return e.Left
}

func (e *Edges) setSide(s Side, l Length) {
	switch s {
	case Top:
		e.Top = l
	case Right:
		e.Right = l
	case Bottom:
		e.Bottom = l
	default:
		e.Left = l
	}
}

// Side names one edge of a box.
type Side int

// The four sides in CSS order.
const (
	Top Side = iota
	Right
	Bottom
	Left
)

var sideNames = [4]string{"top", "right", "bottom", "left"}

func (s Side) String() string {
	if s < Top || s > Left {
		return "side(" + strconv.Itoa(int(s)) + ")"
	}
	return sideNames[s]
}

// Border is the value of a border shorthand. The Has* flags tell which
// components were given.
type Border struct {
	Width    Length
	Style    Keyword
	Color    Color
	HasWidth bool
	HasStyle bool
	HasColor bool
}

func (Border) Kind() Kind { return KindBorder }

func (b Border) String() string {
	var parts []string
	if b.HasWidth {
		parts = append(parts, b.Width.String())
	}
	if b.HasStyle {
		parts = append(parts, b.Style.String())
	}
	if b.HasColor {
		parts = append(parts, b.Color.String())
	}
	return strings.Join(parts, " ")
}

// Font is the value of the font shorthand.
type Font struct {
	Style      Keyword
	Weight     int
	Size       Length
	LineHeight Length
	Family     []string

	HasLineHeight bool
}

func (Font) Kind() Kind { return KindFont }

func (f Font) String() string {
	var parts []string
	if f.Style != "" {
		parts = append(parts, string(f.Style))
	}
	if f.Weight != 0 {
		parts = append(parts, strconv.Itoa(f.Weight))
	}
	size := f.Size.String()
	if f.HasLineHeight {
		size += "/" + f.LineHeight.String()
	}
	parts = append(parts, size)
	if len(f.Family) > 0 {
		parts = append(parts, strings.Join(f.Family, ", "))
	}
	return strings.Join(parts, " ")
}

// Image is the value of background-image. None is set for "none".
type Image struct {
	URI  string
	None bool
}

func (Image) Kind() Kind { return KindImage }

func (i Image) String() string {
	if i.None {
		return "none"
	}
	return "url(" + i.URI + ")"
}

// Appearance names a theme drawing function for the element.
type Appearance string

func (Appearance) Kind() Kind       { return KindAppearance }
func (a Appearance) String() string { return string(a) }

// Opaque is stored for properties without a registered type. It is not
// returned by the typed getters but is available through Style.Raw and
// Style.Interpret.
type Opaque string

func (Opaque) Kind() Kind       { return KindOpaque }
func (o Opaque) String() string { return string(o) }

// Custom wraps a host defined value.
type Custom struct {
	Name string
	Data any
}

func (Custom) Kind() Kind { return KindCustom }

func (c Custom) String() string {
	if s, ok := c.Data.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(c.Data)
}
