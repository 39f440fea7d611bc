package htmlnode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/boxesandglue/cssstyle"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Styler loads the stylesheets of HTML documents and writes the resolved
// styles back into the DOM.
type Styler struct {
	Stylesheet *cssstyle.Stylesheet
	// Viewport is handed to the cascade for viewport units.
	Viewport *cssstyle.Viewport
	log      *zap.Logger
}

// NewStyler returns a styler with an empty stylesheet on g.
func NewStyler(g *cssstyle.Grammar) *Styler {
	return &Styler{
		Stylesheet: g.NewStylesheet(),
		log:        g.Logger().Named("html"),
	}
}

// NewStylerWithDefaults returns a styler with CSSdefaults loaded as the user
// agent layer.
func NewStylerWithDefaults(g *cssstyle.Grammar) (*Styler, error) {
	s := NewStyler(g)
	if _, err := s.Stylesheet.AddFromBuffer([]byte(CSSdefaults), cssstyle.UserAgent, ""); err != nil {
		return nil, err
	}
	return s, nil
}

// AddCSSText parses CSS text and adds it as an author layer. If the fragment
// contains relative links to other files, the dir stack must be set in
// advance.
func (s *Styler) AddCSSText(fragment string) (cssstyle.LayerID, error) {
	return s.Stylesheet.AddFromBuffer([]byte(fragment), cssstyle.Author, "")
}

// ProcessHTMLFile opens an HTML file, reads embedded and linked stylesheets,
// applies the CSS rules and returns the DOM structure.
func (s *Styler) ProcessHTMLFile(filename string) (*goquery.Document, error) {
	dir := filepath.Dir(filename)
	s.Stylesheet.PushDir(dir)
	defer s.Stylesheet.PopDir()

	r, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("htmlnode: %w", err)
	}
	defer r.Close()
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("htmlnode: parse %s: %w", filename, err)
	}
	return s.process(doc)
}

// ProcessHTMLChunk reads the HTML text. If there are linked style sheets (<link
// href=...) these are also read. After reading, the CSS is applied to the HTML
// DOM which is returned.
func (s *Styler) ProcessHTMLChunk(htmltext string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmltext))
	if err != nil {
		return nil, fmt.Errorf("htmlnode: parse: %w", err)
	}
	return s.process(doc)
}

func (s *Styler) process(doc *goquery.Document) (*goquery.Document, error) {
	if err := s.LoadStyles(doc); err != nil {
		return nil, err
	}
	s.ApplyCSS(doc)
	return doc, nil
}

// LoadStyles adds the <style> elements and the stylesheets linked from the
// head of the document as author layers. Files that cannot be read are
// reported together; the others are loaded.
func (s *Styler) LoadStyles(doc *goquery.Document) error {
	var errs error
	doc.Find("style, :root > head link").Each(func(i int, sel *goquery.Selection) {
		if goquery.NodeName(sel) == "style" {
			text := sel.Text()
			if strings.TrimSpace(text) == "" {
				return
			}
			if _, err := s.AddCSSText(text); err != nil {
				errs = multierr.Append(errs, err)
			}
			return
		}
		if rel, ok := sel.Attr("rel"); ok && !strings.EqualFold(strings.TrimSpace(rel), "stylesheet") {
			return
		}
		if href, ok := sel.Attr("href"); ok {
			if _, err := s.Stylesheet.AddFromFile(href, cssstyle.Author); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	})
	return errs
}

// Style resolves the style of a single element.
func (s *Styler) Style(n *html.Node) *cssstyle.Style {
	return s.Stylesheet.Query(&Node{Node: n, View: s.Viewport})
}

func (s *Styler) applyTo(sel *goquery.Selection) int {
	count := 0
	sel.Each(func(i int, el *goquery.Selection) {
		n := el.Get(0)
		if n.Type != html.ElementNode {
			return
		}
		st := s.Style(n)
		for name, val := range st.Map() {
			el.SetAttr("!"+name, val)
		}
		count++
	})
	s.log.Debug("styled elements", zap.Int("count", count))
	return count
}

// ApplyCSS resolves the style of every element of the document and stores
// each property as an attribute with the property name prefixed by "!".
func (s *Styler) ApplyCSS(doc *goquery.Document) *goquery.Document {
	s.applyTo(doc.Find("*"))
	return doc
}

// ApplyCSSTo is ApplyCSS limited to the elements matching the selector.
func (s *Styler) ApplyCSSTo(doc *goquery.Document, selector string) (int, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return 0, fmt.Errorf("htmlnode: selector %q: %w", selector, err)
	}
	return s.applyTo(doc.FindMatcher(m)), nil
}
