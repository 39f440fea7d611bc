// Package htmlnode styles HTML documents with cssstyle. Elements of a
// golang.org/x/net/html tree are presented to the cascade through Node.
package htmlnode

import (
	"strings"

	"github.com/boxesandglue/cssstyle"
	"golang.org/x/net/html"
)

// Node presents an element of an HTML tree to the cascade. The pseudo-classes
// root, first-child, last-child, only-child, empty and link are computed from
// the tree; others can be added with Pseudo.
type Node struct {
	*html.Node
	Pseudo []string
	View   *cssstyle.Viewport
}

// New returns the adapter for n.
func New(n *html.Node) *Node {
	return &Node{Node: n}
}

// TypeName returns the lower case element name.
func (n *Node) TypeName() string {
	return strings.ToLower(n.Data)
}

func (n *Node) attr(name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// ID returns the id attribute.
func (n *Node) ID() (string, bool) {
	return n.attr("id")
}

// Classes returns the entries of the class attribute.
func (n *Node) Classes() []string {
	c, _ := n.attr("class")
	return strings.Fields(c)
}

// Attribute returns an attribute of the element.
func (n *Node) Attribute(name string) (string, bool) {
	return n.attr(name)
}

// InlineStyle returns the style attribute.
func (n *Node) InlineStyle() (string, bool) {
	return n.attr("style")
}

// Instance returns the underlying html node.
func (n *Node) Instance() any {
	return n.Node
}

// Container returns the parent element. The document node ends the chain.
func (n *Node) Container() (cssstyle.Node, bool) {
	p := n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil, false
	}
	return &Node{Node: p, View: n.View}, true
}

// Viewport returns View.
func (n *Node) Viewport() (cssstyle.Viewport, bool) {
	if n.View == nil {
		return cssstyle.Viewport{}, false
	}
	return *n.View, true
}

func prevElement(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func nextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func isEmpty(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode || (c.Type == html.TextNode && c.Data != "") {
			return false
		}
	}
	return true
}

// PseudoClasses returns the computed structural pseudo-classes and Pseudo.
func (n *Node) PseudoClasses() []string {
	var ret []string
	if n.Parent == nil || n.Parent.Type == html.DocumentNode {
		ret = append(ret, "root")
	} else {
		first, last := prevElement(n.Node) == nil, nextElement(n.Node) == nil
		if first {
			ret = append(ret, "first-child")
		}
		if last {
			ret = append(ret, "last-child")
		}
		if first && last {
			ret = append(ret, "only-child")
		}
	}
	if isEmpty(n.Node) {
		ret = append(ret, "empty")
	}
	if n.TypeName() == "a" {
		if _, ok := n.attr("href"); ok {
			ret = append(ret, "link")
		}
	}
	return append(ret, n.Pseudo...)
}
