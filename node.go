package cssstyle

import (
	"reflect"

	"go.uber.org/zap"
)

// Node is the view of one host object during a query. Only the type name is
// required; the other capabilities are optional interfaces a Node may
// implement (IDer, Classer, PseudoClasser, AttributeGetter, Container,
// BaseStyler, Instancer, InlineStyler, ViewportProvider, TypeChecker and
// Releaser). A capability that is missing is treated as empty.
//
// The engine does not keep a Node after the query returns. Accessors must
// return the same values for the duration of one query.
type Node interface {
	TypeName() string
}

// IDer provides the identifier of a node.
type IDer interface {
	ID() (string, bool)
}

// Classer provides the class set of a node.
type Classer interface {
	Classes() []string
}

// PseudoClasser provides the pseudo-class set (hover, first-child, ...).
type PseudoClasser interface {
	PseudoClasses() []string
}

// AttributeGetter provides attribute lookup.
type AttributeGetter interface {
	Attribute(name string) (string, bool)
}

// Container provides the parent of a node. Reporting false ends the ancestor
// chain.
type Container interface {
	Container() (Node, bool)
}

// BaseStyler provides a style the node falls back to for properties the
// cascade does not set.
type BaseStyler interface {
	BaseStyle() (*Style, bool)
}

// Instancer provides an identity for the host object, used for logging.
type Instancer interface {
	Instance() any
}

// InlineStyler provides per-instance declarations, the equivalent of an HTML
// style attribute (without braces).
type InlineStyler interface {
	InlineStyle() (string, bool)
}

// Viewport holds the dimensions used to resolve viewport units.
type Viewport struct {
	X, Y, Width, Height float64
}

// ViewportProvider provides the viewport of a node.
type ViewportProvider interface {
	Viewport() (Viewport, bool)
}

// TypeChecker reports whether a node is of a type or one of its subtypes.
// Without it a type selector matches only the exact TypeName.
type TypeChecker interface {
	IsA(typeName string) bool
}

// Releaser is called exactly once when the query that obtained the node is
// finished.
type Releaser interface {
	Release()
}

// NodeFuncs implements all node capabilities with optional closures. A nil
// closure reports the capability as unsupported.
type NodeFuncs struct {
	Type             string
	GetID            func() (string, bool)
	GetClasses       func() []string
	GetPseudoClasses func() []string
	GetAttribute     func(name string) (string, bool)
	GetContainer     func() (Node, bool)
	GetBaseStyle     func() (*Style, bool)
	GetInstance      func() any
	GetStyle         func() (string, bool)
	GetViewport      func() (Viewport, bool)
	TypeTest         func(typeName string) bool
	OnRelease        func()
}

// TypeName returns n.Type.
func (n *NodeFuncs) TypeName() string { return n.Type }

// ID calls GetID.
func (n *NodeFuncs) ID() (string, bool) {
	if n.GetID == nil {
		return "", false
	}
	return n.GetID()
}

// Classes calls GetClasses.
func (n *NodeFuncs) Classes() []string {
	if n.GetClasses == nil {
		return nil
	}
	return n.GetClasses()
}

// PseudoClasses calls GetPseudoClasses.
func (n *NodeFuncs) PseudoClasses() []string {
	if n.GetPseudoClasses == nil {
		return nil
	}
	return n.GetPseudoClasses()
}

// Attribute calls GetAttribute.
func (n *NodeFuncs) Attribute(name string) (string, bool) {
	if n.GetAttribute == nil {
		return "", false
	}
	return n.GetAttribute(name)
}

// Container calls GetContainer.
func (n *NodeFuncs) Container() (Node, bool) {
	if n.GetContainer == nil {
		return nil, false
	}
	return n.GetContainer()
}

// BaseStyle calls GetBaseStyle.
func (n *NodeFuncs) BaseStyle() (*Style, bool) {
	if n.GetBaseStyle == nil {
		return nil, false
	}
	return n.GetBaseStyle()
}

// Instance calls GetInstance.
func (n *NodeFuncs) Instance() any {
	if n.GetInstance == nil {
		return nil
	}
	return n.GetInstance()
}

// InlineStyle calls GetStyle.
func (n *NodeFuncs) InlineStyle() (string, bool) {
	if n.GetStyle == nil {
		return "", false
	}
	return n.GetStyle()
}

// Viewport calls GetViewport.
func (n *NodeFuncs) Viewport() (Viewport, bool) {
	if n.GetViewport == nil {
		return Viewport{}, false
	}
	return n.GetViewport()
}

// IsA calls TypeTest, or compares typeName with n.Type if TypeTest is nil.
func (n *NodeFuncs) IsA(typeName string) bool {
	if n.TypeTest == nil {
		return n.Type == typeName
	}
	return n.TypeTest(typeName)
}

// Release calls OnRelease.
func (n *NodeFuncs) Release() {
	if n.OnRelease != nil {
		n.OnRelease()
	}
}

// maxAncestors bounds the container chain of hosts with cyclic trees.
const maxAncestors = 1024

type attrResult struct {
	val string
	ok  bool
}

// nodeView is the snapshot of one Node for the duration of a query. Every
// accessor of the node is called at most once.
type nodeView struct {
	q        *queryState
	node     Node
	depth    int
	typeName string
	id       string
	hasID    bool
	classes  map[string]struct{}
	pseudo   map[string]struct{}

	attrs     AttributeGetter
	attrCache map[string]attrResult
	typeCache map[string]bool

	parentDone bool
	parent     *nodeView
}

func toSet(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}

func (v *nodeView) isA(typeName string) bool {
	if v.typeName == typeName {
		return true
	}
	tc, ok := v.node.(TypeChecker)
	if !ok {
		return false
	}
	if r, ok := v.typeCache[typeName]; ok {
		return r
	}
	if v.typeCache == nil {
		v.typeCache = make(map[string]bool)
	}
	r := tc.IsA(typeName)
	v.typeCache[typeName] = r
	return r
}

func (v *nodeView) attribute(name string) (string, bool) {
	if v.attrs == nil {
		return "", false
	}
	if r, ok := v.attrCache[name]; ok {
		return r.val, r.ok
	}
	if v.attrCache == nil {
		v.attrCache = make(map[string]attrResult)
	}
	val, ok := v.attrs.Attribute(name)
	v.attrCache[name] = attrResult{val, ok}
	return val, ok
}

func (v *nodeView) container() *nodeView {
	if v.parentDone {
		return v.parent
	}
	v.parentDone = true
	c, ok := v.node.(Container)
	if !ok {
		return nil
	}
	if v.depth >= maxAncestors {
		v.q.log.Debug("container chain cut off",
			zap.String("type", v.typeName),
			zap.Int("depth", v.depth))
		return nil
	}
	p, ok := c.Container()
	if !ok || p == nil {
		return nil
	}
	v.parent = v.q.view(p, v.depth+1)
	return v.parent
}

// queryState tracks the node views created during one query so that they can
// be released.
type queryState struct {
	log   *zap.Logger
	views []*nodeView
}

func (q *queryState) view(n Node, depth int) *nodeView {
	v := &nodeView{q: q, node: n, depth: depth}
	q.views = append(q.views, v)
	v.typeName = n.TypeName()
	if i, ok := n.(IDer); ok {
		v.id, v.hasID = i.ID()
	}
	if c, ok := n.(Classer); ok {
		v.classes = toSet(c.Classes())
	}
	if p, ok := n.(PseudoClasser); ok {
		v.pseudo = toSet(p.PseudoClasses())
	}
	if a, ok := n.(AttributeGetter); ok {
		v.attrs = a
	}
	return v
}

// release calls Release on every node obtained during the query, the queried
// node included. A pointer node returned more than once, as in a cyclic
// container chain, is released once.
func (q *queryState) release() {
	seen := make(map[Node]struct{}, len(q.views))
	for _, v := range q.views {
		r, ok := v.node.(Releaser)
		if !ok {
			continue
		}
		if reflect.ValueOf(v.node).Kind() == reflect.Pointer {
			if _, dup := seen[v.node]; dup {
				continue
			}
			seen[v.node] = struct{}{}
		}
		r.Release()
	}
	q.views = nil
}
