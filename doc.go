// Package cssstyle resolves CSS styles for arbitrary host objects.
//
// A Grammar knows the property types and CSS functions. Stylesheets built
// from a grammar hold layers of rules that can be added from buffers or files
// and unloaded again at any time. A query matches the rules of all layers
// against a host object, seen through the Node interface and its optional
// capabilities, and returns an immutable Style with typed accessors.
//
// The package covers a subset of CSS: type, id, class, pseudo-class and
// attribute selectors, the descendant and child combinators, !important and
// the user agent, user and author origins. At-rules are skipped.
package cssstyle
