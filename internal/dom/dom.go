// Package dom is the read-only view of a rendered page that the matcher and
// listing extractor work against. Renderers hand back a Document; nothing
// downstream depends on how the page was produced.
package dom

// Node is a single element of a rendered page
type Node interface {
	// Tag returns the lowercase element name
	Tag() string

	// Text returns the concatenated text content of the element and its descendants
	Text() string

	// Attr returns the value of the named attribute
	Attr(name string) (string, bool)

	// HasClassContaining reports whether the class attribute contains fragment,
	// with the semantics of the CSS [class*="fragment"] selector
	HasClassContaining(fragment string) bool

	// Find returns the descendants matching a CSS selector, in document order
	Find(selector string) []Node

	// Parent returns the parent element, if any
	Parent() (Node, bool)

	// Ancestor returns the element depth levels up; Ancestor(1) is the parent
	Ancestor(depth int) (Node, bool)

	// NearestAncestor returns the closest ancestor, excluding the node itself,
	// for which match returns true
	NearestAncestor(match func(Node) bool) (Node, bool)

	// OuterHTML returns the serialized element including its own tag
	OuterHTML() string

	// Hidden reports whether the element or one of its ancestors is hidden
	// through the hidden attribute, aria-hidden or an inline style
	Hidden() bool
}

// Document is a parsed page
type Document interface {
	// FindAll returns all elements matching a CSS selector, in document order
	FindAll(selector string) []Node

	// URL returns the address the page was loaded from
	URL() string

	// Title returns the trimmed text of the <title> element
	Title() string

	// HTML returns the serialized page source
	HTML() string
}
