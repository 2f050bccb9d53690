package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type goqueryDocument struct {
	doc *goquery.Document
	url string
}

type goqueryNode struct {
	sel *goquery.Selection
}

// NewDocument parses UTF-8 HTML from r
func NewDocument(r io.Reader, pageURL string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &goqueryDocument{doc: doc, url: pageURL}, nil
}

// NewDocumentFromString parses an HTML string
func NewDocumentFromString(html, pageURL string) (Document, error) {
	return NewDocument(strings.NewReader(html), pageURL)
}

func (d *goqueryDocument) FindAll(selector string) []Node {
	return wrap(d.doc.Find(selector))
}

func (d *goqueryDocument) URL() string {
	return d.url
}

func (d *goqueryDocument) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

func (d *goqueryDocument) HTML() string {
	html, err := d.doc.Html()
	if err != nil {
		return ""
	}
	return html
}

func wrap(sel *goquery.Selection) []Node {
	nodes := make([]Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, &goqueryNode{sel: s})
	})
	return nodes
}

func (n *goqueryNode) Tag() string {
	return strings.ToLower(goquery.NodeName(n.sel))
}

func (n *goqueryNode) Text() string {
	return n.sel.Text()
}

func (n *goqueryNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n *goqueryNode) HasClassContaining(fragment string) bool {
	class, ok := n.sel.Attr("class")
	return ok && strings.Contains(class, fragment)
}

func (n *goqueryNode) Find(selector string) []Node {
	return wrap(n.sel.Find(selector))
}

func (n *goqueryNode) Parent() (Node, bool) {
	// goquery only returns element parents, so the document root has none
	parent := n.sel.Parent()
	if parent.Length() == 0 {
		return nil, false
	}
	return &goqueryNode{sel: parent}, true
}

func (n *goqueryNode) Ancestor(depth int) (Node, bool) {
	var current Node = n
	for i := 0; i < depth; i++ {
		parent, ok := current.Parent()
		if !ok {
			return nil, false
		}
		current = parent
	}
	return current, true
}

func (n *goqueryNode) NearestAncestor(match func(Node) bool) (Node, bool) {
	current, ok := n.Parent()
	for ok {
		if match(current) {
			return current, true
		}
		current, ok = current.Parent()
	}
	return nil, false
}

func (n *goqueryNode) OuterHTML() string {
	html, err := goquery.OuterHtml(n.sel)
	if err != nil {
		return ""
	}
	return html
}

func (n *goqueryNode) Hidden() bool {
	var current Node = n
	for {
		if hiddenByAttributes(current) {
			return true
		}
		parent, ok := current.Parent()
		if !ok {
			return false
		}
		current = parent
	}
}

func hiddenByAttributes(n Node) bool {
	if _, ok := n.Attr("hidden"); ok {
		return true
	}
	if v, ok := n.Attr("aria-hidden"); ok && strings.EqualFold(v, "true") {
		return true
	}
	style, ok := n.Attr("style")
	if !ok {
		return false
	}
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}
