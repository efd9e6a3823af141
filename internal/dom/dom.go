// Package dom holds the element helpers the visualizations use to build and
// tear down their subtree under a caller-owned mount element. Documents are
// golang.org/x/net/html trees; lookup and serialization go through goquery.
package dom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrElementNotFound is returned when a target selector matches nothing.
var ErrElementNotFound = errors.New("dom: element not found")

// NewDocument parses markup into a document.
func NewDocument(markup string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("dom: parse document: %w", err)
	}
	return doc, nil
}

// GetElement resolves a mount target. target may be an *html.Node, a
// *goquery.Selection (its first node) or a CSS selector evaluated against doc.
func GetElement(doc *goquery.Document, target any) (*html.Node, error) {
	switch t := target.(type) {
	case *html.Node:
		if t == nil {
			return nil, ErrElementNotFound
		}
		return t, nil
	case *goquery.Selection:
		if t == nil || t.Length() == 0 {
			return nil, ErrElementNotFound
		}
		return t.Get(0), nil
	case string:
		if doc == nil {
			return nil, fmt.Errorf("dom: selector %q needs a document", t)
		}
		sel := doc.Find(t)
		if sel.Length() == 0 {
			return nil, fmt.Errorf("%w: %s", ErrElementNotFound, t)
		}
		return sel.Get(0), nil
	default:
		return nil, fmt.Errorf("dom: unsupported target type %T", target)
	}
}

// CreateElement returns a detached element with the given class attribute.
func CreateElement(tag, className string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	if className != "" {
		SetAttr(n, "class", className)
	}
	return n
}

// Attr returns the value of key, or "".
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// SetAttr sets key to val, replacing an existing value.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes key from n.
func RemoveAttr(n *html.Node, key string) {
	attrs := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			attrs = append(attrs, a)
		}
	}
	n.Attr = attrs
}

// HasClass reports whether n carries class in its class list.
func HasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// RemoveAllChildren detaches every child of n.
func RemoveAllChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}

// Detach removes n from its parent, if it has one.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// SetText replaces the children of n with a single text node.
func SetText(n *html.Node, text string) {
	RemoveAllChildren(n)
	if text == "" {
		return
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// Text returns the text content of n and its descendants.
func Text(n *html.Node) string {
	return goquery.NewDocumentFromNode(n).Text()
}

// SetVisible toggles an inline display:none.
func SetVisible(n *html.Node, visible bool) {
	if visible {
		RemoveAttr(n, "style")
		return
	}
	SetAttr(n, "style", "display: none")
}

// Visible reports whether n is not hidden with an inline display:none.
func Visible(n *html.Node) bool {
	return !strings.Contains(Attr(n, "style"), "display: none")
}

// AppendFragment parses markup in the context of parent and appends the
// resulting nodes to it.
func AppendFragment(parent *html.Node, markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return fmt.Errorf("dom: parse fragment: %w", err)
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	return nil
}

// OuterHTML serializes n including its own tag.
func OuterHTML(n *html.Node) (string, error) {
	return goquery.OuterHtml(goquery.NewDocumentFromNode(n).Selection)
}

// InnerHTML serializes the children of n.
func InnerHTML(n *html.Node) (string, error) {
	return goquery.NewDocumentFromNode(n).Html()
}
