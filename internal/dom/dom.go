// Package dom parses serialized page snapshots and locates credential
// fields in them. Snapshots arrive from the extension shim as HTML in
// which shadow roots are serialized declaratively as
// <template shadowrootmode="..."> subtrees; traversal here recurses into
// every such subtree so encapsulated login widgets are still found.
package dom

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Document is a parsed page snapshot.
type Document struct {
	URL  string
	Root *html.Node
}

// ParseSnapshot parses an HTML snapshot taken at pageURL.
func ParseSnapshot(snapshot, pageURL string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(snapshot))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &Document{URL: pageURL, Root: root}, nil
}

// QueryAll returns all element nodes under root matching m, light DOM
// first, then each shadow subtree in document order. Matching within the
// light DOM does not descend into shadow roots except through the
// explicit recursion, mirroring how querySelectorAll stops at shadow
// boundaries.
func QueryAll(root *html.Node, m cascadia.Matcher) []*html.Node {
	var matches []*html.Node
	var shadowRoots []*html.Node

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if isShadowRoot(n) {
				shadowRoots = append(shadowRoots, n)
				return
			}
			if m.Match(n) {
				matches = append(matches, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	// Descend into the shadow trees, not the host templates themselves,
	// so each recursion starts below the boundary it crossed.
	for _, sr := range shadowRoots {
		for c := sr.FirstChild; c != nil; c = c.NextSibling {
			matches = append(matches, QueryAll(c, m)...)
		}
	}
	return matches
}

// isShadowRoot reports whether n is a declarative shadow root host
// template.
func isShadowRoot(n *html.Node) bool {
	if n.Data != "template" {
		return false
	}
	mode := Attr(n, "shadowrootmode")
	if mode == "" {
		// Older serializers used the shadowroot attribute.
		mode = Attr(n, "shadowroot")
	}
	return mode != ""
}

// Attr returns the value of the named attribute, or "" when absent.
func Attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// Value returns the current value of an input element as serialized into
// the snapshot.
func Value(n *html.Node) string {
	return Attr(n, "value")
}

// ClosestForm walks up from n to the nearest enclosing form element,
// stopping at a shadow boundary. Returns nil when n is not inside a form.
func ClosestForm(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if isShadowRoot(p) {
			return nil
		}
		if p.Data == "form" {
			return p
		}
	}
	return nil
}

var requiredInputs = cascadia.MustCompile("input[required]")

// RequiredFilled reports whether every required input inside form has a
// non-empty value. A form with no required inputs counts as filled.
func RequiredFilled(form *html.Node) bool {
	for _, input := range QueryAll(form, requiredInputs) {
		if Value(input) == "" {
			return false
		}
	}
	return true
}

// Text returns the concatenated text content of n, whitespace-trimmed.
func Text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
