package dom

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// IsHeading reports whether n is an h1..h6 element.
func IsHeading(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

// HeadingsBefore returns the text of up to limit visible, non-empty headings
// that precede target in document order, nearest first.
func HeadingsBefore(doc *goquery.Document, target *html.Node, limit int) []string {
	var preceding []*html.Node
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n == target {
			return false
		}
		if IsHeading(n) {
			preceding = append(preceding, n)
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	for _, root := range doc.Nodes {
		walk(root)
	}

	var out []string
	for i := len(preceding) - 1; i >= 0 && len(out) < limit; i-- {
		sel := doc.FindNodes(preceding[i])
		if !Visible(sel) {
			continue
		}
		if text := InnerText(sel); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// HeadingsWithin returns the text of up to limit visible, non-empty headings
// inside sel, in document order.
func HeadingsWithin(sel *goquery.Selection, limit int) []string {
	var out []string
	sel.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if Visible(h) {
			if text := InnerText(h); text != "" {
				out = append(out, text)
			}
		}
		return len(out) < limit
	})
	return out
}

// FirstText returns the inner text of the first visible element matching
// selector with non-empty text.
func FirstText(root *goquery.Selection, selector string) string {
	var text string
	root.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !Visible(s) {
			return true
		}
		text = InnerText(s)
		return text == ""
	})
	return text
}
