package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// isHiddenNode reports whether the element itself is hidden by markup:
// the hidden attribute, aria-hidden, hidden inputs, or an inline style that
// removes it from layout or gives it zero size.
func isHiddenNode(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	var width, height string
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "hidden":
			return true
		case "aria-hidden":
			if strings.EqualFold(strings.TrimSpace(a.Val), "true") {
				return true
			}
		case "type":
			if n.DataAtom == atom.Input && strings.EqualFold(a.Val, "hidden") {
				return true
			}
		case "style":
			decls := parseStyle(a.Val)
			if decls["display"] == "none" || decls["visibility"] == "hidden" {
				return true
			}
			width, height = decls["width"], decls["height"]
		}
	}
	return isZeroLength(width) || isZeroLength(height)
}

func parseStyle(style string) map[string]string {
	decls := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		key, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important"))
		decls[strings.ToLower(strings.TrimSpace(key))] = strings.ToLower(value)
	}
	return decls
}

func isZeroLength(v string) bool {
	if v == "" {
		return false
	}
	v = strings.TrimRight(v, "pxemrvwh%")
	return v == "0" || v == "0.0"
}

// Visible reports whether the first node of the selection and all of its
// ancestors are rendered.
func Visible(sel *goquery.Selection) bool {
	if sel == nil || sel.Length() == 0 {
		return false
	}
	for n := sel.Nodes[0]; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && (nonRendered[n.DataAtom] || isHiddenNode(n)) {
			return false
		}
	}
	return true
}

// InsideChrome reports whether the selection sits inside page chrome
// (nav, header or footer).
func InsideChrome(sel *goquery.Selection) bool {
	return sel.Closest("nav, header, footer").Length() > 0
}
