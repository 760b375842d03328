package dom

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type textMode int

const (
	modeInner textMode = iota
	modeClean
)

func (m textMode) stripped() map[atom.Atom]bool {
	if m == modeClean {
		return media
	}
	return nil
}

// TextIndex memoizes rendered text and visibility per node of one document.
// Every element's text is built from its children's cached text, so each
// subtree is walked once however many of its ancestors are asked for.
//
// Results equal InnerText, CleanText and Visible on the same nodes. The
// document must not be modified after the first call.
type TextIndex struct {
	mu      sync.Mutex
	raw     [2]map[*html.Node]string
	text    [2]map[*html.Node]string
	visible map[*html.Node]bool
}

// NewTextIndex creates an empty index.
func NewTextIndex() *TextIndex {
	return &TextIndex{
		raw:     [2]map[*html.Node]string{make(map[*html.Node]string), make(map[*html.Node]string)},
		text:    [2]map[*html.Node]string{make(map[*html.Node]string), make(map[*html.Node]string)},
		visible: make(map[*html.Node]bool),
	}
}

// InnerText is the cached form of InnerText.
func (x *TextIndex) InnerText(sel *goquery.Selection) string {
	return x.render(sel, modeInner)
}

// CleanText is the cached form of CleanText.
func (x *TextIndex) CleanText(sel *goquery.Selection) string {
	return x.render(sel, modeClean)
}

// Visible is the cached form of Visible.
func (x *TextIndex) Visible(sel *goquery.Selection) bool {
	if sel == nil || sel.Length() == 0 {
		return false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.visibleNode(sel.Nodes[0])
}

// FindByKeywords is FindByKeywords over cached text and visibility.
func (x *TextIndex) FindByKeywords(root *goquery.Selection, tags string, keywords []string) *goquery.Selection {
	lowered := lowerKeywords(keywords)
	return root.Find(tags).FilterFunction(func(_ int, s *goquery.Selection) bool {
		if !x.Visible(s) {
			return false
		}
		return containsAny(strings.ToLower(x.InnerText(s)), lowered)
	})
}

func (x *TextIndex) render(sel *goquery.Selection, mode textMode) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if len(sel.Nodes) == 1 {
		n := sel.Nodes[0]
		if s, ok := x.text[mode][n]; ok {
			return s
		}
		s := normalizeLines(x.rawText(n, mode))
		x.text[mode][n] = s
		return s
	}
	var sb strings.Builder
	for _, n := range sel.Nodes {
		sb.WriteString(x.rawText(n, mode))
	}
	return normalizeLines(sb.String())
}

// rawText is the unnormalized text stream of n, the same stream textWriter
// produces. Callers hold x.mu.
func (x *TextIndex) rawText(n *html.Node, mode textMode) string {
	switch n.Type {
	case html.TextNode:
		return collapseSourceSpace(n.Data)
	case html.CommentNode, html.DoctypeNode:
		return ""
	}
	if s, ok := x.raw[mode][n]; ok {
		return s
	}

	var s string
	before, after, ok := "", "", true
	if n.Type == html.ElementNode {
		before, after, ok = frame(n, mode.stripped())
	}
	if ok {
		var sb strings.Builder
		sb.WriteString(before)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			sb.WriteString(x.rawText(c, mode))
		}
		sb.WriteString(after)
		s = sb.String()
	}
	x.raw[mode][n] = s
	return s
}

func (x *TextIndex) visibleNode(n *html.Node) bool {
	if n == nil {
		return true
	}
	if v, ok := x.visible[n]; ok {
		return v
	}
	v := !(n.Type == html.ElementNode && (nonRendered[n.DataAtom] || isHiddenNode(n))) && x.visibleNode(n.Parent)
	x.visible[n] = v
	return v
}
