// Package dom provides read-only helpers over parsed HTML documents:
// visible-text extraction, element lookup by keyword or selector,
// visibility filtering and heading traversal.
package dom

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var runOfWhitespace = regexp.MustCompile(`\s{2,}`)

// nonRendered elements never contribute to visible text.
var nonRendered = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Head:     true,
	atom.Meta:     true,
	atom.Link:     true,
	atom.Title:    true,
}

// media elements are additionally stripped by CleanText.
var media = map[atom.Atom]bool{
	atom.Iframe:  true,
	atom.Img:     true,
	atom.Button:  true,
	atom.Svg:     true,
	atom.Video:   true,
	atom.Audio:   true,
	atom.Picture: true,
	atom.Canvas:  true,
	atom.Object:  true,
	atom.Embed:   true,
}

var blockElements = map[atom.Atom]bool{
	atom.Address:    true,
	atom.Article:    true,
	atom.Aside:      true,
	atom.Blockquote: true,
	atom.Dd:         true,
	atom.Div:        true,
	atom.Dl:         true,
	atom.Dt:         true,
	atom.Fieldset:   true,
	atom.Figcaption: true,
	atom.Figure:     true,
	atom.Footer:     true,
	atom.Form:       true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Header:     true,
	atom.Hr:         true,
	atom.Li:         true,
	atom.Main:       true,
	atom.Nav:        true,
	atom.Ol:         true,
	atom.P:          true,
	atom.Pre:        true,
	atom.Section:    true,
	atom.Table:      true,
	atom.Tr:         true,
	atom.Ul:         true,
}

// frame returns what an element writes before and after its children, or
// ok=false when the element renders nothing. Hidden state is checked on the
// element itself only.
func frame(n *html.Node, stripped map[atom.Atom]bool) (before, after string, ok bool) {
	if nonRendered[n.DataAtom] || stripped[n.DataAtom] || isHiddenNode(n) {
		return "", "", false
	}
	switch {
	case n.DataAtom == atom.Br:
		return "\n", "", true
	case n.DataAtom == atom.Td || n.DataAtom == atom.Th:
		return " ", "", true
	case blockElements[n.DataAtom]:
		return "\n", "\n", true
	}
	return "", "", true
}

// textWriter accumulates rendered text for a subtree.
type textWriter struct {
	sb       strings.Builder
	stripped map[atom.Atom]bool
}

func (w *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.sb.WriteString(collapseSourceSpace(n.Data))
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		before, after, ok := frame(n, w.stripped)
		if !ok {
			return
		}
		w.sb.WriteString(before)
		defer w.sb.WriteString(after)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func render(sel *goquery.Selection, stripped map[atom.Atom]bool) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	w := &textWriter{stripped: stripped}
	for _, n := range sel.Nodes {
		w.walk(n)
	}
	return normalizeLines(w.sb.String())
}

// collapseSourceSpace turns every run of HTML source whitespace into one
// space, as a browser does for non-preformatted text.
func collapseSourceSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case ' ', '\t', '\n', '\f', '\r':
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
		default:
			b.WriteByte(c)
			inSpace = false
		}
	}
	return b.String()
}

// normalizeLines trims every line, collapses inline whitespace (including
// non-breaking spaces) and drops empty lines.
func normalizeLines(raw string) string {
	var out strings.Builder
	out.Grow(len(raw))
	var line strings.Builder
	for len(raw) > 0 {
		end := strings.IndexByte(raw, '\n')
		if end < 0 {
			end = len(raw)
		}
		line.Reset()
		inSpace := false
		for i := 0; i < end; i++ {
			c := raw[i]
			switch {
			case c == ' ' || c == '\t' || c == '\f' || c == '\r' || c == '\v':
			case c == 0xc2 && i+1 < end && raw[i+1] == 0xa0:
				i++
			default:
				if inSpace {
					line.WriteByte(' ')
				}
				line.WriteByte(c)
				inSpace = false
				continue
			}
			inSpace = true
		}
		if text := strings.TrimSpace(line.String()); text != "" {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(text)
		}
		if end == len(raw) {
			break
		}
		raw = raw[end+1:]
	}
	return out.String()
}

// InnerText approximates the browser's innerText for the selection: hidden
// and non-rendered elements are skipped and block elements start new lines.
// Blank lines are not preserved.
func InnerText(sel *goquery.Selection) string {
	return render(sel, nil)
}

// CleanText returns the visible text of the selection with script, style and
// media nodes removed. Lines are trimmed and inline whitespace collapsed, so
// no run of two or more whitespace characters remains.
func CleanText(sel *goquery.Selection) string {
	return render(sel, media)
}

// CollapseWhitespace replaces every run of two or more whitespace characters
// with a single space and trims the result.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(runOfWhitespace.ReplaceAllString(s, " "))
}

// RuneLen is the character length used for every length threshold.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// HTMLToText parses an HTML fragment and returns its visible text. Plain text
// input is returned with lines normalised.
func HTMLToText(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return normalizeLines(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return normalizeLines(fragment)
	}
	return InnerText(doc.Find("body"))
}
