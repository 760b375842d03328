package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Query returns the elements matching selector. A selector that fails to
// compile matches nothing and is reported through err.
func Query(root *goquery.Selection, selector string) (*goquery.Selection, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return root.Slice(0, 0), err
	}
	return root.FindMatcher(m), nil
}

// FirstMatch tries each selector in order and returns the first element the
// first matching selector yields, together with that selector. Invalid
// selectors are skipped.
func FirstMatch(root *goquery.Selection, selectors []string) (*goquery.Selection, string) {
	for _, selector := range selectors {
		sel, err := Query(root, selector)
		if err != nil {
			continue
		}
		if sel.Length() > 0 {
			return sel.First(), selector
		}
	}
	return nil, ""
}

// FindByKeywords returns the visible elements matching tags whose visible text
// contains any of the keywords, case-insensitively, in document order.
func FindByKeywords(root *goquery.Selection, tags string, keywords []string) *goquery.Selection {
	lowered := lowerKeywords(keywords)
	return root.Find(tags).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return Visible(s) && containsAny(strings.ToLower(InnerText(s)), lowered)
	})
}

func lowerKeywords(keywords []string) []string {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return lowered
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Innermost drops every element of the selection that is an ancestor of
// another element of the same selection.
func Innermost(sel *goquery.Selection) *goquery.Selection {
	return sel.NotSelection(sel.Parents())
}

// MetaContent returns the content attribute of the first meta tag whose
// property or name attribute equals key.
func MetaContent(doc *goquery.Selection, key string) string {
	var value string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		prop, _ := s.Attr("property")
		name, _ := s.Attr("name")
		if prop != key && name != key {
			return true
		}
		value = strings.TrimSpace(s.AttrOr("content", ""))
		return value == ""
	})
	return value
}
