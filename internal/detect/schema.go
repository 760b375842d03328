package detect

import (
	"encoding/json"
	"html"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/coverme/internal/dom"
)

var tagLike = regexp.MustCompile(`<[a-zA-Z/]`)

// jobPosting is the subset of schema.org JobPosting the detector reads.
type jobPosting struct {
	Title       string
	Company     string
	Description string
}

// TrySchema reads schema.org JobPosting data from JSON-LD scripts, then from
// microdata. Malformed JSON-LD blocks are skipped.
func (d *Detector) TrySchema(page *dom.Page) *RawCandidate {
	posting, ok := jsonLDPosting(page.Doc)
	if !ok {
		posting, ok = microdataPosting(page.Doc)
	}
	if !ok || dom.RuneLen(posting.Description) < d.cfg.MinDescriptionLength {
		return nil
	}
	return &RawCandidate{
		Description: posting.Description,
		Title:       posting.Title,
		Company:     posting.Company,
		Method:      MethodSchema,
	}
}

func jsonLDPosting(doc *goquery.Document) (jobPosting, bool) {
	var found jobPosting
	var ok bool
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return true
		}
		var data any
		if err := json.Unmarshal([]byte(text), &data); err != nil {
			return true
		}
		obj := findJobPosting(data)
		if obj == nil {
			return true
		}
		found = jobPosting{
			Title:       stringField(obj["title"]),
			Company:     organizationName(obj["hiringOrganization"]),
			Description: schemaText(stringField(obj["description"])),
		}
		if found.Title == "" {
			found.Title = stringField(obj["name"])
		}
		ok = found.Description != ""
		return !ok
	})
	return found, ok
}

// findJobPosting walks the JSON-LD tree depth first looking for a node typed
// JobPosting. It also finds postings nested under properties such as
// mainEntity. Object keys are visited in sorted order, @graph first.
func findJobPosting(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if obj := findJobPosting(item); obj != nil {
				return obj
			}
		}
	case map[string]any:
		if isJobPostingType(t["@type"]) {
			return t
		}
		if obj := findJobPosting(t["@graph"]); obj != nil {
			return obj
		}
		for _, key := range slices.Sorted(maps.Keys(t)) {
			if key == "@graph" || key == "@type" || key == "@context" {
				continue
			}
			if obj := findJobPosting(t[key]); obj != nil {
				return obj
			}
		}
	}
	return nil
}

func isJobPostingType(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(strings.TrimPrefix(t, "schema:"), "JobPosting")
	case []any:
		for _, item := range t {
			if isJobPostingType(item) {
				return true
			}
		}
	}
	return false
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(html.UnescapeString(t))
	case []any:
		if len(t) > 0 {
			return stringField(t[0])
		}
	case map[string]any:
		if s := stringField(t["@value"]); s != "" {
			return s
		}
	}
	return ""
}

func organizationName(v any) string {
	switch t := v.(type) {
	case map[string]any:
		return stringField(t["name"])
	case []any:
		if len(t) > 0 {
			return organizationName(t[0])
		}
	}
	return stringField(v)
}

// schemaText reduces an HTML description to visible text. Plain text is kept
// as published.
func schemaText(s string) string {
	if !tagLike.MatchString(s) {
		return s
	}
	return dom.HTMLToText(s)
}

func microdataPosting(doc *goquery.Document) (jobPosting, bool) {
	scope := doc.Find("[itemtype]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		t := strings.ToLower(strings.TrimSpace(s.AttrOr("itemtype", "")))
		return strings.HasSuffix(t, "schema.org/jobposting")
	}).First()
	if scope.Length() == 0 {
		return jobPosting{}, false
	}

	posting := jobPosting{
		Title:       itemprop(scope, "title"),
		Description: itemprop(scope, "description"),
	}
	if org := scope.Find(`[itemprop="hiringOrganization"]`).First(); org.Length() > 0 {
		posting.Company = itemprop(org, "name")
		if posting.Company == "" {
			posting.Company = propValue(org)
		}
	}
	return posting, posting.Description != ""
}

func itemprop(scope *goquery.Selection, name string) string {
	return propValue(scope.Find(`[itemprop="` + name + `"]`).First())
}

func propValue(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	if content, ok := s.Attr("content"); ok {
		return strings.TrimSpace(content)
	}
	return dom.InnerText(s)
}
