package detect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/jonathan/coverme/internal/dom"
)

const (
	sectionTags     = "h1, h2, h3, h4, h5, h6, strong, b, div, p, section"
	containerTags   = "section, article, div"
	companyNameTags = "h1, h2, h3, strong, b"
)

// section is one aggregated block of job text anchored at node.
type section struct {
	node *html.Node
	text string
}

// TrySemantic aggregates the content introduced by job-section keywords.
func (d *Detector) TrySemantic(page *dom.Page) *RawCandidate {
	root := page.Doc.Selection
	idx := page.Text()
	matches := dom.Innermost(idx.FindByKeywords(root, sectionTags, d.cfg.SectionKeywords))
	if matches.Length() == 0 {
		return nil
	}

	var sections []section
	seen := make(map[*html.Node]bool)
	matches.Each(func(_ int, m *goquery.Selection) {
		container := m.Parent().Closest(containerTags)
		if container.Length() > 0 {
			node := container.Nodes[0]
			if !seen[node] {
				seen[node] = true
				sections = append(sections, section{node: node, text: idx.CleanText(container)})
			}
			return
		}
		sections = append(sections, section{node: m.Nodes[0], text: followingText(idx, m)})
	})

	var parts []string
	for _, s := range outermost(sections) {
		if dom.RuneLen(s.text) < d.cfg.MinSectionLength {
			continue
		}
		parts = append(parts, s.text)
	}
	description := strings.Join(parts, "\n\n")
	if dom.RuneLen(description) < d.cfg.MinDescriptionLength {
		return nil
	}
	d.logger.Debug("semantic sections aggregated", zap.Int("sections", len(parts)))

	return &RawCandidate{
		Description: description,
		Title:       dom.FirstText(root, "h1"),
		Company:     d.guessCompany(page),
		Method:      MethodSemantic,
	}
}

// followingText is the text of m plus its following siblings up to the next
// heading.
func followingText(idx *dom.TextIndex, m *goquery.Selection) string {
	parts := []string{idx.CleanText(m)}
	for sib := m.Next(); sib.Length() > 0; sib = sib.Next() {
		if dom.IsHeading(sib.Nodes[0]) {
			break
		}
		if text := idx.CleanText(sib); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// outermost drops sections nested inside another section, keeping document
// order.
func outermost(sections []section) []section {
	anchors := make(map[*html.Node]bool, len(sections))
	for _, s := range sections {
		anchors[s.node] = true
	}
	out := make([]section, 0, len(sections))
	for _, s := range sections {
		nested := false
		for n := s.node.Parent; n != nil; n = n.Parent {
			if anchors[n] {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, s)
		}
	}
	return out
}

// guessCompany reads the first short heading or bold text near an "about us"
// style keyword, falling back to og:site_name.
func (d *Detector) guessCompany(page *dom.Page) string {
	root := page.Doc.Selection
	idx := page.Text()
	var company string
	dom.Innermost(idx.FindByKeywords(root, sectionTags, d.cfg.CompanyKeywords)).EachWithBreak(func(_ int, m *goquery.Selection) bool {
		container := m.Closest("section, div")
		if container.Length() == 0 {
			return true
		}
		container.Find(companyNameTags).EachWithBreak(func(_ int, c *goquery.Selection) bool {
			if !idx.Visible(c) {
				return true
			}
			text := idx.CleanText(c)
			if text == "" || dom.RuneLen(text) >= d.cfg.MaxCompanyNameLength || d.mentionsCompanyKeyword(text) {
				return true
			}
			company = text
			return false
		})
		return company == ""
	})
	if company != "" {
		return company
	}
	return dom.MetaContent(root, "og:site_name")
}

func (d *Detector) mentionsCompanyKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range d.cfg.CompanyKeywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
