package detect

import (
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html/atom"

	"github.com/jonathan/coverme/internal/dom"
)

var mainLandmarks = []string{
	"main",
	`[role="main"]`,
	"#main-content",
	"#content",
	".main-content",
	".content",
	"article",
	".article",
	".post",
	".job-description",
}

const blockTags = "div, section, article"

// TryCluster takes the largest job-like content block under the page's main
// content root.
func (d *Detector) TryCluster(page *dom.Page) *RawCandidate {
	idx := page.Text()
	root := d.mainContent(page, idx)
	if root == nil {
		return nil
	}

	block, text := d.largestBlock(idx, root, d.cfg.MinClusterBlockLength)
	if block == nil {
		if root.Nodes[0].DataAtom == atom.Body {
			return nil
		}
		block, text = root, idx.CleanText(root)
	}
	if dom.RuneLen(text) < d.cfg.MinDescriptionLength || !MatchesJobTerms(text) {
		return nil
	}

	raw := &RawCandidate{Description: text, Method: MethodCluster}
	headings := dom.HeadingsBefore(page.Doc, block.Nodes[0], 2)
	if len(headings) == 0 {
		headings = dom.HeadingsWithin(block, 2)
	} else {
		// nearest first; the earlier heading in document order is the title
		for i, j := 0, len(headings)-1; i < j; i, j = i+1, j-1 {
			headings[i], headings[j] = headings[j], headings[i]
		}
	}
	if len(headings) > 0 {
		raw.Title = headings[0]
	}
	if len(headings) > 1 {
		raw.Company = headings[1]
	}
	d.logger.Debug("content cluster selected", zap.Int("length", dom.RuneLen(text)))
	return raw
}

// mainContent picks the first visible landmark, else the largest block outside
// page chrome, else body.
func (d *Detector) mainContent(page *dom.Page, idx *dom.TextIndex) *goquery.Selection {
	root := page.Doc.Selection
	for _, selector := range mainLandmarks {
		var found *goquery.Selection
		root.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if idx.Visible(s) && idx.CleanText(s) != "" {
				found = s
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	if block, _ := d.largestBlock(idx, root, d.cfg.MinMainContentLength); block != nil {
		return block
	}
	body := page.Doc.Find("body").First()
	if body.Length() == 0 {
		return nil
	}
	return body
}

// largestBlock returns the visible div/section/article under root with the
// longest text above minLength, skipping page chrome. Ties keep the first.
func (d *Detector) largestBlock(idx *dom.TextIndex, root *goquery.Selection, minLength int) (*goquery.Selection, string) {
	var best *goquery.Selection
	var bestText string
	bestLen := minLength
	root.Find(blockTags).Each(func(_ int, s *goquery.Selection) {
		if dom.InsideChrome(s) || !idx.Visible(s) {
			return
		}
		text := idx.CleanText(s)
		if n := dom.RuneLen(text); n > bestLen {
			best, bestText, bestLen = s, text, n
		}
	})
	return best, bestText
}
