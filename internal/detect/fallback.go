package detect

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/coverme/internal/dom"
)

var (
	titleAtCompany = regexp.MustCompile(`^\s*(.+?)\s+(?:at|@)\s+(.+?)(?:\s+[|–—-]\s+.*)?\s*$`)
	titlePhrase    = regexp.MustCompile(`(?i)\b(?:hiring|looking for(?: an?)?|seeking(?: an?)?|job title|position|role)[:\-]?\s+([^,.\n]{3,50})\b`)
)

// TryFallback clusters consecutive long lines of the page text and keeps the
// largest cluster.
func (d *Detector) TryFallback(page *dom.Page) *RawCandidate {
	body := page.Doc.Find("body").First()
	if body.Length() == 0 {
		return nil
	}
	pageText := page.Text().InnerText(body)
	if dom.RuneLen(pageText) < d.cfg.MinFallbackPageLength {
		return nil
	}

	description := d.largestLineCluster(pageText)
	if description == "" || !MatchesJobTerms(description) {
		return nil
	}

	raw := &RawCandidate{Description: description, Method: MethodFallback}
	if m := titleAtCompany.FindStringSubmatch(page.Title); m != nil {
		raw.Title = strings.TrimSpace(m[1])
		raw.Company = strings.TrimSpace(m[2])
	} else if m := titlePhrase.FindStringSubmatch(pageText); m != nil {
		raw.Title = strings.TrimSpace(m[1])
	} else {
		raw.Title = dom.FirstText(page.Doc.Selection, "h1, h2")
	}
	d.logger.Debug("fallback cluster selected", zap.Int("length", dom.RuneLen(description)))
	return raw
}

// largestLineCluster groups consecutive lines longer than the line threshold
// and returns the group with the most characters, paragraphs separated by a
// blank line.
func (d *Detector) largestLineCluster(text string) string {
	var best, current []string
	bestLen, currentLen := 0, 0
	flush := func() {
		if currentLen > bestLen {
			best, bestLen = current, currentLen
		}
		current, currentLen = nil, 0
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		n := dom.RuneLen(line)
		if n <= d.cfg.MinFallbackLineLength {
			flush()
			continue
		}
		current = append(current, line)
		currentLen += n
	}
	flush()
	return strings.Join(best, "\n\n")
}
