package detect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html/atom"

	"github.com/jonathan/coverme/internal/dom"
)

// TrySiteSpecific applies the registry entry matching the page hostname.
// Pages on unknown hosts are rejected without touching the DOM.
func (d *Detector) TrySiteSpecific(page *dom.Page) *RawCandidate {
	entry, ok := d.registry.Lookup(page.Hostname)
	if !ok {
		return nil
	}
	root := page.Doc.Selection

	descEl, selector := dom.FirstMatch(root, entry.Description)
	if descEl == nil {
		return nil
	}
	description := dom.CleanText(descEl)
	if dom.RuneLen(description) < d.cfg.MinDescriptionLength {
		d.logger.Debug("site-specific description too short",
			zap.String("domain", entry.Domain),
			zap.String("selector", selector),
			zap.Int("length", dom.RuneLen(description)))
		return nil
	}

	raw := &RawCandidate{
		Description: description,
		Method:      MethodSiteSpecific,
	}
	if el, _ := dom.FirstMatch(root, entry.Title); el != nil {
		raw.Title = dom.CleanText(el)
	}
	if el, _ := dom.FirstMatch(root, entry.Company); el != nil {
		raw.Company = companyText(el)
	}
	d.logger.Debug("site-specific match",
		zap.String("domain", entry.Domain),
		zap.String("selector", selector))
	return raw
}

// companyText reads logo badges through their alt text.
func companyText(el *goquery.Selection) string {
	if len(el.Nodes) > 0 && el.Nodes[0].DataAtom == atom.Img {
		return strings.TrimSpace(el.AttrOr("alt", ""))
	}
	return dom.CleanText(el)
}
