package detect

import (
	"regexp"
	"strings"

	"github.com/jonathan/coverme/internal/dom"
)

var (
	jobTerms = regexp.MustCompile(`(?i)\b(responsibilities|requirements|qualifications|skills|experience|position|opportunity|job|role)\b`)

	runOfWhitespace = regexp.MustCompile(`\s{2,}`)
	runOfNewlines   = regexp.MustCompile(`\n{3,}`)

	titlePrefix   = regexp.MustCompile(`(?i)^\s*(job|position|title|role)\s*:\s*`)
	companyPrefix = regexp.MustCompile(`(?i)^\s*(at|with|for|join)\s+`)

	hiringPhrase = regexp.MustCompile(`(?i)\b(?:hiring|looking for|seeking)\s+(?:an?\s+)?([A-Za-z][\w /&+#.-]{2,60}?)(?:\s+(?:to|who|with|at|in)\b|[,.!\n(]|$)`)
)

// MatchesJobTerms reports whether text mentions at least one job term.
func MatchesJobTerms(text string) bool {
	return jobTerms.MatchString(text)
}

// verify applies the floor checks every returned candidate must pass.
func (d *Detector) verify(raw *RawCandidate) bool {
	if raw == nil || raw.Description == "" {
		return false
	}
	if dom.RuneLen(raw.Description) < d.cfg.MinDescriptionLength {
		return false
	}
	return MatchesJobTerms(raw.Description)
}

// clean normalises whitespace, infers a missing title and strips boilerplate
// prefixes. It returns false when cleaning leaves the description too short.
func (d *Detector) clean(raw *RawCandidate) (RawCandidate, bool) {
	out := *raw
	out.Description = cleanDescription(raw.Description)
	if dom.RuneLen(out.Description) < d.cfg.MinDescriptionLength {
		return out, false
	}

	out.Title = strings.TrimSpace(raw.Title)
	if out.Title == "" {
		out.Title = inferTitle(out.Description)
	}
	out.Title = cleanTitle(out.Title)
	out.Company = cleanCompany(raw.Company)
	return out, true
}

func cleanDescription(s string) string {
	s = runOfWhitespace.ReplaceAllString(s, " ")
	s = runOfNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func cleanTitle(s string) string {
	s = dom.CollapseWhitespace(s)
	return strings.TrimSpace(titlePrefix.ReplaceAllString(s, ""))
}

func cleanCompany(s string) string {
	s = dom.CollapseWhitespace(s)
	return strings.TrimSpace(companyPrefix.ReplaceAllString(s, ""))
}

// inferTitle pulls a role name out of phrases like "We are hiring a Senior
// Engineer to ...".
func inferTitle(description string) string {
	m := hiringPhrase.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
