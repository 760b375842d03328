package detect

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"

	"github.com/jonathan/coverme/internal/dom"
)

// keywordCounter counts the distinct scoring keywords present in a text.
// ahocorasick.Matcher keeps per-match state, so Match calls are serialised.
type keywordCounter struct {
	mu      sync.Mutex
	matcher *ahocorasick.Matcher
}

func newKeywordCounter(keywords []string) *keywordCounter {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	if len(lowered) == 0 {
		return &keywordCounter{}
	}
	return &keywordCounter{matcher: ahocorasick.NewStringMatcher(lowered)}
}

func (k *keywordCounter) count(text string) int {
	if k.matcher == nil || text == "" {
		return 0
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.matcher.Match([]byte(strings.ToLower(text))))
}

// score computes the confidence of a cleaned candidate.
func (d *Detector) score(c RawCandidate) int {
	score := d.cfg.BaseScores[c.Method]

	length := dom.RuneLen(c.Description)
	if length > d.cfg.LongDescriptionLength {
		score += d.cfg.LengthBonus
	}
	if length > d.cfg.VeryLongDescriptionLength {
		score += d.cfg.LengthBonus
	}

	score += min(d.keywords.count(c.Description)*d.cfg.KeywordBonus, d.cfg.KeywordBonusCap)

	if c.Title != "" {
		score += d.cfg.TitleBonus
	}
	if c.Company != "" {
		score += d.cfg.CompanyBonus
	}
	return max(0, min(100, score))
}
