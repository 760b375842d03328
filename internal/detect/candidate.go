// Package detect decides whether a page is a job posting. It runs a fixed
// sequence of best-effort strategies against a parsed page, stops at the
// first one that finds something, then verifies, cleans and scores the result.
package detect

// Method names the strategy that produced a candidate.
type Method string

const (
	// MethodSiteSpecific uses the per-job-board selector registry.
	MethodSiteSpecific Method = "site-specific"
	// MethodSchema reads schema.org JobPosting structured data.
	MethodSchema Method = "schema"
	// MethodSemantic aggregates sections introduced by job keywords.
	MethodSemantic Method = "semantic"
	// MethodCluster takes the largest job-like content block.
	MethodCluster Method = "cluster"
	// MethodFallback clusters long lines of the page text.
	MethodFallback Method = "fallback"
)

// AllMethods lists every method in trust order.
var AllMethods = []Method{MethodSchema, MethodSiteSpecific, MethodSemantic, MethodCluster, MethodFallback}

// JobCandidate is a verified, cleaned and scored detection result.
type JobCandidate struct {
	Description string `json:"description"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Method      Method `json:"method"`
	Confidence  int    `json:"confidence"`
}

// RawCandidate is what a single strategy returns before verification.
type RawCandidate struct {
	Description string
	Title       string
	Company     string
	Method      Method
}
