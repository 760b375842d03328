package detect

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"

	"github.com/jonathan/coverme/internal/schemas"
)

// SiteEntry holds the selectors for one job board. Selector lists are tried
// in order; the first selector that matches an element wins.
type SiteEntry struct {
	Domain       string   `json:"domain"`
	Description  []string `json:"description"`
	Title        []string `json:"title"`
	Company      []string `json:"company"`
	ListingPaths []string `json:"listing_paths,omitempty"`
}

// Registry is an ordered, immutable list of site entries.
type Registry struct {
	entries []SiteEntry
}

// NewRegistry compiles every selector and returns an error naming the first
// one that does not parse.
func NewRegistry(entries []SiteEntry) (*Registry, error) {
	out := make([]SiteEntry, 0, len(entries))
	for _, e := range entries {
		e.Domain = strings.ToLower(strings.TrimSpace(e.Domain))
		if e.Domain == "" {
			return nil, fmt.Errorf("site entry with empty domain")
		}
		for _, list := range [][]string{e.Description, e.Title, e.Company} {
			for _, sel := range list {
				if _, err := cascadia.Compile(sel); err != nil {
					return nil, fmt.Errorf("site %s: invalid selector %q: %w", e.Domain, sel, err)
				}
			}
		}
		out = append(out, e)
	}
	return &Registry{entries: out}, nil
}

// LoadRegistryFile reads a JSON array of site entries, validates it against
// the registry schema and compiles its selectors.
func LoadRegistryFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry is LoadRegistryFile over bytes.
func ParseRegistry(data []byte) (*Registry, error) {
	if err := schemas.ValidateRegistry(data); err != nil {
		return nil, err
	}
	var entries []SiteEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse registry JSON: %w", err)
	}
	return NewRegistry(entries)
}

// Lookup returns the first entry whose domain is contained in hostname.
func (r *Registry) Lookup(hostname string) (SiteEntry, bool) {
	if r == nil {
		return SiteEntry{}, false
	}
	hostname = strings.ToLower(hostname)
	if hostname == "" {
		return SiteEntry{}, false
	}
	for _, e := range r.entries {
		if strings.Contains(hostname, e.Domain) {
			return e, true
		}
	}
	return SiteEntry{}, false
}

// Entries returns a copy of the registry contents.
func (r *Registry) Entries() []SiteEntry {
	out := make([]SiteEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// IsListingPath reports whether requestPath looks like a single job listing
// on the board. Entries without listing paths accept every path.
func (e SiteEntry) IsListingPath(requestPath string) bool {
	if len(e.ListingPaths) == 0 {
		return true
	}
	requestPath = strings.ToLower(requestPath)
	for _, p := range e.ListingPaths {
		if strings.Contains(requestPath, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

var defaultRegistry = mustRegistry(builtinSites)

// DefaultRegistry returns the built-in job board registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

func mustRegistry(entries []SiteEntry) *Registry {
	r, err := NewRegistry(entries)
	if err != nil {
		panic(err)
	}
	return r
}

var builtinSites = []SiteEntry{
	{
		Domain:       "linkedin.com",
		Description:  []string{".description__text", ".show-more-less-html__markup", ".jobs-description-content"},
		Title:        []string{".top-card-layout__title", ".job-detail-title", ".jobs-unified-top-card__job-title"},
		Company:      []string{".topcard__org-name-link", ".company-name", ".jobs-unified-top-card__company-name"},
		ListingPaths: []string{"/jobs/", "/job/"},
	},
	{
		Domain:       "indeed.com",
		Description:  []string{"#jobDescriptionText", ".jobsearch-jobDescriptionText"},
		Title:        []string{".jobsearch-JobInfoHeader-title", ".icl-u-xs-mb--xs"},
		Company:      []string{".jobsearch-InlineCompanyRating-companyHeader", ".icl-u-lg-mr--sm"},
		ListingPaths: []string{"/viewjob", "/job/"},
	},
	{
		Domain:       "glassdoor.com",
		Description:  []string{".jobDescriptionContent", ".desc", "[data-test='jobDescriptionText']"},
		Title:        []string{"[data-test='jobTitle']", ".css-1vg6q84"},
		Company:      []string{"[data-test='employer-name']", ".css-87uc0g"},
		ListingPaths: []string{"/job-listing/", "/job/"},
	},
	{
		Domain:       "monster.com",
		Description:  []string{".job-description", ".details-content"},
		Title:        []string{".job-title", ".title"},
		Company:      []string{".company", ".name"},
		ListingPaths: []string{"/job-", "/jobs/"},
	},
	{
		Domain:       "ziprecruiter.com",
		Description:  []string{"#job-description", ".jobDescriptionSection", "[data-testid='job-description']"},
		Title:        []string{".job_title", "[data-testid='job-title']"},
		Company:      []string{".hiring_company_text", "[data-testid='company-name']"},
		ListingPaths: []string{"/jobs/"},
	},
	{
		Domain:       "dice.com",
		Description:  []string{"#jobdescSec", ".job-description"},
		Title:        []string{".jobTitle", ".job-title"},
		Company:      []string{".companyLink", ".company-title"},
		ListingPaths: []string{"/job-detail/"},
	},
	{
		Domain:       "careerbuilder.com",
		Description:  []string{".job-description", ".data-display"},
		Title:        []string{".data-results-title"},
		Company:      []string{"[data-cb-company]"},
		ListingPaths: []string{"/job/"},
	},
	{
		Domain:       "simplyhired.com",
		Description:  []string{".viewjob-description", ".JobDescription_jobDescription"},
		Title:        []string{".viewjob-jobTitle", ".JobInfoHeader_jobTitle"},
		Company:      []string{".viewjob-employerName", ".JobInfoHeader_companyName"},
		ListingPaths: []string{"/job/"},
	},
	{
		Domain:      "wellfound.com",
		Description: []string{".job-description", ".section-wrapper"},
		Title:       []string{".job-title", ".title"},
		Company:     []string{".company-title", ".company"},
	},
	{
		Domain:      "lever.co",
		Description: []string{".section-wrapper", ".posting-description", ".posting-page"},
		Title:       []string{".posting-headline h2"},
		Company:     []string{".main-header-logo img"},
	},
	{
		Domain:      "greenhouse.io",
		Description: []string{"#content", ".app-body", ".job__description.body", ".job__description"},
		Title:       []string{".app-title", ".job__title h1"},
		Company:     []string{".company-name"},
	},
	{
		Domain:      "myworkdayjobs.com",
		Description: []string{"[data-automation-id='jobPostingDescription']", "[data-automation-id='jobDescription']"},
		Title:       []string{"[data-automation-id='jobPostingHeader']"},
		Company:     []string{"[data-automation-id='company']"},
	},
	{
		Domain:      "remoteco.com",
		Description: []string{".job__description"},
		Title:       []string{".job__title"},
		Company:     []string{".company__name"},
	},
	{
		Domain:      "workatastartup.com",
		Description: []string{".job-description"},
		Title:       []string{".job-title"},
		Company:     []string{".company-name"},
	},
	{
		Domain:      "angel.co",
		Description: []string{".job-description", ".description"},
		Title:       []string{".job-title", ".title"},
		Company:     []string{".company-name", ".startup-title"},
	},
}
