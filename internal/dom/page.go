package dom

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a parsed document plus the location it was loaded from. Detection
// only reads it.
type Page struct {
	Doc      *goquery.Document
	URL      *url.URL
	Hostname string
	Title    string

	text *TextIndex
}

// NewPage parses HTML from r. rawURL may be empty; the hostname then falls
// back to the document's canonical link or og:url.
func NewPage(r io.Reader, rawURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{
		Doc:   doc,
		Title: strings.TrimSpace(doc.Find("head title").First().Text()),
		text:  NewTextIndex(),
	}

	if rawURL == "" {
		rawURL = doc.Find(`link[rel="canonical"]`).AttrOr("href", "")
	}
	if rawURL == "" {
		rawURL = MetaContent(doc.Selection, "og:url")
	}
	if rawURL != "" {
		if u, err := url.Parse(rawURL); err == nil {
			page.URL = u
			page.Hostname = strings.ToLower(u.Hostname())
		}
	}
	return page, nil
}

// NewPageFromHTML is NewPage over a string.
func NewPageFromHTML(html, rawURL string) (*Page, error) {
	return NewPage(strings.NewReader(html), rawURL)
}

// WithHostname returns a shallow copy of the page with the hostname replaced.
func (p *Page) WithHostname(host string) *Page {
	cp := *p
	cp.Hostname = strings.ToLower(strings.TrimSpace(host))
	return &cp
}

// Text returns the page's text index. Pages built without NewPage get a
// fresh, unshared index on every call.
func (p *Page) Text() *TextIndex {
	if p.text == nil {
		return NewTextIndex()
	}
	return p.text
}

// RequestPath is the lowercased path and query of the page URL, or "" when
// the page has no URL.
func (p *Page) RequestPath() string {
	if p.URL == nil {
		return ""
	}
	return strings.ToLower(p.URL.RequestURI())
}

// Key identifies the page for bookkeeping; it is the URL without fragment.
func (p *Page) Key() string {
	if p.URL == nil {
		return p.Hostname
	}
	u := *p.URL
	u.Fragment = ""
	return u.String()
}
