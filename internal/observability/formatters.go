// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/coverme/internal/detect"
	"github.com/jonathan/coverme/internal/scan"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// maxDescriptionLines is how much of a description the candidate box shows
	maxDescriptionLines = 8
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 3
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintCandidate outputs a detected job with its method and confidence.
func (p *Printer) PrintCandidate(source string, c *detect.JobCandidate) {
	if c == nil {
		return
	}

	var sb strings.Builder
	if source != "" {
		sb.WriteString(fmt.Sprintf("Source:     %s\n", source))
	}
	in := scan.ManualInputFrom(c)
	sb.WriteString(fmt.Sprintf("Title:      %s\n", in.Title))
	sb.WriteString(fmt.Sprintf("Company:    %s\n", in.Company))
	sb.WriteString(fmt.Sprintf("Method:     %s\n", c.Method))
	sb.WriteString(fmt.Sprintf("Confidence: %d/100 %s\n", c.Confidence, confidenceBar(c.Confidence)))
	sb.WriteString(fmt.Sprintf("Length:     %d chars\n", len([]rune(c.Description))))
	sb.WriteString("\n")

	lines := wrap(c.Description, boxWidth-4)
	count := min(len(lines), maxDescriptionLines)
	for i := 0; i < count; i++ {
		sb.WriteString(lines[i] + "\n")
	}
	if len(lines) > maxDescriptionLines {
		sb.WriteString(fmt.Sprintf("... and %d more lines\n", len(lines)-maxDescriptionLines))
	}

	p.printBox("JOB DETECTED", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintScanResult outputs a scan outcome. Accepted and rejected results show
// the candidate; the other outcomes print a one-box summary.
func (p *Printer) PrintScanResult(res *scan.Result) {
	if res == nil {
		return
	}
	source := res.URL
	if source == "" {
		source = res.Hostname
	}

	switch res.Status {
	case scan.StatusAccepted, scan.StatusDetected:
		p.PrintCandidate(source, res.Candidate)
	case scan.StatusRejected:
		p.PrintCandidate(source, res.Candidate)
		p.printBox("CANDIDATE REJECTED", res.Reason)
	default:
		var sb strings.Builder
		if source != "" {
			sb.WriteString(fmt.Sprintf("Source: %s\n", source))
		}
		sb.WriteString(fmt.Sprintf("Status: %s", res.Status))
		if res.Reason != "" {
			sb.WriteString(fmt.Sprintf("\nReason: %s", res.Reason))
		}
		p.printBox("NO JOB DETECTED", sb.String())
	}
}

// PrintRegistry outputs every site entry with its first selectors.
func (p *Printer) PrintRegistry(entries []detect.SiteEntry) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d sites\n", len(entries)))

	for _, e := range entries {
		sb.WriteString("\n")
		sb.WriteString(e.Domain + "\n")
		sb.WriteString(fmt.Sprintf("  description: %s\n", firstItems(e.Description)))
		if len(e.Title) > 0 {
			sb.WriteString(fmt.Sprintf("  title:       %s\n", firstItems(e.Title)))
		}
		if len(e.Company) > 0 {
			sb.WriteString(fmt.Sprintf("  company:     %s\n", firstItems(e.Company)))
		}
		if len(e.ListingPaths) > 0 {
			sb.WriteString(fmt.Sprintf("  listings:    %s\n", strings.Join(e.ListingPaths, " ")))
		}
	}

	p.printBox("SITE REGISTRY", strings.TrimSuffix(sb.String(), "\n"))
}

func firstItems(items []string) string {
	count := min(len(items), maxItemsToShow)
	s := strings.Join(items[:count], ", ")
	if len(items) > maxItemsToShow {
		s += fmt.Sprintf(" (+%d)", len(items)-maxItemsToShow)
	}
	return s
}

func confidenceBar(confidence int) string {
	filled := max(0, min(confidence, 100)) / 10
	return "[" + strings.Repeat("█", filled) + strings.Repeat("·", 10-filled) + "]"
}

// wrap breaks text into lines of at most width runes on word boundaries.
func wrap(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len([]rune(line))+1+len([]rune(w)) > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line += " " + w
		}
		lines = append(lines, line)
	}
	return lines
}
