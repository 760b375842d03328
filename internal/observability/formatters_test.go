package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/coverme/internal/detect"
	"github.com/jonathan/coverme/internal/scan"
)

func TestPrintCandidate(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintCandidate("https://jobs.example.com/1", &detect.JobCandidate{
		Description: "Responsibilities\nShip the detector.",
		Title:       "Backend Engineer",
		Method:      detect.MethodSemantic,
		Confidence:  72,
	})
	output := buf.String()

	assert.Contains(t, output, "JOB DETECTED")
	assert.Contains(t, output, "Backend Engineer")
	assert.Contains(t, output, scan.UnknownCompany)
	assert.Contains(t, output, "semantic")
	assert.Contains(t, output, "72/100 [███████···]")
	assert.Contains(t, output, "Ship the detector.")
}

func TestPrintCandidate_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintCandidate("x", nil)
	assert.Empty(t, buf.String())
}

func TestPrintCandidate_LongDescriptionIsCut(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	description := strings.Repeat("Requirements include Go and a love of tidy HTML. ", 40)
	p.PrintCandidate("", &detect.JobCandidate{Description: description, Confidence: 100})
	output := buf.String()

	assert.Contains(t, output, "more lines")
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		assert.Equal(t, boxWidth, len([]rune(line)), line)
	}
}

func TestPrintScanResult(t *testing.T) {
	tests := []struct {
		name   string
		res    *scan.Result
		expect []string
	}{
		{
			name:   "accepted",
			res:    &scan.Result{Status: scan.StatusAccepted, URL: "https://a.example", Candidate: &detect.JobCandidate{Title: "SRE", Confidence: 80}},
			expect: []string{"JOB DETECTED", "SRE", "https://a.example"},
		},
		{
			name:   "rejected",
			res:    &scan.Result{Status: scan.StatusRejected, Reason: "confidence 40 below threshold 60", Candidate: &detect.JobCandidate{Title: "SRE"}},
			expect: []string{"CANDIDATE REJECTED", "below threshold"},
		},
		{
			name:   "skipped",
			res:    &scan.Result{Status: scan.StatusSkipped, Hostname: "www.google.com", Reason: "non-job site"},
			expect: []string{"NO JOB DETECTED", "skipped", "www.google.com", "non-job site"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewPrinter(&buf).PrintScanResult(tt.res)
			for _, s := range tt.expect {
				assert.Contains(t, buf.String(), s)
			}
		})
	}
}

func TestPrintRegistry(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRegistry(detect.DefaultRegistry().Entries())
	output := buf.String()

	assert.Contains(t, output, "SITE REGISTRY")
	assert.Contains(t, output, "linkedin.com")
	assert.Contains(t, output, "#jobDescriptionText")
	assert.Contains(t, output, "/viewjob")
	assert.Contains(t, output, "(+1)")
}

func TestWrap(t *testing.T) {
	lines := wrap("one two three\n\nfour", 8)
	assert.Equal(t, []string{"one two", "three", "four"}, lines)
}
