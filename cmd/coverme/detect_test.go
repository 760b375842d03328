package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonathan/coverme/internal/config"
	"github.com/jonathan/coverme/internal/detect"
)

func indeedHTML() string {
	description := strings.Repeat("The requirements are Go and SQL and a calm mind. ", 12)
	return `<html><head><title>Indeed</title></head><body>
		<h1 class="jobsearch-JobInfoHeader-title">Software Engineer</h1>
		<div id="jobDescriptionText">` + description + `</div>
	</body></html>`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDetectSources_FileWithHost(t *testing.T) {
	path := writeFile(t, "job.html", indeedHTML())
	var out bytes.Buffer

	err := detectSources(context.Background(), config.Defaults(), detectOptions{
		Files: []string{path},
		Host:  "www.indeed.com",
	}, zap.NewNop(), &out)

	require.NoError(t, err)
	assert.Equal(t, path+": Software Engineer at Unknown Company (site-specific, confidence 75)\n", out.String())
}

func TestDetectSources_NoJob(t *testing.T) {
	path := writeFile(t, "cake.html", `<html><body><h1>Lemon cake</h1><p>Bake it.</p></body></html>`)
	var out bytes.Buffer

	err := detectSources(context.Background(), config.Defaults(), detectOptions{Files: []string{path}}, zap.NewNop(), &out)

	require.NoError(t, err)
	assert.Equal(t, path+": no job detected\n", out.String())
}

func TestDetectSources_URLsAsJSONWithAcceptance(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/viewjob" {
			_, _ = w.Write([]byte(indeedHTML()))
			return
		}
		_, _ = w.Write([]byte(`<html><body><p>Company reviews</p></body></html>`))
	}))
	defer ts.Close()

	var out bytes.Buffer
	err := detectSources(context.Background(), config.Defaults(), detectOptions{
		URLs:   []string{ts.URL + "/viewjob?jk=1", ts.URL + "/companies/acme"},
		Host:   "www.indeed.com",
		JSON:   true,
		Accept: true,
	}, zap.NewNop(), &out)
	require.NoError(t, err)

	var results []detectOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &results))
	require.Len(t, results, 2)

	assert.True(t, results[0].Found)
	assert.Equal(t, "accepted", string(results[0].Status))
	require.NotNil(t, results[0].Candidate)
	assert.Equal(t, detect.MethodSiteSpecific, results[0].Candidate.Method)

	assert.False(t, results[1].Found)
	assert.Equal(t, "skipped", string(results[1].Status))
}

func TestDetectSources_LegacyScores(t *testing.T) {
	path := writeFile(t, "job.html", indeedHTML())
	cfg := config.Defaults()
	cfg.LegacyScores = true
	var out bytes.Buffer

	err := detectSources(context.Background(), cfg, detectOptions{Files: []string{path}, Host: "indeed.com", JSON: true}, zap.NewNop(), &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), `"confidence": 100`)
}

func TestDetectSources_LoadFailure(t *testing.T) {
	var out bytes.Buffer

	err := detectSources(context.Background(), config.Defaults(), detectOptions{
		Files: []string{filepath.Join(t.TempDir(), "missing.html")},
	}, zap.NewNop(), &out)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 sources")
	assert.Contains(t, out.String(), "error:")
}

func TestDetectSources_Verbose(t *testing.T) {
	path := writeFile(t, "job.html", indeedHTML())
	cfg := config.Defaults()
	cfg.Verbose = true
	var out bytes.Buffer

	err := detectSources(context.Background(), cfg, detectOptions{Files: []string{path}, Host: "www.indeed.com"}, zap.NewNop(), &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "JOB DETECTED")
	assert.Contains(t, out.String(), "75/100")
}

func TestBuildDetector_Registry(t *testing.T) {
	cfg := config.Defaults()

	cfg.Registry = writeFile(t, "sites.json", `[{"domain":"jobs.acme.test","description":["#posting"],"title":["h1"],"company":[]}]`)
	d, err := buildDetector(cfg, zap.NewNop())
	require.NoError(t, err)
	_, ok := d.Registry().Lookup("jobs.acme.test")
	assert.True(t, ok)

	cfg.Registry = writeFile(t, "bad.json", `[{"domain":"jobs.acme.test","description":["div[["],"title":[],"company":[]}]`)
	_, err = buildDetector(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load registry")
}
