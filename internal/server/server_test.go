package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/coverme/internal/db"
	"github.com/jonathan/coverme/internal/detect"
	"github.com/jonathan/coverme/internal/dom"
	"github.com/jonathan/coverme/internal/fetch"
	"github.com/jonathan/coverme/internal/scan"
	"github.com/jonathan/coverme/internal/server/ratelimit"
)

type fakeStore struct {
	mu      sync.Mutex
	saved   []*db.Detection
	listed  int
	latest  *db.Detection
	deleted []uuid.UUID
	pingErr error
}

func (f *fakeStore) SaveDetection(_ context.Context, d *db.Detection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, d)
	return nil
}

func (f *fakeStore) ListDetections(_ context.Context, limit int) ([]db.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = limit
	out := make([]db.Detection, 0, len(f.saved))
	for _, d := range f.saved {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeStore) GetLatestByURL(_ context.Context, url string) (*db.Detection, error) {
	if f.latest != nil && f.latest.URL == url {
		return f.latest, nil
	}
	return nil, nil
}

func (f *fakeStore) DeleteDetection(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) Ping(_ context.Context) error {
	return f.pingErr
}

type fakeLoader struct {
	markup string
	err    error
	urls   []string
}

func (f *fakeLoader) Load(_ context.Context, rawURL string) (*dom.Page, error) {
	f.urls = append(f.urls, rawURL)
	if f.err != nil {
		return nil, f.err
	}
	return dom.NewPageFromHTML(f.markup, rawURL)
}

const indeedURL = "https://www.indeed.com/viewjob?jk=abc"

func indeedHTML() string {
	description := strings.Repeat("The requirements are Go and SQL and a calm mind. ", 12)
	return `<html><body>
		<h1 class="jobsearch-JobInfoHeader-title">Software Engineer</h1>
		<div id="jobDescriptionText">` + description + `</div>
	</body></html>`
}

const recipeHTML = `<html><body><h1>Lemon cake</h1><p>Mix the flour and sugar, then bake for forty minutes.</p></body></html>`

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	detector, err := detect.New()
	require.NoError(t, err)
	srv, err := New(Config{RateLimit: &ratelimit.Config{Enabled: false}}, detector, opts...)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func messageBody(t *testing.T, req MessageRequest) string {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return string(data)
}

func TestHealth(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"disabled"}`, w.Body.String())

	store := &fakeStore{pingErr: errors.New("connection refused")}
	w = do(t, newTestServer(t, WithStore(store)), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"degraded","database":"connection refused"}`, w.Body.String())
}

func TestMessage_Ping(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodPost, "/messages", `{"action":"ping"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"active"}`, w.Body.String())
}

func TestMessage_DetectJobFromHTML(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, WithStore(store))

	w := do(t, srv, http.MethodPost, "/messages", messageBody(t, MessageRequest{
		Action:        scan.ActionDetectJob,
		DetectRequest: DetectRequest{URL: indeedURL, HTML: indeedHTML()},
	}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp DetectJobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Found)
	assert.Equal(t, "Software Engineer", resp.Title)
	assert.Equal(t, scan.UnknownCompany, resp.Company)
	assert.Equal(t, "site-specific", resp.Method)
	assert.Equal(t, 75, resp.Confidence)
	assert.Equal(t, "detected", resp.Status)

	assert.Empty(t, store.saved, "user-requested detection is not persisted")
}

func TestMessage_DetectJobBelowAcceptanceThreshold(t *testing.T) {
	description := strings.Repeat("The requirements are Go and SQL and a calm mind. ", 3)
	markup := `<html><body><div id="jobDescriptionText">` + description + `</div></body></html>`
	store := &fakeStore{}
	srv := newTestServer(t, WithStore(store))
	messages, unsubscribe := srv.Hub().Subscribe()
	defer unsubscribe()

	w := do(t, srv, http.MethodPost, "/messages", messageBody(t, MessageRequest{
		Action:        scan.ActionDetectJob,
		DetectRequest: DetectRequest{URL: indeedURL, HTML: markup},
	}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp DetectJobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Found)
	assert.Equal(t, 55, resp.Confidence)
	assert.Equal(t, scan.UnknownTitle, resp.Title)
	assert.Equal(t, scan.UnknownCompany, resp.Company)
	assert.Equal(t, strings.TrimSpace(description), resp.Description)
	assert.Empty(t, store.saved)
	assert.Empty(t, messages)

	body, err := json.Marshal(DetectRequest{URL: indeedURL, HTML: markup})
	require.NoError(t, err)
	w = do(t, srv, http.MethodPost, "/detect", string(body))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"rejected"`)
}

func TestMessage_DetectJobSkippedHost(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodPost, "/messages", messageBody(t, MessageRequest{
		Action:        scan.ActionDetectJob,
		DetectRequest: DetectRequest{HTML: indeedHTML(), Host: "www.google.com"},
	}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"found":false,"status":"skipped","reason":"non-job site"}`, w.Body.String())
}

func TestMessage_JobDetectedRelayedToSubscribers(t *testing.T) {
	srv := newTestServer(t)
	messages, unsubscribe := srv.Hub().Subscribe()
	defer unsubscribe()

	job := &detect.JobCandidate{Title: "SRE", Description: "Run things.", Method: detect.MethodSchema, Confidence: 80}
	w := do(t, srv, http.MethodPost, "/messages", messageBody(t, MessageRequest{
		Action:     scan.ActionJobDetected,
		JobDetails: job,
	}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"received"}`, w.Body.String())
	select {
	case msg := <-messages:
		assert.Equal(t, scan.ActionJobDetected, msg.Action)
		assert.Equal(t, job, msg.JobDetails)
	default:
		t.Fatal("expected a relayed message")
	}
}

func TestMessage_DetectJobNotFound(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodPost, "/messages", messageBody(t, MessageRequest{
		Action:        scan.ActionDetectJob,
		DetectRequest: DetectRequest{URL: "https://recipes.example.com/cake", HTML: recipeHTML},
	}))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"found":false,"status":"not_found"}`, w.Body.String())
}

func TestMessage_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"action":`},
		{"missing action", `{}`},
		{"unknown action", `{"action":"launch"}`},
		{"detect without page", `{"action":"detectJob"}`},
		{"jobDetected without details", `{"action":"jobDetected"}`},
		{"invalid url", `{"action":"detectJob","url":"not a url","html":"<p></p>"}`},
		{"url without loader", `{"action":"detectJob","url":"https://example.com/job"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/messages", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestMessage_DetectJobByURL(t *testing.T) {
	loader := &fakeLoader{markup: indeedHTML()}
	srv := newTestServer(t, WithLoader(loader))

	w := do(t, srv, http.MethodPost, "/messages", fmt.Sprintf(`{"action":"detectJob","url":%q}`, indeedURL))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{indeedURL}, loader.urls)
	assert.Contains(t, w.Body.String(), `"found":true`)
}

func TestMessage_LoaderFailure(t *testing.T) {
	loader := &fakeLoader{err: fmt.Errorf("%w: status 503", fetch.ErrHTTPRequestFailed)}
	srv := newTestServer(t, WithLoader(loader))

	w := do(t, srv, http.MethodPost, "/messages", fmt.Sprintf(`{"action":"detectJob","url":%q}`, indeedURL))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestDetect_ReturnsScanResult(t *testing.T) {
	body, err := json.Marshal(DetectRequest{URL: indeedURL, HTML: indeedHTML(), TabID: "tab-7"})
	require.NoError(t, err)

	w := do(t, newTestServer(t), http.MethodPost, "/detect", string(body))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res scan.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, scan.StatusAccepted, res.Status)
	require.NotNil(t, res.Candidate)
	assert.Equal(t, detect.MethodSiteSpecific, res.Candidate.Method)
	require.NotNil(t, res.Detection)
	assert.Equal(t, "www.indeed.com", res.Detection.Hostname)
}

func TestDetect_HostOverride(t *testing.T) {
	body, err := json.Marshal(DetectRequest{HTML: indeedHTML(), Host: "www.google.com"})
	require.NoError(t, err)

	w := do(t, newTestServer(t), http.MethodPost, "/detect", string(body))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"skipped"`)
}

func TestDetections_NoStore(t *testing.T) {
	srv := newTestServer(t)

	for _, target := range []string{"/detections", "/detections/latest?url=x"} {
		w := do(t, srv, http.MethodGet, target, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, target)
	}
	w := do(t, srv, http.MethodDelete, "/detections/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDetections_List(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, WithStore(store))
	do(t, srv, http.MethodPost, "/detect", messageBody(t, MessageRequest{DetectRequest: DetectRequest{URL: indeedURL, HTML: indeedHTML()}}))

	w := do(t, srv, http.MethodGet, "/detections?limit=1000", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp ListDetectionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, db.MaxListLimit, resp.Limit)
	assert.Equal(t, db.MaxListLimit, store.listed)
	assert.Equal(t, "Software Engineer", resp.Detections[0].Title)
}

func TestDetections_Latest(t *testing.T) {
	store := &fakeStore{latest: &db.Detection{ID: uuid.New(), URL: indeedURL, Title: "SRE"}}
	srv := newTestServer(t, WithStore(store))

	w := do(t, srv, http.MethodGet, "/detections/latest", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodGet, "/detections/latest?url=https://example.com/none", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/detections/latest?url="+indeedURL, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"SRE"`)
}

func TestDetections_Delete(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, WithStore(store))

	w := do(t, srv, http.MethodDelete, "/detections/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := uuid.New()
	w = do(t, srv, http.MethodDelete, "/detections/"+id.String(), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []uuid.UUID{id}, store.deleted)
}

func TestCORSPreflight(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodOptions, "/messages", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	detector, err := detect.New()
	require.NoError(t, err)
	srv, err := New(Config{RateLimit: &ratelimit.Config{
		Enabled: true,
		EndpointConfigs: []ratelimit.EndpointConfig{
			{Path: "/messages", Method: "POST", Limit: 1, Window: time.Hour, Burst: 1},
		},
	}}, detector)
	require.NoError(t, err)

	w := do(t, srv, http.MethodPost, "/messages", `{"action":"ping"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = do(t, srv, http.MethodPost, "/messages", `{"action":"ping"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")

	w = do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEvents_StreamsAcceptedJobs(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return srv.Hub().Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	body, err := json.Marshal(DetectRequest{URL: indeedURL, HTML: indeedHTML()})
	require.NoError(t, err)
	post, err := http.Post(ts.URL+"/detect", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	post.Body.Close()

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}

	assert.Equal(t, scan.ActionJobDetected, event)
	var msg scan.Message
	require.NoError(t, json.Unmarshal([]byte(data), &msg))
	require.NotNil(t, msg.JobDetails)
	assert.Equal(t, "Software Engineer", msg.JobDetails.Title)
}
