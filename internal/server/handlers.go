package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/coverme/internal/db"
	"github.com/jonathan/coverme/internal/detect"
	"github.com/jonathan/coverme/internal/dom"
	"github.com/jonathan/coverme/internal/scan"
)

// DetectRequest names the page to scan: posted HTML, a URL to load, or both.
// Host overrides the hostname used for site matching; TabID keys the
// stale-result tracking and defaults to the page URL.
type DetectRequest struct {
	URL   string `json:"url,omitempty" validate:"omitempty,url"`
	HTML  string `json:"html,omitempty"`
	Host  string `json:"host,omitempty" validate:"omitempty,hostname"`
	TabID string `json:"tab_id,omitempty"`
}

// MessageRequest is the envelope posted by extension contexts. JobDetails is
// set on jobDetected messages.
type MessageRequest struct {
	Action     string               `json:"action" validate:"required"`
	JobDetails *detect.JobCandidate `json:"jobDetails,omitempty"`
	DetectRequest
}

// DetectJobResponse answers a detectJob message. Found means a candidate was
// detected; no acceptance threshold applies. Title and company carry
// placeholders when detection could not find them.
type DetectJobResponse struct {
	Found       bool   `json:"found"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Description string `json:"description,omitempty"`
	Confidence  int    `json:"confidence,omitempty"`
	Method      string `json:"method,omitempty"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

// ListDetectionsResponse represents the response for listing detections
type ListDetectionsResponse struct {
	Detections []db.Detection `json:"detections"`
	Count      int            `json:"count"`
	Limit      int            `json:"limit"`
}

// handleMessage routes ping, detectJob and jobDetected messages
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	switch req.Action {
	case scan.ActionPing:
		s.jsonResponse(w, http.StatusOK, map[string]string{"status": "active"})
	case scan.ActionDetectJob:
		page, err := s.loadPage(r, req.DetectRequest)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, detectJobResponse(s.scanner.Inspect(r.Context(), page)))
	case scan.ActionJobDetected:
		if req.JobDetails == nil {
			s.writeError(w, &ErrValidation{Field: "jobDetails", Message: "is required"})
			return
		}
		msg := scan.Message{Action: scan.ActionJobDetected, JobDetails: req.JobDetails}
		if err := s.hub.Notify(r.Context(), msg); err != nil {
			s.logger.Warn("failed to relay job message", zap.Error(err))
		}
		s.jsonResponse(w, http.StatusOK, map[string]string{"status": "received"})
	default:
		s.writeError(w, &ErrValidation{Field: "action", Message: "unknown action " + strconv.Quote(req.Action)})
	}
}

// handleDetect runs a scan and returns the full result
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	page, err := s.loadPage(r, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.scanner.Scan(r.Context(), page, req.TabID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// handleListDetections lists recent detections
func (s *Server) handleListDetections(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, ErrStoreUnavailable)
		return
	}
	limit := db.NormalizeLimit(parseQueryInt(r, "limit", db.DefaultListLimit))

	detections, err := s.store.ListDetections(r.Context(), limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if detections == nil {
		detections = []db.Detection{}
	}
	s.jsonResponse(w, http.StatusOK, ListDetectionsResponse{
		Detections: detections,
		Count:      len(detections),
		Limit:      limit,
	})
}

// handleLatestDetection returns the most recent detection for ?url=
func (s *Server) handleLatestDetection(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, ErrStoreUnavailable)
		return
	}
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		s.writeError(w, &ErrValidation{Field: "url", Message: "is required"})
		return
	}

	detection, err := s.store.GetLatestByURL(r.Context(), rawURL)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if detection == nil {
		s.writeError(w, &ErrNotFound{Resource: "detection", Key: rawURL})
		return
	}
	s.jsonResponse(w, http.StatusOK, detection)
}

// handleDeleteDetection removes a detection by ID
func (s *Server) handleDeleteDetection(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, ErrStoreUnavailable)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid detection ID")
		return
	}

	if err := s.store.DeleteDetection(r.Context(), id); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams jobDetected messages as Server-Sent Events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	messages, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	if err := sse.WriteComment("connected"); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-messages:
			if err := sse.WriteEvent(msg.Action, msg); err != nil {
				s.logger.Debug("event stream closed", zap.Error(err))
				return
			}
		}
	}
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "database": "disabled"}
	if p, ok := s.store.(pinger); ok {
		resp["database"] = "ok"
		if err := p.Ping(r.Context()); err != nil {
			resp["status"] = "degraded"
			resp["database"] = err.Error()
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// decode reads and validates a JSON request body.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if err := s.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// loadPage builds the page from posted HTML or by loading the URL.
func (s *Server) loadPage(r *http.Request, req DetectRequest) (*dom.Page, error) {
	ctx := r.Context()

	var page *dom.Page
	var err error
	switch {
	case req.HTML != "":
		page, err = dom.NewPageFromHTML(req.HTML, req.URL)
		if err != nil {
			return nil, &ErrValidation{Field: "html", Message: err.Error()}
		}
	case req.URL != "":
		if s.loader == nil {
			return nil, &ErrValidation{Field: "html", Message: "is required when URL loading is disabled"}
		}
		page, err = s.loader.Load(ctx, req.URL)
		if err != nil {
			return nil, err
		}
	default:
		return nil, &ErrValidation{Field: "url", Message: "url or html is required"}
	}

	if req.Host != "" {
		page = page.WithHostname(req.Host)
	}
	return page, nil
}

func detectJobResponse(res *scan.Result) DetectJobResponse {
	resp := DetectJobResponse{Status: string(res.Status), Reason: res.Reason}
	if res.Status != scan.StatusDetected || res.Candidate == nil {
		return resp
	}
	in := scan.ManualInputFrom(res.Candidate)
	resp.Found = true
	resp.Title = in.Title
	resp.Company = in.Company
	resp.Description = in.Description
	resp.Confidence = res.Candidate.Confidence
	resp.Method = string(res.Candidate.Method)
	return resp
}

// parseQueryInt parses an integer query parameter, falling back to def.
func parseQueryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
