package db

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit and MaxListLimit bound detection history queries
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// Detection is an accepted job detection as stored in job_detections
type Detection struct {
	ID          uuid.UUID `json:"id"`
	URL         string    `json:"url"`
	Hostname    string    `json:"hostname"`
	PageID      uuid.UUID `json:"page_id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Description string    `json:"description"`
	Method      string    `json:"method"`
	Confidence  int       `json:"confidence"`
	ContentHash string    `json:"content_hash"`
	DetectedAt  time.Time `json:"detected_at"`
}

// HashContent returns the SHA256 hex digest of content
func HashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// NormalizeLimit clamps a requested list size to [1, MaxListLimit],
// defaulting non-positive values to DefaultListLimit
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
