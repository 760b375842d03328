package scan

import (
	"context"

	"go.uber.org/zap"

	"github.com/jonathan/coverme/internal/detect"
)

// Message actions exchanged with extension contexts.
const (
	ActionPing        = "ping"
	ActionDetectJob   = "detectJob"
	ActionJobDetected = "jobDetected"
)

// Placeholders shown to the user when detection found no title or company.
const (
	UnknownTitle   = "Unknown Job Title"
	UnknownCompany = "Unknown Company"
)

// Message is the envelope sent to other contexts when a job is accepted.
type Message struct {
	Action     string               `json:"action"`
	JobDetails *detect.JobCandidate `json:"jobDetails,omitempty"`
}

// Notifier delivers messages to interested contexts.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogNotifier writes accepted jobs to a logger.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify logs msg at info level.
func (n LogNotifier) Notify(_ context.Context, msg Message) error {
	fields := []zap.Field{zap.String("action", msg.Action)}
	if msg.JobDetails != nil {
		fields = append(fields,
			zap.String("title", msg.JobDetails.Title),
			zap.String("company", msg.JobDetails.Company),
			zap.String("method", string(msg.JobDetails.Method)),
			zap.Int("confidence", msg.JobDetails.Confidence))
	}
	n.Logger.Info("job message", fields...)
	return nil
}

// ManualInput is the editable view of a candidate handed to the UI, with
// placeholders for missing fields.
type ManualInput struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
}

// ManualInputFrom builds the UI view of c. The candidate is not modified.
func ManualInputFrom(c *detect.JobCandidate) ManualInput {
	if c == nil {
		return ManualInput{Title: UnknownTitle, Company: UnknownCompany}
	}
	in := ManualInput{Title: c.Title, Company: c.Company, Description: c.Description}
	if in.Title == "" {
		in.Title = UnknownTitle
	}
	if in.Company == "" {
		in.Company = UnknownCompany
	}
	return in
}
