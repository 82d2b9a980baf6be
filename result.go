package courier

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ResultKind is the user-visible outcome of a submission run.
type ResultKind string

const (
	// HardSuccess means the payload verifiably reached a remote party.
	HardSuccess ResultKind = "hard_success"
	// SoftSuccess means nothing was delivered remotely but the user still has their file.
	SoftSuccess ResultKind = "soft_success"
	// TotalFailure means validation failed or every channel failed.
	TotalFailure ResultKind = "total_failure"
)

// ErrInFlight is returned when a submission is started while another is still running.
var ErrInFlight = errors.New("a submission is already in flight")

// Attempt records one channel invocation.
type Attempt struct {
	Label    string        `json:"label"`
	Outcome  Outcome       `json:"outcome"`
	Duration time.Duration `json:"duration"`
}

// Result is produced once per run and must not be mutated afterwards.
type Result struct {
	SubmissionID string     `json:"submission_id,omitempty"`
	Kind         ResultKind `json:"kind"`
	Locator      string     `json:"locator,omitempty"`
	// Channel is the label of the channel that succeeded.
	Channel  string    `json:"channel,omitempty"`
	Attempts []Attempt `json:"attempts"`
	Err      error     `json:"-"`
}

// Delivered reports whether a remote party received the payload.
func (r *Result) Delivered() bool {
	return r != nil && r.Kind == HardSuccess
}

// Message returns a short text suitable for showing to the user.
func (r *Result) Message() string {
	switch r.Kind {
	case HardSuccess:
		if r.Locator != "" {
			return "File uploaded successfully: " + r.Locator
		}
		return "File uploaded successfully"
	case SoftSuccess:
		if r.Locator != "" {
			return "Upload service unreachable; your file is kept locally at " + r.Locator
		}
		return "Upload service unreachable; only a notification was sent, the file was not delivered"
	default:
		if r.Err != nil {
			return r.Err.Error()
		}
		return "Upload failed"
	}
}

// ExhaustedError reports that every registered channel failed.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Label, a.Outcome))
	}
	return fmt.Sprintf("all %d channels failed (%s)", len(e.Attempts), strings.Join(parts, "; "))
}
