package model

import "time"

// Report is a complete pipeline run rendered for output
type Report struct {
	Source         string    `json:"source"`                    // Deck file name or request label
	GeneratedAt    time.Time `json:"generated_at"`              // When the run finished
	Slides         []Slide   `json:"slides"`                    // Processed slides in input order
	Questions      []string  `json:"questions"`                 // Synthesized investor questions
	QuestionsError string    `json:"questions_error,omitempty"` // Set when question synthesis failed
	Summary        Summary   `json:"summary"`                   // Verdict breakdown

	// QuestionsRateLimited marks a question failure that is worth retrying;
	// QuestionsRetryAfter is the backend's hint in seconds, when it gave one
	QuestionsRateLimited bool `json:"questions_rate_limited,omitempty"`
	QuestionsRetryAfter  int  `json:"questions_retry_after,omitempty"`
}

// Summary is the transparent verdict breakdown of a run
type Summary struct {
	Slides           int      `json:"slides"`
	SlidesWithErrors int      `json:"slides_with_errors"`
	Claims           int      `json:"claims"`
	Verified         int      `json:"verified"`
	Partial          int      `json:"partially_verified"`
	CannotVerify     int      `json:"cannot_verify"`
	Index            int      `json:"index"`      // Support index (0-100)
	Confidence       string   `json:"confidence"` // low, medium, high
	Signals          []Signal `json:"signals"`
}

// Signal is a diagnostic observation about a run
type Signal struct {
	Type        SignalType     `json:"type"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// SignalType identifies what a signal measures
type SignalType string

const (
	SignalClaimSupport    SignalType = "claim_support"
	SignalSlideErrors     SignalType = "slide_errors"
	SignalSourceAuthority SignalType = "source_authority"
	SignalDeadSources     SignalType = "dead_sources"
	SignalNoSources       SignalType = "unsourced_verdicts"
)

// Severity grades a signal
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)
