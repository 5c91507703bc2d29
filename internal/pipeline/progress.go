package pipeline

import "time"

// State is a pipeline run phase
type State string

const (
	StateIdle                  State = "idle"
	StateExtractingClaims      State = "extracting_claims"
	StateVerifyingClaims       State = "verifying_claims"
	StateSlideComplete         State = "slide_complete"
	StateAllSlidesComplete     State = "all_slides_complete"
	StateSynthesizingQuestions State = "synthesizing_questions"
	StateWaitingRetry          State = "waiting_retry"
	StateDone                  State = "done"
	StateAbortedOnRateLimit    State = "aborted_on_rate_limit"
)

// Progress is published on every state change. SlideIndex and SlideCount
// give "slide i of n"; Claim and ClaimCount are set while verifying.
type Progress struct {
	State       State
	SlideNumber int
	SlideIndex  int
	SlideCount  int
	Claim       int
	ClaimCount  int
	Wait        time.Duration // Set with StateWaitingRetry
	Err         error
}

// Observer receives progress updates. It is called synchronously from the
// run's goroutine and must not block.
type Observer func(Progress)
