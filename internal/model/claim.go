package model

import "strings"

// Claim is a factual assertion extracted from slide content
type Claim = string

// Verdict classifies the outcome of verifying a claim
type Verdict string

const (
	VerdictVerified          Verdict = "Verified"
	VerdictPartiallyVerified Verdict = "Partially Verified"
	VerdictCannotVerify      Verdict = "Cannot Verify"
)

// ParseVerdict normalizes free-form model output into a Verdict.
// Unknown values map to VerdictCannotVerify.
func ParseVerdict(raw string) Verdict {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")

	switch s {
	case "verified", "true", "confirmed":
		return VerdictVerified
	case "partially verified", "partiallyverified", "partial", "partially true":
		return VerdictPartiallyVerified
	default:
		return VerdictCannotVerify
	}
}

// Verification is the outcome of verifying a single claim
type Verification struct {
	Verified    bool     `json:"verified"`
	Verdict     Verdict  `json:"verdict"`
	Explanation string   `json:"explanation"`
	Sources     []Source `json:"sources"`
	Backend     string   `json:"backend,omitempty"` // Which backend produced the result (empty for built-in defaults)
}

// Fact pairs a claim with its verification outcome
type Fact struct {
	Claim Claim `json:"claim"`
	Verification
}

// NewFact builds a Fact from a claim and its verification
func NewFact(claim Claim, v Verification) Fact {
	if v.Sources == nil {
		v.Sources = []Source{}
	}
	return Fact{Claim: claim, Verification: v}
}
