package verify

import (
	"fmt"
	"time"
)

// presentDayBlock anchors a verification to now; shared by both backends
func presentDayBlock(now time.Time) string {
	date := now.Format("Monday, January 2, 2006")
	clock := now.Format("03:04 PM MST")

	return fmt.Sprintf(`CRITICAL: Interpret the claim as a present-day statement. The current date and time is %[1]s at %[2]s.
- Treat the claim as referring to the present (%[1]s), even if no time period is specified
- Use current data and recent sources to verify it
- If the claim is about historical data, say so in your explanation but still verify it against current information`, date, clock)
}

// BuildSearchSystemPrompt creates the search backend's instruction, anchored to now
func BuildSearchSystemPrompt(now time.Time) string {
	return `You are a fact-checking assistant. Verify claims and provide sources.

` + presentDayBlock(now) + `

Return a JSON object with: verified (boolean), verdict (Verified/Partially Verified/Cannot Verify), explanation (2-3 sentences, mention if the claim refers to current vs historical data), and sources (array of {title, url}).`
}

// BuildSearchQuery creates the search backend's user message
func BuildSearchQuery(now time.Time, claim string) string {
	return fmt.Sprintf("As of %s, verify this claim and provide sources: %q", now.Format("January 2, 2006"), claim)
}

// BuildPrompt creates the fallback verification prompt, anchored to now
func BuildPrompt(now time.Time, claim string) string {
	return fmt.Sprintf(`You are a fact-checking assistant. Verify this claim and provide sources.

%s

Return ONLY valid JSON, nothing else. No explanations outside the JSON, no markdown.

Return a JSON object with:
- verified (boolean): true if the claim is verified, false otherwise
- verdict (string): "Verified", "Partially Verified", or "Cannot Verify"
- explanation (string): 2-3 sentences explaining your verification (mention if the claim refers to current vs historical data)
- sources (array): objects with "title" and "url" properties

Claim to verify: %q`, presentDayBlock(now), claim)
}
