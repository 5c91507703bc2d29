// Package score summarizes how well a deck's claims held up.
package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/deckcheck/internal/model"
)

// Scorer calculates the support index and diagnostic signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate tallies verdicts across slides. The index is
// (verified + 0.5 * partially verified) / claims * 100, rounded.
func (s *Scorer) Calculate(slides []model.Slide) model.Summary {
	sum := model.Summary{Slides: len(slides), Signals: []model.Signal{}}

	var sources, primary, tertiary, dead, unsourced int
	for _, slide := range slides {
		if slide.Error != "" {
			sum.SlidesWithErrors++
		}
		for _, f := range slide.Facts {
			sum.Claims++
			switch f.Verdict {
			case model.VerdictVerified:
				sum.Verified++
			case model.VerdictPartiallyVerified:
				sum.Partial++
			default:
				sum.CannotVerify++
			}

			if f.Verdict != model.VerdictCannotVerify && len(f.Sources) == 0 {
				unsourced++
			}
			for _, src := range f.Sources {
				sources++
				switch src.Authority {
				case model.TierPrimary:
					primary++
				case model.TierTertiary:
					tertiary++
				}
				if src.Accessible != nil && !*src.Accessible {
					dead++
				}
			}
		}
	}

	if sum.Claims > 0 {
		support := (float64(sum.Verified) + 0.5*float64(sum.Partial)) / float64(sum.Claims)
		sum.Index = int(math.Round(support * 100))
	}

	sum.Signals = append(sum.Signals, s.supportSignal(sum))
	if sum.SlidesWithErrors > 0 {
		sum.Signals = append(sum.Signals, model.Signal{
			Type:        model.SignalSlideErrors,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d of %d slides stopped early", sum.SlidesWithErrors, sum.Slides),
			Data:        map[string]any{"slides": sum.Slides, "errored": sum.SlidesWithErrors},
		})
	}
	if unsourced > 0 {
		sum.Signals = append(sum.Signals, model.Signal{
			Type:        model.SignalNoSources,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d supported verdicts cite no sources", unsourced),
			Data:        map[string]any{"unsourced": unsourced},
		})
	}
	if sig, ok := authoritySignal(sources, primary, tertiary); ok {
		sum.Signals = append(sum.Signals, sig)
	}
	if dead > 0 {
		sum.Signals = append(sum.Signals, model.Signal{
			Type:        model.SignalDeadSources,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d of %d cited sources are unreachable", dead, sources),
			Data:        map[string]any{"sources": sources, "unreachable": dead},
		})
	}

	sum.Confidence = determineConfidence(sum)
	return sum
}

func (s *Scorer) supportSignal(sum model.Summary) model.Signal {
	if sum.Claims == 0 {
		return model.Signal{
			Type:        model.SignalClaimSupport,
			Severity:    model.SeverityInfo,
			Description: "No verifiable claims extracted",
			Data:        map[string]any{"claims": 0},
		}
	}

	severity := model.SeverityInfo
	switch {
	case sum.Index < 40:
		severity = model.SeverityCritical
	case sum.Index < 70:
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalClaimSupport,
		Severity:    severity,
		Description: fmt.Sprintf("%d verified, %d partially verified, %d unverifiable of %d claims", sum.Verified, sum.Partial, sum.CannotVerify, sum.Claims),
		Data: map[string]any{
			"claims":  sum.Claims,
			"index":   sum.Index,
			"formula": "(verified + 0.5 * partially_verified) / claims * 100",
		},
	}
}

// authoritySignal is emitted only when sources were classified
func authoritySignal(sources, primary, tertiary int) (model.Signal, bool) {
	if sources == 0 || primary+tertiary == 0 {
		return model.Signal{}, false
	}

	primaryShare := float64(primary) / float64(sources)
	severity := model.SeverityInfo
	if float64(tertiary)/float64(sources) > 0.5 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalSourceAuthority,
		Severity:    severity,
		Description: fmt.Sprintf("%.0f%% of cited sources are primary", primaryShare*100),
		Data: map[string]any{
			"sources":  sources,
			"primary":  primary,
			"tertiary": tertiary,
		},
	}, true
}

// determineConfidence grades how much the index can be trusted
func determineConfidence(sum model.Summary) string {
	if sum.Claims < 3 || sum.SlidesWithErrors*2 > sum.Slides {
		return "low"
	}
	if sum.Index >= 70 && sum.SlidesWithErrors == 0 {
		return "high"
	}
	if sum.Index >= 40 {
		return "medium"
	}
	return "low"
}
