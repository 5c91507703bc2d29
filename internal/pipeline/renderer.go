package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ppiankov/deckcheck/internal/model"
)

// Renderer writes reports as JSON, Markdown or HTML
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.Table)),
	}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	var buf bytes.Buffer
	if err := r.WriteJSON(&buf, report); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// WriteJSON encodes the report to w
func (r *Renderer) WriteJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// RenderMarkdown writes the Markdown report to path
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return os.WriteFile(path, []byte(r.Markdown(report)), 0644)
}

// RenderHTML writes a standalone HTML page converted from the Markdown report
func (r *Renderer) RenderHTML(report *model.Report, path string) error {
	page, err := r.HTML(report)
	if err != nil {
		return err
	}
	return os.WriteFile(path, page, 0644)
}

// HTML converts the Markdown report into a standalone page
func (r *Renderer) HTML(report *model.Report) ([]byte, error) {
	var body bytes.Buffer
	if err := r.md.Convert([]byte(r.Markdown(report)), &body); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>Deck check: %s</title>\n", html.EscapeString(report.Source))
	page.WriteString("<style>body{font-family:system-ui,sans-serif;max-width:56rem;margin:2rem auto;padding:0 1rem;line-height:1.5}" +
		"table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:.25rem .5rem}blockquote{color:#a33}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// Markdown renders the report
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder
	s := report.Summary

	fmt.Fprintf(&b, "# Deck check: %s\n\n", mdEscape(report.Source))
	fmt.Fprintf(&b, "Generated %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04 MST"))

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "**Support index: %d/100** (confidence: %s)\n\n", s.Index, s.Confidence)
	b.WriteString("| Slides | Claims | Verified | Partially verified | Cannot verify |\n")
	b.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n", s.Slides, s.Claims, s.Verified, s.Partial, s.CannotVerify)

	if len(s.Signals) > 0 {
		for _, sig := range s.Signals {
			fmt.Fprintf(&b, "- %s **%s**: %s\n", severityIcon(sig.Severity), sig.Type, mdEscape(sig.Description))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Slides\n\n")
	for _, slide := range report.Slides {
		fmt.Fprintf(&b, "### Slide %d\n\n", slide.SlideNumber)
		if slide.Error != "" {
			fmt.Fprintf(&b, "> %s\n\n", mdEscape(slide.Error))
		}
		if len(slide.Facts) == 0 {
			b.WriteString("No verifiable claims.\n\n")
			continue
		}
		for _, f := range slide.Facts {
			fmt.Fprintf(&b, "- **%s**: %s\n", f.Verdict, mdEscape(f.Claim))
			if f.Explanation != "" {
				fmt.Fprintf(&b, "  - %s\n", mdEscape(f.Explanation))
			}
			for _, src := range f.Sources {
				fmt.Fprintf(&b, "  - %s\n", sourceLink(src))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Investor questions\n\n")
	switch {
	case report.QuestionsError != "":
		fmt.Fprintf(&b, "> Question generation failed: %s\n", mdEscape(report.QuestionsError))
		if report.QuestionsRateLimited {
			b.WriteString(">\n> Rate limited")
			if report.QuestionsRetryAfter > 0 {
				fmt.Fprintf(&b, "; retry in %ds", report.QuestionsRetryAfter)
			}
			b.WriteString(".\n")
		}
		b.WriteString("\n")
	case len(report.Questions) == 0:
		b.WriteString("None generated.\n\n")
	default:
		for i, q := range report.Questions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, mdEscape(q))
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\nVerdicts come from search-augmented and LLM backends. They indicate support found for a claim, not its truth.\n")
	return b.String()
}

// RenderSummary prints a short plain-text summary to w
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	s := report.Summary
	_, _ = fmt.Fprintf(w, "\n%s\n", report.Source)
	_, _ = fmt.Fprintf(w, "  Support index: %d/100 (confidence: %s)\n", s.Index, s.Confidence)
	_, _ = fmt.Fprintf(w, "  Slides: %d (%d with errors)\n", s.Slides, s.SlidesWithErrors)
	_, _ = fmt.Fprintf(w, "  Claims: %d verified, %d partially verified, %d cannot verify\n", s.Verified, s.Partial, s.CannotVerify)
	if len(report.Questions) > 0 {
		_, _ = fmt.Fprintf(w, "  Investor questions: %d\n", len(report.Questions))
	}
	for _, sig := range s.Signals {
		if sig.Severity != model.SeverityInfo {
			_, _ = fmt.Fprintf(w, "  [%s] %s\n", sig.Severity, sig.Description)
		}
	}
}

func sourceLink(src model.Source) string {
	title := src.Title
	if title == "" {
		title = src.URL
	}
	link := fmt.Sprintf("[%s](<%s>)", mdEscape(title), src.URL)
	if src.URL == "" {
		link = mdEscape(title)
	}

	var notes []string
	if src.Authority != "" {
		notes = append(notes, string(src.Authority))
	}
	if src.Accessible != nil && !*src.Accessible {
		notes = append(notes, "unreachable")
	}
	if len(notes) > 0 {
		link += " (" + strings.Join(notes, ", ") + ")"
	}
	return link
}

func severityIcon(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "✗"
	case model.SeverityWarning:
		return "⚠"
	default:
		return "✓"
	}
}

var mdReplacer = strings.NewReplacer(
	"\\", "\\\\",
	"*", "\\*",
	"_", "\\_",
	"[", "\\[",
	"]", "\\]",
	"<", "&lt;",
	"|", "\\|",
	"\n", " ",
)

// mdEscape neutralizes Markdown in model-generated text
func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}
