package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/pipeline"
)

var (
	outJSON         string
	outMD           string
	outHTML         string
	runTimeout      time.Duration
	noCache         bool
	validateSources bool
	verifyDelay     time.Duration
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <deck.pdf|url>",
	Short: "Verify the claims in one pitch deck",
	Long: `Verify runs the full pipeline over one deck:
- Extract the text of every slide
- Extract the verifiable claims on each slide
- Verify each claim, pacing calls to stay under provider rate limits
- Draft investor due-diligence questions from the results
- Write a JSON, Markdown or HTML report

Example:
  deckcheck verify deck.pdf
  deckcheck verify deck.pdf --json report.json --md report.md
  deckcheck verify https://example.com/deck.pdf --html report.html`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path")
	verifyCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path")
	verifyCmd.Flags().StringVar(&outHTML, "html", "", "output HTML path")
	verifyCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "overall run timeout")
	verifyCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the verification cache")
	verifyCmd.Flags().BoolVar(&validateSources, "validate-sources", false, "check that cited sources are reachable")
	verifyCmd.Flags().DurationVar(&verifyDelay, "verify-delay", 0, "delay between verification calls (default from config)")
}

// applyRunFlags layers verify/batch flags over the loaded config
func applyRunFlags(cmd *cobra.Command, cfg *model.Config) {
	if noCache {
		cfg.Cache.Enabled = false
	}
	if validateSources {
		cfg.Sources.Validate = true
	}
	if cmd.Flags().Changed("verify-delay") {
		cfg.Pipeline.VerifyDelay = verifyDelay
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	ref := args[0]

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	p, err := pipeline.NewFromConfig(cfg, logger, progressPrinter(os.Stderr))
	if err != nil {
		return err
	}

	report, runErr := p.RunFile(ctx, ref)
	if report == nil {
		return fmt.Errorf("verify failed: %w", runErr)
	}

	// A partial report is still written so completed slides are not lost
	if err := writeReport(p.Renderer(), report, outJSON, outMD, outHTML); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	fmt.Fprintln(os.Stderr)
	p.Renderer().RenderSummary(os.Stdout, report)

	if runErr != nil {
		logger.Warn("run stopped before completion", zap.Error(runErr))
		return fmt.Errorf("verify stopped after %d slide(s): %w", len(report.Slides), runErr)
	}
	return nil
}

func writeReport(r *pipeline.Renderer, report *model.Report, jsonPath, mdPath, htmlPath string) error {
	if jsonPath != "" {
		if err := r.RenderJSON(report, jsonPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", jsonPath)
	}
	if mdPath != "" {
		if err := r.RenderMarkdown(report, mdPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", mdPath)
	}
	if htmlPath != "" {
		if err := r.RenderHTML(report, htmlPath); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ HTML report: %s\n", htmlPath)
	}
	return nil
}

// progressPrinter renders pipeline states as one line each
func progressPrinter(w io.Writer) pipeline.Observer {
	return func(p pipeline.Progress) {
		if line := progressLine(p); line != "" {
			fmt.Fprintln(w, line)
		}
	}
}

func progressLine(p pipeline.Progress) string {
	slide := fmt.Sprintf("[%d/%d] slide %d", p.SlideIndex, p.SlideCount, p.SlideNumber)
	switch p.State {
	case pipeline.StateExtractingClaims:
		return slide + ": extracting claims"
	case pipeline.StateVerifyingClaims:
		return fmt.Sprintf("%s: verifying claim %d of %d", slide, p.Claim, p.ClaimCount)
	case pipeline.StateSlideComplete:
		return slide + ": done"
	case pipeline.StateWaitingRetry:
		return fmt.Sprintf("%s: rate limited, retrying in %s", slide, p.Wait.Round(time.Second))
	case pipeline.StateAbortedOnRateLimit:
		return slide + ": stopped on rate limit"
	case pipeline.StateSynthesizingQuestions:
		return "generating investor questions"
	default:
		return ""
	}
}
