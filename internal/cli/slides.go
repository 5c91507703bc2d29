package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/ppiankov/deckcheck/internal/pipeline"
	"github.com/ppiankov/deckcheck/internal/slides"
)

// slidesCmd represents the slides command
var slidesCmd = &cobra.Command{
	Use:   "slides <deck.pdf|url>",
	Short: "Print the text extracted from each slide as JSON",
	Long: `Slides extracts per-page text without calling any model. The output is
the request body accepted by POST /api/verify.`,
	Args: cobra.ExactArgs(1),
	RunE: runSlides,
}

func init() {
	rootCmd.AddCommand(slidesCmd)
}

func runSlides(cmd *cobra.Command, args []string) error {
	ref := args[0]

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	var inputs []model.SlideInput
	if pipeline.IsRemote(ref) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		res, err := pipeline.NewFetcher(cfg.HTTP).FetchWithRetry(ctx, ref)
		if err != nil {
			return fmt.Errorf("download %s: %w", ref, err)
		}
		inputs, err = slides.FromBytes(res.Data)
		if err != nil {
			return err
		}
	} else {
		inputs, err = slides.FromFile(ref)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"slides": inputs})
}
