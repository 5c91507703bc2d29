package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/deckcheck/internal/llm"
	"github.com/ppiankov/deckcheck/internal/pipeline"
	"github.com/ppiankov/deckcheck/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the verification API over HTTP",
	Long: `Serve exposes the pipeline to browser clients:
  POST /api/slides               PDF upload to slide inputs
  POST /api/verify-slide         one slide
  POST /api/verify               a whole deck, in order
  POST /api/generate-questions   investor questions for verified slides
  GET  /api/health               configured verification backends

Missing credentials do not stop the server; the API reports them per request.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	opts := server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RetryAfter:     cfg.Pipeline.RetryWait,
		Logger:         logger.Named("http"),
	}

	var runner server.Runner
	p, err := pipeline.NewFromConfig(cfg, logger, nil)
	switch {
	case err == nil:
		runner = p
	case llm.IsConfigError(err):
		logger.Warn("pipeline not configured, API will report errors", zap.Error(err))
		opts.ConfigErr = err
	default:
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(runner, opts).Run(ctx, cfg.Server.Addr)
}
