package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/fpang/gemini-watermark-remover/internal/artifact"
	"github.com/fpang/gemini-watermark-remover/internal/cli"
	"github.com/fpang/gemini-watermark-remover/internal/config"
	"github.com/fpang/gemini-watermark-remover/internal/gateway"
	"github.com/fpang/gemini-watermark-remover/internal/logging"
	"github.com/fpang/gemini-watermark-remover/internal/store"
)

// artifactSweepInterval is how often expired local artifacts are removed.
const artifactSweepInterval = time.Hour

// CLI flags
var (
	portFlag        int
	modelFlag       string
	promptsFlag     string
	outputDirFlag   string
	validateKeyFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "watermark-web",
	Short: "Web UI and API for removing watermarks with Gemini",
	Long: `Watermark Web starts a local web server. Upload an image in the browser
(or POST a data URI to /process) and Gemini is asked to remove the watermark,
trying each configured instruction in turn until one returns an image.

Examples:
  watermark-web
  watermark-web --port 9090
  watermark-web --prompts ./instructions.yaml --validate-key`,
	Run: runMain,
}

func init() {
	registerFlags(rootCmd)
}

func registerFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default $PORT or 5000)")
	cmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini image model to use (default $GEMINI_MODEL)")
	cmd.Flags().StringVar(&promptsFlag, "prompts", "", "YAML file with the removal instructions")
	cmd.Flags().StringVarP(&outputDirFlag, "output-dir", "o", "", "Directory for processed images")
	cmd.Flags().BoolVar(&validateKeyFlag, "validate-key", false, "Check the API key with a test request before serving")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		log.Fatal().Err(err).Msg("Invalid flags")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()
	remover, svc, err := cli.NewRemover(ctx, cfg, validateKeyFlag)
	if err != nil {
		cli.HandleValidationError(err)
	}

	stores, err := cli.OpenStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open stores")
	}
	defer stores.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if local, ok := stores.Artifacts.(*artifact.LocalStore); ok {
		go local.RunSweeper(sweepCtx, store.RequestTTL, artifactSweepInterval)
	}

	if n, err := gateway.SweepScratch(cfg.ScratchRoot); err != nil {
		log.Warn().Err(err).Msg("Failed to sweep stale scratch directories")
	} else if n > 0 {
		log.Info().Int("removed", n).Msg("Removed stale scratch directories")
	}

	srvGateway, err := gateway.New(gateway.Options{
		Remover:          remover,
		Artifacts:        stores.Artifacts,
		Records:          stores.Records,
		Intake:           cfg.IntakeOptions(),
		ScratchRoot:      cfg.ScratchRoot,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		DefaultExtension: cfg.DefaultExtension,
		AllowedOrigins:   cfg.AllowedOrigins,
		RateLimit:        cfg.RateLimit,
		RateBurst:        cfg.RateBurst,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gateway")
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      srvGateway.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	logging.NewStartupLogger("watermark-web").
		CommitHash(commitHash).
		Storage("artifacts", stores.Artifacts.Location()).
		Storage("records", stores.RecordLocation).
		Storage("scratch", cfg.ScratchRoot).
		Feature("keyValidated", validateKeyFlag).
		Feature("rateLimit", cfg.RateLimit > 0).
		Config("model", svc.Model()).
		Config("port", strconv.Itoa(cfg.Port)).
		Config("attemptDelay", cfg.AttemptDelay.String()).
		Config("maxDimension", strconv.Itoa(cfg.MaxDimension)).
		Prompts(len(cfg.Prompts)).
		InitDuration(time.Since(initStart)).
		Log()

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("Shutdown did not complete cleanly")
		}
		if err := srvGateway.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to sweep scratch directories")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Starting web server")
	fmt.Printf("\n  Watermark Remover: http://localhost:%d\n\n", cfg.Port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
	<-done
}

// applyFlags overlays explicitly set flags on the environment config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = portFlag
	}
	if flags.Changed("model") {
		cfg.Model = modelFlag
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = outputDirFlag
	}
	if flags.Changed("prompts") {
		prompts, err := config.LoadPrompts(promptsFlag)
		if err != nil {
			return err
		}
		cfg.SystemInstruction = prompts.System
		cfg.Prompts = prompts.Instructions
	}
	return nil
}
