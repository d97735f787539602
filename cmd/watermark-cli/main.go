// Command watermark-cli removes the watermark from a single image and prints
// the path of the processed file on stdout. Logs go to stderr.
//
// Exit codes:
//
//	0  success
//	1  the input is not a usable image
//	2  every instruction was tried without an image coming back
//	3  the API quota is exhausted
//	4  any other failure (configuration, network, storage)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-watermark-remover/internal/artifact"
	"github.com/fpang/gemini-watermark-remover/internal/cli"
	"github.com/fpang/gemini-watermark-remover/internal/config"
	"github.com/fpang/gemini-watermark-remover/internal/intake"
	"github.com/fpang/gemini-watermark-remover/internal/jobs"
	"github.com/fpang/gemini-watermark-remover/internal/logging"
	"github.com/fpang/gemini-watermark-remover/internal/watermark"
)

// Exit codes.
const (
	exitOK = iota
	exitInput
	exitExhausted
	exitQuota
	exitOther
)

// CLI flags
var (
	modelFlag     string
	promptsFlag   string
	outputDirFlag string
	pickFlag      bool
)

var rootCmd = &cobra.Command{
	Use:   "watermark-cli [image]",
	Short: "Remove the Gemini watermark from one image",
	Long: `Watermark CLI uploads one image to Gemini and asks it to remove the
watermark, trying each configured instruction in turn. The processed image is
written to the output directory and its path printed on stdout.

Every run writes a new file named watermark_removed_<request id><ext>.

The image path is taken from the argument, from a file picker with --pick, or
from the first non-empty line of stdin.

Examples:
  watermark-cli photo.png
  watermark-cli --pick -o ./clean
  echo photo.jpg | watermark-cli`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMain,
}

func init() {
	registerFlags(rootCmd)
}

func registerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini image model to use (default $GEMINI_MODEL)")
	cmd.Flags().StringVar(&promptsFlag, "prompts", "", "YAML file with the removal instructions")
	cmd.Flags().StringVarP(&outputDirFlag, "output-dir", "o", ".", "Directory for the processed image")
	cmd.Flags().BoolVar(&pickFlag, "pick", false, "Choose the image with a native file dialog")
}

type imageRemover interface {
	Remove(ctx context.Context, img *intake.Image) (*watermark.Result, error)
}

// newRemover builds the Gemini-backed remover; replaced in tests.
var newRemover = func(ctx context.Context, cfg config.Config) (imageRemover, error) {
	remover, _, err := cli.NewRemover(ctx, cfg, false)
	if err != nil {
		return nil, err
	}
	return remover, nil
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		log.Error().Err(err).Msg("Watermark removal failed")
	}
	os.Exit(exitCode(err))
}

// exitCode maps a run error onto the documented exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case intake.IsInputError(err):
		return exitInput
	case errors.Is(err, watermark.ErrQuota):
		return exitQuota
	case errors.Is(err, watermark.ErrExhausted):
		return exitExhausted
	default:
		return exitOther
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	logging.Init()
	start := time.Now()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = modelFlag
	}
	if cmd.Flags().Changed("prompts") {
		prompts, err := config.LoadPrompts(promptsFlag)
		if err != nil {
			return err
		}
		cfg.SystemInstruction = prompts.System
		cfg.Prompts = prompts.Instructions
	}
	cfg.OutputDir = outputDirFlag
	cfg.ArtifactBackend = config.ArtifactLocal
	if err := cfg.Validate(); err != nil {
		return err
	}

	path, err := resolvePath(args)
	if err != nil {
		return err
	}

	img, err := intake.Validate(path, cfg.IntakeOptions())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remover, err := newRemover(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info().
		Str("path", path).
		Str("model", cfg.Model).
		Int("instructions", len(cfg.Prompts)).
		Msg("Removing watermark")

	result, err := remover.Remove(ctx, img)
	if err != nil {
		return err
	}

	store, err := artifact.NewLocalStore(cfg.OutputDir)
	if err != nil {
		return err
	}
	mimeType := result.MIMEType
	if mimeType == "" {
		mimeType = img.MIMEType
	}
	// One file per run: a fixed name would let a stale result from an
	// earlier run survive next to this one.
	name := artifact.Name(jobs.NewRequestID(), artifact.ExtensionFor(mimeType, cfg.DefaultExtension))
	if _, err := store.Put(ctx, name, result.Data, mimeType); err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	log.Info().
		Int("attempt", result.Attempt.Index).
		Dur("elapsed", time.Since(start)).
		Msg("Watermark removed")
	fmt.Fprintln(cmd.OutOrStdout(), store.Path(name))
	return nil
}

// resolvePath picks the input from the argument, the file dialog or stdin.
func resolvePath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if pickFlag {
		path, err := zenity.SelectFile(
			zenity.Title("Select an image"),
			zenity.FileFilters{
				{
					Name:     "Images",
					Patterns: []string{"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp"},
				},
			},
		)
		if errors.Is(err, zenity.ErrCanceled) {
			return "", errors.New("no image selected")
		}
		return path, err
	}
	return cli.ReadPath(os.Stdin)
}
