// Command watermark-mcp exposes watermark removal as a Model Context Protocol
// tool over stdio, so an assistant can clean images on the local disk.
//
// Tools:
//
//	remove_watermark  {path} -> {outputPath, attempt, instruction, mimeType}
//
// stdout carries the protocol; logs go to stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-watermark-remover/internal/artifact"
	"github.com/fpang/gemini-watermark-remover/internal/cli"
	"github.com/fpang/gemini-watermark-remover/internal/config"
	"github.com/fpang/gemini-watermark-remover/internal/intake"
	"github.com/fpang/gemini-watermark-remover/internal/logging"
	"github.com/fpang/gemini-watermark-remover/internal/watermark"
)

// CLI flags
var (
	outputDirFlag string
	promptsFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "watermark-mcp",
	Short: "MCP server exposing the remove_watermark tool over stdio",
	Long: `Watermark MCP runs a Model Context Protocol server on stdin/stdout with a
single tool, remove_watermark, which takes the path of a local image and
writes the cleaned copy to the output directory.

Examples:
  watermark-mcp -o ~/Pictures/clean`,
	SilenceUsage: true,
	RunE:         runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&outputDirFlag, "output-dir", "o", "processed", "Directory for processed images")
	rootCmd.Flags().StringVar(&promptsFlag, "prompts", "", "YAML file with the removal instructions")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("MCP server stopped")
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	initStart := time.Now()
	logging.InitWithFormat("json")

	cfg, err := config.FromEnv()
	if err != nil {
		return err
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remover, svc, err := cli.NewRemover(ctx, cfg, false)
	if err != nil {
		return err
	}
	store, err := artifact.NewLocalStore(cfg.OutputDir)
	if err != nil {
		return err
	}

	tools := &toolHandler{
		remover:    remover,
		store:      store,
		intake:     cfg.IntakeOptions(),
		defaultExt: cfg.DefaultExtension,
	}
	server := newServer(tools)

	logging.NewStartupLogger("watermark-mcp").
		CommitHash(commitHash).
		Storage("artifacts", store.Location()).
		Config("model", svc.Model()).
		Prompts(len(cfg.Prompts)).
		InitDuration(time.Since(initStart)).
		Log()

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newServer(tools *toolHandler) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "watermark-mcp", Version: commitHash}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_watermark",
		Description: "Remove the visible watermark from a local image with Gemini. Returns the path of the cleaned copy.",
	}, tools.removeWatermark)
	return server
}

type removeInput struct {
	Path string `json:"path" jsonschema:"path of the image on the local disk (jpeg, png, gif or webp)"`
}

type removeOutput struct {
	OutputPath  string `json:"outputPath" jsonschema:"path of the cleaned image"`
	Attempt     int    `json:"attempt" jsonschema:"1-based index of the instruction that succeeded"`
	Instruction string `json:"instruction"`
	MIMEType    string `json:"mimeType"`
}

type imageRemover interface {
	Remove(ctx context.Context, img *intake.Image) (*watermark.Result, error)
}

type toolHandler struct {
	remover    imageRemover
	store      *artifact.LocalStore
	intake     intake.Options
	defaultExt string
}

func (h *toolHandler) removeWatermark(ctx context.Context, req *mcp.CallToolRequest, in removeInput) (*mcp.CallToolResult, removeOutput, error) {
	start := time.Now()
	img, err := intake.Validate(in.Path, h.intake)
	if err != nil {
		return nil, removeOutput{}, err
	}

	result, err := h.remover.Remove(ctx, img)
	if err != nil {
		log.Warn().Err(err).Str("path", in.Path).Int("attempts", watermark.AttemptCount(err)).Msg("Watermark removal failed")
		return nil, removeOutput{}, err
	}

	mimeType := result.MIMEType
	if mimeType == "" {
		mimeType = img.MIMEType
	}
	name := artifact.Name(uuid.NewString(), artifact.ExtensionFor(mimeType, h.defaultExt))
	if _, err := h.store.Put(ctx, name, result.Data, mimeType); err != nil {
		return nil, removeOutput{}, fmt.Errorf("save result: %w", err)
	}

	out := removeOutput{
		OutputPath:  h.store.Path(name),
		Attempt:     result.Attempt.Index,
		Instruction: result.Attempt.Instruction,
		MIMEType:    mimeType,
	}
	log.Info().
		Str("path", in.Path).
		Str("output", out.OutputPath).
		Int("attempt", out.Attempt).
		Dur("elapsed", time.Since(start)).
		Msg("Watermark removed")
	return nil, out, nil
}
