// Package cli wires configuration into the running service for the
// binaries under cmd/: Gemini client and remover, artifact and record
// stores, and fatal handling of credential errors.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-watermark-remover/internal/auth"
	"github.com/fpang/gemini-watermark-remover/internal/config"
	"github.com/fpang/gemini-watermark-remover/internal/gemini"
	"github.com/fpang/gemini-watermark-remover/internal/watermark"
)

// NewRemover creates the Gemini client, optionally proves the key works and
// returns a remover configured from cfg.
func NewRemover(ctx context.Context, cfg config.Config, validateKey bool) (*watermark.Remover, *gemini.Service, error) {
	client, err := gemini.NewClient(ctx, cfg.APIKey)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("key", auth.Redact(cfg.APIKey)).Msg("Gemini client initialized")

	if validateKey {
		if err := auth.ValidateAPIKey(ctx, client, cfg.Model); err != nil {
			return nil, nil, err
		}
	}

	svc := gemini.NewService(client, gemini.Options{
		Model:              cfg.Model,
		SystemInstruction:  cfg.SystemInstruction,
		UploadPollInterval: cfg.UploadPollInterval,
		UploadTimeout:      cfg.UploadTimeout,
	})
	remover, err := watermark.New(svc, watermark.Options{
		Prompts:      cfg.Prompts,
		AttemptDelay: cfg.AttemptDelay,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create remover: %w", err)
	}
	return remover, svc, nil
}
