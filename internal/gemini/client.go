// Package gemini adapts google.golang.org/genai to the watermark.ImageService
// interface: Files API upload with processing poll, streaming and
// non-streaming image edits, and remote file cleanup.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// NewClient creates a Gemini API client for the given key. The key is passed
// explicitly; nothing here reads the environment.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Debug().Msg("Gemini client initialized")
	return client, nil
}
