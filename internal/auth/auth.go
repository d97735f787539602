// Package auth resolves the Gemini API credential and classifies the errors
// the Gemini API returns (invalid key, quota, network).
package auth

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// APIKeyEnv is the canonical environment variable holding the Gemini API key.
const APIKeyEnv = "GEMINI_API_KEY"

// GetAPIKey returns the Gemini API key from the environment.
// Only cmd/ entry points call this; everything below them receives the key
// explicitly through config.
func GetAPIKey() (string, error) {
	return LookupAPIKey(os.Getenv)
}

// LookupAPIKey resolves the key with a caller-supplied getenv.
func LookupAPIKey(getenv func(string) string) (string, error) {
	if key := strings.TrimSpace(getenv(APIKeyEnv)); key != "" {
		log.Debug().Str("source", APIKeyEnv).Msg("Using API key from environment variable")
		return key, nil
	}
	return "", &ValidationError{
		Type:    ErrTypeNoKey,
		Message: fmt.Sprintf("API key not found: set %s", APIKeyEnv),
	}
}

// Redact shortens a key for logs: the first four characters and the length.
func Redact(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return fmt.Sprintf("%s…(%d chars)", key[:4], len(key))
}
