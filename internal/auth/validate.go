package auth

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/gemini-watermark-remover/internal/metrics"
)

// ValidationError is a classified Gemini API failure.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes failures.
type ValidationErrorType int

const (
	// ErrTypeNoKey indicates no API key was found.
	ErrTypeNoKey ValidationErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a network or upstream server problem.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates quota exhaustion or rate limiting.
	ErrTypeQuotaExceeded
	// ErrTypeUnknown indicates anything else.
	ErrTypeUnknown
)

func (t ValidationErrorType) String() string {
	switch t {
	case ErrTypeNoKey:
		return "no_key"
	case ErrTypeInvalidKey:
		return "invalid_key"
	case ErrTypeNetworkError:
		return "network"
	case ErrTypeQuotaExceeded:
		return "quota"
	default:
		return "unknown"
	}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsQuota reports whether err is a quota or rate-limit failure, for which
// retrying with another instruction is futile.
func IsQuota(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Type == ErrTypeQuotaExceeded
}

// IsAuth reports whether err means the key was rejected. No other
// instruction can succeed with the same key.
func IsAuth(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Type == ErrTypeInvalidKey
}

// ValidateAPIKey makes a minimal text request to prove the key works.
func ValidateAPIKey(ctx context.Context, client *genai.Client, model string) error {
	log.Debug().Str("model", model).Msg("Validating API key with Gemini API")

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	result := "success"
	if err != nil {
		valErr := Classify(err)
		result = valErr.Type.String()
		emitValidation(result, elapsed)
		log.Error().Err(err).Str("type", result).Msg("API key validation failed")
		return valErr
	}
	if resp == nil || len(resp.Candidates) == 0 {
		emitValidation("empty_response", elapsed)
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: "API returned empty response",
		}
	}

	emitValidation(result, elapsed)
	log.Info().Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}

func emitValidation(result string, elapsed time.Duration) {
	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Duration("ApiKeyValidationMs", elapsed).
		Count("ApiKeyValidationResult").
		Flush()
}

// Classify maps any Gemini client error to a ValidationError. Typed API
// errors are classified by HTTP code; everything else by message.
func Classify(err error) *ValidationError {
	if err == nil {
		return nil
	}

	var already *ValidationError
	if errors.As(err, &already) {
		return already
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyAPIError(*apiErrPtr, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &ValidationError{Type: ErrTypeNetworkError, Message: "network error talking to Gemini", Err: err}
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "resource_exhausted") ||
		strings.Contains(errLower, "rate limit") ||
		strings.Contains(errLower, "too many requests"):
		return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "API quota exceeded or rate limited", Err: err}

	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied"):
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "API key is invalid or has been revoked", Err: err}

	case strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		return &ValidationError{Type: ErrTypeNetworkError, Message: "network error talking to Gemini", Err: err}

	default:
		return &ValidationError{Type: ErrTypeUnknown, Message: "Gemini API call failed", Err: err}
	}
}

func classifyAPIError(apiErr genai.APIError, wrapped error) *ValidationError {
	switch apiErr.Code {
	case 400:
		if strings.Contains(strings.ToUpper(apiErr.Message), "API_KEY_INVALID") ||
			strings.Contains(strings.ToLower(apiErr.Message), "api key not valid") {
			return &ValidationError{Type: ErrTypeInvalidKey, Message: "API key is invalid", Err: wrapped}
		}
		return &ValidationError{Type: ErrTypeUnknown, Message: apiErr.Message, Err: wrapped}
	case 401, 403:
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "API key is invalid, expired, or lacks permissions", Err: wrapped}
	case 429:
		return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "API rate limit exceeded - try again later", Err: wrapped}
	case 500, 502, 503, 504:
		return &ValidationError{Type: ErrTypeNetworkError, Message: "Gemini API server error - try again later", Err: wrapped}
	default:
		if strings.EqualFold(apiErr.Status, "RESOURCE_EXHAUSTED") {
			return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "API quota exceeded", Err: wrapped}
		}
		return &ValidationError{Type: ErrTypeUnknown, Message: apiErr.Message, Err: wrapped}
	}
}
