// Package config assembles the service configuration from the environment,
// cobra flags and the instruction list file. Only cmd/ packages build a
// Config; every other package receives the values it needs explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fpang/gemini-watermark-remover/internal/auth"
	"github.com/fpang/gemini-watermark-remover/internal/gemini"
	"github.com/fpang/gemini-watermark-remover/internal/intake"
)

// Artifact backends.
const (
	ArtifactLocal = "local"
	ArtifactS3    = "s3"
)

// Request record backends.
const (
	RecordsMemory = "memory"
	RecordsDynamo = "dynamodb"
	RecordsRedis  = "redis"
	RecordsNone   = "none"
)

// Config holds everything the binaries need to wire the service.
type Config struct {
	APIKey string
	Model  string

	// SystemInstruction and Prompts come from the instruction list file.
	SystemInstruction string
	Prompts           []string

	AttemptDelay       time.Duration
	UploadPollInterval time.Duration
	UploadTimeout      time.Duration

	MaxUploadBytes   int64
	MaxDimension     int
	MaxPixels        int
	ForceFormat      string
	DefaultExtension string

	ArtifactBackend string
	OutputDir       string
	S3Bucket        string
	S3Prefix        string

	RecordBackend string
	DynamoTable   string
	RedisURL      string

	ScratchRoot    string
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
	Port           int
}

// Defaults returns a Config with every optional value filled in.
func Defaults() Config {
	return Config{
		Model:              gemini.DefaultImageModel,
		AttemptDelay:       2 * time.Second,
		UploadPollInterval: 2 * time.Second,
		UploadTimeout:      30 * time.Second,
		MaxUploadBytes:     20 << 20,
		MaxDimension:       4096,
		MaxPixels:          intake.DefaultMaxPixels,
		DefaultExtension:   ".png",
		ArtifactBackend:    ArtifactLocal,
		OutputDir:          "processed",
		RecordBackend:      RecordsMemory,
		ScratchRoot:        filepath.Join(os.TempDir(), "gemini-watermark-remover"),
		AllowedOrigins:     []string{"*"},
		RateLimit:          0.5,
		RateBurst:          3,
		Port:               5000,
	}
}

// FromEnv builds a Config from Defaults overlaid with environment variables
// and the instruction list. It does not validate; call Validate once flags
// have been applied.
func FromEnv() (Config, error) {
	return FromLookup(os.Getenv)
}

// FromLookup is FromEnv with a caller-supplied getenv.
func FromLookup(getenv func(string) string) (Config, error) {
	cfg := Defaults()
	var errs []error

	if key, err := auth.LookupAPIKey(getenv); err == nil {
		cfg.APIKey = key
	}
	setString(&cfg.Model, getenv("GEMINI_MODEL"))

	errs = append(errs,
		setDuration(&cfg.AttemptDelay, "WATERMARK_ATTEMPT_DELAY", getenv),
		setDuration(&cfg.UploadPollInterval, "WATERMARK_UPLOAD_POLL_INTERVAL", getenv),
		setDuration(&cfg.UploadTimeout, "WATERMARK_UPLOAD_TIMEOUT", getenv),
		setInt64(&cfg.MaxUploadBytes, "WATERMARK_MAX_UPLOAD_BYTES", getenv),
		setInt(&cfg.MaxDimension, "WATERMARK_MAX_DIMENSION", getenv),
		setInt(&cfg.MaxPixels, "WATERMARK_MAX_PIXELS", getenv),
		setFloat(&cfg.RateLimit, "WATERMARK_RATE_LIMIT", getenv),
		setInt(&cfg.RateBurst, "WATERMARK_RATE_BURST", getenv),
		setInt(&cfg.Port, "PORT", getenv),
	)

	setString(&cfg.ForceFormat, getenv("WATERMARK_FORCE_FORMAT"))
	setString(&cfg.DefaultExtension, getenv("WATERMARK_DEFAULT_EXT"))
	setString(&cfg.ArtifactBackend, getenv("WATERMARK_ARTIFACT_BACKEND"))
	setString(&cfg.OutputDir, getenv("WATERMARK_OUTPUT_DIR"))
	setString(&cfg.S3Bucket, getenv("WATERMARK_S3_BUCKET"))
	setString(&cfg.S3Prefix, getenv("WATERMARK_S3_PREFIX"))
	setString(&cfg.RecordBackend, getenv("WATERMARK_RECORD_BACKEND"))
	setString(&cfg.DynamoTable, getenv("WATERMARK_DYNAMO_TABLE"))
	setString(&cfg.RedisURL, getenv("WATERMARK_REDIS_URL"))
	setString(&cfg.ScratchRoot, getenv("WATERMARK_SCRATCH_DIR"))
	if v := getenv("WATERMARK_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	prompts, err := LoadPrompts(getenv("WATERMARK_PROMPTS_FILE"))
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SystemInstruction = prompts.System
		cfg.Prompts = prompts.Instructions
	}

	return cfg, errors.Join(errs...)
}

// Validate fails fast on anything that would only surface mid-request.
func (c Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, &auth.ValidationError{
			Type:    auth.ErrTypeNoKey,
			Message: fmt.Sprintf("%s is required", auth.APIKeyEnv),
		})
	}
	if len(c.Prompts) == 0 {
		errs = append(errs, errors.New("at least one removal instruction is required"))
	}
	if c.Model == "" {
		errs = append(errs, errors.New("model name is required"))
	}
	if c.AttemptDelay < 0 {
		errs = append(errs, errors.New("attempt delay must not be negative"))
	}
	if c.UploadPollInterval <= 0 || c.UploadTimeout <= 0 {
		errs = append(errs, errors.New("upload poll interval and timeout must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}
	switch c.ForceFormat {
	case "", "png", "jpeg":
	default:
		errs = append(errs, fmt.Errorf("unsupported force format %q (want png or jpeg)", c.ForceFormat))
	}
	if !strings.HasPrefix(c.DefaultExtension, ".") {
		errs = append(errs, fmt.Errorf("default extension %q must start with a dot", c.DefaultExtension))
	}
	switch c.ArtifactBackend {
	case ArtifactLocal:
		if c.OutputDir == "" {
			errs = append(errs, errors.New("output directory is required for the local artifact backend"))
		}
	case ArtifactS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("WATERMARK_S3_BUCKET is required for the s3 artifact backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown artifact backend %q", c.ArtifactBackend))
	}
	switch c.RecordBackend {
	case RecordsMemory, RecordsNone:
	case RecordsDynamo:
		if c.DynamoTable == "" {
			errs = append(errs, errors.New("WATERMARK_DYNAMO_TABLE is required for the dynamodb record backend"))
		}
	case RecordsRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("WATERMARK_REDIS_URL is required for the redis record backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown record backend %q", c.RecordBackend))
	}
	return errors.Join(errs...)
}

// IntakeOptions returns the image validation settings.
func (c Config) IntakeOptions() intake.Options {
	return intake.Options{
		MaxPixels:    c.MaxPixels,
		MaxDimension: c.MaxDimension,
		ForceFormat:  c.ForceFormat,
	}
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, name string, getenv func(string) string) error {
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, name string, getenv func(string) string) error {
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, name string, getenv func(string) string) error {
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, name string, getenv func(string) string) error {
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = f
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
