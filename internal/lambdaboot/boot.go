// Package lambdaboot holds the Lambda cold-start bootstrap: AWS config, the
// Gemini key from SSM Parameter Store, and the S3 and DynamoDB backed stores.
package lambdaboot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-watermark-remover/internal/artifact"
	"github.com/fpang/gemini-watermark-remover/internal/auth"
	"github.com/fpang/gemini-watermark-remover/internal/logging"
	"github.com/fpang/gemini-watermark-remover/internal/store"
)

// DefaultAPIKeyParam is read when SSM_API_KEY_PARAM is unset.
const DefaultAPIKeyParam = "/gemini-watermark-remover/prod/gemini-api-key"

// AWSClients holds the core AWS SDK clients.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config. Fatals on error.
func InitAWS(ctx context.Context) AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// ParameterAPI is the subset of *ssm.Client used to read the key.
type ParameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadGeminiKey returns GEMINI_API_KEY, fetching it from SSM Parameter Store
// (SSM_API_KEY_PARAM, else DefaultAPIKeyParam) when the variable is unset.
// A fetched key is exported to the environment for the config loader.
func LoadGeminiKey(ctx context.Context, client ParameterAPI) (string, error) {
	if key, err := auth.GetAPIKey(); err == nil {
		return key, nil
	}
	paramName := logging.EnvOrDefault("SSM_API_KEY_PARAM", DefaultAPIKeyParam)

	ssmStart := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read API key from SSM %s: %w", paramName, err)
	}
	if result.Parameter == nil || aws.ToString(result.Parameter.Value) == "" {
		return "", errors.New("SSM parameter " + paramName + " is empty")
	}
	key := aws.ToString(result.Parameter.Value)
	if err := os.Setenv(auth.APIKeyEnv, key); err != nil {
		return "", fmt.Errorf("export %s: %w", auth.APIKeyEnv, err)
	}
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Gemini API key loaded from SSM")
	return key, nil
}

// NewArtifactStore returns an S3 artifact store for bucket/prefix.
func NewArtifactStore(cfg aws.Config, bucket, prefix string) *artifact.S3Store {
	return artifact.NewS3Store(s3.NewFromConfig(cfg), bucket, prefix)
}

// NewRecordStore returns a DynamoDB request record store for table.
func NewRecordStore(cfg aws.Config, table string) *store.DynamoStore {
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), table)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
