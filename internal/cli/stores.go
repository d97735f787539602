package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-watermark-remover/internal/artifact"
	"github.com/fpang/gemini-watermark-remover/internal/config"
	"github.com/fpang/gemini-watermark-remover/internal/lambdaboot"
	"github.com/fpang/gemini-watermark-remover/internal/store"
)

// Stores are the backends selected by the configuration.
type Stores struct {
	Artifacts artifact.Store
	Records   store.RequestStore
	// RecordLocation describes the record backend for the startup log.
	RecordLocation string

	closers []func() error
}

// Close releases backend connections.
func (s *Stores) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Failed to close store")
		}
	}
}

// OpenStores builds the artifact and record stores named by cfg. AWS
// configuration is only loaded when an AWS backend is selected.
func OpenStores(ctx context.Context, cfg config.Config) (*Stores, error) {
	s := &Stores{}
	var aws *lambdaboot.AWSClients
	awsClients := func() lambdaboot.AWSClients {
		if aws == nil {
			c := lambdaboot.InitAWS(ctx)
			aws = &c
		}
		return *aws
	}

	switch cfg.ArtifactBackend {
	case config.ArtifactS3:
		s.Artifacts = lambdaboot.NewArtifactStore(awsClients().Config, cfg.S3Bucket, cfg.S3Prefix)
	default:
		local, err := artifact.NewLocalStore(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		s.Artifacts = local
	}

	switch cfg.RecordBackend {
	case config.RecordsDynamo:
		s.Records = lambdaboot.NewRecordStore(awsClients().Config, cfg.DynamoTable)
		s.RecordLocation = "dynamodb:" + cfg.DynamoTable
	case config.RecordsRedis:
		rs, client, err := store.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("open redis record store: %w", err)
		}
		s.Records = rs
		s.RecordLocation = "redis"
		s.closers = append(s.closers, client.Close)
	case config.RecordsNone:
		s.Records = store.Nop{}
		s.RecordLocation = "disabled"
	default:
		s.Records = store.NewMemoryStore()
		s.RecordLocation = "memory"
	}
	return s, nil
}
