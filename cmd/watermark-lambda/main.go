// Package main provides a Lambda entry point for the watermark removal API.
//
// It serves the same gateway as watermark-web behind API Gateway, keeping
// processed images in S3 and request records in DynamoDB. The Gemini key is
// read from SSM Parameter Store on cold start when GEMINI_API_KEY is unset.
//
// Endpoints:
//
//	POST /process              remove the watermark from a data URI image
//	GET  /download/{filename}  fetch a processed image
//	GET  /requests/{id}        request status record
//	GET  /health               health check
//	GET  /                     upload page
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"
	_ "go.uber.org/automaxprocs"

	"github.com/fpang/gemini-watermark-remover/internal/config"
	"github.com/fpang/gemini-watermark-remover/internal/gateway"
	"github.com/fpang/gemini-watermark-remover/internal/gemini"
	"github.com/fpang/gemini-watermark-remover/internal/lambdaboot"
	"github.com/fpang/gemini-watermark-remover/internal/logging"
	"github.com/fpang/gemini-watermark-remover/internal/store"
	"github.com/fpang/gemini-watermark-remover/internal/watermark"
)

// initServer runs once per execution environment, before the first event.
func initServer() *gateway.Server {
	initStart := time.Now()
	logging.InitWithFormat("json")
	ctx := context.Background()

	aws := lambdaboot.InitAWS(ctx)
	if _, err := lambdaboot.LoadGeminiKey(ctx, aws.SSM); err != nil {
		log.Fatal().Err(err).Msg("Failed to load Gemini API key")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	lambdaDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	client, err := gemini.NewClient(ctx, cfg.APIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
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
		log.Fatal().Err(err).Msg("Failed to create remover")
	}

	var records store.RequestStore = store.Nop{}
	recordLocation := "disabled"
	if cfg.RecordBackend == config.RecordsDynamo {
		records = lambdaboot.NewRecordStore(aws.Config, cfg.DynamoTable)
		recordLocation = "dynamodb:" + cfg.DynamoTable
	}
	artifacts := lambdaboot.NewArtifactStore(aws.Config, cfg.S3Bucket, cfg.S3Prefix)

	server, err := gateway.New(gateway.Options{
		Remover:          remover,
		Artifacts:        artifacts,
		Records:          records,
		Intake:           cfg.IntakeOptions(),
		ScratchRoot:      cfg.ScratchRoot,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		DefaultExtension: cfg.DefaultExtension,
		AllowedOrigins:   cfg.AllowedOrigins,
		// API Gateway throttles; the in-process limiter only sees one
		// concurrent request per execution environment.
		RateLimit: 0,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gateway")
	}

	lambdaboot.StartupLog("watermark-lambda", initStart).
		CommitHash(commitHash).
		Storage("artifacts", artifacts.Location()).
		Storage("records", recordLocation).
		Config("model", svc.Model()).
		Prompts(len(cfg.Prompts)).
		Log()
	return server
}

// lambdaDefaults forces S3 artifacts and keeps request records in DynamoDB
// when a table is configured. Memory records would not survive between
// execution environments.
func lambdaDefaults(cfg *config.Config) {
	cfg.ArtifactBackend = config.ArtifactS3
	if cfg.DynamoTable != "" {
		cfg.RecordBackend = config.RecordsDynamo
	} else {
		cfg.RecordBackend = config.RecordsNone
	}
}

func main() {
	adapter := httpadapter.NewV2(initServer().Handler())
	lambda.Start(adapter.ProxyWithContext)
}
