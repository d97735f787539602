package main

import (
	"testing"

	"github.com/fpang/gemini-watermark-remover/internal/config"
)

func TestLambdaDefaults(t *testing.T) {
	tests := []struct {
		name        string
		table       string
		wantRecords string
	}{
		{"with table", "watermark-requests", config.RecordsDynamo},
		{"without table", "", config.RecordsNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.DynamoTable = tt.table
			lambdaDefaults(&cfg)
			if cfg.ArtifactBackend != config.ArtifactS3 {
				t.Errorf("ArtifactBackend = %q, want %q", cfg.ArtifactBackend, config.ArtifactS3)
			}
			if cfg.RecordBackend != tt.wantRecords {
				t.Errorf("RecordBackend = %q, want %q", cfg.RecordBackend, tt.wantRecords)
			}
		})
	}
}
