package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/fpang/gemini-watermark-remover/internal/config"
)

func TestApplyFlags(t *testing.T) {
	prompts := filepath.Join(t.TempDir(), "prompts.yaml")
	data := []byte("system: keep the photo intact\ninstructions:\n  - remove the mark\n  - erase the logo\n")
	if err := os.WriteFile(prompts, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := &cobra.Command{Use: "watermark-web"}
	registerFlags(cmd)
	flags := cmd.Flags()
	for name, value := range map[string]string{
		"port":       "9090",
		"model":      "gemini-3-pro-image-preview",
		"output-dir": "/srv/clean",
		"prompts":    prompts,
	} {
		if err := flags.Set(name, value); err != nil {
			t.Fatalf("set %s: %v", name, err)
		}
	}

	cfg := config.Defaults()
	if err := applyFlags(cmd, &cfg); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Model != "gemini-3-pro-image-preview" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.OutputDir != "/srv/clean" {
		t.Errorf("OutputDir = %q", cfg.OutputDir)
	}
	if cfg.SystemInstruction != "keep the photo intact" {
		t.Errorf("SystemInstruction = %q", cfg.SystemInstruction)
	}
	if len(cfg.Prompts) != 2 || cfg.Prompts[1] != "erase the logo" {
		t.Errorf("Prompts = %q", cfg.Prompts)
	}
}
