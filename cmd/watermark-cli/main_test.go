package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/fpang/gemini-watermark-remover/internal/artifact"
	"github.com/fpang/gemini-watermark-remover/internal/config"
	"github.com/fpang/gemini-watermark-remover/internal/intake"
	"github.com/fpang/gemini-watermark-remover/internal/watermark"
)

func TestExitCode(t *testing.T) {
	_, inputErr := intake.Validate(filepath.Join(t.TempDir(), "missing.png"), intake.Options{})
	if inputErr == nil {
		t.Fatal("expected an input error for a missing file")
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"input", inputErr, exitInput},
		{"exhausted", &watermark.ExhaustedError{}, exitExhausted},
		{"wrapped exhausted", fmt.Errorf("run: %w", &watermark.ExhaustedError{}), exitExhausted},
		{"quota", &watermark.QuotaError{Err: errors.New("429 RESOURCE_EXHAUSTED")}, exitQuota},
		{"other", errors.New("connection reset"), exitOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestResolvePathPrefersArgument(t *testing.T) {
	got, err := resolvePath([]string{"photo.png"})
	if err != nil {
		t.Fatalf("resolvePath: %v", err)
	}
	if got != "photo.png" {
		t.Errorf("resolvePath = %q, want photo.png", got)
	}
}

type scriptedRemover struct {
	results []*watermark.Result
	errs    []error
	calls   int
}

func (r *scriptedRemover) Remove(ctx context.Context, img *intake.Image) (*watermark.Result, error) {
	i := r.calls
	r.calls++
	return r.results[i], r.errs[i]
}

func useRemover(t *testing.T, r imageRemover) {
	t.Helper()
	prev := newRemover
	newRemover = func(context.Context, config.Config) (imageRemover, error) { return r, nil }
	t.Cleanup(func() { newRemover = prev })
}

func writeInput(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// runOnce executes runMain with a fresh command writing into outDir and
// returns what it printed on stdout.
func runOnce(t *testing.T, outDir, input string) (string, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "watermark-cli"}
	registerFlags(cmd)
	if err := cmd.Flags().Set("output-dir", outDir); err != nil {
		t.Fatal(err)
	}
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	err := runMain(cmd, []string{input})
	return strings.TrimSpace(stdout.String()), err
}

func TestRunWritesUniqueArtifactPerRun(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("WATERMARK_PROMPTS_FILE", "")
	outDir := t.TempDir()
	input := writeInput(t)

	remover := &scriptedRemover{
		results: []*watermark.Result{
			{Data: []byte("png-bytes"), MIMEType: "image/png", Attempt: watermark.Attempt{Index: 1}},
			{Data: []byte("jpeg-bytes"), MIMEType: "image/jpeg", Attempt: watermark.Attempt{Index: 2}},
			nil,
		},
		errs: []error{nil, nil, &watermark.ExhaustedError{}},
	}
	useRemover(t, remover)

	first, err := runOnce(t, outDir, input)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := runOnce(t, outDir, input)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first == second {
		t.Fatalf("both runs printed %q", first)
	}
	for path, want := range map[string]string{first: "png-bytes", second: "jpeg-bytes"} {
		if filepath.Dir(path) != outDir {
			t.Errorf("output %q not in %q", path, outDir)
		}
		if !strings.HasPrefix(filepath.Base(path), artifact.BaseName+"_") {
			t.Errorf("output %q lacks the per-run prefix", path)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	if filepath.Ext(second) != ".jpg" {
		t.Errorf("second output %q, want .jpg", second)
	}

	printed, err := runOnce(t, outDir, input)
	if exitCode(err) != exitExhausted {
		t.Fatalf("exhausted run: err = %v", err)
	}
	if printed != "" {
		t.Errorf("exhausted run printed %q", printed)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("output dir has %d files, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Name() == artifact.BaseName+".png" || e.Name() == artifact.BaseName+".jpg" {
			t.Errorf("fixed-name artifact %s written", e.Name())
		}
	}
}
