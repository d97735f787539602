package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/fpang/gemini-watermark-remover/internal/artifact"
	"github.com/fpang/gemini-watermark-remover/internal/config"
	"github.com/fpang/gemini-watermark-remover/internal/store"
)

func TestReadPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"/tmp/photo.png\n", "/tmp/photo.png", false},
		{"\n\n  image.jpg  \nignored\n", "image.jpg", false},
		{"no-newline.webp", "no-newline.webp", false},
		{"", "", true},
		{"\n \n", "", true},
	}
	for _, tt := range tests {
		got, err := ReadPath(strings.NewReader(tt.in))
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ReadPath(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestOpenStoresLocal(t *testing.T) {
	cfg := config.Defaults()
	cfg.OutputDir = t.TempDir()

	s, err := OpenStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenStores() error = %v", err)
	}
	defer s.Close()
	if _, ok := s.Artifacts.(*artifact.LocalStore); !ok {
		t.Errorf("Artifacts = %T, want *artifact.LocalStore", s.Artifacts)
	}
	if _, ok := s.Records.(*store.MemoryStore); !ok {
		t.Errorf("Records = %T, want *store.MemoryStore", s.Records)
	}

	cfg.RecordBackend = config.RecordsNone
	s, err = OpenStores(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Records.(store.Nop); !ok {
		t.Errorf("Records = %T, want store.Nop", s.Records)
	}
}
