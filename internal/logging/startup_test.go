package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestStartupLoggerEvent(t *testing.T) {
	var buf bytes.Buffer
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	NewStartupLogger("watermark-web").
		CommitHash("abc1234").
		Storage("artifacts", "/srv/processed").
		Feature("rateLimit", true).
		Config("model", "gemini-2.5-flash-image").
		Prompts(4).
		InitDuration(150 * time.Millisecond).
		Log()

	var evt struct {
		Message string `json:"message"`
		Process struct {
			Name       string `json:"name"`
			CommitHash string `json:"commitHash"`
		} `json:"process"`
		Storage  map[string]string `json:"storage"`
		Features map[string]bool   `json:"features"`
		Config   map[string]string `json:"config"`
		Prompts  int               `json:"prompts"`
	}
	if err := json.Unmarshal(buf.Bytes(), &evt); err != nil {
		t.Fatalf("decode startup event %q: %v", buf.String(), err)
	}
	if evt.Message != "Startup complete" {
		t.Errorf("message = %q", evt.Message)
	}
	if evt.Process.Name != "watermark-web" || evt.Process.CommitHash != "abc1234" {
		t.Errorf("process = %+v", evt.Process)
	}
	if evt.Storage["artifacts"] != "/srv/processed" {
		t.Errorf("storage = %v", evt.Storage)
	}
	if !evt.Features["rateLimit"] {
		t.Errorf("features = %v", evt.Features)
	}
	if evt.Config["model"] != "gemini-2.5-flash-image" {
		t.Errorf("config = %v", evt.Config)
	}
	if evt.Prompts != 4 {
		t.Errorf("prompts = %d, want 4", evt.Prompts)
	}
}
