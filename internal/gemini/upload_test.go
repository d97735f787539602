package gemini

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"
)

// filesAPI is an in-process stand-in for the Gemini Files API. The upload
// reports initial; each GET returns the next entry of polls, repeating the
// last one.
type filesAPI struct {
	initial genai.FileState
	polls   []genai.FileState

	mu      sync.Mutex
	gets    int
	deletes []string
}

func (f *filesAPI) handler(t *testing.T, srvURL func() string) http.Handler {
	file := func(state genai.FileState) map[string]any {
		return map[string]any{
			"name":     "files/abc123",
			"uri":      srvURL() + "/v1beta/files/abc123",
			"mimeType": "image/png",
			"state":    string(state),
		}
	}
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload/v1beta/files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Goog-Upload-Command") != "start" {
			t.Errorf("upload start command = %q", r.Header.Get("X-Goog-Upload-Command"))
		}
		w.Header().Set("X-Goog-Upload-Url", srvURL()+"/upload-session")
		writeJSON(w, map[string]any{})
	})
	mux.HandleFunc("POST /upload-session", func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("X-Goog-Upload-Command"), "finalize") {
			t.Errorf("upload command = %q, want finalize", r.Header.Get("X-Goog-Upload-Command"))
		}
		w.Header().Set("X-Goog-Upload-Status", "final")
		writeJSON(w, map[string]any{"file": file(f.initial)})
	})
	mux.HandleFunc("GET /v1beta/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		state := f.polls[min(f.gets, len(f.polls)-1)]
		f.gets++
		f.mu.Unlock()
		writeJSON(w, file(state))
	})
	mux.HandleFunc("DELETE /v1beta/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deletes = append(f.deletes, r.PathValue("id"))
		f.mu.Unlock()
		writeJSON(w, map[string]any{})
	})
	return mux
}

func (f *filesAPI) counts() (gets int, deletes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets, append([]string(nil), f.deletes...)
}

func newTestService(t *testing.T, api *filesAPI, opts Options) *Service {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(api.handler(t, func() string { return srv.URL }))
	t.Cleanup(srv.Close)

	client, err := genai.NewClient(t.Context(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	})
	if err != nil {
		t.Fatalf("genai.NewClient: %v", err)
	}
	return NewService(client, opts)
}

func TestUploadPollsUntilActive(t *testing.T) {
	api := &filesAPI{
		initial: genai.FileStateProcessing,
		polls:   []genai.FileState{genai.FileStateProcessing, genai.FileStateActive},
	}
	svc := newTestService(t, api, Options{UploadPollInterval: time.Millisecond, UploadTimeout: 5 * time.Second})

	file, err := svc.Upload(t.Context(), []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if file.Name != "files/abc123" || file.MIMEType != "image/png" {
		t.Errorf("file = %+v", file)
	}
	gets, deletes := api.counts()
	if gets != 2 {
		t.Errorf("polls = %d, want 2", gets)
	}
	if len(deletes) != 0 {
		t.Errorf("deleted %v after a successful upload", deletes)
	}
}

func TestUploadActiveImmediatelySkipsPolling(t *testing.T) {
	api := &filesAPI{initial: genai.FileStateActive, polls: []genai.FileState{genai.FileStateActive}}
	svc := newTestService(t, api, Options{UploadPollInterval: time.Millisecond, UploadTimeout: time.Second})

	if _, err := svc.Upload(t.Context(), []byte("png-bytes"), "image/png"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gets, _ := api.counts(); gets != 0 {
		t.Errorf("polls = %d, want 0", gets)
	}
}

func TestUploadFailuresDeleteRemoteFile(t *testing.T) {
	tests := []struct {
		name    string
		polls   []genai.FileState
		timeout time.Duration
		wantErr string
	}{
		{"stays processing", []genai.FileState{genai.FileStateProcessing}, 30 * time.Millisecond, "timeout"},
		{"processing fails", []genai.FileState{genai.FileStateFailed}, 5 * time.Second, "processing failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &filesAPI{initial: genai.FileStateProcessing, polls: tt.polls}
			svc := newTestService(t, api, Options{UploadPollInterval: 5 * time.Millisecond, UploadTimeout: tt.timeout})

			start := time.Now()
			_, err := svc.Upload(t.Context(), []byte("png-bytes"), "image/png")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Upload() error = %v, want %q", err, tt.wantErr)
			}
			if elapsed := time.Since(start); elapsed > 3*time.Second {
				t.Errorf("Upload took %v", elapsed)
			}
			_, deletes := api.counts()
			if len(deletes) != 1 || deletes[0] != "abc123" {
				t.Errorf("deletes = %v, want [abc123]", deletes)
			}
		})
	}
}
