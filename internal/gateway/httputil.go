package gateway

import (
	"encoding/json"
	"net/http"
)

// Error kinds reported in the "kind" field of error responses.
const (
	kindBadRequest  = "bad_request"
	kindTooLarge    = "too_large"
	kindRateLimited = "rate_limited"
	kindQuota       = "quota"
	kindExhausted   = "exhausted"
	kindTransport   = "transport"
	kindInternal    = "internal"
	kindNotFound    = "not_found"
)

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
}

type processResponse struct {
	Success     bool   `json:"success"`
	RequestID   string `json:"requestId"`
	ImageData   string `json:"imageData"`
	OutputPath  string `json:"outputPath"`
	MIMEType    string `json:"mimeType"`
	Attempt     int    `json:"attempt"`
	Instruction string `json:"instruction"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func httpError(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, errorResponse{Error: message, Kind: kind})
}
