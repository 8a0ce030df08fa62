package server

import (
	"encoding/json"
	"net/http"
)

// Client-facing error messages.
const (
	msgInvalidJSON     = "Invalid JSON body"
	msgHTMLRequired    = "HTML content is required"
	msgInvalidRequest  = "Invalid request body"
	msgInvalidBase64   = "Invalid base64 encoded HTML"
	msgBodyTooLarge    = "Request body too large"
	msgRenderFailed    = "Failed to generate PDF"
	msgInvalidFilename = "Invalid filename"
	msgAccessDenied    = "Access denied"
	msgFileNotFound    = "File not found"
	msgRateLimited     = "Too many requests"
	msgInternal        = "Internal server error"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version"`
}

type storedResponse struct {
	Success     bool   `json:"success"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"downloadUrl"`
	Message     string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
