package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultMaxBodyBytes int64 = 5 << 20

// requestError is a client error with its HTTP status.
type requestError struct {
	status int
	msg    string
	cause  error
}

func (e *requestError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %v", e.msg, e.cause)
}

func (e *requestError) Unwrap() error { return e.cause }

func badRequest(msg string, cause error) *requestError {
	return &requestError{status: http.StatusBadRequest, msg: msg, cause: cause}
}

// pdfRequest is the POST /pdf body.
type pdfRequest struct {
	HTML    string      `json:"html"`
	Options *pdfOptions `json:"options,omitempty"`
}

type pdfOptions struct {
	Download *bool `json:"download,omitempty"`
}

// download reports whether the PDF is returned inline. Only an explicit
// false stores it instead.
func (p pdfRequest) download() bool {
	return p.Options == nil || p.Options.Download == nil || *p.Options.Download
}

// decodePDFRequest reads, validates and decodes a generation request.
// The returned HTML is the base64-decoded document.
func (s *Server) decodePDFRequest(w http.ResponseWriter, r *http.Request) (pdfRequest, string, error) {
	var req pdfRequest

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, "", &requestError{status: http.StatusRequestEntityTooLarge, msg: msgBodyTooLarge, cause: err}
		}
		return req, "", badRequest(msgInvalidJSON, err)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return req, "", badRequest(msgInvalidJSON, err)
	}
	if !hasHTML(doc) {
		return req, "", badRequest(msgHTMLRequired, nil)
	}
	if err := s.schema.Validate(doc); err != nil {
		return req, "", badRequest(msgInvalidRequest, err)
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, "", badRequest(msgInvalidRequest, err)
	}

	html, err := decodeBase64HTML(req.HTML)
	if err != nil {
		return req, "", badRequest(msgInvalidBase64, err)
	}
	return req, html, nil
}

// hasHTML reports whether doc is an object with a non-empty html member.
// A non-string html is left for schema validation to reject.
func hasHTML(doc any) bool {
	obj, ok := doc.(map[string]any)
	if !ok {
		return false
	}
	switch v := obj["html"].(type) {
	case nil:
		return false
	case string:
		return v != ""
	default:
		return true
	}
}

// decodeBase64HTML decodes standard base64, tolerating embedded whitespace
// and missing padding.
func decodeBase64HTML(s string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			return -1
		}
		return r
	}, s)

	if b, err := base64.StdEncoding.DecodeString(cleaned); err == nil {
		return string(b), nil
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
