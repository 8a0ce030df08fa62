package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alnah/vulcan"
	"github.com/alnah/vulcan/internal/logging"
)

const storedMessage = "PDF generated and stored successfully"

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		Service:   ServiceName,
		Version:   s.version,
	})
}

// handleGetFile serves a stored PDF by its canonical filename.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r, s.logger)
	name := r.PathValue("filename")

	data, err := s.store.Read(name)
	if err != nil {
		switch {
		case errors.Is(err, vulcan.ErrInvalidFilename):
			logger.Warn("Invalid filename rejected", "filename", name)
			writeError(w, http.StatusBadRequest, msgInvalidFilename)
		case errors.Is(err, vulcan.ErrAccessDenied):
			logger.Warn("Path traversal attempt blocked", "filename", name)
			writeError(w, http.StatusForbidden, msgAccessDenied)
		case errors.Is(err, vulcan.ErrFileNotFound):
			logger.Info("File not found", "filename", name)
			writeError(w, http.StatusNotFound, msgFileNotFound)
		default:
			logger.Error("Failed to read stored PDF", "filename", name, logging.KeyError, err)
			writeError(w, http.StatusNotFound, msgFileNotFound)
		}
		return
	}

	logger.Info("Serving PDF file", "filename", name, "size", len(data))
	writePDF(w, data, "")
}

// handlePostPDF renders a base64-encoded HTML document, then either streams
// it back or stores it and returns its download URL.
func (s *Server) handlePostPDF(w http.ResponseWriter, r *http.Request) {
	start := s.now()
	ctx := r.Context()
	id := RequestID(ctx)
	logger := requestLogger(r, s.logger)

	logger.Info("PDF generation request started",
		"contentLength", r.ContentLength,
		"userAgent", r.UserAgent(),
	)

	req, html, err := s.decodePDFRequest(w, r)
	if err != nil {
		var rerr *requestError
		if !errors.As(err, &rerr) {
			rerr = badRequest(msgInvalidJSON, err)
		}
		logger.Warn("Rejected PDF generation request", "status", rerr.status, "reason", rerr.msg, logging.KeyError, err)
		writeError(w, rerr.status, rerr.msg)
		return
	}

	filename := vulcan.FilenameFor(id)
	job := vulcan.RenderJob{HTML: html, RequestID: id}
	if !req.download() {
		job.Destination = &vulcan.Destination{Storage: s.store, Filename: filename}
	}

	logger.Info("Starting PDF rendering", "htmlLength", len(html), "download", req.download())

	pdf, err := s.renderer.Render(ctx, job)
	if err != nil {
		s.renderFailed(w, r, err, start)
		return
	}

	if req.download() {
		logger.Info("PDF served as download", "size", len(pdf), "durationMs", s.since(start))
		writePDF(w, pdf, filename)
		return
	}

	url := s.baseURL + "/" + filename
	logger.Info("PDF generated and stored",
		"filename", filename,
		"downloadUrl", url,
		"size", len(pdf),
		"durationMs", s.since(start),
	)
	writeJSON(w, http.StatusOK, storedResponse{
		Success:     true,
		Filename:    filename,
		DownloadURL: url,
		Message:     storedMessage,
	})
}

func (s *Server) renderFailed(w http.ResponseWriter, r *http.Request, err error, start time.Time) {
	logger := requestLogger(r, s.logger)

	if errors.Is(err, vulcan.ErrEmptyHTML) {
		logger.Warn("Missing HTML content in request")
		writeError(w, http.StatusBadRequest, msgHTMLRequired)
		return
	}
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		logger.Warn("Client disconnected during PDF generation", "durationMs", s.since(start))
		writeError(w, http.StatusInternalServerError, msgRenderFailed)
		return
	}

	logger.Error("PDF generation failed",
		logging.KeyError, err,
		"timeout", errors.Is(err, context.DeadlineExceeded),
		"durationMs", s.since(start),
	)
	writeError(w, http.StatusInternalServerError, msgRenderFailed)
}

// writePDF writes raw PDF bytes. A non-empty filename marks the response as
// an attachment.
func writePDF(w http.ResponseWriter, data []byte, filename string) {
	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("X-Content-Type-Options", "nosniff")
	if filename != "" {
		h.Set("Content-Disposition", "attachment; filename="+filename)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
