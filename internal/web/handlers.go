package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/machinelog/internal/logging"
	"github.com/JonMunkholm/machinelog/internal/report"
)

// SuccessResponse wraps a successful reply.
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// handleStatus serves the health probe together with the enumerations the
// operator form needs.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}

// handleSubmit ingests one operator submission.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Submission.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ack, err := s.service.ApplyJSON(withRequestMetadata(r.Context(), r), body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{
		Status:  "success",
		Message: ack.Message,
		Data:    ack,
	})
}

// handleSummary returns the computed summary without touching the store.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.service.ComputeSummary(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleRebuildSummary recomputes the summary and rewrites the summary sheet.
func (s *Server) handleRebuildSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.service.RebuildSummary(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("summary rebuilt on request", "sheets", len(sum.Sheets))
	writeJSON(w, http.StatusOK, SuccessResponse{
		Status:  "success",
		Message: fmt.Sprintf("Summary rebuilt from %d daily sheets", len(sum.Sheets)),
		Data:    sum,
	})
}

// handleSummaryExport streams the summary as an .xlsx download.
func (s *Server) handleSummaryExport(w http.ResponseWriter, r *http.Request) {
	sum, err := s.service.ComputeSummary(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// Render fully first so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := report.WriteSummaryXLSX(&buf, sum); err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := "machine_summary_" + sum.GeneratedAt.Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("summary export write failed", "error", err)
	}
}
