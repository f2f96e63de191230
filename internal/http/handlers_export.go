package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"expenses/internal/log"
	"expenses/internal/report"
)

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.ExportRecords(r.Context())
	if err != nil {
		ServiceErrorResponse(r, err, "Error exporting expenses").Write(w)
		return
	}
	if len(records) == 0 {
		NotFoundError("No expenses to export").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, records); err != nil {
		ServiceErrorResponse(r, err, "Error exporting expenses").Write(w)
		return
	}
	s.logExport(r, "csv", len(records))
	writeAttachment(w, "text/csv; charset=utf-8", "expenses.csv", buf.Bytes())
}

// handleExportJSON writes a downloadable document rather than an envelope.
func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.ExportRecords(r.Context())
	if err != nil {
		ServiceErrorResponse(r, err, "Error exporting expenses").Write(w)
		return
	}

	body, err := json.MarshalIndent(report.NewDocument(records, time.Now()), "", "  ")
	if err != nil {
		ServiceErrorResponse(r, err, "Error exporting expenses").Write(w)
		return
	}
	s.logExport(r, "json", len(records))
	writeAttachment(w, "application/json; charset=utf-8", "expenses.json", body)
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.ExportRecords(r.Context())
	if err != nil {
		ServiceErrorResponse(r, err, "Error exporting expenses").Write(w)
		return
	}
	if len(records) == 0 {
		NotFoundError("No expenses to export").Write(w)
		return
	}

	body, err := report.BuildSummaryPDF(records, time.Now())
	if err != nil {
		ServiceErrorResponse(r, err, "Error exporting expenses").Write(w)
		return
	}
	s.logExport(r, "pdf", len(records))
	writeAttachment(w, "application/pdf", "expenses.pdf", body)
}

func (s *Server) logExport(r *http.Request, format string, n int) {
	log.FromContext(r.Context()).WithComponent(log.ComponentExport).InfoContext(r.Context(), "Exported expenses",
		log.FieldOperation, log.OpExport,
		"format", format,
		log.FieldCount, n)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
