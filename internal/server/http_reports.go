package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/alfredjeanlab/podium/internal/report"
)

// handleContractReport handles GET /v1/reports/contracts.xlsx. It accepts the
// same filters as GET /v1/contracts but returns every matching row.
func (s *Server) handleContractReport(w http.ResponseWriter, r *http.Request) {
	filter := parseContractFilter(r)
	filter.Limit, filter.Offset = 0, 0
	contracts, _, err := s.svc.ListContracts(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteContracts(&buf, contracts); err != nil {
		s.writeServiceError(w, r, fmt.Errorf("build report: %w", err))
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="contracts.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
