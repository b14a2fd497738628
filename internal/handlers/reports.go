package handlers

import (
	"net/http"

	"github.com/sallegelias/metaverso-erp/internal/services"
)

type ReportHandler struct {
	reports *services.ReportService
}

func NewReportHandler(reports *services.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// Dashboard shows record counts and the client-type distribution.
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.Dashboard(r.Context())
	if err != nil {
		fail(w, r, err, "/login")
		return
	}
	page(w, r, "dashboard.html", map[string]any{"Stats": stats}, stats)
}

// Sales shows totals per company profile and the top clients by volume.
func (h *ReportHandler) Sales(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Sales(r.Context())
	if err != nil {
		fail(w, r, err, "/dashboard")
		return
	}
	page(w, r, "reports.html", map[string]any{"Report": rep}, rep)
}
