package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ramonehamilton/GCG-Companion/internal/api/response"
	"github.com/ramonehamilton/GCG-Companion/internal/gcg/models"
	"github.com/ramonehamilton/GCG-Companion/internal/logger"
	"github.com/ramonehamilton/GCG-Companion/internal/report"
	"github.com/ramonehamilton/GCG-Companion/internal/stats"
)

// ReportService generates reports and renders full-report images.
type ReportService interface {
	GetReport(ctx context.Context, user models.UserContext) (*report.Report, error)
	RenderAll(ctx context.Context, rep *report.Report) ([][]byte, error)
}

// ReportHandler handles report API requests.
type ReportHandler struct {
	service ReportService
	log     *logger.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(service ReportService, log *logger.Logger) *ReportHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ReportHandler{service: service, log: log}
}

// ReportRequest is the body of a report request.
type ReportRequest struct {
	UID    string `json:"uid"`
	Server string `json:"server,omitempty"`
	Cookie string `json:"cookie,omitempty"`

	// SkipRender returns a full report without rendering its images.
	SkipRender bool `json:"skip_render,omitempty"`
}

// ReportResponse wraps a report and, for full reports, its rendered images.
type ReportResponse struct {
	Report *report.Report `json:"report"`
	Images [][]byte       `json:"images,omitempty"`
}

// GetReport generates a report for the requested player.
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body")
		return
	}
	req.UID = strings.TrimSpace(req.UID)
	if req.UID == "" {
		response.BadRequest(w, r, "uid is required")
		return
	}

	user := models.UserContext{UID: req.UID, Server: req.Server, Cookie: req.Cookie}
	rep, err := h.service.GetReport(r.Context(), user)
	if err != nil {
		h.writeError(w, r, req.UID, err)
		return
	}

	resp := ReportResponse{Report: rep}
	if rep.Status == report.StatusOK && rep.Mode == report.ModeFull && !req.SkipRender {
		images, err := h.service.RenderAll(r.Context(), rep)
		if err != nil {
			h.log.Error("render failed", "uid", req.UID, "error", err)
			response.InternalError(w, r, "failed to render report")
			return
		}
		resp.Images = images
	}

	response.Success(w, resp)
}

func (h *ReportHandler) writeError(w http.ResponseWriter, r *http.Request, uid string, err error) {
	switch {
	case stats.IsDataRegression(err):
		response.Fail(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		response.Fail(w, r, http.StatusGatewayTimeout, "report timed out")
	case errors.Is(err, context.Canceled):
		// Client went away.
		h.log.Debug("report cancelled", "uid", uid)
		response.Fail(w, r, http.StatusServiceUnavailable, "report cancelled")
	default:
		h.log.Error("report failed", "uid", uid, "error", err)
		response.InternalError(w, r, "failed to generate report")
	}
}
