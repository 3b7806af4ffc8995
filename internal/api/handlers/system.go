package handlers

import (
	"net/http"

	"github.com/ramonehamilton/GCG-Companion/internal/api/response"
	"github.com/ramonehamilton/GCG-Companion/internal/metrics"
	"github.com/ramonehamilton/GCG-Companion/internal/provider"
	"github.com/ramonehamilton/GCG-Companion/internal/version"
)

// ProviderStats reports provider client counters.
type ProviderStats interface {
	GetStats() provider.ClientStats
}

// SystemHandler handles system-related API requests.
type SystemHandler struct {
	metrics  *metrics.ReportMetrics
	provider ProviderStats
}

// NewSystemHandler creates a new SystemHandler. Either argument may be nil.
func NewSystemHandler(m *metrics.ReportMetrics, p ProviderStats) *SystemHandler {
	return &SystemHandler{metrics: m, provider: p}
}

// GetVersion returns the application version.
func (h *SystemHandler) GetVersion(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{
		"version": version.GetVersion(),
		"service": version.ServiceName,
	})
}

// MetricsResponse combines report and provider statistics.
type MetricsResponse struct {
	Reports  *metrics.ReportStats  `json:"reports,omitempty"`
	Provider *provider.ClientStats `json:"provider,omitempty"`
}

// GetMetrics returns report and provider statistics.
func (h *SystemHandler) GetMetrics(w http.ResponseWriter, _ *http.Request) {
	var resp MetricsResponse
	if h.metrics != nil {
		resp.Reports = h.metrics.GetStats()
	}
	if h.provider != nil {
		st := h.provider.GetStats()
		resp.Provider = &st
	}
	response.Success(w, resp)
}
