package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// ReportMetrics tracks report generation latency and outcomes.
type ReportMetrics struct {
	FetchLatency    *Histogram
	RenderLatency   *Histogram
	EndToEndLatency *Histogram

	ReportsStarted   atomic.Uint64
	DeltaReports     atomic.Uint64
	FullReports      atomic.Uint64
	Unavailable      atomic.Uint64
	NoCards          atomic.Uint64
	EmptyCardLists   atomic.Uint64
	Regressions      atomic.Uint64
	Failures         atomic.Uint64
	ProviderRequests atomic.Uint64
	ProviderErrors   atomic.Uint64

	startTime time.Time
	mu        sync.RWMutex
}

// NewReportMetrics creates a new metrics collector.
func NewReportMetrics() *ReportMetrics {
	return &ReportMetrics{
		FetchLatency:    NewHistogram(DefaultHistogramSize),
		RenderLatency:   NewHistogram(DefaultHistogramSize),
		EndToEndLatency: NewHistogram(DefaultHistogramSize),
		startTime:       time.Now(),
	}
}

// ReportStats is a point-in-time view of ReportMetrics.
type ReportStats struct {
	FetchLatency    LatencyStats `json:"fetch_latency"`
	RenderLatency   LatencyStats `json:"render_latency"`
	EndToEndLatency LatencyStats `json:"end_to_end_latency"`

	ReportsStarted   uint64  `json:"reports_started"`
	DeltaReports     uint64  `json:"delta_reports"`
	FullReports      uint64  `json:"full_reports"`
	Unavailable      uint64  `json:"unavailable"`
	NoCards          uint64  `json:"no_cards"`
	EmptyCardLists   uint64  `json:"empty_card_lists"`
	Regressions      uint64  `json:"regressions"`
	Failures         uint64  `json:"failures"`
	ProviderRequests uint64  `json:"provider_requests"`
	ProviderErrors   uint64  `json:"provider_errors"`
	ProviderSuccess  float64 `json:"provider_success_rate"` // percentage

	Uptime string `json:"uptime"`
}

// GetStats returns a snapshot of the current statistics.
func (m *ReportMetrics) GetStats() *ReportStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	requests := m.ProviderRequests.Load()
	errs := m.ProviderErrors.Load()
	success := 0.0
	if requests > 0 && errs <= requests {
		success = float64(requests-errs) / float64(requests) * 100
	}

	return &ReportStats{
		FetchLatency:     m.FetchLatency.Stats(),
		RenderLatency:    m.RenderLatency.Stats(),
		EndToEndLatency:  m.EndToEndLatency.Stats(),
		ReportsStarted:   m.ReportsStarted.Load(),
		DeltaReports:     m.DeltaReports.Load(),
		FullReports:      m.FullReports.Load(),
		Unavailable:      m.Unavailable.Load(),
		NoCards:          m.NoCards.Load(),
		EmptyCardLists:   m.EmptyCardLists.Load(),
		Regressions:      m.Regressions.Load(),
		Failures:         m.Failures.Load(),
		ProviderRequests: requests,
		ProviderErrors:   errs,
		ProviderSuccess:  success,
		Uptime:           time.Since(m.startTime).Round(time.Second).String(),
	}
}

// Reset clears all metrics.
func (m *ReportMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchLatency.Reset()
	m.RenderLatency.Reset()
	m.EndToEndLatency.Reset()

	for _, c := range []*atomic.Uint64{
		&m.ReportsStarted, &m.DeltaReports, &m.FullReports,
		&m.Unavailable, &m.NoCards, &m.EmptyCardLists,
		&m.Regressions, &m.Failures,
		&m.ProviderRequests, &m.ProviderErrors,
	} {
		c.Store(0)
	}

	m.startTime = time.Now()
}
