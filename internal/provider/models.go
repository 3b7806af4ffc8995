// Package provider fetches card statistics from the external game record API.
package provider

import (
	"fmt"
	"time"
)

// ResourceKind names one of the payloads a report is built from.
type ResourceKind string

const (
	ResourceBasicInfo         ResourceKind = "basicInfo"
	ResourceCharacterCardList ResourceKind = "characterCardList"
	ResourceActionCardList    ResourceKind = "actionCardList"
)

// ResourceKinds lists every kind in fetch order.
var ResourceKinds = []ResourceKind{
	ResourceBasicInfo,
	ResourceCharacterCardList,
	ResourceActionCardList,
}

// Path returns the endpoint path serving the resource.
func (k ResourceKind) Path() (string, error) {
	switch k {
	case ResourceBasicInfo:
		return "/gcg/basicInfo", nil
	case ResourceCharacterCardList:
		return "/gcg/avatarCardList", nil
	case ResourceActionCardList:
		return "/gcg/actionCardList", nil
	default:
		return "", fmt.Errorf("unknown resource kind %q", string(k))
	}
}

// ClientStats tracks provider client statistics.
type ClientStats struct {
	TotalRequests     int           `json:"total_requests"`
	FailedRequests    int           `json:"failed_requests"`
	AbsentResponses   int           `json:"absent_responses"`
	AverageLatency    time.Duration `json:"average_latency"`
	LastRequestTime   time.Time     `json:"last_request_time"`
	LastSuccessTime   time.Time     `json:"last_success_time"`
	LastFailureTime   time.Time     `json:"last_failure_time"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
}

// Error types for the provider API.
const (
	ErrRateLimited   = "rate_limited"
	ErrUnavailable   = "unavailable"
	ErrInvalidParams = "invalid_params"
	ErrParseError    = "parse_error"
)

// APIError represents a transport or protocol failure talking to the provider.
type APIError struct {
	Type       string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}
