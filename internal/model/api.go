package model

import (
	"fmt"
	"time"
)

// Standard error codes returned in the error envelope.
const (
	ErrCodeInvalidInput       = "invalid_input"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeNotFound           = "not_found"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeRemoteUnavailable  = "remote_unavailable"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeInternal           = "internal_error"
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail carries a machine-readable code and a human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta is attached to every response for request correlation.
type ResponseMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncManyRequest is the request body for POST /v1/results/sync.
type SyncManyRequest struct {
	OperationIDs []string `json:"operation_ids"`
}

// SyncOutcome is the per-item result of a batch sync. One failing item never
// aborts the batch; each id gets exactly one outcome.
type SyncOutcome struct {
	OperationID string `json:"operation_id"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// SyncSummary aggregates a batch or auto sync.
type SyncSummary struct {
	Synced   int           `json:"synced"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Outcomes []SyncOutcome `json:"outcomes,omitempty"`
}

// MaxOperationIDLen bounds remote operation ids before they reach SQL or
// outbound request paths.
const MaxOperationIDLen = 128

// MaxSyncBatchSize bounds how many operation ids a single SyncMany accepts.
const MaxSyncBatchSize = 100

// ValidateOperationID checks that an operation id is non-empty, bounded, and
// printable ASCII without path separators (ids are interpolated into remote
// URL paths).
func ValidateOperationID(id string) error {
	if id == "" {
		return fmt.Errorf("operation_id is required")
	}
	if len(id) > MaxOperationIDLen {
		return fmt.Errorf("operation_id exceeds maximum length of %d characters", MaxOperationIDLen)
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == ':':
		default:
			return fmt.Errorf("operation_id contains invalid character %q", c)
		}
	}
	return nil
}
