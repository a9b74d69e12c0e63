// Package handlers defines HTTP-layer error codes used across all endpoints.
// Codes are lowercase snake_case and stable: clients branch on them, the
// message text is free to change.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"
	ErrCodeExportFailed = "export_failed"

	ErrCodeMethodNotAllowed = "method_not_allowed"
)
