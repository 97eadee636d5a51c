package handlers

// Error codes carried in the "code" field of every error envelope. Clients
// branch on these; messages are for humans and may change.
const (
	// Request and routing problems.
	ErrCodeBadRequest       = "bad_request"
	ErrCodeInvalidTimer     = "invalid_timer"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Session and idempotency.
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeConflict     = "conflict"

	// Store failures, named after the operation.
	ErrCodeInternal     = "internal_error"
	ErrCodeCreateFailed = "create_failed"
	ErrCodeListFailed   = "list_failed"
	ErrCodeUpdateFailed = "update_failed"
	ErrCodeDeleteFailed = "delete_failed"
	ErrCodePurgeFailed  = "purge_failed"
)
