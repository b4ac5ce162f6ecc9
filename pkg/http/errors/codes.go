package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeMissingField   = "missing_field"

	// Generation errors
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeGenerationFailed   = "generation_failed"
	ErrCodeModelUnavailable   = "model_unavailable"
	ErrCodeModelError         = "model_error"
	ErrCodeEmptyResponse      = "empty_model_response"
	ErrCodeMalformedOutput    = "malformed_model_output"
	ErrCodeInvalidOutputShape = "invalid_model_output_shape"
	ErrCodePersistenceFailed  = "persistence_failed"

	// Infrastructure errors
	ErrCodeStorageUnavailable = "storage_unavailable"
	ErrCodeInternalError      = "internal_error"

	// Transport errors
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
