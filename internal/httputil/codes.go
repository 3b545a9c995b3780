package httputil

// Machine-readable error codes returned alongside the message.
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"

	CodeMissingAuth       = "MISSING_AUTH"
	CodeInvalidAuthHeader = "INVALID_AUTH_HEADER"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeForbidden         = "FORBIDDEN"

	CodeUserExists         = "USER_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidResetToken  = "INVALID_RESET_TOKEN"
	CodePasswordTooShort   = "PASSWORD_TOO_SHORT"

	CodeUserNotFound     = "USER_NOT_FOUND"
	CodeRabbiNotFound    = "RABBI_NOT_FOUND"
	CodeShiurNotFound    = "SHIUR_NOT_FOUND"
	CodeNoteTooLong      = "NOTE_TOO_LONG"
	CodeInvalidSelection = "INVALID_SELECTION"

	CodeUnsupported   = "UNSUPPORTED"
	CodeUpstreamError = "UPSTREAM_ERROR"
)
