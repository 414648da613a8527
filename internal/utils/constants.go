package utils

const (
	AppName    = "gofreight"
	AppVersion = "1.0.0"

	// Default values
	DefaultCurrency = "USD"
	DefaultTimeZone = "UTC"

	// File Upload
	MaxImportFileSize = 10 * 1024 * 1024 // 10MB
)

// Response status
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Common error messages
const (
	ErrValidationFailed = "Validation failed"
	ErrInternalServer   = "Internal server error"
	ErrBadRequest       = "Bad request"
	ErrNotFound         = "Resource not found"
)
