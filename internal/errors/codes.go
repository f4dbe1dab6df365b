// Package errors provides the structured error taxonomy for mcpvector.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage and file errors
//   - 3XX: Embedder and network errors
//   - 4XX: Validation errors
//   - 5XX: Internal and per-item pipeline errors
package errors

// Category classifies an error.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryStorage    Category = "STORAGE"
	CategoryEmbedder   Category = "EMBEDDER"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal means the process must not continue serving.
	SeverityFatal Severity = "FATAL"
	// SeverityError means the operation failed but the process continues.
	SeverityError Severity = "ERROR"
	// SeverityWarning means degraded operation.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeNoWatchRoots   = "ERR_103_NO_WATCH_ROOTS"

	// Storage errors (200-299)
	ErrCodeFileNotFound      = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission    = "ERR_202_FILE_PERMISSION"
	ErrCodeStorageUnwritable = "ERR_203_STORAGE_UNWRITABLE"
	ErrCodeFileTooLarge      = "ERR_204_FILE_TOO_LARGE"
	ErrCodeCorruptIndex      = "ERR_205_CORRUPT_INDEX"
	ErrCodeStorageLocked     = "ERR_206_STORAGE_LOCKED"

	// Embedder errors (300-399)
	ErrCodeEmbedderTimeout     = "ERR_301_EMBEDDER_TIMEOUT"
	ErrCodeEmbedderUnavailable = "ERR_302_EMBEDDER_UNAVAILABLE"
	ErrCodeEmbedderRejected    = "ERR_303_EMBEDDER_REJECTED"
	ErrCodeCircuitOpen         = "ERR_304_CIRCUIT_OPEN"
	ErrCodeServerUnavailable   = "ERR_305_SERVER_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_403_QUERY_EMPTY"
	ErrCodeInvalidTopK       = "ERR_404_INVALID_TOP_K"
	ErrCodeZeroVector        = "ERR_405_ZERO_VECTOR"
	ErrCodeUnsupportedFile   = "ERR_406_UNSUPPORTED_FILE"
	ErrCodeOutsideRoots      = "ERR_407_OUTSIDE_WATCH_ROOTS"

	// Internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed  = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed     = "ERR_503_SEARCH_FAILED"
	ErrCodeExtractionFailed = "ERR_504_EXTRACTION_FAILED"
	ErrCodeIndexFailed      = "ERR_505_INDEX_FAILED"
	ErrCodeCapacityExceeded = "ERR_506_CAPACITY_EXCEEDED"
	ErrCodeNotInitialized   = "ERR_507_NOT_INITIALIZED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryEmbedder
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStorageUnwritable, ErrCodeStorageLocked, ErrCodeNotInitialized, ErrCodeCapacityExceeded:
		return SeverityFatal
	case ErrCodeCorruptIndex:
		// Recovered by starting from an empty store.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeEmbedderTimeout, ErrCodeEmbedderUnavailable:
		return true
	default:
		return false
	}
}
