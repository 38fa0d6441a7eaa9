package errors

// ErrorCategory classifies errors by how the caller should react.
type ErrorCategory string

const (
	// CategoryFatal is a construction failure; nothing has started yet.
	CategoryFatal ErrorCategory = "fatal"

	// CategoryRecoverable is an external stop (cancel, deadline).
	// Loops terminate early and report what they reached.
	CategoryRecoverable ErrorCategory = "recoverable"

	// CategoryTransient may go away on its own (race miss, store hiccup).
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal indicates a bug or broken invariant.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies a specific failure within a category.
type ErrorCode string

const (
	// Fatal
	ErrCodeMissingCollaborator ErrorCode = "MISSING_COLLABORATOR" // nil table, signal or shared state
	ErrCodeInvalidConfig       ErrorCode = "INVALID_CONFIG"       // configuration failed validation

	// Recoverable
	ErrCodeCanceled ErrorCode = "CANCELED" // context canceled
	ErrCodeTimeout  ErrorCode = "TIMEOUT"  // context deadline exceeded

	// Transient
	ErrCodeRaceMiss ErrorCode = "RACE_MISS" // key vanished between snapshot and removal
	ErrCodeStore    ErrorCode = "STORE"     // backing table failed

	// Internal
	ErrCodeCodec            ErrorCode = "CODEC"             // value could not be encoded/decoded
	ErrCodeAlreadyPublished ErrorCode = "ALREADY_PUBLISHED" // completion published twice
	ErrCodeTaskFailed       ErrorCode = "TASK_FAILED"       // consumer handler returned an error
	ErrCodeInternal         ErrorCode = "INTERNAL"          // anything else
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeMissingCollaborator, ErrCodeInvalidConfig:
		return CategoryFatal
	case ErrCodeCanceled, ErrCodeTimeout:
		return CategoryRecoverable
	case ErrCodeRaceMiss, ErrCodeStore:
		return CategoryTransient
	default:
		return CategoryInternal
	}
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeMissingCollaborator: "required collaborator missing",
	ErrCodeInvalidConfig:       "invalid configuration",
	ErrCodeCanceled:            "operation canceled",
	ErrCodeTimeout:             "operation timed out",
	ErrCodeRaceMiss:            "entry already removed",
	ErrCodeStore:               "shared table failure",
	ErrCodeCodec:               "value codec failure",
	ErrCodeAlreadyPublished:    "completion already published",
	ErrCodeTaskFailed:          "item processing failed",
	ErrCodeInternal:            "internal error",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
