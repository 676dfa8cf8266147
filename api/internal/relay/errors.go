package relay

import (
	"errors"
	"net/http"
)

var (
	ErrNoFileProvided    = errors.New("no image provided")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrFileTooLarge      = errors.New("file too large")
	ErrExternalAPI       = errors.New("external api error")
)

const (
	msgNoFile      = `no image provided: the "image" field is required`
	msgUnsupported = "unsupported format: use JPEG, PNG or WEBP"
	msgTranscode   = "unsupported format: HEIC image could not be converted, use JPEG or PNG"
	msgTooLarge    = "file too large"
	msgInternal    = "internal error"
)

// Terminal outcomes, used for logs, metrics and the journal.
const (
	OutcomeNoFile          = "rejected_no_file"
	OutcomeUnsupported     = "rejected_unsupported"
	OutcomeTooLarge        = "rejected_too_large"
	OutcomeTranscodeFailed = "transcode_failed"
	OutcomePlaceholder     = "placeholder"
	OutcomeModelResult     = "model_result"
	OutcomeModelError      = "model_error"
	OutcomeInternalError   = "internal_error"
)

// StatusCode maps an Analyze error to the HTTP status the relay answers with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNoFileProvided),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrFileTooLarge):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// FailureFor builds the public failure result for a validation error raised
// outside Analyze (e.g. while reading the multipart envelope).
func FailureFor(err error) Result {
	switch {
	case errors.Is(err, ErrNoFileProvided):
		return failure(msgNoFile)
	case errors.Is(err, ErrUnsupportedFormat):
		return failure(msgUnsupported)
	case errors.Is(err, ErrFileTooLarge):
		return failure(msgTooLarge)
	default:
		return failure(msgInternal)
	}
}
