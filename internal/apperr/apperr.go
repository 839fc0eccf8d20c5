package apperr

import (
	"errors"
	"fmt"
)

// Error codes surfaced through Job.error / Render.error and the HTTP envelope.
const (
	CodeSourceUnreachable    = "SourceUnreachable"
	CodeUnrecognisedFormat   = "UnrecognisedFormat"
	CodeInvalidRequest       = "InvalidRequest"
	CodeEmptySource          = "EmptySource"
	CodeNoAudioTrack         = "NoAudioTrack"
	CodeExternalModelError   = "ExternalModelError"
	CodeBlobStoreUnavailable = "BlobStoreUnavailable"
	CodeInvalidPlan          = "InvalidPlan"
	CodeUnrenderablePlan     = "UnrenderablePlan"
	CodeInsufficientSignal   = "InsufficientSignal"
	CodeDecodeError          = "DecodeError"
	CodeEncodeError          = "EncodeError"
	CodeOutputWriteError     = "OutputWriteError"
	CodeNotFound             = "NotFound"
	CodeConflict             = "Conflict"
)

type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func New(code string, err error) *Error {
	return &Error{Code: code, Err: err}
}

func Newf(code string, format string, args ...interface{}) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the taxonomy code from an error chain, or "InternalError".
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "InternalError"
}

// Retryable reports whether the supervisor should enqueue a successor attempt.
// UnrenderablePlan stays retryable: story planning gets one more model pass
// before the job settles, bounded by the job type's attempt cap.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeSourceUnreachable, CodeUnrecognisedFormat, CodeInvalidRequest,
		CodeEmptySource, CodeInsufficientSignal,
		CodeDecodeError, CodeOutputWriteError, CodeNotFound:
		return false
	default:
		return true
	}
}
