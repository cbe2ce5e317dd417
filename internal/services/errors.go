package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrIntegrity     = errors.New("integrity check failed")
	ErrTimeout       = errors.New("timeout")
)

// Error codes surfaced to operators and recorded on tasks.
const (
	CodeTaskNotFound              = "TASK_NOT_FOUND"
	CodeInvalidStep               = "INVALID_STEP"
	CodeInvalidStatus             = "INVALID_STATUS"
	CodeInvalidArgument           = "INVALID_ARGUMENT"
	CodeStepFailed                = "STEP_FAILED"
	CodeASRNotReady               = "ASR_NOT_READY"
	CodeWatchTimeout              = "WATCH_TIMEOUT"
	CodeRawFolderNotFound         = "RAW_FOLDER_NOT_FOUND"
	CodeRawFolderInvalidName      = "RAW_FOLDER_INVALID_NAME"
	CodeRawFolderDuplicateLesson  = "RAW_FOLDER_DUPLICATE_LESSON"
	CodeFFmpegNotFound            = "FFMPEG_NOT_FOUND"
	CodeEmptyFile                 = "EMPTY_FILE"
	CodeInvalidPartSize           = "INVALID_PART_SIZE"
	CodeSegmentUploadFailed       = "SEGMENT_UPLOAD_FAILED"
	CodeSegmentDownloadFailed     = "SEGMENT_DOWNLOAD_FAILED"
	CodeInvalidManifest           = "INVALID_MANIFEST"
	CodeInvalidManifestParts      = "INVALID_MANIFEST_PARTS"
	CodeInvalidManifestPartIndex  = "INVALID_MANIFEST_PART_INDEX"
	CodeInvalidManifestObjectKey  = "INVALID_MANIFEST_PART_OBJECT_KEY"
	CodeRestoreSizeMismatch       = "RESTORE_SIZE_MISMATCH"
	CodeRestoreSHA256Mismatch     = "RESTORE_SHA256_MISMATCH"
	CodeObjectStoreFailed         = "OBJECT_STORE_FAILED"
	CodeConfigInvalid             = "CONFIG_INVALID"
	CodeMissingTranslateEffective = "MISSING_TRANSLATE_EFFECTIVE"
	CodeNoPublishableTasks        = "NO_PUBLISHABLE_TASKS"
)

// Exit codes returned by the command surface.
const (
	ExitOK        = 0
	ExitBadInput  = 2
	ExitFailed    = 3
	ExitIntegrity = 4
)

// Error is a structured failure carrying a stable code, the offending step
// when one applies, and optional details that help manual resumption.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Step    string         `json:"step,omitempty"`
	Details map[string]any `json:"details,omitempty"`

	marker error
	cause  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Step != "" {
		b.WriteString(" [")
		b.WriteString(e.Step)
		b.WriteByte(']')
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Unwrap exposes both the classification marker and the underlying cause.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 2)
	if e.marker != nil {
		out = append(out, e.marker)
	}
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

// WithDetail attaches a key/value pair to the error and returns it.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NewError builds a coded error. The classification marker is derived from the code.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message, marker: markerForCode(code)}
}

// Errorf is NewError with fmt formatting.
func Errorf(code, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WrapCode builds a coded error around an underlying cause.
func WrapCode(code, message string, err error) *Error {
	e := NewError(code, message)
	e.cause = err
	return e
}

// StepError builds a STEP_FAILED-class error bound to the step that produced it.
// A more specific code (ASR_NOT_READY, FFMPEG_NOT_FOUND, ...) may be supplied.
func StepError(step, code, message string, err error) *Error {
	if strings.TrimSpace(code) == "" {
		code = CodeStepFailed
	}
	e := WrapCode(code, message, err)
	e.Step = step
	return e
}

// AsError extracts the coded error from err, if any.
func AsError(err error) (*Error, bool) {
	var coded *Error
	if errors.As(err, &coded) && coded != nil {
		return coded, true
	}
	return nil, false
}

// CodeOf returns the code of the first coded error in the chain, or "" if none.
func CodeOf(err error) string {
	if coded, ok := AsError(err); ok {
		return coded.Code
	}
	return ""
}

// ExitCode maps an error to the command exit status.
// A coded error is classified by its own code so a step failure caused by a
// missing file still reports as a failed operation.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if coded, ok := AsError(err); ok {
		return exitForMarker(coded.marker)
	}
	return exitForMarker(err)
}

func exitForMarker(err error) int {
	switch {
	case err == nil:
		return ExitFailed
	case errors.Is(err, ErrIntegrity):
		return ExitIntegrity
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrConfiguration):
		return ExitBadInput
	default:
		return ExitFailed
	}
}

func markerForCode(code string) error {
	switch code {
	case CodeTaskNotFound, CodeRawFolderNotFound, CodeNoPublishableTasks:
		return ErrNotFound
	case CodeInvalidStep, CodeInvalidStatus, CodeInvalidArgument,
		CodeRawFolderInvalidName, CodeRawFolderDuplicateLesson,
		CodeEmptyFile, CodeInvalidPartSize,
		CodeInvalidManifest, CodeInvalidManifestParts, CodeInvalidManifestPartIndex, CodeInvalidManifestObjectKey:
		return ErrValidation
	case CodeConfigInvalid:
		return ErrConfiguration
	case CodeRestoreSizeMismatch, CodeRestoreSHA256Mismatch:
		return ErrIntegrity
	case CodeFFmpegNotFound:
		return ErrExternalTool
	case CodeWatchTimeout:
		return ErrTimeout
	default:
		return nil
	}
}
