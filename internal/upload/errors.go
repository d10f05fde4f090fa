package upload

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced to API clients.
const (
	CodeUnsupportedType = "unsupported_type"
	CodeFileTooLarge    = "file_too_large"
	CodeNotFound        = "not_found"
	CodeForbidden       = "forbidden"
	CodeInvalidState    = "invalid_state"
	CodeInvalidArgument = "invalid_argument"
	CodeRemoteTransfer  = "remote_transfer_failed"
)

// Error is a domain error with a stable code and a human-readable message.
type Error struct {
	Code    string
	Message string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsCode reports whether err is a domain Error carrying the given code.
func IsCode(err error, code string) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Code == code
}

func errUnsupportedType(mime string) *Error {
	return &Error{
		Code:    CodeUnsupportedType,
		Message: fmt.Sprintf("mime type not allowed: %s", mime),
		Hint:    "Check allowed_mimes in the upload policy",
	}
}

func errFileTooLarge(size, limit int64) *Error {
	return &Error{
		Code:    CodeFileTooLarge,
		Message: fmt.Sprintf("file size exceeds maximum: %d > %d", size, limit),
	}
}

func errSessionNotFound(id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("upload session not found: %s", id)}
}

func errForbidden() *Error {
	return &Error{Code: CodeForbidden, Message: "session does not belong to the requesting user"}
}

func errInvalidState(msg string) *Error {
	return &Error{Code: CodeInvalidState, Message: msg}
}

func errInvalidArgument(msg string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: msg}
}

func errRemoteTransfer(err error) *Error {
	return &Error{Code: CodeRemoteTransfer, Message: "remote transfer failed", Err: err}
}

// Phase identifies which step of the multipart protocol failed.
type Phase string

const (
	PhaseOpen       Phase = "open"
	PhaseUploadPart Phase = "upload-part"
	PhaseCommit     Phase = "commit"
	PhaseAbort      Phase = "abort"
)

// TransferError tags a remote object-store failure with the failing phase so
// the orchestrator can decide the state transition.
type TransferError struct {
	Phase Phase
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("multipart %s failed: %v", e.Phase, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
