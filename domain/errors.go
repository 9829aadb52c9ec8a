// domain/errors.go
package domain

import "fmt"

type ErrorCode string

const (
	CodeNotFound                ErrorCode = "video_not_found"
	CodeInvalidFile             ErrorCode = "invalid_video_file"
	CodeInvalidStatusTransition ErrorCode = "invalid_status_transition"
	CodeStorageFailure          ErrorCode = "storage_failure"
	CodeUploadFailure           ErrorCode = "upload_failure"
	CodePublishFailure          ErrorCode = "publish_failure"
)

// Error carries a taxonomy code plus an optional cause. Two errors match
// under errors.Is when their codes are equal, so callers compare against
// the sentinels below.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

var (
	ErrVideoNotFound           = &Error{Code: CodeNotFound, Message: "video not found"}
	ErrInvalidVideoFile        = &Error{Code: CodeInvalidFile, Message: "invalid video file"}
	ErrInvalidStatusTransition = &Error{Code: CodeInvalidStatusTransition, Message: "invalid status transition"}
	ErrStorageFailure          = &Error{Code: CodeStorageFailure, Message: "storage failure"}
	ErrUploadFailure           = &Error{Code: CodeUploadFailure, Message: "upload failure"}
	ErrPublishFailure          = &Error{Code: CodePublishFailure, Message: "publish failure"}
)

func StorageFailure(message string, err error) *Error {
	return NewError(CodeStorageFailure, message, err)
}

func UploadFailure(message string, err error) *Error {
	return NewError(CodeUploadFailure, message, err)
}

func PublishFailure(message string, err error) *Error {
	return NewError(CodePublishFailure, message, err)
}
