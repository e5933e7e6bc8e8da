package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Terminal pipeline conditions. Only these cross the pipeline boundary.
var (
	ErrDocumentLoad      = errors.New("document could not be loaded")
	ErrPasswordProtected = errors.New("document is password protected")
	ErrExtractionEmpty   = errors.New("no transactions found")
	ErrTimeout           = errors.New("extraction timed out")
	ErrCancelled         = errors.New("extraction cancelled")
)

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Error codes carried by AppError.
const (
	CodeDocumentLoad      = "DOCUMENT_LOAD_ERROR"
	CodePasswordProtected = "PASSWORD_PROTECTED"
	CodeExtractionEmpty   = "EXTRACTION_EMPTY"
	CodeTimeout           = "TIMEOUT"
	CodeCancelled         = "CANCELLED"
	CodeInternal          = "INTERNAL"
	CodeConfig            = "CONFIG_ERROR"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeTooLarge          = "DOCUMENT_TOO_LARGE"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// DocumentLoadError keeps the reader's message verbatim for the caller.
func DocumentLoadError(cause error) error {
	msg := "failed to open document"
	if cause != nil {
		msg = cause.Error()
	}
	return NewAppError(CodeDocumentLoad, msg, ErrDocumentLoad)
}

// UserMessage turns a terminal pipeline error into the text shown to users.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPasswordProtected):
		return "This document is password protected. Remove the password and upload it again."
	case errors.Is(err, ErrExtractionEmpty):
		return "No transactions could be found in this document. Try enabling OCR or enter the transactions manually."
	case errors.Is(err, ErrTimeout):
		return "Extraction took too long and was stopped. Try a smaller or simpler document."
	case errors.Is(err, ErrCancelled):
		return "Extraction was cancelled."
	case errors.Is(err, ErrDocumentLoad):
		var appErr *AppError
		if errors.As(err, &appErr) && appErr.Code == CodeDocumentLoad {
			return fmt.Sprintf("Failed to load document: %s", appErr.Message)
		}
		return "Failed to load document."
	}
	return fmt.Sprintf("Extraction failed: %v", err)
}

// ErrorCode classifies err into one of the AppError codes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrPasswordProtected):
		return CodePasswordProtected
	case errors.Is(err, ErrExtractionEmpty):
		return CodeExtractionEmpty
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return CodeCancelled
	case errors.Is(err, ErrDocumentLoad):
		return CodeDocumentLoad
	}
	return CodeInternal
}

// GRPCStatus maps pipeline errors onto gRPC status codes.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	msg := UserMessage(err)
	switch ErrorCode(err) {
	case CodePasswordProtected:
		return status.Error(codes.FailedPrecondition, msg)
	case CodeExtractionEmpty:
		return status.Error(codes.NotFound, msg)
	case CodeTimeout:
		return status.Error(codes.DeadlineExceeded, msg)
	case CodeCancelled:
		return status.Error(codes.Canceled, msg)
	case CodeDocumentLoad:
		return status.Error(codes.InvalidArgument, msg)
	}
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrValidation) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if errors.Is(err, ErrNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.Internal, msg)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}
