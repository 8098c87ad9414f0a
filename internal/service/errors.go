package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/contextual-caption-translator/pkg/log"
)

type ErrorType int

const (
	ErrParse ErrorType = iota
	ErrValidation
	ErrConfig
	ErrStorage
	ErrTranslation
	ErrPermanent
	ErrCancelled
	ErrNotFound
	ErrUnknown
)

type ServiceError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *ServiceError {
	return &ServiceError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *ServiceError {
	return &ServiceError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *ServiceError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

func (e *ServiceError) WithContext(key string, value any) *ServiceError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrParse:
		return "Parse"
	case ErrValidation:
		return "Validation"
	case ErrConfig:
		return "Config"
	case ErrStorage:
		return "Storage"
	case ErrTranslation:
		return "Translation"
	case ErrPermanent:
		return "Permanent"
	case ErrCancelled:
		return "Cancelled"
	case ErrNotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

type ErrorHandler interface {
	Handle(err error) bool
	GetAdvice(err *ServiceError) string
}

type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

func (h *DefaultErrorHandler) Handle(err error) bool {
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		log.Error("Unknown Error: %v", err)
		return false
	}
	if svcErr.Type == ErrCancelled {
		log.Debug("Cancelled: %v", err)
		return true
	}

	advice := h.GetAdvice(svcErr)
	log.Error("Error Detail: %v\n advice: %s", err, advice)

	return true
}

// GetAdvice returns error handling advice
func (h *DefaultErrorHandler) GetAdvice(err *ServiceError) string {
	switch err.Type {
	case ErrParse:
		return "Please verify the caption payload is a json3 document with an events list"
	case ErrValidation:
		return "Please verify input parameters are correct, the video id cannot be empty"
	case ErrConfig:
		return "Please check that the settings file or environment variables are set correctly"
	case ErrStorage:
		return "Please check that the data directory is writable and the database file is not locked by another process"
	case ErrTranslation:
		return "The provider could not translate this batch; wait for the cooldown or retry the failed lines"
	case ErrPermanent:
		return "Translation stopped; check the API keys and billing status, then start the video again"
	case ErrCancelled:
		return "The translation was cancelled and can be resumed by starting the video again"
	case ErrNotFound:
		return "No cached captions exist for this video; send the caption payload first"
	default:
		return "Please review detailed error information and the event log"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Type == errorType
	}
	if errorType == ErrCancelled {
		return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *ServiceError {
	return NewErrorWithCause(errorType, message, err)
}

// SafeExecute runs fn and turns a panic into an ErrUnknown
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
