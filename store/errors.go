package store

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigErrorCode categorizes configuration-time failures.
type ConfigErrorCode string

const (
	// ErrCodeInvalidDefinition indicates a malformed module definition
	// (nil config, nil handler, or a state value of the wrong kind).
	ErrCodeInvalidDefinition ConfigErrorCode = "INVALID_DEFINITION"

	// ErrCodeMissingParent indicates a register path whose non-leaf
	// segment does not resolve to an existing module.
	ErrCodeMissingParent ConfigErrorCode = "MISSING_PARENT"

	// ErrCodeDuplicateNamespace indicates two module paths mapping to
	// the same namespace string. Reported but non-fatal; the first
	// registrant wins.
	ErrCodeDuplicateNamespace ConfigErrorCode = "DUPLICATE_NAMESPACE"

	// ErrCodeStaticUnregister indicates an attempt to unregister a
	// module that was part of the original static configuration.
	ErrCodeStaticUnregister ConfigErrorCode = "STATIC_UNREGISTER"

	// ErrCodeInvalidType indicates a commit or dispatch with an empty
	// type string.
	ErrCodeInvalidType ConfigErrorCode = "INVALID_TYPE"
)

// ConfigError represents a failure detected while building or reshaping
// the module tree. It is fatal to the operation that triggered it and to
// nothing else.
type ConfigError struct {
	Code    ConfigErrorCode
	Path    []string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, strings.Join(e.Path, "."))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsStaticUnregister reports whether err is a refusal to unregister a
// statically configured module.
func IsStaticUnregister(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeStaticUnregister
	}
	return false
}

// IsMissingParent reports whether err is a register against a path whose
// parent module does not exist.
func IsMissingParent(err error) bool {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeMissingParent
	}
	return false
}

func newConfigError(code ConfigErrorCode, path []string, format string, args ...any) *ConfigError {
	return &ConfigError{
		Code:    code,
		Path:    append([]string(nil), path...),
		Message: fmt.Sprintf(format, args...),
	}
}

// RuntimeErrorCode categorizes errors detected during dispatch execution.
type RuntimeErrorCode string

const (
	// ErrCodeDepthExceeded indicates a dispatch chain exceeded the
	// store's maximum nesting depth for one correlation token.
	ErrCodeDepthExceeded RuntimeErrorCode = "DEPTH_EXCEEDED"
)

// RuntimeError represents an error detected by the dispatch engine, as
// opposed to one returned by an action handler.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Type    string // action type being dispatched
	Token   string // correlation token of the dispatch chain
	Message string
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("%s: %s (type=%s, token=%s)", e.Code, e.Message, e.Type, e.Token)
	}
	return fmt.Sprintf("%s: %s (type=%s)", e.Code, e.Message, e.Type)
}

// IsDepthError reports whether err is a dispatch depth quota violation.
// Uses errors.As to handle wrapped errors.
func IsDepthError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDepthExceeded
	}
	return false
}

func newDepthError(typ, token string, depth, max int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDepthExceeded,
		Type:    typ,
		Token:   token,
		Message: fmt.Sprintf("dispatch chain exceeded max depth (%d >= %d)", depth, max),
	}
}
