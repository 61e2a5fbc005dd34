package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUserInput       = errors.New("user input error")
	ErrNotFound        = errors.New("not found")
	ErrTransient       = errors.New("transient failure")
	ErrCacheCorruption = errors.New("cache corruption")
	ErrPersistence     = errors.New("persistence failure")
	ErrComposition     = errors.New("composition error")
	ErrContract        = errors.New("contract violation")
	ErrConfiguration   = errors.New("configuration error")
)

// Kind is the stable, user-facing classification of a failure.
type Kind string

const (
	KindUserInput       Kind = "user_input"
	KindNotFound        Kind = "not_found"
	KindTransient       Kind = "transient"
	KindCacheCorruption Kind = "cache_corruption"
	KindPersistence     Kind = "persistence"
	KindComposition     Kind = "composition"
	KindContract        Kind = "contract"
	KindConfiguration   Kind = "configuration"
	KindInternal        Kind = "internal"
)

// Reason refines a transient failure.
type Reason string

const (
	ReasonTimeout           Reason = "timeout"
	ReasonRateLimited       Reason = "rate_limited"
	ReasonUnavailable       Reason = "unavailable"
	ReasonMalformedResponse Reason = "malformed_response"
)

// Error tags a failure with one of the sentinel markers above and keeps the
// component/operation trail together with a message that is safe to show.
type Error struct {
	Marker     error
	Component  string
	Op         string
	Message    string
	Reason     Reason
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Component, e.Op, e.Message)
	marker := e.Marker
	if marker == nil {
		marker = ErrTransient
	}
	if e.Reason != "" {
		detail = fmt.Sprintf("%s (%s)", detail, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", marker, detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", marker, detail)
}

// Unwrap exposes both the marker and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:    marker,
		Component: strings.TrimSpace(component),
		Op:        strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// Transient tags err as a retryable collaborator failure with the given reason.
func Transient(reason Reason, component, operation, message string, err error) error {
	return &Error{
		Marker:    ErrTransient,
		Component: strings.TrimSpace(component),
		Op:        strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Reason:    reason,
		Err:       err,
	}
}

// UserInput is shorthand for Wrap(ErrUserInput, ...) with no cause.
func UserInput(component, operation, message string) error {
	return Wrap(ErrUserInput, component, operation, message, nil)
}

// IsTransient reports whether err should be retried by the node executor.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsUserError reports whether err was caused by caller input rather than by
// the system or a collaborator.
func IsUserError(err error) bool {
	return errors.Is(err, ErrUserInput) || errors.Is(err, ErrNotFound)
}

// KindOf maps err to its stable classification.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUserInput):
		return KindUserInput
	case errors.Is(err, ErrComposition):
		return KindComposition
	case errors.Is(err, ErrContract):
		return KindContract
	case errors.Is(err, ErrCacheCorruption):
		return KindCacheCorruption
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindInternal
	}
}

// ReasonOf returns the transient reason attached to err, if any.
func ReasonOf(err error) Reason {
	var svcErr *Error
	for e := err; e != nil; {
		if !errors.As(e, &svcErr) {
			return ""
		}
		if svcErr.Reason != "" {
			return svcErr.Reason
		}
		e = svcErr.Err
	}
	return ""
}

// RetryAfterOf returns the collaborator supplied retry hint attached to err.
func RetryAfterOf(err error) time.Duration {
	var svcErr *Error
	for e := err; e != nil; {
		if !errors.As(e, &svcErr) {
			return 0
		}
		if svcErr.RetryAfter > 0 {
			return svcErr.RetryAfter
		}
		e = svcErr.Err
	}
	return 0
}

// ErrorDetails is the caller-facing summary of a failure. It never carries
// collaborator payloads or filesystem paths.
type ErrorDetails struct {
	Kind    Kind   `json:"kind"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message"`
}

// Details extracts the outermost safe message from err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: KindOf(err), Reason: ReasonOf(err)}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		details.Message = buildDetail(svcErr.Component, svcErr.Op, svcErr.Message)
	}
	if details.Message == "" || details.Message == "service failure" {
		details.Message = defaultMessage(details.Kind)
	}
	return details
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindUserInput:
		return "invalid input"
	case KindNotFound:
		return "requested item was not found"
	case KindTransient:
		return "external service temporarily unavailable"
	case KindCacheCorruption:
		return "cache entry was unreadable"
	case KindPersistence:
		return "failed to persist run state"
	case KindComposition:
		return "flow composition is invalid"
	case KindContract:
		return "stage violated its output contract"
	case KindConfiguration:
		return "configuration is invalid"
	default:
		return "unexpected failure"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
