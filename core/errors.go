package core

import (
	"errors"
	"fmt"
)

// ErrorKind is the caller-visible error taxonomy of the deliberation engine.
type ErrorKind string

const (
	KindQuestionTooSimple    ErrorKind = "QuestionTooSimple"
	KindInsufficientResponses ErrorKind = "InsufficientResponses"
	KindAuthenticationFailure ErrorKind = "AuthenticationFailure"
	KindRateLimited          ErrorKind = "RateLimited"
	KindTimeout              ErrorKind = "Timeout"
	KindReplayDetected       ErrorKind = "ReplayDetected"
	KindConfiguration        ErrorKind = "Configuration"
	KindNetwork              ErrorKind = "Network"
	KindWrapperExit          ErrorKind = "WrapperExit"
	KindParseError           ErrorKind = "ParseError"
	KindInternalError        ErrorKind = "InternalError"
	KindUnknown              ErrorKind = "Unknown"
)

// Sentinel errors for comparison with errors.Is().
var (
	ErrQuestionTooSimple     = errors.New("question too simple")
	ErrInsufficientResponses = errors.New("insufficient responses")
	ErrAuthenticationFailure = errors.New("authentication failure")
	ErrRateLimited           = errors.New("rate limited")
	ErrTimeout               = errors.New("operation timeout")
	ErrReplayDetected        = errors.New("replay detected")
	ErrInvalidConfiguration  = errors.New("invalid configuration")
	ErrMissingConfiguration  = errors.New("missing required configuration")
	ErrMaxRetriesExceeded    = errors.New("maximum retries exceeded")
	ErrConnectionFailed      = errors.New("connection failed")
	ErrNotInitialized        = errors.New("not initialized")
)

// EngineError carries structured, log-correlatable failure context.
// Mirrors the framework's wrap-with-Op/Kind/Err convention, renamed to the
// debate-engine's own error taxonomy.
type EngineError struct {
	Op          string    // operation that failed, e.g. "orchestrator.Debate"
	Kind        ErrorKind // taxonomy bucket
	Reason      string    // short machine-checkable reason code
	Attempts    int       // retry attempts made, 0 if not applicable
	Fingerprint string    // debate/cache fingerprint for log correlation, if known
	Err         error     // wrapped cause
}

func (e *EngineError) Error() string {
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError constructs an EngineError for the given operation and kind.
func NewEngineError(op string, kind ErrorKind, err error) *EngineError {
	return &EngineError{Op: op, Kind: kind, Err: err}
}

// IsRetryable reports whether err's classification permits a retry attempt.
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		switch ee.Kind {
		case KindRateLimited, KindTimeout, KindNetwork, KindWrapperExit, KindParseError, KindUnknown:
			return true
		default:
			return false
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnectionFailed)
}

// IsAuthenticationFailure reports whether err represents a rejected credential.
func IsAuthenticationFailure(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind == KindAuthenticationFailure
	}
	return errors.Is(err, ErrAuthenticationFailure)
}

// ValidateQuestion enforces the minimum-significant-characters invariant,
// returning a QuestionTooSimple EngineError when question, after
// NormalizeQuestion, has fewer than MinQuestionLength characters.
func ValidateQuestion(question string) error {
	normalized := NormalizeQuestion(question)
	if len([]rune(normalized)) < MinQuestionLength {
		return &EngineError{
			Kind:   KindQuestionTooSimple,
			Reason: fmt.Sprintf("question must have at least %d significant characters", MinQuestionLength),
			Err:    ErrQuestionTooSimple,
		}
	}
	return nil
}

// IsConfigurationError reports whether err is a configuration-layer failure.
func IsConfigurationError(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind == KindConfiguration
	}
	return errors.Is(err, ErrInvalidConfiguration) || errors.Is(err, ErrMissingConfiguration)
}
