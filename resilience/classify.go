package resilience

import (
	"errors"
	"net"
	"strings"

	"github.com/gomind-labs/debate-consensus/core"
)

// Classification is the harness's verdict on one failure: its taxonomy
// bucket and whether another attempt is worth making.
type Classification struct {
	Kind      core.ErrorKind
	Retriable bool
}

// HTTPStatusError lets callers report a completed HTTP exchange's status
// code alongside the error, so Classify can inspect it without the harness
// needing to know about net/http.
type HTTPStatusError struct {
	StatusCode int
	Err        error
}

func (e *HTTPStatusError) Error() string { return e.Err.Error() }
func (e *HTTPStatusError) Unwrap() error { return e.Err }

// WrapperExitError reports a subprocess invocation's exit code.
type WrapperExitError struct {
	ExitCode int
	Err      error
}

func (e *WrapperExitError) Error() string { return e.Err.Error() }
func (e *WrapperExitError) Unwrap() error { return e.Err }

var retriableWrapperExitCodes = map[int]bool{1: true, 124: true, 125: true, 126: true, 127: true}

// Classify inspects an error's message, wrapped HTTP status, and wrapped
// exit code to assign it a bucket from spec §4.1's table.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Kind: core.KindUnknown, Retriable: false}
	}

	msg := strings.ToLower(err.Error())

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 401 || statusErr.StatusCode == 403:
			return Classification{Kind: core.KindAuthenticationFailure, Retriable: false}
		case statusErr.StatusCode == 429:
			return Classification{Kind: core.KindRateLimited, Retriable: true}
		case statusErr.StatusCode == 408 || statusErr.StatusCode == 504:
			return Classification{Kind: core.KindTimeout, Retriable: true}
		case statusErr.StatusCode >= 500:
			return Classification{Kind: core.KindNetwork, Retriable: true}
		}
	}

	var exitErr *WrapperExitError
	if errors.As(err, &exitErr) {
		return Classification{Kind: core.KindWrapperExit, Retriable: retriableWrapperExitCodes[exitErr.ExitCode]}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Classification{Kind: core.KindTimeout, Retriable: true}
		}
		return Classification{Kind: core.KindNetwork, Retriable: true}
	}

	switch {
	case containsAny(msg, "invalid api key", "unauthorized", "401", "403", "forbidden"):
		return Classification{Kind: core.KindAuthenticationFailure, Retriable: false}
	case containsAny(msg, "enoent", "missing binary", "no such file"):
		return Classification{Kind: core.KindConfiguration, Retriable: false}
	case containsAny(msg, "429", "too many requests", "rate limit"):
		return Classification{Kind: core.KindRateLimited, Retriable: true}
	case containsAny(msg, "etimedout", "timeout", "408", "504", "deadline exceeded"):
		return Classification{Kind: core.KindTimeout, Retriable: true}
	case containsAny(msg, "econnreset", "econnrefused", "connection reset", "connection refused", "5xx"):
		return Classification{Kind: core.KindNetwork, Retriable: true}
	case containsAny(msg, "empty response", "malformed", "unexpected end of json", "parse error"):
		return Classification{Kind: core.KindParseError, Retriable: true}
	default:
		return Classification{Kind: core.KindUnknown, Retriable: true}
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
