package reliability

import (
	"context"
	"errors"
	"net"
)

// FailureKind labels why a remote call could not be used, so callers can
// decide (and count) fallbacks in one place instead of matching broad
// error classes at every call site.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureTransport FailureKind = "transport"
	FailureStatus    FailureKind = "status"
	FailureDecode    FailureKind = "decode"
)

// ClassifyTransportError separates deadline expiry from other transport
// failures. err must be non-nil.
func ClassifyTransportError(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return FailureTimeout
	}
	return FailureTransport
}

// IsSuccessHTTPStatus reports whether code is in the 2xx range.
func IsSuccessHTTPStatus(code int) bool {
	return code >= 200 && code < 300
}
