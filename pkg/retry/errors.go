// Package retry wraps remote operations with classification-driven retries
// and exponential backoff, coordinating with the quota governor of the
// remote system being called.
package retry

import (
	"errors"
	"net"
)

// Sentinel errors remote clients wrap their failures with so that retry
// behavior can be decided without inspecting transport details.
var (
	// ErrQuotaExceeded marks a "too many requests" response from the remote
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrServerError marks a remote internal fault (500/502/504 class)
	ErrServerError = errors.New("remote server error")
	// ErrUnavailable marks a temporarily unreachable remote (503 class)
	ErrUnavailable = errors.New("service unavailable")
	// ErrPermanent marks a request failure that will not succeed on retry
	ErrPermanent = errors.New("permanent request error")

	// ErrRetriesExhausted is returned once a retriable operation has failed
	// on every permitted attempt
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// Class tags a failure with its retry semantics
type Class int

// Failure classes consumed by the executor's backoff loop
const (
	// ClassNone means no error occurred
	ClassNone Class = iota
	// ClassQuota widens the governor delay and backs off exponentially
	ClassQuota
	// ClassTransient retries with exponential backoff
	ClassTransient
	// ClassUnavailable retries with a longer exponential backoff
	ClassUnavailable
	// ClassPermanent fails immediately without retry
	ClassPermanent
)

// String returns the class name for logging
func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassQuota:
		return "quota"
	case ClassTransient:
		return "transient"
	case ClassUnavailable:
		return "unavailable"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Retriable reports whether the class permits another attempt
func (c Class) Retriable() bool {
	switch c {
	case ClassQuota, ClassTransient, ClassUnavailable:
		return true
	default:
		return false
	}
}

// Classify maps an error onto its retry class. Classification is pure and
// independent of the transport that produced the error: clients wrap their
// failures with the sentinels above, and network-level errors are treated
// as transient because they are retried a bounded number of times anyway.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return ClassQuota
	case errors.Is(err, ErrUnavailable):
		return ClassUnavailable
	case errors.Is(err, ErrServerError):
		return ClassTransient
	case errors.Is(err, ErrPermanent):
		return ClassPermanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	// Anything unclassified fails fast
	return ClassPermanent
}
