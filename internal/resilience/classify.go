// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package resilience guards calls to remote services with error
// classification, bounded backoff and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Class groups failures by how a caller should react to them
type Class int

const (
	ClassUnknown Class = iota
	ClassNetwork
	ClassTimeout
	ClassRateLimited
	ClassServer
	ClassAuth
	ClassBadRequest
	ClassCanceled
	ClassBreakerOpen
)

var classNames = [...]string{
	ClassUnknown:     "unknown",
	ClassNetwork:     "network",
	ClassTimeout:     "timeout",
	ClassRateLimited: "rate_limited",
	ClassServer:      "server",
	ClassAuth:        "auth",
	ClassBadRequest:  "bad_request",
	ClassCanceled:    "canceled",
	ClassBreakerOpen: "breaker_open",
}

func (c Class) String() string {
	if c >= 0 && int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Retryable reports whether another attempt may succeed
func (c Class) Retryable() bool {
	switch c {
	case ClassNetwork, ClassTimeout, ClassRateLimited, ClassServer:
		return true
	}
	return false
}

// StatusError is a non-2xx HTTP response from a remote API
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	text := fmt.Sprintf("http %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if body == "" {
		return text
	}
	return text + ": " + body
}

type transientError struct{ err error }

func (e transientError) Error() string { return e.err.Error() }
func (e transientError) Unwrap() error { return e.err }

// Transient marks err as a temporary network failure worth retrying
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return transientError{err: err}
}

// Classify maps err to a Class. A nil error is ClassUnknown.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}
	if errors.Is(err, ErrOpen) {
		return ClassBreakerOpen
	}
	var status *StatusError
	if errors.As(err, &status) {
		return statusClass(status.StatusCode)
	}
	var transient transientError
	if errors.As(err, &transient) {
		return ClassNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	if isConnError(err) {
		return ClassNetwork
	}
	return ClassUnknown
}

// Retryable reports whether err is worth another attempt
func Retryable(err error) bool {
	return Classify(err).Retryable()
}

func statusClass(code int) Class {
	switch {
	case code == http.StatusTooManyRequests:
		return ClassRateLimited
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return ClassTimeout
	case code >= 500:
		return ClassServer
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ClassAuth
	}
	return ClassBadRequest
}

func isConnError(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EHOSTUNREACH, syscall.ENETUNREACH} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
