// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyStatus(t *testing.T) {
	cases := map[int]Class{
		http.StatusTooManyRequests:     ClassRateLimited,
		http.StatusServiceUnavailable:  ClassServer,
		http.StatusInternalServerError: ClassServer,
		http.StatusGatewayTimeout:      ClassTimeout,
		http.StatusUnauthorized:        ClassAuth,
		http.StatusForbidden:           ClassAuth,
		http.StatusBadRequest:          ClassBadRequest,
	}
	for code, want := range cases {
		t.Run(http.StatusText(code), func(t *testing.T) {
			err := fmt.Errorf("chat completion: %w", &StatusError{StatusCode: code, Body: "{}"})
			assert.Equal(t, want, Classify(err))
		})
	}
}

func TestClassifyRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassUnknown},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ClassTimeout},
		{"canceled", fmt.Errorf("call: %w", context.Canceled), ClassCanceled},
		{"transient", Transient(errors.New("connection reset")), ClassNetwork},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ClassNetwork},
		{"breaker", &OpenError{Name: "x"}, ClassBreakerOpen},
		{"plain", errors.New("malformed reply"), ClassUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got.Retryable(), Retryable(tc.err))
		})
	}
	assert.True(t, Retryable(Transient(errors.New("x"))))
	assert.False(t, Retryable(&OpenError{}))
	assert.Nil(t, Transient(nil))
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	err := &StatusError{StatusCode: 502, Body: string(long)}
	assert.Contains(t, err.Error(), "http 502 Bad Gateway: ")
	assert.Contains(t, err.Error(), "...")
	assert.Equal(t, "http 404 Not Found", (&StatusError{StatusCode: 404}).Error())
}
