// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package recheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shroud/internal/resilience"
)

func chatServer(t *testing.T, status int, reply string, inspect func(*http.Request, chatRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if inspect != nil {
			inspect(r, req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			fmt.Fprint(w, `{"error":{"message":"nope"}}`)
			return
		}
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGroqClientVerdicts(t *testing.T) {
	cases := []struct {
		reply string
		want  bool
		err   bool
	}{
		{"true", true, false},
		{"True.", true, false},
		{" FALSE ", false, false},
		{"maybe", false, true},
		{"", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.reply, func(t *testing.T) {
			srv := chatServer(t, http.StatusOK, tc.reply, nil)
			got, err := NewGroqClient(srv.URL, "", "k", srv.Client()).Classify(context.Background(), Query{Category: "EMAIL", Text: "a@b.co"})
			if tc.err {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedResponse))
				assert.False(t, resilience.Retryable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGroqClientRequestShape(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "true", func(r *http.Request, req chatRequest) {
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "custom-model", req.Model)
		assert.Equal(t, 0.0, req.Temperature)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[1].Content, "'123-45-6789'")
		assert.Contains(t, req.Messages[1].Content, "'SSN'")
		assert.Contains(t, req.Messages[1].Content, "Surrounding text: 'SSN: 123-45-6789'")
	})
	ok, err := NewGroqClient(srv.URL, "custom-model", "secret-key", srv.Client()).Classify(context.Background(),
		Query{Category: "SSN", Text: "123-45-6789", Context: "SSN: 123-45-6789"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGroqClientStatusErrors(t *testing.T) {
	for code, want := range map[int]resilience.Class{
		http.StatusTooManyRequests: resilience.ClassRateLimited,
		http.StatusBadGateway:      resilience.ClassServer,
		http.StatusUnauthorized:    resilience.ClassAuth,
	} {
		srv := chatServer(t, code, "", nil)
		_, err := NewGroqClient(srv.URL, "", "k", srv.Client()).Classify(context.Background(), Query{Category: "EMAIL", Text: "x"})
		require.Error(t, err)
		var status *resilience.StatusError
		require.True(t, errors.As(err, &status))
		assert.Equal(t, code, status.StatusCode)
		assert.Equal(t, want, resilience.Classify(err))
	}
}

func TestParseVerdict(t *testing.T) {
	v, err := parseVerdict("`true`")
	require.NoError(t, err)
	assert.True(t, v)
	_, err = parseVerdict("true because it looks like an email")
	assert.Error(t, err)
}
