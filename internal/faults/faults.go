// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package faults defines the error taxonomy used at file boundaries.
// Per-file faults are recorded and the scan continues; only Configuration
// faults abort a run.
package faults

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a fault
type Kind int

const (
	// KindUnknown is an unclassified failure
	KindUnknown Kind = iota
	// UnreadableFile covers permission and IO errors, broken symlinks
	UnreadableFile
	// UnsupportedType means the extension is not recognized. Filtered by the walker.
	UnsupportedType
	// ExtractionUnavailable means the OCR or rasterization engine is missing or failed
	ExtractionUnavailable
	// RecheckUnavailable means the remote classifier could not answer
	RecheckUnavailable
	// OutputWriteFailure means the redacted artifact could not be written
	OutputWriteFailure
	// Configuration is a run-level failure
	Configuration
)

// String returns the string representation of the fault kind
func (k Kind) String() string {
	switch k {
	case UnreadableFile:
		return "unreadable_file"
	case UnsupportedType:
		return "unsupported_type"
	case ExtractionUnavailable:
		return "extraction_unavailable"
	case RecheckUnavailable:
		return "recheck_unavailable"
	case OutputWriteFailure:
		return "output_write_failure"
	case Configuration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Fatal reports whether a fault of this kind aborts the whole run
func (k Kind) Fatal() bool {
	return k == Configuration
}

// Error is a classified failure tied to a file and pipeline stage
type Error struct {
	// Kind is the fault classification
	Kind Kind

	// Path is the file being processed, empty for run-level faults
	Path string

	// Stage is the pipeline stage that failed (walk, extract, recheck, redact, write)
	Stage string

	// Timestamp is when the fault was raised
	Timestamp time.Time

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Stage)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches kind sentinels so callers can use errors.Is(err, faults.ErrExtractionUnavailable)
func (e *Error) Is(target error) bool {
	var s sentinel
	if errors.As(target, &s) {
		return Kind(s) == e.Kind
	}
	return false
}

type sentinel Kind

func (s sentinel) Error() string { return Kind(s).String() }

// Sentinels for errors.Is checks
var (
	ErrUnreadableFile        error = sentinel(UnreadableFile)
	ErrUnsupportedType       error = sentinel(UnsupportedType)
	ErrExtractionUnavailable error = sentinel(ExtractionUnavailable)
	ErrRecheckUnavailable    error = sentinel(RecheckUnavailable)
	ErrOutputWriteFailure    error = sentinel(OutputWriteFailure)
	ErrConfiguration         error = sentinel(Configuration)
)

// New creates a classified fault
func New(kind Kind, stage, path string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Path:      path,
		Stage:     stage,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// Configf creates a run-level configuration fault
func Configf(format string, args ...any) *Error {
	return New(Configuration, "config", "", fmt.Errorf(format, args...))
}

// KindOf returns the fault kind carried by err, or KindUnknown
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var s sentinel
	if errors.As(err, &s) {
		return Kind(s)
	}
	return KindUnknown
}

// Wrap classifies err unless it already carries a fault kind
func Wrap(kind Kind, stage, path string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return New(kind, stage, path, err)
}
