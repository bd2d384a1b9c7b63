// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

// Observable is implemented by pipeline components that report timings
type Observable interface {
	// ComponentName returns the component identifier used in timing records
	ComponentName() string
}

// NameOf returns the component name of v, or fallback
func NameOf(v any, fallback string) string {
	if o, ok := v.(Observable); ok {
		return o.ComponentName()
	}
	return fallback
}
