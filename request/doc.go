// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package request provides the Plan and Execution types consumed and
produced by the robust HTTP client (fetchx.Client), as well as the
helper function BodyBytes for pre-buffering request bodies.

A Plan is a logical HTTP request which may be attempted multiple times
by the client if retries are needed. Unlike the lower-level
http.Request from net/http, whose body is a stream that can only be
consumed once, a Plan buffers the whole request body up front so that
a fresh http.Request can be produced for every attempt.

	p, err := request.NewPlan("POST", "https://example.com/items",
		`{"name":"widget"}`)

An Execution captures the evolving state of one execution of a Plan:
the zero-based attempt counter, the most recent response, its buffered
body, the most recent error, and timing information. The Execution is
passed to retry policies, timeout policies, and event handlers during
the execution, and is returned to the caller when the execution ends.
*/
package request
