// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry provides flexible policies for retrying failed attempts
// during an HTTP request plan execution, and for deciding how long to
// wait before retrying.
//
// The interface Policy defines a retry Policy. A Policy instance can be
// constructed using NewPolicy by providing a decision-maker, Decider,
// and a wait time calculator, Waiter. Both Decider and Waiter have
// constructors for common use cases, so that a useful policy can be
// quickly assembled:
//
//	decider := retry.Times(3).
//	               And(retry.RetryableStatus.Or(retry.TransientErr))
//	waiter := retry.NewHintWaiter(
//	              retry.NewExpWaiter(100*time.Millisecond, 2*time.Second, time.Now()),
//	              2*time.Second, time.Now())
//	policy := retry.NewPolicy(decider, waiter)
//
// The default policy, DefaultPolicy, retries responses carrying a
// retryable status code (408, 429, or any 5XX) up to DefaultTimes
// times, honoring the Retry-After and X-RateLimit-Reset response
// headers when the server provides them and falling back to capped,
// jittered exponential backoff when it does not.
//
// If the built-in functionality is insufficient, fully custom retry
// policies can be created via custom implementations of Decider,
// Waiter, or Policy.
package retry
