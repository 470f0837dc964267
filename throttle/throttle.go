// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package throttle

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/gogama/fetchx"
)

// A Doer wraps another fetchx.HTTPDoer behind a token bucket rate
// limiter. Use it as the HTTPDoer of a fetchx.Client to keep the
// client's request rate, including retries, under a remote service's
// published limit. This is the proactive half of rate limit handling;
// the reactive half is the default retry policy's handling of the
// Retry-After and X-RateLimit-Reset response headers.
//
// Doer is safe for concurrent use by multiple goroutines.
type Doer struct {
	limiter *rate.Limiter
	next    fetchx.HTTPDoer
}

// NewDoer wraps next behind limiter. Both must be non-nil.
func NewDoer(next fetchx.HTTPDoer, limiter *rate.Limiter) *Doer {
	if next == nil {
		panic("fetchx/throttle: nil doer")
	}
	if limiter == nil {
		panic("fetchx/throttle: nil limiter")
	}
	return &Doer{
		limiter: limiter,
		next:    next,
	}
}

// PerSecond constructs a token bucket limiter allowing n requests per
// second with the given burst size, for use with NewDoer.
func PerSecond(n float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(n), burst)
}

// Do waits until the limiter grants a token, honoring the request
// context, then sends the HTTP request through the wrapped HTTPDoer.
// If the context is cancelled, or its deadline would expire before a
// token becomes available, the context error is returned without
// sending the request.
func (d *Doer) Do(r *http.Request) (*http.Response, error) {
	if err := d.limiter.Wait(r.Context()); err != nil {
		return nil, err
	}
	return d.next.Do(r)
}

// Limiter returns the wrapped rate limiter, whose limit and burst may
// be adjusted at runtime.
func (d *Doer) Limiter() *rate.Limiter {
	return d.limiter
}

// CloseIdleConnections forwards to the wrapped HTTPDoer if it supports
// the method, and does nothing otherwise.
func (d *Doer) CloseIdleConnections() {
	if ic, ok := d.next.(fetchx.IdleCloser); ok {
		ic.CloseIdleConnections()
	}
}
