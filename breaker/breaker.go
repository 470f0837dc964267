// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package breaker

import (
	"errors"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/gogama/fetchx"
)

// errServerStatus marks a 5XX response as a breaker failure. It never
// escapes Do: the response itself is handed back to the caller.
var errServerStatus = errors.New("fetchx/breaker: server error status")

// A Doer wraps another fetchx.HTTPDoer in a circuit breaker. Use it
// as the HTTPDoer of a fetchx.Client to stop hammering a remote
// service that is failing hard.
//
// Transport-level errors and HTTP 5XX responses count as breaker
// failures. A 5XX response obtained while the breaker is closed still
// reaches the caller unchanged, so the retry policy, not the breaker,
// owns status code handling. When the breaker is open, Do fails fast
// with gobreaker.ErrOpenState without touching the network; the
// robust client treats that like any other transport-level error and
// does not retry it under the default retry policy.
//
// Doer is safe for concurrent use by multiple goroutines.
type Doer struct {
	breaker *gobreaker.CircuitBreaker
	next    fetchx.HTTPDoer
}

// NewDoer wraps next, which must be non-nil, in a circuit breaker
// configured by settings.
func NewDoer(next fetchx.HTTPDoer, settings gobreaker.Settings) *Doer {
	if next == nil {
		panic("fetchx/breaker: nil doer")
	}
	return &Doer{
		breaker: gobreaker.NewCircuitBreaker(settings),
		next:    next,
	}
}

// Do sends the HTTP request through the wrapped HTTPDoer under the
// protection of the circuit breaker.
func (d *Doer) Do(r *http.Request) (*http.Response, error) {
	result, err := d.breaker.Execute(func() (interface{}, error) {
		resp, err := d.next.Do(r)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})
	if resp, ok := result.(*http.Response); ok {
		return resp, nil
	}
	return nil, err
}

// State returns the current state of the underlying circuit breaker.
func (d *Doer) State() gobreaker.State {
	return d.breaker.State()
}

// Counts returns the internal counters of the underlying circuit
// breaker.
func (d *Doer) Counts() gobreaker.Counts {
	return d.breaker.Counts()
}

// CloseIdleConnections forwards to the wrapped HTTPDoer if it supports
// the method, and does nothing otherwise.
func (d *Doer) CloseIdleConnections() {
	if ic, ok := d.next.(fetchx.IdleCloser); ok {
		ic.CloseIdleConnections()
	}
}
