// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gogama/fetchx/request"
)

// A Waiter specifies how long to wait before retrying a failed HTTP
// request attempt.
//
// Implementations of Waiter must be safe for concurrent use by multiple
// goroutines.
//
// The robust HTTP client, fetchx.Client, will not call the Waiter on a
// retry policy if the policy Decider returned false.
//
// This package provides three Waiter implementations, using the
// constructor functions NewFixedWaiter, NewExpWaiter, and
// NewHintWaiter. In addition it provides a concrete instance suitable
// for many typical use cases, DefaultWaiter.
type Waiter interface {
	Wait(e *request.Execution) time.Duration
}

const (
	// DefaultBaseWait is the base wait DefaultWaiter uses for its
	// exponential backoff fallback, producing fallback waits of
	// approximately 1s, 2s, 4s, and so on.
	DefaultBaseWait = 1 * time.Second
	// DefaultMaxWait is the ceiling DefaultWaiter imposes on every
	// computed wait, whether derived from a server hint header or from
	// the exponential backoff fallback.
	DefaultMaxWait = 60 * time.Second
)

const (
	// hintJitterWidth is the width of the positive-only jitter band
	// [1.0, 1.0+hintJitterWidth) applied to waits derived from the
	// X-RateLimit-Reset header. Under-waiting against a hard rate
	// limit reset risks another rejection, so this jitter only ever
	// lengthens the wait.
	hintJitterWidth = 0.2
	// expJitterHalfWidth is the half-width of the symmetric jitter
	// band [1.0-expJitterHalfWidth, 1.0+expJitterHalfWidth) applied
	// to exponential backoff waits.
	expJitterHalfWidth = hintJitterWidth / 2
)

// DefaultWaiter is the default retry wait policy. It honors the
// Retry-After and X-RateLimit-Reset response headers when present and
// parsable, and otherwise falls back to jittered exponential backoff
// starting at DefaultBaseWait. All waits are capped at DefaultMaxWait.
var DefaultWaiter = NewHintWaiter(
	NewExpWaiter(DefaultBaseWait, DefaultMaxWait, time.Now()),
	DefaultMaxWait,
	time.Now())

// NewFixedWaiter constructs a Waiter that always returns the given
// duration.
//
// Use NewFixedWaiter to obtain a constant retry backoff.
func NewFixedWaiter(d time.Duration) Waiter {
	return fixedWaiter(d)
}

type fixedWaiter time.Duration

func (w fixedWaiter) Wait(_ *request.Execution) time.Duration {
	return time.Duration(w)
}

// NewExpWaiter constructs a Waiter implementing capped exponential
// backoff with optional jitter.
//
// The wait before retry attempt n (zero-based) is:
//
//	wait := min(base * 2**n, max) * f
//
// where f is a jitter factor drawn uniformly from the band
// [0.9, 1.1), so the capped backoff value is perturbed by up to ±10%.
// Note that the cap is applied before jitter, so a jittered wait may
// slightly exceed max.
//
// Base and max must be positive values, and max must be at least equal
// to base.
//
// Parameter jitter supplies the source of randomness for the jitter
// factor. To make a waiter that does not jitter and simply returns the
// capped backoff value on each attempt, pass nil for jitter. Otherwise
// you may specify either a random number generator seed value (as a
// time.Time, int, or int64) or a random number generator (as a
// rand.Source or a *rand.Rand). If a seed value is specified, it is
// used to seed a random number generator for calculating jitter.
func NewExpWaiter(base, max time.Duration, jitter interface{}) Waiter {
	if base < 1 {
		panic("fetchx/retry: base must be positive")
	}
	if max < base {
		panic("fetchx/retry: max must be at least base")
	}
	return &expWaiter{
		base: base,
		max:  max,
		rand: jitterToRand(jitter),
	}
}

type expWaiter struct {
	base time.Duration
	max  time.Duration
	rand *rand.Rand
	lock sync.Mutex
}

func (w *expWaiter) Wait(e *request.Execution) time.Duration {
	exp := int64(1) << e.Attempt
	if exp < 1 {
		exp = 1<<63 - 1
	}

	wait := int64(w.base) * exp
	if wait < int64(w.base) || int64(w.max) < wait {
		wait = int64(w.max)
	}

	if w.rand == nil {
		return time.Duration(wait)
	}

	f := 1.0 - expJitterHalfWidth + 2.0*expJitterHalfWidth*w.unit()
	return time.Duration(float64(wait) * f)
}

// NewHintWaiter constructs a Waiter that derives the retry wait from
// rate limiting hints in the HTTP response headers of the most recent
// request attempt, delegating to a fallback Waiter when no usable hint
// is present. The rules are evaluated fresh on every call, first
// applicable rule winning:
//
// 1. Retry-After header, per RFC 7231. An integer value is taken as a
// number of seconds to wait; zero is honored as an explicit directive
// to retry immediately. An HTTP date value is taken as the instant to
// retry at, and applies only if it lies in the future. Neither form
// receives jitter: both are explicit server directives.
//
// 2. X-RateLimit-Reset header, an integer Unix timestamp in seconds.
// Applies only if the reset instant lies in the future. The resulting
// wait receives positive-only jitter, drawn uniformly from [1.0, 1.2),
// so that the waiter never retries before the stated reset.
//
// 3. Otherwise, the fallback Waiter's wait is returned.
//
// A header that is present but unparsable, or whose computed wait is
// not applicable under its own rule, falls through to the next rule.
// Waits produced by rules 1 and 2 are capped at max.
//
// Parameter jitter supplies the source of randomness for rule 2 and
// accepts the same types as in NewExpWaiter; nil disables the rule 2
// jitter.
func NewHintWaiter(fallback Waiter, max time.Duration, jitter interface{}) Waiter {
	if fallback == nil {
		panic("fetchx/retry: nil fallback waiter")
	}
	if max < 1 {
		panic("fetchx/retry: max must be positive")
	}
	return &hintWaiter{
		fallback: fallback,
		max:      max,
		rand:     jitterToRand(jitter),
	}
}

type hintWaiter struct {
	fallback Waiter
	max      time.Duration
	rand     *rand.Rand
	lock     sync.Mutex
}

func (w *hintWaiter) Wait(e *request.Execution) time.Duration {
	h := e.Header()
	if wait, ok := w.retryAfter(h); ok {
		return wait
	}
	if wait, ok := w.rateLimitReset(h); ok {
		return wait
	}
	return w.fallback.Wait(e)
}

func (w *hintWaiter) retryAfter(h http.Header) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return w.capped(time.Duration(secs) * time.Second), true
	}

	if t, err := http.ParseTime(v); err == nil {
		// Unlike the integer form, a date hint applies only if it is
		// strictly in the future.
		if wait := time.Until(t); wait > 0 {
			return w.capped(wait), true
		}
	}

	return 0, false
}

func (w *hintWaiter) rateLimitReset(h http.Header) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("X-RateLimit-Reset"))
	if v == "" {
		return 0, false
	}

	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}

	wait := time.Until(time.Unix(secs, 0))
	if wait <= 0 {
		return 0, false
	}

	wait = w.capped(wait)
	if w.rand != nil {
		wait = time.Duration(float64(wait) * (1.0 + hintJitterWidth*w.unit()))
	}
	return w.capped(wait), true
}

func (w *hintWaiter) capped(wait time.Duration) time.Duration {
	if wait > w.max {
		return w.max
	}
	return wait
}

func (w *expWaiter) unit() float64 {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.rand.Float64()
}

func (w *hintWaiter) unit() float64 {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.rand.Float64()
}

func jitterToRand(jitter interface{}) *rand.Rand {
	var s rand.Source
	switch j := jitter.(type) {
	case nil:
		return nil
	case time.Time:
		s = rand.NewSource(j.UnixNano())
	case int:
		s = rand.NewSource(int64(j))
	case int64:
		s = rand.NewSource(j)
	case *rand.Rand:
		if j == nil {
			panic("fetchx/retry: jitter may not be a typed nil")
		}
		return j
	case rand.Source:
		s = j
	default:
		panic("fetchx/retry: invalid jitter type")
	}
	return rand.New(s)
}
