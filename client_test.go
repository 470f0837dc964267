// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package fetchx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gogama/fetchx/request"
	"github.com/gogama/fetchx/retry"
	"github.com/gogama/fetchx/timeout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// countingDoer is an HTTPDoer whose responses are scripted by a
// function of the zero-based call number. It counts its calls.
type countingDoer struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, r *http.Request) (*http.Response, error)
}

func (d *countingDoer) Do(r *http.Request) (*http.Response, error) {
	d.mu.Lock()
	call := d.calls
	d.calls++
	fn := d.fn
	d.mu.Unlock()
	return fn(call, r)
}

func (d *countingDoer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func textResponse(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// recordingPolicy delegates retry decisions and wait calculations to
// the wrapped components, records every computed wait, and returns a
// zero wait to the client so tests never sleep.
type recordingPolicy struct {
	decider retry.Decider
	waiter  retry.Waiter
	mu      sync.Mutex
	waits   []time.Duration
}

func (p *recordingPolicy) Decide(e *request.Execution) bool {
	return p.decider.Decide(e)
}

func (p *recordingPolicy) Wait(e *request.Execution) time.Duration {
	w := p.waiter.Wait(e)
	p.mu.Lock()
	p.waits = append(p.waits, w)
	p.mu.Unlock()
	return 0
}

func (p *recordingPolicy) recorded() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	waits := make([]time.Duration, len(p.waits))
	copy(waits, p.waits)
	return waits
}

func zeroWaitPolicy(d retry.Decider) *recordingPolicy {
	return &recordingPolicy{decider: d, waiter: retry.NewFixedWaiter(0)}
}

func TestDoSingleAttempt(t *testing.T) {
	// Anything outside {408, 429} and the 5XX range ends the execution
	// on the first attempt.
	codes := []int{200, 201, 204, 301, 304, 400, 401, 403, 404, 409}
	for i, code := range codes {
		t.Run(fmt.Sprintf("codes[%d]=%d", i, code), func(t *testing.T) {
			doer := &countingDoer{
				fn: func(_ int, _ *http.Request) (*http.Response, error) {
					return textResponse(code, "as-is", nil), nil
				},
			}
			policy := zeroWaitPolicy(retry.DefaultDecider)
			cl := &Client{HTTPDoer: doer, RetryPolicy: policy}
			p, err := request.NewPlan("GET", "http://test.local/single", nil)
			require.NoError(t, err)
			e, err := cl.Do(p)
			assert.NoError(t, err)
			assert.Equal(t, 1, doer.callCount())
			assert.Equal(t, 0, e.Attempt)
			assert.Equal(t, code, e.StatusCode())
			assert.Equal(t, []byte("as-is"), e.Body)
			assert.Empty(t, policy.recorded())
		})
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	doer := &countingDoer{
		fn: func(call int, _ *http.Request) (*http.Response, error) {
			return textResponse(500, fmt.Sprintf("attempt %d", call), nil), nil
		},
	}
	policy := zeroWaitPolicy(retry.Times(3).And(retry.RetryableStatus))
	cl := &Client{HTTPDoer: doer, RetryPolicy: policy}
	p, err := request.NewPlan("GET", "http://test.local/exhaust", nil)
	require.NoError(t, err)
	e, err := cl.Do(p)
	// Exhausting retries is not an error: the last response is
	// returned as-is.
	assert.NoError(t, err)
	assert.Equal(t, 4, doer.callCount())
	assert.Equal(t, 3, e.Attempt)
	assert.Equal(t, 500, e.StatusCode())
	assert.Equal(t, []byte("attempt 3"), e.Body)
}

func TestDoRetryThenSuccess(t *testing.T) {
	doer := &countingDoer{
		fn: func(call int, _ *http.Request) (*http.Response, error) {
			if call < 2 {
				return textResponse(503, "unavailable", nil), nil
			}
			return textResponse(200, "finally", nil), nil
		},
	}
	cl := &Client{HTTPDoer: doer, RetryPolicy: zeroWaitPolicy(retry.DefaultDecider)}
	p, err := request.NewPlan("GET", "http://test.local/flaky", nil)
	require.NoError(t, err)
	e, err := cl.Do(p)
	assert.NoError(t, err)
	assert.Equal(t, 3, doer.callCount())
	assert.Equal(t, 2, e.Attempt)
	assert.Equal(t, 200, e.StatusCode())
	assert.Equal(t, []byte("finally"), e.Body)
}

func TestDoTransportErrorNotRetried(t *testing.T) {
	transportErr := errors.New("connection vaporized")
	doer := &countingDoer{
		fn: func(_ int, _ *http.Request) (*http.Response, error) {
			return nil, transportErr
		},
	}
	cl := &Client{HTTPDoer: doer}
	p, err := request.NewPlan("GET", "http://test.local/broken", nil)
	require.NoError(t, err)
	e, err := cl.Do(p)
	require.Error(t, err)
	assert.Equal(t, 1, doer.callCount())
	assert.Equal(t, 0, e.Attempt)
	assert.Nil(t, e.Response)
	assert.Nil(t, e.Body)
	var urlErr *url.Error
	require.ErrorAs(t, err, &urlErr)
	assert.ErrorIs(t, err, transportErr)
	assert.Same(t, err, e.Err)
}

func TestDoBodyReadError(t *testing.T) {
	doer := &countingDoer{
		fn: func(_ int, _ *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: 200,
				Header:     make(http.Header),
				Body:       io.NopCloser(&brokenReader{}),
			}, nil
		},
	}
	cl := &Client{HTTPDoer: doer}
	p, err := request.NewPlan("GET", "http://test.local/truncated", nil)
	require.NoError(t, err)
	e, err := cl.Do(p)
	require.Error(t, err)
	assert.Equal(t, 1, doer.callCount())
	assert.NotNil(t, e.Response)
	var urlErr *url.Error
	assert.ErrorAs(t, err, &urlErr)
}

type brokenReader struct{}

func (*brokenReader) Read(_ []byte) (int, error) {
	return 0, errors.New("mid-body failure")
}

func TestDoHonorsRetryAfter(t *testing.T) {
	h := make(http.Header)
	h.Set("Retry-After", "5")
	doer := &countingDoer{
		fn: func(call int, _ *http.Request) (*http.Response, error) {
			if call == 0 {
				return textResponse(429, "slow down", h), nil
			}
			return textResponse(200, "ok", nil), nil
		},
	}
	policy := &recordingPolicy{decider: retry.DefaultDecider, waiter: retry.DefaultWaiter}
	cl := &Client{HTTPDoer: doer, RetryPolicy: policy}
	p, err := request.NewPlan("GET", "http://test.local/limited", nil)
	require.NoError(t, err)
	e, err := cl.Do(p)
	assert.NoError(t, err)
	assert.Equal(t, 200, e.StatusCode())
	assert.Equal(t, []time.Duration{5 * time.Second}, policy.recorded())
}

func TestDoBackoffSequence(t *testing.T) {
	doer := &countingDoer{
		fn: func(_ int, _ *http.Request) (*http.Response, error) {
			return textResponse(500, "still broken", nil), nil
		},
	}
	// Jitter-free waiter so the exact backoff sequence is observable.
	policy := &recordingPolicy{
		decider: retry.Times(3).And(retry.RetryableStatus),
		waiter: retry.NewHintWaiter(
			retry.NewExpWaiter(1*time.Second, 60*time.Second, nil),
			60*time.Second, nil),
	}
	cl := &Client{HTTPDoer: doer, RetryPolicy: policy}
	p, err := request.NewPlan("GET", "http://test.local/backoff", nil)
	require.NoError(t, err)
	_, err = cl.Do(p)
	assert.NoError(t, err)
	assert.Equal(t, 4, doer.callCount())
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, policy.recorded())
}

func TestDoConcurrentExecutionsIndependent(t *testing.T) {
	var mu sync.Mutex
	callsByPath := map[string]int{}
	doer := &countingDoer{
		fn: func(_ int, r *http.Request) (*http.Response, error) {
			mu.Lock()
			call := callsByPath[r.URL.Path]
			callsByPath[r.URL.Path]++
			mu.Unlock()
			if r.URL.Path == "/flaky" && call < 2 {
				return textResponse(503, "unavailable", nil), nil
			}
			return textResponse(200, r.URL.Path, nil), nil
		},
	}
	cl := &Client{HTTPDoer: doer, RetryPolicy: zeroWaitPolicy(retry.DefaultDecider)}

	var g errgroup.Group
	g.Go(func() error {
		p, err := request.NewPlan("GET", "http://test.local/flaky", nil)
		if err != nil {
			return err
		}
		e, err := cl.Do(p)
		if err != nil {
			return err
		}
		if e.Attempt != 2 {
			return fmt.Errorf("flaky execution made %d retries, want 2", e.Attempt)
		}
		if e.StatusCode() != 200 {
			return fmt.Errorf("flaky execution got status %d, want 200", e.StatusCode())
		}
		return nil
	})
	g.Go(func() error {
		p, err := request.NewPlan("GET", "http://test.local/ok", nil)
		if err != nil {
			return err
		}
		e, err := cl.Do(p)
		if err != nil {
			return err
		}
		if e.Attempt != 0 {
			return fmt.Errorf("ok execution made %d retries, want 0", e.Attempt)
		}
		return nil
	})
	require.NoError(t, g.Wait())
	assert.Equal(t, 4, doer.callCount())
}

func TestDoPlanTimeoutDuringRetryWait(t *testing.T) {
	doer := &countingDoer{
		fn: func(_ int, _ *http.Request) (*http.Response, error) {
			return textResponse(503, "unavailable", nil), nil
		},
	}
	var events []Event
	handlers := &HandlerGroup{}
	handlers.PushBack(AfterPlanTimeout, HandlerFunc(func(evt Event, _ *request.Execution) {
		events = append(events, evt)
	}))
	cl := &Client{
		HTTPDoer:      doer,
		RetryPolicy:   retry.NewPolicy(retry.DefaultDecider, retry.NewFixedWaiter(10*time.Second)),
		TimeoutPolicy: timeout.Fixed(time.Second),
		Handlers:      handlers,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	p, err := request.NewPlanWithContext(ctx, "GET", "http://test.local/slow", nil)
	require.NoError(t, err)
	start := time.Now()
	e, err := cl.Do(p)
	elapsed := time.Since(start)
	require.Error(t, err)
	assert.Less(t, elapsed, 5*time.Second, "plan timeout must cut the retry wait short")
	assert.Equal(t, 1, doer.callCount())
	assert.True(t, e.Timeout())
	assert.Equal(t, []Event{AfterPlanTimeout}, events)
}

func TestDoEventOrder(t *testing.T) {
	doer := &countingDoer{
		fn: func(call int, _ *http.Request) (*http.Response, error) {
			if call == 0 {
				return textResponse(503, "unavailable", nil), nil
			}
			return textResponse(200, "ok", nil), nil
		},
	}
	var events []Event
	handlers := &HandlerGroup{}
	for _, evt := range Events() {
		handlers.PushBack(evt, HandlerFunc(func(evt Event, _ *request.Execution) {
			events = append(events, evt)
		}))
	}
	cl := &Client{HTTPDoer: doer, RetryPolicy: zeroWaitPolicy(retry.DefaultDecider), Handlers: handlers}
	p, err := request.NewPlan("GET", "http://test.local/events", nil)
	require.NoError(t, err)
	_, err = cl.Do(p)
	require.NoError(t, err)
	assert.Equal(t, []Event{
		BeforeExecutionStart,
		BeforeAttempt, BeforeReadBody, AfterAttempt,
		BeforeAttempt, BeforeReadBody, AfterAttempt,
		AfterExecutionEnd,
	}, events)
}

func TestClientAgainstServers(t *testing.T) {
	for _, server := range servers {
		t.Run(serverName(server), func(t *testing.T) {
			t.Run("get", func(t *testing.T) {
				cl := &Client{HTTPDoer: server.Client()}
				i := &serverInstruction{
					StatusCode: 200,
					Body:       []bodyChunk{{Data: []byte("hello")}},
				}
				e, err := cl.Do(i.toPlan(context.Background(), "POST", server))
				require.NoError(t, err)
				assert.Equal(t, 200, e.StatusCode())
				assert.Equal(t, []byte("hello"), e.Body)
				assert.Equal(t, 0, e.Attempt)
				assert.True(t, e.Started())
				assert.True(t, e.Ended())
			})
			t.Run("retryable status", func(t *testing.T) {
				cl := &Client{
					HTTPDoer:    server.Client(),
					RetryPolicy: zeroWaitPolicy(retry.Times(1).And(retry.RetryableStatus)),
				}
				i := &serverInstruction{StatusCode: 503}
				e, err := cl.Do(i.toPlan(context.Background(), "POST", server))
				require.NoError(t, err)
				assert.Equal(t, 503, e.StatusCode())
				assert.Equal(t, 1, e.Attempt)
			})
			t.Run("retry hint header", func(t *testing.T) {
				policy := &recordingPolicy{
					decider: retry.Times(1).And(retry.RetryableStatus),
					waiter:  retry.DefaultWaiter,
				}
				cl := &Client{
					HTTPDoer:    server.Client(),
					RetryPolicy: policy,
				}
				i := &serverInstruction{
					StatusCode: 429,
					Header:     map[string]string{"Retry-After": "2"},
				}
				e, err := cl.Do(i.toPlan(context.Background(), "POST", server))
				require.NoError(t, err)
				assert.Equal(t, 429, e.StatusCode())
				assert.Equal(t, []time.Duration{2 * time.Second}, policy.recorded())
			})
			t.Run("attempt timeout", func(t *testing.T) {
				cl := &Client{
					HTTPDoer:      server.Client(),
					RetryPolicy:   retry.Never,
					TimeoutPolicy: timeout.Fixed(50 * time.Millisecond),
				}
				i := &serverInstruction{
					HeaderPause: 2 * time.Second,
					StatusCode:  200,
				}
				e, err := cl.Do(i.toPlan(context.Background(), "POST", server))
				require.Error(t, err)
				assert.True(t, e.Timeout())
				assert.Equal(t, 1, e.AttemptTimeouts)
			})
		})
	}
}

func TestClientVerbs(t *testing.T) {
	cl := &Client{HTTPDoer: httpServer.Client()}
	i := &serverInstruction{
		StatusCode: 200,
		Body:       []bodyChunk{{Data: []byte("verbs")}},
	}
	t.Run("Post", func(t *testing.T) {
		e, err := cl.Post(httpServer.URL, "application/json", i.toJSON())
		require.NoError(t, err)
		assert.Equal(t, 200, e.StatusCode())
		assert.Equal(t, []byte("verbs"), e.Body)
	})
	t.Run("Get", func(t *testing.T) {
		// The test server requires an instruction body, so a bare GET
		// is rejected; the rejection exercises the verb path end to
		// end all the same.
		e, err := cl.Get(httpServer.URL)
		require.NoError(t, err)
		assert.Equal(t, 400, e.StatusCode())
	})
	t.Run("Head", func(t *testing.T) {
		e, err := cl.Head(httpServer.URL)
		require.NoError(t, err)
		assert.Equal(t, 400, e.StatusCode())
		assert.Empty(t, e.Body)
	})
	t.Run("PostForm", func(t *testing.T) {
		e, err := cl.PostForm(httpServer.URL, url.Values{"a": {"b"}})
		require.NoError(t, err)
		assert.Equal(t, 400, e.StatusCode())
	})
}

type idleCloserDoer struct {
	countingDoer
	closed int
}

func (d *idleCloserDoer) CloseIdleConnections() {
	d.closed++
}

func TestCloseIdleConnections(t *testing.T) {
	t.Run("supported", func(t *testing.T) {
		doer := &idleCloserDoer{}
		cl := &Client{HTTPDoer: doer}
		cl.CloseIdleConnections()
		cl.CloseIdleConnections()
		assert.Equal(t, 2, doer.closed)
	})
	t.Run("unsupported", func(t *testing.T) {
		doer := &countingDoer{}
		cl := &Client{HTTPDoer: doer}
		assert.NotPanics(t, cl.CloseIdleConnections)
	})
}
