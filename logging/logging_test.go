// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogama/fetchx"
	"github.com/gogama/fetchx/request"
	"github.com/gogama/fetchx/retry"
)

func TestNewHandler(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		assert.PanicsWithValue(t, "fetchx/logging: nil logger", func() {
			NewHandler(nil)
		})
	})
	t.Run("valid logger", func(t *testing.T) {
		h := NewHandler(slog.New(&recorder{}))
		assert.NotNil(t, h)
	})
}

func TestExecutionID(t *testing.T) {
	rec := &recorder{}
	h := NewHandler(slog.New(rec))
	e := executionFor(t, "POST", "http://test.invalid/things")

	assert.Equal(t, "", ExecutionID(e))

	h.Handle(fetchx.BeforeExecutionStart, e)
	id := ExecutionID(e)
	_, err := uuid.Parse(id)
	assert.NoError(t, err, "execution ID must be a UUID")

	h.Handle(fetchx.BeforeAttempt, e)
	h.Handle(fetchx.AfterAttempt, e)
	assert.Equal(t, id, ExecutionID(e), "ID is stable for the execution's life")
	for _, entry := range rec.all() {
		assert.Equal(t, id, entry.executionID())
	}
}

func TestHandle(t *testing.T) {
	newExecution := func(t *testing.T) *request.Execution {
		e := executionFor(t, "GET", "http://test.invalid/")
		e.Start = time.Now().Add(-time.Second)
		return e
	}

	t.Run("BeforeExecutionStart", func(t *testing.T) {
		rec := &recorder{}
		h := NewHandler(slog.New(rec))
		h.Handle(fetchx.BeforeExecutionStart, newExecution(t))
		entry := rec.only(t)
		assert.Equal(t, slog.LevelDebug, entry.level)
		assert.Equal(t, "execution starting", entry.msg)
		assert.Equal(t, "GET", entry.attrs["method"].String())
		assert.Equal(t, "http://test.invalid/", entry.attrs["url"].String())
	})
	t.Run("BeforeAttempt", func(t *testing.T) {
		rec := &recorder{}
		h := NewHandler(slog.New(rec))
		e := newExecution(t)
		e.Attempt = 2
		h.Handle(fetchx.BeforeAttempt, e)
		entry := rec.only(t)
		assert.Equal(t, slog.LevelDebug, entry.level)
		assert.Equal(t, "attempt starting", entry.msg)
		assert.Equal(t, int64(2), entry.attrs["attempt"].Int64())
	})
	t.Run("BeforeReadBody", func(t *testing.T) {
		rec := &recorder{}
		h := NewHandler(slog.New(rec))
		e := newExecution(t)
		e.Response = &http.Response{StatusCode: 200, ContentLength: 11}
		h.Handle(fetchx.BeforeReadBody, e)
		entry := rec.only(t)
		assert.Equal(t, slog.LevelDebug, entry.level)
		assert.Equal(t, "reading response body", entry.msg)
		assert.Equal(t, int64(11), entry.attrs["content_length"].Int64())
	})
	t.Run("AfterAttemptTimeout", func(t *testing.T) {
		rec := &recorder{}
		h := NewHandler(slog.New(rec))
		e := newExecution(t)
		e.AttemptTimeouts = 1
		h.Handle(fetchx.AfterAttemptTimeout, e)
		entry := rec.only(t)
		assert.Equal(t, slog.LevelWarn, entry.level)
		assert.Equal(t, "attempt timed out", entry.msg)
		assert.Equal(t, int64(1), entry.attrs["attempt_timeouts"].Int64())
	})
	t.Run("AfterAttempt with rate limit hints", func(t *testing.T) {
		rec := &recorder{}
		h := NewHandler(slog.New(rec))
		e := newExecution(t)
		header := make(http.Header)
		header.Set("Retry-After", "5")
		header.Set("X-RateLimit-Reset", "1700000000")
		e.Response = &http.Response{StatusCode: 429, Header: header}
		h.Handle(fetchx.AfterAttempt, e)
		entry := rec.only(t)
		assert.Equal(t, slog.LevelDebug, entry.level)
		assert.Equal(t, "attempt ended", entry.msg)
		assert.Equal(t, int64(429), entry.attrs["status"].Int64())
		assert.Equal(t, "5", entry.attrs["retry_after"].String())
		assert.Equal(t, "1700000000", entry.attrs["ratelimit_reset"].String())
	})
	t.Run("AfterAttempt with error", func(t *testing.T) {
		rec := &recorder{}
		h := NewHandler(slog.New(rec))
		e := newExecution(t)
		e.Err = io.ErrUnexpectedEOF
		h.Handle(fetchx.AfterAttempt, e)
		entry := rec.only(t)
		assert.Equal(t, io.ErrUnexpectedEOF.Error(), entry.attrs["error"].String())
		_, hasStatus := entry.attrs["status"]
		assert.False(t, hasStatus)
	})
	t.Run("AfterPlanTimeout", func(t *testing.T) {
		rec := &recorder{}
		h := NewHandler(slog.New(rec))
		h.Handle(fetchx.AfterPlanTimeout, newExecution(t))
		entry := rec.only(t)
		assert.Equal(t, slog.LevelWarn, entry.level)
		assert.Equal(t, "plan timed out", entry.msg)
	})
	t.Run("AfterExecutionEnd", func(t *testing.T) {
		rec := &recorder{}
		h := NewHandler(slog.New(rec))
		e := newExecution(t)
		e.End = e.Start.Add(time.Second)
		e.Attempt = 2
		e.Response = &http.Response{StatusCode: 200}
		h.Handle(fetchx.AfterExecutionEnd, e)
		entry := rec.only(t)
		assert.Equal(t, slog.LevelInfo, entry.level)
		assert.Equal(t, "execution ended", entry.msg)
		assert.Equal(t, int64(3), entry.attrs["attempts"].Int64())
		assert.Equal(t, int64(200), entry.attrs["status"].Int64())
		assert.Equal(t, time.Second, entry.attrs["duration"].Duration())
	})
}

// TestInstall runs a full client execution with a Handler installed on
// every event chain and checks the resulting record stream.
func TestInstall(t *testing.T) {
	rec := &recorder{}
	g := &fetchx.HandlerGroup{}
	h := Install(g, slog.New(rec))
	require.NotNil(t, h)

	doer := &scriptedDoer{
		responses: []*http.Response{
			{
				StatusCode: 503,
				Header:     http.Header{"Retry-After": []string{"1"}},
				Body:       io.NopCloser(strings.NewReader("busy")),
			},
			{
				StatusCode: 200,
				Body:       io.NopCloser(strings.NewReader("ok")),
			},
		},
	}
	client := &fetchx.Client{
		HTTPDoer:    doer,
		RetryPolicy: retry.NewPolicy(retry.DefaultDecider, retry.NewFixedWaiter(0)),
		Handlers:    g,
	}
	e, err := client.Get("http://test.invalid/busy")
	require.NoError(t, err)
	require.Equal(t, 200, e.StatusCode())
	require.Equal(t, 1, e.Attempt)

	entries := rec.all()
	var msgs []string
	for _, entry := range entries {
		msgs = append(msgs, entry.msg)
	}
	assert.Equal(t, []string{
		"execution starting",
		"attempt starting",
		"reading response body",
		"attempt ended",
		"attempt starting",
		"reading response body",
		"attempt ended",
		"execution ended",
	}, msgs)

	id := ExecutionID(e)
	_, uuidErr := uuid.Parse(id)
	assert.NoError(t, uuidErr)
	for _, entry := range entries {
		assert.Equal(t, id, entry.executionID())
	}

	first := entries[3]
	assert.Equal(t, int64(503), first.attrs["status"].Int64())
	assert.Equal(t, "1", first.attrs["retry_after"].String())
	last := entries[len(entries)-1]
	assert.Equal(t, int64(2), last.attrs["attempts"].Int64())
	assert.Equal(t, int64(200), last.attrs["status"].Int64())
}

func executionFor(t *testing.T, method, u string) *request.Execution {
	p, err := request.NewPlan(method, u, nil)
	require.NoError(t, err)
	return &request.Execution{Plan: p}
}

type scriptedDoer struct {
	responses []*http.Response
	calls     int
}

func (d *scriptedDoer) Do(*http.Request) (*http.Response, error) {
	resp := d.responses[d.calls]
	d.calls++
	return resp, nil
}

type entry struct {
	level slog.Level
	msg   string
	attrs map[string]slog.Value
}

// executionID digs the execution ID out of the record's execution
// group attribute.
func (en entry) executionID() string {
	v, ok := en.attrs["execution"]
	if !ok || v.Kind() != slog.KindGroup {
		return ""
	}
	for _, a := range v.Group() {
		if a.Key == "id" {
			return a.Value.String()
		}
	}
	return ""
}

// recorder is a slog.Handler that captures records for inspection.
type recorder struct {
	mu      sync.Mutex
	entries []entry
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	en := entry{
		level: rec.Level,
		msg:   rec.Message,
		attrs: make(map[string]slog.Value),
	}
	rec.Attrs(func(a slog.Attr) bool {
		en.attrs[a.Key] = a.Value
		return true
	})
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, en)
	return nil
}

func (r *recorder) WithAttrs([]slog.Attr) slog.Handler { return r }

func (r *recorder) WithGroup(string) slog.Handler { return r }

func (r *recorder) all() []entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entry(nil), r.entries...)
}

func (r *recorder) only(t *testing.T) entry {
	t.Helper()
	entries := r.all()
	require.Len(t, entries, 1)
	return entries[0]
}
