// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/gogama/fetchx"
	"github.com/gogama/fetchx/request"
)

type key int

const idKey key = 0

// A Handler is a fetchx event handler that emits a structured log
// record for each execution lifecycle event. Install it into a
// fetchx.HandlerGroup with Install, or push it onto individual event
// chains with HandlerGroup.PushBack for coarser-grained logging.
//
// On BeforeExecutionStart the handler tags the execution with a
// freshly generated UUID, which appears in every subsequent record for
// that execution and can be read back with ExecutionID. Lifecycle
// detail is logged at Debug level, timeouts at Warn level, and the
// final outcome of each execution at Info level.
type Handler struct {
	logger *slog.Logger
}

// NewHandler returns a Handler that logs through the given logger,
// which must be non-nil.
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		panic("fetchx/logging: nil logger")
	}
	return &Handler{logger: logger}
}

// Install creates a Handler logging through logger and pushes it onto
// every event chain in g, returning the installed Handler.
func Install(g *fetchx.HandlerGroup, logger *slog.Logger) *Handler {
	h := NewHandler(logger)
	for _, evt := range fetchx.Events() {
		g.PushBack(evt, h)
	}
	return h
}

// ExecutionID returns the UUID the Handler assigned to the execution
// at BeforeExecutionStart, or the empty string if the execution has
// not passed through a Handler.
func ExecutionID(e *request.Execution) string {
	if id, ok := e.Value(idKey).(string); ok {
		return id
	}
	return ""
}

// Handle emits a log record for the event. It implements
// fetchx.Handler.
func (h *Handler) Handle(evt fetchx.Event, e *request.Execution) {
	switch evt {
	case fetchx.BeforeExecutionStart:
		e.SetValue(idKey, uuid.NewString())
		h.logger.Debug("execution starting",
			group(e),
			slog.String("method", e.Plan.Method),
			slog.String("url", e.Plan.URL.String()))
	case fetchx.BeforeAttempt:
		h.logger.Debug("attempt starting",
			group(e),
			slog.Int("attempt", e.Attempt))
	case fetchx.BeforeReadBody:
		h.logger.Debug("reading response body",
			group(e),
			slog.Int("attempt", e.Attempt),
			slog.Int64("content_length", e.Response.ContentLength))
	case fetchx.AfterAttemptTimeout:
		h.logger.Warn("attempt timed out",
			group(e),
			slog.Int("attempt", e.Attempt),
			slog.Int("attempt_timeouts", e.AttemptTimeouts))
	case fetchx.AfterAttempt:
		h.logger.Debug("attempt ended", attemptAttrs(e)...)
	case fetchx.AfterPlanTimeout:
		h.logger.Warn("plan timed out",
			group(e),
			slog.Int("attempt", e.Attempt),
			slog.Duration("duration", e.Duration()))
	case fetchx.AfterExecutionEnd:
		h.logger.Info("execution ended", endAttrs(e)...)
	}
}

func group(e *request.Execution) slog.Attr {
	return slog.Group("execution", "id", ExecutionID(e))
}

// attemptAttrs collects the attempt outcome plus any rate limiting
// hints the server sent, since the hints explain the wait the retry
// policy will choose next.
func attemptAttrs(e *request.Execution) []any {
	attrs := []any{
		group(e),
		slog.Int("attempt", e.Attempt),
		slog.Duration("duration", e.Duration()),
	}
	if e.Response != nil {
		attrs = append(attrs, slog.Int("status", e.StatusCode()))
		if v := e.Header().Get("Retry-After"); v != "" {
			attrs = append(attrs, slog.String("retry_after", v))
		}
		if v := e.Header().Get("X-RateLimit-Reset"); v != "" {
			attrs = append(attrs, slog.String("ratelimit_reset", v))
		}
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	return attrs
}

func endAttrs(e *request.Execution) []any {
	attrs := []any{
		group(e),
		slog.Int("attempts", e.Attempt+1),
		slog.Int("attempt_timeouts", e.AttemptTimeouts),
		slog.Duration("duration", e.Duration()),
	}
	if e.Response != nil {
		attrs = append(attrs, slog.Int("status", e.StatusCode()))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	return attrs
}
