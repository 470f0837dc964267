// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package logging emits structured log records (log/slog) for the
// lifecycle events of an HTTP request plan execution. The robust HTTP
// client itself is silent; logging is an event handler the caller
// installs:
//
//	handlers := &fetchx.HandlerGroup{}
//	logging.Install(handlers, slog.Default())
//	client := &fetchx.Client{Handlers: handlers}
//
// Each execution is tagged with a UUID so that the records belonging
// to one logical request, across all of its retry attempts, can be
// correlated.
package logging
