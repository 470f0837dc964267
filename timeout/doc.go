// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package timeout provides policies for setting timeouts on individual
// HTTP request attempts made while the robust HTTP client
// (fetchx.Client) executes a request plan.
package timeout
