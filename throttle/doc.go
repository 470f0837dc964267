// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package throttle provides fetchx.HTTPDoer middleware that limits the
// client-side request rate with a token bucket (golang.org/x/time/rate).
//
//	doer := throttle.NewDoer(http.DefaultClient, throttle.PerSecond(50, 10))
//	client := &fetchx.Client{HTTPDoer: doer}
package throttle
