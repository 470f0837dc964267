// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package breaker provides fetchx.HTTPDoer middleware that protects a
// remote service with a circuit breaker (github.com/sony/gobreaker).
//
//	doer := breaker.NewDoer(http.DefaultClient, gobreaker.Settings{
//		Name: "billing-api",
//	})
//	client := &fetchx.Client{HTTPDoer: doer}
package breaker
