// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package transient classifies errors encountered while making HTTP
// request attempts according to whether they are transient, in other
// words whether a retry of the failed attempt has some prospect of
// success. The classification drives the robust HTTP client's timeout
// accounting and the opt-in retry.TransientErr decider.
package transient
