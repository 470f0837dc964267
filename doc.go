// Copyright 2025 The fetchx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package fetchx provides a robust HTTP fetch layer with rate limit aware
retry support and other resilience features within a simple and
familiar interface.

Create a Client to begin making requests.

	client := &fetchx.Client{}
	ex, err := client.Get("https://www.example.com")
	...
	ex, err := client.Post("https://www.example.com/upload",
		"application/json", &buf)
	...
	ex, err := client.PostForm("http://example.com/form",
		url.Values{"key": {"Value"}, "id": {"123"}})

The default retry policy retries responses whose status code signals a
transient condition (408, 429, or any 5XX), honoring the server's
Retry-After and X-RateLimit-Reset headers when present and falling
back to capped, jittered exponential backoff when they are not.
Transport-level errors are not retried by default: they propagate to
the caller after the attempt that produced them.

For control over how the client sends HTTP requests and receives HTTP
responses, use a custom HTTPDoer. For example, use a Go standard
HTTP client:

	doer := &http.Client{
		..., // See package "net/http" for detailed documentation
	}
	client := &fetchx.Client{
		HTTPDoer: doer,
	}

Packages breaker and throttle provide HTTPDoer middleware adding a
circuit breaker and client-side request rate limiting, respectively:

	doer := breaker.NewDoer(throttle.NewDoer(http.DefaultClient,
		throttle.PerSecond(50, 10)), gobreaker.Settings{Name: "api"})
	client := &fetchx.Client{
		HTTPDoer: doer,
	}

For control over the client's retry decisions and timing, create a
custom retry policy using components from package retry:

	retryWaiter := retry.NewHintWaiter(
		retry.NewExpWaiter(250*time.Millisecond, 5*time.Second, time.Now()),
		5*time.Second, time.Now())
	retryPolicy := retry.NewPolicy(retry.DefaultDecider, retryWaiter)
	client := &fetchx.Client{
		RetryPolicy: retryPolicy,
	}

For control over the client's individual attempt timeouts, set a custom
timeout policy using package timeout:

	client := &fetchx.Client{
		TimeoutPolicy: timeout.Fixed(10*time.Second),
	}

To hook into the fine-grained details of the client's request execution
logic, install a handler into the appropriate handler chain. Package
logging uses this mechanism to emit structured logs for the execution
lifecycle:

	handlers := &fetchx.HandlerGroup{}
	logging.Install(handlers, slog.Default())
	handlers.PushBack(fetchx.BeforeAttempt, fetchx.HandlerFunc(
		func(_ fetchx.Event, e *request.Execution) {
			e.Request.Header.Set("X-Request-Attempt", strconv.Itoa(e.Attempt))
		}))
	client := &fetchx.Client{
		Handlers: handlers,
	}

Package fetchx provides basic interfaces for each method of the robust
client (Doer, Getter, Header, Poster, FormPoster, and IdleCloser); a
combined interface that composes all the basic methods (Executor); and
utility functions for working with a Doer (Inflate, Get, Head, Post,
and PostForm).
*/
package fetchx
