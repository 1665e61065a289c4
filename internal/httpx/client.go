// Package httpx builds and executes one HTTP request per batch, classifies
// the outcome, and drives the retry state machine until a terminal result
// is reached.
package httpx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pilot-net/bulkfetch/internal/cookiejar"
	"github.com/pilot-net/bulkfetch/internal/headerresolver"
	"github.com/pilot-net/bulkfetch/internal/model"
	"github.com/pilot-net/bulkfetch/internal/retry"
)

// DryRunMode selects how Send treats the transport.
type DryRunMode string

const (
	DryRunNone  DryRunMode = ""
	DryRunCurl  DryRunMode = "curl"
	DryRunPlain DryRunMode = "plain"
)

// Config configures a Client. Spec is the request template shared by every
// envelope this client dispatches.
type Config struct {
	Spec            RequestSpec
	Timeout         time.Duration
	ResponseHeaders bool
	MaxBodyBytes    int64
	DryRun          DryRunMode
	Resolver        headerresolver.Resolver
	Jar             cookiejar.Jar
}

// Client executes requests for one configuration against a shared
// transport. It owns no per-request state; workers call Send concurrently.
type Client struct {
	http     *http.Client
	cfg      Config
	resolved map[string]string
}

// NewClient builds a Client using transport for connection pooling.
func NewClient(transport http.RoundTripper, cfg Config) *Client {
	return &Client{
		http: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		cfg:  cfg,
	}
}

// ResolveHeaders consults the configured header resolver once, before the
// first attempt of this configuration, and caches the result for every
// subsequent request.
func (c *Client) ResolveHeaders(ctx context.Context) error {
	if c.cfg.Resolver == nil {
		return nil
	}
	headers, err := c.cfg.Resolver.Resolve(ctx, c.cfg.Spec.Headers)
	if err != nil {
		return fmt.Errorf("resolving headers: %w", err)
	}
	c.resolved = headers
	return nil
}

// Result is the terminal outcome of dispatching one envelope.
type Result struct {
	Response      *model.HttpResponse
	Failure       *model.ErrorEnvelope
	CurlCommand   string // set instead of Response under DryRunCurl
	FireAndForget bool
	Attempts      int
}

// Send drives env through ATTEMPTING/DELAY until a terminal state is
// reached: OK, FAILED (permanent), or GIVEN_UP (retries exhausted).
func (c *Client) Send(ctx context.Context, env *model.BatchEnvelope, policy model.RetryPolicy) Result {
	if policy.MaxRetries == model.FireAndForget {
		return c.sendFireAndForget(ctx, env)
	}

	var prevDelay time.Duration
	attempt := 0

	for {
		req, err := buildRequest(ctx, c.cfg.Spec, env.Batch, c.resolved)
		if err != nil {
			return Result{Failure: &model.ErrorEnvelope{
				URL: c.cfg.Spec.URL, Method: c.cfg.Spec.Method, Message: err.Error(), TraceID: env.ID,
			}, Attempts: attempt}
		}
		c.applyCookies(req)

		switch c.cfg.DryRun {
		case DryRunPlain:
			return Result{Attempts: attempt + 1}
		case DryRunCurl:
			cmd, err := curlCommand(req)
			if err != nil {
				return Result{Failure: &model.ErrorEnvelope{Message: err.Error(), TraceID: env.ID}, Attempts: attempt}
			}
			return Result{CurlCommand: cmd, Attempts: attempt + 1}
		}

		env.AttemptCount = attempt
		resp, httpErr := c.http.Do(req)
		attempt++

		var outcome retry.Outcome
		if httpErr != nil {
			outcome = retry.ClassifyError(httpErr)
		} else {
			c.storeCookies(resp)
			outcome = retry.ClassifyResponse(resp, policy.RetryOn)
		}

		if outcome.Class == model.ClassOK {
			parsed, err := parseBody(resp, c.cfg.MaxBodyBytes, c.cfg.ResponseHeaders)
			resp.Body.Close()
			if err != nil {
				return Result{Failure: &model.ErrorEnvelope{
					URL: req.URL.String(), Method: req.Method, Message: err.Error(), TraceID: env.ID,
				}, Attempts: attempt}
			}
			parsed.TraceID = env.ID
			return Result{Response: &parsed, Attempts: attempt}
		}
		if resp != nil {
			resp.Body.Close()
		}

		if !retry.ShouldRetry(policy, outcome, attempt-1) {
			return Result{Failure: c.failureFor(req, outcome, httpErr, env.ID), Attempts: attempt}
		}

		delay := retry.Delay(policy, outcome, prevDelay)
		prevDelay = delay
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Result{Failure: &model.ErrorEnvelope{
				URL: req.URL.String(), Method: req.Method, Message: ctx.Err().Error(), TraceID: env.ID,
			}, Attempts: attempt}
		}
	}
}

// sendFireAndForget issues the request without awaiting completion beyond
// what's needed to release the connection; it is always terminal OK.
func (c *Client) sendFireAndForget(ctx context.Context, env *model.BatchEnvelope) Result {
	req, err := buildRequest(ctx, c.cfg.Spec, env.Batch, c.resolved)
	if err != nil {
		return Result{FireAndForget: true, Attempts: 1}
	}
	c.applyCookies(req)

	go func() {
		resp, err := c.http.Do(req)
		if err == nil {
			resp.Body.Close()
		}
	}()
	return Result{FireAndForget: true, Attempts: 1}
}

func (c *Client) applyCookies(req *http.Request) {
	if c.cfg.Jar == nil {
		return
	}
	for _, ck := range c.cfg.Jar.CookiesFor(req.URL) {
		req.AddCookie(ck)
	}
}

func (c *Client) storeCookies(resp *http.Response) {
	if c.cfg.Jar == nil || resp == nil {
		return
	}
	if cookies := resp.Cookies(); len(cookies) > 0 {
		c.cfg.Jar.SetCookies(resp.Request.URL, cookies)
	}
}

func (c *Client) failureFor(req *http.Request, outcome retry.Outcome, httpErr error, traceID uuid.UUID) *model.ErrorEnvelope {
	msg := outcome.Class.String()
	if httpErr != nil {
		msg = httpErr.Error()
	}
	return &model.ErrorEnvelope{
		URL:        req.URL.String(),
		Method:     req.Method,
		Status:     outcome.Status,
		StatusText: http.StatusText(outcome.Status),
		Message:    msg,
		TraceID:    traceID,
	}
}
