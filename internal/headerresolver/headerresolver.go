// Package headerresolver implements the pre-request header resolver
// collaborator: an opaque step consulted once per configuration, before
// the first attempt, that may populate or override request headers.
package headerresolver

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Resolver resolves headers synchronously given the caller's current
// header map (which it may read but must not mutate); it returns the
// headers to merge in (overriding on key collision).
type Resolver interface {
	Resolve(ctx context.Context, current map[string]string) (map[string]string, error)
}

// ShellCommand resolves one header's value by running a shell command and
// using its trimmed stdout.
type ShellCommand struct {
	Header  string
	Command string
	Args    []string
	Timeout time.Duration

	// Limiter optionally rate-limits subprocess spawns, for resolvers that
	// shell out to a remote-backed CLI (e.g. a secrets-manager lookup)
	// where each invocation is itself a network call.
	Limiter *rate.Limiter
}

// Resolve runs Command and sets Header to its trimmed stdout.
func (s ShellCommand) Resolve(ctx context.Context, _ map[string]string) (map[string]string, error) {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("header resolver rate limit: %w", err)
		}
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.Command, s.Args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("header resolver command %q failed: %w (stderr: %s)", s.Command, err, stderr.String())
	}

	return map[string]string{s.Header: strings.TrimSpace(stdout.String())}, nil
}

// Chain resolves a fixed sequence of Resolvers, merging their results in
// order (later resolvers override earlier ones on key collision).
type Chain []Resolver

// Resolve runs every Resolver in order and merges their outputs.
func (c Chain) Resolve(ctx context.Context, current map[string]string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, r := range c {
		headers, err := r.Resolve(ctx, current)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			merged[k] = v
		}
	}
	return merged, nil
}
