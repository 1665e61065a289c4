package headerresolver

import (
	"context"
	"runtime"
	"testing"
)

func shellEcho(t *testing.T) (cmd string, args []string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell command resolver test assumes a POSIX shell")
	}
	return "/bin/sh", []string{"-c", "echo -n token-value"}
}

func TestShellCommandResolveSetsTrimmedStdout(t *testing.T) {
	cmdPath, args := shellEcho(t)
	resolver := ShellCommand{Header: "Authorization", Command: cmdPath, Args: args}
	headers, err := resolver.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if headers["Authorization"] != "token-value" {
		t.Fatalf("expected trimmed stdout as header value, got %q", headers["Authorization"])
	}
}

func TestShellCommandResolveFailureReturnsError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("assumes a POSIX shell")
	}
	resolver := ShellCommand{Header: "X-Test", Command: "/bin/sh", Args: []string{"-c", "exit 1"}}
	_, err := resolver.Resolve(context.Background(), nil)
	if err == nil {
		t.Fatal("expected an error for a nonzero exit command")
	}
}

func TestChainMergesInOrderLaterOverrides(t *testing.T) {
	chain := Chain{
		fakeResolver{headers: map[string]string{"A": "1", "B": "1"}},
		fakeResolver{headers: map[string]string{"B": "2"}},
	}
	headers, err := chain.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if headers["A"] != "1" || headers["B"] != "2" {
		t.Fatalf("expected later resolver to override, got %v", headers)
	}
}

func TestChainPropagatesFirstError(t *testing.T) {
	chain := Chain{
		fakeResolver{err: errBoom},
		fakeResolver{headers: map[string]string{"A": "1"}},
	}
	_, err := chain.Resolve(context.Background(), nil)
	if err == nil {
		t.Fatal("expected the chain to propagate a resolver error")
	}
}

type fakeResolver struct {
	headers map[string]string
	err     error
}

func (f fakeResolver) Resolve(ctx context.Context, current map[string]string) (map[string]string, error) {
	return f.headers, f.err
}

var errBoom = boomErr{}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }
