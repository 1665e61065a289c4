package ferrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestOfUnwrapsFmtErrorf(t *testing.T) {
	base := New(SourceParse, "bad line", nil)
	wrapped := fmt.Errorf("reading batch: %w", base)
	kind, ok := Of(wrapped)
	if !ok || kind != SourceParse {
		t.Fatalf("expected SourceParse, got kind=%v ok=%v", kind, ok)
	}
}

func TestOfFalseForPlainError(t *testing.T) {
	_, ok := Of(errors.New("plain"))
	if ok {
		t.Fatal("expected ok=false for a plain error")
	}
}

func TestIsMatchesSameKindOnly(t *testing.T) {
	a := New(SourceIO, "disk", nil)
	b := New(SourceIO, "different message", nil)
	c := New(SourceParse, "disk", nil)
	if !errors.Is(a, b) {
		t.Fatal("expected errors of the same Kind to match")
	}
	if errors.Is(a, c) {
		t.Fatal("expected errors of different Kind to not match")
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := New(SourceIO, "writing output", cause)
	msg := err.Error()
	if !contains(msg, "disk full") || !contains(msg, "writing output") {
		t.Fatalf("expected message to include cause and msg, got %q", msg)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
