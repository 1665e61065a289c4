// Package transform applies the caller-supplied per-record mapping (and, if
// configured, a named preset) before a record is placed into a batch.
package transform

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pilot-net/bulkfetch/internal/ferrors"
	"github.com/pilot-net/bulkfetch/internal/model"
)

// Func maps one record to its replacement. A transform that returns a
// different value replaces the record; one that mutates in place (when
// Clone is false) is expected to return the same value it was given.
type Func func(model.Record) (model.Record, error)

// ErrorHandler is invoked when Func returns an error, receiving the record
// that failed and the cause. The TransformFailed error propagates whether
// or not a handler is set: the handler observes the failure but does not
// suppress it. A panic in the handler is recovered and logged.
type ErrorHandler func(rec model.Record, cause error)

// Pipeline composes the registered preset (if any) with the caller's Func,
// and applies the clone-before-mutate semantics.
type Pipeline struct {
	Preset       Func
	User         Func
	Clone        bool
	ErrorHandler ErrorHandler
}

// Apply runs the pipeline on one record, exactly once: the preset and
// user transform together count as the single configured transform step.
func (p Pipeline) Apply(rec model.Record) (model.Record, error) {
	if p.Preset == nil && p.User == nil {
		return rec, nil
	}
	working := rec
	if p.Clone {
		cloned, err := deepCopy(rec)
		if err != nil {
			return nil, ferrors.New(ferrors.TransformFailed, "cloning record", err)
		}
		working = cloned
	}
	if p.Preset != nil {
		out, err := p.Preset(working)
		if err != nil {
			return p.handleFailure(rec, err)
		}
		working = out
	}
	if p.User != nil {
		out, err := p.User(working)
		if err != nil {
			return p.handleFailure(rec, err)
		}
		working = out
	}
	return working, nil
}

func (p Pipeline) handleFailure(rec model.Record, cause error) (model.Record, error) {
	ferr := ferrors.New(ferrors.TransformFailed, "transform raised", cause)
	if p.ErrorHandler != nil {
		safeInvoke(p.ErrorHandler, rec, cause)
	}
	return nil, ferr
}

func safeInvoke(h ErrorHandler, rec model.Record, cause error) {
	defer func() {
		// A panicking error handler is logged here; the original error
		// still propagates from handleFailure.
		if r := recover(); r != nil {
			slog.Default().Warn("transform error handler panicked", "panic", r, "cause", cause)
		}
	}()
	h(rec, cause)
}

// deepCopy performs a structural deep copy via a JSON marshal/unmarshal
// round trip: Clone must be a real structural copy, not a shallow one.
func deepCopy(rec model.Record) (model.Record, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshaling for clone: %w", err)
	}
	var out model.Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling for clone: %w", err)
	}
	return out, nil
}

// Registry holds named transform presets: pre-registered, reusable
// mappings applied before the caller's own Func.
type Registry struct {
	mu      sync.RWMutex
	presets map[string]Func
}

// NewRegistry returns an empty preset registry.
func NewRegistry() *Registry {
	return &Registry{presets: make(map[string]Func)}
}

// Register adds a named preset, overwriting any existing preset of the same
// name.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[name] = fn
}

// Get returns the named preset, if registered.
func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.presets[name]
	return fn, ok
}
