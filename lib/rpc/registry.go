// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bureau-foundation/privbridge/lib/codec"
)

// Object is a call target living in the server process. Invoke
// receives the method name and still-encoded arguments; the returned
// value is CBOR-encoded as the call result.
type Object interface {
	Invoke(ctx context.Context, method string, args Args) (any, error)
}

// MethodFunc implements one method of a Methods object.
type MethodFunc func(ctx context.Context, args Args) (any, error)

// Methods is an Object built from a table of functions.
type Methods map[string]MethodFunc

// Invoke dispatches to the named method.
func (m Methods) Invoke(ctx context.Context, method string, args Args) (any, error) {
	function, exists := m[method]
	if !exists {
		return nil, fmt.Errorf("%w %q", ErrUnknownMethod, method)
	}
	return function(ctx, args)
}

// RuntimeTarget is the name the built-in runtime object is registered
// under.
const RuntimeTarget = "runtime"

// Registry maps target names to objects. It is safe for concurrent
// use; objects may be registered while the server is running.
type Registry struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewRegistry returns a registry holding only the runtime object.
func NewRegistry() *Registry {
	registry := &Registry{objects: make(map[string]Object)}
	registry.Register(RuntimeTarget, NewRuntimeObject())
	return registry
}

// Register adds object under name. Panics on an empty name or a
// duplicate registration; both are programming errors.
func (r *Registry) Register(name string, object Object) {
	if name == "" {
		panic("rpc.Registry: empty target name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.objects[name]; exists {
		panic(fmt.Sprintf("rpc.Registry: duplicate target %q", name))
	}
	r.objects[name] = object
}

// Lookup returns the object registered under name.
func (r *Registry) Lookup(name string) (Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	object, exists := r.objects[name]
	return object, exists
}

// Targets returns the registered names in sorted order.
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.objects))
	for name := range r.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke routes one call. A panic inside the object is converted to an
// internal error rather than taking the server down.
func (r *Registry) Invoke(ctx context.Context, target, method string, args Args) (result any, err error) {
	object, exists := r.Lookup(target)
	if !exists {
		return nil, fmt.Errorf("%w %q", ErrUnknownTarget, target)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			result = nil
			err = fmt.Errorf("panic in %s.%s: %v", target, method, recovered)
		}
	}()
	return object.Invoke(ctx, method, args)
}

// Invoker forwards a method call to a named target and decodes the
// result into result (which may be nil to discard it).
type Invoker interface {
	Invoke(ctx context.Context, target, method string, result any, args ...any) error
}

// Local is an Invoker that calls objects in this process. Values still
// round-trip through CBOR so results decode exactly as they would from
// a Conn.
type Local struct {
	Registry *Registry
}

// Invoke implements Invoker.
func (l Local) Invoke(ctx context.Context, target, method string, result any, args ...any) error {
	encoded, err := EncodeArgs(args...)
	if err != nil {
		return fmt.Errorf("calling %s.%s: %w", target, method, err)
	}
	value, err := l.Registry.Invoke(ctx, target, method, encoded)
	if err != nil {
		return &RemoteError{Target: target, Method: method, Kind: KindOf(err), Message: err.Error()}
	}
	if result == nil || value == nil {
		return nil
	}
	data, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding result of %s.%s: %w", target, method, err)
	}
	if err := codec.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decoding result of %s.%s: %w", target, method, err)
	}
	return nil
}
