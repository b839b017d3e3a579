// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"

	"github.com/bureau-foundation/privbridge/lib/rpc"
)

// Proxy forwards method calls to one named object. Errors come back
// unchanged from the invoker: *rpc.RemoteError when the object failed,
// *rpc.TransportError when the server could not be reached.
type Proxy struct {
	target  string
	invoker rpc.Invoker
}

// NewProxy returns a proxy for target over invoker. A bridge hands
// these out from Object; tests can build one over rpc.Local.
func NewProxy(invoker rpc.Invoker, target string) *Proxy {
	return &Proxy{target: target, invoker: invoker}
}

// Target returns the object name.
func (p *Proxy) Target() string { return p.target }

// Call invokes method with args and decodes the result into result,
// which may be nil to discard it.
func (p *Proxy) Call(ctx context.Context, method string, result any, args ...any) error {
	return p.invoker.Invoke(ctx, p.target, method, result, args...)
}

// Call invokes method on proxy and returns the decoded result.
//
//	content, err := bridge.Call[[]byte](ctx, fs, "read", "/etc/shadow")
func Call[T any](ctx context.Context, proxy *Proxy, method string, args ...any) (T, error) {
	var result T
	err := proxy.Call(ctx, method, &result, args...)
	return result, err
}
