// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR encoding configuration shared by both
// ends of the privileged bridge.
//
// The unprivileged controller and the elevated server are separate
// binaries, possibly built at different times. They agree on the wire
// only because both import this package: Core Deterministic Encoding
// (RFC 8949 §4.2) on the way out, a permissive decoder on the way in
// that ignores unknown fields and decodes untyped maps as
// map[string]any.
//
// Buffers:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Streams (one value per socket connection):
//
//	codec.NewEncoder(conn).Encode(request)
//	codec.NewDecoder(conn).Decode(&response)
//
// Wire types use `cbor` struct tags. Types that are also printed as
// JSON by the CLI use `json` tags only; fxamacker/cbor falls back to
// them when no `cbor` tag is present.
package codec
