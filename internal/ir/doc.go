// Package ir provides the wire-level types of the sync protocol.
//
// This package contains type definitions and codecs only. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float values - row cells and payload fields are null, string, int or bool
//   - Requests are parsed against a fixed schema; unknown keys are rejected
//   - Responses serialize through MarshalCanonical so equal state gives equal bytes
//   - JSON field names use lowerCamelCase, as the protocol has always done
package ir
