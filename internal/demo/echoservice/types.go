// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package echoservice is a hand-authored stand-in for what rpcfabc would
// generate from internal/demo/echoservice/echo.rpc: it exercises every shape
// the compiler's templates produce — unary and streaming forward calls, a
// reverse call a handler makes back into its caller, an unknown-method
// error, and a handler-produced error — against a real rpcfab.Connection.
package echoservice

import "code.hybscloud.com/rpcfab"

// EchoRequest is the argument to the Echo unary call.
type EchoRequest struct {
	Message string `json:"message"`
}

// EchoResponse is Echo's result. ReceivedAt mirrors what the generator emits
// for the `received-at` field of echo.rpc: a bare json tag matching the IDL
// field name verbatim, and rpcfab.Instant rather than time.Time so it
// serializes as seconds-since-epoch (spec §4.f/§6), not an RFC3339 string.
type EchoResponse struct {
	Message    string         `json:"message"`
	ReceivedAt rpcfab.Instant `json:"received-at"`
}

// CountRequest is the argument to the Count streaming call.
type CountRequest struct {
	Upto uint32 `json:"upto"`
}

// CountItem is one item of Count's streamed response.
type CountItem struct {
	Value uint32 `json:"value"`
}

// NotifyRequest is the argument to the reverse Notify call a Count handler
// issues back to its caller partway through the stream.
type NotifyRequest struct {
	Message string `json:"message"`
}

// NotifyResponse is Notify's result.
type NotifyResponse struct {
	Ok uint8 `json:"ok"`
}
