// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpcfab

import "errors"

var (
	// ErrInvalidArgument reports a nil reader/writer or other invalid construction argument.
	ErrInvalidArgument = errors.New("rpcfab: invalid argument")

	// ErrFrameDecode reports a line that is not valid JSON or does not match a known frame variant.
	ErrFrameDecode = errors.New("rpcfab: frame decode")

	// ErrTooLong reports a line exceeding the configured read limit.
	ErrTooLong = errors.New("rpcfab: frame too long")

	// ErrUnexpectedEndOfStream reports a protocol violation: EndStream observed on a unary
	// call, the response queue closed before a terminal frame arrived, or the connection
	// was dropped while a request was still in flight.
	ErrUnexpectedEndOfStream = errors.New("rpcfab: unexpected end of stream")

	// ErrUnknownMethod is the generic error payload a dispatcher returns for a method name
	// it does not recognize.
	ErrUnknownMethod = errors.New("rpcfab: unknown method")

	// ErrConnectionClosed reports that the connection's pumps have stopped and no further
	// requests can be issued or served.
	ErrConnectionClosed = errors.New("rpcfab: connection closed")
)
