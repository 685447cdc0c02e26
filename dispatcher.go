// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpcfab

import "context"

// Dispatcher decodes incoming requests and routes them to handler methods
// (spec §4.e). Implementations are generated by the idl compiler; they must
// be safe for concurrent invocation, since the connection core spawns one
// dispatch per incoming Request (spec §4.c, §5).
//
// A generated dispatcher captures the reverse-direction RequestSender (spec §3
// "Subscription / handler context") at construction time — typically wired in
// by a generated ServerConnection/ClientConnection helper from
// Connection.RequestSender() — rather than receiving it per call; this
// mirrors how the reference implementation's generated RpcDispatcher embeds
// `other_side` once and reuses it for every dispatched request.
type Dispatcher interface {
	// Dispatch invokes the handler for req and returns the frame sequence it
	// produces. For a unary method that is exactly one ResponseOkFrame or one
	// ResponseErrorFrame; for a streaming method, zero or more ResponseOkFrame
	// followed by one ResponseEndStreamFrame, or by one ResponseErrorFrame. The
	// returned channel must be closed once the last frame has been sent.
	Dispatch(ctx context.Context, req RequestFrame) <-chan Frame
}

// UnknownMethod produces the single ResponseErrorFrame a generated dispatcher
// emits for a method name it does not recognize (spec §4.e).
func UnknownMethod(id RequestID, methodName string) <-chan Frame {
	out := make(chan Frame, 1)
	data, err := EncodePayload(map[string]string{"error": ErrUnknownMethod.Error() + ": " + methodName})
	if err != nil {
		data = RawBytes(`{"error":"unknown method"}`)
	}
	out <- Frame{ResponseError: &ResponseErrorFrame{RequestID: id, Data: data}}
	close(out)
	return out
}
