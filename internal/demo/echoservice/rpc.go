// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package echoservice

import (
	"context"
	"fmt"
	"io"

	"code.hybscloud.com/rpcfab"
)

// Responder is implemented by the side handling Echo and Count. Both methods
// also receive the reverse-direction requester, for handlers (like Count)
// that call back into the peer that opened the connection.
type Responder interface {
	Echo(ctx context.Context, request EchoRequest, reverse ReverseRequester) (EchoResponse, error)
	Count(ctx context.Context, request CountRequest, reverse ReverseRequester) (<-chan StreamResultOfCount, error)
}

// Requester is the forward-direction caller-facing interface, implemented by
// RequesterAdapter.
type Requester interface {
	Echo(ctx context.Context, request EchoRequest) (EchoResponse, error)
	Count(ctx context.Context, request CountRequest) (*StreamOfCount, error)
}

// ReverseRequester is the interface a Responder handler uses to call back
// into the peer that opened the connection.
type ReverseRequester interface {
	Notify(ctx context.Context, request NotifyRequest) (NotifyResponse, error)
}

// ReverseResponder is implemented by the client side of the connection,
// answering the server's reverse Notify calls. It receives the forward
// Requester in case answering a reverse call requires calling back.
type ReverseResponder interface {
	Notify(ctx context.Context, request NotifyRequest, forward Requester) (NotifyResponse, error)
}

// StreamResultOfCount is one item of Count's streaming response, as produced
// by a Responder implementation.
type StreamResultOfCount struct {
	Value CountItem
	Err   error
}

// StreamOfCount adapts rpcfab.StreamResult to CountItem for callers.
type StreamOfCount struct{ raw *rpcfab.StreamResult }

// Recv decodes the next CountItem, if any.
func (s *StreamOfCount) Recv(ctx context.Context) (CountItem, bool, error) {
	item, done, err := s.raw.Recv(ctx)
	if err != nil || done {
		return CountItem{}, true, err
	}
	if item.IsErr() {
		return CountItem{}, true, fmt.Errorf("count: %s", string(item.Err))
	}
	var v CountItem
	if err := rpcfab.DecodePayload(item.Ok, &v); err != nil {
		return CountItem{}, true, err
	}
	return v, false, nil
}

// Close abandons the stream early (spec §4.d Cancellation).
func (s *StreamOfCount) Close() { s.raw.Close() }

// RequesterAdapter implements Requester over a raw rpcfab.RequestSender.
type RequesterAdapter struct{ sender *rpcfab.RequestSender }

// NewRequesterAdapter wraps sender as a Requester.
func NewRequesterAdapter(sender *rpcfab.RequestSender) *RequesterAdapter {
	return &RequesterAdapter{sender: sender}
}

// Echo issues the echo unary call.
func (a *RequesterAdapter) Echo(ctx context.Context, request EchoRequest) (EchoResponse, error) {
	var zero EchoResponse
	payload, err := rpcfab.EncodePayload(request)
	if err != nil {
		return zero, err
	}
	result, err := a.sender.CallUnary(ctx, "echo", payload)
	if err != nil {
		return zero, err
	}
	if result.IsErr() {
		return zero, fmt.Errorf("echo: %s", string(result.Err))
	}
	var v EchoResponse
	if err := rpcfab.DecodePayload(result.Ok, &v); err != nil {
		return zero, err
	}
	return v, nil
}

// Count issues the count streaming call.
func (a *RequesterAdapter) Count(ctx context.Context, request CountRequest) (*StreamOfCount, error) {
	payload, err := rpcfab.EncodePayload(request)
	if err != nil {
		return nil, err
	}
	raw, err := a.sender.CallStream(ctx, "count", payload)
	if err != nil {
		return nil, err
	}
	return &StreamOfCount{raw: raw}, nil
}

// ReverseRequesterAdapter implements ReverseRequester over a raw
// rpcfab.RequestSender — the same shape RequesterAdapter has, but for the
// reverse_rpc block's single method.
type ReverseRequesterAdapter struct{ sender *rpcfab.RequestSender }

// NewReverseRequesterAdapter wraps sender as a ReverseRequester.
func NewReverseRequesterAdapter(sender *rpcfab.RequestSender) *ReverseRequesterAdapter {
	return &ReverseRequesterAdapter{sender: sender}
}

// Notify issues the reverse notify unary call.
func (a *ReverseRequesterAdapter) Notify(ctx context.Context, request NotifyRequest) (NotifyResponse, error) {
	var zero NotifyResponse
	payload, err := rpcfab.EncodePayload(request)
	if err != nil {
		return zero, err
	}
	result, err := a.sender.CallUnary(ctx, "notify", payload)
	if err != nil {
		return zero, err
	}
	if result.IsErr() {
		return zero, fmt.Errorf("notify: %s", string(result.Err))
	}
	var v NotifyResponse
	if err := rpcfab.DecodePayload(result.Ok, &v); err != nil {
		return zero, err
	}
	return v, nil
}

// Dispatcher adapts Responder to rpcfab.Dispatcher, decoding each request by
// method name and encoding the handler's return value as a frame sequence
// (spec §4.e).
type Dispatcher struct {
	Implementation Responder
	Reverse        ReverseRequester
}

// Dispatch implements rpcfab.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, req rpcfab.RequestFrame) <-chan rpcfab.Frame {
	switch req.MethodName {
	case "echo":
		return d.dispatchEcho(ctx, req)
	case "count":
		return d.dispatchCount(ctx, req)
	default:
		return rpcfab.UnknownMethod(req.ID, req.MethodName)
	}
}

func (d *Dispatcher) dispatchEcho(ctx context.Context, req rpcfab.RequestFrame) <-chan rpcfab.Frame {
	out := make(chan rpcfab.Frame, 1)
	go func() {
		defer close(out)
		var arg EchoRequest
		if err := rpcfab.DecodePayload(req.Data, &arg); err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		resp, err := d.Implementation.Echo(ctx, arg, d.Reverse)
		if err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		data, err := rpcfab.EncodePayload(resp)
		if err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		out <- rpcfab.Frame{ResponseOk: &rpcfab.ResponseOkFrame{RequestID: req.ID, Data: data}}
	}()
	return out
}

func (d *Dispatcher) dispatchCount(ctx context.Context, req rpcfab.RequestFrame) <-chan rpcfab.Frame {
	out := make(chan rpcfab.Frame, 8)
	go func() {
		defer close(out)
		var arg CountRequest
		if err := rpcfab.DecodePayload(req.Data, &arg); err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		items, err := d.Implementation.Count(ctx, arg, d.Reverse)
		if err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		for item := range items {
			if item.Err != nil {
				out <- errorFrame(req.ID, item.Err)
				return
			}
			data, err := rpcfab.EncodePayload(item.Value)
			if err != nil {
				out <- errorFrame(req.ID, err)
				return
			}
			out <- rpcfab.Frame{ResponseOk: &rpcfab.ResponseOkFrame{RequestID: req.ID, Data: data}}
		}
		out <- rpcfab.Frame{ResponseEndStream: &rpcfab.ResponseEndStreamFrame{RequestID: req.ID}}
	}()
	return out
}

func errorFrame(id rpcfab.RequestID, err error) rpcfab.Frame {
	data, encErr := rpcfab.EncodePayload(map[string]string{"error": err.Error()})
	if encErr != nil {
		data = rpcfab.RawBytes(`{"error":"internal"}`)
	}
	return rpcfab.Frame{ResponseError: &rpcfab.ResponseErrorFrame{RequestID: id, Data: data}}
}

// ReverseDispatcher adapts ReverseResponder to rpcfab.Dispatcher, for the
// connection side that receives the server's reverse Notify calls.
type ReverseDispatcher struct {
	Implementation ReverseResponder
	Forward        Requester
}

// Dispatch implements rpcfab.Dispatcher.
func (d *ReverseDispatcher) Dispatch(ctx context.Context, req rpcfab.RequestFrame) <-chan rpcfab.Frame {
	switch req.MethodName {
	case "notify":
		return d.dispatchNotify(ctx, req)
	default:
		return rpcfab.UnknownMethod(req.ID, req.MethodName)
	}
}

func (d *ReverseDispatcher) dispatchNotify(ctx context.Context, req rpcfab.RequestFrame) <-chan rpcfab.Frame {
	out := make(chan rpcfab.Frame, 1)
	go func() {
		defer close(out)
		var arg NotifyRequest
		if err := rpcfab.DecodePayload(req.Data, &arg); err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		resp, err := d.Implementation.Notify(ctx, arg, d.Forward)
		if err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		data, err := rpcfab.EncodePayload(resp)
		if err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		out <- rpcfab.Frame{ResponseOk: &rpcfab.ResponseOkFrame{RequestID: req.ID, Data: data}}
	}()
	return out
}

// ServerConnection binds a byte-stream pair to a Responder implementation,
// running the connection runtime to completion (spec §4.f "server connection
// convenience").
type ServerConnection struct {
	conn *rpcfab.Connection
	impl Responder
}

// NewServerConnection wires r/w into a Connection and captures impl for
// dispatch; the reverse-direction requester is built from the connection's
// own RequestSender once Run starts.
func NewServerConnection(r io.Reader, w io.Writer, impl Responder, opts ...rpcfab.Option) (*ServerConnection, error) {
	conn, err := rpcfab.NewConnection(r, w, opts...)
	if err != nil {
		return nil, err
	}
	return &ServerConnection{conn: conn, impl: impl}, nil
}

// Run drives the connection to completion, dispatching incoming requests to
// the bound Responder.
func (s *ServerConnection) Run(ctx context.Context) error {
	d := &Dispatcher{Implementation: s.impl, Reverse: NewReverseRequesterAdapter(s.conn.RequestSender())}
	return s.conn.Run(ctx, d)
}

// ClientConnection binds a byte-stream pair to a reverse-direction
// ReverseResponder implementation and exposes the forward Requester the
// caller programs against (spec §4.f "client connection convenience").
type ClientConnection struct {
	conn *rpcfab.Connection
	impl ReverseResponder
}

// NewClientConnection mirrors NewServerConnection for the client side of a
// connection that also serves reverse calls (the client answers the
// server's Notify calls).
func NewClientConnection(r io.Reader, w io.Writer, impl ReverseResponder, opts ...rpcfab.Option) (*ClientConnection, *RequesterAdapter, error) {
	conn, err := rpcfab.NewConnection(r, w, opts...)
	if err != nil {
		return nil, nil, err
	}
	return &ClientConnection{conn: conn, impl: impl}, NewRequesterAdapter(conn.RequestSender()), nil
}

// Run drives the connection to completion, dispatching any reverse calls the
// server makes to the bound ReverseResponder.
func (c *ClientConnection) Run(ctx context.Context) error {
	d := &ReverseDispatcher{Implementation: c.impl, Forward: NewRequesterAdapter(c.conn.RequestSender())}
	return c.conn.Run(ctx, d)
}
