// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpcfab

import (
	"context"
	"net"
	"testing"
	"time"
)

// echoDispatcher answers "echo" unary calls with the request payload
// unchanged, "boom" unary calls with an error, "count" streaming calls with
// N items followed by EndStream, "call-back" unary calls with the result of a
// reverse "reverse-ping" call to the peer, and everything else with
// UnknownMethod.
type echoDispatcher struct {
	reverse *RequestSender
}

func (d echoDispatcher) Dispatch(ctx context.Context, req RequestFrame) <-chan Frame {
	switch req.MethodName {
	case "echo":
		out := make(chan Frame, 1)
		out <- Frame{ResponseOk: &ResponseOkFrame{RequestID: req.ID, Data: req.Data}}
		close(out)
		return out
	case "boom":
		out := make(chan Frame, 1)
		data, _ := EncodePayload(map[string]string{"error": "boom"})
		out <- Frame{ResponseError: &ResponseErrorFrame{RequestID: req.ID, Data: data}}
		close(out)
		return out
	case "count":
		out := make(chan Frame, 8)
		go func() {
			defer close(out)
			var n int
			_ = DecodePayload(req.Data, &n)
			for i := 0; i < n; i++ {
				data, _ := EncodePayload(i)
				select {
				case out <- Frame{ResponseOk: &ResponseOkFrame{RequestID: req.ID, Data: data}}:
				case <-ctx.Done():
					return
				}
			}
			out <- Frame{ResponseEndStream: &ResponseEndStreamFrame{RequestID: req.ID}}
		}()
		return out
	case "call-back":
		out := make(chan Frame, 1)
		go func() {
			defer close(out)
			result, err := d.reverse.CallUnary(ctx, "reverse-ping", nil)
			if err != nil || result.IsErr() {
				data, _ := EncodePayload(map[string]string{"error": "reverse call failed"})
				out <- Frame{ResponseError: &ResponseErrorFrame{RequestID: req.ID, Data: data}}
				return
			}
			out <- Frame{ResponseOk: &ResponseOkFrame{RequestID: req.ID, Data: result.Ok}}
		}()
		return out
	default:
		return UnknownMethod(req.ID, req.MethodName)
	}
}

type pingDispatcher struct{}

func (pingDispatcher) Dispatch(ctx context.Context, req RequestFrame) <-chan Frame {
	out := make(chan Frame, 1)
	if req.MethodName == "reverse-ping" {
		data, _ := EncodePayload("pong")
		out <- Frame{ResponseOk: &ResponseOkFrame{RequestID: req.ID, Data: data}}
	} else {
		close(out)
		return UnknownMethod(req.ID, req.MethodName)
	}
	close(out)
	return out
}

func dialConns(t *testing.T) (server, client *Connection) {
	t.Helper()
	a, b := net.Pipe()
	s, err := NewConnection(a, a)
	if err != nil {
		t.Fatalf("NewConnection(server): %v", err)
	}
	c, err := NewConnection(b, b)
	if err != nil {
		t.Fatalf("NewConnection(client): %v", err)
	}
	t.Cleanup(func() { a.Close(); b.Close() })
	return s, c
}

func TestConnection_UnaryCall_RoundTrips(t *testing.T) {
	server, client := dialConns(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = server.Run(ctx, echoDispatcher{reverse: server.RequestSender()}) }()
	go func() { _ = client.Run(ctx, pingDispatcher{}) }()

	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()

	payload, _ := EncodePayload("hi")
	result, err := client.RequestSender().CallUnary(callCtx, "echo", payload)
	if err != nil {
		t.Fatalf("CallUnary: %v", err)
	}
	if result.IsErr() {
		t.Fatalf("unexpected error result: %s", result.Err)
	}
	var got string
	if err := DecodePayload(result.Ok, &got); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if got != "hi" {
		t.Fatalf("got %q, want %q", got, "hi")
	}
}

func TestConnection_UnaryCall_HandlerError(t *testing.T) {
	server, client := dialConns(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = server.Run(ctx, echoDispatcher{reverse: server.RequestSender()}) }()
	go func() { _ = client.Run(ctx, pingDispatcher{}) }()

	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()

	result, err := client.RequestSender().CallUnary(callCtx, "boom", nil)
	if err != nil {
		t.Fatalf("CallUnary: %v", err)
	}
	if !result.IsErr() {
		t.Fatalf("want an error result")
	}
}

func TestConnection_UnknownMethod(t *testing.T) {
	server, client := dialConns(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = server.Run(ctx, echoDispatcher{reverse: server.RequestSender()}) }()
	go func() { _ = client.Run(ctx, pingDispatcher{}) }()

	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()

	result, err := client.RequestSender().CallUnary(callCtx, "does-not-exist", nil)
	if err != nil {
		t.Fatalf("CallUnary: %v", err)
	}
	if !result.IsErr() {
		t.Fatalf("want an error result for an unknown method")
	}
}

func TestConnection_StreamingCall_DeliversAllItemsThenEnds(t *testing.T) {
	server, client := dialConns(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = server.Run(ctx, echoDispatcher{reverse: server.RequestSender()}) }()
	go func() { _ = client.Run(ctx, pingDispatcher{}) }()

	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()

	payload, _ := EncodePayload(3)
	stream, err := client.RequestSender().CallStream(callCtx, "count", payload)
	if err != nil {
		t.Fatalf("CallStream: %v", err)
	}

	var got []int
	for {
		item, done, err := stream.Recv(callCtx)
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if done {
			break
		}
		var v int
		if err := DecodePayload(item.Ok, &v); err != nil {
			t.Fatalf("DecodePayload: %v", err)
		}
		got = append(got, v)
	}
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("got %v, want [0 1 2]", got)
	}
}

func TestConnection_StreamingCall_DroppedConsumerDoesNotDeadlock(t *testing.T) {
	server, client := dialConns(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = server.Run(ctx, echoDispatcher{reverse: server.RequestSender()}) }()
	go func() { _ = client.Run(ctx, pingDispatcher{}) }()

	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()

	payload, _ := EncodePayload(10000)
	stream, err := client.RequestSender().CallStream(callCtx, "count", payload)
	if err != nil {
		t.Fatalf("CallStream: %v", err)
	}
	if _, _, err := stream.Recv(callCtx); err != nil {
		t.Fatalf("Recv: %v", err)
	}
	stream.Close()

	// The connection must remain responsive after the abandoned stream.
	echoPayload, _ := EncodePayload("still alive")
	result, err := client.RequestSender().CallUnary(callCtx, "echo", echoPayload)
	if err != nil {
		t.Fatalf("CallUnary after dropped stream: %v", err)
	}
	if result.IsErr() {
		t.Fatalf("unexpected error result: %s", result.Err)
	}
}

func TestConnection_ReverseCall_HandlerCallsBackIntoPeer(t *testing.T) {
	server, client := dialConns(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = server.Run(ctx, echoDispatcher{reverse: server.RequestSender()}) }()
	go func() { _ = client.Run(ctx, pingDispatcher{}) }()

	callCtx, callCancel := context.WithTimeout(ctx, 2*time.Second)
	defer callCancel()

	result, err := client.RequestSender().CallUnary(callCtx, "call-back", nil)
	if err != nil {
		t.Fatalf("CallUnary: %v", err)
	}
	if result.IsErr() {
		t.Fatalf("unexpected error result: %s", result.Err)
	}
	var got string
	if err := DecodePayload(result.Ok, &got); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if got != "pong" {
		t.Fatalf("got %q, want %q", got, "pong")
	}
}
