// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpcfab

import (
	"context"
	"sync/atomic"
)

// RequestSender allocates request ids, registers a response entry, and
// writes Request frames onto a connection's outbound channel (spec §4.d). A
// RequestSender is shared-ownership: the same instance a connection uses for
// its own calls is the one a dispatcher captures at construction, so its
// handlers can issue reverse calls on the same connection (spec §3
// "Subscription / handler context", §9 "Reverse calls inside handlers").
type RequestSender struct {
	out      chan<- Frame
	reg      *registry
	streamCap int
	nextID   atomic.Uint64
}

func newRequestSender(out chan<- Frame, reg *registry, streamCap int) *RequestSender {
	return &RequestSender{out: out, reg: reg, streamCap: streamCap}
}

// UnaryResult is the outcome of a unary call: exactly one of Ok or Err is set.
type UnaryResult struct {
	Ok  RawBytes
	Err RawBytes
}

// IsErr reports whether the peer's handler returned an error.
func (r UnaryResult) IsErr() bool { return r.Err != nil }

// CallUnary issues a unary request and waits for its single response frame
// (spec §4.d "Unary request"). ctx cancellation only stops the local wait;
// it does not recall the request already written to the outbound channel.
func (s *RequestSender) CallUnary(ctx context.Context, methodName string, payload RawBytes) (UnaryResult, error) {
	id := RequestID(s.nextID.Add(1) - 1)
	entry := s.reg.register(id, 1)
	defer s.reg.remove(id)

	req := Frame{Request: &RequestFrame{ID: id, MethodName: methodName, Data: payload}}
	select {
	case s.out <- req:
	case <-ctx.Done():
		return UnaryResult{}, ctx.Err()
	}

	select {
	case frame, ok := <-entry.ch:
		if !ok {
			return UnaryResult{}, ErrUnexpectedEndOfStream
		}
		switch {
		case frame.ResponseOk != nil:
			return UnaryResult{Ok: frame.ResponseOk.Data}, nil
		case frame.ResponseError != nil:
			return UnaryResult{Err: frame.ResponseError.Data}, nil
		default:
			// ResponseEndStream on a unary call is a protocol violation (spec §7).
			return UnaryResult{}, ErrUnexpectedEndOfStream
		}
	case <-ctx.Done():
		return UnaryResult{}, ctx.Err()
	}
}

// StreamItem is one item observed from a streaming call's response sequence.
type StreamItem struct {
	Ok  RawBytes
	Err RawBytes
}

// IsErr reports whether this item is the call's terminal error.
func (i StreamItem) IsErr() bool { return i.Err != nil }

// StreamResult is the lazy sequence a streaming call returns (spec §4.d
// "Streaming request"). Call Recv repeatedly until it reports done; call
// Close to abandon the sequence early (spec §4.d Cancellation).
type StreamResult struct {
	id       RequestID
	reg      *registry
	entry    *responseEntry
	finished bool
}

// Recv returns the next item. done is true once the terminal frame (EndStream
// or Error) has been observed or delivered by this call; after that, further
// calls to Recv return done=true with a zero StreamItem and a nil error. If
// ctx ends first, Recv returns done=true with ctx's error.
func (s *StreamResult) Recv(ctx context.Context) (item StreamItem, done bool, err error) {
	if s.finished {
		return StreamItem{}, true, nil
	}
	select {
	case frame, ok := <-s.entry.ch:
		if !ok {
			s.finished = true
			s.reg.remove(s.id)
			return StreamItem{}, true, ErrUnexpectedEndOfStream
		}
		switch {
		case frame.ResponseOk != nil:
			return StreamItem{Ok: frame.ResponseOk.Data}, false, nil
		case frame.ResponseError != nil:
			s.finished = true
			s.reg.remove(s.id)
			return StreamItem{Err: frame.ResponseError.Data}, true, nil
		case frame.ResponseEndStream != nil:
			s.finished = true
			s.reg.remove(s.id)
			return StreamItem{}, true, nil
		default:
			s.finished = true
			s.reg.remove(s.id)
			return StreamItem{}, true, ErrUnexpectedEndOfStream
		}
	case <-ctx.Done():
		return StreamItem{}, true, ctx.Err()
	}
}

// Close abandons the sequence. The router drops any further frames for this
// request id once it observes the cancellation (spec §4.d Cancellation, §8
// "Dropping a streaming consumer never deadlocks the router").
func (s *StreamResult) Close() {
	s.entry.cancel()
	s.reg.remove(s.id)
}

// CallStream issues a streaming request and returns a lazy sequence over its
// responses (spec §4.d "Streaming request").
func (s *RequestSender) CallStream(ctx context.Context, methodName string, payload RawBytes) (*StreamResult, error) {
	id := RequestID(s.nextID.Add(1) - 1)
	entry := s.reg.register(id, s.streamCap)

	req := Frame{Request: &RequestFrame{ID: id, MethodName: methodName, Data: payload}}
	select {
	case s.out <- req:
	case <-ctx.Done():
		s.reg.remove(id)
		return nil, ctx.Err()
	}

	return &StreamResult{id: id, reg: s.reg, entry: entry}, nil
}
