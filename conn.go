// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpcfab

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Connection owns the pump goroutines, the response-channel registry, and the
// request sender for the life of one byte stream (spec §3 "Lifecycle", §4.c).
// Construction never blocks; Run spawns the background work.
type Connection struct {
	r   *bufio.Reader
	w   *bufio.Writer
	opt Options

	// closer, if non-nil, is closed when Run's ctx is canceled, so the
	// reader pump's blocking read unblocks instead of outliving
	// cancellation until the peer independently closes the stream.
	closer io.Closer

	inbound  chan Frame
	outbound chan Frame

	reg *registry
	rs  *RequestSender
}

// NewConnection wires r and w into a Connection. r and w must not be nil. If
// r implements io.Closer, Run closes it when its ctx is canceled, unblocking
// the reader pump's pending read (spec §4.c "run(dispatcher)").
func NewConnection(r io.Reader, w io.Writer, opts ...Option) (*Connection, error) {
	if r == nil || w == nil {
		return nil, ErrInvalidArgument
	}
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}

	inbound := make(chan Frame, o.QueueCapacity)
	outbound := make(chan Frame, o.QueueCapacity)
	reg := newRegistry()

	closer, _ := r.(io.Closer)

	return &Connection{
		r:        bufio.NewReader(r),
		w:        bufio.NewWriter(w),
		opt:      o,
		closer:   closer,
		inbound:  inbound,
		outbound: outbound,
		reg:      reg,
		rs:       newRequestSender(outbound, reg, o.StreamQueueCapacity),
	}, nil
}

// RequestSender returns the connection's request sender. Safe to call at any
// time, including before Run, and safe for concurrent use (spec §4.c).
func (c *Connection) RequestSender() *RequestSender {
	return c.rs
}

// Run spawns the reader pump, writer pump, and inbound router, and blocks
// until all three finish — which happens when the underlying stream closes,
// a codec/transport error occurs, or ctx is canceled (spec §4.c "run(
// dispatcher)"). Canceling ctx stops routing and in-flight dispatch
// immediately; it also closes the underlying reader if it implements
// io.Closer, which is what actually unblocks the reader pump's pending read
// (a plain io.Reader with no Close has no way to interrupt a blocked read,
// so Run only returns once that read completes on its own). On return, any
// request ids still awaiting a terminal frame observe
// ErrUnexpectedEndOfStream (spec §3 "Lifecycle").
func (c *Connection) Run(ctx context.Context, d Dispatcher) error {
	logger := c.opt.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	g, gctx := errgroup.WithContext(ctx)

	if c.closer != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				_ = c.closer.Close()
			case <-stop:
			}
		}()
	}

	g.Go(func() error {
		return readPump(c.r, c.inbound, c.opt.ReadLimit)
	})
	g.Go(func() error {
		return writePump(c.w, c.outbound)
	})
	g.Go(func() error {
		return c.route(gctx, d, logger)
	})

	err := g.Wait()

	// Drop every response entry still registered so awaiting callers unblock
	// with ErrUnexpectedEndOfStream rather than hanging (spec §3 "Lifecycle").
	for _, e := range c.reg.removeAll() {
		close(e.ch)
	}

	return err
}

// route is the inbound-routing task (spec §4.c "Inbound routing"). It never
// blocks on handler execution: each Request spawns its own goroutine, and
// routing itself is just a registry lookup plus a bounded channel send.
func (c *Connection) route(ctx context.Context, d Dispatcher, logger logrus.FieldLogger) error {
	var dispatchWG sync.WaitGroup
	defer func() {
		// Wait for every in-flight dispatch to finish writing its frames
		// before closing outbound, so the writer pump sees them all.
		dispatchWG.Wait()
		close(c.outbound)
	}()

	for {
		select {
		case frame, ok := <-c.inbound:
			if !ok {
				return nil
			}
			switch {
			case frame.Request != nil:
				req := *frame.Request
				dispatchWG.Add(1)
				go func() {
					defer dispatchWG.Done()
					c.dispatchOne(ctx, d, req, logger)
				}()
			default:
				c.routeResponse(frame, logger)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) dispatchOne(ctx context.Context, d Dispatcher, req RequestFrame, logger logrus.FieldLogger) {
	respCh := d.Dispatch(ctx, req)
	for f := range respCh {
		select {
		case c.outbound <- f:
		case <-ctx.Done():
			return
		}
	}
}

// routeResponse matches a Response* frame's request id against the registry
// (spec §4.c "Inbound routing"). An unmatched id is logged and dropped (spec
// §7 "Routing" errors); the connection continues.
func (c *Connection) routeResponse(frame Frame, logger logrus.FieldLogger) {
	id, ok := frame.RequestIDOf()
	if !ok {
		return
	}
	entry, found := c.reg.lookup(id)
	if !found {
		logger.WithField("request_id", id).Warn("rpcfab: response for unregistered request id; dropping")
		return
	}

	select {
	case entry.ch <- frame:
	case <-entry.done:
		// Consumer dropped (spec §4.d Cancellation); discard.
	}

	if frame.ResponseError != nil || frame.ResponseEndStream != nil {
		c.reg.remove(id)
	}
}
