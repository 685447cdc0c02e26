// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpcfab

import "github.com/sirupsen/logrus"

// Options configures a Connection.
type Options struct {
	// QueueCapacity bounds the inbound and outbound frame channels (spec §4.b:
	// "recommended capacity 64"). A full outbound queue backpressures whichever
	// handler or request call is trying to enqueue a frame.
	QueueCapacity int

	// StreamQueueCapacity bounds the per-request response queue used for
	// streaming calls (spec §4.d). Unary calls always use capacity 1.
	StreamQueueCapacity int

	// ReadLimit caps the maximum allowed line length in bytes. Zero means no
	// limit.
	ReadLimit int

	// Logger receives routing-drop warnings (spec §7, "Routing" errors are
	// logged and dropped). Fatal connection errors are not logged; Run
	// returns them.
	Logger logrus.FieldLogger
}

var defaultOptions = Options{
	QueueCapacity:       64,
	StreamQueueCapacity: 64,
	ReadLimit:           0,
	Logger:              logrus.StandardLogger(),
}

// Option configures a Connection at construction time.
type Option func(*Options)

// WithQueueCapacity sets the inbound/outbound channel capacity.
func WithQueueCapacity(n int) Option {
	return func(o *Options) { o.QueueCapacity = n }
}

// WithStreamQueueCapacity sets the per-request streaming response queue capacity.
func WithStreamQueueCapacity(n int) Option {
	return func(o *Options) { o.StreamQueueCapacity = n }
}

// WithReadLimit caps the maximum line length accepted from the peer.
func WithReadLimit(n int) Option {
	return func(o *Options) { o.ReadLimit = n }
}

// WithLogger overrides the default (logrus.StandardLogger()) logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) { o.Logger = l }
}
