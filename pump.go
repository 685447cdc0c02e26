// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpcfab

import (
	"bufio"
	"errors"
	"io"
)

// readPump decodes frames from r and pushes them onto inbound until EOF or a
// decode/transport error. It closes inbound on return so that the router
// downstream observes "no more frames" when its receive reports the channel
// closed, matching
// spec §4.b's reader task contract.
func readPump(r *bufio.Reader, inbound chan<- Frame, readLimit int) error {
	defer close(inbound)
	for {
		f, err := DecodeFrame(r, readLimit)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		inbound <- f
	}
}

// writePump drains outbound into w, encoding one frame per line, until
// outbound is closed. Frames reach the wire in the order they were enqueued;
// the pump imposes no ordering across independently-produced frames beyond
// that (spec §4.b, §5).
func writePump(w *bufio.Writer, outbound <-chan Frame) error {
	for f := range outbound {
		if err := EncodeFrame(w, f); err != nil {
			return err
		}
	}
	return nil
}
