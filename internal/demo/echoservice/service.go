// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package echoservice

import (
	"context"
	"fmt"
	"time"

	"code.hybscloud.com/rpcfab"
)

// Service implements Responder with handlers exercising every shape the
// runtime supports: a plain unary call (Echo), a streaming call that calls
// back through the reverse requester partway through (Count), and the
// error path a handler can take (Echo rejects an empty message).
type Service struct {
	// Clock lets tests control ReceivedAt; nil means time.Now.
	Clock func() time.Time
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// Echo returns the request's message unchanged with a receipt timestamp. An
// empty message is rejected, giving callers a handler-error scenario to
// exercise against ResponseErrorFrame.
func (s *Service) Echo(ctx context.Context, request EchoRequest, reverse ReverseRequester) (EchoResponse, error) {
	if request.Message == "" {
		return EchoResponse{}, fmt.Errorf("echo: empty message")
	}
	return EchoResponse{Message: request.Message, ReceivedAt: rpcfab.NewInstant(s.now())}, nil
}

// Count streams CountItem values 1..Upto, notifying the caller via the
// reverse channel once it crosses the midpoint.
func (s *Service) Count(ctx context.Context, request CountRequest, reverse ReverseRequester) (<-chan StreamResultOfCount, error) {
	out := make(chan StreamResultOfCount, 8)
	go func() {
		defer close(out)
		midpoint := request.Upto / 2
		for i := uint32(1); i <= request.Upto; i++ {
			select {
			case out <- StreamResultOfCount{Value: CountItem{Value: i}}:
			case <-ctx.Done():
				return
			}
			if i == midpoint && midpoint > 0 {
				if _, err := reverse.Notify(ctx, NotifyRequest{Message: "halfway"}); err != nil {
					out <- StreamResultOfCount{Err: err}
					return
				}
			}
		}
	}()
	return out, nil
}

// ReverseService implements ReverseResponder, answering the server's
// mid-stream Notify calls.
type ReverseService struct {
	Notifications chan<- string
}

// Notify records the message it was given. If Notifications is nil the
// notification is simply dropped.
func (s *ReverseService) Notify(ctx context.Context, request NotifyRequest, forward Requester) (NotifyResponse, error) {
	if s.Notifications != nil {
		select {
		case s.Notifications <- request.Message:
		case <-ctx.Done():
			return NotifyResponse{}, ctx.Err()
		}
	}
	return NotifyResponse{Ok: 1}, nil
}
