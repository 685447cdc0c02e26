// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rpcfab implements a bidirectional, multiplexed RPC runtime over a
// single full-duplex byte stream.
//
// Semantics and design:
//   - One frame per line: the wire format is line-delimited JSON (see Frame).
//     A Frame is an externally tagged union — exactly one of its variant
//     fields is set, and it is encoded as a single-key JSON object keyed by
//     the variant name ("Request", "ResponseOk", "ResponseError",
//     "ResponseEndStream").
//   - Payload-agnostic: the "data" carried by Request/ResponseOk/ResponseError
//     is itself an independently JSON-encoded document, re-embedded as a JSON
//     array of byte values (RawBytes) rather than base64 text, so the codec
//     never has to understand the shape of any particular method's payload.
//   - Correlation: every Request carries a RequestID assigned by its
//     originator; every Response* frame echoes it back so a connection with
//     many in-flight requests (unary or streaming) can be routed without head
//     -of-line blocking on replies (see Connection, RequestSender).
package rpcfab

import (
	"bufio"
	"fmt"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// payloadCodec is the JSON codec used to encode/decode the inner request and
// response bodies carried inside a Frame's RawBytes field. json-iterator is
// used here, not encoding/json, because this is the per-frame, per-request hot
// path of the whole runtime.
var payloadCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// EncodePayload independently serializes v, ready to be embedded as a Frame's
// data field.
func EncodePayload(v any) (RawBytes, error) {
	b, err := payloadCodec.Marshal(v)
	if err != nil {
		return nil, err
	}
	return RawBytes(b), nil
}

// DecodePayload decodes data (as produced by EncodePayload) into v.
func DecodePayload(data RawBytes, v any) error {
	return payloadCodec.Unmarshal(data, v)
}

// RawBytes carries a nested JSON document as a JSON array of byte values, per
// the wire format in spec §6. encoding/json's default []byte handling
// (base64 string) does not match that contract, so RawBytes implements its
// own Marshal/Unmarshal.
type RawBytes []byte

// MarshalJSON implements json.Marshaler.
func (b RawBytes) MarshalJSON() ([]byte, error) {
	if len(b) == 0 {
		return []byte("[]"), nil
	}
	out := make([]byte, 0, 2+len(b)*4)
	out = append(out, '[')
	for i, c := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(c), 10)
	}
	out = append(out, ']')
	return out, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *RawBytes) UnmarshalJSON(data []byte) error {
	var nums []uint16
	if err := payloadCodec.Unmarshal(data, &nums); err != nil {
		return fmt.Errorf("%w: %v", ErrFrameDecode, err)
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		out[i] = byte(n)
	}
	*b = out
	return nil
}

// Instant is a point in time carried over the wire as seconds-since-epoch,
// per the fixed external wire contract in spec §4.f/§6 for the `instant`
// primitive. encoding/json's (and jsoniter's) default time.Time handling
// marshals an RFC3339 string instead, so Instant implements its own
// Marshal/Unmarshal rather than embedding time.Time directly.
type Instant time.Time

// NewInstant truncates t to whole seconds and wraps it as an Instant.
func NewInstant(t time.Time) Instant {
	return Instant(time.Unix(t.Unix(), 0).UTC())
}

// Time returns the wrapped time.Time, in UTC.
func (i Instant) Time() time.Time {
	return time.Time(i).UTC()
}

// IsZero reports whether i is the zero Instant.
func (i Instant) IsZero() bool {
	return time.Time(i).IsZero()
}

// MarshalJSON implements json.Marshaler, emitting the Unix time in whole
// seconds as a bare JSON integer. Times before the epoch, including the zero
// Instant, are emitted as a negative number.
func (i Instant) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, time.Time(i).Unix(), 10), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Instant) UnmarshalJSON(data []byte) error {
	secs, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: instant: %v", ErrFrameDecode, err)
	}
	*i = Instant(time.Unix(secs, 0).UTC())
	return nil
}

// RequestID is an opaque 64-bit identifier, unique per connection per
// originator direction. Two peers may coincidentally assign the same numeric
// id to independent requests they originate; routing distinguishes by
// direction (see Connection).
type RequestID uint64

// String renders a RequestID the way the reference implementation does.
func (id RequestID) String() string {
	return fmt.Sprintf("(request %d)", uint64(id))
}

// RequestFrame asks the peer to invoke methodName with an opaquely encoded
// body.
type RequestFrame struct {
	ID         RequestID `json:"id"`
	MethodName string    `json:"method_name"`
	Data       RawBytes  `json:"data"`
}

// ResponseOkFrame carries one successful response item for RequestID. For
// unary calls there is exactly one; for streaming calls, zero or more.
type ResponseOkFrame struct {
	RequestID RequestID `json:"request_id"`
	Data      RawBytes  `json:"data"`
}

// ResponseErrorFrame carries a terminal error for RequestID. It MUST NOT be
// followed by a ResponseEndStreamFrame for the same id.
type ResponseErrorFrame struct {
	RequestID RequestID `json:"request_id"`
	Data      RawBytes  `json:"data"`
}

// ResponseEndStreamFrame is the terminal marker for a streaming response.
type ResponseEndStreamFrame struct {
	RequestID RequestID `json:"request_id"`
}

// Frame is the tagged union transmitted one-per-line over the wire. Exactly
// one field is non-nil.
type Frame struct {
	Request           *RequestFrame
	ResponseOk        *ResponseOkFrame
	ResponseError     *ResponseErrorFrame
	ResponseEndStream *ResponseEndStreamFrame
}

// RequestIDOf returns the request id carried by whichever Response* variant f
// holds, and ok=false for a Request frame or an empty Frame.
func (f Frame) RequestIDOf() (id RequestID, ok bool) {
	switch {
	case f.ResponseOk != nil:
		return f.ResponseOk.RequestID, true
	case f.ResponseError != nil:
		return f.ResponseError.RequestID, true
	case f.ResponseEndStream != nil:
		return f.ResponseEndStream.RequestID, true
	default:
		return 0, false
	}
}

// MarshalJSON implements json.Marshaler, emitting the externally tagged
// single-key object form described in spec §6.
func (f Frame) MarshalJSON() ([]byte, error) {
	switch {
	case f.Request != nil:
		return payloadCodec.Marshal(struct {
			Request *RequestFrame `json:"Request"`
		}{f.Request})
	case f.ResponseOk != nil:
		return payloadCodec.Marshal(struct {
			ResponseOk *ResponseOkFrame `json:"ResponseOk"`
		}{f.ResponseOk})
	case f.ResponseError != nil:
		return payloadCodec.Marshal(struct {
			ResponseError *ResponseErrorFrame `json:"ResponseError"`
		}{f.ResponseError})
	case f.ResponseEndStream != nil:
		return payloadCodec.Marshal(struct {
			ResponseEndStream *ResponseEndStreamFrame `json:"ResponseEndStream"`
		}{f.ResponseEndStream})
	default:
		return nil, fmt.Errorf("%w: empty frame", ErrFrameDecode)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var wire struct {
		Request           *RequestFrame           `json:"Request"`
		ResponseOk        *ResponseOkFrame        `json:"ResponseOk"`
		ResponseError     *ResponseErrorFrame     `json:"ResponseError"`
		ResponseEndStream *ResponseEndStreamFrame `json:"ResponseEndStream"`
	}
	if err := payloadCodec.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %v", ErrFrameDecode, err)
	}
	switch {
	case wire.Request != nil:
		*f = Frame{Request: wire.Request}
	case wire.ResponseOk != nil:
		*f = Frame{ResponseOk: wire.ResponseOk}
	case wire.ResponseError != nil:
		*f = Frame{ResponseError: wire.ResponseError}
	case wire.ResponseEndStream != nil:
		*f = Frame{ResponseEndStream: wire.ResponseEndStream}
	default:
		return fmt.Errorf("%w: unknown frame variant", ErrFrameDecode)
	}
	return nil
}

// DecodeFrame reads one line from r and parses it as a Frame. It returns
// io.EOF unchanged when the stream ends cleanly at a line boundary. limit
// caps the accepted line length in bytes; zero means no limit.
func DecodeFrame(r *bufio.Reader, limit int) (Frame, error) {
	line, err := r.ReadBytes('\n')
	if len(line) == 0 {
		return Frame{}, err
	}
	if limit > 0 && len(line) > limit {
		return Frame{}, ErrTooLong
	}
	// A final line with no trailing newline (EOF) is still decodable.
	var f Frame
	if jsonErr := f.UnmarshalJSON(line); jsonErr != nil {
		if err != nil {
			return Frame{}, err
		}
		return Frame{}, jsonErr
	}
	return f, nil
}

// EncodeFrame writes f as a single line terminated by '\n'.
func EncodeFrame(w *bufio.Writer, f Frame) error {
	b, err := f.MarshalJSON()
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
