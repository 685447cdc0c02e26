// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpcfab

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestFrame_RequestRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	payload, _ := EncodePayload(map[string]string{"k": "v"})
	want := Frame{Request: &RequestFrame{ID: 7, MethodName: "echo", Data: payload}}
	if err := EncodeFrame(w, want); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}

	r := bufio.NewReader(&buf)
	got, err := DecodeFrame(r, 0)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.Request == nil || got.Request.ID != 7 || got.Request.MethodName != "echo" {
		t.Fatalf("got %+v, want %+v", got.Request, want.Request)
	}
	var decoded map[string]string
	if err := DecodePayload(got.Request.Data, &decoded); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if decoded["k"] != "v" {
		t.Fatalf("decoded payload = %v", decoded)
	}
}

func TestFrame_WireFormatIsExternallyTaggedSingleKeyObject(t *testing.T) {
	f := Frame{ResponseEndStream: &ResponseEndStreamFrame{RequestID: 3}}
	b, err := f.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if !strings.Contains(string(b), `"ResponseEndStream"`) {
		t.Fatalf("wire form missing ResponseEndStream key: %s", b)
	}
	if strings.Contains(string(b), `"Request"`) || strings.Contains(string(b), `"ResponseOk"`) {
		t.Fatalf("wire form set more than one variant key: %s", b)
	}
}

func TestFrame_RawBytes_EncodesAsByteArrayNotBase64(t *testing.T) {
	b := RawBytes("ab")
	out, err := b.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(out) != "[97,98]" {
		t.Fatalf("got %s, want [97,98]", out)
	}

	var decoded RawBytes
	if err := decoded.UnmarshalJSON(out); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if string(decoded) != "ab" {
		t.Fatalf("got %q, want %q", decoded, "ab")
	}
}

func TestFrame_DecodeFrame_RejectsLineOverLimit(t *testing.T) {
	payload, _ := EncodePayload(strings.Repeat("x", 1000))
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := EncodeFrame(w, Frame{Request: &RequestFrame{ID: 1, MethodName: "m", Data: payload}}); err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	r := bufio.NewReader(&buf)
	if _, err := DecodeFrame(r, 16); err != ErrTooLong {
		t.Fatalf("got %v, want ErrTooLong", err)
	}
}

func TestFrame_UnmarshalJSON_RejectsUnknownVariant(t *testing.T) {
	var f Frame
	if err := f.UnmarshalJSON([]byte(`{"SomethingElse":{}}`)); err == nil {
		t.Fatalf("want decode error for unknown variant")
	}
}
