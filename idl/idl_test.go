// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package idl

import (
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_EmptyStruct(t *testing.T) {
	f, err := Parse("struct A {}")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := &File{Structs: []StructDef{{Name: "A"}}}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Fatalf("unexpected AST (-want +got):\n%s", diff)
	}
}

func TestParse_StructsWithHyphenatedFieldNames(t *testing.T) {
	src := `struct A { f1: u32, f2: u64} struct B { fx-1: A, fx-2: instant }`
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Structs) != 2 {
		t.Fatalf("want 2 structs, got %d", len(f.Structs))
	}
	if f.Structs[1].Fields[0].Name != "fx-1" {
		t.Fatalf("want field name fx-1, got %q", f.Structs[1].Fields[0].Name)
	}
}

func TestParse_RPCBlock_UnaryAndStream(t *testing.T) {
	src := `struct request { f1: u32 } struct response { f2: u64 }
rpc { call(request) -> response; streamed(request) -> stream response; }`
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.RPC == nil || len(f.RPC.Methods) != 2 {
		t.Fatalf("want 2 rpc methods, got %+v", f.RPC)
	}
	if f.RPC.Methods[0].Stream {
		t.Fatalf("call() should not be a stream")
	}
	if !f.RPC.Methods[1].Stream {
		t.Fatalf("streamed() should be a stream")
	}
}

func TestParse_ReverseRPCBlock(t *testing.T) {
	src := `struct R { a: u8 } reverse_rpc { notify(R) -> R; }`
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.ReverseRPC == nil || len(f.ReverseRPC.Methods) != 1 {
		t.Fatalf("want 1 reverse rpc method, got %+v", f.ReverseRPC)
	}
}

func TestParse_OptionalAndArrayTypes(t *testing.T) {
	src := `struct A { f1: u32?, f2: [u8] }`
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !f.Structs[0].Fields[0].Type.Optional {
		t.Fatalf("f1 should be optional")
	}
	if !f.Structs[0].Fields[1].Type.Array {
		t.Fatalf("f2 should be an array")
	}
}

func TestParse_RejectsUnexpectedToken(t *testing.T) {
	if _, err := Parse("struct A { f1 u32 }"); err == nil {
		t.Fatalf("want parse error for missing colon")
	}
}

func TestCheck_DuplicateStructName(t *testing.T) {
	f, err := Parse("struct A {} struct A {}")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Check(f)
	var ce *CheckError
	if err == nil {
		t.Fatalf("want CheckError, got nil")
	}
	if !asCheckError(err, &ce) || ce.Kind != RepeatedName {
		t.Fatalf("want RepeatedName, got %v", err)
	}
}

func TestCheck_DuplicateFieldName(t *testing.T) {
	f, err := Parse("struct A { f1: u8, f1: u16 }")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Check(f)
	var ce *CheckError
	if !asCheckError(err, &ce) || ce.Kind != RepeatedFieldName {
		t.Fatalf("want RepeatedFieldName, got %v", err)
	}
}

func TestCheck_UnresolvedTypeReference(t *testing.T) {
	f, err := Parse("struct A { f1: Missing }")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Check(f)
	var ce *CheckError
	if !asCheckError(err, &ce) || ce.Kind != StructNotFound {
		t.Fatalf("want StructNotFound, got %v", err)
	}
}

func TestCheck_TopoSortsStructDependencies(t *testing.T) {
	f, err := Parse("struct B { dep: A } struct A { f1: u8 }")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	checked, err := Check(f)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if checked.Structs[0].Name != "A" || checked.Structs[1].Name != "B" {
		t.Fatalf("want [A B] order, got %v", names(checked.Structs))
	}
}

func TestCheck_DetectsCycle(t *testing.T) {
	f, err := Parse("struct A { b: B } struct B { a: A }")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Check(f)
	var ce *CheckError
	if !asCheckError(err, &ce) || ce.Kind != Cycle {
		t.Fatalf("want Cycle, got %v", err)
	}
}

func TestGenerate_EchoFile_ProducesValidGoSource(t *testing.T) {
	src, err := os.ReadFile("testdata/echo.rpc")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	f, err := Parse(string(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	checked, err := Check(f)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	out, err := Generate("echoservice", checked)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	text := string(out)
	for _, want := range []string{
		"package echoservice",
		"type EchoRequest struct",
		"type Responder interface",
		"ReceivedAt rpcfab.Instant",
		"func (d *Dispatcher) Dispatch(",
		"type ReverseRequester interface",
		"type ReverseResponder interface",
		"func (d *ReverseDispatcher) Dispatch(",
		"func NewServerConnection(",
		"func NewClientConnection(",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("generated source missing %q:\n%s", want, text)
		}
	}
}

func TestGenerate_FileWithoutRPCBlock_OmitsDispatcher(t *testing.T) {
	f, err := Parse("struct A { f1: u8 }")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	checked, err := Check(f)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	out, err := Generate("bare", checked)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(string(out), "type Dispatcher struct") {
		t.Fatalf("did not expect a Dispatcher without an rpc block")
	}
}

func asCheckError(err error, ce **CheckError) bool {
	c, ok := err.(*CheckError)
	if ok {
		*ce = c
	}
	return ok
}

func names(structs []StructDef) []string {
	out := make([]string, len(structs))
	for i, s := range structs {
		out[i] = s.Name
	}
	return out
}
