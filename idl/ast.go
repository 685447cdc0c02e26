// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package idl implements the grammar, type checker, and code generator for
// the interface definition language the rpcfab compiler (rpcfabc) consumes.
package idl

// Type is a field or RPC argument type: either a primitive name, a reference
// to a struct/enum defined elsewhere in the file, or one of those wrapped as
// optional or array.
type Type struct {
	Name     string
	Optional bool
	Array    bool
}

// Field is a named, typed member of a struct or enum variant.
type Field struct {
	Name string
	Type Type
}

// StructDef declares a record type.
type StructDef struct {
	Name   string
	Fields []Field
}

// Variant is one case of an EnumDef, itself carrying zero or more fields —
// equivalent to a Rust-style tagged-union enum, not a C-style integer enum.
type Variant struct {
	Name   string
	Fields []Field
}

// EnumDef declares a tagged union.
type EnumDef struct {
	Name     string
	Variants []Variant
}

// RPCMethod is one entry inside an rpc{} or reverse_rpc{} block.
type RPCMethod struct {
	Name     string
	Request  Type
	Response Type
	Stream   bool
}

// RPCBlock groups the forward-direction (caller-to-peer) methods of an
// interface.
type RPCBlock struct {
	Methods []RPCMethod
}

// ReverseRPCBlock groups the reverse-direction (peer-to-caller) methods of an
// interface — the calls a server-side handler is expected to be able to make
// back to whichever client is attached to the same connection.
type ReverseRPCBlock struct {
	Methods []RPCMethod
}

// Metadata carries file-level, non-type declarations (service name, version
// fields). It is parsed and carried through Check; Generate emits nothing
// for it.
type Metadata struct {
	Fields []Field
}

// File is the parsed and not-yet-checked contents of one .rpc source file.
type File struct {
	Metadata   *Metadata
	Structs    []StructDef
	Enums      []EnumDef
	RPC        *RPCBlock
	ReverseRPC *ReverseRPCBlock
}

// PrimitiveTypes are the built-in scalar type names; any other identifier
// used as a Type.Name must resolve to a StructDef or EnumDef in the same
// file.
var PrimitiveTypes = map[string]bool{
	"u8": true, "u16": true, "u32": true, "u64": true,
	"s8": true, "s16": true, "s32": true, "s64": true,
	"instant": true, "guid": true, "string": true, "void": true, "binary": true,
}
