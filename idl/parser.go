// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package idl

import "fmt"

// Parse turns .rpc source text into a File AST. It performs no type
// checking; see Check for that pass (spec §4.f "Type checking").
//
// Grammar (per spec §4.f, extended with reverse_rpc per the original):
//
//	file       := metadata? item*
//	item       := struct | enum | rpc_block | reverse_rpc_block
//	struct     := "struct" Ident "{" (field ",")* "}"
//	enum       := "enum"   Ident "{" (variant ",")* "}"
//	variant    := Ident "(" (field ",")* ")"
//	field      := Ident ":" type
//	type       := Ident | Ident "?" | "[" type "]"
//	rpc_block  := "rpc" "{" rpc_def* "}"
//	reverse    := "reverse_rpc" "{" rpc_def* "}"
//	rpc_def    := Ident "(" type ")" "->" ("stream")? type ";"
func Parse(src string) (*File, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p.parseFile()
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) errf(format string, args ...any) error {
	return fmt.Errorf("idl: line %d: %s", p.tok.line, fmt.Sprintf(format, args...))
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if p.tok.kind != k {
		return token{}, p.errf("expected %s, got %q", what, p.tok.text)
	}
	t := p.tok
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return t, nil
}

func (p *parser) parseFile() (*File, error) {
	f := &File{}
	if p.tok.kind == tokIdent && p.tok.text == "metadata" {
		md, err := p.parseMetadata()
		if err != nil {
			return nil, err
		}
		f.Metadata = md
	}
	for p.tok.kind == tokIdent {
		switch p.tok.text {
		case "struct":
			s, err := p.parseStruct()
			if err != nil {
				return nil, err
			}
			f.Structs = append(f.Structs, *s)
		case "enum":
			e, err := p.parseEnum()
			if err != nil {
				return nil, err
			}
			f.Enums = append(f.Enums, *e)
		case "rpc":
			if f.RPC != nil {
				return nil, p.errf("duplicate rpc block")
			}
			b, err := p.parseRPCBlock()
			if err != nil {
				return nil, err
			}
			f.RPC = b
		case "reverse_rpc":
			if f.ReverseRPC != nil {
				return nil, p.errf("duplicate reverse_rpc block")
			}
			b, err := p.parseReverseRPCBlock()
			if err != nil {
				return nil, err
			}
			f.ReverseRPC = b
		default:
			return nil, p.errf("unexpected top-level item %q", p.tok.text)
		}
	}
	if p.tok.kind != tokEOF {
		return nil, p.errf("unexpected trailing token %q", p.tok.text)
	}
	return f, nil
}

func (p *parser) parseIdent(what string) (string, error) {
	t, err := p.expect(tokIdent, what)
	if err != nil {
		return "", err
	}
	return t.text, nil
}

func (p *parser) parseMetadata() (*Metadata, error) {
	if err := p.advance(); err != nil { // consume "metadata"
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	var fields []Field
	for p.tok.kind == tokIdent {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(tokRBrace, "}"); err != nil {
		return nil, err
	}
	return &Metadata{Fields: fields}, nil
}

func (p *parser) parseField() (Field, error) {
	name, err := p.parseIdent("field name")
	if err != nil {
		return Field{}, err
	}
	if _, err := p.expect(tokColon, ":"); err != nil {
		return Field{}, err
	}
	typ, err := p.parseType()
	if err != nil {
		return Field{}, err
	}
	return Field{Name: name, Type: typ}, nil
}

func (p *parser) parseType() (Type, error) {
	if p.tok.kind == tokLBracket {
		if err := p.advance(); err != nil {
			return Type{}, err
		}
		inner, err := p.parseType()
		if err != nil {
			return Type{}, err
		}
		if _, err := p.expect(tokRBracket, "]"); err != nil {
			return Type{}, err
		}
		inner.Array = true
		return inner, nil
	}
	name, err := p.parseIdent("type name")
	if err != nil {
		return Type{}, err
	}
	t := Type{Name: name}
	if p.tok.kind == tokQuestion {
		t.Optional = true
		if err := p.advance(); err != nil {
			return Type{}, err
		}
	}
	return t, nil
}

func (p *parser) parseStruct() (*StructDef, error) {
	if err := p.advance(); err != nil { // consume "struct"
		return nil, err
	}
	name, err := p.parseIdent("struct name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	var fields []Field
	for p.tok.kind == tokIdent {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		if p.tok.kind != tokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokRBrace, "}"); err != nil {
		return nil, err
	}
	return &StructDef{Name: name, Fields: fields}, nil
}

func (p *parser) parseEnum() (*EnumDef, error) {
	if err := p.advance(); err != nil { // consume "enum"
		return nil, err
	}
	name, err := p.parseIdent("enum name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	var variants []Variant
	for p.tok.kind == tokIdent {
		v, err := p.parseVariant()
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
		if p.tok.kind != tokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokRBrace, "}"); err != nil {
		return nil, err
	}
	return &EnumDef{Name: name, Variants: variants}, nil
}

func (p *parser) parseVariant() (Variant, error) {
	name, err := p.parseIdent("variant name")
	if err != nil {
		return Variant{}, err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return Variant{}, err
	}
	var fields []Field
	for p.tok.kind == tokIdent {
		f, err := p.parseField()
		if err != nil {
			return Variant{}, err
		}
		fields = append(fields, f)
		if p.tok.kind != tokComma {
			break
		}
		if err := p.advance(); err != nil {
			return Variant{}, err
		}
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return Variant{}, err
	}
	return Variant{Name: name, Fields: fields}, nil
}

func (p *parser) parseRPCBlock() (*RPCBlock, error) {
	if err := p.advance(); err != nil { // consume "rpc"
		return nil, err
	}
	methods, err := p.parseRPCMethods()
	if err != nil {
		return nil, err
	}
	return &RPCBlock{Methods: methods}, nil
}

func (p *parser) parseReverseRPCBlock() (*ReverseRPCBlock, error) {
	if err := p.advance(); err != nil { // consume "reverse_rpc"
		return nil, err
	}
	methods, err := p.parseRPCMethods()
	if err != nil {
		return nil, err
	}
	return &ReverseRPCBlock{Methods: methods}, nil
}

func (p *parser) parseRPCMethods() ([]RPCMethod, error) {
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	var methods []RPCMethod
	for p.tok.kind == tokIdent {
		m, err := p.parseRPCMethod()
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	if _, err := p.expect(tokRBrace, "}"); err != nil {
		return nil, err
	}
	return methods, nil
}

func (p *parser) parseRPCMethod() (RPCMethod, error) {
	name, err := p.parseIdent("rpc method name")
	if err != nil {
		return RPCMethod{}, err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return RPCMethod{}, err
	}
	req, err := p.parseType()
	if err != nil {
		return RPCMethod{}, err
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return RPCMethod{}, err
	}
	if _, err := p.expect(tokArrow, "->"); err != nil {
		return RPCMethod{}, err
	}
	stream := false
	if p.tok.kind == tokIdent && p.tok.text == "stream" {
		stream = true
		if err := p.advance(); err != nil {
			return RPCMethod{}, err
		}
	}
	resp, err := p.parseType()
	if err != nil {
		return RPCMethod{}, err
	}
	if _, err := p.expect(tokSemicolon, ";"); err != nil {
		return RPCMethod{}, err
	}
	return RPCMethod{Name: name, Request: req, Response: resp, Stream: stream}, nil
}
