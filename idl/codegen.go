// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package idl

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"
	"text/template"
)

// Generate renders f as a single Go source file in package pkg: data types
// for every struct/enum and, when the file has a non-empty rpc or reverse_rpc
// block, responder/requester interfaces for both the forward and reverse
// directions (a missing block yields interfaces with no methods), a
// Dispatcher and a ReverseDispatcher wired to rpcfab.Dispatcher, requester
// adapters over rpcfab.RequestSender, and ServerConnection /
// ClientConnection convenience wrappers (spec §4.f "Outputs").
func Generate(pkg string, f *Checked) ([]byte, error) {
	data := struct {
		Package     string
		Structs     []StructDef
		Enums       []EnumDef
		RPC         []RPCMethod
		ReverseRPC  []RPCMethod
		HasAnyRPC   bool
		NeedsFmt    bool
		NeedsRPCFab bool
	}{
		Package: pkg,
	}
	if f.RPC != nil {
		data.RPC = f.RPC.Methods
	}
	if f.ReverseRPC != nil {
		data.ReverseRPC = f.ReverseRPC.Methods
	}
	data.Structs = f.Structs
	data.Enums = f.Enums
	hasAnyRPC := len(data.RPC) > 0 || len(data.ReverseRPC) > 0
	data.HasAnyRPC = hasAnyRPC
	data.NeedsFmt = hasAnyRPC
	data.NeedsRPCFab = hasAnyRPC || usesBinary(f) || usesInstant(f)

	var buf bytes.Buffer
	if err := codeTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("idl: generate: %w", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("idl: generated code did not gofmt: %w", err)
	}
	return formatted, nil
}

func usesInstant(f *Checked) bool {
	hasInstant := func(fields []Field) bool {
		for _, fld := range fields {
			if fld.Type.Name == "instant" {
				return true
			}
		}
		return false
	}
	for _, s := range f.Structs {
		if hasInstant(s.Fields) {
			return true
		}
	}
	for _, e := range f.Enums {
		for _, v := range e.Variants {
			if hasInstant(v.Fields) {
				return true
			}
		}
	}
	types := func(ms []RPCMethod) bool {
		for _, m := range ms {
			if m.Request.Name == "instant" || m.Response.Name == "instant" {
				return true
			}
		}
		return false
	}
	if f.RPC != nil && types(f.RPC.Methods) {
		return true
	}
	if f.ReverseRPC != nil && types(f.ReverseRPC.Methods) {
		return true
	}
	return false
}

func usesBinary(f *Checked) bool {
	hasBinary := func(fields []Field) bool {
		for _, fld := range fields {
			if fld.Type.Name == "binary" {
				return true
			}
		}
		return false
	}
	for _, s := range f.Structs {
		if hasBinary(s.Fields) {
			return true
		}
	}
	for _, e := range f.Enums {
		for _, v := range e.Variants {
			if hasBinary(v.Fields) {
				return true
			}
		}
	}
	return false
}

func goType(t Type) string {
	base := primitiveGoType(t.Name)
	if t.Array {
		base = "[]" + base
	}
	if t.Optional {
		base = "*" + base
	}
	return base
}

func primitiveGoType(name string) string {
	switch name {
	case "u8":
		return "uint8"
	case "u16":
		return "uint16"
	case "u32":
		return "uint32"
	case "u64":
		return "uint64"
	case "s8":
		return "int8"
	case "s16":
		return "int16"
	case "s32":
		return "int32"
	case "s64":
		return "int64"
	case "instant":
		return "rpcfab.Instant"
	case "guid":
		return "[16]byte"
	case "string":
		return "string"
	case "binary":
		return "rpcfab.RawBytes"
	case "void":
		return "struct{}"
	default:
		return exportName(name)
	}
}

func exportName(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' })
	var sb strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]))
		sb.WriteString(p[1:])
	}
	if sb.Len() == 0 {
		return s
	}
	return sb.String()
}

var templateFuncs = template.FuncMap{
	"goType":     goType,
	"exportName": exportName,
	"title":      exportName,
}

// codeTemplate is grounded on the reference compiler's compiler_rust
// templates (generate_responder_rpc, generate_requester_rpc,
// generate_request_dispatcher, generate_requester, ServerConnection), adapted
// to Go interfaces/structs instead of quote!()-built syn::Type trees.
var codeTemplate = template.Must(template.New("idl").Funcs(templateFuncs).Parse(`// Code generated by rpcfabc. DO NOT EDIT.

package {{.Package}}

import (
{{- if .HasAnyRPC}}
	"context"
	"io"
{{- end}}
{{- if .NeedsFmt}}
	"fmt"
{{- end}}
{{- if .NeedsRPCFab}}

	"code.hybscloud.com/rpcfab"
{{- end}}
)

{{range .Structs}}
// {{exportName .Name}} is a generated data type.
type {{exportName .Name}} struct {
{{- range .Fields}}
	{{exportName .Name}} {{goType .Type}} ` + "`" + `json:"{{.Name}}"` + "`" + `
{{- end}}
}
{{end}}

{{range $enum := .Enums}}
// {{exportName $enum.Name}} is a generated tagged union; exactly one field is non-nil.
type {{exportName $enum.Name}} struct {
{{- range $enum.Variants}}
	{{exportName .Name}} *{{exportName $enum.Name}}{{exportName .Name}}Variant
{{- end}}
}
{{range $enum.Variants}}
// {{exportName $enum.Name}}{{exportName .Name}}Variant is the payload of {{exportName $enum.Name}}'s {{.Name}} case.
type {{exportName $enum.Name}}{{exportName .Name}}Variant struct {
{{- range .Fields}}
	{{exportName .Name}} {{goType .Type}} ` + "`" + `json:"{{.Name}}"` + "`" + `
{{- end}}
}
{{end}}
{{end}}

{{if .HasAnyRPC}}
// Responder is implemented by the side handling forward-direction calls. Every
// method also receives the reverse-direction requester, for handlers that need
// to call back into the peer that opened this connection.
type Responder interface {
{{- range .RPC}}
{{- if .Stream}}
	{{exportName .Name}}(ctx context.Context, request {{goType .Request}}, reverse ReverseRequester) (<-chan StreamResultOf{{exportName .Name}}, error)
{{- else}}
	{{exportName .Name}}(ctx context.Context, request {{goType .Request}}, reverse ReverseRequester) ({{goType .Response}}, error)
{{- end}}
{{- end}}
}

// Requester is the forward-direction caller-facing interface, implemented by RequesterAdapter.
type Requester interface {
{{- range .RPC}}
{{- if .Stream}}
	{{exportName .Name}}(ctx context.Context, request {{goType .Request}}) (*StreamOf{{exportName .Name}}, error)
{{- else}}
	{{exportName .Name}}(ctx context.Context, request {{goType .Request}}) ({{goType .Response}}, error)
{{- end}}
{{- end}}
}
{{range .RPC}}
{{if .Stream}}
// StreamResultOf{{exportName .Name}} is one item of {{.Name}}'s streaming response.
type StreamResultOf{{exportName .Name}} struct {
	Value {{goType .Response}}
	Err   error
}

// StreamOf{{exportName .Name}} adapts rpcfab.StreamResult to {{goType .Response}}.
type StreamOf{{exportName .Name}} struct{ raw *rpcfab.StreamResult }

// Recv decodes the next item, if any.
func (s *StreamOf{{exportName .Name}}) Recv(ctx context.Context) ({{goType .Response}}, bool, error) {
	item, done, err := s.raw.Recv(ctx)
	if err != nil || done {
		var zero {{goType .Response}}
		return zero, true, err
	}
	if item.IsErr() {
		var zero {{goType .Response}}
		return zero, true, fmt.Errorf("{{.Name}}: %s", string(item.Err))
	}
	var v {{goType .Response}}
	if err := rpcfab.DecodePayload(item.Ok, &v); err != nil {
		var zero {{goType .Response}}
		return zero, true, err
	}
	return v, false, nil
}

// Close abandons the stream early.
func (s *StreamOf{{exportName .Name}}) Close() { s.raw.Close() }
{{end}}
{{end}}

// RequesterAdapter implements Requester over a raw rpcfab.RequestSender.
type RequesterAdapter struct{ sender *rpcfab.RequestSender }

// NewRequesterAdapter wraps sender as a Requester.
func NewRequesterAdapter(sender *rpcfab.RequestSender) *RequesterAdapter {
	return &RequesterAdapter{sender: sender}
}
{{range .RPC}}
{{if .Stream}}
// {{exportName .Name}} issues the {{.Name}} streaming call.
func (a *RequesterAdapter) {{exportName .Name}}(ctx context.Context, request {{goType .Request}}) (*StreamOf{{exportName .Name}}, error) {
	payload, err := rpcfab.EncodePayload(request)
	if err != nil {
		return nil, err
	}
	raw, err := a.sender.CallStream(ctx, "{{.Name}}", payload)
	if err != nil {
		return nil, err
	}
	return &StreamOf{{exportName .Name}}{raw: raw}, nil
}
{{else}}
// {{exportName .Name}} issues the {{.Name}} unary call.
func (a *RequesterAdapter) {{exportName .Name}}(ctx context.Context, request {{goType .Request}}) ({{goType .Response}}, error) {
	var zero {{goType .Response}}
	payload, err := rpcfab.EncodePayload(request)
	if err != nil {
		return zero, err
	}
	result, err := a.sender.CallUnary(ctx, "{{.Name}}", payload)
	if err != nil {
		return zero, err
	}
	if result.IsErr() {
		return zero, fmt.Errorf("{{.Name}}: %s", string(result.Err))
	}
	var v {{goType .Response}}
	if err := rpcfab.DecodePayload(result.Ok, &v); err != nil {
		return zero, err
	}
	return v, nil
}
{{end}}
{{end}}

// Dispatcher adapts Responder to rpcfab.Dispatcher, decoding each request by
// method name and encoding the handler's return value as a frame sequence
// (spec §4.e). It is wired into the connection that receives forward calls.
type Dispatcher struct {
	Implementation Responder
	Reverse        ReverseRequester
}

// Dispatch implements rpcfab.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, req rpcfab.RequestFrame) <-chan rpcfab.Frame {
	switch req.MethodName {
{{- range .RPC}}
	case "{{.Name}}":
		return d.dispatch{{exportName .Name}}(ctx, req)
{{- end}}
	default:
		return rpcfab.UnknownMethod(req.ID, req.MethodName)
	}
}
{{range .RPC}}
{{if .Stream}}
func (d *Dispatcher) dispatch{{exportName .Name}}(ctx context.Context, req rpcfab.RequestFrame) <-chan rpcfab.Frame {
	out := make(chan rpcfab.Frame, 8)
	go func() {
		defer close(out)
		var arg {{goType .Request}}
		if err := rpcfab.DecodePayload(req.Data, &arg); err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		items, err := d.Implementation.{{exportName .Name}}(ctx, arg, d.Reverse)
		if err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		for item := range items {
			if item.Err != nil {
				out <- errorFrame(req.ID, item.Err)
				return
			}
			data, err := rpcfab.EncodePayload(item.Value)
			if err != nil {
				out <- errorFrame(req.ID, err)
				return
			}
			out <- rpcfab.Frame{ResponseOk: &rpcfab.ResponseOkFrame{RequestID: req.ID, Data: data}}
		}
		out <- rpcfab.Frame{ResponseEndStream: &rpcfab.ResponseEndStreamFrame{RequestID: req.ID}}
	}()
	return out
}
{{else}}
func (d *Dispatcher) dispatch{{exportName .Name}}(ctx context.Context, req rpcfab.RequestFrame) <-chan rpcfab.Frame {
	out := make(chan rpcfab.Frame, 1)
	go func() {
		defer close(out)
		var arg {{goType .Request}}
		if err := rpcfab.DecodePayload(req.Data, &arg); err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		resp, err := d.Implementation.{{exportName .Name}}(ctx, arg, d.Reverse)
		if err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		data, err := rpcfab.EncodePayload(resp)
		if err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		out <- rpcfab.Frame{ResponseOk: &rpcfab.ResponseOkFrame{RequestID: req.ID, Data: data}}
	}()
	return out
}
{{end}}
{{end}}

func errorFrame(id rpcfab.RequestID, err error) rpcfab.Frame {
	data, encErr := rpcfab.EncodePayload(map[string]string{"error": err.Error()})
	if encErr != nil {
		data = rpcfab.RawBytes(`+"`"+`{"error":"internal"}`+"`"+`)
	}
	return rpcfab.Frame{ResponseError: &rpcfab.ResponseErrorFrame{RequestID: id, Data: data}}
}

// ReverseResponder is implemented by the side handling reverse-direction
// calls — typically the client that opened the connection, answering calls
// the peer's forward-direction handlers make back to it. Every method also
// receives the forward-direction requester.
type ReverseResponder interface {
{{- range .ReverseRPC}}
{{- if .Stream}}
	{{exportName .Name}}(ctx context.Context, request {{goType .Request}}, forward Requester) (<-chan StreamResultOf{{exportName .Name}}, error)
{{- else}}
	{{exportName .Name}}(ctx context.Context, request {{goType .Request}}, forward Requester) ({{goType .Response}}, error)
{{- end}}
{{- end}}
}

// ReverseRequester is the interface a Responder handler uses to call back
// into the peer that opened the connection (spec §4.e "reverse calls").
type ReverseRequester interface {
{{- range .ReverseRPC}}
{{- if .Stream}}
	{{exportName .Name}}(ctx context.Context, request {{goType .Request}}) (*StreamOf{{exportName .Name}}, error)
{{- else}}
	{{exportName .Name}}(ctx context.Context, request {{goType .Request}}) ({{goType .Response}}, error)
{{- end}}
{{- end}}
}
{{range .ReverseRPC}}
{{if .Stream}}
// StreamResultOf{{exportName .Name}} is one item of {{.Name}}'s streaming response.
type StreamResultOf{{exportName .Name}} struct {
	Value {{goType .Response}}
	Err   error
}

// StreamOf{{exportName .Name}} adapts rpcfab.StreamResult to {{goType .Response}}.
type StreamOf{{exportName .Name}} struct{ raw *rpcfab.StreamResult }

// Recv decodes the next item, if any.
func (s *StreamOf{{exportName .Name}}) Recv(ctx context.Context) ({{goType .Response}}, bool, error) {
	item, done, err := s.raw.Recv(ctx)
	if err != nil || done {
		var zero {{goType .Response}}
		return zero, true, err
	}
	if item.IsErr() {
		var zero {{goType .Response}}
		return zero, true, fmt.Errorf("{{.Name}}: %s", string(item.Err))
	}
	var v {{goType .Response}}
	if err := rpcfab.DecodePayload(item.Ok, &v); err != nil {
		var zero {{goType .Response}}
		return zero, true, err
	}
	return v, false, nil
}

// Close abandons the stream early.
func (s *StreamOf{{exportName .Name}}) Close() { s.raw.Close() }
{{end}}
{{end}}

// ReverseRequesterAdapter implements ReverseRequester over a raw rpcfab.RequestSender.
type ReverseRequesterAdapter struct{ sender *rpcfab.RequestSender }

// NewReverseRequesterAdapter wraps sender as a ReverseRequester.
func NewReverseRequesterAdapter(sender *rpcfab.RequestSender) *ReverseRequesterAdapter {
	return &ReverseRequesterAdapter{sender: sender}
}
{{range .ReverseRPC}}
{{if .Stream}}
// {{exportName .Name}} issues the {{.Name}} reverse streaming call.
func (a *ReverseRequesterAdapter) {{exportName .Name}}(ctx context.Context, request {{goType .Request}}) (*StreamOf{{exportName .Name}}, error) {
	payload, err := rpcfab.EncodePayload(request)
	if err != nil {
		return nil, err
	}
	raw, err := a.sender.CallStream(ctx, "{{.Name}}", payload)
	if err != nil {
		return nil, err
	}
	return &StreamOf{{exportName .Name}}{raw: raw}, nil
}
{{else}}
// {{exportName .Name}} issues the {{.Name}} reverse unary call.
func (a *ReverseRequesterAdapter) {{exportName .Name}}(ctx context.Context, request {{goType .Request}}) ({{goType .Response}}, error) {
	var zero {{goType .Response}}
	payload, err := rpcfab.EncodePayload(request)
	if err != nil {
		return zero, err
	}
	result, err := a.sender.CallUnary(ctx, "{{.Name}}", payload)
	if err != nil {
		return zero, err
	}
	if result.IsErr() {
		return zero, fmt.Errorf("{{.Name}}: %s", string(result.Err))
	}
	var v {{goType .Response}}
	if err := rpcfab.DecodePayload(result.Ok, &v); err != nil {
		return zero, err
	}
	return v, nil
}
{{end}}
{{end}}

// ReverseDispatcher adapts ReverseResponder to rpcfab.Dispatcher. It is wired
// into the connection that receives reverse calls — the client side.
type ReverseDispatcher struct {
	Implementation ReverseResponder
	Forward        Requester
}

// Dispatch implements rpcfab.Dispatcher.
func (d *ReverseDispatcher) Dispatch(ctx context.Context, req rpcfab.RequestFrame) <-chan rpcfab.Frame {
	switch req.MethodName {
{{- range .ReverseRPC}}
	case "{{.Name}}":
		return d.dispatch{{exportName .Name}}(ctx, req)
{{- end}}
	default:
		return rpcfab.UnknownMethod(req.ID, req.MethodName)
	}
}
{{range .ReverseRPC}}
{{if .Stream}}
func (d *ReverseDispatcher) dispatch{{exportName .Name}}(ctx context.Context, req rpcfab.RequestFrame) <-chan rpcfab.Frame {
	out := make(chan rpcfab.Frame, 8)
	go func() {
		defer close(out)
		var arg {{goType .Request}}
		if err := rpcfab.DecodePayload(req.Data, &arg); err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		items, err := d.Implementation.{{exportName .Name}}(ctx, arg, d.Forward)
		if err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		for item := range items {
			if item.Err != nil {
				out <- errorFrame(req.ID, item.Err)
				return
			}
			data, err := rpcfab.EncodePayload(item.Value)
			if err != nil {
				out <- errorFrame(req.ID, err)
				return
			}
			out <- rpcfab.Frame{ResponseOk: &rpcfab.ResponseOkFrame{RequestID: req.ID, Data: data}}
		}
		out <- rpcfab.Frame{ResponseEndStream: &rpcfab.ResponseEndStreamFrame{RequestID: req.ID}}
	}()
	return out
}
{{else}}
func (d *ReverseDispatcher) dispatch{{exportName .Name}}(ctx context.Context, req rpcfab.RequestFrame) <-chan rpcfab.Frame {
	out := make(chan rpcfab.Frame, 1)
	go func() {
		defer close(out)
		var arg {{goType .Request}}
		if err := rpcfab.DecodePayload(req.Data, &arg); err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		resp, err := d.Implementation.{{exportName .Name}}(ctx, arg, d.Forward)
		if err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		data, err := rpcfab.EncodePayload(resp)
		if err != nil {
			out <- errorFrame(req.ID, err)
			return
		}
		out <- rpcfab.Frame{ResponseOk: &rpcfab.ResponseOkFrame{RequestID: req.ID, Data: data}}
	}()
	return out
}
{{end}}
{{end}}

// ServerConnection binds a byte-stream pair to a Responder implementation,
// running the connection runtime to completion (spec §4.f "server connection
// convenience").
type ServerConnection struct {
	conn *rpcfab.Connection
	impl Responder
}

// NewServerConnection wires r/w into a Connection and captures impl for
// dispatch; the reverse-direction requester is built from the connection's
// own RequestSender once Run starts.
func NewServerConnection(r io.Reader, w io.Writer, impl Responder, opts ...rpcfab.Option) (*ServerConnection, error) {
	conn, err := rpcfab.NewConnection(r, w, opts...)
	if err != nil {
		return nil, err
	}
	return &ServerConnection{conn: conn, impl: impl}, nil
}

// Run drives the connection to completion, dispatching incoming requests to
// the bound Responder.
func (s *ServerConnection) Run(ctx context.Context) error {
	d := &Dispatcher{Implementation: s.impl, Reverse: NewReverseRequesterAdapter(s.conn.RequestSender())}
	return s.conn.Run(ctx, d)
}

// ClientConnection binds a byte-stream pair to a reverse-direction
// ReverseResponder implementation and exposes the forward Requester the
// caller programs against (spec §4.f "client connection convenience").
type ClientConnection struct {
	conn *rpcfab.Connection
	impl ReverseResponder
}

// NewClientConnection binds r/w into a Connection, captures impl to answer
// reverse calls, and returns the forward Requester this side of the
// connection uses to call the peer.
func NewClientConnection(r io.Reader, w io.Writer, impl ReverseResponder, opts ...rpcfab.Option) (*ClientConnection, *RequesterAdapter, error) {
	conn, err := rpcfab.NewConnection(r, w, opts...)
	if err != nil {
		return nil, nil, err
	}
	return &ClientConnection{conn: conn, impl: impl}, NewRequesterAdapter(conn.RequestSender()), nil
}

// Run drives the connection to completion, dispatching any reverse calls the
// peer makes to the bound ReverseResponder.
func (c *ClientConnection) Run(ctx context.Context) error {
	d := &ReverseDispatcher{Implementation: c.impl, Forward: NewRequesterAdapter(c.conn.RequestSender())}
	return c.conn.Run(ctx, d)
}
{{end}}
`))
