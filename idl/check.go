// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package idl

import "fmt"

// CheckError is the type-checker's error taxonomy (spec §4.f "Type
// checking"), grounded on the reference compiler's TypeCheckError enum.
type CheckError struct {
	Kind       CheckErrorKind
	Name       string
	StructName string
}

// CheckErrorKind distinguishes the four ways a file can fail to check.
type CheckErrorKind int

const (
	// RepeatedName reports a struct or enum name declared more than once.
	RepeatedName CheckErrorKind = iota
	// RepeatedFieldName reports a field declared twice within one struct or variant.
	RepeatedFieldName
	// StructNotFound reports a field or RPC type referencing an undefined name.
	StructNotFound
	// Cycle reports a struct dependency cycle the toposort could not resolve.
	Cycle
)

func (e *CheckError) Error() string {
	switch e.Kind {
	case RepeatedName:
		return fmt.Sprintf("idl: the type with name %q already exists", e.Name)
	case RepeatedFieldName:
		return fmt.Sprintf("idl: a field with name %q already exists in struct %q", e.Name, e.StructName)
	case StructNotFound:
		return fmt.Sprintf("idl: a struct or enum with name %q does not exist", e.Name)
	case Cycle:
		return "idl: struct dependency graph has a cycle"
	default:
		return "idl: type check error"
	}
}

// Checked is a File that has passed Check: every referenced type resolves,
// every name is unique, and Structs is reordered into dependency order (spec
// §4.f "toposorts it to emit definitions in dependency order").
type Checked struct {
	Metadata   *Metadata
	Structs    []StructDef // topologically sorted: dependencies before dependents
	Enums      []EnumDef
	RPC        *RPCBlock
	ReverseRPC *ReverseRPCBlock
}

// Check validates f against the rules in spec §4.f and returns a Checked
// file with structs reordered for dependency-safe codegen.
func Check(f *File) (*Checked, error) {
	names := make(map[string]bool, len(f.Structs)+len(f.Enums))
	for _, s := range f.Structs {
		if names[s.Name] {
			return nil, &CheckError{Kind: RepeatedName, Name: s.Name}
		}
		names[s.Name] = true
		if err := checkFieldNames(s.Name, s.Fields); err != nil {
			return nil, err
		}
	}
	for _, e := range f.Enums {
		if names[e.Name] {
			return nil, &CheckError{Kind: RepeatedName, Name: e.Name}
		}
		names[e.Name] = true
		for _, v := range e.Variants {
			if err := checkFieldNames(e.Name+"."+v.Name, v.Fields); err != nil {
				return nil, err
			}
		}
	}

	resolve := func(t Type) error {
		if PrimitiveTypes[t.Name] || names[t.Name] {
			return nil
		}
		return &CheckError{Kind: StructNotFound, Name: t.Name}
	}
	for _, s := range f.Structs {
		for _, fld := range s.Fields {
			if err := resolve(fld.Type); err != nil {
				return nil, err
			}
		}
	}
	for _, e := range f.Enums {
		for _, v := range e.Variants {
			for _, fld := range v.Fields {
				if err := resolve(fld.Type); err != nil {
					return nil, err
				}
			}
		}
	}
	if f.RPC != nil {
		for _, m := range f.RPC.Methods {
			if err := resolve(m.Request); err != nil {
				return nil, err
			}
			if err := resolve(m.Response); err != nil {
				return nil, err
			}
		}
	}
	if f.ReverseRPC != nil {
		for _, m := range f.ReverseRPC.Methods {
			if err := resolve(m.Request); err != nil {
				return nil, err
			}
			if err := resolve(m.Response); err != nil {
				return nil, err
			}
		}
	}

	ordered, err := toposortStructs(f.Structs)
	if err != nil {
		return nil, err
	}

	return &Checked{
		Metadata:   f.Metadata,
		Structs:    ordered,
		Enums:      f.Enums,
		RPC:        f.RPC,
		ReverseRPC: f.ReverseRPC,
	}, nil
}

func checkFieldNames(owner string, fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, fld := range fields {
		if seen[fld.Name] {
			return &CheckError{Kind: RepeatedFieldName, Name: fld.Name, StructName: owner}
		}
		seen[fld.Name] = true
	}
	return nil
}

// toposortStructs orders structs so that every struct-typed field is
// defined before the struct that embeds it (spec §4.f). It uses a plain
// depth-first visit rather than a graph library, since the pack carries no
// graph dependency usable from Go for this.
func toposortStructs(structs []StructDef) ([]StructDef, error) {
	byName := make(map[string]StructDef, len(structs))
	for _, s := range structs {
		byName[s.Name] = s
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(structs))
	var order []StructDef

	var visit func(name string) error
	visit = func(name string) error {
		s, ok := byName[name]
		if !ok {
			return nil // not a struct (primitive or enum); nothing to order
		}
		switch state[name] {
		case done:
			return nil
		case visiting:
			return &CheckError{Kind: Cycle, Name: name}
		}
		state[name] = visiting
		for _, fld := range s.Fields {
			if err := visit(fld.Type.Name); err != nil {
				return err
			}
		}
		state[name] = done
		order = append(order, s)
		return nil
	}

	for _, s := range structs {
		if err := visit(s.Name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
