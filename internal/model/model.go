// Package model holds the dependency metadata that flows through the generator
// pipeline, and the capability interface the pipeline uses to ask the host
// compilation about types.
package model

import (
	"go/ast"
	"go/constant"
	"go/token"
	"strings"
)

// Kind selects how a registration is emitted.
type Kind int

const (
	KindPlain Kind = iota
	KindLazySingleton
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "Register"
	case KindLazySingleton:
		return "RegisterLazySingleton"
	default:
		return "Kind(?)"
	}
}

// Recognized call argument names.
const (
	ArgContract = "contract"
	ArgMode     = "mode"
)

// TypeRef is a comparable handle to a resolved type.
//
// PkgPath is empty for predeclared and unnamed types, in which case Name holds
// the full type expression (e.g. "string", "[]byte").
type TypeRef struct {
	PkgPath string
	PkgName string
	Name    string
	Pointer bool
}

// IsZero reports whether t is the zero TypeRef.
func (t TypeRef) IsZero() bool { return t == TypeRef{} }

// Elem returns t without the pointer indirection.
func (t TypeRef) Elem() TypeRef {
	t.Pointer = false
	return t
}

// String renders t qualified by package name, e.g. "*svc.Service".
func (t TypeRef) String() string {
	var sb strings.Builder
	if t.Pointer {
		sb.WriteByte('*')
	}
	if t.PkgName != "" {
		sb.WriteString(t.PkgName)
		sb.WriteByte('.')
	}
	sb.WriteString(t.Name)
	return sb.String()
}

// ParameterValue is one call-site argument such as WithContract("primary").
//
// Text is the verbatim source text of the argument expression. Value is the
// decoded form: the constant string for a contract, the token name for a mode.
type ParameterValue struct {
	Name  string
	Text  string
	Value string
}

// ConstructorDependency is one constructor parameter, in declaration order.
type ConstructorDependency struct {
	Type     TypeRef
	Position int
}

// PropertyDependency is one struct field carrying the injection tag.
type PropertyDependency struct {
	Name     string
	Type     TypeRef
	IsPublic bool
}

// Constructor is a host-supplied constructor signature.
//
// An Implicit constructor is the composite literal of a struct type and has no
// parameters. Unresolved is set, and Params left empty, when a parameter type
// cannot be expressed as a TypeRef; such a constructor cannot be emitted.
type Constructor struct {
	Name       string
	PkgPath    string
	PkgName    string
	Params     []TypeRef
	Implicit   bool
	Variadic   bool
	Exported   bool
	Marked     bool
	Unresolved string
}

// Member is a host-supplied struct field.
type Member struct {
	Name     string
	Type     TypeRef
	Exported bool
	Tagged   bool
	Embedded bool
}

// Key identifies a registration slot in the locator.
type Key struct {
	Interface TypeRef
	Contract  string
}

// Metadata is one extracted registration.
type Metadata struct {
	Kind            Kind
	Interface       TypeRef
	Concrete        TypeRef
	CallSite        token.Position
	Constructor     Constructor
	ConstructorDeps []ConstructorDependency
	Properties      []PropertyDependency
	Arguments       []ParameterValue
}

// Argument returns the first argument with the given name.
func (m Metadata) Argument(name string) (ParameterValue, bool) {
	for _, a := range m.Arguments {
		if a.Name == name {
			return a, true
		}
	}
	return ParameterValue{}, false
}

// Contract returns the contract value, or "" when none was given.
func (m Metadata) Contract() string {
	a, _ := m.Argument(ArgContract)
	return a.Value
}

// Mode returns the thread-safety mode token, if one was given.
func (m Metadata) Mode() (string, bool) {
	a, ok := m.Argument(ArgMode)
	return a.Value, ok
}

// Key returns the (interface, contract) slot this record registers.
func (m Metadata) Key() Key {
	return Key{Interface: m.Interface, Contract: m.Contract()}
}

// Host answers type questions about the package being generated.
//
// The generator is written against this interface only. The gohost package
// implements it on go/types; hosttest implements it in memory for tests.
type Host interface {
	// PackagePath is the import path of the package the code is generated into.
	PackagePath() string

	// ResolveType resolves a type expression found in the package's syntax.
	ResolveType(expr ast.Expr) (TypeRef, error)

	// ConstValue returns the compile-time constant value of expr, if any.
	ConstValue(expr ast.Expr) (constant.Value, bool)

	// ConstructorsOf lists the constructor candidates of t.
	ConstructorsOf(t TypeRef) ([]Constructor, error)

	// MembersOf lists the fields of t (or of *t's element), including
	// unexported ones.
	MembersOf(t TypeRef) ([]Member, error)

	// AssignableTo reports whether a value of concrete is assignable to iface.
	AssignableTo(concrete, iface TypeRef) bool

	// Position maps a syntax position to a file position.
	Position(pos token.Pos) token.Position

	// ScopeNames lists the package-level identifiers of the package, which
	// generated imports and locals must not collide with.
	ScopeNames() []string
}
