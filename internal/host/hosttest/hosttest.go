// Package hosttest provides an in-memory model.Host for tests.
//
// Types are looked up by the source text of the type expression, so a test
// parses ordinary Go source and declares what each expression means:
//
//	h := hosttest.New("example.com/svc")
//	foo := h.Type("IFoo", hosttest.Named("example.com/svc", "IFoo"))
//	impl := h.Type("*Foo", hosttest.Ptr(hosttest.Named("example.com/svc", "Foo")))
//	h.Implement(impl, foo)
//	h.Ctor(impl, hosttest.Func("NewFoo", "example.com/svc"))
package hosttest

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"go/types"
	"path"

	"github.com/sghaida/locatorgen/internal/model"
	"github.com/sghaida/locatorgen/locator"
)

// Host is a configurable model.Host.
type Host struct {
	Path string
	Fset *token.FileSet

	Types      map[string]model.TypeRef
	Ctors      map[model.TypeRef][]model.Constructor
	Fields     map[model.TypeRef][]model.Member
	Implements map[model.TypeRef][]model.TypeRef
	Consts     map[string]constant.Value
	Errors     map[model.TypeRef]error
	Names      []string
}

var _ model.Host = (*Host)(nil)

// New returns an empty host generating into pkgPath. The thread-safety modes
// of the locator package are predeclared as constants.
func New(pkgPath string) *Host {
	h := &Host{
		Path:       pkgPath,
		Fset:       token.NewFileSet(),
		Types:      map[string]model.TypeRef{},
		Ctors:      map[model.TypeRef][]model.Constructor{},
		Fields:     map[model.TypeRef][]model.Member{},
		Implements: map[model.TypeRef][]model.TypeRef{},
		Consts:     map[string]constant.Value{},
		Errors:     map[model.TypeRef]error{},
	}
	for i, name := range locator.ModeNames {
		h.Consts["locator."+name] = constant.MakeInt64(int64(i))
	}
	return h
}

// Named builds a TypeRef for a named type of pkgPath.
func Named(pkgPath, name string) model.TypeRef {
	return model.TypeRef{PkgPath: pkgPath, PkgName: path.Base(pkgPath), Name: name}
}

// Builtin builds a TypeRef for a predeclared or unnamed type.
func Builtin(name string) model.TypeRef {
	return model.TypeRef{Name: name}
}

// Ptr returns *t.
func Ptr(t model.TypeRef) model.TypeRef {
	t.Pointer = true
	return t
}

// Func builds an exported constructor function of pkgPath.
func Func(name, pkgPath string, params ...model.TypeRef) model.Constructor {
	return model.Constructor{
		Name:     name,
		PkgPath:  pkgPath,
		PkgName:  path.Base(pkgPath),
		Params:   params,
		Exported: token.IsExported(name),
	}
}

// Implicit builds the composite-literal constructor.
func Implicit() model.Constructor {
	return model.Constructor{Implicit: true, Exported: true}
}

// Type declares that the expression text expr denotes t and returns t.
func (h *Host) Type(expr string, t model.TypeRef) model.TypeRef {
	h.Types[expr] = t
	return t
}

// Ctor appends constructors of t.
func (h *Host) Ctor(t model.TypeRef, ctors ...model.Constructor) {
	h.Ctors[t] = append(h.Ctors[t], ctors...)
}

// Field appends struct fields of t (pointer-ness is ignored).
func (h *Host) Field(t model.TypeRef, members ...model.Member) {
	h.Fields[t.Elem()] = append(h.Fields[t.Elem()], members...)
}

// Implement declares concrete assignable to each iface.
func (h *Host) Implement(concrete model.TypeRef, ifaces ...model.TypeRef) {
	h.Implements[concrete] = append(h.Implements[concrete], ifaces...)
}

// Scope declares package-level identifiers.
func (h *Host) Scope(names ...string) {
	h.Names = append(h.Names, names...)
}

// Const declares a named constant.
func (h *Host) Const(expr string, v constant.Value) {
	h.Consts[expr] = v
}

// PackagePath implements model.Host.
func (h *Host) PackagePath() string { return h.Path }

// ResolveType implements model.Host.
func (h *Host) ResolveType(expr ast.Expr) (model.TypeRef, error) {
	text := types.ExprString(expr)
	if t, ok := h.Types[text]; ok {
		return t, nil
	}
	return model.TypeRef{}, fmt.Errorf("undefined: %s", text)
}

// ConstValue implements model.Host. Basic literals are always constant; other
// expressions must be declared with Const.
func (h *Host) ConstValue(expr ast.Expr) (constant.Value, bool) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		v := constant.MakeFromLiteral(e.Value, e.Kind, 0)
		return v, v.Kind() != constant.Unknown
	case *ast.ParenExpr:
		return h.ConstValue(e.X)
	case *ast.BinaryExpr:
		x, okX := h.ConstValue(e.X)
		y, okY := h.ConstValue(e.Y)
		if !okX || !okY || e.Op != token.ADD {
			return nil, false
		}
		return constant.BinaryOp(x, token.ADD, y), true
	}
	v, ok := h.Consts[types.ExprString(expr)]
	return v, ok
}

// ConstructorsOf implements model.Host.
func (h *Host) ConstructorsOf(t model.TypeRef) ([]model.Constructor, error) {
	if err := h.Errors[t]; err != nil {
		return nil, err
	}
	return h.Ctors[t], nil
}

// MembersOf implements model.Host.
func (h *Host) MembersOf(t model.TypeRef) ([]model.Member, error) {
	if err := h.Errors[t.Elem()]; err != nil {
		return nil, err
	}
	return h.Fields[t.Elem()], nil
}

// AssignableTo implements model.Host.
func (h *Host) AssignableTo(concrete, iface model.TypeRef) bool {
	if concrete == iface {
		return true
	}
	for _, i := range h.Implements[concrete] {
		if i == iface {
			return true
		}
	}
	return false
}

// Position implements model.Host.
func (h *Host) Position(pos token.Pos) token.Position {
	return h.Fset.Position(pos)
}

// ScopeNames implements model.Host.
func (h *Host) ScopeNames() []string { return h.Names }

// Tagged builds an injected field.
func Tagged(name string, t model.TypeRef) model.Member {
	return model.Member{Name: name, Type: t, Exported: token.IsExported(name), Tagged: true}
}

// Plain builds an untagged field.
func Plain(name string, t model.TypeRef) model.Member {
	return model.Member{Name: name, Type: t, Exported: token.IsExported(name)}
}

// Parse parses src into the host's file set.
func (h *Host) Parse(name, src string) (*ast.File, error) {
	return parser.ParseFile(h.Fset, name, src, parser.ParseComments)
}

// MustParse is Parse that panics on error.
func (h *Host) MustParse(name, src string) *ast.File {
	f, err := h.Parse(name, src)
	if err != nil {
		panic(err)
	}
	return f
}
