// Package scan finds registration call sites in parsed Go files.
package scan

import (
	"go/ast"
	"iter"

	"github.com/sghaida/locatorgen/internal/model"
)

// Callee names of the registration markers.
const (
	RegisterName              = "Register"
	RegisterLazySingletonName = "RegisterLazySingleton"
)

// Site is one candidate registration call.
type Site struct {
	File     *ast.File
	Call     *ast.CallExpr
	Kind     model.Kind
	TypeArgs [2]ast.Expr
}

// Interface is the first type argument.
func (s Site) Interface() ast.Expr { return s.TypeArgs[0] }

// Concrete is the second type argument.
func (s Site) Concrete() ast.Expr { return s.TypeArgs[1] }

// Sites yields every call of Register[I, C] or RegisterLazySingleton[I, C] in
// files, in file order and source order within a file. Other calls are skipped.
func Sites(files []*ast.File) iter.Seq[Site] {
	return func(yield func(Site) bool) {
		for _, f := range files {
			if f == nil {
				continue
			}
			stopped := false
			ast.Inspect(f, func(n ast.Node) bool {
				if stopped {
					return false
				}
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				site, ok := Match(call)
				if !ok {
					return true
				}
				site.File = f
				if !yield(site) {
					stopped = true
					return false
				}
				return true
			})
			if stopped {
				return
			}
		}
	}
}

// Match reports whether call is a registration marker call instantiated with
// exactly two type arguments.
func Match(call *ast.CallExpr) (Site, bool) {
	index, ok := call.Fun.(*ast.IndexListExpr)
	if !ok || len(index.Indices) != 2 {
		return Site{}, false
	}

	var kind model.Kind
	switch calleeName(index.X) {
	case RegisterName:
		kind = model.KindPlain
	case RegisterLazySingletonName:
		kind = model.KindLazySingleton
	default:
		return Site{}, false
	}

	return Site{
		Call:     call,
		Kind:     kind,
		TypeArgs: [2]ast.Expr{index.Indices[0], index.Indices[1]},
	}, true
}

func calleeName(fun ast.Expr) string {
	switch f := fun.(type) {
	case *ast.Ident:
		return f.Name
	case *ast.SelectorExpr:
		return f.Sel.Name
	default:
		return ""
	}
}
