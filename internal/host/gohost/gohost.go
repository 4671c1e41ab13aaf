// Package gohost implements model.Host on go/types, loading packages with
// golang.org/x/tools/go/packages.
package gohost

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"go/types"
	"path/filepath"
	"reflect"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/sghaida/locatorgen/internal/model"
)

// Defaults for Config.
const (
	DefaultInjectTag         = "inject"
	DefaultConstructorMarker = "locator:constructor"
)

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo

// Config controls loading.
type Config struct {
	// Dir is the working directory patterns are resolved against.
	Dir string
	// Env overrides the environment of the underlying go command.
	Env []string
	// InjectTag is the struct tag key marking injected fields.
	InjectTag string
	// ConstructorMarker is the doc-comment directive, without the leading
	// "//", that selects a constructor among several.
	ConstructorMarker string
}

func (c Config) withDefaults() Config {
	if c.InjectTag == "" {
		c.InjectTag = DefaultInjectTag
	}
	if c.ConstructorMarker == "" {
		c.ConstructorMarker = DefaultConstructorMarker
	}
	return c
}

// Package is one loaded package ready for generation.
type Package struct {
	Name string
	Path string
	Dir  string
	Host *Host

	// Errors are load and type errors. Generation still runs on the partial
	// type information.
	Errors []error

	files []*ast.File
}

// ErrNoPackages is returned when the patterns match nothing.
var ErrNoPackages = errors.New("gohost: no packages matched")

// Load loads the packages matched by patterns, in the order the go command
// reports them.
func Load(ctx context.Context, cfg Config, patterns ...string) ([]*Package, error) {
	cfg = cfg.withDefaults()

	pkgs, err := packages.Load(&packages.Config{
		Mode:    loadMode,
		Context: ctx,
		Dir:     cfg.Dir,
		Env:     cfg.Env,
	}, patterns...)
	if err != nil {
		return nil, fmt.Errorf("gohost: load %s: %w", strings.Join(patterns, " "), err)
	}
	if len(pkgs) == 0 {
		return nil, ErrNoPackages
	}

	out := make([]*Package, 0, len(pkgs))
	for _, p := range pkgs {
		pkg := &Package{
			Name:  p.Name,
			Path:  p.PkgPath,
			files: p.Syntax,
		}
		if len(p.GoFiles) > 0 {
			pkg.Dir = filepath.Dir(p.GoFiles[0])
		}
		for _, e := range p.Errors {
			pkg.Errors = append(pkg.Errors, e)
		}
		if p.Types != nil && p.TypesInfo != nil {
			pkg.Host = newHost(p, cfg)
		} else {
			pkg.Errors = append(pkg.Errors, fmt.Errorf("gohost: %s: no type information", p.PkgPath))
		}
		out = append(out, pkg)
	}
	return out, nil
}

// Files returns the syntax of the package, skipping files whose base name is
// in exclude.
func (p *Package) Files(exclude ...string) []*ast.File {
	if p.Host == nil {
		return nil
	}
	out := make([]*ast.File, 0, len(p.files))
	for _, f := range p.files {
		name := filepath.Base(p.Host.fset.Position(f.Package).Filename)
		skip := false
		for _, ex := range exclude {
			if name == ex {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, f)
		}
	}
	return out
}

// Host answers model.Host queries for one package.
type Host struct {
	pkg    *types.Package
	info   *types.Info
	fset   *token.FileSet
	tag    string
	marker string

	resolved map[model.TypeRef]types.Type
	docs     map[string]map[int]*ast.CommentGroup
}

var _ model.Host = (*Host)(nil)

func newHost(p *packages.Package, cfg Config) *Host {
	return &Host{
		pkg:      p.Types,
		info:     p.TypesInfo,
		fset:     p.Fset,
		tag:      cfg.InjectTag,
		marker:   "//" + cfg.ConstructorMarker,
		resolved: map[model.TypeRef]types.Type{},
		docs:     map[string]map[int]*ast.CommentGroup{},
	}
}

// PackagePath implements model.Host.
func (h *Host) PackagePath() string { return h.pkg.Path() }

// Position implements model.Host.
func (h *Host) Position(pos token.Pos) token.Position { return h.fset.Position(pos) }

// ScopeNames implements model.Host.
func (h *Host) ScopeNames() []string { return h.pkg.Scope().Names() }

// ResolveType implements model.Host.
func (h *Host) ResolveType(expr ast.Expr) (model.TypeRef, error) {
	tv, ok := h.info.Types[expr]
	if !ok || tv.Type == nil {
		return model.TypeRef{}, errors.New("no type information")
	}
	if !tv.IsType() {
		return model.TypeRef{}, errors.New("not a type")
	}
	if tv.Type == types.Typ[types.Invalid] {
		return model.TypeRef{}, errors.New("invalid type")
	}
	return h.ref(tv.Type)
}

// ConstValue implements model.Host.
func (h *Host) ConstValue(expr ast.Expr) (constant.Value, bool) {
	tv, ok := h.info.Types[expr]
	if !ok || tv.Value == nil {
		return nil, false
	}
	return tv.Value, true
}

// ref maps t to a TypeRef and remembers the mapping for later queries.
func (h *Host) ref(t types.Type) (model.TypeRef, error) {
	t = types.Unalias(t)

	var out model.TypeRef
	elem := t
	if p, ok := t.(*types.Pointer); ok {
		out.Pointer = true
		elem = types.Unalias(p.Elem())
	}

	switch e := elem.(type) {
	case *types.Named:
		if e.TypeArgs().Len() > 0 {
			return model.TypeRef{}, fmt.Errorf("generic type %s is not supported", types.TypeString(t, nil))
		}
		obj := e.Obj()
		out.Name = obj.Name()
		if pkg := obj.Pkg(); pkg != nil {
			out.PkgPath = pkg.Path()
			out.PkgName = pkg.Name()
		}
	case *types.Basic:
		out.Name = e.Name()
	default:
		qualified := false
		text := types.TypeString(elem, func(*types.Package) string {
			qualified = true
			return ""
		})
		if qualified {
			return model.TypeRef{}, fmt.Errorf("unsupported type shape %s", types.TypeString(t, nil))
		}
		if iface, ok := elem.(*types.Interface); ok && iface.Empty() {
			text = "any"
		}
		out.Name = text
	}

	h.resolved[out] = t
	return out, nil
}

func (h *Host) lookup(t model.TypeRef) (types.Type, error) {
	typ, ok := h.resolved[t]
	if !ok {
		return nil, fmt.Errorf("type %s was not resolved", t)
	}
	return typ, nil
}

// ConstructorsOf implements model.Host. Candidates are package-level
// functions named New* (or new*) returning exactly t, kept even when a
// parameter type is unsupported; the composite literal is offered only when
// there is no such function and t is a struct or a pointer to one.
func (h *Host) ConstructorsOf(t model.TypeRef) ([]model.Constructor, error) {
	typ, err := h.lookup(t)
	if err != nil {
		return nil, err
	}

	elem := typ
	if p, ok := typ.(*types.Pointer); ok {
		elem = p.Elem()
	}
	named, ok := types.Unalias(elem).(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return nil, nil
	}
	pkg := named.Obj().Pkg()

	var out []model.Constructor
	scope := pkg.Scope()
	for _, name := range scope.Names() {
		if !strings.HasPrefix(name, "New") && !strings.HasPrefix(name, "new") {
			continue
		}
		fn, ok := scope.Lookup(name).(*types.Func)
		if !ok {
			continue
		}
		sig := fn.Type().(*types.Signature)
		if sig.TypeParams().Len() > 0 || sig.Results().Len() != 1 {
			continue
		}
		if !types.Identical(sig.Results().At(0).Type(), typ) {
			continue
		}

		params := make([]model.TypeRef, 0, sig.Params().Len())
		var unresolved string
		for i := 0; i < sig.Params().Len(); i++ {
			pt := sig.Params().At(i).Type()
			ref, err := h.ref(pt)
			if err != nil {
				unresolved = fmt.Sprintf("parameter %d (%s): %v", i, types.TypeString(pt, types.RelativeTo(h.pkg)), err)
				params = nil
				break
			}
			params = append(params, ref)
		}

		out = append(out, model.Constructor{
			Name:       name,
			PkgPath:    pkg.Path(),
			PkgName:    pkg.Name(),
			Params:     params,
			Variadic:   sig.Variadic(),
			Exported:   fn.Exported(),
			Marked:     h.marked(fn),
			Unresolved: unresolved,
		})
	}

	if len(out) == 0 {
		if _, isStruct := named.Underlying().(*types.Struct); isStruct {
			out = append(out, model.Constructor{Implicit: true, Exported: true})
		}
	}
	return out, nil
}

// marked reports whether the doc comment of fn carries the constructor marker.
// Functions outside the loaded package are read back from their source file.
func (h *Host) marked(fn *types.Func) bool {
	pos := h.fset.Position(fn.Pos())
	if !pos.IsValid() || pos.Filename == "" {
		return false
	}
	docs, ok := h.docs[pos.Filename]
	if !ok {
		docs = funcDocs(pos.Filename)
		h.docs[pos.Filename] = docs
	}
	doc := docs[pos.Offset]
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if strings.TrimSpace(c.Text) == h.marker {
			return true
		}
	}
	return false
}

// funcDocs parses filename and indexes function doc comments by the file
// offset of the function name.
func funcDocs(filename string) map[int]*ast.CommentGroup {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, nil, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil
	}
	out := map[int]*ast.CommentGroup{}
	for _, decl := range f.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv != nil || fd.Doc == nil {
			continue
		}
		out[fset.Position(fd.Name.Pos()).Offset] = fd.Doc
	}
	return out
}

// MembersOf implements model.Host. Field types are resolved for tagged
// fields only; an unsupported tagged field type yields a zero TypeRef.
func (h *Host) MembersOf(t model.TypeRef) ([]model.Member, error) {
	typ, err := h.lookup(t)
	if err != nil {
		return nil, err
	}
	if p, ok := typ.(*types.Pointer); ok {
		typ = p.Elem()
	}
	st, ok := typ.Underlying().(*types.Struct)
	if !ok {
		return nil, nil
	}

	out := make([]model.Member, 0, st.NumFields())
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		_, tagged := reflect.StructTag(st.Tag(i)).Lookup(h.tag)
		m := model.Member{
			Name:     f.Name(),
			Exported: f.Exported(),
			Tagged:   tagged,
			Embedded: f.Embedded(),
		}
		if tagged {
			if ref, err := h.ref(f.Type()); err == nil {
				m.Type = ref
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// AssignableTo implements model.Host.
func (h *Host) AssignableTo(concrete, iface model.TypeRef) bool {
	c, err := h.lookup(concrete)
	if err != nil {
		return false
	}
	i, err := h.lookup(iface)
	if err != nil {
		return false
	}
	return types.AssignableTo(c, i)
}
