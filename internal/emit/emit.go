// Package emit turns checked registrations into Go source.
//
// Emission happens in two steps. Emit lowers every record into IR statements;
// Render assigns import aliases, prints the statements and formats the file.
// Both steps are pure: equal input yields byte-identical output.
package emit

import (
	"errors"
	"fmt"
	"go/token"
	"slices"
	"strconv"

	"github.com/sghaida/locatorgen/internal/model"
	"github.com/sghaida/locatorgen/locator"
)

// ErrEmission marks an internal failure to produce output. Unlike diagnostics
// it is fatal for the package being generated.
var ErrEmission = errors.New("emission failed")

// Defaults applied to zero Options fields.
const (
	DefaultFunc          = "Initialize"
	DefaultLocatorImport = "github.com/sghaida/locatorgen/locator"
	DefaultGenerator     = "locatorgen"
)

// Preferred local names of the generated code. A name already used at
// package scope gets the first free numeric suffix.
const (
	resolverName = "r"
	valueName    = "v"
	lazyPrefix   = "lazy"
)

// Options controls the generated file.
type Options struct {
	// Package is the name of the package the file belongs to.
	Package string
	// PackagePath is its import path; types of this package are unqualified.
	PackagePath string
	// Func is the name of the generated registration function.
	Func string
	// LocatorImport is the import path of the runtime locator package.
	LocatorImport string
	// Generator is the tool name written in the header.
	Generator string
	// Reserved lists package-level identifiers that generated imports and
	// locals must not shadow.
	Reserved []string
}

func (o Options) withDefaults() Options {
	if o.Func == "" {
		o.Func = DefaultFunc
	}
	if o.LocatorImport == "" {
		o.LocatorImport = DefaultLocatorImport
	}
	if o.Generator == "" {
		o.Generator = DefaultGenerator
	}
	return o
}

func (o Options) validate() error {
	if !token.IsIdentifier(o.Package) {
		return fmt.Errorf("%w: invalid package name %q", ErrEmission, o.Package)
	}
	if !token.IsIdentifier(o.Func) {
		return fmt.Errorf("%w: invalid function name %q", ErrEmission, o.Func)
	}
	return nil
}

// Group holds the statements emitted for one record.
type Group struct {
	Record model.Metadata
	Stmts  []Stmt
}

type emitter struct {
	opts    Options
	locator Package
	names   *locals
	lazies  int
}

// Emit lowers records into statement groups, one group per record in input
// order.
func Emit(records []model.Metadata, opts Options) ([]Group, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	// Local names depend on the package-level identifiers the output refers
	// to, which are only known once the records are lowered.
	groups, err := lower(records, opts, newLocals(nil, opts))
	if err != nil {
		return nil, err
	}
	return lower(records, opts, newLocals(groups, opts))
}

func lower(records []model.Metadata, opts Options, names *locals) ([]Group, error) {
	e := &emitter{opts: opts, names: names}
	e.locator = e.pkg(opts.LocatorImport, "locator")

	groups := make([]Group, 0, len(records))
	for _, md := range records {
		stmts, err := e.record(md)
		if err != nil {
			return nil, err
		}
		groups = append(groups, Group{Record: md, Stmts: stmts})
	}
	return groups, nil
}

func (e *emitter) record(md model.Metadata) ([]Stmt, error) {
	iface := e.typeExpr(md.Interface)
	contract := md.Contract()

	switch md.Kind {
	case model.KindPlain:
		factory := FuncLit{Result: TypeExpr{Name: "any"}, Body: e.build(md)}
		return []Stmt{e.register(factory, iface, contract)}, nil

	case model.KindLazySingleton:
		mode, ok := md.Mode()
		if !ok {
			mode = locator.ExecutionAndPublication.String()
		}
		if !slices.Contains(locator.ModeNames, mode) {
			return nil, fmt.Errorf("%w: %s: unknown mode %q", ErrEmission, md.CallSite, mode)
		}

		name := e.names.claim(fmt.Sprintf("%s%d", lazyPrefix, e.lazies))
		e.lazies++

		lazyType := TypeExpr{Pointer: true, Pkg: e.locator, Name: "Lazy", Args: []TypeExpr{iface}}

		decl := LocalDeclaration{
			Name: name,
			Value: Invocation{
				Fun: e.ref("NewLazy"),
				Args: []Expr{
					FuncLit{Result: iface, Body: e.build(md)},
					e.ref(mode),
				},
			},
		}
		holder := FuncLit{
			Result: TypeExpr{Name: "any"},
			Body:   []Stmt{Return{Value: Ident{Name: name}}},
		}
		projection := FuncLit{
			Result: TypeExpr{Name: "any"},
			Body: []Stmt{Return{Value: Invocation{
				Fun: Selector{X: TypeAssert{X: e.get(lazyType, contract), Type: lazyType}, Sel: "Value"},
			}}},
		}
		return []Stmt{
			decl,
			e.register(holder, lazyType, contract),
			e.register(projection, iface, contract),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s: unknown registration kind %d", ErrEmission, md.CallSite, int(md.Kind))
	}
}

// build returns the body of a factory for md: construct the concrete value,
// inject its fields and return it.
func (e *emitter) build(md model.Metadata) []Stmt {
	var construct Expr
	if md.Constructor.Implicit {
		construct = ObjectConstruction{Type: e.typeExpr(md.Concrete)}
	} else {
		args := make([]Expr, 0, len(md.ConstructorDeps))
		for _, d := range md.ConstructorDeps {
			args = append(args, e.resolve(d.Type))
		}
		construct = Invocation{
			Fun:  Ref{Pkg: e.pkg(md.Constructor.PkgPath, md.Constructor.PkgName), Name: md.Constructor.Name},
			Args: args,
		}
	}

	if len(md.Properties) == 0 {
		return []Stmt{Return{Value: construct}}
	}

	stmts := make([]Stmt, 0, len(md.Properties)+2)
	stmts = append(stmts, LocalDeclaration{Name: e.names.value, Value: construct})
	for _, p := range md.Properties {
		stmts = append(stmts, MemberInitializer{Target: e.names.value, Member: p.Name, Value: e.resolve(p.Type)})
	}
	return append(stmts, Return{Value: Ident{Name: e.names.value}})
}

// register is r.Register(factory, locator.TypeOf[t](), contract).
func (e *emitter) register(factory FuncLit, t TypeExpr, contract string) Stmt {
	return ExprStmt{X: Invocation{
		Fun:  Selector{X: Ident{Name: e.names.resolver}, Sel: "Register"},
		Args: []Expr{factory, e.typeOf(t), StringLit{Value: contract}},
	}}
}

// get is r.Get(locator.TypeOf[t](), contract).
func (e *emitter) get(t TypeExpr, contract string) Expr {
	return Invocation{
		Fun:  Selector{X: Ident{Name: e.names.resolver}, Sel: "Get"},
		Args: []Expr{e.typeOf(t), StringLit{Value: contract}},
	}
}

// resolve is r.Get(locator.TypeOf[T](), "").(T). Dependencies always resolve
// the default contract.
func (e *emitter) resolve(t model.TypeRef) Expr {
	te := e.typeExpr(t)
	return TypeAssert{X: e.get(te, ""), Type: te}
}

func (e *emitter) typeOf(t TypeExpr) Expr {
	return Invocation{Fun: e.ref("TypeOf"), TypeArgs: []TypeExpr{t}}
}

func (e *emitter) ref(name string) Ref {
	return Ref{Pkg: e.locator, Name: name}
}

func (e *emitter) typeExpr(t model.TypeRef) TypeExpr {
	return TypeExpr{Pointer: t.Pointer, Pkg: e.pkg(t.PkgPath, t.PkgName), Name: t.Name}
}

func (e *emitter) pkg(path, name string) Package {
	if path == "" || path == e.opts.PackagePath {
		return Package{}
	}
	return Package{Path: path, Name: name}
}

// locals hands out identifiers for the generated function that do not collide
// with the reserved names, the generated function or any package-level
// identifier the output refers to.
type locals struct {
	taken    map[string]bool
	resolver string
	value    string
}

func newLocals(groups []Group, opts Options) *locals {
	l := &locals{taken: map[string]bool{opts.Func: true}}
	for _, name := range opts.Reserved {
		l.taken[name] = true
	}
	w := visitor{
		typ: func(t TypeExpr) {
			if t.Pkg.IsLocal() {
				l.taken[t.Name] = true
			}
		},
		ref: func(r Ref) {
			if r.Pkg.IsLocal() {
				l.taken[r.Name] = true
			}
		},
		local: func(string) {},
	}
	for _, g := range groups {
		w.stmts(g.Stmts)
	}
	l.resolver = l.claim(resolverName)
	l.value = l.claim(valueName)
	return l
}

// claim reserves base, or base followed by the first free numeric suffix.
func (l *locals) claim(base string) string {
	name := base
	for i := 2; l.taken[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	l.taken[name] = true
	return name
}
