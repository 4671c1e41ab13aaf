package gohost

import (
	"context"
	"go/ast"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sghaida/locatorgen/internal/diag"
	"github.com/sghaida/locatorgen/internal/emit"
	"github.com/sghaida/locatorgen/internal/generator"
	"github.com/sghaida/locatorgen/internal/model"
	"github.com/sghaida/locatorgen/internal/scan"
)

// The fixture package declares its own marker functions so it type-checks
// without depending on this module.
const fixtureSrc = `package svc

import "strings"

type Option struct{}

type Mode int

const (
	ExecutionAndPublication Mode = iota
	PublicationOnly
	None
)

func WithContract(string) Option { return Option{} }
func WithMode(Mode) Option       { return Option{} }

func Register[I, C any](r any, opts ...Option)              {}
func RegisterLazySingleton[I, C any](r any, opts ...Option) {}

type IService1 interface{ One() }
type IService2 interface{ Two() }
type ITest interface{ Test() }

type TestConcrete struct {
	s1       IService1
	s2       IService2
	Service3 IService1 ` + "`inject:\"\"`" + `
	hidden   IService2 ` + "`inject:\"\"`" + `
	plain    string
}

func NewTestConcrete(s1 IService1, s2 IService2) *TestConcrete {
	return &TestConcrete{s1: s1, s2: s2}
}

func (*TestConcrete) Test() {}

type Multi struct{ b *strings.Builder }

func NewMulti() *Multi { return &Multi{} }

//locator:constructor
func NewMultiWith(b *strings.Builder) *Multi { return &Multi{b: b} }

func NewMultiVariadic(s ...IService1) *Multi { return &Multi{} }

func NewMultiValue() Multi { return Multi{} }

func (*Multi) Test() {}

type Literal struct {
	Dep IService1 ` + "`inject:\"\"`" + `
}

func (Literal) Test() {}

const primary = "primary"

func registrations(r any) {
	Register[ITest, *TestConcrete](r, WithContract(primary))
	RegisterLazySingleton[ITest, *Multi](r, WithMode(PublicationOnly))
	Register[ITest, Literal](r, WithContract("literal"))
	Register[ITest, []byte](r, WithContract("bytes"))
}
`

const fixturePath = "example.com/svc"

func loadFixture(t *testing.T) *Package {
	t.Helper()
	return loadSource(t, fixtureSrc)
}

// loadSource loads src as the only hand-written file of the fixture module.
func loadSource(t *testing.T, src string) *Package {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module "+fixturePath+"\n\ngo 1.22\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "svc.go"), []byte(src), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "locator_gen.go"), []byte("package svc\n"), 0o644))

	pkgs, err := Load(context.Background(), Config{
		Dir: dir,
		Env: append(os.Environ(), "GOWORK=off", "GOFLAGS=-mod=mod"),
	}, ".")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	require.Empty(t, pkgs[0].Errors)
	require.NotNil(t, pkgs[0].Host)
	return pkgs[0]
}

func fixtureSites(t *testing.T, pkg *Package) []scan.Site {
	t.Helper()
	var out []scan.Site
	for s := range scan.Sites(pkg.Files("locator_gen.go")) {
		out = append(out, s)
	}
	require.Len(t, out, 4)
	return out
}

// TestLoad verifies package metadata and file filtering.
func TestLoad(t *testing.T) {
	pkg := loadFixture(t)

	assert.Equal(t, "svc", pkg.Name)
	assert.Equal(t, fixturePath, pkg.Path)
	assert.Equal(t, fixturePath, pkg.Host.PackagePath())
	assert.Len(t, pkg.Files(), 2)
	assert.Len(t, pkg.Files("locator_gen.go"), 1)
}

// TestHost_Queries verifies type resolution, constructors, members,
// constants and assignability against real type information.
func TestHost_Queries(t *testing.T) {
	pkg := loadFixture(t)
	h := pkg.Host
	sites := fixtureSites(t, pkg)

	iTest, err := h.ResolveType(sites[0].Interface())
	require.NoError(t, err)
	assert.Equal(t, model.TypeRef{PkgPath: fixturePath, PkgName: "svc", Name: "ITest"}, iTest)

	// TestConcrete
	concrete, err := h.ResolveType(sites[0].Concrete())
	require.NoError(t, err)
	assert.Equal(t, model.TypeRef{PkgPath: fixturePath, PkgName: "svc", Name: "TestConcrete", Pointer: true}, concrete)
	assert.True(t, h.AssignableTo(concrete, iTest))

	ctors, err := h.ConstructorsOf(concrete)
	require.NoError(t, err)
	require.Len(t, ctors, 1)
	assert.Equal(t, "NewTestConcrete", ctors[0].Name)
	assert.True(t, ctors[0].Exported)
	assert.Equal(t, []string{"IService1", "IService2"}, []string{ctors[0].Params[0].Name, ctors[0].Params[1].Name})

	members, err := h.MembersOf(concrete)
	require.NoError(t, err)
	require.Len(t, members, 5)
	var tagged []string
	for _, m := range members {
		if m.Tagged {
			tagged = append(tagged, m.Name)
			assert.False(t, m.Type.IsZero())
		}
	}
	assert.Equal(t, []string{"Service3", "hidden"}, tagged)

	call := sites[0].Call.Args[1].(*ast.CallExpr)
	v, ok := h.ConstValue(call.Args[0])
	require.True(t, ok)
	assert.Equal(t, `"primary"`, v.ExactString())

	// Multi: three New* candidates, one marked; NewMultiValue returns a value.
	multi, err := h.ResolveType(sites[1].Concrete())
	require.NoError(t, err)
	ctors, err = h.ConstructorsOf(multi)
	require.NoError(t, err)
	var names []string
	for _, c := range ctors {
		names = append(names, c.Name)
		switch c.Name {
		case "NewMultiWith":
			assert.True(t, c.Marked)
			require.Len(t, c.Params, 1)
			assert.Equal(t, model.TypeRef{PkgPath: "strings", PkgName: "strings", Name: "Builder", Pointer: true}, c.Params[0])
		case "NewMultiVariadic":
			assert.True(t, c.Variadic)
			assert.False(t, c.Marked)
		default:
			assert.False(t, c.Marked)
		}
	}
	assert.Equal(t, []string{"NewMulti", "NewMultiVariadic", "NewMultiWith"}, names)

	// Literal has no constructor function.
	literal, err := h.ResolveType(sites[2].Concrete())
	require.NoError(t, err)
	ctors, err = h.ConstructorsOf(literal)
	require.NoError(t, err)
	assert.Equal(t, []model.Constructor{{Implicit: true, Exported: true}}, ctors)
	assert.True(t, h.AssignableTo(literal, iTest))

	bytes, err := h.ResolveType(sites[3].Concrete())
	require.NoError(t, err)
	assert.Equal(t, model.TypeRef{Name: "[]byte"}, bytes)
	assert.False(t, h.AssignableTo(bytes, iTest))

	_, err = h.ConstructorsOf(model.TypeRef{Name: "never-resolved"})
	assert.Error(t, err)
}

// TestHost_Generate runs the whole pipeline on the fixture.
func TestHost_Generate(t *testing.T) {
	pkg := loadFixture(t)
	bag := &diag.Bag{}

	res, err := generator.Generate(pkg.Host, pkg.Files("locator_gen.go"), bag, generator.Options{
		Emit: emit.Options{Package: pkg.Name, PackagePath: pkg.Path},
	})
	require.NoError(t, err)

	all := bag.All()
	require.Len(t, all, 1)
	assert.Equal(t, diag.AmbiguousConstructor, all[0].Code, "[]byte has no constructor")

	require.Len(t, res.Records, 3)
	assert.Equal(t, "NewMultiWith", res.Records[1].Constructor.Name)

	src := string(res.Source)
	assert.Contains(t, src, `"strings"`)
	assert.Contains(t, src, "v.hidden = r.Get(locator.TypeOf[IService2](), \"\").(IService2)")
	assert.Contains(t, src, "NewMultiWith(r.Get(locator.TypeOf[*strings.Builder](), \"\").(*strings.Builder))")
	assert.Contains(t, src, "v := Literal{}")
	assert.Contains(t, src, "}, locator.TypeOf[ITest](), \"primary\")")
}

const handlerSrc = `package svc

type Option struct{}

func Register[I, C any](r any, opts ...Option) {}

type IService1 interface{ One() }
type IHandler interface{ Handle() }

type Handler struct{ deps []IService1 }

func NewHandler(deps []IService1) *Handler { return &Handler{deps: deps} }

func (*Handler) Handle() {}

var locator = "shadowed by a generated import"

func registrations(r any) {
	Register[IHandler, *Handler](r)
}
`

// TestHost_UnsupportedConstructorParameter verifies a constructor whose
// parameter type cannot be emitted is reported instead of being replaced by
// a composite literal.
func TestHost_UnsupportedConstructorParameter(t *testing.T) {
	pkg := loadSource(t, handlerSrc)
	h := pkg.Host

	handler := model.TypeRef{PkgPath: fixturePath, PkgName: "svc", Name: "Handler", Pointer: true}
	var sites []scan.Site
	for s := range scan.Sites(pkg.Files("locator_gen.go")) {
		sites = append(sites, s)
	}
	require.Len(t, sites, 1)
	concrete, err := h.ResolveType(sites[0].Concrete())
	require.NoError(t, err)
	require.Equal(t, handler, concrete)

	ctors, err := h.ConstructorsOf(handler)
	require.NoError(t, err)
	require.Len(t, ctors, 1)
	assert.Equal(t, "NewHandler", ctors[0].Name)
	assert.False(t, ctors[0].Implicit)
	assert.Empty(t, ctors[0].Params)
	assert.Contains(t, ctors[0].Unresolved, "[]IService1")

	bag := &diag.Bag{}
	res, err := generator.Generate(h, pkg.Files("locator_gen.go"), bag, generator.Options{
		Emit: emit.Options{Package: pkg.Name, PackagePath: pkg.Path},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Source)

	all := bag.All()
	require.Len(t, all, 1)
	assert.Equal(t, diag.UnresolvedType, all[0].Code)
	assert.Contains(t, all[0].Message, "NewHandler")
}

// TestHost_ScopeNames verifies package-level identifiers are listed.
func TestHost_ScopeNames(t *testing.T) {
	pkg := loadSource(t, handlerSrc)

	names := pkg.Host.ScopeNames()
	assert.Contains(t, names, "locator")
	assert.Contains(t, names, "Handler")
	assert.Contains(t, names, "NewHandler")
	assert.Contains(t, names, "registrations")
}
