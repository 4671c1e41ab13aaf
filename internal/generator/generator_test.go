package generator

import (
	"go/ast"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sghaida/locatorgen/internal/diag"
	"github.com/sghaida/locatorgen/internal/emit"
	"github.com/sghaida/locatorgen/internal/host/hosttest"
	"github.com/sghaida/locatorgen/internal/model"
)

const svcPath = "example.com/svc"

const registrationsSrc = `package svc

import "github.com/sghaida/locatorgen/locator"

func registrations(r locator.Resolver) {
	locator.RegisterLazySingleton[ITest, *TestConcrete](r, locator.WithMode(locator.PublicationOnly))
	locator.Register[IFoo, *Foo](r)
	locator.Register[IFoo, *Foo](r)
	locator.Register[IBar, *Bar](r)
	locator.Register[IFoo, *Foo](r, locator.WithContract("named"))
}
`

// newHost declares the types of registrationsSrc. *Bar has two constructors
// of differing arity and no marker.
func newHost() *hosttest.Host {
	h := hosttest.New(svcPath)
	named := func(expr, name string) model.TypeRef {
		return h.Type(expr, hosttest.Named(svcPath, name))
	}
	ptr := func(expr, name string) model.TypeRef {
		return h.Type(expr, hosttest.Ptr(hosttest.Named(svcPath, name)))
	}

	iTest, iFoo, iBar := named("ITest", "ITest"), named("IFoo", "IFoo"), named("IBar", "IBar")
	s1, s2 := hosttest.Named(svcPath, "IService1"), hosttest.Named(svcPath, "IService2")

	concrete := ptr("*TestConcrete", "TestConcrete")
	h.Implement(concrete, iTest)
	h.Ctor(concrete, hosttest.Func("NewTestConcrete", svcPath, s1, s2))
	h.Field(concrete, hosttest.Tagged("Service3", hosttest.Named(svcPath, "IService3")))

	foo := ptr("*Foo", "Foo")
	h.Implement(foo, iFoo)
	h.Ctor(foo, hosttest.Implicit())

	bar := ptr("*Bar", "Bar")
	h.Implement(bar, iBar)
	h.Ctor(bar, hosttest.Func("NewBar", svcPath), hosttest.Func("NewBarWith", svcPath, s1))
	return h
}

func parse(t *testing.T, h *hosttest.Host, src string) []*ast.File {
	t.Helper()
	f, err := h.Parse("registrations.go", src)
	require.NoError(t, err)
	return []*ast.File{f}
}

// TestGenerate_Pipeline verifies a mixed package: valid records are emitted in
// source order while the duplicate and the ambiguous site are reported.
func TestGenerate_Pipeline(t *testing.T) {
	t.Parallel()

	h := newHost()
	bag := &diag.Bag{}

	res, err := Generate(h, parse(t, h, registrationsSrc), bag, Options{
		Emit: emit.Options{Package: "svc", PackagePath: svcPath},
	})
	require.NoError(t, err)

	var codes []diag.Code
	var lines []int
	for _, d := range bag.All() {
		codes = append(codes, d.Code)
		lines = append(lines, d.Pos.Line)
	}
	assert.Equal(t, []diag.Code{diag.AmbiguousConstructor, diag.DuplicateRegistration}, codes)
	assert.Equal(t, []int{9, 8}, lines)

	require.Len(t, res.Records, 3)
	assert.Equal(t, model.KindLazySingleton, res.Records[0].Kind)
	assert.Equal(t, 7, res.Records[1].CallSite.Line)
	assert.Equal(t, "named", res.Records[2].Contract())

	src := string(res.Source)
	assert.True(t, strings.HasPrefix(src, "// Code generated by locatorgen; DO NOT EDIT.\n"))
	assert.Contains(t, src, "func Initialize(r locator.Resolver) {")
	assert.Contains(t, src, "}, locator.PublicationOnly)")
	assert.Equal(t, 1, strings.Count(src, "return &Foo{}\n\t}, locator.TypeOf[IFoo](), \"\")"))
	assert.Contains(t, src, "}, locator.TypeOf[IFoo](), \"named\")")
	assert.NotContains(t, src, "Bar")
}

// TestGenerate_PackageScopeNamesAreNotShadowed verifies package-level names
// of the host push the locator import and the generated locals aside.
func TestGenerate_PackageScopeNamesAreNotShadowed(t *testing.T) {
	t.Parallel()

	h := newHost()
	h.Scope("locator", "r", "v", "lazy0")
	bag := &diag.Bag{}

	res, err := Generate(h, parse(t, h, registrationsSrc), bag, Options{
		Emit: emit.Options{Package: "svc", PackagePath: svcPath},
	})
	require.NoError(t, err)

	src := string(res.Source)
	assert.Contains(t, src, `locator2 "github.com/sghaida/locatorgen/locator"`)
	assert.Contains(t, src, "func Initialize(r2 locator2.Resolver) {")
	assert.Contains(t, src, "lazy02 := locator2.NewLazy(")
	assert.Contains(t, src, "v2.Service3 = ")
	assert.NotContains(t, src, "\tr.Register(")
	assert.NotContains(t, src, " locator.")
}

// TestGenerate_NoRecords verifies nothing is produced when no site survives.
func TestGenerate_NoRecords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		src   string
		diags int
	}{
		{name: "no sites", src: "package svc\n\nfunc nothing() {}\n", diags: 0},
		{name: "only rejected", src: "package svc\n\nfunc f(r R) { Register[IBar, *Bar](r) }\n", diags: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHost()
			bag := &diag.Bag{}
			res, err := Generate(h, parse(t, h, tt.src), bag, Options{Emit: emit.Options{Package: "svc"}})
			require.NoError(t, err)
			assert.Nil(t, res.Source)
			assert.Empty(t, res.Records)
			assert.Equal(t, tt.diags, bag.Len())
		})
	}
}

// TestGenerate_EmissionErrorIsReturned verifies emission failures are fatal
// and wrap ErrEmission.
func TestGenerate_EmissionErrorIsReturned(t *testing.T) {
	t.Parallel()

	h := newHost()
	res, err := Generate(h, parse(t, h, registrationsSrc), &diag.Bag{}, Options{
		Emit: emit.Options{Package: "not a name"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, emit.ErrEmission)
	assert.Contains(t, err.Error(), "generate example.com/svc")
	assert.Nil(t, res.Source)
}

// TestGenerate_LogsStageCounts verifies the debug summary carries the counts.
func TestGenerate_LogsStageCounts(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	h := newHost()

	_, err := Generate(h, parse(t, h, registrationsSrc), &diag.Bag{}, Options{
		Emit:   emit.Options{Package: "svc", PackagePath: svcPath},
		Logger: zap.New(core),
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("pipeline stages done").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, svcPath, fields["package"])
	assert.EqualValues(t, 4, fields["extracted"])
	assert.EqualValues(t, 3, fields["accepted"])
}
