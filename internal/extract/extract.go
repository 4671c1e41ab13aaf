// Package extract turns registration call sites into dependency metadata.
//
// Extraction is best effort: every problem of a site is reported and the site
// is dropped, while the remaining sites are still processed.
package extract

import (
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sghaida/locatorgen/internal/diag"
	"github.com/sghaida/locatorgen/internal/model"
	"github.com/sghaida/locatorgen/internal/scan"
	"github.com/sghaida/locatorgen/locator"
)

const optionPrefix = "With"

// Extractor reads metadata through a model.Host.
type Extractor struct {
	host     model.Host
	reporter diag.Reporter
	logger   *zap.Logger
}

// New returns an Extractor. A nil logger disables logging.
func New(host model.Host, reporter diag.Reporter, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{host: host, reporter: reporter, logger: logger}
}

// ExtractAll extracts every site in order and returns the records that were
// extracted without error.
func (e *Extractor) ExtractAll(sites iter.Seq[scan.Site]) []model.Metadata {
	var out []model.Metadata
	for site := range sites {
		if md, ok := e.Extract(site); ok {
			out = append(out, md)
		}
	}
	return out
}

// siteState collects the diagnostics of a single call site.
type siteState struct {
	e   *Extractor
	pos token.Position
	ok  bool
}

func (s *siteState) fail(code diag.Code, format string, args ...any) {
	s.ok = false
	s.e.reporter.Report(diag.New(code, s.pos, format, args...))
}

// Extract builds the metadata of one site. It returns false when the site was
// rejected; the reasons have been reported.
func (e *Extractor) Extract(site scan.Site) (model.Metadata, bool) {
	st := &siteState{e: e, pos: e.host.Position(site.Call.Pos()), ok: true}

	md := model.Metadata{Kind: site.Kind, CallSite: st.pos}

	iface, ifaceErr := e.host.ResolveType(site.Interface())
	if ifaceErr != nil {
		st.fail(diag.UnresolvedType, "cannot resolve interface type %s: %v", types.ExprString(site.Interface()), ifaceErr)
	}
	concrete, concreteErr := e.host.ResolveType(site.Concrete())
	if concreteErr != nil {
		st.fail(diag.UnresolvedType, "cannot resolve concrete type %s: %v", types.ExprString(site.Concrete()), concreteErr)
	}
	md.Interface = iface
	md.Concrete = concrete

	if concreteErr == nil {
		if ctor, found := e.selectConstructor(st, concrete); found {
			md.Constructor = ctor
			for i, p := range ctor.Params {
				md.ConstructorDeps = append(md.ConstructorDeps, model.ConstructorDependency{Type: p, Position: i})
			}
		}
		md.Properties = e.properties(st, concrete)
	}

	md.Arguments = e.arguments(st, site)

	if !st.ok {
		e.logger.Debug("registration rejected during extraction",
			zap.String("site", st.pos.String()),
			zap.Stringer("kind", site.Kind),
		)
		return model.Metadata{}, false
	}

	e.logger.Debug("registration extracted",
		zap.String("site", st.pos.String()),
		zap.Stringer("kind", md.Kind),
		zap.Stringer("interface", md.Interface),
		zap.Stringer("concrete", md.Concrete),
		zap.Int("constructorDeps", len(md.ConstructorDeps)),
		zap.Int("properties", len(md.Properties)),
	)
	return md, true
}

// selectConstructor picks the single applicable constructor of concrete.
// When several apply, exactly one of them must carry the constructor marker.
func (e *Extractor) selectConstructor(st *siteState, concrete model.TypeRef) (model.Constructor, bool) {
	ctors, err := e.host.ConstructorsOf(concrete)
	if err != nil {
		st.fail(diag.UnresolvedType, "cannot list constructors of %s: %v", concrete, err)
		return model.Constructor{}, false
	}

	var applicable []model.Constructor
	for _, c := range ctors {
		if e.applicable(c) {
			applicable = append(applicable, c)
		}
	}

	var chosen model.Constructor
	switch len(applicable) {
	case 0:
		if len(ctors) > 0 {
			st.fail(diag.AmbiguousConstructor, "%s has no applicable constructor (%d found, none callable from %s)",
				concrete, len(ctors), e.host.PackagePath())
		} else {
			st.fail(diag.AmbiguousConstructor, "%s has no constructor: declare a New function returning %s", concrete, concrete)
		}
		return model.Constructor{}, false
	case 1:
		chosen = applicable[0]
	default:
		var marked []model.Constructor
		for _, c := range applicable {
			if c.Marked {
				marked = append(marked, c)
			}
		}
		if len(marked) != 1 {
			names := make([]string, 0, len(applicable))
			for _, c := range applicable {
				names = append(names, constructorName(c))
			}
			st.fail(diag.AmbiguousConstructor, "%s has %d applicable constructors (%s); mark one with //locator:constructor",
				concrete, len(applicable), strings.Join(names, ", "))
			return model.Constructor{}, false
		}
		chosen = marked[0]
	}

	if chosen.Unresolved != "" {
		st.fail(diag.UnresolvedType, "constructor %s of %s: cannot resolve %s", chosen.Name, concrete, chosen.Unresolved)
		return model.Constructor{}, false
	}
	return chosen, true
}

func (e *Extractor) applicable(c model.Constructor) bool {
	if c.Variadic {
		return false
	}
	return c.Implicit || c.Exported || c.PkgPath == e.host.PackagePath()
}

func constructorName(c model.Constructor) string {
	if c.Implicit {
		return "composite literal"
	}
	return c.Name
}

// properties lists the injected fields of concrete in declaration order.
func (e *Extractor) properties(st *siteState, concrete model.TypeRef) []model.PropertyDependency {
	members, err := e.host.MembersOf(concrete)
	if err != nil {
		st.fail(diag.UnresolvedType, "cannot list fields of %s: %v", concrete, err)
		return nil
	}

	var out []model.PropertyDependency
	for _, m := range members {
		if !m.Tagged {
			continue
		}
		if !m.Exported && concrete.PkgPath != e.host.PackagePath() {
			st.fail(diag.NonSettableInjectedMember, "field %s of %s is tagged for injection but cannot be set from package %s",
				m.Name, concrete, e.host.PackagePath())
			continue
		}
		if m.Type.IsZero() {
			st.fail(diag.UnresolvedType, "cannot resolve the type of injected field %s of %s", m.Name, concrete)
			continue
		}
		out = append(out, model.PropertyDependency{Name: m.Name, Type: m.Type, IsPublic: m.Exported})
	}
	return out
}

// arguments reads the options that follow the resolver argument.
func (e *Extractor) arguments(st *siteState, site scan.Site) []model.ParameterValue {
	if len(site.Call.Args) == 0 {
		st.fail(diag.IllegalArgument, "%s call has no resolver argument", site.Kind)
		return nil
	}

	var out []model.ParameterValue
	for _, arg := range site.Call.Args[1:] {
		name, value, ok := option(arg)
		if !ok {
			st.fail(diag.IllegalArgument, "argument %s is not an option of the form With<Name>(value)", types.ExprString(arg))
			continue
		}

		pv := model.ParameterValue{Name: name, Text: types.ExprString(value)}
		switch name {
		case model.ArgContract:
			v, isConst := e.host.ConstValue(value)
			if !isConst || v.Kind() != constant.String {
				st.fail(diag.NonConstantContract, "contract %s must be a constant string", pv.Text)
				continue
			}
			pv.Value = constant.StringVal(v)
		case model.ArgMode:
			name, known := e.mode(value)
			if site.Kind == model.KindLazySingleton && !known {
				st.fail(diag.UnrecognizedMode, "mode %s is not a constant naming one of %s", pv.Text, strings.Join(locator.ModeNames, ", "))
				continue
			}
			pv.Value = name
			if !known {
				pv.Value = pv.Text
			}
		default:
			pv.Value = pv.Text
		}
		out = append(out, pv)
	}
	return out
}

// mode decodes a thread-safety mode from the constant value of expr, so a
// named constant holding a mode is accepted and a look-alike identifier of
// another value is not.
func (e *Extractor) mode(expr ast.Expr) (string, bool) {
	v, ok := e.host.ConstValue(expr)
	if !ok || v.Kind() != constant.Int {
		return "", false
	}
	i, exact := constant.Int64Val(v)
	if !exact || i < 0 || i >= int64(len(locator.ModeNames)) {
		return "", false
	}
	return locator.ModeNames[i], true
}

// option splits pkg.WithName(value) into ("name", value).
func option(arg ast.Expr) (string, ast.Expr, bool) {
	call, ok := arg.(*ast.CallExpr)
	if !ok || len(call.Args) != 1 || call.Ellipsis.IsValid() {
		return "", nil, false
	}
	fn := lastIdent(call.Fun)
	if !strings.HasPrefix(fn, optionPrefix) || len(fn) == len(optionPrefix) {
		return "", nil, false
	}
	return lowerFirst(strings.TrimPrefix(fn, optionPrefix)), call.Args[0], true
}

func lastIdent(expr ast.Expr) string {
	switch x := expr.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.SelectorExpr:
		return x.Sel.Name
	case *ast.ParenExpr:
		return lastIdent(x.X)
	default:
		return ""
	}
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}
