package emit

import (
	"bytes"
	"fmt"
	"go/format"
	"path"
	"sort"
	"strconv"
	"strings"
	"text/template"
)

type importSpec struct {
	Alias string
	Path  string
}

type fileData struct {
	Generator string
	Package   string
	Imports   []importSpec
	Func      string
	Param     string
	Resolver  string
	Body      string
}

var fileTemplate = template.Must(
	template.New("locatorgen").Parse(`// Code generated by {{.Generator}}; DO NOT EDIT.

package {{.Package}}
{{- if .Imports}}

import (
{{- range .Imports}}
	{{if .Alias}}{{.Alias}} {{end}}"{{.Path}}"
{{- end}}
)
{{- end}}

// {{.Func}} registers the services of package {{.Package}} with {{.Param}}.
func {{.Func}}({{.Param}} {{.Resolver}}) {
{{.Body}}}
`),
)

// Render prints groups as a complete, gofmt-formatted Go file.
func Render(groups []Group, opts Options) ([]byte, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	locatorPkg := Package{Path: opts.LocatorImport, Name: "locator"}
	if opts.LocatorImport == opts.PackagePath {
		locatorPkg = Package{}
	}
	resolver := Ref{Pkg: locatorPkg, Name: "Resolver"}

	names := newLocals(groups, opts)
	imports, aliases := resolveImports(groups, opts, locatorPkg)

	p := &printer{aliases: aliases, indent: 1}
	for i, g := range groups {
		if i > 0 {
			p.buf.WriteByte('\n')
		}
		p.stmts(g.Stmts)
	}

	var head printer
	head.aliases = aliases
	head.expr(resolver)

	var src bytes.Buffer
	err := fileTemplate.Execute(&src, fileData{
		Generator: opts.Generator,
		Package:   opts.Package,
		Imports:   imports,
		Func:      opts.Func,
		Param:     names.resolver,
		Resolver:  head.buf.String(),
		Body:      p.buf.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmission, err)
	}

	out, err := format.Source(src.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: generated source does not parse: %v", ErrEmission, err)
	}
	return out, nil
}

// resolveImports lists the packages referenced by groups and assigns each a
// unique name. The locator package is named first; the rest follow in path
// order, a clash getting the first free numeric suffix. Reserved names and the
// locals of the generated function are never used as import names.
func resolveImports(groups []Group, opts Options, locatorPkg Package) ([]importSpec, map[string]string) {
	names := map[string]string{}
	taken := newLocals(groups, opts).taken

	w := visitor{
		typ: func(t TypeExpr) {
			if t.Pkg.IsLocal() {
				taken[t.Name] = true
				return
			}
			names[t.Pkg.Path] = t.Pkg.Name
		},
		ref: func(r Ref) {
			if r.Pkg.IsLocal() {
				taken[r.Name] = true
				return
			}
			names[r.Pkg.Path] = r.Pkg.Name
		},
		local: func(name string) { taken[name] = true },
	}
	for _, g := range groups {
		w.stmts(g.Stmts)
	}

	aliases := map[string]string{}
	claim := func(pkgPath, base string) {
		name := base
		for i := 2; taken[name]; i++ {
			name = base + strconv.Itoa(i)
		}
		taken[name] = true
		aliases[pkgPath] = name
	}

	if !locatorPkg.IsLocal() {
		delete(names, locatorPkg.Path)
		claim(locatorPkg.Path, locatorPkg.Name)
	}

	paths := make([]string, 0, len(names))
	for p := range names {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		claim(p, names[p])
	}

	imports := make([]importSpec, 0, len(aliases))
	for p, alias := range aliases {
		spec := importSpec{Path: p}
		if alias != path.Base(p) {
			spec.Alias = alias
		}
		imports = append(imports, spec)
	}
	sort.Slice(imports, func(i, j int) bool { return imports[i].Path < imports[j].Path })
	return imports, aliases
}

// printer writes IR in gofmt layout: one statement per line, tab indented,
// function literal bodies on their own lines.
type printer struct {
	buf     strings.Builder
	aliases map[string]string
	indent  int
}

func (p *printer) line() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteByte('\t')
	}
}

func (p *printer) stmts(list []Stmt) {
	for _, s := range list {
		p.line()
		p.stmt(s)
		p.buf.WriteByte('\n')
	}
}

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case LocalDeclaration:
		p.buf.WriteString(s.Name)
		p.buf.WriteString(" := ")
		p.expr(s.Value)
	case MemberInitializer:
		p.buf.WriteString(s.Target)
		p.buf.WriteByte('.')
		p.buf.WriteString(s.Member)
		p.buf.WriteString(" = ")
		p.expr(s.Value)
	case Return:
		p.buf.WriteString("return ")
		p.expr(s.Value)
	case ExprStmt:
		p.expr(s.X)
	}
}

func (p *printer) expr(e Expr) {
	switch e := e.(type) {
	case Ident:
		p.buf.WriteString(e.Name)
	case Ref:
		p.qualifier(e.Pkg)
		p.buf.WriteString(e.Name)
	case StringLit:
		p.buf.WriteString(strconv.Quote(e.Value))
	case Selector:
		p.expr(e.X)
		p.buf.WriteByte('.')
		p.buf.WriteString(e.Sel)
	case Invocation:
		p.expr(e.Fun)
		p.typeArgs(e.TypeArgs)
		p.buf.WriteByte('(')
		for i, a := range e.Args {
			if i > 0 {
				p.buf.WriteString(", ")
			}
			p.expr(a)
		}
		p.buf.WriteByte(')')
	case ObjectConstruction:
		t := e.Type
		if t.Pointer {
			p.buf.WriteByte('&')
			t.Pointer = false
		}
		p.typeExpr(t)
		p.buf.WriteString("{}")
	case TypeAssert:
		p.expr(e.X)
		p.buf.WriteString(".(")
		p.typeExpr(e.Type)
		p.buf.WriteByte(')')
	case FuncLit:
		p.buf.WriteString("func() ")
		p.typeExpr(e.Result)
		p.buf.WriteString(" {\n")
		p.indent++
		p.stmts(e.Body)
		p.indent--
		p.line()
		p.buf.WriteByte('}')
	}
}

func (p *printer) typeExpr(t TypeExpr) {
	if t.Pointer {
		p.buf.WriteByte('*')
	}
	p.qualifier(t.Pkg)
	p.buf.WriteString(t.Name)
	p.typeArgs(t.Args)
}

func (p *printer) typeArgs(args []TypeExpr) {
	if len(args) == 0 {
		return
	}
	p.buf.WriteByte('[')
	for i, a := range args {
		if i > 0 {
			p.buf.WriteString(", ")
		}
		p.typeExpr(a)
	}
	p.buf.WriteByte(']')
}

func (p *printer) qualifier(pkg Package) {
	if pkg.IsLocal() {
		return
	}
	p.buf.WriteString(p.aliases[pkg.Path])
	p.buf.WriteByte('.')
}
