package emit

// The IR describes the generated statements without committing to text. It
// is deliberately small: only the shapes the registration code needs.

// Package identifies an imported package. The zero Package means the package
// being generated (or a predeclared name).
type Package struct {
	Path string
	Name string
}

// IsLocal reports whether names in p are written unqualified.
func (p Package) IsLocal() bool { return p.Path == "" }

// Expr is an expression node.
type Expr interface{ exprNode() }

// Stmt is a statement node.
type Stmt interface{ stmtNode() }

// TypeExpr is a possibly generic, possibly pointer, named type.
type TypeExpr struct {
	Pointer bool
	Pkg     Package
	Name    string
	Args    []TypeExpr
}

// Ident is a local identifier such as r, v or lazy0.
type Ident struct {
	Name string
}

// Ref is a package-level identifier, qualified when Pkg is not local.
type Ref struct {
	Pkg  Package
	Name string
}

// StringLit is a Go string literal holding Value.
type StringLit struct {
	Value string
}

// Selector is X.Sel.
type Selector struct {
	X   Expr
	Sel string
}

// Invocation is Fun[TypeArgs](Args).
type Invocation struct {
	Fun      Expr
	TypeArgs []TypeExpr
	Args     []Expr
}

// ObjectConstruction is the empty composite literal of Type, taking its
// address when Type is a pointer.
type ObjectConstruction struct {
	Type TypeExpr
}

// TypeAssert is X.(Type).
type TypeAssert struct {
	X    Expr
	Type TypeExpr
}

// FuncLit is a parameterless function literal with one result.
type FuncLit struct {
	Result TypeExpr
	Body   []Stmt
}

// LocalDeclaration is Name := Value.
type LocalDeclaration struct {
	Name  string
	Value Expr
}

// MemberInitializer is Target.Member = Value.
type MemberInitializer struct {
	Target string
	Member string
	Value  Expr
}

// Return is return Value.
type Return struct {
	Value Expr
}

// ExprStmt is an expression used as a statement.
type ExprStmt struct {
	X Expr
}

func (Ident) exprNode()              {}
func (Ref) exprNode()                {}
func (StringLit) exprNode()          {}
func (Selector) exprNode()           {}
func (Invocation) exprNode()         {}
func (ObjectConstruction) exprNode() {}
func (TypeAssert) exprNode()         {}
func (FuncLit) exprNode()            {}

func (LocalDeclaration) stmtNode()  {}
func (MemberInitializer) stmtNode() {}
func (Return) stmtNode()            {}
func (ExprStmt) stmtNode()          {}

// visitor walks statements, reporting every type expression, package-level
// reference and declared local.
type visitor struct {
	typ   func(TypeExpr)
	ref   func(Ref)
	local func(string)
}

func (w visitor) stmts(list []Stmt) {
	for _, s := range list {
		switch s := s.(type) {
		case LocalDeclaration:
			w.local(s.Name)
			w.expr(s.Value)
		case MemberInitializer:
			w.expr(s.Value)
		case Return:
			w.expr(s.Value)
		case ExprStmt:
			w.expr(s.X)
		}
	}
}

func (w visitor) expr(e Expr) {
	switch e := e.(type) {
	case Ref:
		w.ref(e)
	case Selector:
		w.expr(e.X)
	case Invocation:
		w.expr(e.Fun)
		for _, t := range e.TypeArgs {
			w.typeExpr(t)
		}
		for _, a := range e.Args {
			w.expr(a)
		}
	case ObjectConstruction:
		w.typeExpr(e.Type)
	case TypeAssert:
		w.expr(e.X)
		w.typeExpr(e.Type)
	case FuncLit:
		w.typeExpr(e.Result)
		w.stmts(e.Body)
	}
}

func (w visitor) typeExpr(t TypeExpr) {
	w.typ(t)
	for _, a := range t.Args {
		w.typeExpr(a)
	}
}
