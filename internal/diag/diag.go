// Package diag defines the diagnostics reported by the generator.
//
// Every extraction or validation problem becomes one Diagnostic attributed to
// a source position. Diagnostics never abort the pipeline; the offending record
// is dropped and the rest is still generated.
package diag

import (
	"fmt"
	"go/token"
	"sync"

	"go.uber.org/multierr"
)

// Code is a stable diagnostic identifier.
type Code struct {
	ID   string
	Name string
}

func (c Code) String() string { return c.ID + " " + c.Name }

var (
	UnresolvedType            = Code{ID: "LG0001", Name: "UnresolvedType"}
	AmbiguousConstructor      = Code{ID: "LG0002", Name: "AmbiguousConstructor"}
	NonSettableInjectedMember = Code{ID: "LG0003", Name: "NonSettableInjectedMember"}
	NonConstantContract       = Code{ID: "LG0004", Name: "NonConstantContract"}
	UnrecognizedMode          = Code{ID: "LG0005", Name: "UnrecognizedMode"}
	TypeNotAssignable         = Code{ID: "LG0006", Name: "TypeNotAssignable"}
	SelfCycle                 = Code{ID: "LG0007", Name: "SelfCycle"}
	DuplicateRegistration     = Code{ID: "LG0008", Name: "DuplicateRegistration"}
	IllegalArgument           = Code{ID: "LG0009", Name: "IllegalArgument"}
)

// Codes lists every diagnostic code in id order.
var Codes = []Code{
	UnresolvedType,
	AmbiguousConstructor,
	NonSettableInjectedMember,
	NonConstantContract,
	UnrecognizedMode,
	TypeNotAssignable,
	SelfCycle,
	DuplicateRegistration,
	IllegalArgument,
}

// Severity of a diagnostic. Every code defined here is an error.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	Code     Code
	Severity Severity
	Pos      token.Position
	Message  string
}

// New builds an error diagnostic with a formatted message.
func New(code Code, pos token.Position, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:     code,
		Severity: SeverityError,
		Pos:      pos,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Error implements error as "file:line:col: error LG0002 AmbiguousConstructor: msg".
func (d Diagnostic) Error() string {
	pos := d.Pos.String()
	if pos == "-" {
		return fmt.Sprintf("%s %s: %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s %s: %s", pos, d.Severity, d.Code, d.Message)
}

// Reporter receives diagnostics.
type Reporter interface {
	Report(d Diagnostic)
}

// Bag is a Reporter that keeps diagnostics in report order.
type Bag struct {
	mu    sync.Mutex
	items []Diagnostic
}

// Report implements Reporter.
func (b *Bag) Report(d Diagnostic) {
	b.mu.Lock()
	b.items = append(b.items, d)
	b.mu.Unlock()
}

// All returns a copy of the collected diagnostics.
func (b *Bag) All() []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	return out
}

// Len returns the number of collected diagnostics.
func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// HasErrors reports whether any error-severity diagnostic was collected.
func (b *Bag) HasErrors() bool {
	for _, d := range b.All() {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Err combines every error-severity diagnostic into one error, or nil.
func (b *Bag) Err() error {
	var err error
	for _, d := range b.All() {
		if d.Severity == SeverityError {
			err = multierr.Append(err, d)
		}
	}
	return err
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(d Diagnostic)

// Report implements Reporter.
func (f ReporterFunc) Report(d Diagnostic) { f(d) }
