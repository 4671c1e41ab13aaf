// Package check validates extracted registrations before emission.
package check

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/sghaida/locatorgen/internal/diag"
	"github.com/sghaida/locatorgen/internal/model"
)

// Checker applies the whole-set validation rules.
type Checker struct {
	host     model.Host
	reporter diag.Reporter
	logger   *zap.Logger
}

// New returns a Checker. A nil logger disables logging.
func New(host model.Host, reporter diag.Reporter, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{host: host, reporter: reporter, logger: logger}
}

// Check returns the records that pass every rule, in input order. Every rule
// runs on every record, so a record may produce several diagnostics.
//
// Duplicate keys are computed over all input records: the first occurrence of
// a key claims it even when it fails another rule.
func (c *Checker) Check(records []model.Metadata) []model.Metadata {
	first := make(map[model.Key]model.Metadata, len(records))
	out := make([]model.Metadata, 0, len(records))

	for _, md := range records {
		ok := c.assignable(md)
		ok = c.selfCycle(md) && ok

		key := md.Key()
		if prev, seen := first[key]; seen {
			c.report(diag.DuplicateRegistration, md, "%s%s is already registered at %s",
				md.Interface, contractSuffix(key.Contract), prev.CallSite)
			ok = false
		} else {
			first[key] = md
		}

		ok = c.arguments(md) && ok
		if ok {
			out = append(out, md)
		}
	}

	c.logger.Debug("registrations checked",
		zap.Int("input", len(records)),
		zap.Int("accepted", len(out)),
	)
	return out
}

func (c *Checker) report(code diag.Code, md model.Metadata, format string, args ...any) {
	c.reporter.Report(diag.New(code, md.CallSite, format, args...))
}

func (c *Checker) assignable(md model.Metadata) bool {
	if c.host.AssignableTo(md.Concrete, md.Interface) {
		return true
	}
	c.report(diag.TypeNotAssignable, md, "%s does not implement %s", md.Concrete, md.Interface)
	return false
}

// selfCycle rejects a record that resolves its own interface under the default
// contract. Dependencies are always resolved without a contract, so a record
// with a contract can depend on its interface's default registration.
func (c *Checker) selfCycle(md model.Metadata) bool {
	if md.Contract() != "" {
		return true
	}
	ok := true
	for _, d := range md.ConstructorDeps {
		if d.Type == md.Interface {
			c.report(diag.SelfCycle, md, "%s depends on itself through constructor parameter %d of %s",
				md.Interface, d.Position, constructorName(md))
			ok = false
		}
	}
	for _, p := range md.Properties {
		if p.Type == md.Interface {
			c.report(diag.SelfCycle, md, "%s depends on itself through injected field %s",
				md.Interface, p.Name)
			ok = false
		}
	}
	return ok
}

func (c *Checker) arguments(md model.Metadata) bool {
	ok := true
	seen := make(map[string]bool, len(md.Arguments))
	for _, a := range md.Arguments {
		switch {
		case seen[a.Name]:
			c.report(diag.IllegalArgument, md, "argument %s given more than once", a.Name)
			ok = false
			continue
		case a.Name == model.ArgContract:
		case a.Name == model.ArgMode:
			if md.Kind != model.KindLazySingleton {
				c.report(diag.IllegalArgument, md, "argument mode is only valid on %s", model.KindLazySingleton)
				ok = false
			}
		default:
			c.report(diag.IllegalArgument, md, "unknown argument %s(%s)", a.Name, a.Text)
			ok = false
		}
		seen[a.Name] = true
	}
	return ok
}

func constructorName(md model.Metadata) string {
	if md.Constructor.Implicit || md.Constructor.Name == "" {
		return md.Concrete.String()
	}
	return md.Constructor.Name
}

func contractSuffix(contract string) string {
	if contract == "" {
		return ""
	}
	return " (contract " + strconv.Quote(contract) + ")"
}
