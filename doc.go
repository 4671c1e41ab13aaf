// Package locatorgen generates service locator registrations for Go.
//
// Wiring stays explicit and checked at build time:
//
//   - locator: the small runtime. A Resolver maps (type, contract) keys to
//     factories, Lazy holds a singleton created on first use, and the
//     Register markers declare what a package provides.
//   - cmd/locatorgen: the generator. It reads the markers with full type
//     information and writes a plain Go function registering every service.
//   - examples/greeter: a package wired end to end.
//
// There is no reflection-based construction at run time. Constructors are
// ordinary Go functions called by generated code, so a missing or mistyped
// dependency shows up as a generator diagnostic or a compile error.
package locatorgen
