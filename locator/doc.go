// Package locator is the small run-time service locator that code generated by
// locatorgen registers into.
//
// A package declares its registrations with marker calls:
//
//	locator.Register[Greeter, *EnglishGreeter](r)
//	locator.Register[Greeter, *FrenchGreeter](r, locator.WithContract("fr"))
//	locator.RegisterLazySingleton[Clock, *SystemClock](r)
//
// and locatorgen turns them into an Initialize(r Resolver) function that
// registers explicit factories. No reflection is used to build services: the
// generated factories call constructors directly, resolve each dependency by
// type with Get, and assign fields tagged `inject:""`.
//
// Lazy singletons are registered as two entries: the *Lazy[I] wrapper itself,
// and a projection of I that returns the wrapper's Value. However often I is
// looked up, the underlying constructor runs according to the wrapper's
// ThreadSafetyMode (at most once for ExecutionAndPublication).
//
// MapResolver is the default Resolver. Registering the same key twice
// overwrites the previous factory; duplicates are rejected by the generator,
// not at run time.
//
// Import
//
//	"github.com/sghaida/locatorgen/locator"
package locator
