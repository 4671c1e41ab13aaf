package locator

// Option is a call argument of a registration marker.
type Option struct {
	name  string
	value any
}

// Name returns the argument name, e.g. "contract".
func (o Option) Name() string { return o.name }

// WithContract registers under a named contract. An empty contract is the same
// as no contract.
func WithContract(contract string) Option {
	return Option{name: "contract", value: contract}
}

// WithMode selects the thread-safety mode of a lazy singleton.
func WithMode(mode ThreadSafetyMode) Option {
	return Option{name: "mode", value: mode}
}

// Register declares that I is served by a new C for every lookup.
//
// It is a marker read by locatorgen and does nothing at run time; the generated
// Initialize function performs the registration:
//
//	//go:generate go run github.com/sghaida/locatorgen/cmd/locatorgen
//
//	func registrations(r locator.Resolver) {
//		locator.Register[Greeter, *EnglishGreeter](r)
//		locator.RegisterLazySingleton[Clock, *SystemClock](r, locator.WithMode(locator.PublicationOnly))
//	}
func Register[I, C any](r Resolver, opts ...Option) {}

// RegisterLazySingleton declares that I is served by a single C created on the
// first lookup. Like Register it is a marker for locatorgen.
func RegisterLazySingleton[I, C any](r Resolver, opts ...Option) {}
