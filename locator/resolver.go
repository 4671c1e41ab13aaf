package locator

import (
	"errors"
	"reflect"
	"strconv"
	"sync"
)

// Factory produces one service value.
type Factory func() any

// Resolver is the service locator targeted by generated code.
//
// Get fails (panics) when nothing is registered for the key. Register
// overwrites any prior registration for the same key; uniqueness is enforced by
// locatorgen at generation time, not here.
type Resolver interface {
	Get(typ reflect.Type, contract string) any
	Register(factory Factory, typ reflect.Type, contract string)
}

// TypeOf returns the reflect.Type of T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

type serviceKey struct {
	typ      reflect.Type
	contract string
}

// MissingServiceError is returned (or panicked) when no factory is registered
// for a type and contract.
type MissingServiceError struct {
	Type     reflect.Type
	Contract string
}

// Error implements the error interface.
func (e *MissingServiceError) Error() string {
	// Example: locator: no service registered for svc.Logger (contract "audit")
	name := "<nil>"
	if e.Type != nil {
		name = e.Type.String()
	}
	if e.Contract == "" {
		return "locator: no service registered for " + name
	}
	return "locator: no service registered for " + name + " (contract " + strconv.Quote(e.Contract) + ")"
}

// ErrNilFactory is panicked by Register when given a nil factory.
var ErrNilFactory = errors.New("locator: nil factory")

// MapResolver is an in-memory Resolver safe for concurrent use.
type MapResolver struct {
	mu        sync.RWMutex
	factories map[serviceKey]Factory
}

// NewMapResolver returns an empty resolver.
func NewMapResolver() *MapResolver {
	return &MapResolver{factories: map[serviceKey]Factory{}}
}

// Register implements Resolver. The last registration for a key wins.
func (r *MapResolver) Register(factory Factory, typ reflect.Type, contract string) {
	if factory == nil {
		panic(ErrNilFactory)
	}
	r.mu.Lock()
	if r.factories == nil {
		r.factories = map[serviceKey]Factory{}
	}
	r.factories[serviceKey{typ: typ, contract: contract}] = factory
	r.mu.Unlock()
}

// Provide registers a constant value for T and returns the resolver for
// chaining. It is mostly useful in tests and composition roots.
func Provide[T any](r *MapResolver, val T, contract string) *MapResolver {
	r.Register(func() any { return val }, TypeOf[T](), contract)
	return r
}

// Get implements Resolver and panics with *MissingServiceError when the key is
// not registered.
func (r *MapResolver) Get(typ reflect.Type, contract string) any {
	v, err := r.TryGet(typ, contract)
	if err != nil {
		panic(err)
	}
	return v
}

// TryGet runs the registered factory, or returns *MissingServiceError.
func (r *MapResolver) TryGet(typ reflect.Type, contract string) (any, error) {
	r.mu.RLock()
	factory, ok := r.factories[serviceKey{typ: typ, contract: contract}]
	r.mu.RUnlock()
	if !ok {
		return nil, &MissingServiceError{Type: typ, Contract: contract}
	}
	// The lock is released before calling out: factories resolve their own
	// dependencies through r.
	return factory(), nil
}

// Has reports whether a factory is registered for the key.
func (r *MapResolver) Has(typ reflect.Type, contract string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[serviceKey{typ: typ, contract: contract}]
	return ok
}

// Len returns the number of registered keys.
func (r *MapResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Resolve returns the service registered for T, typed.
func Resolve[T any](r Resolver, contract string) (T, error) {
	var zero T
	var raw any
	if mr, ok := r.(*MapResolver); ok {
		v, err := mr.TryGet(TypeOf[T](), contract)
		if err != nil {
			return zero, err
		}
		raw = v
	} else {
		raw = r.Get(TypeOf[T](), contract)
	}
	v, ok := raw.(T)
	if !ok {
		got := "<nil>"
		if raw != nil {
			got = reflect.TypeOf(raw).String()
		}
		return zero, &WrongTypeError{Want: TypeOf[T](), Got: got}
	}
	return v, nil
}

// MustResolve is Resolve that panics on error.
func MustResolve[T any](r Resolver, contract string) T {
	v, err := Resolve[T](r, contract)
	if err != nil {
		panic(err)
	}
	return v
}

// WrongTypeError is returned when a factory produced a value of another type.
type WrongTypeError struct {
	Want reflect.Type
	Got  string
}

// Error implements the error interface.
func (e *WrongTypeError) Error() string {
	// Example: locator: service for svc.Logger has wrong type (*svc.Writer)
	return "locator: service for " + e.Want.String() + " has wrong type (" + e.Got + ")"
}
