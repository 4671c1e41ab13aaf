package locator

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ThreadSafetyMode decides how a Lazy realizes its value when accessed from
// several goroutines.
type ThreadSafetyMode int

const (
	// ExecutionAndPublication runs the factory at most once; concurrent callers
	// block until it completes. This is the default.
	ExecutionAndPublication ThreadSafetyMode = iota

	// PublicationOnly lets concurrent callers run the factory; the first
	// completed result is stored and returned to everyone.
	PublicationOnly

	// None applies no synchronization. The caller guarantees single-goroutine use.
	None
)

// String returns the token name of m.
func (m ThreadSafetyMode) String() string {
	switch m {
	case ExecutionAndPublication:
		return "ExecutionAndPublication"
	case PublicationOnly:
		return "PublicationOnly"
	case None:
		return "None"
	default:
		return "ThreadSafetyMode(?)"
	}
}

// ModeNames lists the recognized mode tokens.
var ModeNames = []string{
	ExecutionAndPublication.String(),
	PublicationOnly.String(),
	None.String(),
}

// Lazy defers construction of a value until Value is first called.
type Lazy[T any] struct {
	factory func() T
	mode    ThreadSafetyMode

	once    sync.Once
	box     atomic.Pointer[T]
	failure any // recovered panic of the factory, ExecutionAndPublication only
	value   T
	created bool
}

// errFactoryIncomplete is raised by Value when the factory neither returned
// nor panicked, for example because it called runtime.Goexit.
var errFactoryIncomplete = errors.New("locator: lazy factory did not complete")

// NewLazy wraps factory with the given thread-safety mode.
func NewLazy[T any](factory func() T, mode ThreadSafetyMode) *Lazy[T] {
	return &Lazy[T]{factory: factory, mode: mode}
}

// Mode returns the configured thread-safety mode.
func (l *Lazy[T]) Mode() ThreadSafetyMode { return l.mode }

// Value realizes the value on first use and returns it.
func (l *Lazy[T]) Value() T {
	switch l.mode {
	case PublicationOnly:
		if p := l.box.Load(); p != nil {
			return *p
		}
		v := l.factory()
		l.box.CompareAndSwap(nil, &v)
		return *l.box.Load()
	case None:
		if !l.created {
			l.value = l.factory()
			l.created = true
		}
		return l.value
	default:
		l.once.Do(l.realize)
		if p := l.box.Load(); p != nil {
			return *p
		}
		// The factory runs at most once; a failed realization fails every
		// later call the same way.
		if l.failure != nil {
			panic(l.failure)
		}
		panic(errFactoryIncomplete)
	}
}

func (l *Lazy[T]) realize() {
	defer func() {
		if r := recover(); r != nil {
			l.failure = r
			panic(r)
		}
	}()
	v := l.factory()
	l.box.Store(&v)
}

// IsValueCreated reports whether the value has been realized.
func (l *Lazy[T]) IsValueCreated() bool {
	if l.mode == None {
		return l.created
	}
	return l.box.Load() != nil
}
