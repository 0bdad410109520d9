// Package try folds a (value, error) pair into one expression.
//
//	conf := try.To(configs.Load(path)).OrFatal(logger)
package try

// Fataler is something with Fatal, like *testing.T or a logger.
type Fataler interface {
	Fatal(...any)
}

// Either holds a value or the error which prevented it.
type Either[T any] interface {
	// Get returns (value, nil) or (zero value, error).
	Get() (T, error)

	// OrFatal returns the value, or calls ftl.Fatal(err).
	//
	// When ftl has Helper() (like *testing.T), it is called first.
	OrFatal(ftl Fataler) T

	// OrDefault returns the value, or d when there is an error.
	OrDefault(d T) T
}

func To[T any](ok T, ng error) Either[T] {
	if ng == nil {
		return either[T]{value: ok}
	}
	return either[T]{err: ng}
}

// Map converts the value when there is one.
func Map[T any, R any](e Either[T], mapper func(T) R) Either[R] {
	v, err := e.Get()
	if err != nil {
		return either[R]{err: err}
	}
	return either[R]{value: mapper(v)}
}

type either[T any] struct {
	value T
	err   error
}

func (e either[T]) Get() (T, error) {
	if e.err != nil {
		return *new(T), e.err
	}
	return e.value, nil
}

func (e either[T]) OrDefault(d T) T {
	if e.err != nil {
		return d
	}
	return e.value
}

func (e either[T]) OrFatal(ftl Fataler) T {
	if e.err == nil {
		return e.value
	}
	if hlp, ok := ftl.(interface{ Helper() }); ok {
		hlp.Helper()
	}
	ftl.Fatal(e.err)
	return *new(T)
}
