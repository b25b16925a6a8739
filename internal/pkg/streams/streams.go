// Package streams provides a minimal pull-based iterator abstraction for
// event streams. A Stream is single-consumer: Next/Current/Err/Close must be
// called from one goroutine.
package streams

// Stream is a lazy sequence of items.
//
// Usage:
//
//	for stream.Next() {
//		item := stream.Current()
//		...
//	}
//	if err := stream.Err(); err != nil { ... }
type Stream[T any] interface {
	// Next advances the stream and reports whether an item is available.
	Next() bool

	// Current returns the item produced by the last successful Next.
	Current() T

	// Err returns the first error encountered, if any.
	Err() error

	// Close releases the underlying resources. Safe to call more than once.
	Close() error
}

// SliceStream adapts a slice into a Stream.
type SliceStream[T any] struct {
	items []T
	pos   int
}

func Of[T any](items ...T) *SliceStream[T] {
	return &SliceStream[T]{items: items}
}

func (s *SliceStream[T]) Next() bool {
	if s.pos >= len(s.items) {
		return false
	}

	s.pos++

	return true
}

func (s *SliceStream[T]) Current() T {
	return s.items[s.pos-1]
}

func (s *SliceStream[T]) Err() error { return nil }

func (s *SliceStream[T]) Close() error { return nil }

// All drains the stream and returns every item plus the terminal error.
func All[T any](stream Stream[T]) ([]T, error) {
	var result []T

	for stream.Next() {
		result = append(result, stream.Current())
	}

	return result, stream.Err()
}

// AppendStream yields every item of stream, then the extra items.
func AppendStream[T any](stream Stream[T], items ...T) Stream[T] {
	return &appendStream[T]{stream: stream, tail: items}
}

type appendStream[T any] struct {
	stream  Stream[T]
	tail    []T
	pos     int
	drained bool
	current T
}

func (s *appendStream[T]) Next() bool {
	if !s.drained {
		if s.stream.Next() {
			s.current = s.stream.Current()
			return true
		}

		s.drained = true

		// Do not emit the tail after an upstream failure.
		if s.stream.Err() != nil {
			return false
		}
	}

	if s.pos < len(s.tail) {
		s.current = s.tail[s.pos]
		s.pos++

		return true
	}

	return false
}

func (s *appendStream[T]) Current() T { return s.current }

func (s *appendStream[T]) Err() error { return s.stream.Err() }

func (s *appendStream[T]) Close() error { return s.stream.Close() }

// NoNil filters out nil items from a stream of pointers.
func NoNil[T any](stream Stream[*T]) Stream[*T] {
	return &noNilStream[T]{stream: stream}
}

type noNilStream[T any] struct {
	stream Stream[*T]
}

func (s *noNilStream[T]) Next() bool {
	for s.stream.Next() {
		if s.stream.Current() != nil {
			return true
		}
	}

	return false
}

func (s *noNilStream[T]) Current() *T { return s.stream.Current() }

func (s *noNilStream[T]) Err() error { return s.stream.Err() }

func (s *noNilStream[T]) Close() error { return s.stream.Close() }

// MapErr transforms each item of a stream, stopping at the first mapping error.
func MapErr[T, R any](stream Stream[T], mapper func(T) (R, error)) Stream[R] {
	return &mapStream[T, R]{stream: stream, mapper: mapper}
}

type mapStream[T, R any] struct {
	stream  Stream[T]
	mapper  func(T) (R, error)
	current R
	err     error
}

func (s *mapStream[T, R]) Next() bool {
	if s.err != nil {
		return false
	}

	if !s.stream.Next() {
		return false
	}

	current, err := s.mapper(s.stream.Current())
	if err != nil {
		s.err = err
		return false
	}

	s.current = current

	return true
}

func (s *mapStream[T, R]) Current() R { return s.current }

func (s *mapStream[T, R]) Err() error {
	if s.err != nil {
		return s.err
	}

	return s.stream.Err()
}

func (s *mapStream[T, R]) Close() error { return s.stream.Close() }
