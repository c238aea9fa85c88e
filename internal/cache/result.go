package cache

// Source tags where a Result's value came from.
type Source int

const (
	// SourceFresh is a value from a successful server response.
	SourceFresh Source = iota
	// SourceStale is the last cached value, served instead of a server response.
	SourceStale
	// SourceFallback is a substitute value: an empty list or another endpoint.
	SourceFallback
)

// String returns the source name
func (s Source) String() string {
	switch s {
	case SourceStale:
		return "stale"
	case SourceFallback:
		return "fallback"
	default:
		return "fresh"
	}
}

// Result carries a value that may be degraded. Err is the swallowed failure
// behind a degraded value and is nil for fresh values.
type Result[T any] struct {
	Value  T
	Source Source
	Err    error
}

// Fresh wraps a value from a successful fetch.
func Fresh[T any](v T) Result[T] {
	return Result[T]{Value: v, Source: SourceFresh}
}

// Degraded wraps a substitute value and the error that caused it.
func Degraded[T any](v T, source Source, err error) Result[T] {
	return Result[T]{Value: v, Source: source, Err: err}
}

// IsDegraded reports whether the value is not fresh server data.
func (r Result[T]) IsDegraded() bool {
	return r.Source != SourceFresh
}
