// Package result carries the outcome of a best-effort call to an external
// service: a value, nothing, or a failure reason. Callers that do not care
// about the difference use Get.
package result

type Kind int

const (
	KindEmpty Kind = iota
	KindFound
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindFound:
		return "found"
	case KindFailed:
		return "failed"
	default:
		return "empty"
	}
}

type Result[T any] struct {
	Value  T
	Kind   Kind
	Reason error
}

func Found[T any](v T) Result[T] {
	return Result[T]{Value: v, Kind: KindFound}
}

func Empty[T any]() Result[T] {
	return Result[T]{Kind: KindEmpty}
}

// Failed records err as the reason. A nil err still yields a failed result.
func Failed[T any](err error) Result[T] {
	return Result[T]{Kind: KindFailed, Reason: err}
}

// Get returns the value and whether one was found.
func (r Result[T]) Get() (T, bool) {
	return r.Value, r.Kind == KindFound
}

func (r Result[T]) OK() bool {
	return r.Kind == KindFound
}
