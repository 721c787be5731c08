package sqsrepo

// Result reports the per-item outcome of a batched operation. Every input
// item appears exactly once, either in Successful or in Failed, and both
// slices keep the order in which the items were submitted.
type Result[T any] struct {
	Successful []T `json:"successful"`
	Failed     []T `json:"failed"`
}

func newResult[T any](capacity int) *Result[T] {
	return &Result[T]{
		Successful: make([]T, 0, capacity),
		Failed:     make([]T, 0),
	}
}

func (r *Result[T]) merge(other *Result[T]) {
	if other == nil {
		return
	}

	r.Successful = append(r.Successful, other.Successful...)
	r.Failed = append(r.Failed, other.Failed...)
}

// Len returns the total number of items in the result.
func (r *Result[T]) Len() int {
	return len(r.Successful) + len(r.Failed)
}

// AllSucceeded reports whether no item failed.
func (r *Result[T]) AllSucceeded() bool {
	return len(r.Failed) == 0
}
