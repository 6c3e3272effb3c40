package history

// Ring is a fixed-capacity FIFO buffer. Pushing past capacity evicts the
// oldest items.
type Ring[T any] struct {
	items    []T
	capacity int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, 0, capacity), capacity: capacity}
}

func (r *Ring[T]) Push(vs ...T) {
	r.items = append(r.items, vs...)
	if over := len(r.items) - r.capacity; over > 0 {
		n := copy(r.items, r.items[over:])
		clear(r.items[n:])
		r.items = r.items[:n]
	}
}

// Tail returns a copy of the last n items, oldest first. n <= 0 or n larger
// than the length returns everything.
func (r *Ring[T]) Tail(n int) []T {
	if n <= 0 || n > len(r.items) {
		n = len(r.items)
	}
	out := make([]T, n)
	copy(out, r.items[len(r.items)-n:])
	return out
}

func (r *Ring[T]) Len() int { return len(r.items) }

func (r *Ring[T]) Cap() int { return r.capacity }

func (r *Ring[T]) Reset() { r.items = r.items[:0] }
