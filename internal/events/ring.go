package events

// ring is a fixed-capacity FIFO that overwrites its oldest item when full.
// It is not safe for concurrent use; owners guard it with their own mutex.
type ring[T any] struct {
	items []T
	head  int // index of the oldest item
	n     int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if len(r.items) == 0 {
		return
	}
	if r.n < len(r.items) {
		r.items[(r.head+r.n)%len(r.items)] = v
		r.n++
		return
	}
	r.items[r.head] = v
	r.head = (r.head + 1) % len(r.items)
}

// at returns the i-th item, 0 being the oldest.
func (r *ring[T]) at(i int) T {
	return r.items[(r.head+i)%len(r.items)]
}

// tail returns up to k of the newest items, oldest first. k <= 0 means all.
func (r *ring[T]) tail(k int) []T {
	if k <= 0 || k > r.n {
		k = r.n
	}
	out := make([]T, 0, k)
	for i := r.n - k; i < r.n; i++ {
		out = append(out, r.at(i))
	}
	return out
}

func (r *ring[T]) len() int { return r.n }

func (r *ring[T]) cap() int { return len(r.items) }
