package engine

// Ring is a bounded FIFO. Once full, each Push overwrites the oldest entry.
type Ring[T any] struct {
	buf  []T
	head int // index of the oldest entry once full
	cap  int
}

// NewRing creates a ring holding at most capacity entries
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{cap: capacity}
}

// Push appends v, evicting the oldest entry when the ring is full
func (r *Ring[T]) Push(v T) {
	if len(r.buf) < r.cap {
		r.buf = append(r.buf, v)
		return
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % r.cap
}

// Len returns the number of entries held
func (r *Ring[T]) Len() int {
	return len(r.buf)
}

// Cap returns the maximum number of entries
func (r *Ring[T]) Cap() int {
	return r.cap
}

// Oldest returns the oldest entry
func (r *Ring[T]) Oldest() (T, bool) {
	var zero T
	if len(r.buf) == 0 {
		return zero, false
	}
	return r.buf[r.head], true
}

// Values returns a chronological copy of the entries
func (r *Ring[T]) Values() []T {
	return r.AppendTo(make([]T, 0, len(r.buf)+1))
}

// AppendTo appends the entries to dst in chronological order
func (r *Ring[T]) AppendTo(dst []T) []T {
	dst = append(dst, r.buf[r.head:]...)
	return append(dst, r.buf[:r.head]...)
}

// Reset drops all entries and keeps the backing array
func (r *Ring[T]) Reset() {
	r.buf = r.buf[:0]
	r.head = 0
}

// Sparkline is a fixed-size ring of downsampled prices.
// Zero marks a slot that was never written.
type Sparkline struct {
	slots []float64
	next  int
}

// NewSparkline creates a sparkline with size slots
func NewSparkline(size int) *Sparkline {
	if size < 1 {
		size = 1
	}
	return &Sparkline{slots: make([]float64, size)}
}

// Write stores v in the next slot and advances the write index
func (s *Sparkline) Write(v float64) {
	s.slots[s.next] = v
	s.next = (s.next + 1) % len(s.slots)
}

// Fill overwrites every slot with v
func (s *Sparkline) Fill(v float64) {
	for i := range s.slots {
		s.slots[i] = v
	}
}

// Index returns the next write position
func (s *Sparkline) Index() int {
	return s.next
}

// Size returns the number of slots
func (s *Sparkline) Size() int {
	return len(s.slots)
}

// Values unrolls the ring starting at the oldest slot, skipping unwritten slots
func (s *Sparkline) Values() []float64 {
	out := make([]float64, 0, len(s.slots))
	for i := range s.slots {
		v := s.slots[(s.next+i)%len(s.slots)]
		if v != 0 && isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}
