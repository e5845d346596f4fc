package queue

// SlotState represents the state of a slot in the request table
type SlotState int

const (
	SlotFree     SlotState = iota // Available for a new request
	SlotInFlight                  // Kernel owns the request; completion pending
)

// Tag encoding: low 32 bits hold the slot index, high 32 bits the slot
// generation. The generation changes on every release, so a stale or forged
// tag never resolves to a newer request occupying the same slot.
const (
	tagIndexMask = 1<<32 - 1
	tagGenShift  = 32
)

// EncodeTag packs a slot index and generation into a completion tag
func EncodeTag(index, gen uint32) uint64 {
	return uint64(gen)<<tagGenShift | uint64(index)
}

// DecodeTag splits a completion tag into slot index and generation
func DecodeTag(tag uint64) (index, gen uint32) {
	return uint32(tag & tagIndexMask), uint32(tag >> tagGenShift)
}

type slot[T any] struct {
	gen   uint32
	state SlotState
	val   T
}

// Table is a fixed-capacity slot table mapping completion tags to the
// requests they were submitted with. A tag is unique among outstanding
// requests. Table is not safe for concurrent use; it is owned by the
// reactor goroutine.
type Table[T any] struct {
	slots []slot[T]
	free  []uint32
	used  int
	maxIn int
}

// NewTable creates a table holding at most capacity outstanding requests
func NewTable[T any](capacity int) *Table[T] {
	if capacity < 0 {
		capacity = 0
	}
	t := &Table[T]{
		slots: make([]slot[T], capacity),
		free:  make([]uint32, capacity),
	}
	// Hand out low indices first
	for i := range t.free {
		t.free[i] = uint32(capacity - 1 - i)
	}
	return t
}

// Acquire stores val in a free slot and returns its tag.
// It returns false when every slot is in flight.
func (t *Table[T]) Acquire(val T) (uint64, bool) {
	n := len(t.free)
	if n == 0 {
		return 0, false
	}
	idx := t.free[n-1]
	t.free = t.free[:n-1]

	s := &t.slots[idx]
	s.state = SlotInFlight
	s.val = val
	t.used++
	if t.used > t.maxIn {
		t.maxIn = t.used
	}
	return EncodeTag(idx, s.gen), true
}

// Lookup returns the request stored under tag without releasing it
func (t *Table[T]) Lookup(tag uint64) (T, bool) {
	s := t.resolve(tag)
	if s == nil {
		var zero T
		return zero, false
	}
	return s.val, true
}

// Release frees the slot behind tag and returns the request it held.
// Unknown or stale tags return false and leave the table untouched.
func (t *Table[T]) Release(tag uint64) (T, bool) {
	var zero T
	s := t.resolve(tag)
	if s == nil {
		return zero, false
	}
	val := s.val
	s.val = zero
	s.state = SlotFree
	s.gen++
	t.used--

	idx, _ := DecodeTag(tag)
	t.free = append(t.free, idx)
	return val, true
}

func (t *Table[T]) resolve(tag uint64) *slot[T] {
	idx, gen := DecodeTag(tag)
	if int(idx) >= len(t.slots) {
		return nil
	}
	s := &t.slots[idx]
	if s.state != SlotInFlight || s.gen != gen {
		return nil
	}
	return s
}

// Len returns the number of requests in flight
func (t *Table[T]) Len() int { return t.used }

// Cap returns the table capacity
func (t *Table[T]) Cap() int { return len(t.slots) }

// MaxInFlight returns the highest number of requests ever in flight at once
func (t *Table[T]) MaxInFlight() int { return t.maxIn }

// Full reports whether no slot is free
func (t *Table[T]) Full() bool { return len(t.free) == 0 }
