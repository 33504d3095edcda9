package containers

import (
	"unsafe"

	"github.com/vkngwrapper/renderer/internal/memory"
)

const (
	defaultCapacity = 1
	resizeFactor    = 2
)

// Darray is a growable sequence whose backing capacity is accounted against a
// memory tag. Call Release when done; the zero value is an empty array that
// tracks nothing.
type Darray[T any] struct {
	items   []T
	tracker *memory.Tracker
	tag     memory.Tag
}

// NewDarray creates an empty array with room for capacity items.
func NewDarray[T any](tracker *memory.Tracker, tag memory.Tag, capacity int) *Darray[T] {
	if capacity < defaultCapacity {
		capacity = defaultCapacity
	}
	d := &Darray[T]{tracker: tracker, tag: tag}
	d.reserve(capacity)
	return d
}

// DarrayFrom copies items into a new tracked array.
func DarrayFrom[T any](tracker *memory.Tracker, tag memory.Tag, items []T) *Darray[T] {
	d := NewDarray[T](tracker, tag, len(items))
	d.items = append(d.items, items...)
	return d
}

func (d *Darray[T]) elemSize() uint64 {
	var zero T
	return uint64(unsafe.Sizeof(zero))
}

func (d *Darray[T]) reserve(capacity int) {
	old := cap(d.items)
	if capacity <= old {
		return
	}
	grown := make([]T, len(d.items), capacity)
	copy(grown, d.items)
	d.items = grown
	d.tracker.Allocate(uint64(capacity)*d.elemSize(), d.tag)
	if old > 0 {
		d.tracker.Free(uint64(old)*d.elemSize(), d.tag)
	}
}

// Push appends v, growing the backing store by resizeFactor when full.
func (d *Darray[T]) Push(v T) {
	if len(d.items) == cap(d.items) {
		next := cap(d.items) * resizeFactor
		if next < defaultCapacity {
			next = defaultCapacity
		}
		d.reserve(next)
	}
	d.items = append(d.items, v)
}

func (d *Darray[T]) Len() int {
	if d == nil {
		return 0
	}
	return len(d.items)
}

func (d *Darray[T]) Cap() int {
	if d == nil {
		return 0
	}
	return cap(d.items)
}

func (d *Darray[T]) At(i int) T {
	return d.items[i]
}

// Items returns the live contents. The slice is invalidated by Push and Release.
func (d *Darray[T]) Items() []T {
	if d == nil {
		return nil
	}
	return d.items
}

func (d *Darray[T]) Contains(pred func(T) bool) bool {
	for _, item := range d.Items() {
		if pred(item) {
			return true
		}
	}
	return false
}

// Release returns the backing capacity to the tracker. It is safe to call
// more than once.
func (d *Darray[T]) Release() {
	if d == nil || d.items == nil {
		return
	}
	d.tracker.Free(uint64(cap(d.items))*d.elemSize(), d.tag)
	d.items = nil
}
