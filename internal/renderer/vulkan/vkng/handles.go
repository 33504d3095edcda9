package vkng

// registry hands out opaque handles for vkngwrapper objects. Handle 0 is
// never issued so it can keep meaning "none".
type registry[T any] struct {
	next  uintptr
	items map[uintptr]T
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{items: map[uintptr]T{}}
}

func (r *registry[T]) add(item T) uintptr {
	r.next++
	r.items[r.next] = item
	return r.next
}

// get returns the object behind handle, or the zero value for an unknown or
// null handle.
func (r *registry[T]) get(handle uintptr) (T, bool) {
	item, ok := r.items[handle]
	return item, ok
}

func (r *registry[T]) remove(handle uintptr) (T, bool) {
	item, ok := r.items[handle]
	if ok {
		delete(r.items, handle)
	}
	return item, ok
}

func (r *registry[T]) len() int {
	return len(r.items)
}
