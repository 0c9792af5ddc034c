// Package handle implements the open-file-handle table and the buffered
// write path attached to each entry.
package handle

// Slab is a generic reusable-slot container: Insert hands back the most
// recently freed integer key if there is one, and otherwise the next key
// past the highest one ever issued. It exists because the kernel hands back a single stable handle id
// across open/read/write/release, and reusing low ids keeps that id space
// dense rather than growing without bound over the life of a long-running
// mount. No common library offers this exact contract (they're either
// sync.Pool, which does not expose stable integer keys, or full object
// pools tied to a concrete type), so it's implemented directly on a slice
// plus a free-list.
type Slab[T any] struct {
	entries []entry[T]
	free    []int
}

type entry[T any] struct {
	value    T
	occupied bool
}

// NewSlab returns an empty slab.
func NewSlab[T any]() *Slab[T] {
	return &Slab[T]{}
}

// Insert stores v and returns the key it was stored under.
func (s *Slab[T]) Insert(v T) int {
	if n := len(s.free); n > 0 {
		key := s.free[n-1]
		s.free = s.free[:n-1]
		s.entries[key] = entry[T]{value: v, occupied: true}
		return key
	}
	key := len(s.entries)
	s.entries = append(s.entries, entry[T]{value: v, occupied: true})
	return key
}

// Get returns the value stored at key, if any.
func (s *Slab[T]) Get(key int) (T, bool) {
	var zero T
	if key < 0 || key >= len(s.entries) || !s.entries[key].occupied {
		return zero, false
	}
	return s.entries[key].value, true
}

// GetPtr returns a pointer to the stored value, allowing in-place mutation,
// or nil if key is not occupied.
func (s *Slab[T]) GetPtr(key int) *T {
	if key < 0 || key >= len(s.entries) || !s.entries[key].occupied {
		return nil
	}
	return &s.entries[key].value
}

// TryRemove removes and returns the value at key, if present, freeing the
// key for a future Insert.
func (s *Slab[T]) TryRemove(key int) (T, bool) {
	var zero T
	if key < 0 || key >= len(s.entries) || !s.entries[key].occupied {
		return zero, false
	}
	v := s.entries[key].value
	s.entries[key] = entry[T]{}
	s.free = append(s.free, key)
	return v, true
}
