package lending

import "iter"

// registry is an ID-keyed, insertion-ordered store of records.
// Records live contiguously in items; index maps an ID to its slot.
type registry[T any] struct {
	items     []T
	ids       []int
	index     map[int]int
	highestID int
}

func newRegistry[T any]() *registry[T] {
	return &registry[T]{
		items: make([]T, 0),
		ids:   make([]int, 0),
		index: make(map[int]int),
	}
}

// nextID is count+1, but never below the highest ID ever stored, so IDs are not reused.
func (r *registry[T]) nextID() int {
	return max(len(r.items), r.highestID) + 1
}

// add stores the record under id and reports false if the id is already taken.
func (r *registry[T]) add(id int, item T) bool {
	if _, exists := r.index[id]; exists {
		return false
	}

	r.index[id] = len(r.items)
	r.items = append(r.items, item)
	r.ids = append(r.ids, id)
	r.highestID = max(r.highestID, id)

	return true
}

// removeLast undoes the most recent add.
func (r *registry[T]) removeLast() {
	if len(r.items) == 0 {
		return
	}

	last := len(r.items) - 1
	delete(r.index, r.ids[last])

	var zero T
	r.items[last] = zero
	r.items = r.items[:last]
	r.ids = r.ids[:last]

	r.highestID = 0
	for _, id := range r.ids {
		r.highestID = max(r.highestID, id)
	}
}

func (r *registry[T]) get(id int) (T, bool) {
	slot, ok := r.index[id]
	if !ok {
		var zero T
		return zero, false
	}

	return r.items[slot], true
}

// ref returns a pointer into the arena; it is only valid until the next add.
func (r *registry[T]) ref(id int) *T {
	slot, ok := r.index[id]
	if !ok {
		return nil
	}

	return &r.items[slot]
}

func (r *registry[T]) len() int {
	return len(r.items)
}

// all yields the records in insertion order. The sequence is restartable.
func (r *registry[T]) all() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, item := range r.items {
			if !yield(item) {
				return
			}
		}
	}
}
