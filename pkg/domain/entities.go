package domain

import "slices"

// Member constrains the element type of an Entities collection. Elements are
// compared by identity, so pointer entity types such as *Entity[T] are the
// usual choice; the Record interface itself also qualifies.
type Member interface {
	comparable
	Record
}

// Collection is the non-generic view of an entity collection held by an
// aggregate.
type Collection interface {
	Count() int
	Records() []Record
}

// Entities is an ordered, mutable list of entities. Duplicates are allowed and
// order is insertion order until Sort is called. The collection sequences
// entities but does not own them.
type Entities[E Member] struct {
	items []E
}

var _ Collection = (*Entities[Record])(nil)

// NewEntities uses items as the backing slice; passing a slice with ... shares
// its storage with the collection.
func NewEntities[E Member](items ...E) *Entities[E] {
	if items == nil {
		items = []E{}
	}
	return &Entities[E]{items: items}
}

// Items returns the live backing slice. Reordering or overwriting its elements
// is visible to the collection; appending to it is not.
func (c *Entities[E]) Items() []E { return c.items }

// Add appends entity to the end of the collection.
func (c *Entities[E]) Add(entity E) {
	c.items = append(c.items, entity)
}

// Remove deletes the first element identical to entity. Structurally equal but
// distinct entities do not match. It returns an error matching ErrNotFound
// when no element is identical.
func (c *Entities[E]) Remove(entity E) error {
	idx := slices.Index(c.items, entity)
	if idx == -1 {
		return errEntityNotInList
	}
	c.items = slices.Delete(c.items, idx, idx+1)
	return nil
}

// Clear replaces the backing slice with an empty one. Slices previously
// returned by Items are left untouched.
func (c *Entities[E]) Clear() {
	c.items = []E{}
}

// Count returns the number of entities.
func (c *Entities[E]) Count() int { return len(c.items) }

// Find returns the first entity matching pred.
func (c *Entities[E]) Find(pred func(E) bool) (E, bool) {
	for _, item := range c.items {
		if pred(item) {
			return item, true
		}
	}
	var zero E
	return zero, false
}

// Sort orders the collection in place with a three-way comparator. The sort
// is stable, so ties keep their relative order.
func (c *Entities[E]) Sort(cmp func(a, b E) int) {
	slices.SortStableFunc(c.items, cmp)
}

// Records returns the entities as a fresh []Record.
func (c *Entities[E]) Records() []Record {
	out := make([]Record, len(c.items))
	for i, item := range c.items {
		out[i] = item
	}
	return out
}
