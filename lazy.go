package clrmeta

import "sync/atomic"

// lazyState records whether a lazyCell is empty or ready with a published
// value. Get and IsSet decide from the value pointer, not from this field.
type lazyState int32

const (
	lazyEmpty lazyState = iota
	lazyReady
)

// lazyCell[T] holds a value computed on first access. Per spec.md §4.F/§5,
// the init function may run more than once under a concurrent first
// touch, but only one resulting value is ever published and observed by
// any reader: publication is a single atomic.CompareAndSwap on the value
// pointer, never a torn write.
type lazyCell[T any] struct {
	state lazyState
	value atomic.Pointer[T]
}

// Get returns the cell's value, computing it via init on first access.
// init must be side-effect-free beyond its returned value, since it may
// be invoked more than once in a benign race.
func (c *lazyCell[T]) Get(init func() (T, error)) (T, error) {
	if v := c.value.Load(); v != nil {
		return *v, nil
	}
	v, err := init()
	if err != nil {
		var zero T
		return zero, err
	}
	c.value.CompareAndSwap(nil, &v)
	atomic.StoreInt32((*int32)(&c.state), int32(lazyReady))
	return *c.value.Load(), nil
}

// Set bypasses initialization: the cell becomes initialized with value,
// matching spec.md §4.F's "writes... bypass initialization" rule for
// user overrides of a derived field.
func (c *lazyCell[T]) Set(value T) {
	c.value.Store(&value)
	atomic.StoreInt32((*int32)(&c.state), int32(lazyReady))
}

// IsSet reports whether the cell currently holds a published value.
func (c *lazyCell[T]) IsSet() bool {
	return c.value.Load() != nil
}

// Invalidate clears the cell so the next Get recomputes it, used by
// full-name cache invalidation when a declaring-chain name changes.
func (c *lazyCell[T]) Invalidate() {
	c.value.Store(nil)
	atomic.StoreInt32((*int32)(&c.state), int32(lazyEmpty))
}

// Owned is implemented by any element that can belong to an OwnedCollection.
// Owner is untyped (any) rather than a type parameter because a
// TypeDefinition's owner is, at different points in its life, either its
// ModuleDefinition (top-level) or another *TypeDefinition (nested) —
// spec.md §3's "DeclaringType is null ⇔ type ∈ Module.TopLevelTypes"
// invariant requires one slot that can hold either.
type Owned interface {
	setOwner(owner any)
	getOwner() any
}

// ownerBox gives ownerSlot's atomic.Pointer a single, stable concrete type
// to store even though the logical owner's dynamic type varies.
type ownerBox struct{ v any }

// ownerSlot is embedded by member types to provide the weak (non-owning)
// back-reference an OwnedCollection manages.
type ownerSlot struct {
	owner atomic.Pointer[ownerBox]
}

func (s *ownerSlot) setOwner(o any) {
	if o == nil {
		s.owner.Store(nil)
		return
	}
	s.owner.Store(&ownerBox{v: o})
}

func (s *ownerSlot) getOwner() any {
	b := s.owner.Load()
	if b == nil {
		return nil
	}
	return b.v
}

// OwnedCollection is an ordered sequence whose elements carry a back
// reference to exactly one owner at a time, per spec.md §4.F/§3's
// Ownership invariant.
type OwnedCollection[Element Owned] struct {
	owner any
	items []Element
}

// NewOwnedCollection creates a collection backed by owner.
func NewOwnedCollection[Element Owned](owner any) *OwnedCollection[Element] {
	return &OwnedCollection[Element]{owner: owner}
}

// Add appends e, requiring it currently have no owner.
func (c *OwnedCollection[Element]) Add(e Element) error {
	if e.getOwner() != nil {
		return ErrAlreadyOwned
	}
	e.setOwner(c.owner)
	c.items = append(c.items, e)
	return nil
}

// Insert places e at index i, requiring it currently have no owner.
func (c *OwnedCollection[Element]) Insert(i int, e Element) error {
	if e.getOwner() != nil {
		return ErrAlreadyOwned
	}
	e.setOwner(c.owner)
	var zero Element
	c.items = append(c.items, zero)
	copy(c.items[i+1:], c.items[i:])
	c.items[i] = e
	return nil
}

// Remove deletes the element at index i and clears its owner.
func (c *OwnedCollection[Element]) Remove(i int) {
	c.items[i].setOwner(nil)
	c.items = append(c.items[:i], c.items[i+1:]...)
}

// Clear empties the collection, clearing every element's owner.
func (c *OwnedCollection[Element]) Clear() {
	for _, e := range c.items {
		e.setOwner(nil)
	}
	c.items = nil
}

// Len returns the number of elements.
func (c *OwnedCollection[Element]) Len() int { return len(c.items) }

// At returns the element at index i.
func (c *OwnedCollection[Element]) At(i int) Element { return c.items[i] }

// Slice returns a read-only copy of the collection's current contents.
func (c *OwnedCollection[Element]) Slice() []Element {
	out := make([]Element, len(c.items))
	copy(out, c.items)
	return out
}
