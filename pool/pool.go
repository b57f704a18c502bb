// Package pool provides a bounded object pool with eager preallocation.
//
// Unlike sync.Pool this pool has a hard capacity: it preallocates every
// item up front and never grows. An acquire past the capacity fails
// instead of allocating, which makes the pool a backpressure boundary
// rather than a cache.
package pool

type Pool[T any] struct {
	resetFunc func(*T)
	items     chan *T
	capacity  int
}

// NewPool constructs a pool of exactly `capacity` items, allocating all
// of them immediately via allocFunc. If any allocation fails, the whole
// construction fails and no pool is returned.
func NewPool[T any](
	capacity int,
	allocFunc func() (*T, error),
	resetFunc func(*T),
) (*Pool[T], error) {
	p := &Pool[T]{
		resetFunc: resetFunc,
		items:     make(chan *T, capacity),
		capacity:  capacity,
	}
	for i := 0; i < capacity; i++ {
		item, err := allocFunc()
		if err != nil {
			return nil, err
		}
		p.items <- item
	}
	return p, nil
}

// Get acquires an item. It reports false when all items are currently
// in use: the request must fail rather than grow the pool.
func (p *Pool[T]) Get() (*T, bool) {
	select {
	case item := <-p.items:
		return item, true
	default:
		return nil, false
	}
}

// Put returns items to the pool, resetting each one first. Returning an
// item that did not come from this pool is a programming error; the
// excess item is dropped.
func (p *Pool[T]) Put(items ...*T) {
	for _, item := range items {
		if item == nil {
			continue
		}
		if p.resetFunc != nil {
			p.resetFunc(item)
		}
		select {
		case p.items <- item:
		default:
		}
	}
}

// Capacity returns the fixed amount of items the pool was built with.
func (p *Pool[T]) Capacity() int {
	return p.capacity
}

// Available returns the amount of items currently acquirable.
func (p *Pool[T]) Available() int {
	return len(p.items)
}
