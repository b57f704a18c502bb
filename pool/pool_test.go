package pool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type buffer struct {
	id    int
	dirty bool
}

func TestPoolPreallocates(t *testing.T) {
	allocated := 0
	p, err := NewPool(4, func() (*buffer, error) {
		allocated++
		return &buffer{id: allocated}, nil
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 4, allocated)
	require.Equal(t, 4, p.Capacity())
	require.Equal(t, 4, p.Available())
}

func TestPoolAllocFailure(t *testing.T) {
	allocated := 0
	p, err := NewPool(8, func() (*buffer, error) {
		if allocated >= 3 {
			return nil, fmt.Errorf("out of memory")
		}
		allocated++
		return &buffer{}, nil
	}, nil)
	require.Error(t, err)
	require.Nil(t, p)
}

func TestPoolHardCap(t *testing.T) {
	const capacity = 3
	p, err := NewPool(capacity, func() (*buffer, error) {
		return &buffer{}, nil
	}, nil)
	require.NoError(t, err)

	// Sustained load: acquire faster than release. The pool must never
	// issue more than `capacity` buffers concurrently.
	var held []*buffer
	for i := 0; i < capacity; i++ {
		item, ok := p.Get()
		require.True(t, ok)
		held = append(held, item)
	}
	for i := 0; i < 100; i++ {
		_, ok := p.Get()
		require.False(t, ok)
	}

	p.Put(held[0])
	item, ok := p.Get()
	require.True(t, ok)
	require.NotNil(t, item)
	_, ok = p.Get()
	require.False(t, ok)
}

func TestPoolResetsOnPut(t *testing.T) {
	p, err := NewPool(1, func() (*buffer, error) {
		return &buffer{}, nil
	}, func(b *buffer) {
		b.dirty = false
	})
	require.NoError(t, err)

	item, ok := p.Get()
	require.True(t, ok)
	item.dirty = true
	p.Put(item)

	item, ok = p.Get()
	require.True(t, ok)
	require.False(t, item.dirty)
}

func TestPoolPutNil(t *testing.T) {
	p, err := NewPool(1, func() (*buffer, error) {
		return &buffer{}, nil
	}, nil)
	require.NoError(t, err)
	p.Put(nil)
	require.Equal(t, 1, p.Available())
}
