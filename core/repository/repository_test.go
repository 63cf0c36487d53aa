package repository

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/medfleet/core/model"
)

func item(t *testing.T, sku string, qty int) model.Item {
	t.Helper()
	it, err := model.NewItem(sku, "item-"+sku, qty)
	require.NoError(t, err)
	return it
}

func TestStoreInsertionOrder(t *testing.T) {
	s := NewStore[int]()
	assert.True(t, s.Insert("b", 2))
	assert.True(t, s.Insert("a", 1))
	assert.False(t, s.Insert("b", 3), "duplicate insert must be rejected")
	assert.Equal(t, []int{2, 1}, s.List())
	v, ok := s.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.True(t, s.Has("a"))
	assert.Equal(t, 2, s.Len())
}

func TestPoolMergeAndTake(t *testing.T) {
	p := NewItemPool()
	require.NoError(t, p.Add(item(t, "A", 70)))
	require.NoError(t, p.Add(item(t, "B", 5)))
	require.NoError(t, p.Add(item(t, "A", 50)))

	got, ok := p.Get("A")
	require.True(t, ok)
	assert.Equal(t, 120, got.Quantity)

	chunk, err := p.Take("A", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, chunk.Quantity)
	got, _ = p.Get("A")
	assert.Equal(t, 70, got.Quantity)

	chunk, err = p.Take("B", 50)
	require.NoError(t, err)
	assert.Equal(t, 5, chunk.Quantity)
	_, ok = p.Get("B")
	assert.False(t, ok, "exhausted entry is removed")

	_, err = p.Take("Z", 1)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestPoolTakeFirstFollowsOrder(t *testing.T) {
	p := NewItemPool()
	require.NoError(t, p.Add(item(t, "X", 1)))
	require.NoError(t, p.Add(item(t, "Y", 2)))
	first, ok := p.TakeFirst()
	require.True(t, ok)
	assert.Equal(t, "X", first.SKU)
	assert.Len(t, p.List(), 1)
	_, _ = p.TakeFirst()
	_, ok = p.TakeFirst()
	assert.False(t, ok)
	assert.True(t, p.Empty())
}

func TestPoolConcurrentTakeConservesUnits(t *testing.T) {
	p := NewItemPool()
	require.NoError(t, p.Add(item(t, "A", 1000)))

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		taken int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				it, err := p.Take("A", 7)
				if err != nil {
					return
				}
				mu.Lock()
				taken += it.Quantity
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1000, taken)
	assert.True(t, p.Empty())
}

func TestPoolRejectsInvalidItem(t *testing.T) {
	p := NewItemPool()
	err := p.Add(model.Item{SKU: "", Name: "x"})
	assert.True(t, errors.Is(err, model.ErrInvalidEntity))
}

func TestActiveTaskFor(t *testing.T) {
	r := New()
	task := model.NewTask("T1", "d", "V1")
	r.Tasks.Insert(task.ID, task)
	assert.True(t, r.ActiveTaskFor("V1"))
	assert.False(t, r.ActiveTaskFor("V2"))
	_, err := task.Transition(model.TaskDone)
	require.NoError(t, err)
	assert.False(t, r.ActiveTaskFor("V1"))
}
