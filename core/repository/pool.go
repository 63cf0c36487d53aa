package repository

import (
	"sync"

	"github.com/kilianp07/medfleet/core/model"
)

// ItemPool holds the unassigned inventory keyed by SKU. Every removal is
// atomic per SKU so two dispatch paths can never drain the same units twice.
type ItemPool struct {
	mu    sync.Mutex
	order []string
	items map[string]model.Item
}

// NewItemPool returns an empty pool.
func NewItemPool() *ItemPool {
	return &ItemPool{items: map[string]model.Item{}}
}

// Add inserts the item or merges its quantity into an existing SKU entry.
func (p *ItemPool) Add(it model.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.items[it.SKU]; ok {
		cur.Quantity += it.Quantity
		p.items[it.SKU] = cur
		return nil
	}
	p.items[it.SKU] = it
	p.order = append(p.order, it.SKU)
	return nil
}

// Take removes up to max units of sku and returns them. The entry is deleted
// once exhausted. A zero max takes the whole entry.
func (p *ItemPool) Take(sku string, max int) (model.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.items[sku]
	if !ok {
		return model.Item{}, model.Missing("item", sku)
	}
	n := cur.Quantity
	if max > 0 && max < n {
		n = max
	}
	cur.Quantity -= n
	if cur.Quantity <= 0 {
		p.removeLocked(sku)
	} else {
		p.items[sku] = cur
	}
	return cur.WithQuantity(n), nil
}

// TakeFirst removes and returns the whole first entry in pool order.
func (p *ItemPool) TakeFirst() (model.Item, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.order) == 0 {
		return model.Item{}, false
	}
	sku := p.order[0]
	it := p.items[sku]
	p.removeLocked(sku)
	return it, true
}

// Get returns the current entry for sku.
func (p *ItemPool) Get(sku string) (model.Item, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	it, ok := p.items[sku]
	return it, ok
}

// List returns a snapshot of the pool in order.
func (p *ItemPool) List() []model.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := make([]model.Item, 0, len(p.order))
	for _, sku := range p.order {
		res = append(res, p.items[sku])
	}
	return res
}

// Empty reports whether the pool holds no entries.
func (p *ItemPool) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order) == 0
}

func (p *ItemPool) removeLocked(sku string) {
	delete(p.items, sku)
	for i, s := range p.order {
		if s == sku {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}
