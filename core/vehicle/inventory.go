package vehicle

import "github.com/kilianp07/medfleet/core/model"

// AddItem merges it into the inventory. It returns false without error when
// the vehicle already holds the maximum number of item kinds.
func (v *Vehicle) AddItem(it *model.Item) (bool, error) {
	if it == nil {
		return false, &model.Error{Kind: model.NullItem, Entity: "vehicle", ID: v.id, Msg: "item cannot be null"}
	}
	if err := it.Validate(); err != nil {
		return false, err
	}
	v.mu.Lock()
	if len(v.order) >= model.MaxItemKinds {
		v.mu.Unlock()
		v.deps.Events.LogVehicle(v.name, v.name+" has no capacity to add more items.")
		v.deps.Log.Warnf("%s", (&model.Error{Kind: model.CapacityExceeded, Entity: "vehicle", ID: v.id, Value: it.SKU}).Error())
		return false, nil
	}
	if cur, ok := v.inventory[it.SKU]; ok {
		cur.Quantity += it.Quantity
		v.inventory[it.SKU] = cur
	} else {
		v.inventory[it.SKU] = *it
		v.order = append(v.order, it.SKU)
	}
	v.mu.Unlock()
	return true, nil
}

// HasCapacity reports whether another item kind fits.
func (v *Vehicle) HasCapacity() bool {
	return v.RemainingCapacity() > 0
}

// RemainingCapacity returns the number of item kinds that still fit.
func (v *Vehicle) RemainingCapacity() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return model.MaxItemKinds - len(v.order)
}

// Inventory returns the items in load order.
func (v *Vehicle) Inventory() []model.Item {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inventoryLocked()
}

func (v *Vehicle) inventoryLocked() []model.Item {
	res := make([]model.Item, 0, len(v.order))
	for _, sku := range v.order {
		res = append(res, v.inventory[sku])
	}
	return res
}

// Quantity returns the units of sku on board.
func (v *Vehicle) Quantity(sku string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inventory[sku].Quantity
}

// FirstDeliverable returns the first item with a positive quantity.
func (v *Vehicle) FirstDeliverable() (model.Item, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, sku := range v.order {
		if it := v.inventory[sku]; it.Quantity > 0 {
			return it, true
		}
	}
	return model.Item{}, false
}

// Unload removes up to qty units of sku and returns what was removed. The
// entry is dropped once empty.
func (v *Vehicle) Unload(sku string, qty int) (model.Item, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cur, ok := v.inventory[sku]
	if !ok {
		return model.Item{}, model.Missing("item", sku)
	}
	if qty < 0 {
		return model.Item{}, model.Invalid("item", sku, "quantity must be non-negative", qty)
	}
	if qty > cur.Quantity {
		qty = cur.Quantity
	}
	cur.Quantity -= qty
	if cur.Quantity <= 0 {
		delete(v.inventory, sku)
		for i, s := range v.order {
			if s == sku {
				v.order = append(v.order[:i], v.order[i+1:]...)
				break
			}
		}
	} else {
		v.inventory[sku] = cur
	}
	return cur.WithQuantity(qty), nil
}
