package model

import "strings"

// Item is a quantity of a single SKU, either in the unassigned pool or in a
// vehicle inventory. Items are values; pools own the quantities.
type Item struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// NewItem validates and trims the fields of an item.
func NewItem(sku, name string, qty int) (Item, error) {
	it := Item{SKU: strings.TrimSpace(sku), Name: strings.TrimSpace(name), Quantity: qty}
	if err := it.Validate(); err != nil {
		return Item{}, err
	}
	return it, nil
}

// Validate checks that the SKU and name are set and the quantity is not negative.
func (i Item) Validate() error {
	if strings.TrimSpace(i.SKU) == "" {
		return Invalid("item", "", "SKU must not be blank", nil)
	}
	if strings.TrimSpace(i.Name) == "" {
		return Invalid("item", i.SKU, "name must not be blank", nil)
	}
	if i.Quantity < 0 {
		return Invalid("item", i.SKU, "quantity must be non-negative", i.Quantity)
	}
	return nil
}

// WithQuantity returns a copy of the item holding qty units.
func (i Item) WithQuantity(qty int) Item {
	i.Quantity = qty
	return i
}
