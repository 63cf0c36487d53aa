package model

import (
	"errors"
	"fmt"
)

// Kind classifies domain errors.
type Kind int

const (
	// InvalidEntity reports a blank identifier, negative quantity or out of
	// range battery level.
	InvalidEntity Kind = iota + 1
	// NotFound reports an unknown vehicle, task, station or SKU.
	NotFound
	// NullItem reports a missing item argument.
	NullItem
	// CapacityExceeded reports a vehicle that cannot hold another SKU.
	CapacityExceeded
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case InvalidEntity:
		return "invalid_entity"
	case NotFound:
		return "not_found"
	case NullItem:
		return "null_item"
	case CapacityExceeded:
		return "capacity_exceeded"
	default:
		return "unknown"
	}
}

// Error carries the kind of a domain failure and the entity it relates to.
type Error struct {
	Kind   Kind
	Entity string // "vehicle", "station", "task", "item"
	ID     string
	Value  any
	Msg    string
}

func (e *Error) Error() string {
	s := e.Entity
	if e.ID != "" {
		s += " " + e.ID
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Value != nil {
		s += fmt.Sprintf(" (got %v)", e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Kind, s)
}

// Is matches any *Error with the same kind, so callers can write
// errors.Is(err, model.ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrInvalidEntity    = &Error{Kind: InvalidEntity}
	ErrNotFound         = &Error{Kind: NotFound}
	ErrNullItem         = &Error{Kind: NullItem}
	ErrCapacityExceeded = &Error{Kind: CapacityExceeded}
)

// Invalid returns an InvalidEntity error.
func Invalid(entity, id, msg string, value any) error {
	return &Error{Kind: InvalidEntity, Entity: entity, ID: id, Msg: msg, Value: value}
}

// Missing returns a NotFound error.
func Missing(entity, id string) error {
	return &Error{Kind: NotFound, Entity: entity, ID: id, Msg: "not found"}
}

// KindOf extracts the kind of err, or zero when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
