package types

import (
	"fmt"
	"strings"
)

// EntityType names one kind of reference data. The set is closed.
type EntityType string

const (
	Clients    EntityType = "clients"
	Categories EntityType = "categories"
	Items      EntityType = "items"
	Sizes      EntityType = "sizes"
	Suppliers  EntityType = "suppliers"

	// ItemsParentColumn is the foreign key linking an item to its category.
	ItemsParentColumn = "category_id"
)

var AllEntityTypes = []EntityType{Clients, Categories, Items, Sizes, Suppliers}

// GlobalEntityTypes are the entities that are not parent-scoped.
var GlobalEntityTypes = []EntityType{Clients, Categories, Sizes, Suppliers}

func ParseEntityType(s string) (EntityType, error) {
	e := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !e.Valid() {
		return "", Err(ErrUnknownEntity, nil, "unknown entity type %q", s)
	}
	return e, nil
}

func (e EntityType) Valid() bool {
	switch e {
	case Clients, Categories, Items, Sizes, Suppliers:
		return true
	}
	return false
}

// ParentScoped is true only for items, which are bucketed by category id.
func (e EntityType) ParentScoped() bool { return e == Items }

// Essential entities get built-in defaults when the backend keeps failing, so order forms stay usable.
func (e EntityType) Essential() bool { return e == Categories || e == Sizes }

// CacheKey identifies one cache entry: an entity, plus a parent id for items.
type CacheKey struct {
	Entity   EntityType
	ParentID string
}

// NewKey drops the parent for entities that are not parent-scoped.
func NewKey(e EntityType, parentID string) CacheKey {
	if !e.ParentScoped() {
		parentID = ""
	}
	return CacheKey{Entity: e, ParentID: parentID}
}

func (k CacheKey) String() string {
	if k.ParentID == "" {
		return string(k.Entity)
	}
	return fmt.Sprintf("%s:%s", k.Entity, k.ParentID)
}
