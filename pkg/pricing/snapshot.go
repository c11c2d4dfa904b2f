package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/muebleria/cotizador-backend/pkg/enums"
)

// Item is the read-only view of a catalog item used for pricing and stock checks.
type Item struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	BasePrice decimal.Decimal  `json:"base_price"`
	Stock     int              `json:"stock"`
	Status    enums.ItemStatus `json:"status"`
}

// Modifier is the read-only view of a modifier. PERCENTAGE values are fractions.
type Modifier struct {
	ID    uuid.UUID          `json:"id"`
	Name  string             `json:"name"`
	Kind  enums.ModifierKind `json:"kind"`
	Value decimal.Decimal    `json:"value"`
}

// Snapshot is an immutable catalog view. A reload builds a new Snapshot rather
// than mutating an existing one.
type Snapshot struct {
	items         []Item
	modifiers     []Modifier
	itemsByID     map[uuid.UUID]Item
	modifiersByID map[uuid.UUID]Modifier
}

// NewSnapshot copies the inputs, preserving their order for listings.
func NewSnapshot(items []Item, modifiers []Modifier) *Snapshot {
	s := &Snapshot{
		items:         append([]Item(nil), items...),
		modifiers:     append([]Modifier(nil), modifiers...),
		itemsByID:     make(map[uuid.UUID]Item, len(items)),
		modifiersByID: make(map[uuid.UUID]Modifier, len(modifiers)),
	}
	for _, item := range s.items {
		s.itemsByID[item.ID] = item
	}
	for _, mod := range s.modifiers {
		s.modifiersByID[mod.ID] = mod
	}
	return s
}

// EmptySnapshot has no items and no modifiers.
func EmptySnapshot() *Snapshot {
	return NewSnapshot(nil, nil)
}

func (s *Snapshot) Item(id uuid.UUID) (Item, bool) {
	if s == nil {
		return Item{}, false
	}
	item, ok := s.itemsByID[id]
	return item, ok
}

func (s *Snapshot) Modifier(id uuid.UUID) (Modifier, bool) {
	if s == nil {
		return Modifier{}, false
	}
	mod, ok := s.modifiersByID[id]
	return mod, ok
}

// Items returns every item, including INACTIVE ones.
func (s *Snapshot) Items() []Item {
	if s == nil {
		return nil
	}
	return append([]Item(nil), s.items...)
}

// OfferableItems returns only ACTIVE items.
func (s *Snapshot) OfferableItems() []Item {
	if s == nil {
		return nil
	}
	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		if item.Status.Offerable() {
			out = append(out, item)
		}
	}
	return out
}

func (s *Snapshot) Modifiers() []Modifier {
	if s == nil {
		return nil
	}
	return append([]Modifier(nil), s.modifiers...)
}
