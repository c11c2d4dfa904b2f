package stock

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	pkgerrors "github.com/muebleria/cotizador-backend/pkg/errors"
	"github.com/muebleria/cotizador-backend/pkg/pricing"
)

// MaxLineQuantity bounds a single cart line accepted at settlement.
const MaxLineQuantity = 1_000_000

var (
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrQuantityTooLarge = fmt.Errorf("quantity must be at most %d", MaxLineQuantity)
)

// InsufficientStockError reports a request that would exceed available units.
// InCart is zero when raised at settlement time, where the whole cart is the request.
type InsufficientStockError struct {
	ItemID    uuid.UUID `json:"item_id"`
	ItemName  string    `json:"item_name,omitempty"`
	InCart    int       `json:"in_cart"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s: in cart %d, requested %d, available %d", e.ItemID, e.InCart, e.Requested, e.Available)
}

// Typed wraps e so HTTP layers map it to CONFLICT with the figures as details.
func (e *InsufficientStockError) Typed() *pkgerrors.Error {
	msg := "insufficient stock"
	if e.ItemName != "" {
		msg = fmt.Sprintf("insufficient stock for %s", e.ItemName)
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, e, msg).WithDetails(e)
}

// InvalidQuantity wraps ErrInvalidQuantity as a validation error.
func InvalidQuantity(requested int) *pkgerrors.Error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidQuantity, ErrInvalidQuantity.Error()).
		WithDetails(map[string]any{"quantity": requested})
}

// Aggregate sums quantities per item across lines. It is always recomputed from
// the lines themselves. Sums saturate at math.MaxInt so an oversized cart still
// compares as more than any stock level.
func Aggregate(lines []pricing.Line) map[uuid.UUID]int {
	totals := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		totals[line.ItemID] = addUnits(totals[line.ItemID], line.Quantity)
	}
	return totals
}

// addUnits adds non-negative quantities without wrapping.
func addUnits(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// CheckAdd reports whether requested more units of itemID fit next to what the
// cart already holds. Items absent from snap have zero availability.
func CheckAdd(lines []pricing.Line, itemID uuid.UUID, requested int, snap *pricing.Snapshot) error {
	if requested <= 0 {
		return InvalidQuantity(requested)
	}

	inCart := Aggregate(lines)[itemID]
	available := 0
	name := ""
	if item, ok := snap.Item(itemID); ok {
		available = item.Stock
		name = item.Name
	}

	if addUnits(inCart, requested) > available {
		return (&InsufficientStockError{
			ItemID:    itemID,
			ItemName:  name,
			InCart:    inCart,
			Requested: requested,
			Available: available,
		}).Typed()
	}
	return nil
}

// ValidateLines checks every line carries a quantity between 1 and
// MaxLineQuantity.
func ValidateLines(lines []pricing.Line) error {
	for idx, line := range lines {
		details := map[string]any{
			"line":     idx,
			"item_id":  line.ItemID,
			"quantity": line.Quantity,
		}
		switch {
		case line.Quantity <= 0:
			return InvalidQuantity(line.Quantity).WithDetails(details)
		case line.Quantity > MaxLineQuantity:
			return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrQuantityTooLarge, ErrQuantityTooLarge.Error()).
				WithDetails(details)
		}
	}
	return nil
}
