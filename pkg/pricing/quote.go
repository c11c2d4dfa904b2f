package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one cart entry. ModifierIDs has set semantics.
type Line struct {
	ItemID      uuid.UUID   `json:"item_id"`
	Quantity    int         `json:"quantity"`
	ModifierIDs []uuid.UUID `json:"modifier_ids"`
}

// LineQuote is the priced form of a Line. Resolved is false when the item is
// missing from the snapshot; such lines contribute zero.
type LineQuote struct {
	Line               Line            `json:"line"`
	Resolved           bool            `json:"resolved"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	LineTotal          decimal.Decimal `json:"line_total"`
	SkippedModifierIDs []uuid.UUID     `json:"skipped_modifier_ids,omitempty"`
}

// Quotation is the priced form of a whole cart.
type Quotation struct {
	Lines             []LineQuote     `json:"lines"`
	Total             decimal.Decimal `json:"total"`
	UnresolvedItemIDs []uuid.UUID     `json:"unresolved_item_ids,omitempty"`
}

// PriceLine prices a single line against snap. Unknown items and modifiers are
// skipped rather than failing the line, since the catalog may change under an
// open cart.
func PriceLine(line Line, snap *Snapshot) (LineQuote, error) {
	quote := LineQuote{
		Line:      line,
		UnitPrice: decimal.Zero,
		LineTotal: decimal.Zero,
	}

	item, ok := snap.Item(line.ItemID)
	if !ok {
		return quote, nil
	}
	quote.Resolved = true

	unit := item.BasePrice
	for _, modID := range UniqueIDs(line.ModifierIDs) {
		mod, ok := snap.Modifier(modID)
		if !ok {
			quote.SkippedModifierIDs = append(quote.SkippedModifierIDs, modID)
			continue
		}
		contribution, err := Apply(item.BasePrice, mod)
		if err != nil {
			return LineQuote{}, err
		}
		unit = unit.Add(contribution)
	}

	quote.UnitPrice = unit
	quote.LineTotal = unit.Mul(decimal.NewFromInt(int64(line.Quantity)))
	return quote, nil
}

// Quote prices every line and sums the totals. An empty cart totals zero.
func Quote(lines []Line, snap *Snapshot) (Quotation, error) {
	out := Quotation{
		Lines: make([]LineQuote, 0, len(lines)),
		Total: decimal.Zero,
	}
	for _, line := range lines {
		lq, err := PriceLine(line, snap)
		if err != nil {
			return Quotation{}, err
		}
		if !lq.Resolved {
			out.UnresolvedItemIDs = append(out.UnresolvedItemIDs, line.ItemID)
		}
		out.Lines = append(out.Lines, lq)
		out.Total = out.Total.Add(lq.LineTotal)
	}
	return out, nil
}

// UniqueIDs drops repeated ids, keeping first-seen order.
func UniqueIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
