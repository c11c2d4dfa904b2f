package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/muebleria/cotizador-backend/pkg/enums"
	pkgerrors "github.com/muebleria/cotizador-backend/pkg/errors"
)

var ErrUnknownModifierKind = errors.New("unknown modifier kind")

var hundred = decimal.NewFromInt(100)

// Apply returns the amount a modifier adds on top of base.
func Apply(base decimal.Decimal, m Modifier) (decimal.Decimal, error) {
	switch m.Kind {
	case enums.ModifierKindPercentage:
		return base.Mul(m.Value), nil
	case enums.ModifierKindFixedAdd:
		return m.Value, nil
	default:
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrUnknownModifierKind, fmt.Sprintf("modifier %s has unknown kind %q", m.ID, m.Kind))
	}
}

// NormalizeValue converts a human-entered modifier value into its stored form:
// percent points become a fraction, fixed amounts pass through.
func NormalizeValue(kind enums.ModifierKind, raw decimal.Decimal) decimal.Decimal {
	if kind == enums.ModifierKindPercentage {
		return raw.Div(hundred)
	}
	return raw
}
