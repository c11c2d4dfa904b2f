package enums

import "fmt"

// ModifierKind selects how a modifier contributes to a unit price.
type ModifierKind string

const (
	// ModifierKindFixedAdd adds an absolute amount.
	ModifierKindFixedAdd ModifierKind = "FIXED_ADD"
	// ModifierKindPercentage adds a fraction of the base price.
	ModifierKindPercentage ModifierKind = "PERCENTAGE"
)

var validModifierKinds = []ModifierKind{
	ModifierKindFixedAdd,
	ModifierKindPercentage,
}

// String implements fmt.Stringer.
func (k ModifierKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known ModifierKind.
func (k ModifierKind) IsValid() bool {
	for _, candidate := range validModifierKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseModifierKind converts raw input into a ModifierKind.
func ParseModifierKind(value string) (ModifierKind, error) {
	for _, candidate := range validModifierKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid modifier kind %q", value)
}
