package enums

import "fmt"

// ItemSize is the coarse size class shown next to a furniture item.
type ItemSize string

const (
	ItemSizeLarge  ItemSize = "LARGE"
	ItemSizeMedium ItemSize = "MEDIUM"
	ItemSizeSmall  ItemSize = "SMALL"
)

// DefaultItemSize applies when an item is created without a size.
const DefaultItemSize = ItemSizeMedium

var validItemSizes = []ItemSize{
	ItemSizeLarge,
	ItemSizeMedium,
	ItemSizeSmall,
}

// String implements fmt.Stringer.
func (s ItemSize) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ItemSize.
func (s ItemSize) IsValid() bool {
	for _, candidate := range validItemSizes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseItemSize converts raw input into an ItemSize.
func ParseItemSize(value string) (ItemSize, error) {
	for _, candidate := range validItemSizes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item size %q", value)
}
