package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// cartArg is one parsed "itemID:qty[:modID,modID]" argument.
type cartArg struct {
	ItemID      uuid.UUID
	Quantity    int
	ModifierIDs []uuid.UUID
}

func parseCartArg(raw string) (cartArg, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return cartArg{}, fmt.Errorf("line %q: want itemID:qty[:modID,modID]", raw)
	}

	itemID, err := uuid.Parse(parts[0])
	if err != nil {
		return cartArg{}, fmt.Errorf("line %q: invalid item id: %w", raw, err)
	}
	qty, err := strconv.Atoi(parts[1])
	if err != nil {
		return cartArg{}, fmt.Errorf("line %q: invalid quantity: %w", raw, err)
	}

	arg := cartArg{ItemID: itemID, Quantity: qty}
	if len(parts) == 3 && parts[2] != "" {
		for _, rawMod := range strings.Split(parts[2], ",") {
			modID, err := uuid.Parse(strings.TrimSpace(rawMod))
			if err != nil {
				return cartArg{}, fmt.Errorf("line %q: invalid modifier id: %w", raw, err)
			}
			arg.ModifierIDs = append(arg.ModifierIDs, modID)
		}
	}
	return arg, nil
}

func parseCartArgs(raw []string) ([]cartArg, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one cart line is required")
	}
	out := make([]cartArg, 0, len(raw))
	for _, r := range raw {
		arg, err := parseCartArg(r)
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}
