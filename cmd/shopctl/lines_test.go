package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCartArg(t *testing.T) {
	item := uuid.New()
	modA := uuid.New()
	modB := uuid.New()

	arg, err := parseCartArg(item.String() + ":3")
	require.NoError(t, err)
	assert.Equal(t, item, arg.ItemID)
	assert.Equal(t, 3, arg.Quantity)
	assert.Empty(t, arg.ModifierIDs)

	arg, err = parseCartArg(item.String() + ":1:" + modA.String() + "," + modB.String())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{modA, modB}, arg.ModifierIDs)
}

func TestParseCartArgRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"not-a-uuid:1",
		uuid.NewString(),
		uuid.NewString() + ":x",
		uuid.NewString() + ":1:bad",
		uuid.NewString() + ":1:" + uuid.NewString() + ":extra",
	} {
		_, err := parseCartArg(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseCartArgsRequiresLines(t *testing.T) {
	_, err := parseCartArgs(nil)
	assert.Error(t, err)
}
