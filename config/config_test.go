package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriceTiers(t *testing.T) {
	tiers, err := ParsePriceTiers(" GCSE_standard=4500, gcse_discount = 3800 ,")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"gcse_standard": 4500, "gcse_discount": 3800}, tiers)

	tiers, err = ParsePriceTiers("")
	require.NoError(t, err)
	assert.Empty(t, tiers)

	_, err = ParsePriceTiers("gcse_standard")
	assert.Error(t, err)
	_, err = ParsePriceTiers("gcse_standard=-1")
	assert.Error(t, err)
}
