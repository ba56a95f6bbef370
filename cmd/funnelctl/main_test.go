package main

import (
	"os"
	"testing"

	"iamblessed-funnel-go/internal/drip"
	"iamblessed-funnel-go/internal/tiers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, validateEmail("grace@example.com"))
	assert.Error(t, validateEmail("grace"))
	assert.Error(t, validateEmail("Grace <grace@example.com>"))
	assert.Error(t, validateEmail(""))
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, validateName("Al"))
	assert.Error(t, validateName("A"))
}

func TestSampleCampaignsFile(t *testing.T) {
	data, err := os.ReadFile("../../campaigns.yaml")
	require.NoError(t, err)

	catalog, err := drip.ParseCatalog(data)
	require.NoError(t, err)

	welcome, ok := catalog.Get(drip.WelcomeCampaign)
	require.True(t, ok)
	assert.NotEmpty(t, welcome.Steps)
	_, ok = catalog.Get(drip.NudgeCampaign)
	assert.True(t, ok)
}

func TestSampleTiersFile(t *testing.T) {
	data, err := os.ReadFile("../../tiers.yaml")
	require.NoError(t, err)

	set, err := tiers.Parse(data)
	require.NoError(t, err)

	tier, ok := set.Affiliate.Lookup(decimal.NewFromInt(10))
	require.True(t, ok)
	assert.Equal(t, "Bloom", tier.Name)
	assert.True(t, tier.Rate.Equal(decimal.RequireFromString("0.2")))
}
