package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/pincode"
)

func TestOpenMemory_BundledSeed(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{BootstrapAPIKey: "local-key", APIKeyPepper: "pepper"}

	b, err := openMemory(zap.NewNop(), cfg)
	require.NoError(t, err)
	defer b.close()

	products, err := b.products.GetByIDs(ctx, []string{"p-leash"})
	require.NoError(t, err)
	require.Len(t, products, 1)

	promo, err := b.promos.FindByCode(ctx, "WELCOME10")
	require.NoError(t, err)
	assert.Equal(t, 1, promo.PerUserLimit)

	res, err := pincode.NewChecker(b.pincodes).Check(ctx, "560034")
	require.NoError(t, err)
	assert.True(t, res.Serviceable)

	client, err := auth.NewAuthenticator(b.keys, []byte(cfg.APIKeyPepper)).Authenticate(ctx, "local-key")
	require.NoError(t, err)
	assert.Equal(t, "bootstrap", client.ID)
}

func TestOpenMemory_SeedFileMissing(t *testing.T) {
	_, err := openMemory(zap.NewNop(), &Config{SeedFile: "does-not-exist.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load seed")
}
