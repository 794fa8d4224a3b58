package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaidashi/storefront-api/internal/repository/memory"
	"github.com/vaidashi/storefront-api/internal/service"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

func TestCatalogueIsValid(t *testing.T) {
	skus := map[string]bool{}
	for _, in := range Products() {
		require.NoError(t, in.Validate(), in.Name)
		assert.False(t, skus[in.SKU], "duplicate sku %s", in.SKU)
		skus[in.SKU] = true
	}
	assert.Len(t, skus, 8)
}

func TestRunIsIdempotent(t *testing.T) {
	store := memory.NewStore(logger.NewNop())
	products := service.NewProductService(store, nil, logger.NewNop())

	first, err := Run(context.Background(), products, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 8}, first)

	second, err := Run(context.Background(), products, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 8}, second)

	p, err := products.GetProductBySKU(context.Background(), "SKU-APL-IP15PM")
	require.NoError(t, err)
	assert.Equal(t, 50, p.Stock)
	assert.Equal(t, "1099", p.EffectivePrice().String())
}
