package seed

import (
	"context"
	"testing"

	"marketplace-core/internal/repository/memory"
	productrepo "marketplace-core/internal/repository/product"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	repos := Repos{Stores: st.Stores(), Products: st.Products(), Coupons: st.Coupons()}

	first, err := Apply(ctx, repos, nil)
	require.NoError(t, err)
	second, err := Apply(ctx, repos, nil)
	require.NoError(t, err)

	assert.Equal(t, first.StoreID, second.StoreID)
	assert.Equal(t, first.ProductIDs, second.ProductIDs)

	products, err := st.Products().List(ctx, productrepo.Filter{StoreIDs: []string{first.StoreID}})
	require.NoError(t, err)
	assert.Len(t, products, 3)

	c, err := st.Coupons().GetByCode(ctx, "welcome10")
	require.NoError(t, err)
	assert.Equal(t, first.StoreID, c.StoreID)
	assert.Zero(t, c.UsedCount)
}
