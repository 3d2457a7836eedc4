package store

import (
	"context"
	"testing"
	"time"

	"github.com/buildparts/hwcompat/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUpsertProductByURLUpdatesFields(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	id, err := m.UpsertProduct(ctx, &models.Product{
		Name: "MSI B550M PRO-VDH", Slug: "msi-b550m-pro-vdh", Category: "motherboard",
	})
	require.NoError(t, err)
	require.NoError(t, m.UpsertPrice(ctx, id, &models.PriceEntry{
		Retailer:   "startech",
		Price:      decimal.NewFromInt(11500),
		ProductURL: "https://example.test/msi-b550m",
		InStock:    true,
		SeenAt:     time.Now(),
	}))

	// Same listing URL under a differently slugged name. The match must
	// refresh the stored fields, same as the sqlite path.
	again, err := m.UpsertProduct(ctx, &models.Product{
		Name:      "MSI B550M PRO-VDH WIFI",
		Slug:      "msi-b550m-pro-vdh-wifi",
		Category:  "motherboard",
		Brand:     "MSI",
		SourceURL: "https://example.test/msi-b550m",
	})
	require.NoError(t, err)
	assert.Equal(t, id, again)

	stored, ok := m.products["msi-b550m-pro-vdh"]
	require.True(t, ok, "slug key stays as first seen")
	assert.Equal(t, "MSI B550M PRO-VDH WIFI", stored.Name)
	assert.Equal(t, "MSI", stored.Brand)
}
