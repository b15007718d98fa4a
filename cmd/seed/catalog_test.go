package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExampleCatalog(t *testing.T) {
	products, err := loadCatalog("catalog.example.yaml")
	require.NoError(t, err)
	require.Len(t, products, 3)

	valve := products[1]
	assert.Equal(t, "Ball Valve", valve.Name)
	assert.True(t, valve.Price.Equal(decimal.RequireFromString("180.5")))
	require.Len(t, valve.Variations, 2)
	assert.Equal(t, 10, valve.Variations.TotalQuantity())
}

func TestParseCatalogRejectsBadPrice(t *testing.T) {
	_, err := parseCatalog([]byte(`
products:
  - name: Elbow
    price: twelve
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Elbow")

	_, err = parseCatalog([]byte(`
products:
  - name: Elbow
    price: "-1"
`))
	require.Error(t, err)
}

func TestParseCatalogRequiresName(t *testing.T) {
	_, err := parseCatalog([]byte(`
products:
  - price: "10"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product 1")
}
