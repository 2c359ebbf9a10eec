package postgres

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairRowKeepsRepairWithMalformedLists(t *testing.T) {
	row := repairRow{
		ID:              "rep-1",
		ShopID:          "main-shop",
		TicketNumber:    "T-100",
		Status:          "received",
		Parts:           []byte(`{"oops"`),
		AdditionalItems: []byte(`[{"name":"Glue","quantity":1}`),
		CreatedAt:       time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC),
	}

	repair := row.toDomain(zerolog.Nop())

	assert.Equal(t, "rep-1", repair.ID)
	assert.Equal(t, "T-100", repair.TicketNumber)
	require.NotNil(t, repair.Parts)
	assert.Empty(t, repair.Parts)
	require.NotNil(t, repair.AdditionalItems)
	assert.Empty(t, repair.AdditionalItems)
}

func TestRepairRowDecodesParts(t *testing.T) {
	row := repairRow{ID: "rep-2", Parts: []byte(`[{"name":"Screen","quantity":1,"unit_cost":"90000"}]`)}

	repair := row.toDomain(zerolog.Nop())

	require.Len(t, repair.Parts, 1)
	assert.Equal(t, "Screen", repair.Parts[0].Name)
	assert.Empty(t, repair.AdditionalItems)
}

func TestPurchaseRowKeepsPurchaseWithMalformedItems(t *testing.T) {
	row := purchaseRow{ID: "pur-1", ShopID: "main-shop", Supplier: "Power Plus", Items: []byte("not json")}

	p := row.toDomain(zerolog.Nop())

	assert.Equal(t, "pur-1", p.ID)
	assert.Equal(t, "Power Plus", p.Supplier)
	require.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
}

func TestPurchaseRowNullItemsReadAsEmpty(t *testing.T) {
	p := purchaseRow{ID: "pur-2", Items: []byte("null")}.toDomain(zerolog.Nop())
	require.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
}
