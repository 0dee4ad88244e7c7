package matching_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/agrimarket/pkg/matching"
	"github.com/example/agrimarket/pkg/models"
	"github.com/example/agrimarket/pkg/store"
)

func newTestEngine(t *testing.T) (*matching.Engine, *store.Store) {
	t.Helper()
	st := store.New()
	return matching.New(st, zap.NewNop()), st
}

func seedUser(st *store.Store, id string, role models.UserRole, selling, buying []string, seq int) {
	st.PutUser(models.User{
		ID:                     id,
		BusinessName:           "Biz " + id,
		Role:                   role,
		ActiveSellingInterests: selling,
		ActiveBuyingInterests:  buying,
		CreatedAt:              time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Minute),
	})
}

func TestBidirectionalMatch(t *testing.T) {
	eng, st := newTestEngine(t)
	seedUser(st, "A", models.RoleWholesaler, []string{"Tomatoes", "Onions"}, nil, 0)
	seedUser(st, "B", models.RoleFarmer, nil, []string{"Onions", "Carrots"}, 1)

	forA, err := eng.Matches("A")
	require.NoError(t, err)
	require.Len(t, forA.Buyers, 1, "B wants what A sells")
	assert.Equal(t, "B", forA.Buyers[0].BuyerID)
	assert.Equal(t, "Onions", forA.Buyers[0].Product, "carries the shared interest tag")
	assert.Empty(t, forA.Suppliers)

	forB, err := eng.Matches("B")
	require.NoError(t, err)
	require.Len(t, forB.Suppliers, 1, "A sells what B wants")
	assert.Equal(t, "A", forB.Suppliers[0].Supplier.ID)
	assert.Equal(t, []string{"Onions"}, forB.Suppliers[0].SharedInterests)
	assert.Empty(t, forB.Buyers)
}

func TestMatchExcludesRequester(t *testing.T) {
	eng, st := newTestEngine(t)
	// Sells and buys the same tag; must not match itself.
	seedUser(st, "A", models.RoleFarmer, []string{"Kale"}, []string{"Kale"}, 0)

	got, err := eng.Matches("A")
	require.NoError(t, err)
	assert.Empty(t, got.Suppliers)
	assert.Empty(t, got.Buyers)
}

func TestMatchSkipsNonTradingRoles(t *testing.T) {
	eng, st := newTestEngine(t)
	seedUser(st, "A", models.RoleWholesaler, nil, []string{"Kale"}, 0)
	seedUser(st, "ops", models.RoleAdmin, []string{"Kale"}, nil, 1)
	seedUser(st, "shop", models.RoleBuyer, []string{"Kale"}, nil, 2)

	got, err := eng.Matches("A")
	require.NoError(t, err)
	assert.Empty(t, got.Suppliers, "admins and plain buyers are not supply counterparties")
}

func TestMatchIsCaseSensitive(t *testing.T) {
	eng, st := newTestEngine(t)
	seedUser(st, "A", models.RoleWholesaler, nil, []string{"Kale"}, 0)
	seedUser(st, "B", models.RoleFarmer, []string{"kale"}, nil, 1)

	got, err := eng.Matches("A")
	require.NoError(t, err)
	assert.Empty(t, got.Suppliers, "tags are compared exactly")
}

func TestSupplierOrdering(t *testing.T) {
	eng, st := newTestEngine(t)
	seedUser(st, "R", models.RoleWholesaler, nil, []string{"Tomatoes", "Onions", "Kale"}, 0)
	seedUser(st, "one", models.RoleFarmer, []string{"Kale"}, nil, 1)
	seedUser(st, "two", models.RoleFarmer, []string{"Tomatoes", "Onions"}, nil, 2)
	seedUser(st, "tie", models.RoleFarmer, []string{"Onions"}, nil, 3)

	got, err := eng.Matches("R")
	require.NoError(t, err)
	require.Len(t, got.Suppliers, 3)

	assert.Equal(t, "two", got.Suppliers[0].Supplier.ID, "largest overlap first")
	// Equal overlap keeps directory order.
	assert.Equal(t, "one", got.Suppliers[1].Supplier.ID)
	assert.Equal(t, "tie", got.Suppliers[2].Supplier.ID)
}

func TestSupplierMatchCarriesAvailableInventory(t *testing.T) {
	eng, st := newTestEngine(t)
	seedUser(st, "R", models.RoleWholesaler, nil, []string{"Tomatoes"}, 0)
	seedUser(st, "S", models.RoleFarmer, []string{"Tomatoes"}, nil, 1)

	st.PutInventory(models.InventoryItem{ID: "lot-a", ProductID: "p1", OwnerID: "S", QuantityKg: 40, Status: models.InventoryAvailable})
	st.PutInventory(models.InventoryItem{ID: "lot-b", ProductID: "p1", OwnerID: "S", QuantityKg: 10, Status: models.InventoryReserved})

	got, err := eng.Matches("R")
	require.NoError(t, err)
	require.Len(t, got.Suppliers, 1)
	require.Len(t, got.Suppliers[0].Inventory, 1, "reserved lots stay hidden")
	assert.Equal(t, "lot-a", got.Suppliers[0].Inventory[0].ID)
}

func TestMatchUnknownUser(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.Matches("ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}
