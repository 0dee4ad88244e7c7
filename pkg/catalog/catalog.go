// Package catalog loads the external read-only catalog (products, users,
// customers, inventory) into the store at startup. The catalog is supplied by
// an out-of-scope directory service as a JSON fixture.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/example/agrimarket/pkg/models"
	"github.com/example/agrimarket/pkg/store"
)

type Snapshot struct {
	Products  []models.Product       `json:"products"`
	Users     []models.User          `json:"users"`
	Customers []models.Customer      `json:"customers"`
	Inventory []models.InventoryItem `json:"inventory"`
}

// Load reads a catalog snapshot file and seeds the store. Inventory lots
// without a status default to Available.
func Load(path string, st *store.Store) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	Seed(&snap, st)
	return &snap, nil
}

// Seed writes a snapshot into the store.
func Seed(snap *Snapshot, st *store.Store) {
	for _, p := range snap.Products {
		st.PutProduct(p)
	}
	for _, u := range snap.Users {
		st.PutUser(u)
	}
	for _, c := range snap.Customers {
		st.PutCustomer(c)
	}
	for _, item := range snap.Inventory {
		if item.Status == "" {
			item.Status = models.InventoryAvailable
		}
		st.PutInventory(item)
	}
}
