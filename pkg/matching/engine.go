// Package matching pairs selling interests with buying interests across the
// user directory. Matching is recomputed on every call from the live store;
// nothing is persisted.
//
// Interest tags are compared case-sensitively and exactly. Any fuzzy or
// case-insensitive matching would be a normalization step applied to the tags
// before intersection, not a change here.
package matching

import (
	"sort"

	"go.uber.org/zap"

	"github.com/example/agrimarket/pkg/models"
	"github.com/example/agrimarket/pkg/store"
)

// SupplyMatch is a counterparty selling something the requester wants to buy,
// together with their currently available lots.
type SupplyMatch struct {
	Supplier        models.User            `json:"supplier"`
	SharedInterests []string               `json:"shared_interests"`
	Inventory       []models.InventoryItem `json:"inventory,omitempty"`
}

// DemandMatch is a counterparty wanting to buy something the requester sells.
// Product carries a single representative tag for display, not the full
// intersection.
type DemandMatch struct {
	BuyerID      string `json:"buyer_id"`
	BusinessName string `json:"business_name"`
	Product      string `json:"product"`
	Qty          string `json:"qty"`
	Priority     string `json:"priority"`
}

type Matches struct {
	Suppliers []SupplyMatch `json:"suppliers"`
	Buyers    []DemandMatch `json:"buyers"`
}

type Engine struct {
	store  *store.Store
	logger *zap.Logger
}

func New(st *store.Store, logger *zap.Logger) *Engine {
	return &Engine{store: st, logger: logger}
}

// Matches computes both directions for the requester: who can supply what
// they want, and who wants what they sell. The requester is excluded; only
// farmers and wholesalers are considered counterparties.
func (e *Engine) Matches(userID string) (Matches, error) {
	requester, err := e.store.GetUser(userID)
	if err != nil {
		return Matches{}, err
	}

	var out Matches
	for _, u := range e.store.ListUsers() {
		if u.ID == requester.ID {
			continue
		}
		if u.Role != models.RoleFarmer && u.Role != models.RoleWholesaler {
			continue
		}

		if shared := intersect(u.ActiveSellingInterests, requester.ActiveBuyingInterests); len(shared) > 0 {
			match := SupplyMatch{Supplier: u, SharedInterests: shared}
			for _, item := range e.store.ListInventoryByOwner(u.ID) {
				if item.Status == models.InventoryAvailable {
					match.Inventory = append(match.Inventory, item)
				}
			}
			out.Suppliers = append(out.Suppliers, match)
		}

		if shared := intersect(u.ActiveBuyingInterests, requester.ActiveSellingInterests); len(shared) > 0 {
			out.Buyers = append(out.Buyers, DemandMatch{
				BuyerID:      u.ID,
				BusinessName: u.BusinessName,
				Product:      shared[0],
				Qty:          "Negotiable",
				Priority:     "HIGH",
			})
		}
	}

	// Strongest overlap first; equal counts keep directory order.
	sort.SliceStable(out.Suppliers, func(i, j int) bool {
		return len(out.Suppliers[i].SharedInterests) > len(out.Suppliers[j].SharedInterests)
	})

	return out, nil
}

// intersect returns the elements of a that also appear in b, in a's order.
func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	var shared []string
	for _, s := range a {
		if _, ok := set[s]; ok {
			shared = append(shared, s)
		}
	}
	return shared
}
