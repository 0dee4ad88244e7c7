package models

import (
	"time"
)

type UserRole string

const (
	RoleWholesaler UserRole = "Wholesaler"
	RoleFarmer     UserRole = "Farmer"
	RoleBuyer      UserRole = "Buyer"
	RoleAdmin      UserRole = "Admin"
)

type User struct {
	ID                     string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name                   string    `gorm:"type:varchar(100)" json:"name"`
	BusinessName           string    `gorm:"type:varchar(100);not null" json:"business_name"`
	Role                   UserRole  `gorm:"type:varchar(20);not null" json:"role"`
	Mobile                 string    `gorm:"type:varchar(20)" json:"mobile"`
	ActiveSellingInterests []string  `gorm:"serializer:json;type:text" json:"active_selling_interests"`
	ActiveBuyingInterests  []string  `gorm:"serializer:json;type:text" json:"active_buying_interests"`
	ConnectionStatus       string    `gorm:"type:varchar(20)" json:"connection_status"`
	CreatedAt              time.Time `json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// Customer is a directory entry for a buyer business. ConnectedSupplierID is
// a weak reference used for directory grouping, not ownership.
type Customer struct {
	ID                  string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BusinessName        string `gorm:"type:varchar(100);not null" json:"business_name"`
	ConnectedSupplierID string `gorm:"type:varchar(36);index" json:"connected_supplier_id"`
	Location            string `gorm:"type:varchar(100)" json:"location"`
}

func (Customer) TableName() string {
	return "customers"
}

// Product comes from the external read-only catalog service.
type Product struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Unit              string  `json:"unit"`
	DefaultPricePerKg float64 `json:"default_price_per_kg"`
	CO2SavingsPerKg   float64 `json:"co2_savings_per_kg"`
}

type InventoryStatus string

const (
	InventoryAvailable InventoryStatus = "Available"
	InventoryReserved  InventoryStatus = "Reserved"
	InventorySold      InventoryStatus = "Sold"
)

type InventoryItem struct {
	ID                 string          `json:"id"`
	ProductID          string          `json:"product_id"`
	OwnerID            string          `json:"owner_id"`
	QuantityKg         float64         `json:"quantity_kg"`
	Status             InventoryStatus `json:"status"`
	UploadedAt         time.Time       `json:"uploaded_at"`
	DiscountAfterDays  int             `json:"discount_after_days,omitempty"`
	DiscountPricePerKg float64         `json:"discount_price_per_kg,omitempty"`
}

// AppNotification is an in-app message surfaced by the polling bell views.
type AppNotification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}
