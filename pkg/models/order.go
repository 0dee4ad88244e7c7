package models

import (
	"time"
)

// OrderStatus is the closed set of order states. The wire values match what
// the dashboard UIs render, including the spaced "Ready for Delivery".
type OrderStatus string

const (
	OrderPending          OrderStatus = "Pending"
	OrderConfirmed        OrderStatus = "Confirmed"
	OrderReadyForDelivery OrderStatus = "Ready for Delivery"
	OrderShipped          OrderStatus = "Shipped"
	OrderDelivered        OrderStatus = "Delivered"
	OrderCancelled        OrderStatus = "Cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// OrderSource distinguishes marketplace checkouts from direct customer orders.
type OrderSource string

const (
	SourceMarketplace    OrderSource = "Marketplace"
	SourceCustomerDirect OrderSource = "CustomerDirect"
)

// PaymentMethod values accepted at checkout.
type PaymentMethod string

const (
	PayNow     PaymentMethod = "pay_now"
	PayInvoice PaymentMethod = "invoice"
)

type Order struct {
	ID            string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BuyerID       string        `gorm:"type:varchar(36);not null;index" json:"buyer_id"`
	SellerID      string        `gorm:"type:varchar(36);not null;index" json:"seller_id"`
	Items         []OrderItem   `gorm:"serializer:json;type:text" json:"items"`
	TotalAmount   float64       `gorm:"type:decimal(10,2)" json:"total_amount"`
	Status        OrderStatus   `gorm:"type:varchar(20);default:'Pending'" json:"status"`
	Source        OrderSource   `gorm:"type:varchar(20)" json:"source"`
	PaymentMethod PaymentMethod `gorm:"type:varchar(20)" json:"payment_method"`
	Logistics     Logistics     `gorm:"serializer:json;type:text" json:"logistics"`
	Date          time.Time     `json:"date"`
	ShippedAt     *time.Time    `json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time    `json:"delivered_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	QuantityKg  float64 `json:"quantity_kg"`
	PricePerKg  float64 `json:"price_per_kg"`
}

// Logistics carries delivery assignment data. PackerID is set when the order
// goes ready for delivery, DriverID when it ships.
type Logistics struct {
	Address      string `json:"address,omitempty"`
	DeliveryTime string `json:"delivery_time,omitempty"`
	PackerID     string `json:"packer_id,omitempty"`
	DriverID     string `json:"driver_id,omitempty"`
}
