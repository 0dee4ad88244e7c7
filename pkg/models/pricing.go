package models

import (
	"time"
)

type PriceRequestStatus string

const (
	PriceRequestPending   PriceRequestStatus = "PENDING"
	PriceRequestSubmitted PriceRequestStatus = "SUBMITTED"
)

// SupplierPriceRequest is an admin-assigned price audit a supplier responds
// to. Once submitted the item list is frozen.
type SupplierPriceRequest struct {
	ID               string             `json:"id"`
	SupplierID       string             `json:"supplier_id"`
	CustomerContext  string             `json:"customer_context"`
	CustomerLocation string             `json:"customer_location"`
	Status           PriceRequestStatus `json:"status"`
	Items            []PriceRequestItem `json:"items"`
	SubmittedAt      *time.Time         `json:"submitted_at,omitempty"`
}

type PriceRequestItem struct {
	ProductID        string  `json:"product_id"`
	ProductName      string  `json:"product_name"`
	Qty              float64 `json:"qty"`
	InvoicePrice     float64 `json:"invoice_price"`
	TargetPrice      float64 `json:"target_price"`
	IsMatchingTarget bool    `json:"is_matching_target"`
	OfferedPrice     float64 `json:"offered_price"`
}
