package models

import (
	"time"
)

// SupplierIssueStatus is the supplier acknowledgment track of an order issue.
type SupplierIssueStatus string

const (
	SupplierPending  SupplierIssueStatus = "PENDING"
	SupplierResolved SupplierIssueStatus = "RESOLVED"
)

// SupplierAction is the remedy chosen when the supplier resolves an issue.
type SupplierAction string

const (
	ActionCreditNote SupplierAction = "credit-note"
	ActionReplace    SupplierAction = "replace"
	ActionReject     SupplierAction = "reject"
)

// RepStatus is the HQ representative oversight track. It does not gate
// settlement; it feeds workload reporting.
type RepStatus string

const (
	RepUnseen    RepStatus = "UNSEEN"
	RepActioning RepStatus = "ACTIONING"
	RepClosed    RepStatus = "CLOSED"
)

// OrderIssue is a quality dispute raised against a delivered order while its
// settlement window is still open.
type OrderIssue struct {
	ID             string              `json:"id"`
	OrderID        string              `json:"order_id"`
	ReporterID     string              `json:"reporter_id"`
	Description    string              `json:"description"`
	ReportedAt     time.Time           `json:"reported_at"`
	SupplierStatus SupplierIssueStatus `json:"supplier_status"`
	SupplierAction SupplierAction      `json:"supplier_action,omitempty"`
	RepStatus      RepStatus           `json:"rep_status"`
	AssignedRepID  string              `json:"assigned_rep_id,omitempty"`
}

// Settled reports whether the dispute is fully settled. Only the supplier
// track gates settlement.
func (i OrderIssue) Settled() bool {
	return i.SupplierStatus == SupplierResolved
}
