// Package dispute tracks quality issues raised against delivered orders.
// Delivery opens a 90-minute settlement window; once it expires the order is
// auto-settled and no new issue may reference it.
package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/example/agrimarket/pkg/models"
	"github.com/example/agrimarket/pkg/notify"
	"github.com/example/agrimarket/pkg/repository"
	"github.com/example/agrimarket/pkg/store"
)

// SettlementWindow is how long after delivery a buyer may raise an issue.
const SettlementWindow = 90 * time.Minute

// Processed is rendered when the settlement window has fully elapsed.
const Processed = "PROCESSED"

var (
	// ErrIneligibleForDispute is returned when the order is not Delivered or
	// its settlement window has expired.
	ErrIneligibleForDispute = errors.New("order not eligible for dispute")
	// ErrAlreadyResolved guards against double-crediting a settled issue.
	ErrAlreadyResolved = errors.New("issue already resolved")
	// ErrInvalidTransition is returned for backward rep-track moves.
	ErrInvalidTransition = errors.New("invalid rep status transition")
	// ErrInvalidInput is returned for malformed payloads.
	ErrInvalidInput = errors.New("invalid input")
)

// Remaining returns how much of the settlement window is left at now.
// Non-positive means the order is fully settled.
func Remaining(deliveredAt, now time.Time) time.Duration {
	return deliveredAt.Add(SettlementWindow).Sub(now)
}

// Countdown renders the remaining window as HH:MM:SS, or PROCESSED once it
// has expired. Pure function of the two timestamps; callers re-evaluate it on
// every clock tick.
func Countdown(deliveredAt *time.Time, now time.Time) string {
	if deliveredAt == nil {
		return "00:00:00"
	}
	diff := Remaining(*deliveredAt, now)
	if diff <= 0 {
		return Processed
	}
	h := int(diff / time.Hour)
	m := int(diff % time.Hour / time.Minute)
	s := int(diff % time.Minute / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

type Engine struct {
	store    *store.Store
	logger   *zap.Logger
	notifier notify.Sender
	audit    *repository.MongoRepository
}

type Option func(*Engine)

func WithAudit(audit *repository.MongoRepository) Option {
	return func(e *Engine) { e.audit = audit }
}

func New(st *store.Store, logger *zap.Logger, notifier notify.Sender, opts ...Option) *Engine {
	e := &Engine{store: st, logger: logger, notifier: notifier}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReportIssue opens a dispute against a delivered order. Multiple issues per
// order are allowed; each report is independently gated by the same window.
func (e *Engine) ReportIssue(orderID, reporterID, description string) (models.OrderIssue, error) {
	if description == "" || reporterID == "" {
		return models.OrderIssue{}, fmt.Errorf("issue report: %w", ErrInvalidInput)
	}

	order, err := e.store.GetOrder(orderID)
	if err != nil {
		return models.OrderIssue{}, err
	}
	if order.Status != models.OrderDelivered || order.DeliveredAt == nil {
		return models.OrderIssue{}, fmt.Errorf("order %s is %s: %w", orderID, order.Status, ErrIneligibleForDispute)
	}
	if Remaining(*order.DeliveredAt, e.store.Now()) <= 0 {
		return models.OrderIssue{}, fmt.Errorf("order %s settlement window expired: %w", orderID, ErrIneligibleForDispute)
	}

	issue := models.OrderIssue{
		ID:             e.store.NewID(),
		OrderID:        orderID,
		ReporterID:     reporterID,
		Description:    description,
		ReportedAt:     e.store.Now(),
		SupplierStatus: models.SupplierPending,
		RepStatus:      models.RepUnseen,
	}
	e.store.InsertIssue(issue)

	e.logger.Info("Issue reported",
		zap.String("issue_id", issue.ID),
		zap.String("order_id", orderID))

	e.auditAction("report_issue", issue.ID, bson.M{"order_id": orderID})
	e.notifier.Send(notify.Message{
		RecipientID: order.SellerID,
		Channel:     notify.ChannelApp,
		Title:       "Quality issue reported",
		Body:        fmt.Sprintf("A buyer reported an issue on order %s.", orderID),
	})

	return issue, nil
}

// ResolveSupplier records the supplier's remedy. Resolving twice fails so a
// credit note cannot be applied twice.
func (e *Engine) ResolveSupplier(issueID string, action models.SupplierAction) (models.OrderIssue, error) {
	switch action {
	case models.ActionCreditNote, models.ActionReplace, models.ActionReject:
	default:
		return models.OrderIssue{}, fmt.Errorf("supplier action %q: %w", action, ErrInvalidInput)
	}

	issue, err := e.store.UpdateIssue(issueID, func(i *models.OrderIssue) error {
		if i.SupplierStatus == models.SupplierResolved {
			return fmt.Errorf("issue %s: %w", issueID, ErrAlreadyResolved)
		}
		i.SupplierStatus = models.SupplierResolved
		i.SupplierAction = action
		return nil
	})
	if err != nil {
		return models.OrderIssue{}, err
	}

	e.logger.Info("Issue resolved by supplier",
		zap.String("issue_id", issue.ID),
		zap.String("action", string(action)))

	e.auditAction("resolve_issue_supplier", issue.ID, bson.M{"action": string(action)})
	e.notifier.Send(notify.Message{
		RecipientID: issue.ReporterID,
		Channel:     notify.ChannelApp,
		Title:       "Issue resolved",
		Body:        fmt.Sprintf("Supplier decision on your report: %s.", action),
	})

	return issue, nil
}

// repRank orders the oversight track UNSEEN -> ACTIONING -> CLOSED.
var repRank = map[models.RepStatus]int{
	models.RepUnseen:    0,
	models.RepActioning: 1,
	models.RepClosed:    2,
}

// UpdateRepStatus advances the HQ oversight track and records the assignment.
// The track never moves backward.
func (e *Engine) UpdateRepStatus(issueID, repID string, status models.RepStatus) (models.OrderIssue, error) {
	rank, ok := repRank[status]
	if !ok {
		return models.OrderIssue{}, fmt.Errorf("rep status %q: %w", status, ErrInvalidInput)
	}

	issue, err := e.store.UpdateIssue(issueID, func(i *models.OrderIssue) error {
		if rank < repRank[i.RepStatus] {
			return fmt.Errorf("issue %s rep track is %s: %w", issueID, i.RepStatus, ErrInvalidTransition)
		}
		i.RepStatus = status
		if repID != "" {
			i.AssignedRepID = repID
		}
		return nil
	})
	if err != nil {
		return models.OrderIssue{}, err
	}

	e.auditAction("update_issue_rep_status", issue.ID, bson.M{"rep_status": string(status), "rep_id": repID})
	return issue, nil
}

// RepWorkload summarizes open and closed cases per assigned representative.
type RepWorkload struct {
	RepID     string `json:"rep_id"`
	Unseen    int    `json:"unseen"`
	Actioning int    `json:"actioning"`
	Closed    int    `json:"closed"`
}

// Workload reports case counts per rep for the oversight panel. Unassigned
// issues are grouped under an empty rep id.
func (e *Engine) Workload() []RepWorkload {
	byRep := make(map[string]*RepWorkload)
	var order []string
	for _, issue := range e.store.ListIssues() {
		w, ok := byRep[issue.AssignedRepID]
		if !ok {
			w = &RepWorkload{RepID: issue.AssignedRepID}
			byRep[issue.AssignedRepID] = w
			order = append(order, issue.AssignedRepID)
		}
		switch issue.RepStatus {
		case models.RepUnseen:
			w.Unseen++
		case models.RepActioning:
			w.Actioning++
		case models.RepClosed:
			w.Closed++
		}
	}
	out := make([]RepWorkload, 0, len(order))
	for _, repID := range order {
		out = append(out, *byRep[repID])
	}
	return out
}

func (e *Engine) auditAction(action, entityID string, data bson.M) {
	if e.audit == nil {
		return
	}
	log := &repository.AuditLog{
		Service:  "market-service",
		Action:   action,
		EntityID: entityID,
		Data:     data,
	}
	go func() {
		if err := e.audit.CreateAuditLog(context.Background(), log); err != nil {
			e.logger.Warn("Failed to write audit log", zap.String("entity_id", entityID), zap.Error(err))
		}
	}()
}
