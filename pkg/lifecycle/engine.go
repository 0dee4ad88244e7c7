// Package lifecycle implements the order state machine:
//
//	Pending -> Confirmed -> Ready for Delivery -> Shipped -> Delivered
//
// with Cancelled reachable from every non-terminal state. Transitions are
// one-directional; Delivered and Cancelled are terminal.
package lifecycle

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

var (
	// ErrInvalidTransition is returned when the requested state change is not
	// allowed from the order's current state.
	ErrInvalidTransition = errors.New("invalid order transition")
	// ErrMissingAssignment is returned when a required packer or driver is
	// not specified.
	ErrMissingAssignment = errors.New("missing assignment")
	// ErrInsufficientStock is returned when an instant purchase asks for more
	// than the lot holds.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidInput is returned for malformed operation payloads before any
	// mutation is attempted.
	ErrInvalidInput = errors.New("invalid input")
)

// forward is the transition table for the happy path. Cancellation is handled
// separately since it fans in from every non-terminal state.
var forward = map[models.OrderStatus]models.OrderStatus{
	models.OrderPending:          models.OrderConfirmed,
	models.OrderConfirmed:        models.OrderReadyForDelivery,
	models.OrderReadyForDelivery: models.OrderShipped,
	models.OrderShipped:          models.OrderDelivered,
}

// CanTransition reports whether an order may move between the two statuses.
// Cancellation fans in from every non-terminal state; everything else follows
// the forward table.
func CanTransition(from, to models.OrderStatus) bool {
	if to == models.OrderCancelled {
		return !from.Terminal()
	}
	return forward[from] == to
}

// payNowDiscount is applied to the subtotal when the buyer pays upfront.
const payNowDiscount = 0.10

type Engine struct {
	store    *store.Store
	logger   *zap.Logger
	notifier notify.Sender

	// Optional side-channels; nil-safe.
	cache   *repository.RedisRepository
	audit   *repository.MongoRepository
	archive *repository.OrderArchive

	logisticsFee float64
}

type Option func(*Engine)

func WithCache(cache *repository.RedisRepository) Option {
	return func(e *Engine) { e.cache = cache }
}

func WithAudit(audit *repository.MongoRepository) Option {
	return func(e *Engine) { e.audit = audit }
}

func WithArchive(archive *repository.OrderArchive) Option {
	return func(e *Engine) { e.archive = archive }
}

func WithLogisticsFee(fee float64) Option {
	return func(e *Engine) { e.logisticsFee = fee }
}

func New(st *store.Store, logger *zap.Logger, notifier notify.Sender, opts ...Option) *Engine {
	e := &Engine{
		store:        st,
		logger:       logger,
		notifier:     notifier,
		logisticsFee: 15.0,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Accept transitions a Pending order to Confirmed (seller acceptance).
func (e *Engine) Accept(orderID string) (models.Order, error) {
	return e.transition(orderID, models.OrderPending, "accept_order", func(o *models.Order) error {
		o.Status = models.OrderConfirmed
		return nil
	})
}

// Pack transitions a Confirmed order to Ready for Delivery and records the
// packer assignment.
func (e *Engine) Pack(orderID, packerID string) (models.Order, error) {
	if packerID == "" {
		return models.Order{}, fmt.Errorf("packer for order %s: %w", orderID, ErrMissingAssignment)
	}
	return e.transition(orderID, models.OrderConfirmed, "pack_order", func(o *models.Order) error {
		o.Status = models.OrderReadyForDelivery
		o.Logistics.PackerID = packerID
		return nil
	})
}

// Dispatch transitions a Ready for Delivery order to Shipped, stamping
// shipped_at and the driver assignment.
func (e *Engine) Dispatch(orderID, driverID string) (models.Order, error) {
	if driverID == "" {
		return models.Order{}, fmt.Errorf("driver for order %s: %w", orderID, ErrMissingAssignment)
	}
	return e.transition(orderID, models.OrderReadyForDelivery, "dispatch_order", func(o *models.Order) error {
		now := e.store.Now()
		o.Status = models.OrderShipped
		o.ShippedAt = &now
		o.Logistics.DriverID = driverID
		return nil
	})
}

// MarkDelivered transitions a Shipped order to Delivered. delivered_at anchors
// the 90-minute settlement window.
func (e *Engine) MarkDelivered(orderID string) (models.Order, error) {
	return e.transition(orderID, models.OrderShipped, "mark_delivered", func(o *models.Order) error {
		now := e.store.Now()
		o.Status = models.OrderDelivered
		o.DeliveredAt = &now
		return nil
	})
}

// Cancel moves any non-terminal order to Cancelled.
func (e *Engine) Cancel(orderID string) (models.Order, error) {
	cur, err := e.store.GetOrder(orderID)
	if err != nil {
		return models.Order{}, err
	}
	if cur.Status.Terminal() {
		return models.Order{}, fmt.Errorf("order %s is %s: %w", orderID, cur.Status, ErrInvalidTransition)
	}
	return e.transition(orderID, cur.Status, "cancel_order", func(o *models.Order) error {
		o.Status = models.OrderCancelled
		return nil
	})
}

// transition performs the optimistic read-check-write. A precondition miss at
// read time is an invalid transition; losing the race between read and write
// surfaces the store's stale-state error.
func (e *Engine) transition(orderID string, from models.OrderStatus, action string, mutate func(*models.Order) error) (models.Order, error) {
	cur, err := e.store.GetOrder(orderID)
	if err != nil {
		return models.Order{}, err
	}
	if cur.Status != from {
		return models.Order{}, fmt.Errorf("order %s is %s, not %s: %w", orderID, cur.Status, from, ErrInvalidTransition)
	}

	order, err := e.store.UpdateOrder(orderID, from, func(o *models.Order) error {
		if err := mutate(o); err != nil {
			return err
		}
		if !CanTransition(from, o.Status) {
			return fmt.Errorf("%s -> %s: %w", from, o.Status, ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	e.logger.Info("Order transitioned",
		zap.String("order_id", order.ID),
		zap.String("action", action),
		zap.String("status", string(order.Status)))

	e.afterWrite(&order, action)
	return order, nil
}

// InstantOrderInput is a pre-agreed direct purchase from listed inventory.
type InstantOrderInput struct {
	BuyerID     string
	InventoryID string
	QuantityKg  float64
	PricePerKg  float64
}

// CreateInstantOrder creates an order directly in Confirmed state, bypassing
// seller acceptance, and decrements the purchased lot. A lot bought out
// completely is marked Reserved so browse views stop offering it.
func (e *Engine) CreateInstantOrder(in InstantOrderInput) (models.Order, error) {
	if in.BuyerID == "" || in.QuantityKg <= 0 || in.PricePerKg < 0 {
		return models.Order{}, fmt.Errorf("instant order: %w", ErrInvalidInput)
	}

	item, err := e.store.UpdateInventory(in.InventoryID, func(item *models.InventoryItem) error {
		if item.Status != models.InventoryAvailable || item.QuantityKg <= 0 || in.QuantityKg > item.QuantityKg {
			return fmt.Errorf("lot %s has %.1fkg, requested %.1fkg: %w",
				item.ID, item.QuantityKg, in.QuantityKg, ErrInsufficientStock)
		}
		item.QuantityKg -= in.QuantityKg
		if item.QuantityKg == 0 {
			item.Status = models.InventoryReserved
		}
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	product, err := e.store.GetProduct(item.ProductID)
	if err != nil {
		product = models.Product{ID: item.ProductID, Name: "Produce"}
	}

	now := e.store.Now()
	order := models.Order{
		ID:       e.store.NewID(),
		BuyerID:  in.BuyerID,
		SellerID: item.OwnerID,
		Items: []models.OrderItem{{
			ProductID:   item.ProductID,
			ProductName: product.Name,
			QuantityKg:  in.QuantityKg,
			PricePerKg:  in.PricePerKg,
		}},
		TotalAmount:   in.QuantityKg*in.PricePerKg + e.logisticsFee,
		Status:        models.OrderConfirmed,
		Source:        models.SourceMarketplace,
		PaymentMethod: models.PayInvoice,
		Date:          now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	e.store.InsertOrder(order)

	e.logger.Info("Instant order created",
		zap.String("order_id", order.ID),
		zap.String("buyer_id", order.BuyerID),
		zap.Float64("total", order.TotalAmount))

	e.afterWrite(&order, "create_instant_order")
	e.notifier.Send(notify.Message{
		RecipientID: order.SellerID,
		Channel:     notify.ChannelApp,
		Title:       "Instant purchase",
		Body:        fmt.Sprintf("%.1fkg %s sold for $%.2f.", in.QuantityKg, product.Name, order.TotalAmount),
	})

	return order, nil
}

// FullOrderInput is a marketplace checkout awaiting seller acceptance.
type FullOrderInput struct {
	BuyerID       string
	SellerID      string
	Items         []models.OrderItem
	PaymentMethod models.PaymentMethod
	Logistics     models.Logistics
	Source        models.OrderSource
}

// CreateFullOrder creates an order in Pending state. Paying upfront earns a
// 10% discount on the subtotal.
func (e *Engine) CreateFullOrder(in FullOrderInput) (models.Order, error) {
	if in.BuyerID == "" || in.SellerID == "" || len(in.Items) == 0 {
		return models.Order{}, fmt.Errorf("full order: %w", ErrInvalidInput)
	}
	var subtotal float64
	for _, item := range in.Items {
		if item.QuantityKg <= 0 || item.PricePerKg < 0 {
			return models.Order{}, fmt.Errorf("full order item %s: %w", item.ProductID, ErrInvalidInput)
		}
		subtotal += item.QuantityKg * item.PricePerKg
	}

	total := subtotal
	if in.PaymentMethod == models.PayNow {
		total = subtotal * (1 - payNowDiscount)
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = models.PayInvoice
	}
	if in.Source == "" {
		in.Source = models.SourceMarketplace
	}

	now := e.store.Now()
	order := models.Order{
		ID:            e.store.NewID(),
		BuyerID:       in.BuyerID,
		SellerID:      in.SellerID,
		Items:         in.Items,
		TotalAmount:   total,
		Status:        models.OrderPending,
		Source:        in.Source,
		PaymentMethod: in.PaymentMethod,
		Logistics:     in.Logistics,
		Date:          now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	e.store.InsertOrder(order)

	e.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("buyer_id", order.BuyerID),
		zap.String("seller_id", order.SellerID),
		zap.Float64("total", order.TotalAmount))

	e.afterWrite(&order, "create_full_order")
	e.notifier.Send(notify.Message{
		RecipientID: order.SellerID,
		Channel:     notify.ChannelApp,
		Title:       "New order awaiting acceptance",
		Body:        fmt.Sprintf("Order %s for $%.2f needs your confirmation.", order.ID, order.TotalAmount),
	})

	return order, nil
}

// afterWrite pushes the snapshot to the side-channels. All of them are
// best-effort: failures are logged and never surfaced.
func (e *Engine) afterWrite(order *models.Order, action string) {
	if e.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := e.cache.CacheOrder(ctx, order); err != nil {
			e.logger.Warn("Failed to cache order", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	if e.audit != nil {
		log := &repository.AuditLog{
			Service:  "market-service",
			Action:   action,
			EntityID: order.ID,
			Data: bson.M{
				"buyer_id":  order.BuyerID,
				"seller_id": order.SellerID,
				"status":    string(order.Status),
				"total":     order.TotalAmount,
			},
		}
		go func() {
			if err := e.audit.CreateAuditLog(context.Background(), log); err != nil {
				e.logger.Warn("Failed to write audit log", zap.String("order_id", log.EntityID), zap.Error(err))
			}
		}()
	}
	if e.archive != nil && order.Status.Terminal() {
		archived := *order
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.archive.ArchiveOrder(ctx, &archived); err != nil {
				e.logger.Warn("Failed to archive order", zap.String("order_id", archived.ID), zap.Error(err))
			}
		}()
	}
}
