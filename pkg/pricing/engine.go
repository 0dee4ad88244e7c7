// Package pricing handles supplier responses to admin-assigned price targets
// and the win-probability decision aid shown next to each offer.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/lithammer/shortuuid/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/example/agrimarket/pkg/models"
	"github.com/example/agrimarket/pkg/notify"
	"github.com/example/agrimarket/pkg/repository"
	"github.com/example/agrimarket/pkg/store"
)

var (
	// ErrAlreadySubmitted is returned when a price request was already
	// submitted; the frozen item list never mutates again.
	ErrAlreadySubmitted = errors.New("price request already submitted")
	// ErrInvalidInput is returned for malformed responses.
	ErrInvalidInput = errors.New("invalid input")
)

type WinLabel string

const (
	WinOptimal  WinLabel = "OPTIMAL"
	WinHigh     WinLabel = "HIGH"
	WinModerate WinLabel = "MODERATE"
	WinLow      WinLabel = "LOW"
	WinCritical WinLabel = "CRITICAL"
)

// Probability is the deterministic likelihood a buyer accepts an offer
// relative to the target price.
type Probability struct {
	Percent int      `json:"percent"`
	Label   WinLabel `json:"label"`
}

// WinProbability scores an offered price against the target. Offering at or
// below target is optimal; above target the score falls off in bands of the
// percentage overshoot.
func WinProbability(target, offered float64) Probability {
	if offered <= target {
		return Probability{Percent: 98, Label: WinOptimal}
	}
	diffPercent := (offered - target) / target * 100
	switch {
	case diffPercent < 5:
		return Probability{Percent: 85, Label: WinHigh}
	case diffPercent < 12:
		return Probability{Percent: 60, Label: WinModerate}
	case diffPercent < 20:
		return Probability{Percent: 35, Label: WinLow}
	default:
		return Probability{Percent: 12, Label: WinCritical}
	}
}

type Engine struct {
	store    *store.Store
	logger   *zap.Logger
	notifier notify.Sender
	audit    *repository.MongoRepository

	// adminID receives submission notifications (the HQ party).
	adminID string
	// linkBase prefixes generated deep links.
	linkBase string
}

type Option func(*Engine)

func WithAudit(audit *repository.MongoRepository) Option {
	return func(e *Engine) { e.audit = audit }
}

func WithAdminID(id string) Option {
	return func(e *Engine) { e.adminID = id }
}

func WithLinkBase(base string) Option {
	return func(e *Engine) { e.linkBase = base }
}

func New(st *store.Store, logger *zap.Logger, notifier notify.Sender, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		logger:   logger,
		notifier: notifier,
		adminID:  "hq",
		linkBase: "https://market.example.com/l",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ItemResponse is the supplier's per-line decision: match the target exactly
// or override with a custom price.
type ItemResponse struct {
	ProductID        string  `json:"product_id"`
	IsMatchingTarget bool    `json:"is_matching_target"`
	OfferedPrice     float64 `json:"offered_price"`
}

// SubmitResponse records the supplier's offer for every line item and freezes
// the request. Line items without an explicit response default to matching
// the target. Exactly one notification goes to HQ per successful submission.
func (e *Engine) SubmitResponse(requestID string, responses []ItemResponse) (models.SupplierPriceRequest, error) {
	byProduct := make(map[string]ItemResponse, len(responses))
	for _, r := range responses {
		if !r.IsMatchingTarget && r.OfferedPrice < 0 {
			return models.SupplierPriceRequest{}, fmt.Errorf("offered price for %s: %w", r.ProductID, ErrInvalidInput)
		}
		byProduct[r.ProductID] = r
	}

	req, err := e.store.UpdatePriceRequest(requestID, func(r *models.SupplierPriceRequest) error {
		if r.Status == models.PriceRequestSubmitted {
			return fmt.Errorf("request %s: %w", requestID, ErrAlreadySubmitted)
		}
		for i := range r.Items {
			item := &r.Items[i]
			resp, ok := byProduct[item.ProductID]
			if !ok {
				resp = ItemResponse{IsMatchingTarget: true}
			}
			item.IsMatchingTarget = resp.IsMatchingTarget
			if resp.IsMatchingTarget {
				item.OfferedPrice = item.TargetPrice
			} else {
				item.OfferedPrice = resp.OfferedPrice
			}
		}
		r.Status = models.PriceRequestSubmitted
		now := e.store.Now()
		r.SubmittedAt = &now
		return nil
	})
	if err != nil {
		return models.SupplierPriceRequest{}, err
	}

	e.logger.Info("Price response submitted",
		zap.String("request_id", req.ID),
		zap.String("supplier_id", req.SupplierID))

	supplierName := req.SupplierID
	if supplier, err := e.store.GetUser(req.SupplierID); err == nil {
		supplierName = supplier.BusinessName
	}
	e.notifier.Send(notify.Message{
		RecipientID: e.adminID,
		Channel:     notify.ChannelApp,
		Title:       "Price response received",
		Body:        fmt.Sprintf("%s has responded to the %s audit.", supplierName, req.CustomerContext),
	})

	if e.audit != nil {
		log := &repository.AuditLog{
			Service:  "market-service",
			Action:   "submit_price_response",
			EntityID: req.ID,
			Data:     bson.M{"supplier_id": req.SupplierID},
		}
		go func() {
			if err := e.audit.CreateAuditLog(context.Background(), log); err != nil {
				e.logger.Warn("Failed to write audit log", zap.String("entity_id", log.EntityID), zap.Error(err))
			}
		}()
	}

	return req, nil
}

// Offer is the payload of a photo price offer sent to a supplier by SMS.
// Transmission is external; the core only formats the message and link.
type Offer struct {
	ProductName   string
	PricePerKg    float64
	MinOrderKg    float64
	LogisticsCost float64
	Description   string
}

// NewDeepLink mints a shareable link token of the given kind.
func (e *Engine) NewDeepLink(kind string) string {
	return fmt.Sprintf("%s/%s/%s", e.linkBase, kind, shortuuid.New())
}

// FormatOfferSMS renders the offer into the SMS body handed to the external
// dispatcher, with a quote deep link appended.
func (e *Engine) FormatOfferSMS(offer Offer) string {
	link := e.NewDeepLink("quote")
	return fmt.Sprintf("PZ OFFER: %s\nPrice: $%.2f/kg\nMin Order: %.0fkg\nLogistics: $%.2f\nDescription: %s\n\nView product photo & accept offer here: %s",
		offer.ProductName, offer.PricePerKg, offer.MinOrderKg, offer.LogisticsCost, offer.Description, link)
}

// SendOffer formats an offer and hands it to the notification sender on the
// SMS channel. Delivery is fire-and-forget.
func (e *Engine) SendOffer(recipientID string, offer Offer) string {
	body := e.FormatOfferSMS(offer)
	e.notifier.Send(notify.Message{
		RecipientID: recipientID,
		Channel:     notify.ChannelSMS,
		Title:       "Price offer",
		Body:        body,
	})
	return body
}
