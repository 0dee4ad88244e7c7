package pricing_test

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/agrimarket/pkg/models"
	"github.com/example/agrimarket/pkg/notify"
	"github.com/example/agrimarket/pkg/pricing"
	"github.com/example/agrimarket/pkg/store"
)

func TestWinProbability(t *testing.T) {
	tests := []struct {
		name    string
		target  float64
		offered float64
		percent int
		label   pricing.WinLabel
	}{
		{"at target", 10, 10, 98, pricing.WinOptimal},
		{"below target", 10, 8.5, 98, pricing.WinOptimal},
		{"3 percent over", 10, 10.3, 85, pricing.WinHigh},
		{"11 percent over", 10, 11.1, 60, pricing.WinModerate},
		{"15 percent over", 10, 11.5, 35, pricing.WinLow},
		{"30 percent over", 10, 13, 12, pricing.WinCritical},
		{"just under 5 band", 10, 10.49, 85, pricing.WinHigh},
		{"13 percent over", 10, 11.3, 35, pricing.WinLow},
		{"exactly 20 percent", 10, 12, 12, pricing.WinCritical},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := pricing.WinProbability(tc.target, tc.offered)
			assert.Equal(t, tc.percent, got.Percent)
			assert.Equal(t, tc.label, got.Label)
		})
	}
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recordingSender) Send(m notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func newTestEngine(t *testing.T) (*pricing.Engine, *store.Store, *recordingSender) {
	t.Helper()
	st := store.New(store.WithClock(func() time.Time {
		return time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	}))
	sender := &recordingSender{}
	eng := pricing.New(st, zap.NewNop(), sender, pricing.WithAdminID("hq"))
	return eng, st, sender
}

func seedRequest(st *store.Store) models.SupplierPriceRequest {
	req := models.SupplierPriceRequest{
		ID:              st.NewID(),
		SupplierID:      "supplier-1",
		CustomerContext: "Corner Grocer",
		Status:          models.PriceRequestPending,
		Items: []models.PriceRequestItem{
			{ProductID: "p1", ProductName: "Tomatoes", Qty: 100, InvoicePrice: 5.2, TargetPrice: 4.8},
			{ProductID: "p2", ProductName: "Onions", Qty: 60, InvoicePrice: 2.6, TargetPrice: 2.3},
		},
	}
	st.InsertPriceRequest(req)
	st.PutUser(models.User{ID: "supplier-1", BusinessName: "Scalzi Produce", Role: models.RoleWholesaler})
	return req
}

func TestSubmitResponse(t *testing.T) {
	eng, st, sender := newTestEngine(t)
	req := seedRequest(st)

	got, err := eng.SubmitResponse(req.ID, []pricing.ItemResponse{
		{ProductID: "p1", IsMatchingTarget: true, OfferedPrice: 99}, // ignored when matching
		{ProductID: "p2", IsMatchingTarget: false, OfferedPrice: 2.5},
	})
	require.NoError(t, err)

	assert.Equal(t, models.PriceRequestSubmitted, got.Status)
	require.NotNil(t, got.SubmittedAt)

	assert.True(t, got.Items[0].IsMatchingTarget)
	assert.Equal(t, 4.8, got.Items[0].OfferedPrice, "matching forces offered price to target")
	assert.False(t, got.Items[1].IsMatchingTarget)
	assert.Equal(t, 2.5, got.Items[1].OfferedPrice)

	require.Len(t, sender.msgs, 1, "exactly one notification per submission")
	assert.Equal(t, "hq", sender.msgs[0].RecipientID)
	assert.Contains(t, sender.msgs[0].Body, "Scalzi Produce")
	assert.Contains(t, sender.msgs[0].Body, "Corner Grocer")
}

func TestSubmitResponseDefaultsToTarget(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	req := seedRequest(st)

	got, err := eng.SubmitResponse(req.ID, nil)
	require.NoError(t, err)

	for _, item := range got.Items {
		assert.True(t, item.IsMatchingTarget)
		assert.Equal(t, item.TargetPrice, item.OfferedPrice)
	}
}

func TestSubmitResponseTwice(t *testing.T) {
	eng, st, sender := newTestEngine(t)
	req := seedRequest(st)

	first, err := eng.SubmitResponse(req.ID, []pricing.ItemResponse{
		{ProductID: "p1", IsMatchingTarget: false, OfferedPrice: 5.0},
	})
	require.NoError(t, err)

	_, err = eng.SubmitResponse(req.ID, []pricing.ItemResponse{
		{ProductID: "p1", IsMatchingTarget: false, OfferedPrice: 1.0},
	})
	require.ErrorIs(t, err, pricing.ErrAlreadySubmitted)

	got, err := st.GetPriceRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Items, got.Items, "submitted item list is frozen")

	assert.Len(t, sender.msgs, 1, "failed resubmission must not notify")
}

func TestSubmitResponseNegativePrice(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	req := seedRequest(st)

	_, err := eng.SubmitResponse(req.ID, []pricing.ItemResponse{
		{ProductID: "p1", IsMatchingTarget: false, OfferedPrice: -0.5},
	})
	require.ErrorIs(t, err, pricing.ErrInvalidInput)

	got, err := st.GetPriceRequest(req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PriceRequestPending, got.Status, "validation failure must not mutate")
}

func TestSubmitResponseUnknownRequest(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	_, err := eng.SubmitResponse("missing", nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestFormatOfferSMS(t *testing.T) {
	eng, _, _ := newTestEngine(t)

	body := eng.FormatOfferSMS(pricing.Offer{
		ProductName:   "Tomatoes",
		PricePerKg:    4.5,
		MinOrderKg:    50,
		LogisticsCost: 20,
		Description:   "Premium Grade A",
	})

	assert.True(t, strings.HasPrefix(body, "PZ OFFER: Tomatoes"))
	assert.Contains(t, body, "Price: $4.50/kg")
	assert.Contains(t, body, "Min Order: 50kg")
	assert.Contains(t, body, "Logistics: $20.00")
	assert.Contains(t, body, "Premium Grade A")
	assert.Contains(t, body, "https://market.example.com/l/quote/")
}

func TestSendOffer(t *testing.T) {
	eng, _, sender := newTestEngine(t)

	body := eng.SendOffer("supplier-1", pricing.Offer{ProductName: "Onions", PricePerKg: 2.2})

	require.Len(t, sender.msgs, 1)
	assert.Equal(t, notify.ChannelSMS, sender.msgs[0].Channel)
	assert.Equal(t, body, sender.msgs[0].Body)
}
