package store_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/agrimarket/pkg/models"
	"github.com/example/agrimarket/pkg/store"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestUpdateOrderOptimisticCheck(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	st := store.New(store.WithClock(fixedClock(now)))

	st.InsertOrder(models.Order{ID: "o1", Status: models.OrderPending})

	// Expecting the wrong prior state surfaces the race instead of
	// silently overwriting.
	_, err := st.UpdateOrder("o1", models.OrderConfirmed, func(o *models.Order) error {
		o.Status = models.OrderShipped
		return nil
	})
	require.ErrorIs(t, err, store.ErrStaleState)

	got, err := st.GetOrder("o1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)
}

func TestUpdateOrderMutateErrorWritesNothing(t *testing.T) {
	st := store.New()
	st.InsertOrder(models.Order{ID: "o1", Status: models.OrderPending, TotalAmount: 10})

	boom := errors.New("boom")
	_, err := st.UpdateOrder("o1", models.OrderPending, func(o *models.Order) error {
		o.TotalAmount = 999
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := st.GetOrder("o1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.TotalAmount)
}

func TestGetOrderReturnsCopy(t *testing.T) {
	st := store.New()
	st.InsertOrder(models.Order{
		ID:     "o1",
		Status: models.OrderPending,
		Items:  []models.OrderItem{{ProductID: "p1", QuantityKg: 5}},
	})

	first, err := st.GetOrder("o1")
	require.NoError(t, err)
	first.Items[0].QuantityKg = 999
	first.Status = models.OrderCancelled

	second, err := st.GetOrder("o1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, second.Items[0].QuantityKg, "callers must not reach the backing slice")
	assert.Equal(t, models.OrderPending, second.Status)
}

func TestUpdateInventory(t *testing.T) {
	st := store.New()
	st.PutInventory(models.InventoryItem{ID: "lot-1", QuantityKg: 50, Status: models.InventoryAvailable})

	_, err := st.UpdateInventory("lot-1", func(i *models.InventoryItem) error {
		i.QuantityKg -= 20
		return nil
	})
	require.NoError(t, err)

	got, err := st.GetInventory("lot-1")
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.QuantityKg)

	_, err = st.UpdateInventory("missing", func(*models.InventoryItem) error { return nil })
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestNotifications(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	st := store.New(store.WithClock(fixedClock(now)))

	st.AddNotification(models.AppNotification{RecipientID: "u1", Title: "first"})
	st.AddNotification(models.AppNotification{RecipientID: "u2", Title: "other"})
	st.AddNotification(models.AppNotification{RecipientID: "u1", Title: "second"})

	got := st.ListNotifications("u1")
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Title, "newest first")
	assert.Equal(t, "first", got[1].Title)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, now, got[0].CreatedAt)
}

func TestListUsersStableOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	st := store.New()
	st.PutUser(models.User{ID: "b", CreatedAt: base.Add(time.Minute)})
	st.PutUser(models.User{ID: "a", CreatedAt: base})
	st.PutUser(models.User{ID: "c", CreatedAt: base.Add(time.Minute)})

	users := st.ListUsers()
	require.Len(t, users, 3)
	assert.Equal(t, "a", users[0].ID)
	assert.Equal(t, "b", users[1].ID, "equal timestamps fall back to id order")
	assert.Equal(t, "c", users[2].ID)
}

func TestChatBetween(t *testing.T) {
	st := store.New()
	st.AddChatMessage(models.ChatMessage{SenderID: "a", ReceiverID: "b", Text: "hi"})
	st.AddChatMessage(models.ChatMessage{SenderID: "b", ReceiverID: "a", Text: "hey"})
	st.AddChatMessage(models.ChatMessage{SenderID: "a", ReceiverID: "c", Text: "elsewhere"})

	got := st.ListChatBetween("a", "b")
	require.Len(t, got, 2)
	assert.Equal(t, "hi", got[0].Text)
	assert.Equal(t, "hey", got[1].Text)
}
