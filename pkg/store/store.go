// Package store holds the shared marketplace entities in memory. The store is
// the single source of truth the polling UIs read from; engines mutate it
// through read-modify-write calls. Construct one store at process start and
// pass it explicitly; tests build their own.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/agrimarket/pkg/models"
)

var (
	// ErrNotFound is returned when an entity id does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrStaleState is returned by optimistic updates when the entity moved
	// away from the expected state between read and write.
	ErrStaleState = errors.New("stale state: entity changed since read")
)

type Store struct {
	mu sync.RWMutex

	// clock injection for determinism.
	clock func() time.Time

	users         map[string]*models.User
	customers     map[string]*models.Customer
	products      map[string]*models.Product
	inventory     map[string]*models.InventoryItem
	orders        map[string]*models.Order
	issues        map[string]*models.OrderIssue
	priceRequests map[string]*models.SupplierPriceRequest
	notifications []models.AppNotification
	chats         []models.ChatMessage
}

type Option func(*Store)

// WithClock sets the clock function.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		clock:         time.Now,
		users:         make(map[string]*models.User),
		customers:     make(map[string]*models.Customer),
		products:      make(map[string]*models.Product),
		inventory:     make(map[string]*models.InventoryItem),
		orders:        make(map[string]*models.Order),
		issues:        make(map[string]*models.OrderIssue),
		priceRequests: make(map[string]*models.SupplierPriceRequest),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.clock()
}

// NewID mints an entity id.
func (s *Store) NewID() string {
	return uuid.NewString()
}

// --- users / customers / products ---

func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := u
	cp.ActiveSellingInterests = append([]string(nil), u.ActiveSellingInterests...)
	cp.ActiveBuyingInterests = append([]string(nil), u.ActiveBuyingInterests...)
	s.users[u.ID] = &cp
}

func (s *Store) GetUser(id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return copyUser(u), nil
}

// ListUsers returns all users sorted by creation time, then id, so match
// ordering is stable across refreshes.
func (s *Store) ListUsers() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) PutCustomer(c models.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := c
	s.customers[c.ID] = &cp
}

func (s *Store) ListCustomers() []models.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) PutProduct(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.products[p.ID] = &cp
}

func (s *Store) GetProduct(id string) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return models.Product{}, ErrNotFound
	}
	return *p, nil
}

func (s *Store) ListProducts() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- inventory ---

func (s *Store) PutInventory(item models.InventoryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := item
	s.inventory[item.ID] = &cp
}

func (s *Store) GetInventory(id string) (models.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.inventory[id]
	if !ok {
		return models.InventoryItem{}, ErrNotFound
	}
	return *item, nil
}

// ListInventoryByOwner returns the owner's lots, most recently uploaded first.
func (s *Store) ListInventoryByOwner(ownerID string) []models.InventoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.InventoryItem
	for _, item := range s.inventory {
		if item.OwnerID == ownerID {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UpdateInventory applies mutate under the write lock. mutate returning an
// error leaves the item untouched.
func (s *Store) UpdateInventory(id string, mutate func(*models.InventoryItem) error) (models.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.inventory[id]
	if !ok {
		return models.InventoryItem{}, ErrNotFound
	}
	cp := *item
	if err := mutate(&cp); err != nil {
		return models.InventoryItem{}, err
	}
	s.inventory[id] = &cp
	return cp, nil
}

// --- orders ---

func (s *Store) InsertOrder(o models.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copyOrder(&o)
	s.orders[o.ID] = &cp
}

func (s *Store) GetOrder(id string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	return copyOrder(o), nil
}

// ListOrders returns all orders newest first.
func (s *Store) ListOrders() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UpdateOrder applies mutate to the order if its current status equals
// expected; otherwise it fails with ErrStaleState and writes nothing. This is
// the optimistic check that keeps two racing admins from corrupting a status.
func (s *Store) UpdateOrder(id string, expected models.OrderStatus, mutate func(*models.Order) error) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	if o.Status != expected {
		return models.Order{}, ErrStaleState
	}
	cp := copyOrder(o)
	if err := mutate(&cp); err != nil {
		return models.Order{}, err
	}
	cp.UpdatedAt = s.clock()
	s.orders[id] = &cp
	return copyOrder(&cp), nil
}

// --- issues ---

func (s *Store) InsertIssue(i models.OrderIssue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := i
	s.issues[i.ID] = &cp
}

func (s *Store) GetIssue(id string) (models.OrderIssue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.issues[id]
	if !ok {
		return models.OrderIssue{}, ErrNotFound
	}
	return *i, nil
}

// ListIssues returns all issues newest first.
func (s *Store) ListIssues() []models.OrderIssue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.OrderIssue, 0, len(s.issues))
	for _, i := range s.issues {
		out = append(out, *i)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReportedAt.Equal(out[j].ReportedAt) {
			return out[i].ReportedAt.After(out[j].ReportedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) UpdateIssue(id string, mutate func(*models.OrderIssue) error) (models.OrderIssue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.issues[id]
	if !ok {
		return models.OrderIssue{}, ErrNotFound
	}
	cp := *i
	if err := mutate(&cp); err != nil {
		return models.OrderIssue{}, err
	}
	s.issues[id] = &cp
	return cp, nil
}

// --- price requests ---

func (s *Store) InsertPriceRequest(r models.SupplierPriceRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := copyPriceRequest(&r)
	s.priceRequests[r.ID] = &cp
}

func (s *Store) GetPriceRequest(id string) (models.SupplierPriceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.priceRequests[id]
	if !ok {
		return models.SupplierPriceRequest{}, ErrNotFound
	}
	return copyPriceRequest(r), nil
}

func (s *Store) ListPriceRequestsBySupplier(supplierID string) []models.SupplierPriceRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SupplierPriceRequest
	for _, r := range s.priceRequests {
		if r.SupplierID == supplierID {
			out = append(out, copyPriceRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) UpdatePriceRequest(id string, mutate func(*models.SupplierPriceRequest) error) (models.SupplierPriceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.priceRequests[id]
	if !ok {
		return models.SupplierPriceRequest{}, ErrNotFound
	}
	cp := copyPriceRequest(r)
	if err := mutate(&cp); err != nil {
		return models.SupplierPriceRequest{}, err
	}
	s.priceRequests[id] = &cp
	return copyPriceRequest(&cp), nil
}

// --- notifications / chat ---

func (s *Store) AddNotification(n models.AppNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.clock()
	}
	s.notifications = append(s.notifications, n)
}

// ListNotifications returns the recipient's notifications newest first.
func (s *Store) ListNotifications(recipientID string) []models.AppNotification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AppNotification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].RecipientID == recipientID {
			out = append(out, s.notifications[i])
		}
	}
	return out
}

func (s *Store) AddChatMessage(m models.ChatMessage) models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.SentAt.IsZero() {
		m.SentAt = s.clock()
	}
	s.chats = append(s.chats, m)
	return m
}

// ListChatBetween returns the conversation between two users in send order.
func (s *Store) ListChatBetween(a, b string) []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ChatMessage
	for _, m := range s.chats {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out
}

// --- copy helpers ---

func copyUser(u *models.User) models.User {
	cp := *u
	cp.ActiveSellingInterests = append([]string(nil), u.ActiveSellingInterests...)
	cp.ActiveBuyingInterests = append([]string(nil), u.ActiveBuyingInterests...)
	return cp
}

func copyOrder(o *models.Order) models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	if o.ShippedAt != nil {
		t := *o.ShippedAt
		cp.ShippedAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	return cp
}

func copyPriceRequest(r *models.SupplierPriceRequest) models.SupplierPriceRequest {
	cp := *r
	cp.Items = append([]models.PriceRequestItem(nil), r.Items...)
	if r.SubmittedAt != nil {
		t := *r.SubmittedAt
		cp.SubmittedAt = &t
	}
	return cp
}
