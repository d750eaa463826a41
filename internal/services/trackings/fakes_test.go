package trackings

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/MarketShip/internal/broker/messages"
	"github.com/BearBump/MarketShip/internal/integrations/carrier"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/storage"
	"github.com/stretchr/testify/mock"
)

// memRepo mirrors pgstore semantics: dedup on (order, timestamp) and
// apply runs only for inserted events.
type memRepo struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	saved  []models.ShippingInfo
}

func newMemRepo(orders ...*models.Order) *memRepo {
	r := &memRepo{orders: map[string]*models.Order{}}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *memRepo) clone(o *models.Order) *models.Order {
	c := *o
	c.TrackingEvents = append([]models.TrackingEvent{}, o.TrackingEvents...)
	if o.Shipping != nil {
		sh := *o.Shipping
		c.Shipping = &sh
	}
	return &c
}

func (r *memRepo) GetOrder(_ context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return r.clone(o), nil
}

func (r *memRepo) GetOrderByTrackingNumber(_ context.Context, n string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.TrackingNumber() == n {
			return r.clone(o), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *memRepo) AppendTrackingEvent(_ context.Context, id string, ev models.TrackingEvent, apply func(o *models.Order)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return false, storage.ErrNotFound
	}
	for _, e := range o.TrackingEvents {
		if e.Timestamp.Equal(ev.Timestamp) {
			return false, nil
		}
	}
	o.TrackingEvents = append(o.TrackingEvents, ev)
	if apply != nil {
		apply(o)
	}
	return true, nil
}

func (r *memRepo) ListActiveShipments(_ context.Context, statuses []models.OrderStatus) ([]*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Order
	for _, id := range sortedKeys(r.orders) {
		o := r.orders[id]
		for _, st := range statuses {
			if o.Status == st && o.TrackingNumber() != "" {
				out = append(out, r.clone(o))
				break
			}
		}
	}
	return out, nil
}

func (r *memRepo) SaveShippingInfo(_ context.Context, id string, info models.ShippingInfo, status models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return storage.ErrNotFound
	}
	o.Shipping = &info
	o.Status = status
	r.saved = append(r.saved, info)
	return nil
}

func sortedKeys(m map[string]*models.Order) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type mockRequester struct {
	mock.Mock
}

func (m *mockRequester) RequestNotification(ctx context.Context, req messages.NotificationRequested) error {
	return m.Called(ctx, req).Error(0)
}

type fetcherFunc func(ctx context.Context, carrierCode, trackingNumber string) (carrier.Tracking, error)

func (f fetcherFunc) Fetch(ctx context.Context, carrierCode, trackingNumber string) (carrier.Tracking, error) {
	return f(ctx, carrierCode, trackingNumber)
}

func (f fetcherFunc) MapStatus(string, string) models.EventType {
	return models.EventTypeInTransit
}

type memCache struct {
	mu   sync.Mutex
	m    map[string][]byte
	sets int
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string][]byte{}
	}
	c.m[key] = value
	c.sets++
	return nil
}

func messagesFixture() messages.NotificationRequested {
	return messages.NotificationRequested{
		RequestID: "r-1",
		UserID:    "buyer-1",
		Type:      "package_delivered",
		OrderID:   "o-1",
		Data:      map[string]any{"orderNumber": "o-1"},
	}
}
