package notifications

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/storage"
	"github.com/stretchr/testify/mock"
)

// memStore keeps notifications in memory with the same per-field update
// semantics as pgstore.
type memStore struct {
	mu sync.Mutex
	m  map[string]*models.Notification
}

func newMemStore() *memStore {
	return &memStore{m: map[string]*models.Notification{}}
}

func (s *memStore) get(id string) *models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.m[id]
	if !ok {
		return nil
	}
	c := *n
	return &c
}

func (s *memStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[n.ID]; ok {
		return storage.ErrAlreadyExists
	}
	c := *n
	s.m[n.ID] = &c
	return nil
}

func (s *memStore) GetNotification(_ context.Context, id string) (*models.Notification, error) {
	if n := s.get(id); n != nil {
		return n, nil
	}
	return nil, storage.ErrNotFound
}

func (s *memStore) MarkChannelDelivered(_ context.Context, id string, ch models.Channel, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.m[id]
	if !ok {
		return storage.ErrNotFound
	}
	st := n.Channels.Get(ch)
	st.Delivered = true
	if st.DeliveredAt == nil {
		st.DeliveredAt = &at
	}
	return nil
}

func (s *memStore) FinalizeDelivery(_ context.Context, id string) (models.NotificationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.m[id]
	if !ok {
		return "", storage.ErrNotFound
	}
	if n.Status == models.NotificationStatusPending && n.Channels.AllEnabledDelivered() {
		n.Status = models.NotificationStatusDelivered
	}
	return n.Status, nil
}

func (s *memStore) RecordFailedAttempt(_ context.Context, id string, next time.Time, maxAttempts int) (int, models.NotificationStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.m[id]
	if !ok || n.Status != models.NotificationStatusPending {
		return 0, "", storage.ErrNotFound
	}
	n.Attempts++
	n.NextAttemptAt = next
	if n.Attempts >= maxAttempts {
		n.Status = models.NotificationStatusFailed
	}
	return n.Attempts, n.Status, nil
}

func (s *memStore) ListNotifications(_ context.Context, userID string, f models.NotificationFilter) ([]*models.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*models.Notification
	for _, n := range s.m {
		if n.UserID != userID {
			continue
		}
		if f.Category != "" && n.Category != f.Category {
			continue
		}
		if f.IsRead != nil && n.IsRead != *f.IsRead {
			continue
		}
		c := *n
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (s *memStore) UnreadCount(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := 0
	for _, n := range s.m {
		if n.UserID == userID && !n.IsRead {
			c++
		}
	}
	return c, nil
}

func (s *memStore) MarkRead(_ context.Context, userID, id string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.m[id]
	if !ok || n.UserID != userID {
		return nil, storage.ErrNotFound
	}
	n.IsRead = true
	if n.Status == models.NotificationStatusDelivered {
		n.Status = models.NotificationStatusRead
	}
	c := *n
	return &c, nil
}

func (s *memStore) MarkAllRead(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c int64
	for _, n := range s.m {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			c++
		}
	}
	return c, nil
}

func (s *memStore) DeleteNotification(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.m[id]
	if !ok || n.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.m, id)
	return nil
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, n *models.Notification, address string) error {
	return m.Called(n.ID, address).Error(0)
}

func boolPtr(b bool) *bool { return &b }
