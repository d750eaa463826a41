package notifications

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/BearBump/MarketShip/internal/broker/messages"
	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/storage"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

var ErrInvalidInput = errors.New("invalid notification input")

const (
	defaultTTL           = 30 * 24 * time.Hour
	defaultGrace         = 2 * time.Minute
	broadcastConcurrency = 8
	announcementType     = "system_announcement"
	customCategory       = "general"
)

// requestNamespace scopes notification ids derived from request ids.
var requestNamespace = uuid.MustParse("6f1c2a0e-5b7d-4c1e-9a43-2d8e7b0f4a91")

type Repository interface {
	DeliveryStore
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	ListNotifications(ctx context.Context, userID string, f models.NotificationFilter) ([]*models.Notification, int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, userID, id string) error
}

// ChannelFlags are caller overrides of a template's default channels. Nil
// keeps the default; an explicit false always disables the channel.
type ChannelFlags struct {
	InApp *bool `json:"in_app,omitempty"`
	Email *bool `json:"email,omitempty"`
	SMS   *bool `json:"sms,omitempty"`
	Push  *bool `json:"push,omitempty"`
}

func (f ChannelFlags) get(ch models.Channel) *bool {
	switch ch {
	case models.ChannelInApp:
		return f.InApp
	case models.ChannelEmail:
		return f.Email
	case models.ChannelSMS:
		return f.SMS
	case models.ChannelPush:
		return f.Push
	}
	return nil
}

type CreateInput struct {
	// ID is optional; callers that may repeat a request pass a stable id so
	// the repeat is a no-op.
	ID            string
	UserID        string
	Type          string
	CustomTitle   string
	CustomMessage string
	Category      string
	Priority      models.Priority
	Channels      ChannelFlags
	Addresses     map[models.Channel]string
	Actions       []models.Action
	Data          map[string]any
	ScheduledFor  *time.Time
	ExpiresAt     *time.Time
}

type Service struct {
	repo       Repository
	registry   *Registry
	dispatcher *Dispatcher

	ttl   time.Duration
	grace time.Duration
	now   func() time.Time
}

func NewService(repo Repository, registry *Registry, dispatcher *Dispatcher) *Service {
	return &Service{
		repo:       repo,
		registry:   registry,
		dispatcher: dispatcher,
		ttl:        defaultTTL,
		grace:      defaultGrace,
		now:        time.Now,
	}
}

// WithTimings sets the default lifetime of a notification and how long the
// sweeper waits before retrying one that was dispatched on create.
func (s *Service) WithTimings(ttl, grace time.Duration) *Service {
	if ttl > 0 {
		s.ttl = ttl
	}
	if grace > 0 {
		s.grace = grace
	}
	return s
}

func (s *Service) Registry() *Registry { return s.registry }

// Build resolves the template and merges channels without persisting.
func (s *Service) Build(in CreateInput) (*models.Notification, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, errors.Wrap(ErrInvalidInput, "user id is required")
	}

	tmpl, ok := s.registry.Lookup(in.Type)
	if !ok {
		if in.CustomTitle == "" || in.CustomMessage == "" {
			return nil, &ConfigurationError{Type: in.Type, Reason: "no template and no custom title and message"}
		}
		tmpl = Template{
			Category: customCategory,
			Priority: models.PriorityMedium,
			Channels: []models.Channel{models.ChannelInApp},
		}
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now().UTC()
	n := &models.Notification{
		ID:        id,
		UserID:    in.UserID,
		Type:      in.Type,
		Title:     firstNonEmpty(in.CustomTitle, tmpl.Title),
		Message:   firstNonEmpty(in.CustomMessage, tmpl.Message),
		Category:  firstNonEmpty(in.Category, tmpl.Category),
		Priority:  tmpl.Priority,
		Status:    models.NotificationStatusPending,
		Actions:   in.Actions,
		Data:      in.Data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Priority != "" {
		n.Priority = in.Priority
	}
	if n.Actions == nil && len(tmpl.Actions) > 0 {
		n.Actions = make([]models.Action, 0, len(tmpl.Actions))
		for _, a := range tmpl.Actions {
			a.URL = models.FormatPlaceholders(a.URL, in.Data)
			n.Actions = append(n.Actions, a)
		}
	}

	for _, ch := range models.AllChannels {
		st := n.Channels.Get(ch)
		st.Enabled = tmpl.DefaultEnabled(ch)
		if flag := in.Channels.get(ch); flag != nil {
			st.Enabled = *flag
		}
		st.Address = in.Addresses[ch]
	}

	if in.ScheduledFor != nil {
		t := in.ScheduledFor.UTC()
		n.ScheduledFor = &t
	}
	if in.ExpiresAt != nil {
		t := in.ExpiresAt.UTC()
		n.ExpiresAt = &t
	} else {
		t := now.Add(s.ttl)
		n.ExpiresAt = &t
	}

	if s.isScheduled(n, now) {
		n.NextAttemptAt = *n.ScheduledFor
	} else {
		n.NextAttemptAt = now.Add(s.grace)
	}
	return n, nil
}

func (s *Service) isScheduled(n *models.Notification, now time.Time) bool {
	return n.ScheduledFor != nil && n.ScheduledFor.After(now)
}

// Create persists a pending notification and dispatches it right away unless
// it is scheduled for later.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Notification, error) {
	n, err := s.Build(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// a repeated request; the first one owns delivery
			logger.Get().Info("notification already exists", zap.String("id", n.ID))
			return s.repo.GetNotification(ctx, n.ID)
		}
		return nil, errors.Wrap(err, "create notification")
	}
	if !s.isScheduled(n, s.now().UTC()) {
		s.dispatcher.Deliver(ctx, n)
	}
	return n, nil
}

// Dispatch re-runs delivery for a stored notification.
func (s *Service) Dispatch(ctx context.Context, n *models.Notification) []DeliveryResult {
	return s.dispatcher.Deliver(ctx, n)
}

// RequestNotification creates the notification for a request coming from
// tracking ingestion.
// A request id maps to one notification id, so redelivered requests create
// nothing new.
func (s *Service) RequestNotification(ctx context.Context, req messages.NotificationRequested) error {
	in := CreateInput{UserID: req.UserID, Type: req.Type, Data: req.Data}
	if req.RequestID != "" {
		in.ID = uuid.NewSHA1(requestNamespace, []byte(req.RequestID)).String()
	}
	_, err := s.Create(ctx, in)
	return err
}

// HandleRequestedMessage is the Kafka handler for notification requests.
// Messages that can never succeed are logged and dropped so they do not
// block the partition.
func (s *Service) HandleRequestedMessage(ctx context.Context, value []byte) error {
	var req messages.NotificationRequested
	if err := json.Unmarshal(value, &req); err != nil {
		logger.Get().Error("drop malformed notification request", zap.Error(err))
		return nil
	}
	err := s.RequestNotification(ctx, req)
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) || errors.Is(err, ErrInvalidInput) {
		logger.Get().Error("drop notification request",
			zap.String("request_id", req.RequestID),
			zap.String("type", req.Type),
			zap.Error(err),
		)
		return nil
	}
	return err
}

type Page struct {
	Items      []*models.Notification `json:"items"`
	Total      int                    `json:"total"`
	Page       int                    `json:"page"`
	Limit      int                    `json:"limit"`
	TotalPages int                    `json:"total_pages"`
}

// List returns one page (1-based) of the user's notifications. Titles and
// messages come back with placeholders filled in.
func (s *Service) List(ctx context.Context, userID string, page int, f models.NotificationFilter) (Page, error) {
	if page < 1 {
		page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	f.Offset = (page - 1) * f.Limit

	items, total, err := s.repo.ListNotifications(ctx, userID, f)
	if err != nil {
		return Page{}, err
	}
	for _, n := range items {
		render(n)
	}
	return Page{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      f.Limit,
		TotalPages: (total + f.Limit - 1) / f.Limit,
	}, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	render(n)
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.DeleteNotification(ctx, userID, id)
}

type BroadcastInput struct {
	UserIDs  []string
	Type     string
	Title    string
	Message  string
	Data     map[string]any
	Channels ChannelFlags
}

type BroadcastResult struct {
	Created int `json:"created"`
	Failed  int `json:"failed"`
}

// Broadcast creates one notification per user. A failure for one user does
// not stop the others.
func (s *Service) Broadcast(ctx context.Context, in BroadcastInput) (BroadcastResult, error) {
	if len(in.UserIDs) == 0 {
		return BroadcastResult{}, errors.Wrap(ErrInvalidInput, "user_ids is required")
	}
	typ := in.Type
	if typ == "" {
		typ = announcementType
	}
	// validate once before fanning out
	if _, err := s.Build(CreateInput{UserID: in.UserIDs[0], Type: typ, CustomTitle: in.Title, CustomMessage: in.Message}); err != nil {
		return BroadcastResult{}, err
	}

	var created, failed atomic.Int64
	p := pool.New().WithMaxGoroutines(broadcastConcurrency)
	for _, userID := range in.UserIDs {
		p.Go(func() {
			_, err := s.Create(ctx, CreateInput{
				UserID:        userID,
				Type:          typ,
				CustomTitle:   in.Title,
				CustomMessage: in.Message,
				Channels:      in.Channels,
				Data:          in.Data,
			})
			if err != nil {
				failed.Add(1)
				logger.Get().Warn("broadcast notification", zap.String("user_id", userID), zap.Error(err))
				return
			}
			created.Add(1)
		})
	}
	p.Wait()

	return BroadcastResult{Created: int(created.Load()), Failed: int(failed.Load())}, nil
}

func render(n *models.Notification) {
	n.Title = n.FormattedTitle()
	n.Message = n.FormattedMessage()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
