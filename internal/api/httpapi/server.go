// Package httpapi is the REST surface of market-api.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/pubsub"
	"github.com/BearBump/MarketShip/internal/services/notifications"
	"github.com/BearBump/MarketShip/internal/services/trackings"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"
)

type TrackingService interface {
	HandleWebhook(ctx context.Context, in trackings.WebhookInput) (trackings.IngestResult, error)
	AddManualEvent(ctx context.Context, actor models.Actor, orderID string, ev models.TrackingEvent) (trackings.IngestResult, error)
	CreateLabel(ctx context.Context, actor models.Actor, in trackings.LabelInput) (*models.ShippingInfo, error)
	TrackByNumber(ctx context.Context, trackingNumber string) (*trackings.TrackingView, error)
	Reconcile(ctx context.Context) (trackings.ReconcileResult, error)
}

type NotificationService interface {
	List(ctx context.Context, userID string, page int, f models.NotificationFilter) (notifications.Page, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
	Broadcast(ctx context.Context, in notifications.BroadcastInput) (notifications.BroadcastResult, error)
}

type Options struct {
	// SwaggerPath is served at /swagger.json when set.
	SwaggerPath string
	// StreamHeartbeat is the SSE keep-alive interval.
	StreamHeartbeat time.Duration
}

type Server struct {
	tracking      TrackingService
	notifications NotificationService
	bus           pubsub.Bus
	validate      *validator.Validate
	opts          Options
}

func New(tracking TrackingService, notifs NotificationService, bus pubsub.Bus, opts Options) *Server {
	if opts.StreamHeartbeat <= 0 {
		opts.StreamHeartbeat = 25 * time.Second
	}
	return &Server{
		tracking:      tracking,
		notifications: notifs,
		bus:           bus,
		validate:      newValidator(),
		opts:          opts,
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(identity)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.SwaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, s.opts.SwaggerPath)
		})
		r.Get("/docs/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger.json"),
		))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/tracking/webhook", s.handleWebhook)
		r.Get("/tracking/{trackingNumber}", s.handleTrackByNumber)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/tracking/orders/{orderID}/events", s.handleManualEvent)
			r.Post("/shipping/labels", s.handleCreateLabel)

			r.Get("/notifications", s.handleListNotifications)
			r.Get("/notifications/unread-count", s.handleUnreadCount)
			r.Get("/notifications/stream", s.handleStream)
			r.Patch("/notifications/read-all", s.handleMarkAllRead)
			r.Patch("/notifications/{id}/read", s.handleMarkRead)
			r.Delete("/notifications/{id}", s.handleDeleteNotification)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireUser, requireAdmin)
			r.Post("/tracking/reconcile", s.handleReconcile)
			r.Post("/notifications/broadcast", s.handleBroadcast)
		})
	})
	return r
}
