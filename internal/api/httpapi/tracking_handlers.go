package httpapi

import (
	"net/http"
	"time"

	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/services/trackings"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type locationDTO struct {
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Facility string `json:"facility"`
}

type eventDTO struct {
	Timestamp     time.Time   `json:"timestamp" validate:"required"`
	Status        string      `json:"status"`
	Description   string      `json:"description"`
	Location      locationDTO `json:"location"`
	CarrierStatus string      `json:"carrier_status"`
	EventType     string      `json:"event_type" validate:"omitempty,oneof=pickup in_transit out_for_delivery delivered attempted_delivery exception returned"`
}

func (e eventDTO) toModel() models.TrackingEvent {
	return models.TrackingEvent{
		Timestamp:   e.Timestamp,
		Status:      e.Status,
		Description: e.Description,
		Location: models.Location{
			City:     e.Location.City,
			State:    e.Location.State,
			Country:  e.Location.Country,
			Facility: e.Location.Facility,
		},
		CarrierStatus: e.CarrierStatus,
		EventType:     models.EventType(e.EventType),
	}
}

type webhookRequest struct {
	Carrier        string   `json:"carrier" validate:"required"`
	TrackingNumber string   `json:"tracking_number" validate:"required"`
	EventData      eventDTO `json:"event_data"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.tracking.HandleWebhook(r.Context(), trackings.WebhookInput{
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		Event:          req.EventData.toModel(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleManualEvent(w http.ResponseWriter, r *http.Request) {
	var req eventDTO
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.tracking.AddManualEvent(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "orderID"), req.toModel())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type dimensionsDTO struct {
	Length decimal.Decimal `json:"length"`
	Width  decimal.Decimal `json:"width"`
	Height decimal.Decimal `json:"height"`
	Unit   string          `json:"unit" validate:"omitempty,oneof=cm in"`
}

type packageDTO struct {
	Weight         decimal.Decimal `json:"weight"`
	Dimensions     dimensionsDTO   `json:"dimensions"`
	InsuranceValue decimal.Decimal `json:"insurance_value"`
}

type labelRequest struct {
	OrderID     string     `json:"order_id" validate:"required"`
	Carrier     string     `json:"carrier" validate:"required"`
	ServiceType string     `json:"service_type" validate:"omitempty,oneof=standard expedited overnight two_day"`
	PackageInfo packageDTO `json:"package_info"`
}

func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PackageInfo.Weight.IsNegative() || req.PackageInfo.InsuranceValue.IsNegative() {
		writeErrorMessage(w, http.StatusBadRequest, "weight and insurance_value must not be negative")
		return
	}
	serviceType := req.ServiceType
	if serviceType == "" {
		serviceType = "standard"
	}
	info, err := s.tracking.CreateLabel(r.Context(), actorFrom(r.Context()), trackings.LabelInput{
		OrderID:     req.OrderID,
		Carrier:     req.Carrier,
		ServiceType: serviceType,
		Package: trackings.PackageInfo{
			Weight: req.PackageInfo.Weight,
			Dimensions: models.Dimensions{
				Length: req.PackageInfo.Dimensions.Length,
				Width:  req.PackageInfo.Dimensions.Width,
				Height: req.PackageInfo.Dimensions.Height,
				Unit:   req.PackageInfo.Dimensions.Unit,
			},
			InsuranceValue: req.PackageInfo.InsuranceValue,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleTrackByNumber(w http.ResponseWriter, r *http.Request) {
	view, err := s.tracking.TrackByNumber(r.Context(), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	res, err := s.tracking.Reconcile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
