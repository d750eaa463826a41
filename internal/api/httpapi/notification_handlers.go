package httpapi

import (
	"net/http"
	"strconv"

	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/services/notifications"
	"github.com/go-chi/chi/v5"
)

type listQuery struct {
	Page     int    `json:"page" validate:"min=1"`
	Limit    int    `json:"limit" validate:"min=1,max=100"`
	Category string `json:"category"`
	Type     string `json:"type"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	IsRead   *bool  `json:"is_read"`
}

func parseListQuery(r *http.Request) (listQuery, error) {
	q := r.URL.Query()
	out := listQuery{
		Page:     1,
		Limit:    20,
		Category: q.Get("category"),
		Type:     q.Get("type"),
		Priority: q.Get("priority"),
	}
	var err error
	if v := q.Get("page"); v != "" {
		if out.Page, err = strconv.Atoi(v); err != nil {
			return out, errBadRequest{msg: "page must be an integer"}
		}
	}
	if v := q.Get("limit"); v != "" {
		if out.Limit, err = strconv.Atoi(v); err != nil {
			return out, errBadRequest{msg: "limit must be an integer"}
		}
	}
	if v := q.Get("is_read"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return out, errBadRequest{msg: "is_read must be a boolean"}
		}
		out.IsRead = &b
	}
	return out, nil
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err == nil {
		err = s.validate.Struct(q)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := s.notifications.List(r.Context(), actorFrom(r.Context()).UserID, q.Page, models.NotificationFilter{
		Category: q.Category,
		Type:     q.Type,
		Priority: q.Priority,
		IsRead:   q.IsRead,
		Limit:    q.Limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.notifications.UnreadCount(r.Context(), actorFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread_count": n})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.notifications.MarkRead(r.Context(), actorFrom(r.Context()).UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.notifications.MarkAllRead(r.Context(), actorFrom(r.Context()).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := s.notifications.Delete(r.Context(), actorFrom(r.Context()).UserID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type broadcastRequest struct {
	UserIDs  []string                   `json:"user_ids" validate:"required,min=1,max=10000,dive,required"`
	Type     string                     `json:"type"`
	Title    string                     `json:"title"`
	Message  string                     `json:"message"`
	Data     map[string]any             `json:"data"`
	Channels notifications.ChannelFlags `json:"channels"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.notifications.Broadcast(r.Context(), notifications.BroadcastInput{
		UserIDs:  req.UserIDs,
		Type:     req.Type,
		Title:    req.Title,
		Message:  req.Message,
		Data:     req.Data,
		Channels: req.Channels,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
