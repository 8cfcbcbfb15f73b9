package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-discussions/internal/models"
	"github.com/pribylovaa/go-discussions/internal/transport/http/apierrors"
)

// ListNotifications — уведомления вызывающего, сначала новые.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	list, err := h.Notifications.ListForUser(r.Context(), p.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	out := make([]Notification, 0, len(list))
	for _, v := range list {
		out = append(out, notificationFromView(v))
	}

	writeJSON(w, http.StatusOK, NotificationsResponse{Notifications: out})
}

func (h *Handlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	p, err := caller(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	n, err := h.Notifications.UnreadCount(r.Context(), p.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, UnreadCountResponse{Count: n})
}

func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	h.markNotification(w, r, h.Notifications.MarkRead)
}

func (h *Handlers) MarkNotificationUnread(w http.ResponseWriter, r *http.Request) {
	h.markNotification(w, r, h.Notifications.MarkUnread)
}

type markFunc func(ctx context.Context, id, callerID uuid.UUID) (*models.Notification, error)

func (h *Handlers) markNotification(w http.ResponseWriter, r *http.Request, mark markFunc) {
	p, err := caller(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	n, err := mark(r.Context(), id, p.UserID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, notificationFromModel(*n))
}
