package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/api/helpers"
	"github.com/relayonprem/control-plane/internal/api/middleware"
	"github.com/relayonprem/control-plane/internal/store"
	"github.com/relayonprem/control-plane/internal/webhook"
)

type webhookView struct {
	ID           uuid.UUID  `json:"id"`
	UserID       *uuid.UUID `json:"user_id,omitempty"` // absent on global hooks
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Events       []string   `json:"events"`
	Active       bool       `json:"active"`
	FailureCount int32      `json:"failure_count"`
	CreatedAt    time.Time  `json:"created_at"`
}

func viewWebhook(wh *store.Webhook) webhookView {
	return webhookView{
		ID:           wh.ID,
		UserID:       wh.UserID,
		Name:         wh.Name,
		URL:          wh.URL,
		Events:       wh.Events,
		Active:       wh.Active,
		FailureCount: wh.FailureCount,
		CreatedAt:    wh.CreatedAt,
	}
}

type deliveryView struct {
	ID                 uuid.UUID            `json:"id"`
	EventID            uuid.UUID            `json:"event_id"`
	EventType          string               `json:"event_type"`
	Status             store.DeliveryStatus `json:"status"`
	ResponseStatusCode *int32               `json:"response_status_code,omitempty"`
	ResponseBody       string               `json:"response_body,omitempty"`
	AttemptCount       int32                `json:"attempt_count"`
	NextRetryAt        *time.Time           `json:"next_retry_at,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
}

func viewDelivery(d *store.WebhookDelivery) deliveryView {
	return deliveryView{
		ID:                 d.ID,
		EventID:            d.EventID,
		EventType:          d.EventType,
		Status:             d.Status,
		ResponseStatusCode: d.ResponseStatusCode,
		ResponseBody:       d.ResponseBody,
		AttemptCount:       d.AttemptCount,
		NextRetryAt:        d.NextRetryAt,
		CreatedAt:          d.CreatedAt,
	}
}

func (s *Server) principalAndWebhookID(w http.ResponseWriter, r *http.Request) (*store.User, uuid.UUID, bool) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "webhook id must be a uuid")
		return nil, uuid.Nil, false
	}
	return user, id, true
}

type createWebhookRequest struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// createWebhook backs both the user-scoped and the admin/global route; the
// only difference is the owner.
func (s *Server) createWebhook(w http.ResponseWriter, r *http.Request, global bool) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	var req createWebhookRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.URL == "" {
		helpers.RespondError(w, r, http.StatusUnprocessableEntity, "name and url are required")
		return
	}

	in := webhook.CreateInput{Name: req.Name, URL: req.URL, Events: req.Events}
	if !global {
		in.OwnerID = &user.ID
	}

	result, err := s.webhooks.Create(r.Context(), user, in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, map[string]any{
		"webhook": viewWebhook(result.Webhook),
		"secret":  result.Secret, // shown once
	})
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	s.createWebhook(w, r, false)
}

func (s *Server) handleCreateAdminWebhook(w http.ResponseWriter, r *http.Request) {
	s.createWebhook(w, r, true)
}

func (s *Server) listWebhooks(w http.ResponseWriter, r *http.Request, global bool) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	hooks, err := s.webhooks.List(r.Context(), user, global)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	views := make([]webhookView, 0, len(hooks))
	for i := range hooks {
		views = append(views, viewWebhook(&hooks[i]))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"webhooks": views})
}

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	s.listWebhooks(w, r, false)
}

func (s *Server) handleListAdminWebhooks(w http.ResponseWriter, r *http.Request) {
	s.listWebhooks(w, r, true)
}

func (s *Server) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	user, id, ok := s.principalAndWebhookID(w, r)
	if !ok {
		return
	}

	wh, err := s.webhooks.Get(r.Context(), user, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]webhookView{"webhook": viewWebhook(wh)})
}

type updateWebhookRequest struct {
	Name   *string  `json:"name,omitempty"`
	URL    *string  `json:"url,omitempty"`
	Events []string `json:"events,omitempty"`
	Active *bool    `json:"active,omitempty"`
}

func (s *Server) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	user, id, ok := s.principalAndWebhookID(w, r)
	if !ok {
		return
	}

	var req updateWebhookRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	wh, err := s.webhooks.Update(r.Context(), user, id, webhook.UpdateInput{
		Name:   req.Name,
		URL:    req.URL,
		Events: req.Events,
		Active: req.Active,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]webhookView{"webhook": viewWebhook(wh)})
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	user, id, ok := s.principalAndWebhookID(w, r)
	if !ok {
		return
	}

	if err := s.webhooks.Delete(r.Context(), user, id); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Webhook deleted"})
}

func (s *Server) handleRotateWebhookSecret(w http.ResponseWriter, r *http.Request) {
	user, id, ok := s.principalAndWebhookID(w, r)
	if !ok {
		return
	}

	secret, err := s.webhooks.RotateSecret(r.Context(), user, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"secret": secret})
}

func (s *Server) handleTestWebhook(w http.ResponseWriter, r *http.Request) {
	user, id, ok := s.principalAndWebhookID(w, r)
	if !ok {
		return
	}

	delivery, err := s.webhooks.Test(r.Context(), user, id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]deliveryView{"delivery": viewDelivery(delivery)})
}

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	user, id, ok := s.principalAndWebhookID(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	deliveries, err := s.webhooks.ListDeliveries(r.Context(), user, id, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	views := make([]deliveryView, 0, len(deliveries))
	for i := range deliveries {
		views = append(views, viewDelivery(&deliveries[i]))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"deliveries": views})
}
