package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/plantora/plantstore/internal/customer"
	"github.com/plantora/plantstore/internal/feedback"
)

type CreateFeedbackRequest struct {
	OrderID        string `json:"order_id" validate:"required,uuid4"`
	Rating         int    `json:"rating" validate:"required,min=1,max=5"`
	DeliveryRating int    `json:"delivery_rating" validate:"required,min=1,max=5"`
	Comment        string `json:"comment,omitempty"`
}

type AdminResponseRequest struct {
	Response string `json:"response" validate:"required"`
}

type FeedbackHandler struct {
	service   feedback.Service
	customers customer.Service
	validate  *validator.Validate
}

func NewFeedbackHandler(service feedback.Service, customers customer.Service) *FeedbackHandler {
	return &FeedbackHandler{
		service:   service,
		customers: customers,
		validate:  validator.New(),
	}
}

func (h *FeedbackHandler) RegisterRoutes(router chi.Router) {
	router.Post("/feedback", h.handleCreate)
	router.Get("/orders/{id}/feedback", h.handleGetByOrderID)
	router.Patch("/admin/feedback/{id}/response", h.handleRespond)
}

func (h *FeedbackHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, code, err := resolveActor(r, h.customers)
	if err != nil {
		respondWithError(w, code, err.Error())
		return
	}

	var req CreateFeedbackRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode feedback request")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	orderID, err := parseIDParam(req.OrderID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order id")
		return
	}

	f := &feedback.Feedback{
		OrderID:        orderID,
		Rating:         req.Rating,
		DeliveryRating: req.DeliveryRating,
		Comment:        req.Comment,
	}

	created, err := h.service.Create(r.Context(), actor, f)
	if err != nil {
		log.Warn().Err(err).Stringer("order_id", orderID).Msg("Failed to create feedback")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *FeedbackHandler) handleGetByOrderID(w http.ResponseWriter, r *http.Request) {
	actor, code, err := resolveActor(r, h.customers)
	if err != nil {
		respondWithError(w, code, err.Error())
		return
	}

	orderID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	f, err := h.service.GetByOrderID(r.Context(), actor, orderID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, f)
}

func (h *FeedbackHandler) handleRespond(w http.ResponseWriter, r *http.Request) {
	actor, code, err := resolveActor(r, h.customers)
	if err != nil {
		respondWithError(w, code, err.Error())
		return
	}

	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	var req AdminResponseRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	f, err := h.service.Respond(r.Context(), actor, id, req.Response)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, f)
}
