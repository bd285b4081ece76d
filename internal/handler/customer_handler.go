package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/plantora/plantstore/internal/customer"
)

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CustomerResponse omits the password hash and exposes the membership
// summary the storefront shows on the profile page.
type CustomerResponse struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Role            customer.Role   `json:"role"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	TotalPurchases  int             `json:"total_purchases"`
	MembershipLevel string          `json:"membership_level"`
	LoyaltyPoints   int64           `json:"loyalty_points"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toCustomerResponse(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		ID:              c.ID,
		Name:            c.Name,
		Email:           c.Email,
		Role:            c.Role,
		TotalSpent:      c.TotalSpent,
		TotalPurchases:  c.TotalPurchases,
		MembershipLevel: c.MembershipLevel.String(),
		LoyaltyPoints:   c.LoyaltyPoints,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

type CustomerHandler struct {
	service  customer.Service
	validate *validator.Validate
}

func NewCustomerHandler(service customer.Service) *CustomerHandler {
	return &CustomerHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *CustomerHandler) RegisterRoutes(router chi.Router) {
	router.Post("/customers", h.handleRegister)
	router.Post("/customers/login", h.handleLogin)
	router.Get("/customers/{id}", h.handleGetByID)
}

func (h *CustomerHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode register request")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	c := &customer.Customer{
		Name:  req.Name,
		Email: req.Email,
	}

	created, err := h.service.Register(r.Context(), c, req.Password)
	if err != nil {
		log.Warn().Err(err).Str("email", req.Email).Msg("Failed to register customer")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, toCustomerResponse(created))
}

func (h *CustomerHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
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

	c, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, toCustomerResponse(c))
}

func (h *CustomerHandler) handleGetByID(w http.ResponseWriter, r *http.Request) {
	actor, code, err := resolveActor(r, h.service)
	if err != nil {
		respondWithError(w, code, err.Error())
		return
	}

	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	if !actor.IsAdmin() && actor.ID != id {
		respondWithError(w, http.StatusForbidden, "Not allowed to view this profile")
		return
	}

	c, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, toCustomerResponse(c))
}
