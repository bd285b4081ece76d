package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/plantora/plantstore/internal/customer"
	"github.com/plantora/plantstore/internal/product"
)

type ProductRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price" validate:"required"`
	Stock       int    `json:"stock" validate:"gte=0"`
	Category    string `json:"category" validate:"required"`
}

type ProductHandler struct {
	service   product.Service
	customers customer.Service
	validate  *validator.Validate
}

func NewProductHandler(service product.Service, customers customer.Service) *ProductHandler {
	return &ProductHandler{
		service:   service,
		customers: customers,
		validate:  validator.New(),
	}
}

func (h *ProductHandler) RegisterRoutes(router chi.Router) {
	router.Get("/products", h.handleList)
	router.Get("/products/{id}", h.handleGetByID)
	router.Post("/admin/products", h.handleCreate)
	router.Put("/admin/products/{id}", h.handleUpdate)
	router.Delete("/admin/products/{id}", h.handleDelete)
}

func (h *ProductHandler) handleList(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) handleGetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	p, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

// requireAdmin resolves the actor and rejects non-admins before any catalog
// mutation.
func (h *ProductHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	actor, code, err := resolveActor(r, h.customers)
	if err != nil {
		respondWithError(w, code, err.Error())
		return false
	}
	if !actor.IsAdmin() {
		respondWithError(w, http.StatusForbidden, "Admin access required")
		return false
	}
	return true
}

func (h *ProductHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (*product.Product, bool) {
	var req ProductRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode product request")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return nil, false
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		respondWithError(w, http.StatusBadRequest, "Price must be a non-negative decimal number")
		return nil, false
	}

	return &product.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Stock:       req.Stock,
		Category:    req.Category,
	}, true
}

func (h *ProductHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	p, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	created, err := h.service.Create(r.Context(), p)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *ProductHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	p, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}
	p.ID = id

	updated, err := h.service.Update(r.Context(), p)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *ProductHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
