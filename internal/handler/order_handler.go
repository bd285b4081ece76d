package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/plantora/plantstore/internal/customer"
	"github.com/plantora/plantstore/internal/order"
)

type CreateOrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderRequest struct {
	Items           []CreateOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   string                   `json:"payment_method" validate:"required"`
	ShippingAddress string                   `json:"shipping_address" validate:"required"`
}

type UpdateOrderStatusRequest struct {
	Status         string `json:"status" validate:"required,oneof=Pending Confirmed Processing Shipped Delivered Cancelled"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

type UpdatePaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required,oneof=Pending Paid Failed Refunded"`
}

type OrderHandler struct {
	service   order.Service
	customers customer.Service
	validate  *validator.Validate
}

func NewOrderHandler(service order.Service, customers customer.Service) *OrderHandler {
	return &OrderHandler{
		service:   service,
		customers: customers,
		validate:  validator.New(),
	}
}

func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handleCreateOrder)
	router.Get("/orders/{id}", h.handleGetOrderByID)
	router.Post("/orders/{id}/cancel", h.handleCancelOrder)
	router.Get("/customers/{id}/orders", h.handleListCustomerOrders)
	router.Get("/admin/orders", h.handleListAllOrders)
	router.Patch("/admin/orders/{id}/status", h.handleUpdateStatus)
	router.Patch("/admin/orders/{id}/payment", h.handleUpdatePaymentStatus)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, code, err := resolveActor(r, h.customers)
	if err != nil {
		respondWithError(w, code, err.Error())
		return
	}

	var req CreateOrderRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode create order request")
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	input := order.NewOrderInput{
		CustomerID:      actor.ID,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
	}
	for _, item := range req.Items {
		productID, err := parseIDParam(item.ProductID)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid product id in order items")
			return
		}
		input.Items = append(input.Items, order.NewOrderItem{
			ProductID: productID,
			Quantity:  item.Quantity,
		})
	}

	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		log.Warn().Err(err).Stringer("customer_id", actor.ID).Msg("Failed to create order")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *OrderHandler) handleGetOrderByID(w http.ResponseWriter, r *http.Request) {
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

	o, err := h.service.GetByID(r.Context(), actor, id)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
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

	o, err := h.service.Cancel(r.Context(), actor, id)
	if err != nil {
		log.Warn().Err(err).Stringer("order_id", id).Msg("Failed to cancel order")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	actor, code, err := resolveActor(r, h.customers)
	if err != nil {
		respondWithError(w, code, err.Error())
		return
	}

	customerID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return
	}

	orders, err := h.service.ListByCustomer(r.Context(), actor, customerID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	actor, code, err := resolveActor(r, h.customers)
	if err != nil {
		respondWithError(w, code, err.Error())
		return
	}

	orders, err := h.service.ListAll(r.Context(), actor)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateOrderStatusRequest
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

	o, err := h.service.UpdateStatus(r.Context(), actor, id, order.StatusUpdate{
		Status:         order.Status(req.Status),
		TrackingNumber: req.TrackingNumber,
		Notes:          req.Notes,
	})
	if err != nil {
		log.Warn().Err(err).Stringer("order_id", id).Str("new_status", req.Status).Msg("Failed to update order status")
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleUpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
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

	var req UpdatePaymentStatusRequest
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

	o, err := h.service.UpdatePaymentStatus(r.Context(), actor, id, order.PaymentStatus(req.PaymentStatus))
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}
