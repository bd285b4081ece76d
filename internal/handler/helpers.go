package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/plantora/plantstore/internal/customer"
	"github.com/plantora/plantstore/internal/feedback"
	"github.com/plantora/plantstore/internal/order"
	"github.com/plantora/plantstore/internal/pricing"
	"github.com/plantora/plantstore/internal/product"
)

// actorHeader carries the authenticated customer's ID, injected by the API
// gateway in front of this service.
const actorHeader = "X-User-ID"

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = fmt.Sprintf("failed on the '%s' rule", fieldErr.Tag())
	}
	return details
}

func respondValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		respondWithJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:   "Validation failed",
			Details: formatValidationErrors(validationErrors),
		})
		return
	}
	log.Error().Err(err).Msg("Unexpected error type during validation")
	respondWithError(w, http.StatusInternalServerError, "Internal validation error")
}

func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrProductNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, customer.ErrNotFound),
		errors.Is(err, feedback.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrForbidden),
		errors.Is(err, feedback.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, order.ErrInsufficientStock),
		errors.Is(err, order.ErrInvalidStatusTransition),
		errors.Is(err, order.ErrNotCancellable),
		errors.Is(err, customer.ErrEmailExists),
		errors.Is(err, feedback.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, customer.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrInvalidPaymentStatus),
		errors.Is(err, feedback.ErrInvalidRating),
		errors.Is(err, feedback.ErrOrderNotDelivered),
		errors.Is(err, pricing.ErrEmptyCart),
		errors.Is(err, pricing.ErrNonPositiveQuantity),
		errors.Is(err, pricing.ErrNegativeUnitPrice):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// resolveActor loads the acting customer from the gateway-injected identity
// header. A missing or malformed header is an authentication failure before
// any order or stock state is touched.
func resolveActor(r *http.Request, customers customer.Service) (*customer.Customer, int, error) {
	raw := r.Header.Get(actorHeader)
	if raw == "" {
		return nil, http.StatusUnauthorized, errors.New("missing " + actorHeader + " header")
	}
	id, err := uuid.FromString(raw)
	if err != nil {
		return nil, http.StatusUnauthorized, fmt.Errorf("invalid %s header: %w", actorHeader, err)
	}
	actor, err := customers.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, http.StatusUnauthorized, errors.New("unknown acting customer")
		}
		return nil, http.StatusInternalServerError, err
	}
	return actor, 0, nil
}

func parseIDParam(raw string) (uuid.UUID, error) {
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id parameter: %w", err)
	}
	return id, nil
}
