package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/plantora/plantstore/internal/customer"
	"github.com/plantora/plantstore/internal/order"
)

var (
	ErrForbidden         = errors.New("not allowed to review this order")
	ErrOrderNotDelivered = errors.New("feedback is only accepted for delivered orders")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
)

type Service interface {
	Create(ctx context.Context, actor *customer.Customer, f *Feedback) (*Feedback, error)
	GetByOrderID(ctx context.Context, actor *customer.Customer, orderID uuid.UUID) (*Feedback, error)
	Respond(ctx context.Context, actor *customer.Customer, id uuid.UUID, response string) (*Feedback, error)
}

type service struct {
	repo   Repository
	orders order.Repository
}

func NewService(repo Repository, orders order.Repository) Service {
	return &service{repo: repo, orders: orders}
}

func (s *service) Create(ctx context.Context, actor *customer.Customer, f *Feedback) (*Feedback, error) {
	if f.Rating < 1 || f.Rating > 5 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidRating, f.Rating)
	}
	if f.DeliveryRating < 1 || f.DeliveryRating > 5 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidRating, f.DeliveryRating)
	}

	o, err := s.orders.GetByID(ctx, f.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to fetch order for feedback: %w", err)
	}
	if o.CustomerID != actor.ID {
		return nil, ErrForbidden
	}
	if o.Status != order.StatusDelivered {
		return nil, ErrOrderNotDelivered
	}

	f.CustomerID = actor.ID

	if err := s.repo.Create(ctx, f); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		log.Error().Err(err).Stringer("order_id", f.OrderID).Msg("service: failed to create feedback")
		return nil, fmt.Errorf("service: failed to create feedback: %w", err)
	}

	log.Info().Stringer("feedback_id", f.ID).Stringer("order_id", f.OrderID).Int("rating", f.Rating).Msg("service: feedback created")
	return f, nil
}

func (s *service) GetByOrderID(ctx context.Context, actor *customer.Customer, orderID uuid.UUID) (*Feedback, error) {
	f, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to fetch feedback")
		return nil, fmt.Errorf("service: failed to fetch feedback: %w", err)
	}
	if !actor.IsAdmin() && actor.ID != f.CustomerID {
		return nil, ErrForbidden
	}
	return f, nil
}

func (s *service) Respond(ctx context.Context, actor *customer.Customer, id uuid.UUID, response string) (*Feedback, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	if err := s.repo.SetAdminResponse(ctx, id, response); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("feedback_id", id).Msg("service: failed to set admin response")
		return nil, fmt.Errorf("service: failed to set admin response: %w", err)
	}

	return s.repo.GetByID(ctx, id)
}
