package customer

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type Service interface {
	Register(ctx context.Context, c *Customer, password string) (*Customer, error)
	Login(ctx context.Context, email, password string) (*Customer, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	RecordPurchase(ctx context.Context, id uuid.UUID, orderTotal decimal.Decimal) (*Customer, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Register(ctx context.Context, c *Customer, password string) (*Customer, error) {
	if password == "" {
		return nil, errors.New("service: password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to hash password")
		return nil, fmt.Errorf("service: failed to hash password: %w", err)
	}
	c.PasswordHash = string(hash)

	// New accounts always start at the bottom tier with clean tallies,
	// whatever the request claimed.
	c.Role = RoleCustomer
	c.TotalSpent = decimal.Zero
	c.TotalPurchases = 0
	c.MembershipLevel = LevelBronze
	c.LoyaltyPoints = 0

	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Str("email", c.Email).Msg("service: failed to create customer in repository")
		return nil, fmt.Errorf("service: failed to create customer: %w", err)
	}

	log.Info().Stringer("customer_id", c.ID).Msg("service: customer registered")
	return c, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*Customer, error) {
	c, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("service: failed to fetch customer by email")
		return nil, fmt.Errorf("service: failed to fetch customer by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return c, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("customer_id", id).Msg("service: failed to fetch customer by id")
		return nil, fmt.Errorf("service: failed to fetch customer by id: %w", err)
	}
	return c, nil
}

func (s *service) RecordPurchase(ctx context.Context, id uuid.UUID, orderTotal decimal.Decimal) (*Customer, error) {
	points := PointsForOrder(orderTotal)

	c, err := s.repo.RecordPurchase(ctx, id, orderTotal, points)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("customer_id", id).Msg("service: failed to record purchase")
		return nil, fmt.Errorf("service: failed to record purchase: %w", err)
	}

	log.Info().
		Stringer("customer_id", id).
		Str("order_total", orderTotal.String()).
		Int64("points_earned", points).
		Str("membership_level", c.MembershipLevel.String()).
		Msg("service: purchase recorded")

	return c, nil
}
