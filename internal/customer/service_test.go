package customer_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/plantora/plantstore/internal/customer"
)

type mockRepository struct {
	createFunc         func(ctx context.Context, c *customer.Customer) error
	getByIDFunc        func(ctx context.Context, id uuid.UUID) (*customer.Customer, error)
	getByEmailFunc     func(ctx context.Context, email string) (*customer.Customer, error)
	recordPurchaseFunc func(ctx context.Context, id uuid.UUID, orderTotal decimal.Decimal, points int64) (*customer.Customer, error)
}

func (m *mockRepository) Create(ctx context.Context, c *customer.Customer) error {
	return m.createFunc(ctx, c)
}

func (m *mockRepository) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockRepository) GetByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	return m.getByEmailFunc(ctx, email)
}

func (m *mockRepository) RecordPurchase(ctx context.Context, id uuid.UUID, orderTotal decimal.Decimal, points int64) (*customer.Customer, error) {
	return m.recordPurchaseFunc(ctx, id, orderTotal, points)
}

func TestService_Register(t *testing.T) {
	var saved *customer.Customer
	repo := &mockRepository{
		createFunc: func(ctx context.Context, c *customer.Customer) error {
			saved = c
			return nil
		},
	}
	svc := customer.NewService(repo)

	input := &customer.Customer{
		Name:  "Rose Gardner",
		Email: "rose@example.com",
		// Tallies claimed by the request must be ignored.
		Role:            customer.RoleAdmin,
		TotalSpent:      decimal.NewFromInt(99999),
		MembershipLevel: customer.LevelPlatinum,
		LoyaltyPoints:   500,
	}

	created, err := svc.Register(context.Background(), input, "greenthumb42")
	require.NoError(t, err)
	require.NotNil(t, saved)

	assert.Equal(t, customer.RoleCustomer, created.Role)
	assert.True(t, created.TotalSpent.IsZero())
	assert.Equal(t, 0, created.TotalPurchases)
	assert.Equal(t, customer.LevelBronze, created.MembershipLevel)
	assert.Equal(t, int64(0), created.LoyaltyPoints)

	assert.NotEqual(t, "greenthumb42", created.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("greenthumb42")))
}

func TestService_Register_EmptyPassword(t *testing.T) {
	svc := customer.NewService(&mockRepository{})

	_, err := svc.Register(context.Background(), &customer.Customer{Email: "x@example.com"}, "")
	assert.Error(t, err)
}

func TestService_Login(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("greenthumb42"), bcrypt.DefaultCost)
	require.NoError(t, err)

	stored := &customer.Customer{
		Email:        "rose@example.com",
		PasswordHash: string(hash),
	}

	repo := &mockRepository{
		getByEmailFunc: func(ctx context.Context, email string) (*customer.Customer, error) {
			if email == stored.Email {
				return stored, nil
			}
			return nil, customer.ErrNotFound
		},
	}
	svc := customer.NewService(repo)

	t.Run("success", func(t *testing.T) {
		c, err := svc.Login(context.Background(), "rose@example.com", "greenthumb42")
		require.NoError(t, err)
		assert.Equal(t, stored.Email, c.Email)
	})

	t.Run("wrong_password", func(t *testing.T) {
		_, err := svc.Login(context.Background(), "rose@example.com", "wrong")
		assert.ErrorIs(t, err, customer.ErrInvalidCredentials)
	})

	t.Run("unknown_email", func(t *testing.T) {
		// Unknown emails get the same error as bad passwords.
		_, err := svc.Login(context.Background(), "nobody@example.com", "greenthumb42")
		assert.ErrorIs(t, err, customer.ErrInvalidCredentials)
	})
}

func TestService_RecordPurchase_PassesDerivedPoints(t *testing.T) {
	id, err := uuid.NewV4()
	require.NoError(t, err)

	var gotTotal decimal.Decimal
	var gotPoints int64
	repo := &mockRepository{
		recordPurchaseFunc: func(ctx context.Context, cid uuid.UUID, orderTotal decimal.Decimal, points int64) (*customer.Customer, error) {
			gotTotal = orderTotal
			gotPoints = points
			return &customer.Customer{ID: cid, MembershipLevel: customer.LevelSilver}, nil
		},
	}
	svc := customer.NewService(repo)

	_, err = svc.RecordPurchase(context.Background(), id, decimal.RequireFromString("2599.50"))
	require.NoError(t, err)

	assert.True(t, gotTotal.Equal(decimal.RequireFromString("2599.50")))
	assert.Equal(t, int64(25), gotPoints)
}
