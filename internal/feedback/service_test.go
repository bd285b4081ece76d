package feedback_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantora/plantstore/internal/customer"
	"github.com/plantora/plantstore/internal/feedback"
	"github.com/plantora/plantstore/internal/order"
)

type mockFeedbackRepo struct {
	createFunc       func(ctx context.Context, f *feedback.Feedback) error
	getByIDFunc      func(ctx context.Context, id uuid.UUID) (*feedback.Feedback, error)
	getByOrderIDFunc func(ctx context.Context, orderID uuid.UUID) (*feedback.Feedback, error)
	setResponseFunc  func(ctx context.Context, id uuid.UUID, response string) error
}

func (m *mockFeedbackRepo) Create(ctx context.Context, f *feedback.Feedback) error {
	return m.createFunc(ctx, f)
}

func (m *mockFeedbackRepo) GetByID(ctx context.Context, id uuid.UUID) (*feedback.Feedback, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockFeedbackRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*feedback.Feedback, error) {
	return m.getByOrderIDFunc(ctx, orderID)
}

func (m *mockFeedbackRepo) SetAdminResponse(ctx context.Context, id uuid.UUID, response string) error {
	return m.setResponseFunc(ctx, id, response)
}

type mockOrderRepo struct {
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

func (m *mockOrderRepo) Create(ctx context.Context, o *order.Order) error { return nil }
func (m *mockOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, id)
}
func (m *mockOrderRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]order.Order, error) {
	return nil, nil
}
func (m *mockOrderRepo) ListAll(ctx context.Context) ([]order.Order, error) { return nil, nil }
func (m *mockOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status, trackingNumber, notes string) error {
	return nil
}
func (m *mockOrderRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, ps order.PaymentStatus) error {
	return nil
}
func (m *mockOrderRepo) ApplyStockDeduction(ctx context.Context, orderID uuid.UUID) (bool, error) {
	return false, nil
}
func (m *mockOrderRepo) Cancel(ctx context.Context, orderID uuid.UUID, refund bool) error {
	return nil
}

func mustUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.NewV4()
	require.NoError(t, err)
	return id
}

func TestService_Create(t *testing.T) {
	ownerID := mustUUID(t)
	orderID := mustUUID(t)
	owner := &customer.Customer{ID: ownerID, Role: customer.RoleCustomer}
	stranger := &customer.Customer{ID: mustUUID(t), Role: customer.RoleCustomer}

	deliveredOrder := &order.Order{ID: orderID, CustomerID: ownerID, Status: order.StatusDelivered}
	pendingOrder := &order.Order{ID: orderID, CustomerID: ownerID, Status: order.StatusPending}

	tests := []struct {
		name      string
		actor     *customer.Customer
		order     *order.Order
		rating    int
		createErr error
		wantErr   error
	}{
		{"success", owner, deliveredOrder, 5, nil, nil},
		{"not_owner", stranger, deliveredOrder, 5, nil, feedback.ErrForbidden},
		{"not_delivered", owner, pendingOrder, 5, nil, feedback.ErrOrderNotDelivered},
		{"rating_too_low", owner, deliveredOrder, 0, nil, feedback.ErrInvalidRating},
		{"rating_too_high", owner, deliveredOrder, 6, nil, feedback.ErrInvalidRating},
		{"duplicate", owner, deliveredOrder, 4, feedback.ErrAlreadyExists, feedback.ErrAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockFeedbackRepo{
				createFunc: func(ctx context.Context, f *feedback.Feedback) error {
					return tt.createErr
				},
			}
			orders := &mockOrderRepo{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
					return tt.order, nil
				},
			}
			svc := feedback.NewService(repo, orders)

			f := &feedback.Feedback{
				OrderID:        orderID,
				Rating:         tt.rating,
				DeliveryRating: 4,
				Comment:        "Arrived healthy and well packed",
			}

			created, err := svc.Create(context.Background(), tt.actor, f)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.actor.ID, created.CustomerID)
		})
	}
}

func TestService_Respond_AdminOnly(t *testing.T) {
	feedbackID := mustUUID(t)
	stored := &feedback.Feedback{ID: feedbackID, CustomerID: mustUUID(t), Rating: 3}

	repo := &mockFeedbackRepo{
		setResponseFunc: func(ctx context.Context, id uuid.UUID, response string) error {
			stored.AdminResponse = response
			return nil
		},
		getByIDFunc: func(ctx context.Context, id uuid.UUID) (*feedback.Feedback, error) {
			return stored, nil
		},
	}
	svc := feedback.NewService(repo, &mockOrderRepo{})

	shopper := &customer.Customer{ID: mustUUID(t), Role: customer.RoleCustomer}
	_, err := svc.Respond(context.Background(), shopper, feedbackID, "Sorry to hear that")
	assert.ErrorIs(t, err, feedback.ErrForbidden)

	admin := &customer.Customer{ID: mustUUID(t), Role: customer.RoleAdmin}
	updated, err := svc.Respond(context.Background(), admin, feedbackID, "Sorry to hear that")
	require.NoError(t, err)
	assert.Equal(t, "Sorry to hear that", updated.AdminResponse)
}
