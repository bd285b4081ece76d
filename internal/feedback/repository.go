package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("feedback not found")
	ErrAlreadyExists = errors.New("feedback already submitted for this order")
)

type Repository interface {
	Create(ctx context.Context, f *Feedback) error
	GetByID(ctx context.Context, id uuid.UUID) (*Feedback, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Feedback, error)
	SetAdminResponse(ctx context.Context, id uuid.UUID, response string) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, f *Feedback) error {
	if f.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate feedback ID: %w", err)
		}
		f.ID = id
	}

	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	query := `
		INSERT INTO feedback (id, order_id, customer_id, rating, delivery_rating, comment, admin_response, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query, f.ID, f.OrderID, f.CustomerID, f.Rating, f.DeliveryRating, f.Comment, f.AdminResponse, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("repository: failed to insert feedback: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Feedback, error) {
	query := `
		SELECT id, order_id, customer_id, rating, delivery_rating, comment, admin_response, created_at, updated_at
		FROM feedback
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *postgresRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Feedback, error) {
	query := `
		SELECT id, order_id, customer_id, rating, delivery_rating, comment, admin_response, created_at, updated_at
		FROM feedback
		WHERE order_id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, orderID))
}

func (r *postgresRepository) scanOne(row pgx.Row) (*Feedback, error) {
	var f Feedback
	err := row.Scan(
		&f.ID,
		&f.OrderID,
		&f.CustomerID,
		&f.Rating,
		&f.DeliveryRating,
		&f.Comment,
		&f.AdminResponse,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select feedback: %w", err)
	}
	return &f, nil
}

func (r *postgresRepository) SetAdminResponse(ctx context.Context, id uuid.UUID, response string) error {
	query := `UPDATE feedback SET admin_response = $2, updated_at = $3 WHERE id = $1`
	cmdTag, err := r.db.Exec(ctx, query, id, response, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("repository: failed to set admin response for feedback %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
