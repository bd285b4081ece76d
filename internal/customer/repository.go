package customer

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
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound    = errors.New("customer not found")
	ErrEmailExists = errors.New("email already registered")
)

type Repository interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	GetByEmail(ctx context.Context, email string) (*Customer, error)
	// RecordPurchase atomically adds an order's total, one purchase and the
	// earned loyalty points to the customer's tallies and recomputes the
	// membership level from the new cumulative spend.
	RecordPurchase(ctx context.Context, id uuid.UUID, orderTotal decimal.Decimal, points int64) (*Customer, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, c *Customer) error {
	if c.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate customer ID: %w", err)
		}
		c.ID = id
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO customers (id, name, email, password_hash, role, total_spent, total_purchases, membership_level, loyalty_points, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID,
		c.Name,
		c.Email,
		c.PasswordHash,
		string(c.Role),
		c.TotalSpent,
		c.TotalPurchases,
		string(c.MembershipLevel),
		c.LoyaltyPoints,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrEmailExists
		}
		return fmt.Errorf("repository: failed to insert customer: %w", err)
	}

	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	query := `
		SELECT id, name, email, password_hash, role, total_spent, total_purchases, membership_level, loyalty_points, created_at, updated_at
		FROM customers
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*Customer, error) {
	query := `
		SELECT id, name, email, password_hash, role, total_spent, total_purchases, membership_level, loyalty_points, created_at, updated_at
		FROM customers
		WHERE email = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, email))
}

func (r *postgresRepository) scanOne(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.PasswordHash,
		&c.Role,
		&c.TotalSpent,
		&c.TotalPurchases,
		&c.MembershipLevel,
		&c.LoyaltyPoints,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select customer: %w", err)
	}
	return &c, nil
}

func (r *postgresRepository) RecordPurchase(ctx context.Context, id uuid.UUID, orderTotal decimal.Decimal, points int64) (c *Customer, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("customer_id", id).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("customer_id", id).Msg("Failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			c = nil
		}
	}()

	// Single atomic increment: the tallies are touched by concurrent order
	// placements, so a read-then-write pair would race.
	incrementQuery := `
		UPDATE customers
		SET total_spent = total_spent + $2,
		    total_purchases = total_purchases + 1,
		    loyalty_points = loyalty_points + $3,
		    updated_at = $4
		WHERE id = $1
		RETURNING total_spent
	`
	var newTotalSpent decimal.Decimal
	err = tx.QueryRow(ctx, incrementQuery, id, orderTotal, points, time.Now().UTC()).Scan(&newTotalSpent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to record purchase for customer %s: %w", id, err)
	}

	// Level derives from the post-increment spend returned by the same
	// statement, so the tier can only move forward consistently.
	newLevel := LevelForSpend(newTotalSpent)
	levelQuery := `
		UPDATE customers
		SET membership_level = $2
		WHERE id = $1
		RETURNING id, name, email, password_hash, role, total_spent, total_purchases, membership_level, loyalty_points, created_at, updated_at
	`
	c, err = r.scanOne(tx.QueryRow(ctx, levelQuery, id, string(newLevel)))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to update membership level for customer %s: %w", id, err)
	}

	return c, nil
}
