package customer

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type MembershipLevel string

const (
	LevelBronze   MembershipLevel = "Bronze"
	LevelSilver   MembershipLevel = "Silver"
	LevelGold     MembershipLevel = "Gold"
	LevelPlatinum MembershipLevel = "Platinum"
)

func (l MembershipLevel) String() string {
	return string(l)
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

type Customer struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	Email           string          `json:"email" db:"email"`
	PasswordHash    string          `json:"-" db:"password_hash"`
	Role            Role            `json:"role" db:"role"`
	TotalSpent      decimal.Decimal `json:"total_spent" db:"total_spent"`
	TotalPurchases  int             `json:"total_purchases" db:"total_purchases"`
	MembershipLevel MembershipLevel `json:"membership_level" db:"membership_level"`
	LoyaltyPoints   int64           `json:"loyalty_points" db:"loyalty_points"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

func (c *Customer) IsAdmin() bool {
	return c.Role == RoleAdmin
}
