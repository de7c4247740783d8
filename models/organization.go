package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan is the billing plan of an organization
type Plan string

const (
	PlanFree Plan = "free"
	PlanPaid Plan = "paid"
)

// Organization represents a tenant in the multi-tenant system
type Organization struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Plan      Plan      `json:"plan" db:"plan"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Organization model
func (Organization) TableName() string {
	return "organizations"
}

// NewOrganization creates a new Organization on the free plan
func NewOrganization(name string) *Organization {
	now := time.Now()
	return &Organization{
		ID:        uuid.New(),
		Name:      name,
		Plan:      PlanFree,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
