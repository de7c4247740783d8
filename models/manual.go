package models

import (
	"time"

	"github.com/google/uuid"
)

// ManualStatus is the publication state of a manual
type ManualStatus string

const (
	ManualStatusDraft     ManualStatus = "draft"
	ManualStatusPublished ManualStatus = "published"
)

// IsValid reports whether s is a known status
func (s ManualStatus) IsValid() bool {
	return s == ManualStatusDraft || s == ManualStatusPublished
}

// ManualCategory groups manuals in the staff listing
type ManualCategory string

const (
	CategoryOnboarding      ManualCategory = "onboarding"
	CategoryOperations      ManualCategory = "operations"
	CategorySafety          ManualCategory = "safety"
	CategoryCustomerService ManualCategory = "customer_service"
)

// IsValid reports whether c is a known category
func (c ManualCategory) IsValid() bool {
	switch c {
	case CategoryOnboarding, CategoryOperations, CategorySafety, CategoryCustomerService:
		return true
	}
	return false
}

// Manual is an operational manual owned by one organization
type Manual struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	OrgID          uuid.UUID      `json:"organization_id" db:"organization_id"`
	Title          string         `json:"title" db:"title"`
	Description    *string        `json:"description,omitempty" db:"description"`
	Category       ManualCategory `json:"category" db:"category"`
	Status         ManualStatus   `json:"status" db:"status"`
	IsVisible      bool           `json:"is_visible" db:"is_visible"`
	Language       Locale         `json:"language" db:"language"`
	Blocks         Blocks         `json:"blocks" db:"blocks"`
	DepartmentTags []string       `json:"department_tags" db:"department_tags"`
	ParentManualID *uuid.UUID     `json:"parent_manual_id" db:"parent_manual_id"`
	ViewCount      int            `json:"view_count" db:"view_count"`
	CreatedBy      *uuid.UUID     `json:"created_by" db:"created_by"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Manual model
func (Manual) TableName() string {
	return "manuals"
}

// NewManual creates a visible manual with renumbered blocks
func NewManual(orgID uuid.UUID, createdBy uuid.UUID, title string, category ManualCategory, status ManualStatus, language Locale, blocks Blocks) *Manual {
	now := time.Now()
	if blocks == nil {
		blocks = Blocks{}
	}
	blocks.Renumber()
	return &Manual{
		ID:             uuid.New(),
		OrgID:          orgID,
		Title:          title,
		Category:       category,
		Status:         status,
		IsVisible:      true,
		Language:       language,
		Blocks:         blocks,
		DepartmentTags: []string{},
		CreatedBy:      &createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsVisibleToStaff reports whether staff listings include the manual
func (m *Manual) IsVisibleToStaff() bool {
	return m.Status == ManualStatusPublished && m.IsVisible
}

// ManualFilter narrows a manual listing
type ManualFilter struct {
	Status      *ManualStatus
	VisibleOnly bool
}

// ManualPatch carries the fields of a partial update; nil means "leave as is"
type ManualPatch struct {
	Title          *string
	Description    *string
	Category       *ManualCategory
	Status         *ManualStatus
	Language       *Locale
	Blocks         *Blocks
	IsVisible      *bool
	DepartmentTags *[]string
}

// IsEmpty reports whether the patch changes nothing
func (p ManualPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.Status == nil &&
		p.Language == nil && p.Blocks == nil && p.IsVisible == nil && p.DepartmentTags == nil
}

// Apply writes the supplied fields onto m and bumps UpdatedAt
func (p ManualPatch) Apply(m *Manual) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Description != nil {
		m.Description = p.Description
	}
	if p.Category != nil {
		m.Category = *p.Category
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.Language != nil {
		m.Language = *p.Language
	}
	if p.Blocks != nil {
		blocks := p.Blocks.Clone()
		blocks.Renumber()
		m.Blocks = blocks
	}
	if p.IsVisible != nil {
		m.IsVisible = *p.IsVisible
	}
	if p.DepartmentTags != nil {
		m.DepartmentTags = *p.DepartmentTags
	}
	m.UpdatedAt = time.Now()
}

// ChangedContent reports whether the patch touches translatable content
func (p ManualPatch) ChangedContent() bool {
	return p.Title != nil || p.Blocks != nil
}
