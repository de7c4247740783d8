package models

import (
	"time"

	"github.com/google/uuid"
)

// ManualTranslation is the cached machine translation of a manual.
// There is at most one row per (manual, target language).
type ManualTranslation struct {
	ID               uuid.UUID `json:"id" db:"id"`
	ManualID         uuid.UUID `json:"manual_id" db:"manual_id"`
	TargetLanguage   Locale    `json:"target_language" db:"target_language"`
	TranslatedTitle  string    `json:"translated_title" db:"translated_title"`
	TranslatedBlocks Blocks    `json:"translated_blocks" db:"translated_blocks"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`

	// OrgID is the owning organization of the manual, loaded by join
	OrgID uuid.UUID `json:"-" db:"-"`
}

// TableName returns the table name for the ManualTranslation model
func (ManualTranslation) TableName() string {
	return "manual_translations"
}

// NewManualTranslation creates a translation row
func NewManualTranslation(manualID uuid.UUID, target Locale, title string, blocks Blocks) *ManualTranslation {
	now := time.Now()
	return &ManualTranslation{
		ID:               uuid.New(),
		ManualID:         manualID,
		TargetLanguage:   target,
		TranslatedTitle:  title,
		TranslatedBlocks: blocks,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
