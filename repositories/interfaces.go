package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/manual-share/models"
)

// ErrNotFound is returned (wrapped) when a row does not exist
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned (wrapped) when a unique constraint is violated
var ErrDuplicate = errors.New("duplicate record")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// OrganizationRepository handles organization data operations
type OrganizationRepository interface {
	// Create creates a new organization
	Create(ctx context.Context, org *models.Organization) error

	// GetByID retrieves an organization by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) OrganizationRepository
}

// UserRepository handles user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByAuthID retrieves a user by the identity provider subject
	GetByAuthID(ctx context.Context, authID string) (*models.User, error)

	// GetByInviteToken retrieves a user by a pending invite token
	GetByInviteToken(ctx context.Context, token string) (*models.User, error)

	// ListByOrgID retrieves all users for an organization, newest first
	ListByOrgID(ctx context.Context, orgID uuid.UUID) ([]*models.User, error)

	// Update writes every mutable column of the user
	Update(ctx context.Context, user *models.User) error

	// RedeemInvite links an onboarded identity to the user, but only while
	// token is still the user's pending invite. A token that was already
	// redeemed reports ErrNotFound.
	RedeemInvite(ctx context.Context, user *models.User, token string) error

	// Delete deletes a user
	Delete(ctx context.Context, id uuid.UUID) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) UserRepository
}

// ManualRepository handles manual data operations. Reads and writes are always
// scoped by organization so another tenant's rows look like missing rows.
type ManualRepository interface {
	// Create creates a new manual
	Create(ctx context.Context, manual *models.Manual) error

	// GetByID retrieves a manual within an organization
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Manual, error)

	// List retrieves the organization's manuals, most recently updated first
	List(ctx context.Context, orgID uuid.UUID, filter models.ManualFilter) ([]*models.Manual, error)

	// Update writes every mutable column of the manual
	Update(ctx context.Context, manual *models.Manual) error

	// Delete hard deletes a manual
	Delete(ctx context.Context, orgID, id uuid.UUID) error

	// IncrementViewCount bumps the view counter
	IncrementViewCount(ctx context.Context, orgID, id uuid.UUID) error

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) ManualRepository
}

// TranslationRepository handles cached manual translations
type TranslationRepository interface {
	// Get retrieves the translation of a manual into a language, with the manual's org
	Get(ctx context.Context, manualID uuid.UUID, target models.Locale) (*models.ManualTranslation, error)

	// Create stores a translation; returns ErrDuplicate when one already exists
	Create(ctx context.Context, translation *models.ManualTranslation) error

	// DeleteByManual drops every cached translation of a manual
	DeleteByManual(ctx context.Context, manualID uuid.UUID) (int64, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) TranslationRepository
}

// QuizRepository handles quiz sessions, questions and answers
type QuizRepository interface {
	// CreateSession creates a new quiz session
	CreateSession(ctx context.Context, session *models.QuizSession) error

	// CreateQuestions stores the questions of a session
	CreateQuestions(ctx context.Context, questions []*models.QuizQuestion) error

	// GetSessionForUser retrieves a session owned by the user
	GetSessionForUser(ctx context.Context, sessionID, userID uuid.UUID) (*models.QuizSession, error)

	// ListQuestions retrieves the questions of a session in order
	ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]*models.QuizQuestion, error)

	// CreateAnswers stores graded answers
	CreateAnswers(ctx context.Context, answers []*models.QuizAnswer) error

	// CompleteSession writes the final score and completion time
	CompleteSession(ctx context.Context, session *models.QuizSession) error

	// ListResults retrieves completed and pending sessions of an organization
	ListResults(ctx context.Context, orgID uuid.UUID, filter models.QuizResultFilter) ([]*models.QuizResult, error)

	// ListCompletedByUser retrieves a user's completed sessions, newest first
	ListCompletedByUser(ctx context.Context, userID uuid.UUID) ([]*models.QuizResult, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) QuizRepository
}

// IdentityRepository stores local password identities
type IdentityRepository interface {
	// Create stores a new identity; returns ErrDuplicate for a taken email
	Create(ctx context.Context, identity *Identity) error

	// GetByEmail retrieves an identity by email
	GetByEmail(ctx context.Context, email string) (*Identity, error)

	// Delete deletes an identity
	Delete(ctx context.Context, id string) error
}

// Identity is an email/password credential of the local identity provider
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// GetByOrgID retrieves audit logs for an organization with pagination
	GetByOrgID(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)

	// WithTx returns a new repository instance bound to the transaction
	WithTx(tx Transaction) AuditRepository
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Organizations OrganizationRepository
	Users         UserRepository
	Manuals       ManualRepository
	Translations  TranslationRepository
	Quizzes       QuizRepository
	Identities    IdentityRepository
	AuditLogs     AuditRepository
}
