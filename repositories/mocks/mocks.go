// Package mocks provides testify mocks of the repository interfaces for service and handler tests.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories"
)

// TxManager runs transactional callbacks inline. Commit and Rollback are counted, not mocked.
type TxManager struct {
	Begun      int
	Committed  int
	RolledBack int
	BeginErr   error
}

// Begin starts a fake transaction
func (m *TxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	m.Begun++
	return &Tx{mgr: m, ctx: ctx}, nil
}

// InTransaction executes fn and commits unless it fails
func (m *TxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Tx is the fake transaction handed out by TxManager
type Tx struct {
	mgr *TxManager
	ctx context.Context
}

// Commit implements repositories.Transaction
func (t *Tx) Commit() error {
	t.mgr.Committed++
	return nil
}

// Rollback implements repositories.Transaction
func (t *Tx) Rollback() error {
	t.mgr.RolledBack++
	return nil
}

// Context implements repositories.Transaction
func (t *Tx) Context() context.Context {
	return t.ctx
}

// OrganizationRepository is a mock implementation of repositories.OrganizationRepository
type OrganizationRepository struct {
	mock.Mock
}

func (m *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	args := m.Called(ctx, org)
	return args.Error(0)
}

func (m *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *OrganizationRepository) WithTx(tx repositories.Transaction) repositories.OrganizationRepository {
	return m
}

// UserRepository is a mock implementation of repositories.UserRepository
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepository) GetByAuthID(ctx context.Context, authID string) (*models.User, error) {
	args := m.Called(ctx, authID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepository) GetByInviteToken(ctx context.Context, token string) (*models.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *UserRepository) ListByOrgID(ctx context.Context, orgID uuid.UUID) ([]*models.User, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *UserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepository) RedeemInvite(ctx context.Context, user *models.User, token string) error {
	args := m.Called(ctx, user, token)
	return args.Error(0)
}

func (m *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *UserRepository) WithTx(tx repositories.Transaction) repositories.UserRepository {
	return m
}

// ManualRepository is a mock implementation of repositories.ManualRepository
type ManualRepository struct {
	mock.Mock
}

func (m *ManualRepository) Create(ctx context.Context, manual *models.Manual) error {
	args := m.Called(ctx, manual)
	return args.Error(0)
}

func (m *ManualRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Manual, error) {
	args := m.Called(ctx, orgID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Manual), args.Error(1)
}

func (m *ManualRepository) List(ctx context.Context, orgID uuid.UUID, filter models.ManualFilter) ([]*models.Manual, error) {
	args := m.Called(ctx, orgID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Manual), args.Error(1)
}

func (m *ManualRepository) Update(ctx context.Context, manual *models.Manual) error {
	args := m.Called(ctx, manual)
	return args.Error(0)
}

func (m *ManualRepository) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

func (m *ManualRepository) IncrementViewCount(ctx context.Context, orgID, id uuid.UUID) error {
	args := m.Called(ctx, orgID, id)
	return args.Error(0)
}

func (m *ManualRepository) WithTx(tx repositories.Transaction) repositories.ManualRepository {
	return m
}

// TranslationRepository is a mock implementation of repositories.TranslationRepository
type TranslationRepository struct {
	mock.Mock
}

func (m *TranslationRepository) Get(ctx context.Context, manualID uuid.UUID, target models.Locale) (*models.ManualTranslation, error) {
	args := m.Called(ctx, manualID, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ManualTranslation), args.Error(1)
}

func (m *TranslationRepository) Create(ctx context.Context, translation *models.ManualTranslation) error {
	args := m.Called(ctx, translation)
	return args.Error(0)
}

func (m *TranslationRepository) DeleteByManual(ctx context.Context, manualID uuid.UUID) (int64, error) {
	args := m.Called(ctx, manualID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *TranslationRepository) WithTx(tx repositories.Transaction) repositories.TranslationRepository {
	return m
}

// QuizRepository is a mock implementation of repositories.QuizRepository
type QuizRepository struct {
	mock.Mock
}

func (m *QuizRepository) CreateSession(ctx context.Context, session *models.QuizSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *QuizRepository) CreateQuestions(ctx context.Context, questions []*models.QuizQuestion) error {
	args := m.Called(ctx, questions)
	return args.Error(0)
}

func (m *QuizRepository) GetSessionForUser(ctx context.Context, sessionID, userID uuid.UUID) (*models.QuizSession, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuizSession), args.Error(1)
}

func (m *QuizRepository) ListQuestions(ctx context.Context, sessionID uuid.UUID) ([]*models.QuizQuestion, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.QuizQuestion), args.Error(1)
}

func (m *QuizRepository) CreateAnswers(ctx context.Context, answers []*models.QuizAnswer) error {
	args := m.Called(ctx, answers)
	return args.Error(0)
}

func (m *QuizRepository) CompleteSession(ctx context.Context, session *models.QuizSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *QuizRepository) ListResults(ctx context.Context, orgID uuid.UUID, filter models.QuizResultFilter) ([]*models.QuizResult, error) {
	args := m.Called(ctx, orgID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.QuizResult), args.Error(1)
}

func (m *QuizRepository) ListCompletedByUser(ctx context.Context, userID uuid.UUID) ([]*models.QuizResult, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.QuizResult), args.Error(1)
}

func (m *QuizRepository) WithTx(tx repositories.Transaction) repositories.QuizRepository {
	return m
}

// IdentityRepository is a mock implementation of repositories.IdentityRepository
type IdentityRepository struct {
	mock.Mock
}

func (m *IdentityRepository) Create(ctx context.Context, identity *repositories.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *IdentityRepository) GetByEmail(ctx context.Context, email string) (*repositories.Identity, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.Identity), args.Error(1)
}

func (m *IdentityRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// AuditRepository is a mock implementation of repositories.AuditRepository
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditRepository) GetByOrgID(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	args := m.Called(ctx, orgID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AuditLog), args.Error(1)
}

func (m *AuditRepository) WithTx(tx repositories.Transaction) repositories.AuditRepository {
	return m
}
