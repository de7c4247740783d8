// Package auth implements login, organization signup and staff onboarding
// on top of the external identity provider.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/upb/manual-share/middleware"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories"
	"github.com/upb/manual-share/services"
	"github.com/upb/manual-share/services/audit"
	"github.com/upb/manual-share/services/identity"
	"github.com/upb/manual-share/utils"
	"go.uber.org/zap"
)

// MinPasswordLength is the shortest password accepted at signup and onboarding
const MinPasswordLength = 8

// SessionIssuer signs and revokes session tokens
type SessionIssuer interface {
	Issue(user *models.User) (string, time.Time, error)
	Revoke(ctx context.Context, claims *middleware.Claims) error
}

// Session is an issued session token
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// LoginResult is returned by Login and Onboard
type LoginResult struct {
	User    *models.User
	Session Session
}

// SignupResult is returned by Signup
type SignupResult struct {
	User         *models.User
	Organization *models.Organization
}

// InviteInfo describes a pending invite
type InviteInfo struct {
	UserID           uuid.UUID
	DisplayName      string
	OrganizationName string
	Language         models.Locale
}

// Service handles authentication flows
type Service struct {
	txMgr    repositories.TransactionManager
	orgs     repositories.OrganizationRepository
	users    repositories.UserRepository
	provider identity.Provider
	sessions SessionIssuer
	audit    audit.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new auth service
func NewService(
	txMgr repositories.TransactionManager,
	orgs repositories.OrganizationRepository,
	users repositories.UserRepository,
	provider identity.Provider,
	sessions SessionIssuer,
	recorder audit.Recorder,
	logger *zap.Logger,
) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		txMgr:    txMgr,
		orgs:     orgs,
		users:    users,
		provider: provider,
		sessions: sessions,
		audit:    recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Login verifies credentials with the identity provider and opens a session
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "email and password are required", nil)
	}

	subject, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, s.providerError("sign in", err)
	}

	user, err := s.users.GetByAuthID(ctx, subject)
	if err != nil {
		s.logger.Error("identity has no user record",
			zap.String("subject", subject),
			zap.Error(err))
		return nil, services.FromRepository(err, services.ErrUserRecordMissing, nil, "failed to load user")
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("org_id", user.OrgID.String()))

	return &LoginResult{User: user, Session: session}, nil
}

// Signup creates an organization with its first admin. The identity is created
// first and deleted again when the database transaction fails.
func (s *Service) Signup(ctx context.Context, orgName, adminName, email, password string) (*SignupResult, error) {
	orgName = strings.TrimSpace(orgName)
	adminName = strings.TrimSpace(adminName)
	email = strings.TrimSpace(email)

	if orgName == "" || adminName == "" || email == "" || password == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "all fields are required", nil)
	}
	if err := utils.ValidateEmail(email); err != nil {
		return nil, services.Derive(services.ErrInvalidEmail, err)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, services.ErrPasswordTooShort
	}

	subject, err := s.provider.CreateUser(ctx, email, password, map[string]interface{}{
		"display_name": adminName,
	})
	if err != nil {
		return nil, s.providerError("create identity", err)
	}

	publicID, err := utils.NewPublicUserID("admin")
	if err != nil {
		s.compensate(subject)
		return nil, services.WrapInternal("failed to generate user id", err)
	}

	org := models.NewOrganization(orgName)
	user := models.NewUser(org.ID, publicID, adminName, models.RoleAdmin, models.DefaultLocale)
	user.IsAdmin = true
	user.CompleteOnboarding(subject, email)

	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		if err := s.orgs.WithTx(tx).Create(ctx, org); err != nil {
			return services.WrapInternal("failed to create organization", err)
		}
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			return services.FromRepository(err, nil, services.ErrDuplicateEmail, "failed to create admin user")
		}
		return nil
	})
	if err != nil {
		s.compensate(subject)
		return nil, err
	}

	s.audit.Record(models.Actor{UserID: user.ID, OrgID: org.ID, Role: user.Role, RequestID: middleware.GetRequestIDFromContext(ctx)},
		models.AuditActionSignup, "organization", org.ID, map[string]interface{}{"name": org.Name})

	s.logger.Info("organization signed up",
		zap.String("org_id", org.ID.String()),
		zap.String("user_id", user.ID.String()))

	return &SignupResult{User: user, Organization: org}, nil
}

// VerifyToken checks an invite token and describes the pending invite
func (s *Service) VerifyToken(ctx context.Context, token string) (*InviteInfo, error) {
	user, err := s.pendingInvite(ctx, token)
	if err != nil {
		return nil, err
	}

	org, err := s.orgs.GetByID(ctx, user.OrgID)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrOrganizationNotFound, nil, "failed to load organization")
	}

	return &InviteInfo{
		UserID:           user.ID,
		DisplayName:      user.DisplayName,
		OrganizationName: org.Name,
		Language:         user.Language,
	}, nil
}

// Onboard redeems an invite: it creates the identity, links it to the user
// row, burns the token and opens a session.
func (s *Service) Onboard(ctx context.Context, token, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if token == "" || email == "" || password == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "all fields are required", nil)
	}
	if err := utils.ValidateEmail(email); err != nil {
		return nil, services.Derive(services.ErrInvalidEmail, err)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, services.ErrPasswordTooShort
	}

	user, err := s.pendingInvite(ctx, token)
	if err != nil {
		return nil, err
	}

	subject, err := s.provider.CreateUser(ctx, email, password, map[string]interface{}{
		"display_name": user.DisplayName,
		"user_id":      user.UserID,
	})
	if err != nil {
		return nil, s.providerError("create identity", err)
	}

	inviteToken := strings.TrimSpace(token)
	user.CompleteOnboarding(subject, email)
	if err := s.users.RedeemInvite(ctx, user, inviteToken); err != nil {
		// a concurrent onboard already spent the token
		s.compensate(subject)
		return nil, services.FromRepository(err, services.ErrInviteTokenInvalid, services.ErrDuplicateEmail, "failed to redeem invite")
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.audit.Record(models.Actor{UserID: user.ID, OrgID: user.OrgID, Role: user.Role, RequestID: middleware.GetRequestIDFromContext(ctx)},
		models.AuditActionOnboarded, "user", user.ID, nil)

	s.logger.Info("user onboarded",
		zap.String("user_id", user.ID.String()),
		zap.String("org_id", user.OrgID.String()))

	return &LoginResult{User: user, Session: session}, nil
}

// Logout revokes the current session
func (s *Service) Logout(ctx context.Context, claims *middleware.Claims) error {
	if err := s.sessions.Revoke(ctx, claims); err != nil {
		return services.WrapInternal("failed to revoke session", err)
	}
	return nil
}

// Me returns the user behind the session
func (s *Service) Me(ctx context.Context, actor models.Actor) (*models.User, error) {
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrUserNotFound, nil, "failed to load user")
	}
	if user.OrgID != actor.OrgID {
		return nil, services.ErrUserNotFound
	}
	return user, nil
}

// pendingInvite resolves a token that can still be redeemed
func (s *Service) pendingInvite(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "token is required", nil)
	}

	user, err := s.users.GetByInviteToken(ctx, token)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrInviteTokenInvalid, nil, "failed to look up invite")
	}
	if user.InviteExpired(s.now()) {
		return nil, services.ErrInviteTokenExpired
	}
	if user.IsOnboarded {
		return nil, services.ErrAlreadyOnboarded
	}
	return user, nil
}

func (s *Service) issue(user *models.User) (Session, error) {
	token, expiresAt, err := s.sessions.Issue(user)
	if err != nil {
		return Session{}, services.WrapInternal("failed to issue session", err)
	}
	return Session{Token: token, ExpiresAt: expiresAt}, nil
}

// compensate deletes an identity whose user row could not be written
func (s *Service) compensate(subject string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.provider.DeleteUser(ctx, subject); err != nil {
		s.logger.Error("failed to delete orphaned identity",
			zap.String("subject", subject),
			zap.Error(err))
		return
	}
	s.logger.Warn("deleted orphaned identity", zap.String("subject", subject))
}

func (s *Service) providerError(op string, err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return services.ErrInvalidCredentials
	case errors.Is(err, identity.ErrEmailTaken):
		return services.ErrDuplicateEmail
	case errors.Is(err, identity.ErrUnavailable):
		s.logger.Error("identity provider unavailable",
			zap.String("operation", op),
			zap.String("provider", s.provider.Name()),
			zap.Error(err))
		return services.Derive(services.ErrUpstreamUnavailable, err)
	default:
		return services.NewDomainError(services.ErrorTypeValidation, err.Error(), err)
	}
}
