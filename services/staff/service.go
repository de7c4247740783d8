// Package staff implements staff invitation and management for organization managers.
package staff

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories"
	"github.com/upb/manual-share/services"
	"github.com/upb/manual-share/services/audit"
	"github.com/upb/manual-share/services/identity"
	"github.com/upb/manual-share/utils"
	"go.uber.org/zap"
)

// inviteTokenBytes is the entropy of an invite token (hex encoded to 32 characters)
const inviteTokenBytes = 16

// CreateInput holds the fields of a new staff invite
type CreateInput struct {
	DisplayName string
	Language    models.Locale
	Role        models.UserRole
}

// Invite is a freshly created or reissued invite
type Invite struct {
	ID              uuid.UUID `json:"id"`
	UserID          string    `json:"user_id"`
	DisplayName     string    `json:"display_name"`
	InviteToken     string    `json:"invite_token"`
	InviteExpiresAt time.Time `json:"invite_expires_at"`
}

// UpdateInput is a partial patch of a staff member; nil fields are left as is
type UpdateInput struct {
	DisplayName *string
	Email       *string
	Language    *models.Locale
	Role        *models.UserRole
}

// Service handles staff management
type Service struct {
	users    repositories.UserRepository
	identity identity.Provider
	audit    audit.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new staff service
func NewService(
	users repositories.UserRepository,
	provider identity.Provider,
	recorder audit.Recorder,
	logger *zap.Logger,
) *Service {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Service{
		users:    users,
		identity: provider,
		audit:    recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Create adds a not yet onboarded user to the actor's organization and issues an invite token
func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (*Invite, error) {
	if !actor.CanManage() {
		return nil, services.ErrInsufficientPermissions
	}

	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "display name is required", nil)
	}
	if _, err := models.ParseLocale(string(in.Language)); err != nil {
		return nil, services.Derive(services.ErrUnsupportedLanguage, err)
	}
	if !in.Role.IsValid() {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "unknown role", nil)
	}

	publicID, err := utils.NewPublicUserID("staff")
	if err != nil {
		return nil, services.WrapInternal("failed to generate user id", err)
	}
	token, err := utils.RandomHex(inviteTokenBytes)
	if err != nil {
		return nil, services.WrapInternal("failed to generate invite token", err)
	}

	user := models.NewUser(actor.OrgID, publicID, name, in.Role, in.Language)
	user.SetInvite(token, s.now())

	if err := s.users.Create(ctx, user); err != nil {
		return nil, services.WrapInternal("failed to create staff", err)
	}

	s.audit.Record(actor, models.AuditActionStaffCreated, "user", user.ID, map[string]interface{}{
		"user_id": user.UserID,
		"role":    user.Role,
	})
	s.logger.Info("staff invited",
		zap.String("org_id", actor.OrgID.String()),
		zap.String("user_id", user.ID.String()))

	return inviteOf(user), nil
}

// List returns every user of the actor's organization, newest first
func (s *Service) List(ctx context.Context, actor models.Actor) ([]*models.User, error) {
	if !actor.CanManage() {
		return nil, services.ErrInsufficientPermissions
	}
	users, err := s.users.ListByOrgID(ctx, actor.OrgID)
	if err != nil {
		return nil, services.WrapInternal("failed to list staff", err)
	}
	return users, nil
}

// Update applies a partial patch to a member of the actor's organization
func (s *Service) Update(ctx context.Context, actor models.Actor, id uuid.UUID, in UpdateInput) (*models.User, error) {
	if !actor.CanManage() {
		return nil, services.ErrInsufficientPermissions
	}
	if in.DisplayName == nil && in.Email == nil && in.Language == nil && in.Role == nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "no fields to update", nil)
	}

	user, err := s.member(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "display name cannot be empty", nil)
		}
		user.DisplayName = name
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email == "" {
			user.Email = nil
		} else {
			if err := utils.ValidateEmail(email); err != nil {
				return nil, services.Derive(services.ErrInvalidEmail, err)
			}
			user.Email = &email
		}
	}
	if in.Language != nil {
		if _, err := models.ParseLocale(string(*in.Language)); err != nil {
			return nil, services.Derive(services.ErrUnsupportedLanguage, err)
		}
		user.Language = *in.Language
	}
	if in.Role != nil {
		if !in.Role.IsValid() {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "unknown role", nil)
		}
		user.Role = *in.Role
	}
	user.UpdatedAt = s.now()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, services.FromRepository(err, services.ErrUserNotFound, services.ErrDuplicateEmail, "failed to update staff")
	}

	s.audit.Record(actor, models.AuditActionStaffUpdated, "user", user.ID, nil)
	return user, nil
}

// UpdateAdmin sets the is_admin flag of a member
func (s *Service) UpdateAdmin(ctx context.Context, actor models.Actor, id uuid.UUID, isAdmin bool) (*models.User, error) {
	if !actor.CanManage() {
		return nil, services.ErrInsufficientPermissions
	}

	user, err := s.member(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	user.IsAdmin = isAdmin
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, services.FromRepository(err, services.ErrUserNotFound, nil, "failed to update staff")
	}

	s.audit.Record(actor, models.AuditActionStaffAdminToggled, "user", user.ID, map[string]interface{}{
		"is_admin": isAdmin,
	})
	return user, nil
}

// Delete removes a member and, when onboarded, their identity. Callers cannot delete themselves.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id uuid.UUID) error {
	if !actor.CanManage() {
		return services.ErrInsufficientPermissions
	}
	if id == actor.UserID {
		return services.ErrCannotDeleteSelf
	}

	user, err := s.member(ctx, actor, id)
	if err != nil {
		return err
	}

	if user.AuthID != nil && *user.AuthID != "" {
		if err := s.identity.DeleteUser(ctx, *user.AuthID); err != nil {
			s.logger.Error("failed to delete staff identity",
				zap.String("user_id", user.ID.String()),
				zap.String("provider", s.identity.Name()),
				zap.Error(err))
			if identity.IsUnavailable(err) {
				return services.Derive(services.ErrUpstreamUnavailable, err)
			}
			return services.WrapInternal("failed to delete identity", err)
		}
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return services.FromRepository(err, services.ErrUserNotFound, nil, "failed to delete staff")
	}

	s.audit.Record(actor, models.AuditActionStaffDeleted, "user", user.ID, map[string]interface{}{
		"user_id": user.UserID,
	})
	s.logger.Info("staff deleted",
		zap.String("org_id", actor.OrgID.String()),
		zap.String("user_id", user.ID.String()))
	return nil
}

// RegenerateInvite issues a new token and expiry for a member who has not onboarded yet
func (s *Service) RegenerateInvite(ctx context.Context, actor models.Actor, id uuid.UUID) (*Invite, error) {
	if !actor.CanManage() {
		return nil, services.ErrInsufficientPermissions
	}

	user, err := s.member(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if user.IsOnboarded {
		return nil, services.ErrInviteNotPending
	}

	token, err := utils.RandomHex(inviteTokenBytes)
	if err != nil {
		return nil, services.WrapInternal("failed to generate invite token", err)
	}
	now := s.now()
	user.SetInvite(token, now)
	user.UpdatedAt = now

	if err := s.users.Update(ctx, user); err != nil {
		return nil, services.FromRepository(err, services.ErrUserNotFound, nil, "failed to reissue invite")
	}

	s.audit.Record(actor, models.AuditActionInviteReissued, "user", user.ID, nil)
	return inviteOf(user), nil
}

// member loads a user of the actor's organization; other tenants look missing
func (s *Service) member(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrUserNotFound, nil, "failed to get staff")
	}
	if user.OrgID != actor.OrgID {
		return nil, services.ErrUserNotFound
	}
	return user, nil
}

func inviteOf(user *models.User) *Invite {
	invite := &Invite{
		ID:          user.ID,
		UserID:      user.UserID,
		DisplayName: user.DisplayName,
	}
	if user.InviteToken != nil {
		invite.InviteToken = *user.InviteToken
	}
	if user.InviteExpiresAt != nil {
		invite.InviteExpiresAt = *user.InviteExpiresAt
	}
	return invite
}
