package staff

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/manual-share/models"
	"github.com/upb/manual-share/repositories"
	"github.com/upb/manual-share/repositories/mocks"
	"github.com/upb/manual-share/services"
	"github.com/upb/manual-share/services/identity"
	"go.uber.org/zap"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) SignIn(ctx context.Context, email, password string) (string, error) {
	args := m.Called(email, password)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) CreateUser(ctx context.Context, email, password string, metadata map[string]interface{}) (string, error) {
	args := m.Called(email, password, metadata)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) DeleteUser(ctx context.Context, subject string) error {
	return m.Called(subject).Error(0)
}

type fakeRecorder struct {
	actions []models.AuditAction
}

func (r *fakeRecorder) Record(_ models.Actor, action models.AuditAction, _ string, _ uuid.UUID, _ map[string]interface{}) {
	r.actions = append(r.actions, action)
}

var fixedNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	users    *mocks.UserRepository
	provider *mockProvider
	recorder *fakeRecorder
	service  *Service
	admin    models.Actor
}

func newFixture() *fixture {
	f := &fixture{
		users:    new(mocks.UserRepository),
		provider: new(mockProvider),
		recorder: &fakeRecorder{},
		admin:    models.Actor{UserID: uuid.New(), OrgID: uuid.New(), Role: models.RoleAdmin},
	}
	f.service = NewService(f.users, f.provider, f.recorder, zap.NewNop())
	f.service.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) member(onboarded bool) *models.User {
	u := models.NewUser(f.admin.OrgID, "staff_123456", "Lan", models.RoleStaff, models.LocaleVietnamese)
	if onboarded {
		u.CompleteOnboarding("subject-1", "lan@example.com")
	} else {
		u.SetInvite("oldtoken", fixedNow.Add(-24*time.Hour))
	}
	f.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	return u
}

func TestService_Create(t *testing.T) {
	f := newFixture()
	var created *models.User
	f.users.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*models.User) }).
		Return(nil)

	invite, err := f.service.Create(context.Background(), f.admin, CreateInput{
		DisplayName: " Nguyen ",
		Language:    models.LocaleVietnamese,
		Role:        models.RoleStaff,
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), invite.InviteToken)
	assert.Regexp(t, regexp.MustCompile(`^staff_\d{6}$`), invite.UserID)
	assert.Equal(t, "Nguyen", invite.DisplayName)
	assert.Equal(t, fixedNow.Add(7*24*time.Hour), invite.InviteExpiresAt)

	require.NotNil(t, created)
	assert.Equal(t, f.admin.OrgID, created.OrgID)
	assert.False(t, created.IsOnboarded)
	assert.Nil(t, created.Email)
	assert.Equal(t, invite.ID, created.ID)
	assert.Equal(t, []models.AuditAction{models.AuditActionStaffCreated}, f.recorder.actions)
}

func TestService_CreateValidation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateInput
	}{
		{"missing name", CreateInput{Language: models.LocaleJapanese, Role: models.RoleStaff}},
		{"bad language", CreateInput{DisplayName: "x", Language: "de", Role: models.RoleStaff}},
		{"bad role", CreateInput{DisplayName: "x", Language: models.LocaleJapanese, Role: "owner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.service.Create(context.Background(), f.admin, tt.in)
			assert.True(t, services.IsValidationError(err), "got %v", err)
			f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestService_StaffCannotManage(t *testing.T) {
	f := newFixture()
	staff := models.Actor{UserID: uuid.New(), OrgID: f.admin.OrgID, Role: models.RoleStaff}
	ctx := context.Background()
	id := uuid.New()
	name := "x"

	_, err := f.service.Create(ctx, staff, CreateInput{DisplayName: "x", Language: models.LocaleJapanese, Role: models.RoleStaff})
	assert.ErrorIs(t, err, services.ErrInsufficientPermissions)

	_, err = f.service.List(ctx, staff)
	assert.ErrorIs(t, err, services.ErrInsufficientPermissions)

	_, err = f.service.Update(ctx, staff, id, UpdateInput{DisplayName: &name})
	assert.ErrorIs(t, err, services.ErrInsufficientPermissions)

	_, err = f.service.UpdateAdmin(ctx, staff, id, true)
	assert.ErrorIs(t, err, services.ErrInsufficientPermissions)

	assert.ErrorIs(t, f.service.Delete(ctx, staff, id), services.ErrInsufficientPermissions)

	_, err = f.service.RegenerateInvite(ctx, staff, id)
	assert.ErrorIs(t, err, services.ErrInsufficientPermissions)

	f.users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestService_List(t *testing.T) {
	f := newFixture()
	f.users.On("ListByOrgID", mock.Anything, f.admin.OrgID).Return([]*models.User{{}, {}}, nil)

	users, err := f.service.List(context.Background(), f.admin)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestService_Update(t *testing.T) {
	f := newFixture()
	u := f.member(true)
	f.users.On("Update", mock.Anything, u).Return(nil)

	name := "Lan Anh"
	email := "lan.anh@example.com"
	role := models.RoleAreaManager
	got, err := f.service.Update(context.Background(), f.admin, u.ID, UpdateInput{DisplayName: &name, Email: &email, Role: &role})
	require.NoError(t, err)

	assert.Equal(t, "Lan Anh", got.DisplayName)
	assert.Equal(t, "lan.anh@example.com", got.EmailAddress())
	assert.Equal(t, models.RoleAreaManager, got.Role)
	assert.Equal(t, models.LocaleVietnamese, got.Language)
	assert.Equal(t, []models.AuditAction{models.AuditActionStaffUpdated}, f.recorder.actions)
}

func TestService_UpdateErrors(t *testing.T) {
	t.Run("empty patch", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.Update(context.Background(), f.admin, uuid.New(), UpdateInput{})
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("other organization", func(t *testing.T) {
		f := newFixture()
		other := models.NewUser(uuid.New(), "staff_000001", "Other", models.RoleStaff, models.LocaleJapanese)
		f.users.On("GetByID", mock.Anything, other.ID).Return(other, nil)

		name := "x"
		_, err := f.service.Update(context.Background(), f.admin, other.ID, UpdateInput{DisplayName: &name})
		assert.ErrorIs(t, err, services.ErrUserNotFound)
		f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("invalid email", func(t *testing.T) {
		f := newFixture()
		u := f.member(true)
		email := "not-an-email"
		_, err := f.service.Update(context.Background(), f.admin, u.ID, UpdateInput{Email: &email})
		assert.ErrorIs(t, err, services.ErrInvalidEmail)
	})

	t.Run("email taken", func(t *testing.T) {
		f := newFixture()
		u := f.member(true)
		f.users.On("Update", mock.Anything, u).Return(fmt.Errorf("update: %w", repositories.ErrDuplicate))

		email := "taken@example.com"
		_, err := f.service.Update(context.Background(), f.admin, u.ID, UpdateInput{Email: &email})
		assert.True(t, services.IsConflictError(err))
	})
}

func TestService_UpdateAdmin(t *testing.T) {
	f := newFixture()
	u := f.member(true)
	f.users.On("Update", mock.Anything, u).Return(nil)

	got, err := f.service.UpdateAdmin(context.Background(), f.admin, u.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)
	assert.Equal(t, []models.AuditAction{models.AuditActionStaffAdminToggled}, f.recorder.actions)
}

func TestService_Delete(t *testing.T) {
	t.Run("onboarded member loses identity", func(t *testing.T) {
		f := newFixture()
		u := f.member(true)
		f.provider.On("DeleteUser", "subject-1").Return(nil)
		f.users.On("Delete", mock.Anything, u.ID).Return(nil)

		require.NoError(t, f.service.Delete(context.Background(), f.admin, u.ID))
		f.provider.AssertExpectations(t)
		assert.Equal(t, []models.AuditAction{models.AuditActionStaffDeleted}, f.recorder.actions)
	})

	t.Run("pending invite has no identity", func(t *testing.T) {
		f := newFixture()
		u := f.member(false)
		f.users.On("Delete", mock.Anything, u.ID).Return(nil)

		require.NoError(t, f.service.Delete(context.Background(), f.admin, u.ID))
		f.provider.AssertNotCalled(t, "DeleteUser", mock.Anything)
	})

	t.Run("identity failure keeps the row", func(t *testing.T) {
		f := newFixture()
		u := f.member(true)
		f.provider.On("DeleteUser", "subject-1").Return(fmt.Errorf("%w: 503", identity.ErrUnavailable))

		err := f.service.Delete(context.Background(), f.admin, u.ID)
		assert.True(t, services.IsExternalError(err))
		f.users.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("cannot delete self", func(t *testing.T) {
		f := newFixture()
		err := f.service.Delete(context.Background(), f.admin, f.admin.UserID)
		assert.ErrorIs(t, err, services.ErrCannotDeleteSelf)
		f.users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("missing member", func(t *testing.T) {
		f := newFixture()
		id := uuid.New()
		f.users.On("GetByID", mock.Anything, id).Return(nil, repositories.ErrNotFound)
		assert.ErrorIs(t, f.service.Delete(context.Background(), f.admin, id), services.ErrUserNotFound)
	})

	t.Run("database failure", func(t *testing.T) {
		f := newFixture()
		u := f.member(false)
		f.users.On("Delete", mock.Anything, u.ID).Return(errors.New("connection reset"))
		assert.True(t, services.IsInternalError(f.service.Delete(context.Background(), f.admin, u.ID)))
	})
}

func TestService_RegenerateInvite(t *testing.T) {
	f := newFixture()
	u := f.member(false)
	f.users.On("Update", mock.Anything, u).Return(nil)

	invite, err := f.service.RegenerateInvite(context.Background(), f.admin, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "oldtoken", invite.InviteToken)
	assert.Len(t, invite.InviteToken, 32)
	assert.Equal(t, fixedNow.Add(models.InviteTTL), invite.InviteExpiresAt)
	assert.False(t, u.InviteExpired(fixedNow))
	assert.Equal(t, []models.AuditAction{models.AuditActionInviteReissued}, f.recorder.actions)
}

func TestService_RegenerateInviteOnboarded(t *testing.T) {
	f := newFixture()
	u := f.member(true)

	_, err := f.service.RegenerateInvite(context.Background(), f.admin, u.ID)
	assert.ErrorIs(t, err, services.ErrInviteNotPending)
	f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}
