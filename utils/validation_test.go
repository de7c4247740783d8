package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupRequest struct {
	OrgName  string `json:"orgName" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Language string `json:"language,omitempty" validate:"omitempty,locale"`
}

type staffRequest struct {
	Role   string `json:"role" validate:"required,role"`
	Target string `json:"targetLanguage" validate:"required,translation_target"`
	Status string `json:"status" validate:"omitempty,manual_status"`
	Cat    string `json:"category" validate:"omitempty,manual_category"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		s := signupRequest{
			OrgName:  "Sakura Foods",
			Email:    "admin@example.com",
			Password: "longenough",
			Language: "vi",
		}

		assert.NoError(t, ValidateStruct(&s))
	})

	t.Run("fields are named by json tag", func(t *testing.T) {
		s := signupRequest{Email: "not-an-email", Password: "short"}

		err := ValidateStruct(&s)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "orgName is required", fields["orgName"])
		assert.Equal(t, "email must be a valid email", fields["email"])
		assert.Equal(t, "password must be at least 8", fields["password"])
	})

	t.Run("unknown locale", func(t *testing.T) {
		s := signupRequest{OrgName: "x", Email: "a@b.co", Password: "12345678", Language: "en"}

		fields := GetValidationFields(ValidateStruct(&s))
		assert.Equal(t, "language must be a supported locale", fields["language"])
	})
}

func TestDomainValidators(t *testing.T) {
	tests := []struct {
		name      string
		req       staffRequest
		badFields []string
	}{
		{
			name: "all valid",
			req:  staffRequest{Role: "area_manager", Target: "km", Status: "published", Cat: "safety"},
		},
		{
			name:      "japanese is not a translation target",
			req:       staffRequest{Role: "staff", Target: "ja"},
			badFields: []string{"targetLanguage"},
		},
		{
			name:      "unknown role status and category",
			req:       staffRequest{Role: "owner", Target: "th", Status: "archived", Cat: "misc"},
			badFields: []string{"role", "status", "category"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if len(tt.badFields) == 0 {
				assert.NoError(t, err)
				return
			}
			fields := GetValidationFields(err)
			assert.Len(t, fields, len(tt.badFields))
			for _, f := range tt.badFields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestParseUUID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"valid", "550e8400-e29b-41d4-a716-446655440000", ""},
		{"empty", "", "id is required"},
		{"malformed", "123", "id must be a valid UUID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseUUID(tt.input, "id")
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, id.String())
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"user@example.com", false},
		{"user.name+tag@example.co.jp", false},
		{"invalid", true},
		{"@example.com", true},
		{"user@", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Message: "Test validation error",
		Fields:  map[string]string{"field1": "error1"},
	}

	assert.Equal(t, "Test validation error", err.Error())
	assert.True(t, IsValidationError(err))
	assert.Equal(t, map[string]string{"field1": "error1"}, GetValidationFields(err))

	assert.False(t, IsValidationError(assert.AnError))
	assert.Nil(t, GetValidationFields(assert.AnError))
}

func TestRandomHelpers(t *testing.T) {
	t.Run("hex token length", func(t *testing.T) {
		token, err := RandomHex(16)
		require.NoError(t, err)
		assert.Len(t, token, 32)
		assert.Regexp(t, "^[0-9a-f]{32}$", token)

		other, err := RandomHex(16)
		require.NoError(t, err)
		assert.NotEqual(t, token, other)
	})

	t.Run("public user id", func(t *testing.T) {
		id, err := NewPublicUserID("staff")
		require.NoError(t, err)
		assert.Regexp(t, `^staff_\d{6}$`, id)
	})
}
