package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/upb/manual-share/config"
	"go.uber.org/zap"
)

// SupabaseProvider talks to the Supabase Auth (GoTrue) REST API
type SupabaseProvider struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSupabaseProvider creates a SupabaseProvider. The service role key is
// required for the admin endpoints used by CreateUser and DeleteUser.
func NewSupabaseProvider(cfg config.IdentityConfig, logger *zap.Logger) (*SupabaseProvider, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseServerKey == "" {
		return nil, fmt.Errorf("supabase identity provider requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	anonKey := cfg.SupabaseAnonKey
	if anonKey == "" {
		anonKey = cfg.SupabaseServerKey
	}

	return &SupabaseProvider{
		baseURL:    strings.TrimRight(cfg.SupabaseURL, "/") + "/auth/v1",
		anonKey:    anonKey,
		serviceKey: cfg.SupabaseServerKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Name returns the provider name
func (p *SupabaseProvider) Name() string {
	return "supabase"
}

// SignIn exchanges email and password for a session and returns the user id
func (p *SupabaseProvider) SignIn(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}

	status, respBody, err := p.do(ctx, http.MethodPost, "/token?grant_type=password", p.anonKey, body)
	if err != nil {
		return "", err
	}

	switch {
	case status == http.StatusOK:
		var resp tokenResponse
		if err := json.Unmarshal(respBody, &resp); err != nil || resp.User.ID == "" {
			return "", fmt.Errorf("%w: malformed token response", ErrUnavailable)
		}
		return resp.User.ID, nil
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		return "", ErrInvalidCredentials
	default:
		return "", p.upstreamError("sign in", status, respBody)
	}
}

// CreateUser registers an already confirmed user through the admin API
func (p *SupabaseProvider) CreateUser(ctx context.Context, email, password string, metadata map[string]interface{}) (string, error) {
	body := adminCreateRequest{
		Email:        email,
		Password:     password,
		EmailConfirm: true,
		UserMetadata: metadata,
	}

	status, respBody, err := p.do(ctx, http.MethodPost, "/admin/users", p.serviceKey, body)
	if err != nil {
		return "", err
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		var user supabaseUser
		if err := json.Unmarshal(respBody, &user); err != nil || user.ID == "" {
			return "", fmt.Errorf("%w: malformed user response", ErrUnavailable)
		}
		p.logger.Info("supabase identity created", zap.String("subject", user.ID))
		return user.ID, nil
	case isDuplicateEmail(status, respBody):
		return "", ErrEmailTaken
	case status < http.StatusInternalServerError:
		return "", fmt.Errorf("create user rejected: %s", errorMessage(respBody))
	default:
		return "", p.upstreamError("create user", status, respBody)
	}
}

// DeleteUser removes the user through the admin API. A missing user is not an error.
func (p *SupabaseProvider) DeleteUser(ctx context.Context, subject string) error {
	status, respBody, err := p.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(subject), p.serviceKey, nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK || status == http.StatusNoContent || status == http.StatusNotFound {
		return nil
	}
	return p.upstreamError("delete user", status, respBody)
}

func (p *SupabaseProvider) do(ctx context.Context, method, path, key string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", key)
	req.Header.Set("Authorization", "Bearer "+key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("supabase request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, respBody, nil
}

func (p *SupabaseProvider) upstreamError(op string, status int, body []byte) error {
	p.logger.Warn("supabase returned an error",
		zap.String("operation", op),
		zap.Int("status", status),
		zap.String("message", errorMessage(body)))
	return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, op, status)
}

// isDuplicateEmail recognises both the legacy 422 message and the newer error_code
func isDuplicateEmail(status int, body []byte) bool {
	if status != http.StatusUnprocessableEntity && status != http.StatusBadRequest {
		return false
	}
	var e supabaseError
	_ = json.Unmarshal(body, &e)
	if e.ErrorCode == "email_exists" || e.ErrorCode == "user_already_exists" {
		return true
	}
	return strings.Contains(strings.ToLower(e.message()), "already")
}

func errorMessage(body []byte) string {
	var e supabaseError
	if err := json.Unmarshal(body, &e); err != nil {
		return string(body)
	}
	if msg := e.message(); msg != "" {
		return msg
	}
	return string(body)
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	User        supabaseUser `json:"user"`
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type adminCreateRequest struct {
	Email        string                 `json:"email"`
	Password     string                 `json:"password"`
	EmailConfirm bool                   `json:"email_confirm"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

type supabaseError struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e supabaseError) message() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

var _ Provider = (*SupabaseProvider)(nil)
var _ Provider = (*LocalProvider)(nil)

// IsUnavailable reports whether err means the provider could not be reached
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
