package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/upb/manual-share/services/providers"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// Adapter implements the Provider interface on the Gemini API
type Adapter struct {
	config providers.ProviderConfig
	client *genai.Client
}

// NewAdapter creates a new Gemini adapter
func NewAdapter(ctx context.Context, config providers.ProviderConfig) (*Adapter, error) {
	if config.DefaultModel == "" {
		config.DefaultModel = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     config.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: config.Timeout},
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Adapter{config: config, client: client}, nil
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "gemini"
}

// Complete performs a GenerateContent request
func (a *Adapter) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	startTime := time.Now()

	model := req.Model
	if model == "" {
		model = a.config.DefaultModel
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	genConfig := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	var (
		resp    *genai.GenerateContentResponse
		lastErr error
	)
	for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, providers.NewProviderError(a.Name(), "CANCELLED", "Request cancelled", 0, false, ctx.Err())
			case <-time.After(a.config.RetryDelay * time.Duration(attempt)):
			}
		}

		var err error
		resp, err = a.client.Models.GenerateContent(ctx, model, contents, genConfig)
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = a.convertError(err)
		if !providers.IsRetryable(lastErr) {
			break
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	out := &providers.CompletionResponse{
		Text:     resp.Text(),
		Model:    model,
		Provider: a.Name(),
		Latency:  time.Since(startTime),
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.Usage = providers.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

func (a *Adapter) convertError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		retryable := apiErr.Code >= 500 || apiErr.Code == http.StatusTooManyRequests
		code := apiErr.Status
		if code == "" {
			code = "API_ERROR"
		}
		return providers.NewProviderError(a.Name(), code, apiErr.Message, apiErr.Code, retryable, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return providers.NewProviderError(a.Name(), "CANCELLED", "Request cancelled", 0, false, err)
	}
	return providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
}
