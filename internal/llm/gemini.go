package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"
)

var geminiSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
}

// GeminiGenerator calls the Gemini generateContent API. One SDK client is
// kept per API key.
type GeminiGenerator struct {
	config     *Config
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewGeminiGenerator(config *Config, httpClient *http.Client) *GeminiGenerator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.timeout()}
	}
	return &GeminiGenerator{
		config:     config,
		httpClient: httpClient,
		clients:    make(map[string]*genai.Client),
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	client, err := g.client(ctx, req.APIKey)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{
		SafetySettings: geminiSafetySettings,
	}
	if req.JSONResponse {
		cfg.ResponseMIMEType = "application/json"
	}
	if g.config.Temperature > 0 {
		temperature := float32(g.config.Temperature)
		cfg.Temperature = &temperature
	}
	if g.config.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(g.config.MaxTokens)
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", g.wrap(req.Model, err)
	}

	text := geminiText(resp)
	if strings.TrimSpace(text) == "" {
		reason := geminiFinishReason(resp)
		return "", &ProviderError{
			Provider: ProviderGemini,
			Model:    req.Model,
			Message:  fmt.Sprintf("no text in response (finish reason: %s)", reason),
			Err:      ErrEmptyResponse,
		}
	}
	return text, nil
}

func (g *GeminiGenerator) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if client, ok := g.clients[apiKey]; ok {
		return client, nil
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.config.APIURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.config.APIURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.clients[apiKey] = client
	return client, nil
}

func (g *GeminiGenerator) wrap(model string, err error) error {
	pe := &ProviderError{
		Provider: ProviderGemini,
		Model:    model,
		Message:  err.Error(),
		Err:      err,
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		pe.StatusCode = apiErr.Code
	}
	return pe
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

func geminiFinishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return "no response"
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "blocked: " + string(resp.PromptFeedback.BlockReason)
		}
		return "no candidates"
	}
	return string(resp.Candidates[0].FinishReason)
}
