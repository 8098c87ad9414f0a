package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator calls any OpenAI compatible chat completions endpoint
type OpenAIGenerator struct {
	config     *Config
	httpClient *http.Client
}

func NewOpenAIGenerator(config *Config, httpClient *http.Client) *OpenAIGenerator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.timeout()}
	}
	headers := config.GetHeaders()
	if len(headers) > 0 {
		base := httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		withHeaders := *httpClient
		withHeaders.Transport = &headerTransport{base: base, headers: headers}
		httpClient = &withHeaders
	}
	return &OpenAIGenerator{config: config, httpClient: httpClient}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	cfg := openai.DefaultConfig(req.APIKey)
	if g.config.APIURL != "" {
		cfg.BaseURL = strings.TrimRight(g.config.APIURL, "/")
	}
	cfg.HTTPClient = g.httpClient
	client := openai.NewClientWithConfig(cfg)

	chatReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if g.config.Temperature > 0 {
		chatReq.Temperature = float32(g.config.Temperature)
	}
	if g.config.MaxTokens > 0 {
		chatReq.MaxTokens = g.config.MaxTokens
	}

	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", g.wrap(req.Model, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &ProviderError{
			Provider: ProviderOpenAI,
			Model:    req.Model,
			Message:  "no choices in response",
			Err:      ErrEmptyResponse,
		}
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) wrap(model string, err error) error {
	pe := &ProviderError{
		Provider: ProviderOpenAI,
		Model:    model,
		Message:  err.Error(),
		Err:      err,
	}
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		pe.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		pe.StatusCode = reqErr.HTTPStatusCode
	}
	return pe
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}
