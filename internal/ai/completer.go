package ai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/nhle/leadmail/internal/model"
)

const (
	anthropicURL     = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
	defaultMaxTokens = 1000

	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Prompt is one text-completion request.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// Completer sends a prompt to a text-completion model.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)

	// Model names the model answering, for audit.
	Model() string
}

// AnthropicCompleter calls the Anthropic Messages API over plain HTTP.
type AnthropicCompleter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewAnthropicCompleter creates a completer. An empty baseURL uses the
// public endpoint.
func NewAnthropicCompleter(apiKey, modelName, baseURL string, client *http.Client) *AnthropicCompleter {
	if baseURL == "" {
		baseURL = anthropicURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &AnthropicCompleter{
		apiKey:  apiKey,
		model:   modelName,
		baseURL: baseURL,
		client:  client,
	}
}

// Model implements Completer.
func (a *AnthropicCompleter) Model() string { return a.model }

// Complete makes a single request to the Messages API.
func (a *AnthropicCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	reqBody := apiRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		System:    p.System,
		Messages: []apiMessage{{
			Role:    "user",
			Content: []apiContentBlock{{Type: "text", Text: p.User}},
		}},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", newServiceError("complete", ErrAPICallFailed, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", newServiceError("complete", ErrAPICallFailed, fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", newServiceError("complete", ErrAPICallFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newServiceError("complete", ErrAPICallFailed, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", newServiceError("complete", ErrAPICallFailed,
				fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error.Message))
		}
		return "", newServiceError("complete", ErrAPICallFailed,
			fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", newServiceError("complete", ErrInvalidResponse, fmt.Errorf("decoding response: %w", err))
	}

	var parts []string
	for _, block := range result.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", newServiceError("complete", ErrInvalidResponse, errors.New("no text content"))
	}
	return strings.Join(parts, ""), nil
}

// OpenAICompleter calls an OpenAI-compatible chat completion endpoint.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates a completer. A non-empty baseURL targets an
// OpenAI-compatible server.
func NewOpenAICompleter(apiKey, modelName, baseURL string, httpClient *http.Client) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(cfg),
		model:  modelName,
	}
}

// Model implements Completer.
func (o *OpenAICompleter) Model() string { return o.model }

// Complete sends the prompt as a system and user message.
func (o *OpenAICompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	var messages []openai.ChatCompletionMessage
	if p.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: p.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: p.User,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return "", newServiceError("complete", ErrAPICallFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", newServiceError("complete", ErrInvalidResponse, errors.New("no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

// BreakerCompleter fails fast while a provider keeps failing. Only call
// failures count; unusable answers do not open the breaker.
type BreakerCompleter struct {
	next Completer
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker builds the breaker shared by completers of one provider.
func NewBreaker(name string, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrAPICallFailed)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("ai circuit breaker state changed")
		},
	})
}

// NewBreakerCompleter wraps next with cb.
func NewBreakerCompleter(next Completer, cb *gobreaker.CircuitBreaker) *BreakerCompleter {
	return &BreakerCompleter{next: next, cb: cb}
}

// Model implements Completer.
func (b *BreakerCompleter) Model() string { return b.next.Model() }

// Complete implements Completer.
func (b *BreakerCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, p)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", newServiceError("complete", ErrAPICallFailed, err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// NewCompleter builds the completer for the configured provider.
func NewCompleter(cfg model.AIConfig, apiKey string, httpClient *http.Client) (Completer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, newServiceError("configure", ErrNotConfigured, nil)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}
	}

	switch cfg.Provider {
	case ProviderAnthropic, "":
		return NewAnthropicCompleter(apiKey, cfg.Model, cfg.BaseURL, httpClient), nil
	case ProviderOpenAI:
		return NewOpenAICompleter(apiKey, cfg.Model, cfg.BaseURL, httpClient), nil
	default:
		return nil, newServiceError("configure", ErrNotConfigured,
			fmt.Errorf("unknown provider %q", cfg.Provider))
	}
}

// Factory builds classifiers and analyzers for accounts. Accounts share
// one circuit breaker per provider.
type Factory struct {
	cfg        model.AIConfig
	defaultKey string
	httpClient *http.Client
	logger     zerolog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewFactory creates a Factory. defaultKey is used for accounts without
// a key of their own.
func NewFactory(cfg model.AIConfig, defaultKey string, httpClient *http.Client, logger zerolog.Logger) *Factory {
	return &Factory{
		cfg:        cfg,
		defaultKey: defaultKey,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "ai").Logger(),
		breakers:   make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Completer returns the breaker-wrapped completer for an account.
func (f *Factory) Completer(account *model.MailAccount) (Completer, error) {
	key := f.defaultKey
	if account != nil && account.AIAPIKey != "" {
		key = account.AIAPIKey
	}

	c, err := NewCompleter(f.cfg, key, f.httpClient)
	if err != nil {
		return nil, err
	}
	return NewBreakerCompleter(c, f.breaker(f.cfg.Provider)), nil
}

// Classifier returns an email classifier for an account.
func (f *Factory) Classifier(account *model.MailAccount) (*Classifier, error) {
	c, err := f.Completer(account)
	if err != nil {
		return nil, err
	}
	return NewClassifier(c, f.cfg.MaxTokens, f.logger), nil
}

// Analyzer returns a behavioral analyzer for an account.
func (f *Factory) Analyzer(account *model.MailAccount) (*BehaviorAnalyzer, error) {
	c, err := f.Completer(account)
	if err != nil {
		return nil, err
	}
	return NewBehaviorAnalyzer(c, AnalyzerOptions{
		MaxTokens:        f.cfg.BehaviorMaxTokens,
		DetailedWindow:   f.cfg.DetailedWindow,
		SummaryWindow:    f.cfg.SummaryWindow,
		MaxContentLength: f.cfg.MaxContentLength,
	}), nil
}

func (f *Factory) breaker(provider string) *gobreaker.CircuitBreaker {
	if provider == "" {
		provider = ProviderAnthropic
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cb, ok := f.breakers[provider]
	if !ok {
		cb = NewBreaker(provider, f.logger)
		f.breakers[provider] = cb
	}
	return cb
}

// --- Anthropic API types ---

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string            `json:"role"`
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
