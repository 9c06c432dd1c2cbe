// Package agent executes AI chat agents bound to AI_CHAT pages: it resolves
// the provider and model, filters the tool set, persists the conversation,
// and returns the reply with usage metadata.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/driveworks/drivehub/internal/repository"
	"github.com/driveworks/drivehub/pkg/models"
)

// ErrNotAgent is returned when the target page is not an AI_CHAT page.
var ErrNotAgent = errors.New("page is not an AI chat agent")

// Turn is one message of a provider conversation.
type Turn struct {
	Role    models.MessageRole
	Content string
}

// GenerateRequest is a provider-independent generation request.
type GenerateRequest struct {
	Model        string
	SystemPrompt string
	Turns        []Turn
	Temperature  *float64
	MaxTokens    int
	Tools        []*ToolDef
}

// GenerateResult carries the reply and usage accounting of one generation.
type GenerateResult struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
	ToolCalls    int
}

// Provider generates text for a request. Implementations wrap one vendor SDK.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)
}

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Logger is the logging interface the runner depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// PersonalizationSource recalls user memories relevant to a query.
type PersonalizationSource interface {
	Recall(ctx context.Context, tenantID, userID, query string, limit int) ([]*models.MemoryEntry, error)
}

// Result is the outcome of one agent invocation.
type Result struct {
	Text           string        `json:"text"`
	ConversationID string        `json:"conversation_id"`
	Model          string        `json:"model"`
	Provider       string        `json:"provider"`
	InputTokens    int64         `json:"input_tokens"`
	OutputTokens   int64         `json:"output_tokens"`
	ToolCalls      int           `json:"tool_calls"`
	Duration       time.Duration `json:"duration"`
}

// Runner resolves and invokes agents.
type Runner struct {
	repo            repository.Repository
	providers       map[string]Provider
	defaultProvider string
	defaultModel    string
	maxTokens       int
	tools           *Registry
	memory          PersonalizationSource
	logger          Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithPersonalization wires a memory source whose recalled entries are
// folded into the agent system prompt.
func WithPersonalization(src PersonalizationSource) RunnerOption {
	return func(r *Runner) { r.memory = src }
}

// NewRunner creates a Runner. providers maps provider names to
// implementations; defaultProvider must be one of them.
func NewRunner(repo repository.Repository, providers map[string]Provider, defaultProvider, defaultModel string, maxTokens int, tools *Registry, logger Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		repo:            repo,
		providers:       providers,
		defaultProvider: defaultProvider,
		defaultModel:    defaultModel,
		maxTokens:       maxTokens,
		tools:           tools,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExecuteAgent runs one prompt against an agent page inside a fresh
// synthetic conversation. Workflow steps use this entry point.
func (r *Runner) ExecuteAgent(ctx context.Context, tenantID, agentPageID, prompt, userID string) (*Result, error) {
	page, cfg, err := r.loadAgent(ctx, tenantID, agentPageID)
	if err != nil {
		return nil, err
	}

	conv := &models.Conversation{
		PageID:    page.ID,
		TenantID:  tenantID,
		UserID:    userID,
		Title:     "workflow: " + page.Title,
		Synthetic: true,
	}
	if err := r.repo.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to open conversation: %w", err)
	}

	return r.generate(ctx, tenantID, userID, conv, cfg, []Turn{{Role: models.MessageRoleUser, Content: prompt}}, prompt)
}

// ExecuteChat appends a user message to an existing conversation (creating
// one when conversationID is empty) and generates the assistant reply over
// the full history.
func (r *Runner) ExecuteChat(ctx context.Context, tenantID, pageID, conversationID, message, userID string) (*Result, error) {
	page, cfg, err := r.loadAgent(ctx, tenantID, pageID)
	if err != nil {
		return nil, err
	}

	var conv *models.Conversation
	if conversationID == "" {
		conv = &models.Conversation{PageID: page.ID, TenantID: tenantID, UserID: userID, Title: truncate(message, 80)}
		if err := r.repo.CreateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("failed to open conversation: %w", err)
		}
	} else {
		conv, err = r.repo.GetConversation(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if conv.TenantID != tenantID || conv.PageID != page.ID {
			return nil, repository.ErrNotFound
		}
	}

	history, err := r.repo.ListMessages(ctx, conv.ID, 100)
	if err != nil {
		return nil, err
	}
	turns := make([]Turn, 0, len(history)+1)
	for _, m := range history {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}
	turns = append(turns, Turn{Role: models.MessageRoleUser, Content: message})

	return r.generate(ctx, tenantID, userID, conv, cfg, turns, message)
}

func (r *Runner) loadAgent(ctx context.Context, tenantID, pageID string) (*models.Page, *models.AgentConfig, error) {
	page, err := r.repo.GetPage(ctx, tenantID, pageID)
	if err != nil {
		return nil, nil, err
	}
	if page.Type != models.PageTypeAIChat {
		return nil, nil, ErrNotAgent
	}
	cfg, err := page.AgentConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid agent configuration: %w", err)
	}
	return page, cfg, nil
}

func (r *Runner) generate(ctx context.Context, tenantID, userID string, conv *models.Conversation, cfg *models.AgentConfig, turns []Turn, userMessage string) (*Result, error) {
	providerName := cfg.Provider
	if providerName == "" {
		providerName = r.defaultProvider
	}
	provider, ok := r.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("unknown AI provider %q", providerName)
	}
	model := cfg.Model
	if model == "" {
		model = r.defaultModel
	}

	userMsg := &models.ChatMessage{
		ConversationID: conv.ID,
		Role:           models.MessageRoleUser,
		Content:        userMessage,
	}
	if err := r.repo.CreateMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	req := &GenerateRequest{
		Model:        model,
		SystemPrompt: r.systemPrompt(ctx, tenantID, userID, cfg, userMessage),
		Turns:        turns,
		Temperature:  cfg.Temperature,
		MaxTokens:    r.maxTokens,
		Tools:        r.tools.Filter(ctx, cfg.EnabledTools),
	}

	start := time.Now()
	gen, err := provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}
	elapsed := time.Since(start)

	assistantMsg := &models.ChatMessage{
		ConversationID: conv.ID,
		Role:           models.MessageRoleAssistant,
		Content:        gen.Text,
		Model:          &model,
		InputTokens:    &gen.InputTokens,
		OutputTokens:   &gen.OutputTokens,
	}
	if err := r.repo.CreateMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}

	r.logger.Debug("agent generation complete",
		"conversation_id", conv.ID,
		"provider", providerName,
		"model", model,
		"input_tokens", gen.InputTokens,
		"output_tokens", gen.OutputTokens,
		"tool_calls", gen.ToolCalls,
		"duration_ms", elapsed.Milliseconds(),
	)

	return &Result{
		Text:           gen.Text,
		ConversationID: conv.ID,
		Model:          model,
		Provider:       providerName,
		InputTokens:    gen.InputTokens,
		OutputTokens:   gen.OutputTokens,
		ToolCalls:      gen.ToolCalls,
		Duration:       elapsed,
	}, nil
}

// systemPrompt combines the agent's configured prompt with recalled user
// memories, when a personalization source is wired.
func (r *Runner) systemPrompt(ctx context.Context, tenantID, userID string, cfg *models.AgentConfig, query string) string {
	prompt := cfg.SystemPrompt
	if r.memory == nil {
		return prompt
	}
	entries, err := r.memory.Recall(ctx, tenantID, userID, query, 5)
	if err != nil || len(entries) == 0 {
		return prompt
	}
	prompt += "\n\nWhat you remember about this user:\n"
	for _, e := range entries {
		prompt += "- " + e.Content + "\n"
	}
	return prompt
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
