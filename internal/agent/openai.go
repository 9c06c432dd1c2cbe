package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// maxToolIterations bounds the tool-call loop so a model cannot spin the
// server through endless tool rounds.
const maxToolIterations = 10

// OpenAIProvider generates with the OpenAI Chat Completions API and supports
// tool calling.
type OpenAIProvider struct {
	client openai.Client
}

var _ Provider = (*OpenAIProvider)(nil)

func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, turn := range req.Turns {
		switch turn.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	toolsByName := make(map[string]*ToolDef, len(req.Tools))
	toolParams := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
	for _, def := range req.Tools {
		toolsByName[def.Name] = def
		toolParams = append(toolParams, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(def.Parameters),
			},
		})
	}

	result := &GenerateResult{}
	for i := 0; i < maxToolIterations; i++ {
		params := openai.ChatCompletionNewParams{
			Model:    req.Model,
			Messages: messages,
		}
		if len(toolParams) > 0 {
			params.Tools = toolParams
		}
		if req.Temperature != nil {
			params.Temperature = openai.Float(*req.Temperature)
		}
		if req.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(req.MaxTokens))
		}

		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("chat completion failed: %w", err)
		}
		result.InputTokens += resp.Usage.PromptTokens
		result.OutputTokens += resp.Usage.CompletionTokens

		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("chat completion returned no choices")
		}
		msg := resp.Choices[0].Message

		if len(msg.ToolCalls) == 0 {
			result.Text = msg.Content
			return result, nil
		}

		// Append the assistant turn with its tool calls, then answer each
		// call and go around again.
		messages = append(messages, msg.ToParam())
		for _, call := range msg.ToolCalls {
			result.ToolCalls++
			output := p.runTool(ctx, toolsByName, call.Function.Name, call.Function.Arguments)
			messages = append(messages, openai.ToolMessage(output, call.ID))
		}
	}

	return nil, fmt.Errorf("tool loop exceeded %d iterations", maxToolIterations)
}

func (p *OpenAIProvider) runTool(ctx context.Context, tools map[string]*ToolDef, name, rawArgs string) string {
	def, ok := tools[name]
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", name)
	}
	var args map[string]any
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return fmt.Sprintf("error: invalid tool arguments: %v", err)
		}
	}
	out, err := def.Run(ctx, args)
	if err != nil {
		// Tool failures are surfaced to the model rather than aborting the
		// generation; the model can recover or report the problem.
		return fmt.Sprintf("error: %v", err)
	}
	return out
}

// OpenAIEmbedder produces embeddings with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
}

var _ Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{client: openai.NewClient(option.WithAPIKey(apiKey)), model: model}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
