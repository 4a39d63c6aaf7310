// Package client wraps third-party API clients used by the engine.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/kube-rca/backend/internal/config"
	"google.golang.org/genai"
)

// GenAIClient is the tool-constrained text generation client backing the
// LLM Adjudicator and the Analysis Composer. Named after the underlying
// SDK rather than "OpenAIClient": OPENAI_API_KEY/OPENAI_MODEL are kept as
// the configuration surface, but google.golang.org/genai does the work.
// timeout bounds every GenerateContent call; zero means no deadline.
type GenAIClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGenAIClient(cfg config.OpenAIConfig) (*GenAIClient, error) {
	return NewGenAIClientWithTimeout(cfg, 0)
}

// NewGenAIClientWithTimeout is NewGenAIClient plus a per-call deadline,
// used by main.go to thread config.Timeouts.LLM through.
func NewGenAIClientWithTimeout(cfg config.OpenAIConfig, timeout time.Duration) (*GenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	c, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GenAIClient{client: c, model: cfg.Model, timeout: timeout}, nil
}

// withTimeout derives a bounded context for a single GenerateContent call.
func (c *GenAIClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// GenerateWithTool asks the model to produce exactly one call to the named
// tool, described by a JSON schema for its arguments. Returns the raw JSON
// arguments object the model chose.
func (c *GenAIClient) GenerateWithTool(ctx context.Context, systemPrompt, userPrompt, toolName, toolDescription string, paramsSchema *genai.Schema) (map[string]any, error) {
	tool := &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        toolName,
				Description: toolDescription,
				Parameters:  paramsSchema,
			},
		},
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Tools:             []*genai.Tool{tool},
		ToolConfig: &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{toolName},
			},
		},
		Temperature: genai.Ptr(float32(0)),
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), config)
	if err != nil {
		return nil, fmt.Errorf("genai generate: %w", err)
	}
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return nil, fmt.Errorf("genai returned no candidates")
	}
	for _, part := range res.Candidates[0].Content.Parts {
		if part.FunctionCall != nil && part.FunctionCall.Name == toolName {
			return part.FunctionCall.Args, nil
		}
	}
	return nil, fmt.Errorf("genai did not call %s", toolName)
}

// GenerateText asks the model for a free-form text completion, used by the
// Analysis Composer to produce the markdown narrative.
func (c *GenAIClient) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(0)),
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(userPrompt), config)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", fmt.Errorf("genai returned no candidates")
	}
	var out string
	for _, part := range res.Candidates[0].Content.Parts {
		out += part.Text
	}
	if out == "" {
		return "", fmt.Errorf("genai returned empty text")
	}
	return out, nil
}
