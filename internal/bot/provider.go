package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
)

// Fallback strings shown to users instead of provider errors.
const (
	ApologyNotConfigured = "Sorry, the bot is not configured. (Missing API Key)"
	ApologyFailure       = "Sorry, I had trouble processing that request. Please try again."
)

// Collaborator is the AI text-completion boundary: one prompt in, free text
// out. Fallible and slow; callers bound it with a context deadline.
type Collaborator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrNotConfigured marks the disabled provider used when no API key is set.
var ErrNotConfigured = errors.New("collaborator not configured")

// Disabled always fails with ErrNotConfigured so the pipeline can substitute
// the fixed apology.
type Disabled struct{}

func (Disabled) Complete(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}

// OpenAI backs the collaborator with the OpenAI chat completions API.
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{
		client: openai.NewClient(openaioption.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (p *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

// Anthropic backs the collaborator with the Anthropic messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

func NewAnthropic(apiKey, model string) *Anthropic {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &Anthropic{
		client: anthropic.NewClient(anthropicoption.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (p *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// NewCollaborator picks the provider implementation from config values. An
// empty API key yields the disabled provider.
func NewCollaborator(provider, apiKey, model string) Collaborator {
	if apiKey == "" {
		return Disabled{}
	}
	if provider == "anthropic" {
		return NewAnthropic(apiKey, model)
	}
	return NewOpenAI(apiKey, model)
}
