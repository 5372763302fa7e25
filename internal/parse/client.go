package parse

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// CompleteOptions mirror the knobs the pipeline sets per request.
type CompleteOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

// ModelClient is the language-model collaborator. Tests use a canned fake.
type ModelClient interface {
	Complete(ctx context.Context, system, user string, opts CompleteOptions) (string, error)
}

// OpenAIClient backs ModelClient with the chat completions API.
type OpenAIClient struct {
	c *openai.Client
}

func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("model api key is empty")
	}
	return &OpenAIClient{c: openai.NewClient(apiKey)}, nil
}

func (o *OpenAIClient) Complete(ctx context.Context, system, user string, opts CompleteOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       opts.Model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	if opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
