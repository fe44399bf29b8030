// Package sentiment asks a language model for a short market sentiment
// judgment. Whatever text the model returns is the sentiment.
package sentiment

import (
	"context"
	"errors"
	"fmt"

	"crypto-sentiment/internal/domain"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrIncompleteQuote is returned when a quote lacks the fields the prompt needs.
var ErrIncompleteQuote = errors.New("quote has no USD market data")

// LLMClient abstracts the chat completions API for testability.
type LLMClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type Generator struct {
	tracer trace.Tracer
	llm    LLMClient
	model  string
}

func NewGenerator(tracer trace.Tracer, llm LLMClient, model string) *Generator {
	return &Generator{tracer: tracer, llm: llm, model: model}
}

// GenerateSentiment returns the model's raw reply for the quote's prompt.
func (g *Generator) GenerateSentiment(ctx context.Context, quote *domain.CoinQuote) (string, error) {
	ctx, span := g.tracer.Start(ctx, "sentiment.generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", g.model))

	reply, err := g.generate(ctx, quote)
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, context.Canceled) {
			log.Error("error generating sentiment", "err", err)
		}
		return "", err
	}
	span.SetAttributes(attribute.Int("llm.reply_length", len(reply)))
	return reply, nil
}

func (g *Generator) generate(ctx context.Context, quote *domain.CoinQuote) (string, error) {
	usd, ok := quote.USD()
	if !ok {
		return "", ErrIncompleteQuote
	}

	completion, err := g.llm.CreateChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(BuildPrompt(quote.Name, usd)),
		},
	})
	if err != nil {
		return "", err
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}
	return completion.Choices[0].Message.Content, nil
}

// openaiClient wraps the official SDK's chat completions service.
type openaiClient struct {
	client openai.Client
}

// NewOpenAIClient talks to any OpenAI-compatible server. For Ollama,
// baseURL is the server root (e.g. http://localhost:11434) and apiKey may
// be empty.
func NewOpenAIClient(baseURL, apiKey string) LLMClient {
	opts := []option.RequestOption{}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL+"/v1/"))
	}
	if apiKey == "" {
		apiKey = "ollama"
	}
	opts = append(opts, option.WithAPIKey(apiKey))
	return &openaiClient{client: openai.NewClient(opts...)}
}

func (c *openaiClient) CreateChatCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}
