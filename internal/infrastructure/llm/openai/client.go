package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mhxia/finsight/internal/core/domain"
	"github.com/mhxia/finsight/internal/infrastructure/resilience"
)

type Client struct {
	api        *openai.Client
	chatModel  string
	embedModel string
	executor   *resilience.Executor
}

type Options struct {
	BaseURL            string
	APIKey             string
	ChatModel          string
	EmbedModel         string
	ResilienceExecutor *resilience.Executor
}

func New(options Options) *Client {
	cfg := openai.DefaultConfig(options.APIKey)
	if options.BaseURL != "" {
		cfg.BaseURL = options.BaseURL
	}

	chatModel := options.ChatModel
	if chatModel == "" {
		chatModel = openai.GPT4oMini
	}
	embedModel := options.EmbedModel
	if embedModel == "" {
		embedModel = string(openai.SmallEmbedding3)
	}

	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		chatModel:  chatModel,
		embedModel: embedModel,
		executor:   options.ResilienceExecutor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var vectors [][]float32
	call := func(ctx context.Context) error {
		resp, err := e.client.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(e.client.embedModel),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("embedding count mismatch: %d/%d", len(resp.Data), len(texts))
		}
		vectors = make([][]float32, len(resp.Data))
		for i, item := range resp.Data {
			vectors[i] = item.Embedding
		}
		return nil
	}

	if err := e.client.execute(ctx, "openai.embed", call); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question string, candidates []domain.ScoredCandidate) (string, error) {
	return g.client.chat(ctx, buildAnswerPrompt(question, candidates))
}

func (g *Generator) GenerateFromPrompt(ctx context.Context, prompt string) (string, error) {
	return g.client.chat(ctx, prompt)
}

func (c *Client) chat(ctx context.Context, prompt string) (string, error) {
	var answer string
	call := func(ctx context.Context) error {
		resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.chatModel,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}
		answer = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	if err := c.execute(ctx, "openai.generate", call); err != nil {
		return "", err
	}
	return answer, nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyOpenAIError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}
