package main

import (
	"log"
	"log/slog"
	"os"

	mcpadapter "github.com/mhxia/finsight/internal/adapters/mcp"
	"github.com/mhxia/finsight/internal/config"
	"github.com/mhxia/finsight/internal/core/domain"
	"github.com/mhxia/finsight/internal/core/ports"
	"github.com/mhxia/finsight/internal/core/usecase"
	"github.com/mhxia/finsight/internal/infrastructure/llm/openai"
	"github.com/mhxia/finsight/internal/infrastructure/resilience"
	"github.com/mhxia/finsight/internal/infrastructure/vector/chroma"
	"github.com/mhxia/finsight/internal/observability/logging"
)

// The MCP server only retrieves, so it wires the retrieval path directly
// instead of booting the full app with postgres and NATS.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	llm := openai.New(openai.Options{
		BaseURL:            cfg.OpenAIBaseURL,
		APIKey:             cfg.OpenAIAPIKey,
		ChatModel:          cfg.OpenAIChatModel,
		EmbedModel:         cfg.OpenAIEmbedModel,
		ResilienceExecutor: executor,
	})
	embedder := openai.NewEmbedder(llm)

	var index ports.VectorIndex
	if cfg.ChromaURL == "" {
		index = chroma.NewMemoryIndex()
	} else {
		index = chroma.New(cfg.ChromaURL)
	}

	scorer := usecase.NewScorer(domain.ScoreWeights{
		Similarity: cfg.ScoreSimWeight,
		Metric:     cfg.ScoreMetricWeight,
		Year:       cfg.ScoreYearWeight,
	}, nil)
	retriever := usecase.NewHybridRetrieveUseCase(embedder, index, scorer, slog.Default(), cfg.RetrieveTopK)

	if err := mcpadapter.NewServer(retriever).ServeStdio(); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}
