package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mhxia/finsight/internal/config"
	"github.com/mhxia/finsight/internal/core/domain"
	"github.com/mhxia/finsight/internal/core/ports"
	"github.com/mhxia/finsight/internal/core/usecase"
	"github.com/mhxia/finsight/internal/infrastructure/chunking"
	"github.com/mhxia/finsight/internal/infrastructure/extractor/excel"
	"github.com/mhxia/finsight/internal/infrastructure/extractor/pdf"
	"github.com/mhxia/finsight/internal/infrastructure/llm/openai"
	"github.com/mhxia/finsight/internal/infrastructure/queue/nats"
	"github.com/mhxia/finsight/internal/infrastructure/repository/postgres"
	"github.com/mhxia/finsight/internal/infrastructure/resilience"
	"github.com/mhxia/finsight/internal/infrastructure/storage/localfs"
	"github.com/mhxia/finsight/internal/infrastructure/vector/chroma"
)

// App wires infrastructure into the use cases. Both binaries (api, worker)
// share the same construction path so configuration drift between them is
// impossible.
type App struct {
	Config config.Config

	Queue   ports.MessageQueue
	Reports ports.ReportRepository
	Jobs    ports.JobStore

	IngestUC    ports.ReportIngestor
	ProcessUC   ports.ReportProcessor
	RetrieveUC  ports.ContextRetriever
	AnswerUC    ports.ReportQueryService
	IndicatorUC ports.IndicatorRetriever
	AdminUC     ports.IndexAdmin

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	reports := postgres.NewReportRepository(db)
	if err := reports.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	jobs := postgres.NewJobRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	llm := openai.New(openai.Options{
		BaseURL:            cfg.OpenAIBaseURL,
		APIKey:             cfg.OpenAIAPIKey,
		ChatModel:          cfg.OpenAIChatModel,
		EmbedModel:         cfg.OpenAIEmbedModel,
		ResilienceExecutor: executor,
	})
	embedder := openai.NewEmbedder(llm)
	generator := openai.NewGenerator(llm)

	// Empty ChromaURL selects the in-process index for local development.
	var index ports.VectorIndex
	if cfg.ChromaURL == "" {
		index = chroma.NewMemoryIndex()
	} else {
		index = chroma.New(cfg.ChromaURL)
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	parsers := map[string]ports.ReportParser{
		".pdf":  pdf.NewExtractor(),
		".xlsx": excel.NewExtractor(),
		".xls":  excel.NewExtractor(),
	}

	scorer := usecase.NewScorer(domain.ScoreWeights{
		Similarity: cfg.ScoreSimWeight,
		Metric:     cfg.ScoreMetricWeight,
		Year:       cfg.ScoreYearWeight,
	}, nil)

	ingestUC := usecase.NewIngestReportUseCase(reports, storage, queue)
	processUC := usecase.NewProcessReportUseCase(reports, jobs, storage, parsers, chunker, embedder, index)
	retrieveUC := usecase.NewHybridRetrieveUseCase(embedder, index, scorer, slog.Default(), cfg.RetrieveTopK)
	answerUC := usecase.NewAnswerUseCase(retrieveUC, generator)
	indicatorUC := usecase.NewIndicatorRetrieveUseCase(retrieveUC)
	adminUC := usecase.NewIndexAdminUseCase(reports, storage, embedder, index)

	return &App{
		Config:  cfg,
		Queue:   queue,
		Reports: reports,
		Jobs:    jobs,

		IngestUC:    ingestUC,
		ProcessUC:   processUC,
		RetrieveUC:  retrieveUC,
		AnswerUC:    answerUC,
		IndicatorUC: indicatorUC,
		AdminUC:     adminUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
