package ports

import (
	"context"
	"io"

	"github.com/mhxia/finsight/internal/core/domain"
)

// ReportIngestor is the inbound contract for report upload orchestration.
type ReportIngestor interface {
	Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (*domain.Report, error)
}

// ContextRetriever is the inbound contract for hybrid retrieval. Retrieve
// never returns an error: backend failures degrade to an empty result set.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) []domain.ScoredCandidate
	Stats(ctx context.Context) domain.IndexStats
}

// ReportQueryService is the inbound contract for grounded question answering.
type ReportQueryService interface {
	Answer(ctx context.Context, question string, topK int, filter domain.ContextFilter) (*domain.Answer, error)
}

// IndicatorRetriever fetches evidence per named financial indicator.
type IndicatorRetriever interface {
	RetrieveIndicators(ctx context.Context, names []string, filter domain.ContextFilter) ([]domain.IndicatorResult, error)
}

// ReportReader is the inbound read model for report metadata/state.
type ReportReader interface {
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	List(ctx context.Context) ([]domain.Report, error)
}

// ReportProcessor is the inbound contract for asynchronous report processing.
type ReportProcessor interface {
	ProcessByID(ctx context.Context, reportID string) error
}

// IndexAdmin manages hybrid index lifecycle beyond per-report processing.
type IndexAdmin interface {
	BuildHybridIndex(ctx context.Context, textDocs, tableDocs []domain.Document) error
	LoadExistingIndex(ctx context.Context) (bool, error)
	RemoveFile(ctx context.Context, filename string) error
	RemoveReport(ctx context.Context, reportID string) error
}
