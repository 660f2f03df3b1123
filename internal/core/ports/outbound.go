package ports

import (
	"context"
	"io"

	"github.com/mhxia/finsight/internal/core/domain"
)

// ReportRepository persists and reads report registry state.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.Report) error
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	GetByFilename(ctx context.Context, filename string) (*domain.Report, error)
	List(ctx context.Context) ([]domain.Report, error)
	UpdateStatus(ctx context.Context, id string, status domain.ReportStatus, errMessage string) error
	SaveIndexStats(ctx context.Context, id, company, year string, pages, tables int) error
	Delete(ctx context.Context, id string) error
}

// JobStore records processing runs for observability and audit.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.ProcessingJob) error
	FinishJob(ctx context.Context, id string, status domain.JobStatus, errMessage string, pages, tables int) error
	ListJobsByReport(ctx context.Context, reportID string) ([]domain.ProcessingJob, error)
}

// ObjectStorage stores uploaded report files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishReportUploaded(ctx context.Context, reportID string) error
	SubscribeReportUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// ReportParser turns one stored report file into pages and tables.
type ReportParser interface {
	Parse(ctx context.Context, filename string, data io.Reader) (*domain.ParsedReport, error)
}

// Chunker splits narrative text into indexable chunks.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for documents and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the dual-collection hybrid index collaborator.
type VectorIndex interface {
	Add(ctx context.Context, channel domain.Channel, docs []domain.Document, vectors [][]float32) error
	Query(ctx context.Context, channel domain.Channel, vector []float32, limit int) ([]domain.ScoredDocument, error)
	Count(ctx context.Context, channel domain.Channel) (int, error)
	DeleteByFilename(ctx context.Context, channel domain.Channel, filename string) error
	Reset(ctx context.Context, channel domain.Channel) error
}

// AnswerGenerator creates the final user-facing answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, candidates []domain.ScoredCandidate) (string, error)
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
}
