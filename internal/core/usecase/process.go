package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mhxia/finsight/internal/core/domain"
	"github.com/mhxia/finsight/internal/core/ports"
)

const embedBatchSize = 32

var (
	fileYearPattern   = regexp.MustCompile(`20\d{2}`)
	reportWordPattern = regexp.MustCompile(`利润表|资产负债表|现金流量表|年报|报告|财务报表|财务报告`)
	yearTokenPattern  = regexp.MustCompile(`\d{4}年?`)
)

// ProcessReportUseCase turns one uploaded report into indexed documents:
// parse per format, chunk narrative pages into the text channel, serialize
// financial tables into the table channel, embed in batches, record stats.
type ProcessReportUseCase struct {
	repo     ports.ReportRepository
	jobs     ports.JobStore
	storage  ports.ObjectStorage
	parsers  map[string]ports.ReportParser
	chunker  ports.Chunker
	embedder ports.Embedder
	index    ports.VectorIndex
}

func NewProcessReportUseCase(
	repo ports.ReportRepository,
	jobs ports.JobStore,
	storage ports.ObjectStorage,
	parsers map[string]ports.ReportParser,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
) *ProcessReportUseCase {
	return &ProcessReportUseCase{
		repo:     repo,
		jobs:     jobs,
		storage:  storage,
		parsers:  parsers,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
	}
}

func (uc *ProcessReportUseCase) ProcessByID(ctx context.Context, reportID string) error {
	if err := uc.markStatus(ctx, reportID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	job := &domain.ProcessingJob{
		ID:        uuid.NewString(),
		ReportID:  reportID,
		Status:    domain.JobRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := uc.jobs.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("create processing job: %w", err)
	}

	pages, tables, err := uc.processPipeline(ctx, reportID)
	if err != nil {
		if failErr := uc.markFailed(ctx, reportID, job.ID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.jobs.FinishJob(ctx, job.ID, domain.JobCompleted, "", pages, tables); err != nil {
		return fmt.Errorf("finish processing job: %w", err)
	}
	if err := uc.markStatus(ctx, reportID, domain.StatusIndexed, ""); err != nil {
		return fmt.Errorf("set status=indexed: %w", err)
	}
	return nil
}

func (uc *ProcessReportUseCase) processPipeline(ctx context.Context, reportID string) (int, int, error) {
	report, err := uc.loadReport(ctx, reportID)
	if err != nil {
		return 0, 0, err
	}

	parsed, err := uc.parse(ctx, report)
	if err != nil {
		return 0, 0, err
	}
	if len(parsed.Pages) == 0 && len(parsed.Tables) == 0 {
		return 0, 0, domain.WrapError(domain.ErrInvalidInput, "parse report",
			errors.New("no extractable pages or tables"))
	}

	company := companyFromFilename(report.Filename)
	year := firstFileYear(report.Filename)

	textDocs := uc.buildTextDocuments(report, parsed.Pages, company, year)
	tableDocs := uc.buildTableDocuments(report, parsed.Tables, company, year)

	// Re-processing the same file must not duplicate vectors.
	if err := uc.index.DeleteByFilename(ctx, domain.ChannelText, report.Filename); err != nil {
		return 0, 0, fmt.Errorf("clear text channel for %s: %w", report.Filename, err)
	}
	if err := uc.index.DeleteByFilename(ctx, domain.ChannelTable, report.Filename); err != nil {
		return 0, 0, fmt.Errorf("clear table channel for %s: %w", report.Filename, err)
	}

	if err := uc.embedAndAdd(ctx, domain.ChannelText, textDocs); err != nil {
		return 0, 0, err
	}
	if err := uc.embedAndAdd(ctx, domain.ChannelTable, tableDocs); err != nil {
		return 0, 0, err
	}

	if err := uc.repo.SaveIndexStats(ctx, report.ID, company, year, len(parsed.Pages), len(parsed.Tables)); err != nil {
		return 0, 0, fmt.Errorf("save index stats: %w", err)
	}
	return len(parsed.Pages), len(parsed.Tables), nil
}

func (uc *ProcessReportUseCase) loadReport(ctx context.Context, reportID string) (*domain.Report, error) {
	report, err := uc.repo.GetByID(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("fetch report by id: %w", err)
	}
	return report, nil
}

func (uc *ProcessReportUseCase) parse(ctx context.Context, report *domain.Report) (*domain.ParsedReport, error) {
	ext := strings.ToLower(filepath.Ext(report.Filename))
	parser, ok := uc.parsers[ext]
	if !ok {
		return nil, domain.WrapError(domain.ErrUnsupportedFile, "parse report",
			fmt.Errorf("no parser for %q", ext))
	}

	file, err := uc.storage.Open(ctx, report.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open stored report: %w", err)
	}
	defer file.Close()

	parsed, err := parser.Parse(ctx, report.Filename, file)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", report.Filename, err)
	}
	return parsed, nil
}

func (uc *ProcessReportUseCase) buildTextDocuments(report *domain.Report, pages []domain.PageText, company, year string) []domain.Document {
	docs := make([]domain.Document, 0, len(pages))
	for _, page := range pages {
		for _, chunk := range uc.chunker.Split(page.Text) {
			docs = append(docs, domain.Document{
				ID:   uuid.NewString(),
				Text: chunk,
				Metadata: domain.Metadata{
					domain.MetaDocType:    string(domain.ChannelText),
					domain.MetaChannel:    string(domain.ChannelText),
					domain.MetaSource:     fmt.Sprintf("%s_page_%d", report.Filename, page.PageNumber),
					domain.MetaSourceFile: report.Filename,
					domain.MetaFilename:   report.Filename,
					domain.MetaCompany:    company,
					domain.MetaYear:       year,
					domain.MetaPageNumber: page.PageNumber,
				},
			})
		}
	}
	return docs
}

func (uc *ProcessReportUseCase) buildTableDocuments(report *domain.Report, tables []domain.ExtractedTable, company, fileYear string) []domain.Document {
	stem := strings.TrimSuffix(report.Filename, filepath.Ext(report.Filename))
	docs := make([]domain.Document, 0, len(tables))
	for _, table := range tables {
		year := table.Year
		if year == "" {
			year = fileYear
		}
		docs = append(docs, domain.Document{
			ID:   uuid.NewString(),
			Text: table.Text,
			Metadata: domain.Metadata{
				domain.MetaDocType:       string(domain.ChannelTable),
				domain.MetaChannel:       string(domain.ChannelTable),
				domain.MetaSource:        fmt.Sprintf("%s_%s", report.Filename, table.SheetName),
				domain.MetaSourceFile:    report.Filename,
				domain.MetaFilename:      report.Filename,
				domain.MetaCompany:       company,
				domain.MetaYear:          year,
				domain.MetaTableID:       fmt.Sprintf("%s_%s", stem, table.SheetName),
				domain.MetaSheetName:     table.SheetName,
				domain.MetaIsFinancial:   table.IsFinancial,
				domain.MetaIsStatement:   table.IsStatement,
				domain.MetaStatementType: table.StatementType,
			},
		})
	}
	return docs
}

func (uc *ProcessReportUseCase) embedAndAdd(ctx context.Context, channel domain.Channel, docs []domain.Document) error {
	for start := 0; start < len(docs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Text
		}
		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed %s batch: %w", channel, err)
		}
		if len(vectors) != len(batch) {
			return domain.WrapError(domain.ErrInvalidInput, "embed batch",
				fmt.Errorf("vectors/docs mismatch: %d/%d", len(vectors), len(batch)))
		}

		if err := uc.index.Add(ctx, channel, batch, vectors); err != nil {
			return fmt.Errorf("add %s batch to index: %w", channel, err)
		}
	}
	return nil
}

func (uc *ProcessReportUseCase) markStatus(ctx context.Context, reportID string, status domain.ReportStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, reportID, status, errMessage)
}

func (uc *ProcessReportUseCase) markFailed(ctx context.Context, reportID, jobID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	if err := uc.jobs.FinishJob(ctx, jobID, domain.JobFailed, processErr.Error(), 0, 0); err != nil {
		return err
	}
	return uc.markStatus(ctx, reportID, domain.StatusFailed, processErr.Error())
}

// companyFromFilename derives the company name recorded on indexed documents.
// Statement words are stripped before year tokens so a trailing "年报" never
// loses its "年" to the year pass.
func companyFromFilename(filename string) string {
	name := fileExtPattern.ReplaceAllString(filename, "")
	name = reportWordPattern.ReplaceAllString(name, "")
	name = yearTokenPattern.ReplaceAllString(name, "")
	name = strings.TrimSpace(fileSeparatorPattern.ReplaceAllString(name, ""))
	if utf8.RuneCountInString(name) < 2 {
		return ""
	}
	return name
}

// firstFileYear pulls the first 20xx year out of a report filename.
func firstFileYear(filename string) string {
	return fileYearPattern.FindString(filename)
}
