package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/mhxia/finsight/internal/core/domain"
	"github.com/mhxia/finsight/internal/core/ports"
)

// IngestReportUseCase accepts a report upload: the file goes to object
// storage, a registry row is created, and the worker is notified.
type IngestReportUseCase struct {
	repo    ports.ReportRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestReportUseCase(
	repo ports.ReportRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestReportUseCase {
	return &IngestReportUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestReportUseCase) Upload(
	ctx context.Context,
	filename, contentType string,
	size int64,
	body io.Reader,
) (*domain.Report, error) {
	if !supportedReportExtension(filename) {
		return nil, domain.WrapError(domain.ErrUnsupportedFile, "upload report",
			fmt.Errorf("extension of %q not in %v", filename, reportFileExtensions))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	report := &domain.Report{
		ID:          id,
		Filename:    filepath.Base(filename),
		ContentType: contentType,
		SizeBytes:   size,
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("create report row: %w", err)
	}

	if err := uc.queue.PublishReportUploaded(ctx, report.ID); err != nil {
		return nil, fmt.Errorf("publish upload event: %w", err)
	}

	return report, nil
}

func supportedReportExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, supported := range reportFileExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// sanitizeFilename keeps letters (CJK included, company names live in the
// filename), digits and safe punctuation; everything else becomes '_'.
func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "report.bin"
	}
	return base
}
