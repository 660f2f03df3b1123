package usecase

import (
	"context"
	"fmt"

	"github.com/mhxia/finsight/internal/core/domain"
	"github.com/mhxia/finsight/internal/core/ports"
)

// IndexAdminUseCase owns hybrid index lifecycle operations that span both
// channels: full rebuild, attach-on-startup, and whole-file removal.
type IndexAdminUseCase struct {
	repo     ports.ReportRepository
	storage  ports.ObjectStorage
	embedder ports.Embedder
	index    ports.VectorIndex
}

func NewIndexAdminUseCase(
	repo ports.ReportRepository,
	storage ports.ObjectStorage,
	embedder ports.Embedder,
	index ports.VectorIndex,
) *IndexAdminUseCase {
	return &IndexAdminUseCase{
		repo:     repo,
		storage:  storage,
		embedder: embedder,
		index:    index,
	}
}

// BuildHybridIndex rebuilds both collections from scratch. An empty input for
// a channel leaves that channel empty but usable.
func (uc *IndexAdminUseCase) BuildHybridIndex(ctx context.Context, textDocs, tableDocs []domain.Document) error {
	if err := uc.index.Reset(ctx, domain.ChannelText); err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "reset text channel", err)
	}
	if err := uc.index.Reset(ctx, domain.ChannelTable); err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "reset table channel", err)
	}

	if err := uc.rebuildChannel(ctx, domain.ChannelText, textDocs); err != nil {
		return err
	}
	return uc.rebuildChannel(ctx, domain.ChannelTable, tableDocs)
}

func (uc *IndexAdminUseCase) rebuildChannel(ctx context.Context, channel domain.Channel, docs []domain.Document) error {
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
			return fmt.Errorf("embed %s rebuild batch: %w", channel, err)
		}
		if err := uc.index.Add(ctx, channel, batch, vectors); err != nil {
			return domain.WrapError(domain.ErrIndexUnavailable,
				fmt.Sprintf("add %s rebuild batch", channel), err)
		}
	}
	return nil
}

// LoadExistingIndex probes the persisted collections. It reports false when
// both channels are absent or empty, so the caller can boot in degraded mode.
func (uc *IndexAdminUseCase) LoadExistingIndex(ctx context.Context) (bool, error) {
	textCount, err := uc.index.Count(ctx, domain.ChannelText)
	if err != nil {
		return false, domain.WrapError(domain.ErrIndexUnavailable, "count text channel", err)
	}
	tableCount, err := uc.index.Count(ctx, domain.ChannelTable)
	if err != nil {
		return false, domain.WrapError(domain.ErrIndexUnavailable, "count table channel", err)
	}
	return textCount > 0 || tableCount > 0, nil
}

// RemoveFile deletes every vector of one source file from both channels.
func (uc *IndexAdminUseCase) RemoveFile(ctx context.Context, filename string) error {
	if filename == "" {
		return domain.WrapError(domain.ErrInvalidInput, "remove file",
			fmt.Errorf("filename is required"))
	}
	if err := uc.index.DeleteByFilename(ctx, domain.ChannelText, filename); err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable,
			fmt.Sprintf("delete %s from text channel", filename), err)
	}
	if err := uc.index.DeleteByFilename(ctx, domain.ChannelTable, filename); err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable,
			fmt.Sprintf("delete %s from table channel", filename), err)
	}
	return nil
}

// RemoveReport removes one report everywhere: both index channels, the stored
// object, and the registry row.
func (uc *IndexAdminUseCase) RemoveReport(ctx context.Context, reportID string) error {
	report, err := uc.repo.GetByID(ctx, reportID)
	if err != nil {
		return fmt.Errorf("fetch report by id: %w", err)
	}

	if err := uc.RemoveFile(ctx, report.Filename); err != nil {
		return err
	}
	if err := uc.storage.Remove(ctx, report.StoragePath); err != nil {
		return fmt.Errorf("remove stored object: %w", err)
	}
	if err := uc.repo.Delete(ctx, report.ID); err != nil {
		return fmt.Errorf("delete report row: %w", err)
	}
	return nil
}
