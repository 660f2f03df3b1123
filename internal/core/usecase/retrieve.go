package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/mhxia/finsight/internal/core/domain"
	"github.com/mhxia/finsight/internal/core/ports"
)

const defaultRetrieveTopK = 5

// filterFetchFactor widens channel retrieval when a context filter is present
// so post-filtering still has enough candidates to fill top-k.
const filterFetchFactor = 3

// HybridRetrieveUseCase runs the retrieval pipeline: expand, route, query the
// channels, filter, re-score with the original query, rank, truncate.
//
// Retrieve never surfaces backend errors: embedding or channel failures are
// logged and degrade the call to fewer (possibly zero) candidates. Callers
// must treat an empty result as a valid outcome.
type HybridRetrieveUseCase struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	scorer   *Scorer
	logger   *slog.Logger
	topK     int
}

func NewHybridRetrieveUseCase(
	embedder ports.Embedder,
	index ports.VectorIndex,
	scorer *Scorer,
	logger *slog.Logger,
	defaultTopK int,
) *HybridRetrieveUseCase {
	if defaultTopK <= 0 {
		defaultTopK = defaultRetrieveTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRetrieveUseCase{
		embedder: embedder,
		index:    index,
		scorer:   scorer,
		logger:   logger,
		topK:     defaultTopK,
	}
}

func (uc *HybridRetrieveUseCase) Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) []domain.ScoredCandidate {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.ScoredCandidate{}
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = uc.topK
	}
	strategy := uc.resolveStrategy(query, opts.Strategy)

	// Strategy routing and re-scoring see the original query; only the
	// embedding uses the expanded form.
	expanded := ExpandQuery(query)
	vector, err := uc.embedder.EmbedQuery(ctx, expanded)
	if err != nil {
		uc.logger.Warn("retrieval degraded to empty result",
			"stage", "embed_query", "strategy", strategy, "error", err)
		return []domain.ScoredCandidate{}
	}

	fetchK := topK
	if !opts.Filter.IsZero() {
		fetchK = topK * filterFetchFactor
	}

	hits := uc.queryChannels(ctx, strategy, vector, fetchK)
	if !opts.Filter.IsZero() {
		hits = applyContextFilter(hits, opts.Filter)
	}

	candidates := make([]domain.ScoredCandidate, 0, len(hits))
	for _, hit := range hits {
		breakdown := uc.scorer.Breakdown(query, hit.Document, hit.Similarity)
		candidates = append(candidates, domain.ScoredCandidate{
			Document:    hit.Document,
			Similarity:  hit.Similarity,
			MetricScore: breakdown.MetricScore,
			YearScore:   breakdown.YearScore,
			Score:       breakdown.Score,
			Strategy:    strategy,
		})
	}

	// Stable sort keeps channel order (text before table) on score ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

func (uc *HybridRetrieveUseCase) Stats(ctx context.Context) domain.IndexStats {
	stats := domain.IndexStats{
		Weights:     uc.scorer.Weights(),
		MetricTerms: len(financialMetricTerms),
	}

	if count, err := uc.index.Count(ctx, domain.ChannelText); err != nil {
		uc.logger.Warn("text channel count unavailable", "error", err)
	} else {
		stats.TextCount = count
		stats.TextReady = count > 0
	}
	if count, err := uc.index.Count(ctx, domain.ChannelTable); err != nil {
		uc.logger.Warn("table channel count unavailable", "error", err)
	} else {
		stats.TableCount = count
		stats.TableReady = count > 0
	}
	return stats
}

func (uc *HybridRetrieveUseCase) resolveStrategy(query string, requested domain.Strategy) domain.Strategy {
	switch requested {
	case domain.StrategyTextFirst, domain.StrategyTableFirst, domain.StrategyHybrid:
		return requested
	case domain.StrategyAuto, "":
		return determineStrategy(query)
	default:
		// Unknown strategies degrade to hybrid instead of failing the call.
		uc.logger.Warn("unknown retrieval strategy, using hybrid", "strategy", requested)
		return domain.StrategyHybrid
	}
}

func (uc *HybridRetrieveUseCase) queryChannels(ctx context.Context, strategy domain.Strategy, vector []float32, fetchK int) []domain.ScoredDocument {
	switch strategy {
	case domain.StrategyTextFirst:
		return uc.queryChannel(ctx, domain.ChannelText, vector, fetchK)
	case domain.StrategyTableFirst:
		return uc.queryChannel(ctx, domain.ChannelTable, vector, fetchK)
	default:
		half := fetchK / 2
		hits := uc.queryChannel(ctx, domain.ChannelText, vector, half)
		return append(hits, uc.queryChannel(ctx, domain.ChannelTable, vector, half)...)
	}
}

func (uc *HybridRetrieveUseCase) queryChannel(ctx context.Context, channel domain.Channel, vector []float32, limit int) []domain.ScoredDocument {
	if limit <= 0 {
		return nil
	}
	hits, err := uc.index.Query(ctx, channel, vector, limit)
	if err != nil {
		uc.logger.Warn("channel query degraded to empty",
			"channel", channel, "limit", limit, "error", err)
		return nil
	}
	return hits
}

func applyContextFilter(hits []domain.ScoredDocument, filter domain.ContextFilter) []domain.ScoredDocument {
	kept := make([]domain.ScoredDocument, 0, len(hits))
	for _, hit := range hits {
		if matchesContextFilter(hit.Document, filter) {
			kept = append(kept, hit)
		}
	}
	return kept
}
