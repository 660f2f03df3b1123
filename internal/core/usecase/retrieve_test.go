package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mhxia/finsight/internal/core/domain"
)

type retrieveEmbedderFake struct {
	vector  []float32
	err     error
	queries []string
}

func (f *retrieveEmbedderFake) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func (f *retrieveEmbedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type retrieveQueryCall struct {
	channel domain.Channel
	limit   int
}

type retrieveIndexFake struct {
	hits     map[domain.Channel][]domain.ScoredDocument
	queryErr map[domain.Channel]error
	counts   map[domain.Channel]int
	countErr map[domain.Channel]error
	calls    []retrieveQueryCall
}

func (f *retrieveIndexFake) Add(context.Context, domain.Channel, []domain.Document, [][]float32) error {
	return errors.New("not implemented")
}

func (f *retrieveIndexFake) Query(_ context.Context, channel domain.Channel, _ []float32, limit int) ([]domain.ScoredDocument, error) {
	f.calls = append(f.calls, retrieveQueryCall{channel: channel, limit: limit})
	if err := f.queryErr[channel]; err != nil {
		return nil, err
	}
	return f.hits[channel], nil
}

func (f *retrieveIndexFake) Count(_ context.Context, channel domain.Channel) (int, error) {
	if err := f.countErr[channel]; err != nil {
		return 0, err
	}
	return f.counts[channel], nil
}

func (f *retrieveIndexFake) DeleteByFilename(context.Context, domain.Channel, string) error {
	return errors.New("not implemented")
}

func (f *retrieveIndexFake) Reset(context.Context, domain.Channel) error {
	return errors.New("not implemented")
}

func newRetrieveForTest(embedder *retrieveEmbedderFake, index *retrieveIndexFake) *HybridRetrieveUseCase {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHybridRetrieveUseCase(embedder, index, NewScorer(domain.ScoreWeights{}, scoreNow), logger, 5)
}

func channelHit(id string, channel domain.Channel, similarity float64, meta domain.Metadata) domain.ScoredDocument {
	if meta == nil {
		meta = domain.Metadata{}
	}
	meta[domain.MetaDocType] = string(channel)
	return domain.ScoredDocument{
		Document:   domain.Document{ID: id, Text: "文档内容", Metadata: meta},
		Similarity: similarity,
	}
}

func TestRetrieveEmptyQueryReturnsEmpty(t *testing.T) {
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	index := &retrieveIndexFake{}
	uc := newRetrieveForTest(embedder, index)

	got := uc.Retrieve(context.Background(), "   ", domain.RetrieveOptions{})
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d candidates", len(got))
	}
	if len(embedder.queries) != 0 {
		t.Fatalf("blank query must not reach the embedder")
	}
}

func TestRetrieveEmbedErrorDegradesToEmpty(t *testing.T) {
	embedder := &retrieveEmbedderFake{err: errors.New("embedding backend down")}
	index := &retrieveIndexFake{}
	uc := newRetrieveForTest(embedder, index)

	got := uc.Retrieve(context.Background(), "净利润", domain.RetrieveOptions{})
	if len(got) != 0 {
		t.Fatalf("expected degraded empty result, got %d", len(got))
	}
	if len(index.calls) != 0 {
		t.Fatalf("index must not be queried after embed failure")
	}
}

func TestRetrieveEmbedsExpandedQuery(t *testing.T) {
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	index := &retrieveIndexFake{}
	uc := newRetrieveForTest(embedder, index)

	uc.Retrieve(context.Background(), "公司的净利润", domain.RetrieveOptions{Strategy: domain.StrategyHybrid})

	if len(embedder.queries) != 1 {
		t.Fatalf("expected 1 embed call, got %d", len(embedder.queries))
	}
	embedded := embedder.queries[0]
	if !strings.HasPrefix(embedded, "公司的净利润") {
		t.Fatalf("embedded query must keep original prefix, got %q", embedded)
	}
	if !strings.Contains(embedded, "盈余") {
		t.Fatalf("embedded query must carry synonyms, got %q", embedded)
	}
}

func TestRetrieveTextFirstQueriesOnlyTextChannel(t *testing.T) {
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	index := &retrieveIndexFake{hits: map[domain.Channel][]domain.ScoredDocument{
		domain.ChannelText: {channelHit("t1", domain.ChannelText, 0.9, nil)},
	}}
	uc := newRetrieveForTest(embedder, index)

	got := uc.Retrieve(context.Background(), "公司概况", domain.RetrieveOptions{
		TopK:     4,
		Strategy: domain.StrategyTextFirst,
	})

	if len(index.calls) != 1 || index.calls[0].channel != domain.ChannelText || index.calls[0].limit != 4 {
		t.Fatalf("unexpected channel calls: %+v", index.calls)
	}
	if len(got) != 1 || got[0].Strategy != domain.StrategyTextFirst {
		t.Fatalf("unexpected candidates: %+v", got)
	}
}

func TestRetrieveTableFirstQueriesOnlyTableChannel(t *testing.T) {
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	index := &retrieveIndexFake{hits: map[domain.Channel][]domain.ScoredDocument{
		domain.ChannelTable: {channelHit("tb1", domain.ChannelTable, 0.8, nil)},
	}}
	uc := newRetrieveForTest(embedder, index)

	got := uc.Retrieve(context.Background(), "公司概况", domain.RetrieveOptions{
		TopK:     3,
		Strategy: domain.StrategyTableFirst,
	})

	if len(index.calls) != 1 || index.calls[0].channel != domain.ChannelTable || index.calls[0].limit != 3 {
		t.Fatalf("unexpected channel calls: %+v", index.calls)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
}

func TestRetrieveHybridSplitsFetchAcrossChannels(t *testing.T) {
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	index := &retrieveIndexFake{}
	uc := newRetrieveForTest(embedder, index)

	uc.Retrieve(context.Background(), "公司概况", domain.RetrieveOptions{
		TopK:     6,
		Strategy: domain.StrategyHybrid,
	})

	if len(index.calls) != 2 {
		t.Fatalf("expected both channels queried, got %+v", index.calls)
	}
	if index.calls[0].channel != domain.ChannelText || index.calls[0].limit != 3 {
		t.Fatalf("text channel call = %+v", index.calls[0])
	}
	if index.calls[1].channel != domain.ChannelTable || index.calls[1].limit != 3 {
		t.Fatalf("table channel call = %+v", index.calls[1])
	}
}

func TestRetrieveAutoRoutesIndicatorQueryToTables(t *testing.T) {
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	index := &retrieveIndexFake{}
	uc := newRetrieveForTest(embedder, index)

	uc.Retrieve(context.Background(), "营业收入是多少", domain.RetrieveOptions{Strategy: domain.StrategyAuto})

	if len(index.calls) != 1 || index.calls[0].channel != domain.ChannelTable {
		t.Fatalf("indicator query must route to table channel, got %+v", index.calls)
	}
}

func TestRetrieveUnknownStrategyFallsBackToHybrid(t *testing.T) {
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	index := &retrieveIndexFake{}
	uc := newRetrieveForTest(embedder, index)

	got := uc.Retrieve(context.Background(), "公司概况", domain.RetrieveOptions{
		TopK:     4,
		Strategy: domain.Strategy("definitely_bogus"),
	})

	if len(index.calls) != 2 {
		t.Fatalf("unknown strategy must degrade to hybrid, got %+v", index.calls)
	}
	if len(got) != 0 {
		t.Fatalf("no hits configured, expected empty result")
	}
}

func TestRetrieveFilterWidensFetchAndFilters(t *testing.T) {
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	index := &retrieveIndexFake{hits: map[domain.Channel][]domain.ScoredDocument{
		domain.ChannelText: {
			channelHit("keep", domain.ChannelText, 0.9, domain.Metadata{domain.MetaYear: "2023"}),
			channelHit("drop", domain.ChannelText, 0.95, domain.Metadata{domain.MetaYear: "2019"}),
			channelHit("undated", domain.ChannelText, 0.5, nil),
		},
	}}
	uc := newRetrieveForTest(embedder, index)

	got := uc.Retrieve(context.Background(), "公司概况", domain.RetrieveOptions{
		TopK:     4,
		Strategy: domain.StrategyTextFirst,
		Filter:   domain.ContextFilter{Year: "2023"},
	})

	if len(index.calls) != 1 || index.calls[0].limit != 12 {
		t.Fatalf("filtered retrieval must fetch topK*3, got %+v", index.calls)
	}
	if len(got) != 2 {
		t.Fatalf("expected year-mismatched hit dropped, got %d candidates", len(got))
	}
	for _, candidate := range got {
		if candidate.Document.ID == "drop" {
			t.Fatalf("2019 document must be filtered out")
		}
	}
}

func TestRetrieveRescoresWithOriginalQuery(t *testing.T) {
	// The expansion of "ROE趋势" mentions 净资产收益率; re-scoring against the
	// expanded text would therefore credit this document a metric match.
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	hit := channelHit("t1", domain.ChannelText, 0.9, nil)
	hit.Document.Text = "净资产收益率保持稳定"
	index := &retrieveIndexFake{hits: map[domain.Channel][]domain.ScoredDocument{
		domain.ChannelText: {hit},
	}}
	uc := newRetrieveForTest(embedder, index)

	got := uc.Retrieve(context.Background(), "ROE趋势", domain.RetrieveOptions{
		TopK:     3,
		Strategy: domain.StrategyTextFirst,
	})

	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].MetricScore != 0 {
		t.Fatalf("MetricScore = %v, want 0: scoring must see the original query only", got[0].MetricScore)
	}
}

func TestRetrieveSortsByScoreAndTruncates(t *testing.T) {
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	index := &retrieveIndexFake{hits: map[domain.Channel][]domain.ScoredDocument{
		domain.ChannelText: {
			channelHit("low", domain.ChannelText, 0.2, nil),
			channelHit("high", domain.ChannelText, 0.9, nil),
		},
		domain.ChannelTable: {
			channelHit("mid", domain.ChannelTable, 0.6, nil),
		},
	}}
	uc := newRetrieveForTest(embedder, index)

	got := uc.Retrieve(context.Background(), "公司概况", domain.RetrieveOptions{
		TopK:     2,
		Strategy: domain.StrategyHybrid,
	})

	if len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
	if got[0].Document.ID != "high" || got[1].Document.ID != "mid" {
		t.Fatalf("unexpected ranking: %s, %s", got[0].Document.ID, got[1].Document.ID)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores must be descending: %v, %v", got[0].Score, got[1].Score)
	}
}

func TestRetrieveStableOrderOnScoreTies(t *testing.T) {
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	index := &retrieveIndexFake{hits: map[domain.Channel][]domain.ScoredDocument{
		domain.ChannelText: {
			channelHit("text-a", domain.ChannelText, 0.7, nil),
			channelHit("text-b", domain.ChannelText, 0.7, nil),
		},
		domain.ChannelTable: {
			channelHit("table-a", domain.ChannelTable, 0.7, nil),
		},
	}}
	uc := newRetrieveForTest(embedder, index)

	got := uc.Retrieve(context.Background(), "公司概况", domain.RetrieveOptions{
		TopK:     6,
		Strategy: domain.StrategyHybrid,
	})

	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	// Equal scores keep retrieval order: text hits before table hits.
	if got[0].Document.ID != "text-a" || got[1].Document.ID != "text-b" || got[2].Document.ID != "table-a" {
		t.Fatalf("tie order broken: %s, %s, %s",
			got[0].Document.ID, got[1].Document.ID, got[2].Document.ID)
	}
}

func TestRetrieveChannelErrorDegradesToRemaining(t *testing.T) {
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	index := &retrieveIndexFake{
		hits: map[domain.Channel][]domain.ScoredDocument{
			domain.ChannelText: {channelHit("t1", domain.ChannelText, 0.9, nil)},
		},
		queryErr: map[domain.Channel]error{
			domain.ChannelTable: errors.New("collection missing"),
		},
	}
	uc := newRetrieveForTest(embedder, index)

	got := uc.Retrieve(context.Background(), "公司概况", domain.RetrieveOptions{
		TopK:     4,
		Strategy: domain.StrategyHybrid,
	})

	if len(got) != 1 || got[0].Document.ID != "t1" {
		t.Fatalf("expected surviving text hit, got %+v", got)
	}
}

func TestStatsReportsChannelReadiness(t *testing.T) {
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	index := &retrieveIndexFake{
		counts: map[domain.Channel]int{
			domain.ChannelText:  12,
			domain.ChannelTable: 0,
		},
	}
	uc := newRetrieveForTest(embedder, index)

	stats := uc.Stats(context.Background())

	if !stats.TextReady || stats.TextCount != 12 {
		t.Fatalf("text stats = ready %v count %d", stats.TextReady, stats.TextCount)
	}
	if stats.TableReady || stats.TableCount != 0 {
		t.Fatalf("table stats = ready %v count %d", stats.TableReady, stats.TableCount)
	}
	if stats.Weights != domain.DefaultScoreWeights() {
		t.Fatalf("Weights = %+v", stats.Weights)
	}
	if stats.MetricTerms != len(financialMetricTerms) {
		t.Fatalf("MetricTerms = %d", stats.MetricTerms)
	}
}

func TestStatsToleratesCountErrors(t *testing.T) {
	embedder := &retrieveEmbedderFake{vector: []float32{1}}
	index := &retrieveIndexFake{
		counts:   map[domain.Channel]int{domain.ChannelTable: 3},
		countErr: map[domain.Channel]error{domain.ChannelText: errors.New("unreachable")},
	}
	uc := newRetrieveForTest(embedder, index)

	stats := uc.Stats(context.Background())

	if stats.TextReady || stats.TextCount != 0 {
		t.Fatalf("failed channel must read as not ready, got %+v", stats)
	}
	if !stats.TableReady || stats.TableCount != 3 {
		t.Fatalf("table stats = %+v", stats)
	}
}
