package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/mhxia/finsight/internal/core/domain"
)

type answerRetrieverFake struct {
	candidates []domain.ScoredCandidate
	lastQuery  string
	lastOpts   domain.RetrieveOptions
}

func (f *answerRetrieverFake) Retrieve(_ context.Context, query string, opts domain.RetrieveOptions) []domain.ScoredCandidate {
	f.lastQuery = query
	f.lastOpts = opts
	return f.candidates
}

func (f *answerRetrieverFake) Stats(context.Context) domain.IndexStats {
	return domain.IndexStats{}
}

type answerGeneratorFake struct {
	answer         string
	err            error
	lastQuestion   string
	lastCandidates []domain.ScoredCandidate
}

func (f *answerGeneratorFake) GenerateAnswer(_ context.Context, question string, candidates []domain.ScoredCandidate) (string, error) {
	f.lastQuestion = question
	f.lastCandidates = candidates
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *answerGeneratorFake) GenerateFromPrompt(context.Context, string) (string, error) {
	return "", errors.New("not implemented")
}

func TestAnswerGroundsGenerationInRetrieval(t *testing.T) {
	candidates := []domain.ScoredCandidate{
		{Document: domain.Document{ID: "d1", Text: "净利润 120 亿"}, Score: 0.8},
	}
	retriever := &answerRetrieverFake{candidates: candidates}
	generator := &answerGeneratorFake{answer: "净利润为 120 亿元。"}
	uc := NewAnswerUseCase(retriever, generator)

	filter := domain.ContextFilter{Company: "招商银行"}
	answer, err := uc.Answer(context.Background(), "净利润是多少", 3, filter)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if retriever.lastQuery != "净利润是多少" {
		t.Fatalf("retriever saw query %q", retriever.lastQuery)
	}
	if retriever.lastOpts.TopK != 3 || retriever.lastOpts.Strategy != domain.StrategyAuto {
		t.Fatalf("retrieve opts = %+v", retriever.lastOpts)
	}
	if retriever.lastOpts.Filter != filter {
		t.Fatalf("filter not forwarded: %+v", retriever.lastOpts.Filter)
	}

	if generator.lastQuestion != "净利润是多少" {
		t.Fatalf("generator saw question %q", generator.lastQuestion)
	}
	if len(generator.lastCandidates) != 1 || generator.lastCandidates[0].Document.ID != "d1" {
		t.Fatalf("generator candidates = %+v", generator.lastCandidates)
	}

	if answer.Text != "净利润为 120 亿元。" {
		t.Fatalf("answer text = %q", answer.Text)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].Document.ID != "d1" {
		t.Fatalf("answer sources = %+v", answer.Sources)
	}
}

func TestAnswerWithEmptyRetrievalStillGenerates(t *testing.T) {
	retriever := &answerRetrieverFake{}
	generator := &answerGeneratorFake{answer: "索引中没有相关资料。"}
	uc := NewAnswerUseCase(retriever, generator)

	answer, err := uc.Answer(context.Background(), "净利润是多少", 5, domain.ContextFilter{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(generator.lastCandidates) != 0 {
		t.Fatalf("expected empty candidate set, got %d", len(generator.lastCandidates))
	}
	if answer.Text == "" || len(answer.Sources) != 0 {
		t.Fatalf("unexpected answer: %+v", answer)
	}
}

func TestAnswerPropagatesGeneratorError(t *testing.T) {
	retriever := &answerRetrieverFake{}
	generator := &answerGeneratorFake{err: errors.New("llm unavailable")}
	uc := NewAnswerUseCase(retriever, generator)

	if _, err := uc.Answer(context.Background(), "净利润", 5, domain.ContextFilter{}); err == nil {
		t.Fatalf("expected error from generator")
	}
}
