package usecase

import (
	"context"
	"fmt"

	"github.com/mhxia/finsight/internal/core/domain"
	"github.com/mhxia/finsight/internal/core/ports"
)

// AnswerUseCase grounds generated answers in hybrid retrieval results.
type AnswerUseCase struct {
	retriever ports.ContextRetriever
	generator ports.AnswerGenerator
}

func NewAnswerUseCase(
	retriever ports.ContextRetriever,
	generator ports.AnswerGenerator,
) *AnswerUseCase {
	return &AnswerUseCase{
		retriever: retriever,
		generator: generator,
	}
}

func (uc *AnswerUseCase) Answer(
	ctx context.Context,
	question string,
	topK int,
	filter domain.ContextFilter,
) (*domain.Answer, error) {
	candidates := uc.retriever.Retrieve(ctx, question, domain.RetrieveOptions{
		TopK:     topK,
		Strategy: domain.StrategyAuto,
		Filter:   filter,
	})

	answerText, err := uc.generator.GenerateAnswer(ctx, question, candidates)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.Answer{
		Text:    answerText,
		Sources: candidates,
	}, nil
}
