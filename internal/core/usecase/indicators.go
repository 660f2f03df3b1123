package usecase

import (
	"context"
	"strings"

	"github.com/mhxia/finsight/internal/core/domain"
	"github.com/mhxia/finsight/internal/core/ports"
)

const indicatorTopK = 30

// indicatorQueries maps indicator identifiers to the retrieval query used to
// gather evidence for that indicator. Unknown identifiers fall back to the
// identifier itself as a raw query.
var indicatorQueries = map[string]string{
	"roe":                 "ROE 净资产收益率 权益回报率",
	"revenue":             "营业收入 营收 收入",
	"net_profit":          "净利润 净利",
	"total_assets":        "总资产 资产总额 资产合计",
	"net_interest_margin": "净息差 净利息收益率",
	"cost_income_ratio":   "成本收入比 营业成本 营业收入",
}

var indicatorOrder = []string{
	"roe", "revenue", "net_profit", "total_assets",
	"net_interest_margin", "cost_income_ratio",
}

// IndicatorRetrieveUseCase fetches per-indicator evidence for report
// generation, constrained to one company/year context.
type IndicatorRetrieveUseCase struct {
	retriever ports.ContextRetriever
}

func NewIndicatorRetrieveUseCase(retriever ports.ContextRetriever) *IndicatorRetrieveUseCase {
	return &IndicatorRetrieveUseCase{retriever: retriever}
}

func (uc *IndicatorRetrieveUseCase) RetrieveIndicators(
	ctx context.Context,
	names []string,
	filter domain.ContextFilter,
) ([]domain.IndicatorResult, error) {
	if len(names) == 0 {
		names = indicatorOrder
	}

	results := make([]domain.IndicatorResult, 0, len(names))
	for _, rawName := range names {
		name := strings.ToLower(strings.TrimSpace(rawName))
		if name == "" {
			continue
		}
		query, ok := indicatorQueries[name]
		if !ok {
			query = rawName
		}

		candidates := uc.retriever.Retrieve(ctx, query, domain.RetrieveOptions{
			TopK:     indicatorTopK,
			Strategy: domain.StrategyAuto,
			Filter:   filter,
		})
		results = append(results, domain.IndicatorResult{
			Indicator:  name,
			Query:      query,
			Candidates: candidates,
		})
	}
	return results, nil
}
