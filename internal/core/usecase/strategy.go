package usecase

import (
	"strings"

	"github.com/mhxia/finsight/internal/core/domain"
)

// Keyword lists for automatic strategy routing, checked in order against the
// original (unexpanded) query. Indicator and numeric questions go to the table
// channel first; narrative questions go to the text channel; everything else
// searches both.
var (
	indicatorStrategyTerms = []string{
		"营业收入", "营收", "收入", "净利润", "利润", "资产", "负债", "资产总额",
		"roe", "roa", "毛利率", "净利率", "总资产", "净资产", "股东权益",
		"营业成本", "销售费用", "管理费用", "财务费用",
	}
	numericStrategyTerms = []string{
		"增长率", "变化幅度", "同比", "环比", "数据", "数值", "金额", "比例", "趋势",
	}
	semanticStrategyTerms = []string{
		"表现如何", "趋势说明", "分析", "评价", "情况", "概述",
	}
)

func determineStrategy(query string) domain.Strategy {
	queryLower := strings.ToLower(query)
	if containsAnyTerm(queryLower, indicatorStrategyTerms) {
		return domain.StrategyTableFirst
	}
	if containsAnyTerm(queryLower, numericStrategyTerms) {
		return domain.StrategyTableFirst
	}
	if containsAnyTerm(queryLower, semanticStrategyTerms) {
		return domain.StrategyTextFirst
	}
	return domain.StrategyHybrid
}

func containsAnyTerm(haystack string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}
