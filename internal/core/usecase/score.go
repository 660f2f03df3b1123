package usecase

import (
	"strings"
	"time"

	"github.com/mhxia/finsight/internal/core/domain"
)

// financialMetricTerms is the fixed metric vocabulary behind the metric
// sub-score. Matching is case-insensitive on both query and document side.
var financialMetricTerms = []string{
	"净利润", "roe", "roa", "负债率", "资产负债率", "流动比率",
	"营业收入", "营业利润", "毛利率", "净利率", "资产周转率", "现金流",
	"股东权益", "总资产", "总负债", "每股收益", "净资产", "流动资产",
	"非流动资产", "流动负债", "非流动负债", "营业成本", "销售费用",
	"管理费用", "财务费用",
}

// statementTypeKeywords links statement types to the query keywords that
// escalate the financial-statement bonus.
var statementTypeKeywords = map[string][]string{
	"利润表":   {"利润", "收入", "成本", "profit", "revenue", "income"},
	"资产负债表": {"资产", "负债", "权益", "asset", "liability", "equity"},
	"现金流量表": {"现金流", "现金", "cash flow", "cash"},
}

const (
	neutralMetricScore  = 0.5
	tableMetricBonus    = 0.2
	statementBaseBonus  = 0.2
	statementMatchBonus = 0.3
)

// Scorer computes the comprehensive relevance score blending channel
// similarity, metric coverage and year match, plus the statement bonus.
type Scorer struct {
	weights domain.ScoreWeights
	now     func() time.Time
}

func NewScorer(weights domain.ScoreWeights, now func() time.Time) *Scorer {
	if weights == (domain.ScoreWeights{}) {
		weights = domain.DefaultScoreWeights()
	}
	if now == nil {
		now = time.Now
	}
	return &Scorer{weights: weights, now: now}
}

func (s *Scorer) Weights() domain.ScoreWeights {
	return s.weights
}

func (s *Scorer) Score(query string, doc domain.Document, similarity float64) float64 {
	return s.Breakdown(query, doc, similarity).Score
}

func (s *Scorer) Breakdown(query string, doc domain.Document, similarity float64) domain.ScoreBreakdown {
	metric := metricScore(query, doc)
	year := yearScore(query, doc, s.now())
	bonus := statementBonus(query, doc)

	score := clamp01(similarity*s.weights.Similarity +
		metric*s.weights.Metric +
		year*s.weights.Year +
		bonus)

	return domain.ScoreBreakdown{
		Similarity:     similarity,
		MetricScore:    metric,
		YearScore:      year,
		StatementBonus: bonus,
		Weights:        s.weights,
		Score:          score,
	}
}

// metricScore is neutral 0.5 when the query names no metric term. Otherwise it
// is the matched fraction of the query's metric terms, with a flat bonus for
// table documents that matched at least one, clamped to [0,1].
func metricScore(query string, doc domain.Document) float64 {
	queryLower := strings.ToLower(query)
	mentioned := make([]string, 0, 4)
	for _, term := range financialMetricTerms {
		if strings.Contains(queryLower, term) {
			mentioned = append(mentioned, term)
		}
	}
	if len(mentioned) == 0 {
		return neutralMetricScore
	}

	docText := strings.ToLower(doc.Text)
	matched := 0
	for _, term := range mentioned {
		if strings.Contains(docText, term) {
			matched++
		}
	}

	score := float64(matched) / float64(len(mentioned))
	if matched > 0 && doc.Metadata.String(domain.MetaDocType) == string(domain.ChannelTable) {
		score += tableMetricBonus
	}
	if score > 1 {
		score = 1
	}
	return score
}

// yearScore is binary: 1.0 only when both sides carry a year and they agree.
// A document without a year scores 0 under a year-bearing query; the context
// filter is deliberately more lenient than this.
func yearScore(query string, doc domain.Document, now time.Time) float64 {
	queryYears := extractYears(query, now)
	if len(queryYears) == 0 {
		return 0
	}
	docYear := doc.Metadata.String(domain.MetaYear)
	if docYear == "" || docYear == "0" {
		return 0
	}
	for _, year := range queryYears {
		if year == docYear {
			return 1
		}
	}
	return 0
}

func statementBonus(query string, doc domain.Document) float64 {
	if !doc.Metadata.Bool(domain.MetaIsStatement) {
		return 0
	}
	bonus := statementBaseBonus
	queryLower := strings.ToLower(query)
	for _, keyword := range statementTypeKeywords[doc.Metadata.String(domain.MetaStatementType)] {
		if strings.Contains(queryLower, keyword) {
			bonus = statementMatchBonus
			break
		}
	}
	return bonus
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
