package domain

// Strategy selects which vector channels a retrieval touches.
type Strategy string

const (
	StrategyAuto       Strategy = "auto"
	StrategyTextFirst  Strategy = "text_first"
	StrategyTableFirst Strategy = "table_first"
	StrategyHybrid     Strategy = "hybrid"
)

// NormalizeStrategy maps unknown or empty values to a usable strategy.
// Unknown strings degrade to hybrid rather than failing the request.
func NormalizeStrategy(raw string) Strategy {
	switch Strategy(raw) {
	case StrategyAuto, StrategyTextFirst, StrategyTableFirst, StrategyHybrid:
		return Strategy(raw)
	case "":
		return StrategyAuto
	default:
		return StrategyHybrid
	}
}

// ContextFilter narrows retrieval to one document context. All fields are
// optional; present fields must all pass.
type ContextFilter struct {
	Filename   string `json:"filename,omitempty"`
	SourceFile string `json:"source_file,omitempty"`
	Company    string `json:"company,omitempty"`
	Year       string `json:"year,omitempty"`
}

func (f ContextFilter) IsZero() bool {
	return f.Filename == "" && f.SourceFile == "" && f.Company == "" && f.Year == ""
}

type RetrieveOptions struct {
	TopK     int           `json:"top_k"`
	Strategy Strategy      `json:"strategy"`
	Filter   ContextFilter `json:"filter"`
}

// ScoredDocument is a raw channel hit: document plus the collaborator-reported
// similarity, before comprehensive re-scoring.
type ScoredDocument struct {
	Document   Document `json:"document"`
	Similarity float64  `json:"similarity"`
}

// ScoredCandidate is a final retrieval result.
type ScoredCandidate struct {
	Document    Document `json:"document"`
	Similarity  float64  `json:"similarity"`
	MetricScore float64  `json:"metric_score"`
	YearScore   float64  `json:"year_score"`
	Score       float64  `json:"score"`
	Strategy    Strategy `json:"strategy"`
}

// ScoreWeights blends the three sub-scores of the comprehensive score.
type ScoreWeights struct {
	Similarity float64 `json:"similarity"`
	Metric     float64 `json:"metric"`
	Year       float64 `json:"year"`
}

func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Similarity: 0.6, Metric: 0.3, Year: 0.1}
}

// ScoreBreakdown exposes every component of one comprehensive score.
type ScoreBreakdown struct {
	Similarity     float64      `json:"similarity"`
	MetricScore    float64      `json:"metric_score"`
	YearScore      float64      `json:"year_score"`
	StatementBonus float64      `json:"statement_bonus"`
	Weights        ScoreWeights `json:"weights"`
	Score          float64      `json:"score"`
}

// IndexStats reports readiness of the hybrid index.
type IndexStats struct {
	TextReady   bool         `json:"text_ready"`
	TableReady  bool         `json:"table_ready"`
	TextCount   int          `json:"text_count"`
	TableCount  int          `json:"table_count"`
	Weights     ScoreWeights `json:"weights"`
	MetricTerms int          `json:"metric_terms"`
}

// Answer is a generated response grounded in retrieved candidates.
type Answer struct {
	Text    string            `json:"text"`
	Sources []ScoredCandidate `json:"sources"`
}

// IndicatorResult groups the candidates retrieved for one named indicator.
type IndicatorResult struct {
	Indicator  string            `json:"indicator"`
	Query      string            `json:"query"`
	Candidates []ScoredCandidate `json:"candidates"`
}
