package usecase

import "strings"

// metricSynonyms maps canonical financial terms to the synonyms appended
// during query expansion. Keys are matched as substrings of the raw query.
var metricSynonyms = map[string][]string{
	"净利润":  {"净利润", "盈余", "收益", "Profit", "Earnings", "净利"},
	"ROE":  {"ROE", "净资产收益率", "权益回报率", "Return on Equity"},
	"营业收入": {"营业收入", "营收", "收入", "Revenue", "Sales"},
	"资产":   {"资产", "Assets", "总资产", "净资产"},
	"负债":   {"负债", "Liabilities", "总负债", "债务"},
	"资产总额": {"资产总额", "总资产", "资产合计", "Total Assets", "Assets"},
	"毛利率":  {"毛利率", "Gross Margin", "毛利润率"},
	"净利率":  {"净利率", "Net Margin", "净利润率"},
}

// metricSynonymKeys fixes iteration order so expansion is deterministic.
var metricSynonymKeys = []string{
	"净利润", "ROE", "营业收入", "资产", "负债", "资产总额", "毛利率", "净利率",
}

// ExpandQuery appends known synonyms for every financial term mentioned in the
// query. The original query text always stays a prefix of the result; synonyms
// already present anywhere in the accumulated text are skipped. The expanded
// form feeds embedding only, never strategy selection or re-scoring.
func ExpandQuery(query string) string {
	if strings.TrimSpace(query) == "" {
		return query
	}

	var extra []string
	accumulated := query
	for _, key := range metricSynonymKeys {
		if !strings.Contains(query, key) {
			continue
		}
		for _, synonym := range metricSynonyms[key] {
			if strings.Contains(accumulated, synonym) {
				continue
			}
			extra = append(extra, synonym)
			accumulated += " " + synonym
		}
	}

	if len(extra) == 0 {
		return query
	}
	return query + " " + strings.Join(extra, " ")
}
