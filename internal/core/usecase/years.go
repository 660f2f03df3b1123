package usecase

import (
	"regexp"
	"sort"
	"strconv"
	"time"
)

var (
	yearRangeDashPattern  = regexp.MustCompile(`(\d{4})-(\d{4})年`)
	yearRangeToPattern    = regexp.MustCompile(`(\d{4})到(\d{4})`)
	yearRangeUntilPattern = regexp.MustCompile(`(\d{4})至(\d{4})`)
	yearSinglePattern     = regexp.MustCompile(`(\d{4})年`)
	recentYearsPattern    = regexp.MustCompile(`近(\d{1,2}|[一两二三四五六七八九十])年`)
)

var cjkNumerals = map[string]int{
	"一": 1, "两": 2, "二": 2, "三": 3, "四": 4,
	"五": 5, "六": 6, "七": 7, "八": 8, "九": 9, "十": 10,
}

// extractYears collects every year the query refers to, as 4-digit strings,
// deduplicated and sorted. Explicit ranges ("2022-2024年", "2022到2024",
// "2022至2024") expand year by year; "近N年" resolves against the clock so
// "近三年" in 2024 yields 2022..2024. Inverted ranges are ignored.
func extractYears(query string, now time.Time) []string {
	years := make(map[string]struct{})

	addRange := func(startRaw, endRaw string) {
		start, errStart := strconv.Atoi(startRaw)
		end, errEnd := strconv.Atoi(endRaw)
		if errStart != nil || errEnd != nil || start > end {
			return
		}
		for y := start; y <= end; y++ {
			years[strconv.Itoa(y)] = struct{}{}
		}
	}

	for _, match := range yearRangeDashPattern.FindAllStringSubmatch(query, -1) {
		addRange(match[1], match[2])
	}
	for _, match := range yearRangeToPattern.FindAllStringSubmatch(query, -1) {
		addRange(match[1], match[2])
	}
	for _, match := range yearRangeUntilPattern.FindAllStringSubmatch(query, -1) {
		addRange(match[1], match[2])
	}
	for _, match := range yearSinglePattern.FindAllStringSubmatch(query, -1) {
		years[match[1]] = struct{}{}
	}
	for _, match := range recentYearsPattern.FindAllStringSubmatch(query, -1) {
		n := parseYearCount(match[1])
		if n <= 0 {
			continue
		}
		current := now.Year()
		for y := current - n + 1; y <= current; y++ {
			years[strconv.Itoa(y)] = struct{}{}
		}
	}

	if len(years) == 0 {
		return nil
	}
	out := make([]string, 0, len(years))
	for year := range years {
		out = append(out, year)
	}
	sort.Strings(out)
	return out
}

func parseYearCount(raw string) int {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	return cjkNumerals[raw]
}
