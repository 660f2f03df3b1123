package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mhxia/finsight/internal/core/domain"
)

var (
	companyNoisePattern     = regexp.MustCompile(`利润表|资产负债表|现金流量表|年报|报告|财务报表|财务报告|\d{4}年?`)
	companyYearRunPattern   = regexp.MustCompile(`年度\d+`)
	companySeparatorPattern = regexp.MustCompile(`[_\-\s.]+`)

	fileExtPattern       = regexp.MustCompile(`\.[^.]+$`)
	fileSeparatorPattern = regexp.MustCompile(`[_\-\s]+`)
)

var reportFileExtensions = []string{".pdf", ".xlsx", ".xls"}

// matchesContextFilter applies every present filter field as a conjunction.
// It runs after channel retrieval and before comprehensive re-scoring.
func matchesContextFilter(doc domain.Document, filter domain.ContextFilter) bool {
	if filter.Filename != "" && !matchesFilename(doc, filter.Filename) {
		return false
	}
	if filter.SourceFile != "" && !matchesSourceFile(doc, filter.SourceFile) {
		return false
	}
	if filter.Company != "" && !matchesCompany(doc, filter.Company) {
		return false
	}
	if filter.Year != "" && !matchesYear(doc, filter.Year) {
		return false
	}
	return true
}

// matchesFilename accepts an exact case-insensitive match first, then falls
// back to comparing the first 3 characters of both names' key form (extension
// and separators stripped), so renamed variants of one report still pass.
// Filter values shorter than 3 characters must match exactly.
func matchesFilename(doc domain.Document, want string) bool {
	got := doc.Metadata.String(domain.MetaFilename)
	if got == "" {
		got = doc.Metadata.String(domain.MetaSourceFile)
	}
	if got == "" {
		// Page sources carry the filename as "{filename}_page_{n}".
		got, _, _ = strings.Cut(doc.Metadata.String(domain.MetaSource), "_page_")
	}

	wantNorm := strings.ToLower(strings.TrimSpace(want))
	gotNorm := strings.ToLower(strings.TrimSpace(got))
	if wantNorm == gotNorm {
		return true
	}
	if utf8.RuneCountInString(wantNorm) < 3 {
		return false
	}

	wantKey := filenameKey(wantNorm)
	gotKey := filenameKey(gotNorm)
	if utf8.RuneCountInString(wantKey) < 3 || utf8.RuneCountInString(gotKey) < 3 {
		return false
	}
	return runePrefix(wantKey, 3) == runePrefix(gotKey, 3)
}

// matchesSourceFile passes on containment in either direction, so both a bare
// stem and a decorated page source ("report.pdf_page_3") can match.
func matchesSourceFile(doc domain.Document, want string) bool {
	got := doc.Metadata.String(domain.MetaSourceFile)
	if got == "" {
		got = doc.Metadata.String(domain.MetaFilename)
	}
	if got == "" {
		return false
	}
	return strings.Contains(got, want) || strings.Contains(want, got)
}

// matchesCompany is multi-tier: the company key derived from the document's
// filename first, then the company name inside the document text, then the
// company metadata field. The filter string itself is only normalized, never
// cleaned.
func matchesCompany(doc domain.Document, want string) bool {
	wantNorm := strings.ToLower(strings.TrimSpace(want))
	if wantNorm == "" {
		return false
	}

	docFilename := doc.Metadata.String(domain.MetaFilename)
	if docFilename == "" {
		docFilename = doc.Metadata.String(domain.MetaSourceFile)
	}
	key := cleanCompanyName(strings.ToLower(docFilename))
	if utf8.RuneCountInString(key) >= 2 && companyKeyMatches(wantNorm, key) {
		return true
	}

	if utf8.RuneCountInString(wantNorm) >= 3 &&
		strings.Contains(strings.ToLower(doc.Text), wantNorm) {
		return true
	}

	docCompany := strings.ToLower(doc.Metadata.String(domain.MetaCompany))
	if docCompany != "" &&
		(strings.Contains(docCompany, wantNorm) || strings.Contains(wantNorm, docCompany)) {
		return true
	}
	return false
}

// companyKeyMatches compares the filter's company string against the
// filename-derived key: 3-character prefix equality or containment in either
// direction, relaxing to a 2-character prefix when either side is shorter.
func companyKeyMatches(want, key string) bool {
	wantLen := utf8.RuneCountInString(want)
	keyLen := utf8.RuneCountInString(key)
	if wantLen >= 3 && keyLen >= 3 {
		if runePrefix(want, 3) == runePrefix(key, 3) {
			return true
		}
		return strings.Contains(key, want) || strings.Contains(want, key)
	}
	if wantLen >= 2 && keyLen >= 2 {
		return runePrefix(want, 2) == runePrefix(key, 2)
	}
	return false
}

// matchesYear is lenient: a document without a year value passes. The scorer
// stays strict about missing years; the asymmetry is intentional.
func matchesYear(doc domain.Document, want string) bool {
	got := doc.Metadata.String(domain.MetaYear)
	if got == "" {
		return true
	}
	return got == want
}

// cleanCompanyName strips the file extension, statement and report
// designators, year tokens and separators, leaving the bare company name.
func cleanCompanyName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	lower := strings.ToLower(name)
	for _, ext := range reportFileExtensions {
		if strings.HasSuffix(lower, ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}
	name = companyNoisePattern.ReplaceAllString(name, "")
	name = companyYearRunPattern.ReplaceAllString(name, "")
	name = companySeparatorPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// filenameKey reduces a normalized filename to its comparable core.
func filenameKey(name string) string {
	name = fileExtPattern.ReplaceAllString(name, "")
	return fileSeparatorPattern.ReplaceAllString(name, "")
}

func runePrefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}
