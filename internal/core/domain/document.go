package domain

import (
	"strconv"
	"strings"
)

// Channel names one of the two vector collections of the hybrid index.
type Channel string

const (
	ChannelText  Channel = "text"
	ChannelTable Channel = "table"
)

// Metadata keys recognized across the pipeline. The mapping is additive:
// documents indexed by older versions may miss any of them.
const (
	MetaDocType       = "doc_type"
	MetaChannel       = "channel"
	MetaSource        = "source"
	MetaSourceFile    = "source_file"
	MetaFilename      = "filename"
	MetaCompany       = "company"
	MetaYear          = "year"
	MetaTableID       = "table_id"
	MetaSheetName     = "sheet_name"
	MetaPageNumber    = "page_number"
	MetaIndicator     = "indicator"
	MetaIsFinancial   = "is_financial"
	MetaIsStatement   = "is_financial_statement"
	MetaStatementType = "financial_statement_type"
)

// Metadata is the open key set attached to every indexed document.
// Values arrive from JSON payloads, so numeric types are loose.
type Metadata map[string]any

// String coerces the value under key to its string form.
// Missing keys and nil values yield "".
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	value, ok := m[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return typed
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}

// Bool coerces the value under key leniently: absent, nil, zero and
// unparseable values are false.
func (m Metadata) Bool(key string) bool {
	if m == nil {
		return false
	}
	value, ok := m[key]
	if !ok || value == nil {
		return false
	}
	switch typed := value.(type) {
	case bool:
		return typed
	case string:
		parsed, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(typed)))
		if err != nil {
			return false
		}
		return parsed
	case int:
		return typed != 0
	case int64:
		return typed != 0
	case float64:
		return typed != 0
	default:
		return false
	}
}

// Int coerces the value under key to an int, zero when absent or malformed.
func (m Metadata) Int(key string) int {
	if m == nil {
		return 0
	}
	value, ok := m[key]
	if !ok || value == nil {
		return 0
	}
	switch typed := value.(type) {
	case int:
		return typed
	case int64:
		return int(typed)
	case float64:
		return int(typed)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// Clone returns a shallow copy so adapters can decorate metadata without
// mutating the caller's map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Document is one indexable unit: a narrative text chunk or a serialized
// financial table.
type Document struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// PageText is the extraction result for one PDF page.
type PageText struct {
	PageNumber int
	Text       string
}

// ExtractedTable is one financial table pulled out of a workbook sheet.
type ExtractedTable struct {
	SheetName     string
	Text          string
	Year          string
	IsFinancial   bool
	IsStatement   bool
	StatementType string
	RowCount      int
}

// ParsedReport is the format-independent output of a report parser.
type ParsedReport struct {
	Pages  []PageText
	Tables []ExtractedTable
}
