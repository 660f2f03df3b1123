package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/mhxia/finsight/internal/core/domain"
	"github.com/mhxia/finsight/internal/core/ports"
)

type processStatusCall struct {
	status domain.ReportStatus
	errMsg string
}

type processRepoFake struct {
	report       *domain.Report
	getErr       error
	statusCalls  []processStatusCall
	statsCompany string
	statsYear    string
	statsPages   int
	statsTables  int
}

func (f *processRepoFake) Create(context.Context, *domain.Report) error {
	return errors.New("not implemented")
}

func (f *processRepoFake) GetByID(context.Context, string) (*domain.Report, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyReport := *f.report
	return &copyReport, nil
}

func (f *processRepoFake) GetByFilename(context.Context, string) (*domain.Report, error) {
	return nil, errors.New("not implemented")
}

func (f *processRepoFake) List(context.Context) ([]domain.Report, error) {
	return nil, errors.New("not implemented")
}

func (f *processRepoFake) UpdateStatus(_ context.Context, _ string, status domain.ReportStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, processStatusCall{status: status, errMsg: errMessage})
	return nil
}

func (f *processRepoFake) SaveIndexStats(_ context.Context, _, company, year string, pages, tables int) error {
	f.statsCompany = company
	f.statsYear = year
	f.statsPages = pages
	f.statsTables = tables
	return nil
}

func (f *processRepoFake) Delete(context.Context, string) error {
	return errors.New("not implemented")
}

type processFinishCall struct {
	id     string
	status domain.JobStatus
	errMsg string
	pages  int
	tables int
}

type processJobsFake struct {
	created     *domain.ProcessingJob
	createErr   error
	finishCalls []processFinishCall
}

func (f *processJobsFake) CreateJob(_ context.Context, job *domain.ProcessingJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = job
	return nil
}

func (f *processJobsFake) FinishJob(_ context.Context, id string, status domain.JobStatus, errMessage string, pages, tables int) error {
	f.finishCalls = append(f.finishCalls, processFinishCall{
		id: id, status: status, errMsg: errMessage, pages: pages, tables: tables,
	})
	return nil
}

func (f *processJobsFake) ListJobsByReport(context.Context, string) ([]domain.ProcessingJob, error) {
	return nil, errors.New("not implemented")
}

type processStorageFake struct {
	content string
	openErr error
}

func (f *processStorageFake) Save(context.Context, string, io.Reader) error {
	return errors.New("not implemented")
}

func (f *processStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return io.NopCloser(strings.NewReader(f.content)), nil
}

func (f *processStorageFake) Remove(context.Context, string) error {
	return errors.New("not implemented")
}

type processParserFake struct {
	parsed *domain.ParsedReport
	err    error
}

func (f *processParserFake) Parse(context.Context, string, io.Reader) (*domain.ParsedReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.parsed, nil
}

type processChunkerFake struct {
	chunks []string
}

func (f *processChunkerFake) Split(string) []string { return f.chunks }

type processEmbedderFake struct {
	short   bool
	err     error
	batches [][]string
}

func (f *processEmbedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short && n > 0 {
		n--
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = []float32{1}
	}
	return vectors, nil
}

func (f *processEmbedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

type processDeleteCall struct {
	channel  domain.Channel
	filename string
}

type processIndexFake struct {
	added       map[domain.Channel][]domain.Document
	deleteCalls []processDeleteCall
	addErr      error
	deleteErr   error
}

func (f *processIndexFake) Add(_ context.Context, channel domain.Channel, docs []domain.Document, _ [][]float32) error {
	if f.addErr != nil {
		return f.addErr
	}
	if f.added == nil {
		f.added = make(map[domain.Channel][]domain.Document)
	}
	f.added[channel] = append(f.added[channel], docs...)
	return nil
}

func (f *processIndexFake) Query(context.Context, domain.Channel, []float32, int) ([]domain.ScoredDocument, error) {
	return nil, errors.New("not implemented")
}

func (f *processIndexFake) Count(context.Context, domain.Channel) (int, error) {
	return 0, errors.New("not implemented")
}

func (f *processIndexFake) DeleteByFilename(_ context.Context, channel domain.Channel, filename string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleteCalls = append(f.deleteCalls, processDeleteCall{channel: channel, filename: filename})
	return nil
}

func (f *processIndexFake) Reset(context.Context, domain.Channel) error {
	return errors.New("not implemented")
}

func reportFixture() *domain.Report {
	return &domain.Report{
		ID:          "rep-1",
		Filename:    "招商银行2023年报.pdf",
		StoragePath: "rep-1_招商银行2023年报.pdf",
		Status:      domain.StatusUploaded,
	}
}

func parsedFixture() *domain.ParsedReport {
	return &domain.ParsedReport{
		Pages: []domain.PageText{
			{PageNumber: 1, Text: "第一页"},
			{PageNumber: 2, Text: "第二页"},
		},
		Tables: []domain.ExtractedTable{
			{
				SheetName:     "利润表",
				Text:          "项目 | 金额\n净利润 | 3000",
				IsFinancial:   true,
				IsStatement:   true,
				StatementType: "利润表",
				RowCount:      2,
			},
		},
	}
}

func newProcessForTest(
	repo *processRepoFake,
	jobs *processJobsFake,
	parser *processParserFake,
	embedder *processEmbedderFake,
	index *processIndexFake,
) *ProcessReportUseCase {
	return NewProcessReportUseCase(
		repo,
		jobs,
		&processStorageFake{content: "raw"},
		map[string]ports.ReportParser{".pdf": parser},
		&processChunkerFake{chunks: []string{"块一", "块二"}},
		embedder,
		index,
	)
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := &processRepoFake{report: reportFixture()}
	jobs := &processJobsFake{}
	index := &processIndexFake{}
	uc := newProcessForTest(repo, jobs, &processParserFake{parsed: parsedFixture()}, &processEmbedderFake{}, index)

	if err := uc.ProcessByID(context.Background(), "rep-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected 2 status calls, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[0].status != domain.StatusProcessing || repo.statusCalls[1].status != domain.StatusIndexed {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}

	if jobs.created == nil || jobs.created.ReportID != "rep-1" {
		t.Fatalf("job not created: %+v", jobs.created)
	}
	if len(jobs.finishCalls) != 1 {
		t.Fatalf("expected 1 finish call, got %d", len(jobs.finishCalls))
	}
	finish := jobs.finishCalls[0]
	if finish.status != domain.JobCompleted || finish.pages != 2 || finish.tables != 1 {
		t.Fatalf("finish call = %+v", finish)
	}

	// Two pages, two chunks each.
	if len(index.added[domain.ChannelText]) != 4 {
		t.Fatalf("text docs = %d, want 4", len(index.added[domain.ChannelText]))
	}
	if len(index.added[domain.ChannelTable]) != 1 {
		t.Fatalf("table docs = %d, want 1", len(index.added[domain.ChannelTable]))
	}

	if repo.statsCompany != "招商银行" || repo.statsYear != "2023" {
		t.Fatalf("saved stats company=%q year=%q", repo.statsCompany, repo.statsYear)
	}
	if repo.statsPages != 2 || repo.statsTables != 1 {
		t.Fatalf("saved stats pages=%d tables=%d", repo.statsPages, repo.statsTables)
	}
}

func TestProcessByIDBuildsDocumentMetadata(t *testing.T) {
	repo := &processRepoFake{report: reportFixture()}
	index := &processIndexFake{}
	uc := newProcessForTest(repo, &processJobsFake{}, &processParserFake{parsed: parsedFixture()}, &processEmbedderFake{}, index)

	if err := uc.ProcessByID(context.Background(), "rep-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	text := index.added[domain.ChannelText][0]
	if text.Metadata.String(domain.MetaDocType) != "text" {
		t.Fatalf("text doc_type = %q", text.Metadata.String(domain.MetaDocType))
	}
	if got := text.Metadata.String(domain.MetaSource); got != "招商银行2023年报.pdf_page_1" {
		t.Fatalf("text source = %q", got)
	}
	if text.Metadata.String(domain.MetaCompany) != "招商银行" {
		t.Fatalf("text company = %q", text.Metadata.String(domain.MetaCompany))
	}

	table := index.added[domain.ChannelTable][0]
	if table.Metadata.String(domain.MetaDocType) != "table" {
		t.Fatalf("table doc_type = %q", table.Metadata.String(domain.MetaDocType))
	}
	// Table year falls back to the filename year when the sheet has none.
	if table.Metadata.String(domain.MetaYear) != "2023" {
		t.Fatalf("table year = %q", table.Metadata.String(domain.MetaYear))
	}
	if got := table.Metadata.String(domain.MetaTableID); got != "招商银行2023年报_利润表" {
		t.Fatalf("table id = %q", got)
	}
	if !table.Metadata.Bool(domain.MetaIsStatement) {
		t.Fatalf("table must keep the statement flag")
	}
	if table.Metadata.String(domain.MetaStatementType) != "利润表" {
		t.Fatalf("statement type = %q", table.Metadata.String(domain.MetaStatementType))
	}
}

func TestProcessByIDClearsChannelsBeforeAdding(t *testing.T) {
	repo := &processRepoFake{report: reportFixture()}
	index := &processIndexFake{}
	uc := newProcessForTest(repo, &processJobsFake{}, &processParserFake{parsed: parsedFixture()}, &processEmbedderFake{}, index)

	if err := uc.ProcessByID(context.Background(), "rep-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	if len(index.deleteCalls) != 2 {
		t.Fatalf("expected both channels cleared, got %+v", index.deleteCalls)
	}
	for _, call := range index.deleteCalls {
		if call.filename != "招商银行2023年报.pdf" {
			t.Fatalf("cleared filename = %q", call.filename)
		}
	}
}

func TestProcessByIDMarksFailedOnParseError(t *testing.T) {
	repo := &processRepoFake{report: reportFixture()}
	jobs := &processJobsFake{}
	uc := newProcessForTest(repo, jobs, &processParserFake{err: errors.New("corrupt pdf")}, &processEmbedderFake{}, &processIndexFake{})

	err := uc.ProcessByID(context.Background(), "rep-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
	if len(jobs.finishCalls) != 1 || jobs.finishCalls[0].status != domain.JobFailed {
		t.Fatalf("expected failed job, got %+v", jobs.finishCalls)
	}
	if jobs.finishCalls[0].errMsg == "" {
		t.Fatalf("job failure must carry the error message")
	}
}

func TestProcessByIDMarksFailedOnEmptyParse(t *testing.T) {
	repo := &processRepoFake{report: reportFixture()}
	uc := newProcessForTest(repo, &processJobsFake{}, &processParserFake{parsed: &domain.ParsedReport{}}, &processEmbedderFake{}, &processIndexFake{})

	err := uc.ProcessByID(context.Background(), "rep-1")
	if err == nil {
		t.Fatalf("expected error for empty parse")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("error kind = %v, want ErrInvalidInput", err)
	}
}

func TestProcessByIDMarksFailedOnVectorMismatch(t *testing.T) {
	repo := &processRepoFake{report: reportFixture()}
	uc := newProcessForTest(repo, &processJobsFake{}, &processParserFake{parsed: parsedFixture()}, &processEmbedderFake{short: true}, &processIndexFake{})

	err := uc.ProcessByID(context.Background(), "rep-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
}

func TestCompanyFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"平安银行利润表.xlsx", "平安银行"},
		{"招商银行2023年报.pdf", "招商银行"},
		{"平安银行2024年年报.pdf", "平安银行"},
		{"贵州茅台_2022_财务报告.pdf", "贵州茅台"},
		{"2023年报.pdf", ""},
	}
	for _, tt := range tests {
		if got := companyFromFilename(tt.in); got != tt.want {
			t.Fatalf("companyFromFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProcessByIDFailsOnMissingParser(t *testing.T) {
	report := reportFixture()
	report.Filename = "notes.docx"
	repo := &processRepoFake{report: report}
	uc := newProcessForTest(repo, &processJobsFake{}, &processParserFake{parsed: parsedFixture()}, &processEmbedderFake{}, &processIndexFake{})

	err := uc.ProcessByID(context.Background(), "rep-1")
	if err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
	if !domain.IsKind(err, domain.ErrUnsupportedFile) {
		t.Fatalf("error kind = %v, want ErrUnsupportedFile", err)
	}
}
