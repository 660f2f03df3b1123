package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mhxia/finsight/internal/core/domain"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	content_type TEXT NOT NULL,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	storage_path TEXT NOT NULL,
	company TEXT,
	report_year TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	page_count INTEGER NOT NULL DEFAULT 0,
	table_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
CREATE INDEX IF NOT EXISTS idx_reports_filename ON reports(filename);
CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC);

CREATE TABLE IF NOT EXISTS processing_jobs (
	id TEXT PRIMARY KEY,
	report_id TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT,
	page_count INTEGER NOT NULL DEFAULT 0,
	table_count INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_processing_jobs_report ON processing_jobs(report_id, started_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ReportRepository) Create(ctx context.Context, report *domain.Report) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO reports (
	id, filename, content_type, size_bytes, storage_path, company, report_year, status, error_message, page_count, table_count, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		report.ID, report.Filename, report.ContentType, report.SizeBytes, report.StoragePath,
		report.Company, report.ReportYear, string(report.Status), report.Error,
		report.PageCount, report.TableCount, report.CreatedAt, report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, content_type, size_bytes, storage_path, company, report_year, status, error_message, page_count, table_count, created_at, updated_at
FROM reports
WHERE id = $1
`, id)

	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrReportNotFound, "get report", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return &report, nil
}

func (r *ReportRepository) GetByFilename(ctx context.Context, filename string) (*domain.Report, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, content_type, size_bytes, storage_path, company, report_year, status, error_message, page_count, table_count, created_at, updated_at
FROM reports
WHERE filename = $1
ORDER BY created_at DESC
LIMIT 1
`, filename)

	report, err := scanReport(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrReportNotFound, "get report by filename", fmt.Errorf("filename=%s", filename))
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return &report, nil
}

func (r *ReportRepository) List(ctx context.Context) ([]domain.Report, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, filename, content_type, size_bytes, storage_path, company, report_year, status, error_message, page_count, table_count, created_at, updated_at
FROM reports
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, status domain.ReportStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE reports
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report status rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrReportNotFound, "update report status", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *ReportRepository) SaveIndexStats(ctx context.Context, id, company, year string, pages, tables int) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE reports
SET company = $2, report_year = $3, page_count = $4, table_count = $5, updated_at = $6
WHERE id = $1
`, id, company, year, pages, tables, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save index stats: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save index stats rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrReportNotFound, "save index stats", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
DELETE FROM reports
WHERE id = $1
`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete report rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrReportNotFound, "delete report", fmt.Errorf("id=%s", id))
	}
	return nil
}

type reportScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row reportScanner) (domain.Report, error) {
	var report domain.Report
	var status string
	err := row.Scan(
		&report.ID,
		&report.Filename,
		&report.ContentType,
		&report.SizeBytes,
		&report.StoragePath,
		&report.Company,
		&report.ReportYear,
		&status,
		&report.Error,
		&report.PageCount,
		&report.TableCount,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return domain.Report{}, err
	}
	report.Status = domain.ReportStatus(status)
	return report, nil
}
