package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	domain "github.com/bryanwahyu/codeguardian/internal/domain/audit"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Save insert/update report record. Scalar columns back the summary
// queries; the full report is stored as JSON for retrieval.
func (r *ReportRepository) Save(ctx context.Context, rep *domain.SecurityReport) error {
	const q = `
INSERT INTO security_reports
(id, file_name, language, security_score, risk_level,
 critical, high, medium, low, findings_total, static_findings_count,
 ai_enhanced, report_json, created_at, duration_ms)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 security_score=VALUES(security_score), risk_level=VALUES(risk_level),
 critical=VALUES(critical), high=VALUES(high), medium=VALUES(medium), low=VALUES(low),
 findings_total=VALUES(findings_total), static_findings_count=VALUES(static_findings_count),
 ai_enhanced=VALUES(ai_enhanced), report_json=VALUES(report_json), duration_ms=VALUES(duration_ms);
`
	payload, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	created := rep.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = r.db.ExecContext(ctx, q,
		rep.ID, orDash(rep.FileName), orDash(rep.Language),
		rep.SecurityScore, rep.RiskLevel,
		rep.Counts.Critical, rep.Counts.High, rep.Counts.Medium, rep.Counts.Low, rep.Counts.Total,
		rep.StaticFindingsCount, rep.AIEnhanced, payload, created, rep.DurationMS,
	)
	return err
}

// Get by ID
func (r *ReportRepository) Get(ctx context.Context, id domain.ReportID) (*domain.SecurityReport, error) {
	const q = `SELECT report_json FROM security_reports WHERE id=? LIMIT 1;`

	var payload []byte
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&payload); err != nil {
		return nil, err
	}
	var rep domain.SecurityReport
	if err := json.Unmarshal(payload, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// Latest reports, most recent first
func (r *ReportRepository) Latest(ctx context.Context, limit int) ([]*domain.SecurityReport, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT report_json FROM security_reports
ORDER BY created_at DESC, id DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SecurityReport
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rep domain.SecurityReport
		if err := json.Unmarshal(payload, &rep); err != nil {
			return nil, err
		}
		out = append(out, &rep)
	}
	return out, rows.Err()
}

// Summary counts findings across reports since the given time.
func (r *ReportRepository) Summary(ctx context.Context, since time.Time) (int, domain.SeverityCounts, error) {
	const q = `
SELECT COUNT(*),
       COALESCE(SUM(critical),0), COALESCE(SUM(high),0),
       COALESCE(SUM(medium),0), COALESCE(SUM(low),0)
FROM security_reports
WHERE created_at >= ?;
`
	var total int
	var c domain.SeverityCounts
	err := r.db.QueryRowContext(ctx, q, since).Scan(&total, &c.Critical, &c.High, &c.Medium, &c.Low)
	if err != nil {
		return 0, domain.SeverityCounts{}, err
	}
	c.Total = c.Critical + c.High + c.Medium + c.Low
	return total, c, nil
}
