package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"

	domain "github.com/bryanwahyu/codeguardian/internal/domain/audit"
)

// Connect opens a Postgres pool sized from config and verifies it with a
// bounded ping. Non-positive pool settings fall back to the defaults.
func Connect(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if maxOpen <= 0 {
		maxOpen = 25
	}
	if maxIdle <= 0 {
		maxIdle = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) Save(ctx context.Context, rep *domain.SecurityReport) error {
	const q = `
INSERT INTO security_reports
(id, file_name, language, security_score, risk_level,
 critical, high, medium, low, findings_total, static_findings_count,
 ai_enhanced, report_json, created_at, duration_ms)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
 security_score=EXCLUDED.security_score, risk_level=EXCLUDED.risk_level,
 critical=EXCLUDED.critical, high=EXCLUDED.high, medium=EXCLUDED.medium, low=EXCLUDED.low,
 findings_total=EXCLUDED.findings_total, static_findings_count=EXCLUDED.static_findings_count,
 ai_enhanced=EXCLUDED.ai_enhanced, report_json=EXCLUDED.report_json, duration_ms=EXCLUDED.duration_ms;
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
		rep.ID, rep.FileName, rep.Language,
		rep.SecurityScore, rep.RiskLevel,
		rep.Counts.Critical, rep.Counts.High, rep.Counts.Medium, rep.Counts.Low, rep.Counts.Total,
		rep.StaticFindingsCount, rep.AIEnhanced, payload, created, rep.DurationMS,
	)
	return err
}

func (r *ReportRepository) Get(ctx context.Context, id domain.ReportID) (*domain.SecurityReport, error) {
	const q = `SELECT report_json FROM security_reports WHERE id=$1 LIMIT 1;`

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

func (r *ReportRepository) Latest(ctx context.Context, limit int) ([]*domain.SecurityReport, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT report_json FROM security_reports
ORDER BY created_at DESC, id DESC LIMIT $1;
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

func (r *ReportRepository) Summary(ctx context.Context, since time.Time) (int, domain.SeverityCounts, error) {
	const q = `
SELECT COUNT(*),
       COALESCE(SUM(critical),0), COALESCE(SUM(high),0),
       COALESCE(SUM(medium),0), COALESCE(SUM(low),0)
FROM security_reports
WHERE created_at >= $1;
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
