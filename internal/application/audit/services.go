package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/codeguardian/internal/domain/audit"
	"github.com/bryanwahyu/codeguardian/internal/domain/catalog"
)

// Batch bounds: outbound retriever/verifier calls are the expensive part,
// so a fixed-size worker pool caps them.
const (
	MaxBatchSize    = 10
	maxBatchWorkers = 5
	defaultTopK     = 5
)

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Service implements the audit use-cases. Repo, Cache and Archiver are
// optional; a nil port is simply skipped. Service is safe for concurrent
// use: the only shared state is the read-only catalog.
type Service struct {
	Catalog   *catalog.Catalog
	Retriever domain.Retriever
	Verifier  domain.Verifier
	Repo      domain.Repository
	Cache     domain.Cache
	Archiver  domain.Archiver
	Clock     Clock
	Policy    domain.Policy
	TopK      int
}

// Analyze runs the full pipeline for one request: validate, match, retrieve,
// verify, reconcile, score, assemble. Collaborator failures degrade to a
// static-only report; only invalid input returns an error.
func (s *Service) Analyze(ctx context.Context, req domain.ScanRequest) (*domain.SecurityReport, error) {
	start := s.Clock.Now()

	lang, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	key := contentKey(req.Code, lang)
	if s.Cache != nil {
		if cached, ok, cerr := s.Cache.Get(ctx, key); cerr == nil && ok {
			return cached, nil
		}
	}

	static := s.Catalog.Match(req.Code, lang)

	contexts := s.retrieve(ctx, req.Code)
	result, aiEnhanced := s.verify(ctx, domain.VerifyPayload{
		Code:           req.Code,
		Language:       lang,
		StaticFindings: static,
		Context:        contexts,
	})

	findings := domain.Reconcile(static, result.Findings, contexts, s.Policy)

	report := domain.Assemble(domain.AssembleInput{
		ID:         domain.ReportID(uuid.New().String()),
		FileName:   req.FileName,
		Language:   lang,
		Code:       req.Code,
		Findings:   findings,
		Static:     static,
		Contexts:   contexts,
		Verifier:   result,
		AIEnhanced: aiEnhanced,
		CreatedAt:  start,
		DurationMS: s.Clock.Now().Sub(start).Milliseconds(),
	}, s.Policy)

	s.store(ctx, key, report)
	return report, nil
}

func (s *Service) validate(req domain.ScanRequest) (string, error) {
	if isBlank(req.Code) {
		return "", domain.ErrEmptyCode
	}
	if len(req.Code) > s.Policy.MaxCodeBytes {
		return "", domain.ErrCodeTooLarge
	}
	if !domain.LanguageSupported(req.Language) {
		return "", domain.ErrUnsupportedLanguage
	}
	lang := req.Language
	if lang == "" || lang == "auto" {
		lang = domain.DetectLanguage(req.Code)
	}
	return lang, nil
}

// retrieve asks the knowledge collaborator for context. Retrieval is an
// enhancement: any failure degrades to no context.
func (s *Service) retrieve(ctx context.Context, code string) []domain.RetrievedContext {
	if s.Retriever == nil {
		return nil
	}
	topK := s.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	contexts, err := s.Retriever.Retrieve(ctx, code, topK)
	if err != nil {
		log.Printf("knowledge retrieval degraded: %v", err)
		return nil
	}
	return contexts
}

// verify calls the generative collaborator. The second return value is the
// ai_enhanced flag: true only when the call succeeded and contributed
// something that survived validation.
func (s *Service) verify(ctx context.Context, payload domain.VerifyPayload) (domain.VerifierResult, bool) {
	if s.Verifier == nil {
		return domain.VerifierResult{}, false
	}
	result, err := s.Verifier.Verify(ctx, payload)
	if err != nil {
		log.Printf("verifier degraded, continuing static-only: %v", err)
		return domain.VerifierResult{}, false
	}
	contributed := len(result.Findings) > 0 ||
		len(result.Strengths) > 0 ||
		len(result.Recommendations) > 0
	return result, contributed
}

// store persists the finished report. All of it is best-effort: a dead
// repository or cache never fails a scan that already produced a report.
func (s *Service) store(ctx context.Context, key string, report *domain.SecurityReport) {
	if s.Repo != nil {
		if err := s.Repo.Save(ctx, report); err != nil {
			log.Printf("report save failed id=%s: %v", report.ID, err)
		}
	}
	if s.Archiver != nil {
		if _, err := s.Archiver.ArchiveReport(ctx, report); err != nil {
			log.Printf("report archive failed id=%s: %v", report.ID, err)
		}
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, key, report); err != nil {
			log.Printf("report cache set failed id=%s: %v", report.ID, err)
		}
	}
}

// BatchItem is one slot of a batch response. Exactly one of Report or
// Error is set; slots keep the input order.
type BatchItem struct {
	FileName string                 `json:"file_name,omitempty"`
	Report   *domain.SecurityReport `json:"report,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// AnalyzeBatch fans the pipeline out over up to MaxBatchSize requests with
// a bounded worker pool. Results come back in input order regardless of
// completion order. Cancelling ctx stops in-flight work; finished slots
// keep their results.
func (s *Service) AnalyzeBatch(ctx context.Context, reqs []domain.ScanRequest) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return nil, domain.ErrBatchEmpty
	}
	if len(reqs) > MaxBatchSize {
		return nil, domain.ErrBatchTooLarge
	}

	workers := maxBatchWorkers
	if len(reqs) < workers {
		workers = len(reqs)
	}

	results := make([]BatchItem, len(reqs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i].FileName = reqs[i].FileName
				if err := ctx.Err(); err != nil {
					results[i].Error = err.Error()
					continue
				}
				report, err := s.Analyze(ctx, reqs[i])
				if err != nil {
					results[i].Error = err.Error()
					continue
				}
				results[i].Report = report
			}
		}()
	}

	for i := range reqs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

// Latest returns the most recent persisted reports.
func (s *Service) Latest(ctx context.Context, limit int) ([]*domain.SecurityReport, error) {
	return s.Repo.Latest(ctx, limit)
}

// Get returns one persisted report by id.
func (s *Service) Get(ctx context.Context, id domain.ReportID) (*domain.SecurityReport, error) {
	return s.Repo.Get(ctx, id)
}

// Summary aggregates persisted findings over the last N days.
func (s *Service) Summary(ctx context.Context, sinceDays int) (map[string]any, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	since := s.Clock.Now().AddDate(0, 0, -sinceDays)
	total, counts, err := s.Repo.Summary(ctx, since)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"total_reports": total,
		"critical":      counts.Critical,
		"high":          counts.High,
		"medium":        counts.Medium,
		"low":           counts.Low,
	}, nil
}

func contentKey(code, lang string) string {
	sum := sha256.Sum256([]byte(lang + "\n" + code))
	return hex.EncodeToString(sum[:])
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
