package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/codeguardian/internal/domain/audit"
	"github.com/bryanwahyu/codeguardian/internal/domain/catalog"
)

const sqliSample = `def get_user(user_id):
    query = f"SELECT * FROM users WHERE name = '{user_id}'"
    return db.execute(query)
`

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type stubRetriever struct {
	contexts []domain.RetrievedContext
	err      error
	calls    int
	mu       sync.Mutex
}

func (r *stubRetriever) Retrieve(ctx context.Context, text string, topK int) ([]domain.RetrievedContext, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return r.contexts, r.err
}

type stubVerifier struct {
	result domain.VerifierResult
	err    error
	mu     sync.Mutex
	calls  int
}

func (v *stubVerifier) Verify(ctx context.Context, payload domain.VerifyPayload) (domain.VerifierResult, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	return v.result, v.err
}

type memRepo struct {
	mu    sync.Mutex
	saved []*domain.SecurityReport
}

func (r *memRepo) Save(ctx context.Context, rep *domain.SecurityReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, rep)
	return nil
}

func (r *memRepo) Get(ctx context.Context, id domain.ReportID) (*domain.SecurityReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.saved {
		if rep.ID == id {
			return rep, nil
		}
	}
	return nil, errors.New("not found")
}

func (r *memRepo) Latest(ctx context.Context, limit int) ([]*domain.SecurityReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved, nil
}

func (r *memRepo) Summary(ctx context.Context, since time.Time) (int, domain.SeverityCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var counts domain.SeverityCounts
	for _, rep := range r.saved {
		counts.Critical += rep.Counts.Critical
		counts.High += rep.Counts.High
		counts.Medium += rep.Counts.Medium
		counts.Low += rep.Counts.Low
	}
	return len(r.saved), counts, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string]*domain.SecurityReport
	hits int
}

func (c *memCache) Get(ctx context.Context, key string) (*domain.SecurityReport, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rep, ok := c.data[key]
	if ok {
		c.hits++
	}
	return rep, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, rep *domain.SecurityReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]*domain.SecurityReport)
	}
	c.data[key] = rep
	return nil
}

func newService() *Service {
	return &Service{
		Catalog: catalog.Default(),
		Clock:   fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		Policy:  domain.DefaultPolicy(),
	}
}

func TestAnalyzeRejectsEmptyCode(t *testing.T) {
	svc := newService()

	_, err := svc.Analyze(context.Background(), domain.ScanRequest{Code: ""})
	assert.ErrorIs(t, err, domain.ErrEmptyCode)

	_, err = svc.Analyze(context.Background(), domain.ScanRequest{Code: "   \n\t  "})
	assert.ErrorIs(t, err, domain.ErrEmptyCode)
}

func TestAnalyzeRejectsOversizedCode(t *testing.T) {
	svc := newService()
	svc.Policy.MaxCodeBytes = 100

	big := make([]byte, 101)
	for i := range big {
		big[i] = 'a'
	}
	_, err := svc.Analyze(context.Background(), domain.ScanRequest{Code: string(big)})
	assert.ErrorIs(t, err, domain.ErrCodeTooLarge)
}

func TestAnalyzeRejectsUnknownLanguage(t *testing.T) {
	svc := newService()

	_, err := svc.Analyze(context.Background(), domain.ScanRequest{Code: "x = 1", Language: "fortran"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedLanguage)
}

func TestAnalyzeStaticOnly(t *testing.T) {
	svc := newService()

	rep, err := svc.Analyze(context.Background(), domain.ScanRequest{Code: sqliSample, Language: "python"})
	require.NoError(t, err)

	assert.False(t, rep.AIEnhanced)
	assert.Equal(t, "python", rep.Language)
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, domain.OriginStaticOnly, rep.Findings[0].Origin)
	assert.Equal(t, domain.SeverityCritical, rep.Findings[0].Severity)
	assert.Equal(t, "CWE-89", rep.Findings[0].CWEID)
	assert.Equal(t, 80, rep.SecurityScore)
	assert.NotEmpty(t, rep.ID)
	// timing comes from the injected clock, so a fixed clock means zero
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), rep.CreatedAt)
	assert.Zero(t, rep.DurationMS)
}

func TestAnalyzeStaticOnlyDeterministic(t *testing.T) {
	svc := newService()
	req := domain.ScanRequest{Code: sqliSample, Language: "python"}

	first, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		rep, err := svc.Analyze(context.Background(), req)
		require.NoError(t, err)
		// everything except the generated id matches
		assert.Equal(t, first.SecurityScore, rep.SecurityScore)
		assert.Equal(t, first.RiskLevel, rep.RiskLevel)
		assert.Equal(t, first.Findings, rep.Findings)
		assert.Equal(t, first.Strengths, rep.Strengths)
		assert.Equal(t, first.Recommendations, rep.Recommendations)
	}
}

func TestAnalyzeDegradesWhenVerifierFails(t *testing.T) {
	svc := newService()
	svc.Verifier = &stubVerifier{err: domain.ErrVerifierUnavailable}
	svc.Retriever = &stubRetriever{err: errors.New("retrieval down")}

	rep, err := svc.Analyze(context.Background(), domain.ScanRequest{Code: sqliSample, Language: "python"})
	require.NoError(t, err)
	assert.False(t, rep.AIEnhanced)
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, domain.OriginStaticOnly, rep.Findings[0].Origin)
}

func TestAnalyzeAIEnhanced(t *testing.T) {
	svc := newService()
	svc.Verifier = &stubVerifier{result: domain.VerifierResult{
		Findings: []domain.VerifierFinding{{
			Title: "SQL injection confirmed", Severity: domain.SeverityCritical,
			Category: domain.CategoryInjection, LineNumbers: []int{2}, Confidence: 0.95,
		}},
		Summary: "One critical issue.",
	}}

	rep, err := svc.Analyze(context.Background(), domain.ScanRequest{Code: sqliSample, Language: "python"})
	require.NoError(t, err)
	assert.True(t, rep.AIEnhanced)
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, domain.OriginAIConfirmed, rep.Findings[0].Origin)
	assert.Equal(t, "One critical issue.", rep.Summary)
}

func TestAnalyzeEmptyVerifierOutputIsNotEnhanced(t *testing.T) {
	svc := newService()
	svc.Verifier = &stubVerifier{} // succeeds but contributes nothing

	rep, err := svc.Analyze(context.Background(), domain.ScanRequest{Code: sqliSample, Language: "python"})
	require.NoError(t, err)
	assert.False(t, rep.AIEnhanced)
}

func TestAnalyzeUsesCache(t *testing.T) {
	svc := newService()
	cache := &memCache{}
	svc.Cache = cache
	verifier := &stubVerifier{}
	svc.Verifier = verifier

	req := domain.ScanRequest{Code: sqliSample, Language: "python"}
	first, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	second, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, 1, verifier.calls)
}

func TestAnalyzePersistsReport(t *testing.T) {
	svc := newService()
	repo := &memRepo{}
	svc.Repo = repo

	rep, err := svc.Analyze(context.Background(), domain.ScanRequest{Code: sqliSample, Language: "python"})
	require.NoError(t, err)

	require.Len(t, repo.saved, 1)
	assert.Equal(t, rep.ID, repo.saved[0].ID)
}

func TestAnalyzeAutoDetectsLanguage(t *testing.T) {
	svc := newService()

	rep, err := svc.Analyze(context.Background(), domain.ScanRequest{Code: sqliSample})
	require.NoError(t, err)
	assert.Equal(t, "python", rep.Language)
}

func TestAnalyzeBatchRejectsEmptyAndOversized(t *testing.T) {
	svc := newService()

	_, err := svc.AnalyzeBatch(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrBatchEmpty)

	reqs := make([]domain.ScanRequest, MaxBatchSize+1)
	for i := range reqs {
		reqs[i] = domain.ScanRequest{Code: "x = 1"}
	}
	_, err = svc.AnalyzeBatch(context.Background(), reqs)
	assert.ErrorIs(t, err, domain.ErrBatchTooLarge)
}

func TestAnalyzeBatchPreservesOrder(t *testing.T) {
	svc := newService()

	reqs := []domain.ScanRequest{
		{Code: sqliSample, Language: "python", FileName: "a.py"},
		{Code: "", FileName: "b.py"}, // invalid slot
		{Code: "print('ok')", Language: "python", FileName: "c.py"},
		{Code: "x", Language: "klingon", FileName: "d.py"}, // invalid slot
		{Code: "os.system(cmd)", Language: "python", FileName: "e.py"},
	}

	results, err := svc.AnalyzeBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, len(reqs))

	assert.Equal(t, "a.py", results[0].FileName)
	require.NotNil(t, results[0].Report)
	assert.Empty(t, results[0].Error)

	assert.Equal(t, "b.py", results[1].FileName)
	assert.Nil(t, results[1].Report)
	assert.Equal(t, domain.ErrEmptyCode.Error(), results[1].Error)

	require.NotNil(t, results[2].Report)

	assert.Nil(t, results[3].Report)
	assert.Equal(t, domain.ErrUnsupportedLanguage.Error(), results[3].Error)

	require.NotNil(t, results[4].Report)
	assert.Equal(t, "e.py", results[4].FileName)
}

func TestAnalyzeBatchOneBadVerifierDoesNotPoisonOthers(t *testing.T) {
	svc := newService()
	svc.Verifier = &stubVerifier{err: errors.New("boom")}

	reqs := []domain.ScanRequest{
		{Code: sqliSample, Language: "python"},
		{Code: "print('ok')", Language: "python"},
	}
	results, err := svc.AnalyzeBatch(context.Background(), reqs)
	require.NoError(t, err)
	for _, item := range results {
		require.NotNil(t, item.Report)
		assert.False(t, item.Report.AIEnhanced)
	}
}

func TestAnalyzeBatchCancelledContext(t *testing.T) {
	svc := newService()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := svc.AnalyzeBatch(ctx, []domain.ScanRequest{
		{Code: sqliSample, Language: "python"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Report)
	assert.NotEmpty(t, results[0].Error)
}

func TestSummary(t *testing.T) {
	svc := newService()
	repo := &memRepo{}
	svc.Repo = repo

	_, err := svc.Analyze(context.Background(), domain.ScanRequest{Code: sqliSample, Language: "python"})
	require.NoError(t, err)

	summary, err := svc.Summary(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, summary["total_reports"])
	assert.Equal(t, 1, summary["critical"])
}
