package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appaudit "github.com/bryanwahyu/codeguardian/internal/application/audit"
	domain "github.com/bryanwahyu/codeguardian/internal/domain/audit"
	"github.com/bryanwahyu/codeguardian/internal/domain/catalog"
)

const sqliSample = `def get_user(user_id):
    query = f"SELECT * FROM users WHERE name = '{user_id}'"
    return db.execute(query)
`

func newTestRouter() http.Handler {
	cat := catalog.Default()
	svc := &appaudit.Service{
		Catalog: cat,
		Clock:   appaudit.SystemClock{},
		Policy:  domain.DefaultPolicy(),
	}
	return NewRouter(svc, cat, Options{})
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeEndpoint(t *testing.T) {
	h := newTestRouter()

	rec := postJSON(t, h, "/v1/security/analyze", map[string]string{
		"code":     sqliSample,
		"language": "python",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var rep domain.SecurityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, 80, rep.SecurityScore)
	assert.Equal(t, "medium", rep.RiskLevel)
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, "CWE-89", rep.Findings[0].CWEID)
	assert.False(t, rep.AIEnhanced)
}

func TestAnalyzeEndpointRejectsEmptyCode(t *testing.T) {
	h := newTestRouter()

	rec := postJSON(t, h, "/v1/security/analyze", map[string]string{"code": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestAnalyzeEndpointRejectsUnknownLanguage(t *testing.T) {
	h := newTestRouter()

	rec := postJSON(t, h, "/v1/security/analyze", map[string]string{
		"code": "x = 1", "language": "cobol",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeEndpointRejectsOversizedCode(t *testing.T) {
	cat := catalog.Default()
	pol := domain.DefaultPolicy()
	pol.MaxCodeBytes = 10
	svc := &appaudit.Service{Catalog: cat, Clock: appaudit.SystemClock{}, Policy: pol}
	h := NewRouter(svc, cat, Options{})

	rec := postJSON(t, h, "/v1/security/analyze", map[string]string{
		"code": "this is definitely more than ten bytes",
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAnalyzeEndpointRejectsMalformedJSON(t *testing.T) {
	h := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/security/analyze", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeEndpointRejectsBadFileName(t *testing.T) {
	h := newTestRouter()

	rec := postJSON(t, h, "/v1/security/analyze", map[string]string{
		"code": "x = 1", "file_name": "../../etc/passwd",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchAnalyzeEndpoint(t *testing.T) {
	h := newTestRouter()

	rec := postJSON(t, h, "/v1/security/batch-analyze", map[string]any{
		"items": []map[string]string{
			{"code": sqliSample, "language": "python", "file_name": "a.py"},
			{"code": "print('ok')", "language": "python", "file_name": "b.py"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total   int                 `json:"total"`
		Results []appaudit.BatchItem `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Total)
	assert.Equal(t, "a.py", body.Results[0].FileName)
	require.NotNil(t, body.Results[0].Report)
	require.NotNil(t, body.Results[1].Report)
	assert.Less(t, body.Results[0].Report.SecurityScore, body.Results[1].Report.SecurityScore)
}

func TestBatchAnalyzeEndpointRejectsEmpty(t *testing.T) {
	h := newTestRouter()

	rec := postJSON(t, h, "/v1/security/batch-analyze", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchAnalyzeEndpointRejectsOversizedBatch(t *testing.T) {
	h := newTestRouter()

	items := make([]map[string]string, appaudit.MaxBatchSize+1)
	for i := range items {
		items[i] = map[string]string{"code": "x = 1"}
	}
	rec := postJSON(t, h, "/v1/security/batch-analyze", map[string]any{"items": items})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVulnerabilityTypesEndpoint(t *testing.T) {
	h := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/security/vulnerability-types", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Total int `json:"total"`
		Types []struct {
			ID       string `json:"id"`
			Category string `json:"category"`
			Severity string `json:"severity"`
			CWEID    string `json:"cwe_id"`
		} `json:"types"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Greater(t, body.Total, 10)

	found := false
	for _, e := range body.Types {
		if e.ID == "sql-injection" {
			found = true
			assert.Equal(t, "CWE-89", e.CWEID)
			assert.Equal(t, "critical", e.Severity)
		}
	}
	assert.True(t, found)
}

func TestVulnerabilityTypesLanguagesSorted(t *testing.T) {
	cat, err := catalog.Parse([]byte(`patterns:
  - id: proto-pollution
    category: injection
    severity: high
    description: Prototype chain manipulation from attacker-controlled keys.
    remediation: Freeze prototypes or use null-prototype maps.
    languages: [typescript, javascript, python]
    patterns:
      - '__proto__'
`))
	require.NoError(t, err)
	svc := &appaudit.Service{
		Catalog: cat,
		Clock:   appaudit.SystemClock{},
		Policy:  domain.DefaultPolicy(),
	}
	h := NewRouter(svc, cat, Options{})

	req := httptest.NewRequest(http.MethodGet, "/v1/security/vulnerability-types", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Types []struct {
			Languages []string `json:"languages"`
		} `json:"types"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Types, 1)
	assert.Equal(t, []string{"javascript", "python", "typescript"}, body.Types[0].Languages)
}

func TestGetReportRejectsBadID(t *testing.T) {
	h := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "requests_total")
	assert.Contains(t, body, "analyses_total")
}

func TestAuthRequiredWhenConfigured(t *testing.T) {
	cat := catalog.Default()
	svc := &appaudit.Service{Catalog: cat, Clock: appaudit.SystemClock{}, Policy: domain.DefaultPolicy()}
	h := NewRouter(svc, cat, Options{APIKeys: map[string]string{"ci": "sekrit"}})

	req := httptest.NewRequest(http.MethodGet, "/v1/security/vulnerability-types", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/security/vulnerability-types", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// health stays open
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
