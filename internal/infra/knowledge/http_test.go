package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRetrieverSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req retrieveRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 5, req.TopK)
		assert.NotEmpty(t, req.Text)

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"id": "sql_injection", "text": "use parameterized queries", "score": 0.91},
				{"id": "xss", "text": "escape output", "score": 0.42},
			},
		})
	}))
	defer srv.Close()

	r := NewHTTPRetriever(srv.URL, time.Second)
	out, err := r.Retrieve(context.Background(), "select concat query", 5)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "sql_injection", out[0].EntryID)
	assert.Equal(t, 0.91, out[0].Score)
}

func TestHTTPRetrieverNon200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewHTTPRetriever(srv.URL, time.Second)
	_, err := r.Retrieve(context.Background(), "query", 5)
	assert.Error(t, err)
}

func TestHTTPRetrieverTruncatesLongQueries(t *testing.T) {
	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req retrieveRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotLen = len(req.Text)
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	long := make([]byte, embedCharsLimit*2)
	for i := range long {
		long[i] = 'a'
	}
	r := NewHTTPRetriever(srv.URL, time.Second)
	_, err := r.Retrieve(context.Background(), string(long), 5)
	require.NoError(t, err)
	assert.Equal(t, embedCharsLimit, gotLen)
}

func TestHTTPRetrieverUnreachable(t *testing.T) {
	r := NewHTTPRetriever("http://127.0.0.1:1/retrieve", 200*time.Millisecond)
	_, err := r.Retrieve(context.Background(), "query", 5)
	assert.Error(t, err)
}
