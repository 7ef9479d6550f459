package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	domain "github.com/bryanwahyu/codeguardian/internal/domain/audit"
)

const (
	defaultTimeout  = 2 * time.Second
	embedCharsLimit = 4000
)

// HTTPRetriever calls an external embedding/retrieval service. One bounded
// attempt, no retries: retrieval is an enhancement and the caller degrades
// to an empty context list on any error.
type HTTPRetriever struct {
	Endpoint string
	client   *http.Client
}

func NewHTTPRetriever(endpoint string, timeout time.Duration) *HTTPRetriever {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPRetriever{
		Endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type retrieveRequest struct {
	Text string `json:"text"`
	TopK int    `json:"top_k"`
}

type retrieveResponse struct {
	Results []struct {
		ID    string  `json:"id"`
		Text  string  `json:"text"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// Retrieve implements the Retriever port against the remote service. The
// query is truncated to the embedding length limit before sending.
func (r *HTTPRetriever) Retrieve(ctx context.Context, text string, topK int) ([]domain.RetrievedContext, error) {
	if len(text) > embedCharsLimit {
		text = text[:embedCharsLimit]
	}

	body, err := json.Marshal(retrieveRequest{Text: text, TopK: topK})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("retrieval service returned %d", resp.StatusCode)
	}

	var decoded retrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedContext, 0, len(decoded.Results))
	for _, res := range decoded.Results {
		out = append(out, domain.RetrievedContext{EntryID: res.ID, Text: res.Text, Score: res.Score})
	}
	return out, nil
}
