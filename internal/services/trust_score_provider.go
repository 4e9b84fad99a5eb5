package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TrustScoreProvider returns a user's trust score in [0, 100]
type TrustScoreProvider interface {
	GetScore(ctx context.Context, userID uuid.UUID) (int, error)
}

// StaticTrustScoreProvider returns the same score for every user. Used when
// no user service is configured.
type StaticTrustScoreProvider struct {
	Score int
}

// GetScore returns the configured score
func (p StaticTrustScoreProvider) GetScore(_ context.Context, _ uuid.UUID) (int, error) {
	return p.Score, nil
}

// HTTPTrustScoreProvider asks the user service for a trust score
type HTTPTrustScoreProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTrustScoreProvider creates a provider for the user service at baseURL
func NewHTTPTrustScoreProvider(baseURL string, timeout time.Duration) *HTTPTrustScoreProvider {
	return &HTTPTrustScoreProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type trustScoreResponse struct {
	TrustScore *int `json:"trust_score"`
}

// GetScore calls GET {baseURL}/api/v1/users/{id}/trust-score
func (p *HTTPTrustScoreProvider) GetScore(ctx context.Context, userID uuid.UUID) (int, error) {
	url := fmt.Sprintf("%s/api/v1/users/%s/trust-score", p.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("trust score request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return 0, fmt.Errorf("failed to read trust score response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("trust score service returned status %d", resp.StatusCode)
	}

	var out trustScoreResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("invalid trust score response: %w", err)
	}
	if out.TrustScore == nil {
		return 0, fmt.Errorf("trust score missing from response")
	}
	return *out.TrustScore, nil
}
