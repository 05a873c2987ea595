package rewards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ety001/steem-account-watcher/internal/metrics"
)

// ErrEstimatorUnavailable wraps any failure of the external reward
// estimation service. The caller re-issues the request; there is no
// automatic retry and no checkpoint is written.
var ErrEstimatorUnavailable = errors.New("reward estimator unavailable")

// ItemEstimate is the estimator's per-item reward breakdown.
type ItemEstimate struct {
	Author    float64 `json:"author"`
	SBDAmount float64 `json:"sbd_amount"`
	SPAmount  float64 `json:"sp_amount"`
}

// EstimatorClient calls the external HTTP reward estimation service. The
// request is a form-encoded, comma-joined list of @author/permlink links;
// the response is a JSON array aligned to the input list.
type EstimatorClient struct {
	url        string
	httpClient *http.Client
}

// NewEstimatorClient creates a client for the estimator at the given URL.
func NewEstimatorClient(estimatorURL string) *EstimatorClient {
	return &EstimatorClient{
		url: estimatorURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Estimate requests reward estimates for a batch of @author/permlink links.
func (c *EstimatorClient) Estimate(ctx context.Context, links []string) ([]ItemEstimate, error) {
	form := url.Values{}
	form.Set("links", strings.Join(links, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEstimatorUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.EstimatorErrors.Inc()
		return nil, fmt.Errorf("%w: %v", ErrEstimatorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.EstimatorErrors.Inc()
		return nil, fmt.Errorf("%w: %v", ErrEstimatorUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.EstimatorErrors.Inc()
		return nil, fmt.Errorf("%w: unexpected status %d", ErrEstimatorUnavailable, resp.StatusCode)
	}

	var decoded struct {
		Rewards []ItemEstimate `json:"rewards"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		metrics.EstimatorErrors.Inc()
		return nil, fmt.Errorf("%w: invalid response: %v", ErrEstimatorUnavailable, err)
	}

	return decoded.Rewards, nil
}
