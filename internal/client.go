package internal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/fuelwatch/fuelwatch/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultBaseURL = "https://www.fuel-finder.service.gov.uk/api/v1"
	batchSize      = 500
	requestTimeout = 30 * time.Second

	// effectiveStartLayout is what the API accepts. Not quite RFC3339 ...
	effectiveStartLayout = "2006-01-02 15:04:05"
)

// HTTPStatusError is returned when the remote server responds with a non-2xx status.
type HTTPStatusError struct {
	URL        string
	Status     string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status response from %s: %s", e.URL, e.Status)
}

// FuelFinderClient is the outbound contract against the Fuel Finder service.
// Implementations must classify failures: 401/403-class responses carry
// ErrAuth, everything else network-ish carries ErrFetch.
type FuelFinderClient interface {
	GenerateToken(ctx context.Context, req models.AuthRequest) (models.TokenData, error)
	RegenerateToken(ctx context.Context, req models.TokenRefreshRequest) (models.TokenData, error)
	FetchStations(ctx context.Context, token string) ([]models.PetrolFillingStation, error)
	FetchPrices(ctx context.Context, token string, since time.Time) ([]models.ForecourtPrices, error)
}

type fuelFinderClient struct {
	baseUrl string
	client  *http.Client
	limiter *rate.Limiter
}

// NewFuelFinderClient builds the production client. The proactive rate
// limiter keeps us well inside the service's published request quota even
// when pagination fans out into many batch calls.
func NewFuelFinderClient() FuelFinderClient {
	return &fuelFinderClient{
		baseUrl: defaultBaseURL,
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(2), 2),
	}
}

func (c *fuelFinderClient) GenerateToken(ctx context.Context, req models.AuthRequest) (models.TokenData, error) {
	return c.tokenExchange(ctx, "oauth/generate_access_token", req)
}

func (c *fuelFinderClient) RegenerateToken(ctx context.Context, req models.TokenRefreshRequest) (models.TokenData, error) {
	return c.tokenExchange(ctx, "oauth/regenerate_access_token", req)
}

func (c *fuelFinderClient) tokenExchange(ctx context.Context, path string, payload any) (models.TokenData, error) {
	url := fmt.Sprintf("%s/%s", c.baseUrl, path)
	body, err := c.do(ctx, http.MethodPost, url, "", payload)
	if err != nil {
		return models.TokenData{}, err
	}

	var resp models.AuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.TokenData{}, errors.Mark(errors.Wrap(err, "failed to unmarshal token response"), ErrFetch)
	}
	if !resp.Success || resp.Data.AccessToken == "" {
		// An explicit refusal from the token endpoint is a rejection, not a
		// transient fault.
		return models.TokenData{}, errors.Mark(errors.Newf("token exchange refused: %s", resp.Message), ErrAuth)
	}
	return resp.Data, nil
}

func (c *fuelFinderClient) FetchStations(ctx context.Context, token string) ([]models.PetrolFillingStation, error) {
	return fetchBatched[models.PetrolFillingStation](ctx, c, token, "pfs", "")
}

func (c *fuelFinderClient) FetchPrices(ctx context.Context, token string, since time.Time) ([]models.ForecourtPrices, error) {
	effectiveStart := ""
	if !since.IsZero() {
		effectiveStart = since.UTC().Format(effectiveStartLayout)
	}
	return fetchBatched[models.ForecourtPrices](ctx, c, token, "pfs/fuel-prices", effectiveStart)
}

// batchEnvelope is the wrapped response shape. Some endpoints (and some days)
// return a bare JSON array instead; fetchBatched copes with both.
type batchEnvelope[T any] struct {
	Success  bool            `json:"success"`
	Data     []T             `json:"data"`
	Message  string          `json:"message,omitempty"`
	MetaData models.MetaData `json:"metadata"`
}

func fetchBatched[T any](ctx context.Context, c *fuelFinderClient, token, path, effectiveStart string) ([]T, error) {
	var all []T

	for batchNo := 1; ; batchNo++ {
		url := fmt.Sprintf("%s/%s?batch-number=%d", c.baseUrl, path, batchNo)
		if effectiveStart != "" {
			url += "&effective-start-timestamp=" + neturl.QueryEscape(effectiveStart)
		}

		body, err := c.do(ctx, http.MethodGet, url, token, nil)
		if err != nil {
			var stErr *HTTPStatusError
			if errors.As(err, &stErr) && stErr.StatusCode == 400 {
				// The API signals "no more batches" with a 400.
				log.Printf("no more batches available for %s, stopping at batch %d", path, batchNo-1)
				break
			}
			return nil, err
		}

		records, totalBatches, err := decodeBatch[T](body)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)

		if len(records) == 0 ||
			(totalBatches > 0 && batchNo >= totalBatches) ||
			(totalBatches == 0 && len(records) < batchSize) {
			break
		}
	}

	return all, nil
}

func decodeBatch[T any](body []byte) ([]T, int, error) {
	if len(body) == 0 {
		return nil, 0, nil
	}

	if body[0] == '[' {
		var records []T
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, 0, errors.Mark(errors.Wrap(err, "failed to unmarshal batch array"), ErrFetch)
		}
		return records, 0, nil
	}

	var resp batchEnvelope[T]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, errors.Mark(errors.Wrap(err, "failed to unmarshal batch response"), ErrFetch)
	}
	if !resp.Success {
		return nil, 0, errors.Mark(errors.Newf("API error: %s", resp.Message), ErrFetch)
	}
	return resp.Data, resp.MetaData.TotalBatches, nil
}

// do performs one logical request with the shared retry policy and returns
// the response body. 429/5xx responses and connection failures are retried
// with jittered backoff; 401/403 are surfaced immediately as ErrAuth.
func (c *fuelFinderClient) do(ctx context.Context, method, url, token string, payload any) ([]byte, error) {
	var jsonData []byte
	if payload != nil {
		var err error
		if jsonData, err = json.Marshal(payload); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "failed to marshal request body"), ErrFetch)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Mark(err, ErrFetch)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(jsonData))
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "failed to create request"), ErrFetch)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		log.Printf("%s %s", method, url)
		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = errors.Mark(errors.Wrapf(err, "failed to fetch from %s", url), ErrFetch)
			if ctx.Err() != nil || attempt == maxAttempts {
				return nil, lastErr
			}
			if err := sleepCtx(ctx, retryDelay(attempt, "")); err != nil {
				return nil, errors.Mark(err, ErrFetch)
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			drain(resp)
			return nil, errors.Mark(&HTTPStatusError{URL: url, Status: resp.Status, StatusCode: resp.StatusCode}, ErrAuth)

		case isRetryableStatus(resp.StatusCode) && attempt < maxAttempts:
			retryAfter := resp.Header.Get("Retry-After")
			drain(resp)
			lastErr = errors.Mark(&HTTPStatusError{URL: url, Status: resp.Status, StatusCode: resp.StatusCode}, ErrFetch)
			if err := sleepCtx(ctx, retryDelay(attempt, retryAfter)); err != nil {
				return nil, errors.Mark(err, ErrFetch)
			}
			continue

		case resp.StatusCode > 299:
			drain(resp)
			return nil, errors.Mark(&HTTPStatusError{URL: url, Status: resp.Status, StatusCode: resp.StatusCode}, ErrFetch)
		}

		body, err := io.ReadAll(resp.Body)
		if cerr := resp.Body.Close(); cerr != nil {
			log.Printf("failed to close body: %v", cerr)
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "failed to read response body"), ErrFetch)
		}
		return body, nil
	}

	return nil, lastErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
