package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/openlibrary-harvester/internal/metrics"
)

// Archiver keeps raw payloads of successful fetches. Implementations must
// tolerate concurrent calls. Archiving is best-effort: errors are logged
// and counted, never propagated.
type Archiver interface {
	Put(ctx context.Context, key string, payload []byte) error
}

// ClientConfig holds the catalog endpoints and fetch behavior.
type ClientConfig struct {
	BaseURL   string
	Subject   string
	UserAgent string
	Timeout   time.Duration
}

// Client issues single GETs against the catalog and classifies outcomes.
type Client struct {
	cfg     ClientConfig
	fetcher Fetcher
	archive Archiver
	log     *zap.Logger
}

// NewClient builds a Client. archive may be nil when raw payloads are not
// kept.
func NewClient(cfg ClientConfig, fetcher Fetcher, archive Archiver, log *zap.Logger) *Client {
	return &Client{cfg: cfg, fetcher: fetcher, archive: archive, log: log}
}

// SearchPage fetches one page of subject search results.
func (c *Client) SearchPage(ctx context.Context, page, limit int) (SearchResponse, *Failure) {
	var out SearchResponse
	rawURL := SearchURL(c.cfg.BaseURL, c.cfg.Subject, limit, page)
	if f := c.fetchJSON(ctx, metrics.EndpointSearch, rawURL, searchKey(c.cfg.Subject, page), &out); f != nil {
		return SearchResponse{}, f
	}
	return out, nil
}

// WorkDetail fetches the detail record for one work.
func (c *Client) WorkDetail(ctx context.Context, workID string) (WorkDetail, *Failure) {
	var out WorkDetail
	rawURL := WorkURL(c.cfg.BaseURL, workID)
	if f := c.fetchJSON(ctx, metrics.EndpointDetail, rawURL, detailKey(workID), &out); f != nil {
		return WorkDetail{}, f
	}
	return out, nil
}

// WorkRatings fetches the rating summary for one work.
func (c *Client) WorkRatings(ctx context.Context, workID string) (Ratings, *Failure) {
	var out Ratings
	rawURL := RatingsURL(c.cfg.BaseURL, workID)
	if f := c.fetchJSON(ctx, metrics.EndpointRatings, rawURL, ratingsKey(workID), &out); f != nil {
		return Ratings{}, f
	}
	return out, nil
}

// fetchJSON performs one GET and decodes the body into out. Every failure
// mode is classified, logged at warn with the URL, and returned as a
// Failure.
func (c *Client) fetchJSON(ctx context.Context, endpoint, rawURL, archiveKey string, out any) *Failure {
	start := time.Now()
	resp, err := c.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		metrics.ObserveFetch(endpoint, metrics.OutcomeSoftFailure, time.Since(start))
		return c.fail(&Failure{URL: rawURL, Reason: ReasonTransport, Err: err})
	}
	if resp.StatusCode != http.StatusOK {
		metrics.ObserveFetch(endpoint, metrics.OutcomeSoftFailure, resp.Duration)
		return c.fail(&Failure{
			URL:    rawURL,
			Reason: ReasonStatus,
			Err:    fmt.Errorf("status %d", resp.StatusCode),
		})
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		metrics.ObserveFetch(endpoint, metrics.OutcomeSoftFailure, resp.Duration)
		return c.fail(&Failure{URL: rawURL, Reason: ReasonDecode, Err: err})
	}
	metrics.ObserveFetch(endpoint, metrics.OutcomeOK, resp.Duration)
	c.archivePayload(ctx, archiveKey, resp.Body)
	return nil
}

func (c *Client) fail(f *Failure) *Failure {
	c.log.Warn("catalog fetch failed",
		zap.String("url", f.URL),
		zap.String("reason", f.Reason),
		zap.Error(f.Err),
	)
	return f
}

func (c *Client) archivePayload(ctx context.Context, key string, body []byte) {
	if c.archive == nil {
		return
	}
	if err := c.archive.Put(ctx, key, body); err != nil {
		metrics.ObserveArchive(metrics.OutcomeError)
		c.log.Warn("raw payload archive failed", zap.String("key", key), zap.Error(err))
		return
	}
	metrics.ObserveArchive(metrics.OutcomeOK)
}
