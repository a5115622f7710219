package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deymohit02/crypto-market-tracker/metrics"
	"github.com/deymohit02/crypto-market-tracker/models"
	"github.com/deymohit02/crypto-market-tracker/services/ratelimit"
)

// Failure kinds. Network errors, timeouts, non-2xx responses and a spent
// request budget all collapse into ErrUnavailable because the recovery is
// the same: fall back and retry next cycle. Malformed payloads wrap it so
// callers can treat both identically with errors.Is.
var (
	ErrUnavailable      = errors.New("coingecko: upstream unavailable")
	ErrMalformedPayload = fmt.Errorf("%w: malformed payload", ErrUnavailable)
)

const (
	userAgent = "crypto-market-tracker/1.0"
	budgetKey = "coingecko"
)

// Client talks to the CoinGecko REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	ratePerMin float64
}

// NewClient builds a client. ratePerMin caps outgoing requests; zero or
// negative disables the cap. The provider's real budget is undocumented,
// so callers should keep this low.
func NewClient(baseURL, apiKey string, timeout time.Duration, ratePerMin float64) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    ratelimit.New(),
		ratePerMin: ratePerMin,
	}
}

// FetchTopSnapshots returns the top coins by market cap with their current
// stats. Entries missing an id or price are dropped; a non-empty payload
// yielding zero usable entries is malformed.
func (c *Client) FetchTopSnapshots(ctx context.Context, limit int) ([]models.Coin, error) {
	if limit <= 0 {
		limit = 100
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("page", "1")
	params.Set("sparkline", "false")
	params.Set("price_change_percentage", "24h,7d")

	body, err := c.get(ctx, "/coins/markets", params, "markets")
	if err != nil {
		return nil, err
	}

	var entries []marketCoin
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	now := time.Now()
	coins := make([]models.Coin, 0, len(entries))
	for _, entry := range entries {
		if !entry.valid() {
			log.Warn().Str("id", entry.ID).Msg("skipping unusable market entry")
			continue
		}
		coins = append(coins, entry.toModel(now))
	}
	if len(coins) == 0 && len(entries) > 0 {
		return nil, fmt.Errorf("%w: no usable entries in batch of %d", ErrMalformedPayload, len(entries))
	}
	return coins, nil
}

// FetchRange returns the historical price series for one coin at the
// given granularity tier.
func (c *Client) FetchRange(ctx context.Context, coinID string, tier Tier) ([]models.SeriesPoint, error) {
	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("days", string(tier))
	if tier.daily() {
		params.Set("interval", "daily")
	}

	body, err := c.get(ctx, "/coins/"+url.PathEscape(coinID)+"/market_chart", params, "market_chart")
	if err != nil {
		return nil, err
	}

	var chart marketChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return chart.toSeries(), nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, endpoint string) ([]byte, error) {
	if c.ratePerMin > 0 && !c.limiter.Allow(budgetKey, c.ratePerMin, c.ratePerMin/60) {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "throttled").Inc()
		return nil, fmt.Errorf("%w: request budget exhausted", ErrUnavailable)
	}

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		metrics.UpstreamRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		log.Warn().
			Int("status", resp.StatusCode).
			Str("endpoint", endpoint).
			Msg("upstream error response")
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, preview(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	metrics.UpstreamRequests.WithLabelValues(endpoint, "ok").Inc()
	return body, nil
}

func preview(body []byte) string {
	const limit = 200
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
