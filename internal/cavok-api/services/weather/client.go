// Copyright 2026 The Cavok Authors
// SPDX-License-Identifier: Apache-2.0

package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/cavok-dev/cavok/internal/cavok-api/config"
	"github.com/cavok-dev/cavok/internal/metrics"
)

// forecastDocument is the subset of the upstream forecast payload the
// gateway projects from.
type forecastDocument struct {
	Forecast struct {
		ForecastDay []struct {
			Date string         `json:"date"`
			Hour []forecastHour `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

type forecastHour struct {
	TimeEpoch int64   `json:"time_epoch"`
	WindKph   float64 `json:"wind_kph"`
	VisMiles  float64 `json:"vis_miles"`
	Cloud     int     `json:"cloud"`
	Condition struct {
		Text string `json:"text"`
	} `json:"condition"`
}

// hourBucket returns the hour entry whose instant equals the hour-truncated
// target, searching every returned day.
func (d *forecastDocument) hourBucket(target time.Time) (*forecastHour, bool) {
	for i := range d.Forecast.ForecastDay {
		day := &d.Forecast.ForecastDay[i]
		for j := range day.Hour {
			h := &day.Hour[j]
			if time.Unix(h.TimeEpoch, 0).UTC().Equal(target) {
				return h, true
			}
		}
	}
	return nil, false
}

// Client fetches day forecasts from the upstream provider with conditional
// revalidation, bounded retries, and a token bucket sized to the provider
// quota.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	limiter     *rate.Limiter
	timeout     time.Duration
	maxRetries  uint64
	baseBackoff time.Duration
	maxBackoff  time.Duration
	logger      *slog.Logger
}

// NewClient creates an upstream forecast client. Callers must not construct
// one without an API key; use nil to signal synthetic-only operation.
func NewClient(cfg config.WeatherConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{},
		limiter:     rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		timeout:     cfg.Timeout,
		maxRetries:  uint64(cfg.MaxRetries),
		baseBackoff: cfg.BaseBackoff,
		maxBackoff:  cfg.MaxBackoff,
		logger:      logger,
	}
}

// FetchForecastDay requests the forecast document covering the target
// instant's date. A non-empty etag is sent as If-None-Match; notModified
// reports a 304 answer, in which case the document is nil. Transport errors
// and 5xx/429 statuses are retried with exponential backoff; other non-2xx
// statuses fail immediately.
func (c *Client) FetchForecastDay(ctx context.Context, location string, target time.Time, etag string) (doc *forecastDocument, respETag string, notModified bool, err error) {
	endpoint := fmt.Sprintf("%s/forecast.json?key=%s&q=%s&dt=%s",
		c.baseURL,
		url.QueryEscape(c.apiKey),
		url.QueryEscape(location),
		target.UTC().Format("2006-01-02"),
	)

	attempt := 0
	backoff := retry.WithMaxRetries(c.maxRetries, retry.WithCappedDuration(c.maxBackoff, retry.NewExponential(c.baseBackoff)))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("build forecast request: %w", err)
		}
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.ForecastUpstreamRequestsTotal.WithLabelValues("transport_error").Inc()
			c.logger.Warn("Forecast request failed",
				slog.String("location", location),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return retry.RetryableError(fmt.Errorf("forecast request: %w", err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotModified:
			metrics.ForecastUpstreamRequestsTotal.WithLabelValues("not_modified").Inc()
			notModified = true
			return nil
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			metrics.ForecastUpstreamRequestsTotal.WithLabelValues("retryable_status").Inc()
			_, _ = io.Copy(io.Discard, resp.Body)
			c.logger.Warn("Forecast upstream returned retryable status",
				slog.String("location", location),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt),
			)
			return retry.RetryableError(fmt.Errorf("upstream status %d", resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			metrics.ForecastUpstreamRequestsTotal.WithLabelValues("error_status").Inc()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			metrics.ForecastUpstreamRequestsTotal.WithLabelValues("transport_error").Inc()
			return retry.RetryableError(fmt.Errorf("read forecast response: %w", err))
		}

		var parsed forecastDocument
		if err := json.Unmarshal(body, &parsed); err != nil {
			metrics.ForecastUpstreamRequestsTotal.WithLabelValues("malformed").Inc()
			return fmt.Errorf("%w: %v", ErrMalformedForecast, err)
		}

		metrics.ForecastUpstreamRequestsTotal.WithLabelValues("ok").Inc()
		doc = &parsed
		respETag = resp.Header.Get("ETag")
		return nil
	})
	if err != nil {
		return nil, "", false, err
	}
	return doc, respETag, notModified, nil
}
