// Package footballdata is the client for the football-data.org v4 API, the
// pipeline's authoritative match source. Requests go through a circuit breaker
// and a single-flight group; transient failures are retried with a linear
// backoff and the auth token never leaks into errors or logs.
package footballdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/lapra5/football-app/internal/platform/logging"
	"github.com/lapra5/football-app/internal/platform/resilience"
)

const defaultBaseURL = "https://api.football-data.org/v4"

var authTokenHeaderRegex = regexp.MustCompile(`X-Auth-Token:\s*\S+`)

// ErrUnavailable marks failures worth retrying on a later cycle: the breaker
// is open, the provider answered 5xx/429, or the connection failed outright.
var ErrUnavailable = crerr.New("football-data provider unavailable")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	token          string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

// FetchCompetitionMatches returns the schedule of one competition. A zero
// from/to fetches the provider's default window (the whole current season).
func (c *Client) FetchCompetitionMatches(ctx context.Context, competitionID int, from, to time.Time) (CompetitionMatches, error) {
	if competitionID <= 0 {
		return CompetitionMatches{}, fmt.Errorf("competition id must be greater than zero")
	}

	query := map[string]string{}
	if !from.IsZero() {
		query["dateFrom"] = from.UTC().Format("2006-01-02")
	}
	if !to.IsZero() {
		query["dateTo"] = to.UTC().Format("2006-01-02")
	}

	var envelope competitionMatchesEnvelope
	path := fmt.Sprintf("/competitions/%d/matches", competitionID)
	if err := c.doJSON(ctx, path, query, &envelope); err != nil {
		return CompetitionMatches{}, fmt.Errorf("fetch competition matches competition_id=%d: %w", competitionID, err)
	}

	out := CompetitionMatches{
		CompetitionID:   envelope.Competition.ID,
		CompetitionName: envelope.Competition.Name,
		CompetitionCode: envelope.Competition.Code,
		Matches:         make([]Match, 0, len(envelope.Matches)),
	}
	if out.CompetitionID == 0 {
		out.CompetitionID = competitionID
	}
	for _, item := range envelope.Matches {
		if item.ID <= 0 {
			continue
		}
		out.Matches = append(out.Matches, mapMatchItem(item))
	}
	return out, nil
}

// FetchMatch returns one fixture by provider id. The refresher uses it to poll
// lineups and scores without re-pulling a whole competition.
func (c *Client) FetchMatch(ctx context.Context, matchID int) (Match, error) {
	if matchID <= 0 {
		return Match{}, fmt.Errorf("match id must be greater than zero")
	}

	var envelope singleMatchEnvelope
	path := fmt.Sprintf("/matches/%d", matchID)
	if err := c.doJSON(ctx, path, nil, &envelope); err != nil {
		return Match{}, fmt.Errorf("fetch match match_id=%d: %w", matchID, err)
	}
	if envelope.Match.ID <= 0 {
		// Some provider responses inline the match at the top level.
		var flat matchItem
		if err := c.doJSON(ctx, path, nil, &flat); err != nil {
			return Match{}, fmt.Errorf("fetch match match_id=%d: %w", matchID, err)
		}
		envelope.Match = flat
	}
	return mapMatchItem(envelope.Match), nil
}

func (c *Client) doJSON(ctx context.Context, path string, query map[string]string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "football-data circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}

	fullURL := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	out, err, _ := c.flight.Do(fullURL, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, ErrUnavailable) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return err
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected response payload type %T", out)
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode provider payload: %w", err)
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")
		if c.token != "" {
			req.Header.Set("X-Auth-Token", c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", ErrUnavailable, sanitizeSensitiveText(err.Error(), c.token))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 6<<20))
			_ = resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("%w: read response body: %v", ErrUnavailable, readErr)
			} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return raw, nil
			} else if isRetryableStatus(resp.StatusCode) {
				lastErr = fmt.Errorf("%w: provider status=%d body=%s", ErrUnavailable, resp.StatusCode, abbreviateBody(raw))
			} else {
				return nil, fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "football-data request failed", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func sanitizeSensitiveText(value, token string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if token != "" {
		value = strings.ReplaceAll(value, token, "REDACTED")
	}
	return authTokenHeaderRegex.ReplaceAllString(value, "X-Auth-Token: REDACTED")
}

func abbreviateBody(raw []byte) string {
	body := strings.TrimSpace(string(raw))
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return body
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
