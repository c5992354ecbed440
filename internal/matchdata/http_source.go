package matchdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/quiz-match-backend/internal/matcherr"
)

const DefaultTimeout = 10 * time.Second

// envelope is the Match Data API's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// HTTPSource talks to the Match Data API over REST.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	headers map[string]string
	logger  *zap.Logger
}

func NewHTTPSource(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		headers: make(map[string]string),
		logger:  logger,
	}
}

func (c *HTTPSource) SetHeader(key, value string) {
	c.headers[key] = value
}

// LoadMatch fetches the match and then its questions, contestants and rescues
// in parallel.
func (c *HTTPSource) LoadMatch(ctx context.Context, ref MatchRef) (*Bootstrap, error) {
	key := ref.Key()
	if key == "" {
		return nil, matcherr.Validation("matchSlug or matchId is required")
	}
	slug := url.PathEscape(key)

	b := &Bootstrap{}
	if err := c.do(ctx, http.MethodGet, "/match/"+slug, nil, &b.Match); err != nil {
		return nil, err
	}
	if ref.MatchID != "" && b.Match.ID != ref.MatchID {
		return nil, matcherr.Validation("match %q has id %q, not %q", key, b.Match.ID, ref.MatchID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.do(gctx, http.MethodGet, "/match/"+slug+"/questions", nil, &b.Questions)
	})
	g.Go(func() error {
		return c.do(gctx, http.MethodGet, "/contestant/match/"+slug, nil, &b.Contestants)
	})
	g.Go(func() error {
		return c.do(gctx, http.MethodGet, "/rescue/match/"+slug, nil, &b.Rescues)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Info("loaded match",
		zap.String("match_id", b.Match.ID),
		zap.String("slug", b.Match.Slug),
		zap.Int("questions", len(b.Questions)),
		zap.Int("contestants", len(b.Contestants)),
		zap.Int("rescues", len(b.Rescues)))
	return b, nil
}

func (c *HTTPSource) SaveResults(ctx context.Context, matchID string, results []ContestantResult) error {
	if matchID == "" {
		return matcherr.Validation("matchId is required")
	}
	body := struct {
		Results []ContestantResult `json:"results"`
	}{Results: results}
	return c.do(ctx, http.MethodPut, "/contestant/match/"+url.PathEscape(matchID)+"/results", body, nil)
}

func (c *HTTPSource) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *HTTPSource) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, endpoint, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return matcherr.Transport("%s %s: %v", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return matcherr.Transport("read %s %s: %v", method, endpoint, err)
	}
	c.logger.Debug("match api call",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode == http.StatusNotFound {
		return matcherr.NotFound("%s %s", method, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return matcherr.Transport("match api returned status %d for %s %s: %s", resp.StatusCode, method, endpoint, raw)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return matcherr.Transport("decode %s %s: %v", method, endpoint, err)
	}
	if !env.Success {
		return matcherr.Transport("match api rejected %s %s: %s", method, endpoint, env.Message)
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return matcherr.Transport("decode %s %s data: %v", method, endpoint, err)
	}
	return nil
}

var _ Source = (*HTTPSource)(nil)
