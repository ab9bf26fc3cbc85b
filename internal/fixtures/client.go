package fixtures

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rportela/live-bet-bot/internal/fixtures/dto"
)

const (
	requestTimeout = 15 * time.Second

	// Limite de espera por Retry-After; acima disso o ciclo segue degradado
	maxRateLimitWait = 2 * time.Minute
)

// Client consulta a API-Football (api-sports v3) para partidas ao vivo
// e para o estado autoritativo de uma partida específica
type Client struct {
	Log     *zap.Logger
	BaseURL string
	APIKey  string

	httpClient *http.Client
}

func NewClient(log *zap.Logger, baseURL, apiKey string) *Client {
	return &Client{
		Log:        log,
		BaseURL:    baseURL,
		APIKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Live retorna os snapshots de todas as partidas ao vivo no momento
func (c *Client) Live(ctx context.Context) ([]Snapshot, error) {
	matches, err := c.fetch(ctx, c.BaseURL+"/fixtures?live=all")
	if err != nil {
		return nil, err
	}

	snaps := make([]Snapshot, 0, len(matches))
	for _, m := range matches {
		snaps = append(snaps, Normalize(m))
	}
	return snaps, nil
}

// ByID busca uma partida pelo id; retorna nil quando a API não a conhece
func (c *Client) ByID(ctx context.Context, fixtureID int) (*Snapshot, error) {
	matches, err := c.fetch(ctx, fmt.Sprintf("%s/fixtures?id=%d", c.BaseURL, fixtureID))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	snap := Normalize(matches[0])
	return &snap, nil
}

// fetch executa a requisição com tratamento de rate limit: em 429 respeita o
// Retry-After uma única vez antes de desistir (loop limitado, sem recursão)
func (c *Client) fetch(ctx context.Context, url string) ([]dto.Match, error) {
	const attempts = 2

	var lastErr error
	for i := 0; i < attempts; i++ {
		matches, retryAfter, err := c.doRequest(ctx, url)
		if err == nil {
			return matches, nil
		}
		lastErr = err

		if retryAfter <= 0 {
			break
		}
		if retryAfter > maxRateLimitWait {
			retryAfter = maxRateLimitWait
		}
		c.Log.Warn("api rate limited", zap.Duration("retry_after", retryAfter))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryAfter):
		}
	}
	return nil, lastErr
}

// doRequest faz uma chamada; retryAfter > 0 sinaliza resposta 429
func (c *Client) doRequest(ctx context.Context, url string) ([]dto.Match, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("x-apisports-key", c.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := 60 * time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, perr := strconv.Atoi(v); perr == nil && secs > 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		return nil, wait, fmt.Errorf("api rate limited (429)")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("api status %d", resp.StatusCode)
	}

	var body dto.FixturesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, 0, fmt.Errorf("decode fixtures: %w", err)
	}
	return body.Response, 0, nil
}
