package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/kudos/internal/domain/ledger"
)

// StatusError is a non-2xx answer from the service.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// client wraps http.Client with the JSON conventions of the service API.
type client struct {
	base  string
	http  *http.Client
	stats *Stats
}

func newClient(base string, timeout time.Duration, stats *Stats) *client {
	return &client{
		base:  base,
		http:  &http.Client{Timeout: timeout},
		stats: stats,
	}
}

// do sends body as JSON and decodes a 2xx answer into out when out is not nil.
func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	c.stats.Requests.Add(1)
	err := c.send(ctx, method, path, body, out)
	if err != nil {
		c.stats.Failed.Add(1)
	}
	return err
}

func (c *client) send(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response of %s %s: %w", method, path, err)
	}
	return nil
}

// Wire shapes. Only the fields the run reads are declared.

type idResponse struct {
	ID string `json:"id"`
}

type profileResponse struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Inactive bool          `json:"inactive"`
	Scores   ledger.Scores `json:"scores"`
}

type transactionResponse struct {
	ID     string          `json:"id"`
	FromID string          `json:"from_id"`
	ToID   string          `json:"to_id"`
	Amount decimal.Decimal `json:"amount"`
	Status string          `json:"status"`
}

type billResponse struct {
	Transactions []transactionResponse `json:"transactions"`
}

// Standing is one leaderboard row.
type Standing struct {
	ProfileID   string `json:"profile_id"`
	Name        string `json:"name"`
	Score       int64  `json:"score"`
	CurrentRank int    `json:"current_rank"`
	RankChange  int    `json:"rank_change"`
	Arrow       string `json:"arrow"`
}

type leaderboardResponse struct {
	Boards map[string][]Standing `json:"boards"`
}
