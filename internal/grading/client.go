package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bandup/session-service/internal/models"
)

// GradingAPI is the remote service that scores a submitted attempt.
type GradingAPI interface {
	SubmitAnswers(ctx context.Context, record models.SubmissionRecord) (*models.GradingResult, error)
}

type Client struct {
	baseURL string
	http    *http.Client
}

type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	h := cfg.HTTPClient
	if h == nil {
		h = &http.Client{}
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &Client{baseURL: strings.TrimRight(cfg.BaseURL, "/"), http: h}
}

// SubmitAnswers posts {answers:[...]} to /answers/ielts/test/{attemptId}.
func (c *Client) SubmitAnswers(ctx context.Context, record models.SubmissionRecord) (*models.GradingResult, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}

	endpoint := c.baseURL + "/answers/ielts/test/" + url.PathEscape(record.AttemptID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("submit answers: %s", res.Status)
	}

	var result models.GradingResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode grading result: %w", err)
	}
	return &result, nil
}
