package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bandup/session-service/internal/models"
)

var ErrSectionNotFound = errors.New("section not found")

// ContentAPI is the remote content service the loader reads sections from.
type ContentAPI interface {
	GetSection(ctx context.Context, id string) (models.Section, error)
	GetQuestions(ctx context.Context, sectionID string) ([]models.Question, error)
}

type Client struct {
	baseURL string
	http    *http.Client
}

type ClientConfig struct {
	BaseURL string
	// Zero means no client-side timeout; requests still honour ctx.
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

type sectionWire struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	OrderIndex       int             `json:"orderIndex"`
	TimeLimitSeconds int             `json:"timeLimitSeconds"`
	Skill            string          `json:"skill"`
	Metadata         json.RawMessage `json:"metadata"`
}

type questionWire struct {
	ID             string   `json:"id"`
	QuestionNumber int      `json:"questionNumber"`
	Type           string   `json:"type"`
	Content        string   `json:"content"`
	CorrectAnswer  string   `json:"correctAnswer"`
	Options        []string `json:"options"`
}

func (c *Client) GetSection(ctx context.Context, id string) (models.Section, error) {
	var w sectionWire
	if err := c.getJSON(ctx, "/sections/"+url.PathEscape(id), &w); err != nil {
		return models.Section{}, fmt.Errorf("get section %s: %w", id, err)
	}
	return models.Section{
		ID:         w.ID,
		Title:      w.Title,
		OrderIndex: w.OrderIndex,
		TimeLimit:  w.TimeLimitSeconds,
		Skill:      models.Skill(strings.ToLower(w.Skill)),
		Metadata:   metadataString(w.Metadata),
	}, nil
}

func (c *Client) GetQuestions(ctx context.Context, sectionID string) ([]models.Question, error) {
	var items []questionWire
	if err := c.getJSON(ctx, "/sections/"+url.PathEscape(sectionID)+"/questions", &items); err != nil {
		return nil, fmt.Errorf("get questions for section %s: %w", sectionID, err)
	}
	out := make([]models.Question, 0, len(items))
	for _, it := range items {
		out = append(out, models.Question{
			ID:             it.ID,
			QuestionNumber: it.QuestionNumber,
			Type:           models.QuestionType(it.Type),
			Content:        it.Content,
			CorrectAnswer:  it.CorrectAnswer,
			Options:        it.Options,
		})
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrSectionNotFound
	}
	if res.StatusCode/100 != 2 {
		return fmt.Errorf("content api: %s", res.Status)
	}
	return json.NewDecoder(res.Body).Decode(dest)
}

// metadataString keeps string metadata as-is and raw JSON objects as their encoding.
func metadataString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
