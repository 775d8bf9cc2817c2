// Package gemini is a small client for the generateContent endpoint of the
// Generative Language API.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-3-flash-preview"
)

var (
	// ErrTransport covers network failures and non-2xx responses.
	ErrTransport = errors.New("gemini: request failed")
	// ErrNoContent is returned when the response carries no candidate text.
	ErrNoContent = errors.New("gemini: empty response")
	ErrNoAPIKey  = errors.New("gemini: api key is required")
)

type Config struct {
	BaseURL    string
	Model      string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg}
}

func (c *Client) Model() string { return c.cfg.Model }

// Part is one piece of a content turn: either text or inline bytes.
type Part struct {
	Text     string
	MimeType string
	Data     []byte
}

func TextPart(text string) Part { return Part{Text: text} }

func InlinePart(mimeType string, data []byte) Part {
	return Part{MimeType: mimeType, Data: data}
}

// Content is one conversation turn. Role is "user" or "model".
type Content struct {
	Role  string
	Parts []Part
}

type Request struct {
	System   string
	Contents []Content
	// Schema, when set, asks for a JSON response matching it.
	Schema map[string]any
}

func (p Part) wire() map[string]any {
	if len(p.Data) > 0 {
		return map[string]any{
			"inlineData": map[string]any{
				"mimeType": p.MimeType,
				"data":     base64.StdEncoding.EncodeToString(p.Data),
			},
		}
	}
	return map[string]any{"text": p.Text}
}

func (r Request) body() map[string]any {
	contents := make([]map[string]any, 0, len(r.Contents))
	for _, c := range r.Contents {
		parts := make([]map[string]any, 0, len(c.Parts))
		for _, p := range c.Parts {
			parts = append(parts, p.wire())
		}
		role := c.Role
		if role == "" {
			role = "user"
		}
		contents = append(contents, map[string]any{"role": role, "parts": parts})
	}

	body := map[string]any{"contents": contents}
	if r.System != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": r.System}},
		}
	}
	if r.Schema != nil {
		body["generationConfig"] = map[string]any{
			"responseMimeType": "application/json",
			"responseSchema":   r.Schema,
		}
	}
	return body
}

// Generate sends the request and returns the text of the first candidate.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", ErrNoAPIKey
	}

	payload, err := json.Marshal(req.body())
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	// key goes in a header so it never shows up in logged URLs
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	res, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrTransport, res.StatusCode, msg)
	}

	if reason := gjson.GetBytes(body, "promptFeedback.blockReason"); reason.Exists() {
		return "", fmt.Errorf("%w: blocked: %s", ErrNoContent, reason.String())
	}

	var sb strings.Builder
	gjson.GetBytes(body, "candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		sb.WriteString(part.Get("text").String())
		return true
	})
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}
