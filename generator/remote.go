package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ByLCY/scribe/stroke"
	"github.com/ByLCY/scribe/style"
)

// Remote calls a model server that answers POST {endpoint}/generate.
type Remote struct {
	endpoint   string
	httpClient *http.Client
}

func NewRemote(endpoint string, timeout time.Duration) *Remote {
	return &Remote{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generateRequest struct {
	Text     string  `json:"text"`
	Bias     float64 `json:"bias"`
	Style    int     `json:"style"`
	Scale    float64 `json:"scale"`
	FontSize float64 `json:"font_size"`
}

// generateResponse carries strokes as [x, y, eos] triples.
type generateResponse struct {
	Strokes [][3]float64 `json:"strokes"`
	Error   string       `json:"error,omitempty"`
}

func (c *Remote) Generate(ctx context.Context, text string, ts style.TextStyle) (stroke.Sequence, error) {
	body, err := json.Marshal(generateRequest{
		Text:     text,
		Bias:     ts.Bias,
		Style:    ts.StyleIndex,
		Scale:    ts.Scale,
		FontSize: ts.FontSize,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &GenerationError{Text: text, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &GenerationError{Text: text, Retryable: true, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &GenerationError{Text: text, Retryable: true, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", truncate(string(respBody), 200))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &GenerationError{Text: text, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", truncate(string(respBody), 200))}
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &GenerationError{Text: text, Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.Error != "" {
		return nil, &GenerationError{Text: text, Err: fmt.Errorf("model error: %s", out.Error)}
	}

	seq := make(stroke.Sequence, len(out.Strokes))
	for i, p := range out.Strokes {
		seq[i] = stroke.Point{X: p[0], Y: p[1], PenUp: p[2] >= 0.5}
	}
	return seq, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
