package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doculens/doculens/internal/summarize"
)

// Summarize implements summarize.Summarizer using text-only chat/completions.
// Long documents are summarized in chunks first; the partial summaries are
// then merged into the final structured output.
func (c *Client) Summarize(ctx context.Context, req summarize.Request) (summarize.Summary, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	chunks := summarize.ChunkText(req.Text, c.cfg.ChunkSize)
	c.log.Info("summarize.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"document", req.DocumentName,
		"text_len", len(req.Text),
		"chunks", len(chunks),
	)
	if len(chunks) == 0 {
		return summarize.Summary{}, nil, fmt.Errorf("nothing to summarize")
	}

	finalInput := chunks[0]
	if len(chunks) > 1 {
		partials := make([]string, 0, len(chunks))
		for i, chunk := range chunks {
			partial, err := c.chunkSummary(ctx, req, i, len(chunks), chunk)
			if err != nil {
				c.log.Error("summarize.chunk_error",
					"req_id", rid, "chunk", i, "error", err,
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
				return summarize.Summary{}, nil, fmt.Errorf("summarize chunk %d: %w", i, err)
			}
			partials = append(partials, partial)
		}
		finalInput = buildMergeInput(req.DocumentName, partials)
	}

	schema := summarize.BuildSummarySchema(req.MaxKeyPoints)
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt(req)},
			{"role": "user", "content": finalInput + "\n\nReturn ONLY JSON that matches the provided schema."},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	content, err := c.completion(ctx, body)
	if err != nil {
		c.log.Error("summarize.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return summarize.Summary{}, nil, err
	}
	rawContent := []byte(strings.TrimSpace(content))

	if err := summarize.ValidateJSONAgainstSchema(schema, rawContent); err != nil {
		c.log.Error("summarize.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(rawContent),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return summarize.Summary{}, rawContent, fmt.Errorf("schema validation failed: %w", err)
	}

	var out summarize.Summary
	if err := json.Unmarshal(rawContent, &out); err != nil {
		return summarize.Summary{}, rawContent, fmt.Errorf("unmarshal summary: %w", err)
	}

	c.log.Info("summarize.ok",
		"req_id", rid,
		"title", out.Title,
		"key_points", len(out.KeyPoints),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}

// chunkSummary asks for a plain-prose summary of one chunk; no schema here,
// only the final merge is structured.
func (c *Client) chunkSummary(ctx context.Context, req summarize.Request, idx, total int, chunk string) (string, error) {
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "system", "content": "You summarize one part of a longer document. Reply with a single short paragraph of plain prose."},
			{"role": "user", "content": chunkPrompt(req.DocumentName, idx, total, chunk)},
		},
	}
	content, err := c.completion(ctx, body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *Client) completion(ctx context.Context, body map[string]any) (string, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		return "", err
	}
	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return cc.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, raw)
	}
	return raw, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
