// Package httprequest provides the built-in HTTP request tool. Node params
// are substituted by the engine before invocation, so values arrive resolved.
package httprequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrURLMissing is returned when the params carry no 'url'.
	ErrURLMissing = errors.New("missing or invalid 'url' in params")
)

// Tool performs one HTTP request per invocation and returns the decoded
// response.
type Tool struct {
	client *http.Client
	logger *slog.Logger
}

func NewTool(logger *slog.Logger) *Tool {
	return &Tool{
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger.With("capability", "http_request"),
	}
}

// Invoke issues the request described by params: url (required), method
// (default GET), headers (map of strings) and body (string or JSON-encodable
// value).
func (t *Tool) Invoke(ctx context.Context, params map[string]any, _ map[string]any) (any, error) {
	url, ok := params["url"].(string)
	if !ok || url == "" {
		return nil, ErrURLMissing
	}

	method, _ := params["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	body, err := requestBody(params["body"])
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}

	if headers, ok := params["headers"].(map[string]any); ok {
		for key, value := range headers {
			req.Header.Set(key, fmt.Sprintf("%v", value))
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	return t.processResponse(ctx, resp)
}

func requestBody(value any) (io.Reader, error) {
	switch v := value.(type) {
	case nil:
		return strings.NewReader(""), nil
	case string:
		return strings.NewReader(v), nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}

		return strings.NewReader(string(encoded)), nil
	}
}

func (t *Tool) processResponse(ctx context.Context, resp *http.Response) (any, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var body any

	err = json.Unmarshal(bodyBytes, &body)
	if err != nil {
		body = string(bodyBytes)

		t.logger.WarnContext(ctx, "Failed to parse response as JSON, returning as string", "error", err)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
		"headers":     resp.Header,
	}, nil
}
