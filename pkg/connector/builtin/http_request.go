package builtin

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

	"github.com/routinehq/routine/pkg/connector"
)

// ActionHTTPRequest is the id of the HTTP request action.
const ActionHTTPRequest = "http.request"

const defaultTimeoutSeconds = 30

// ErrServerError is reported when the server returns a 5xx status on every
// attempt.
var ErrServerError = errors.New("server error during HTTP request")

type retryConfig struct {
	Attempts int
	Delay    time.Duration
}

// HTTPRequest returns the http.request action. It performs an HTTP call with
// optional headers, body and retry on network and server errors.
func HTTPRequest(logger *slog.Logger) (*connector.Action, connector.HandlerFunc) {
	action := &connector.Action{
		ID:          ActionHTTPRequest,
		Name:        "HTTP Request",
		Description: "Performs an HTTP request and returns the status, parsed body and headers.",
		PayloadSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "Absolute URL to request.",
				},
				"method": map[string]any{
					"type":        "string",
					"description": "HTTP method. Defaults to GET.",
				},
				"headers": map[string]any{
					"type":        "object",
					"description": "Request headers.",
				},
				"body": map[string]any{
					"type":        "string",
					"description": "Raw request body.",
				},
				"timeout_seconds": map[string]any{
					"type":        "number",
					"description": "Request timeout in seconds. Defaults to 30.",
				},
				"retry": map[string]any{
					"type":        "object",
					"description": "Retry behavior: {attempts, delay_seconds}. Retries network and 5xx errors.",
				},
			},
			"required": []string{"url"},
		},
	}

	handler := func(ctx context.Context, payload map[string]any, _ string) (*connector.Result, error) {
		return executeHTTPRequest(ctx, logger.With("action", ActionHTTPRequest), payload)
	}

	return action, handler
}

func executeHTTPRequest(ctx context.Context, logger *slog.Logger, payload map[string]any) (*connector.Result, error) {
	url, _ := payload["url"].(string)

	method, _ := payload["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	method = strings.ToUpper(method)

	body, _ := payload["body"].(string)
	headers := stringMap(payload["headers"])
	retry := parseRetry(payload["retry"])

	timeout := defaultTimeoutSeconds * time.Second
	if seconds, ok := payload["timeout_seconds"].(float64); ok && seconds > 0 {
		timeout = time.Duration(seconds * float64(time.Second))
	}

	client := &http.Client{Timeout: timeout}

	var (
		lastErr error
		resp    *http.Response
	)

	for attempt := 1; attempt <= retry.Attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, "Retrying HTTP request", "attempt", attempt, "max_attempts", retry.Attempts)
			time.Sleep(retry.Delay)
		}

		var bodyReader io.Reader
		if body != "" {
			bodyReader = strings.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create http request: %w", err)
		}

		for key, value := range headers {
			req.Header.Set(key, value)
		}

		resp, err = client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request failed: %w", err)

			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError && attempt < retry.Attempts {
			if err := resp.Body.Close(); err != nil {
				logger.ErrorContext(ctx, "failed to close response body", "error", err)
			}

			lastErr = fmt.Errorf("server error (status %d): %w", resp.StatusCode, ErrServerError)
			resp = nil

			continue
		}

		break
	}

	if resp == nil {
		return &connector.Result{
			OK:           false,
			Summary:      fmt.Sprintf("%s %s failed", method, url),
			ErrorMessage: lastErr.Error(),
		}, nil
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed any

	err = json.Unmarshal(bodyBytes, &parsed)
	if err != nil {
		parsed = string(bodyBytes)

		logger.WarnContext(ctx, "Failed to parse response as JSON, returning as string", "error", err)
	}

	headerValues := make(map[string]any, len(resp.Header))
	for key := range resp.Header {
		headerValues[key] = resp.Header.Get(key)
	}

	result := &connector.Result{
		OK:      resp.StatusCode < http.StatusBadRequest,
		Summary: fmt.Sprintf("%s %s -> %d", method, url, resp.StatusCode),
		Data: map[string]any{
			"status_code": resp.StatusCode,
			"body":        parsed,
			"headers":     headerValues,
		},
	}

	if !result.OK {
		result.ErrorMessage = fmt.Sprintf("server returned status %d", resp.StatusCode)
	}

	logger.InfoContext(ctx, "HTTP request completed", "status_code", resp.StatusCode, "body_length", len(bodyBytes))

	return result, nil
}

func parseRetry(value any) retryConfig {
	retry := retryConfig{Attempts: 1, Delay: 0}

	retryMap, ok := value.(map[string]any)
	if !ok {
		return retry
	}

	if attempts, ok := retryMap["attempts"].(float64); ok && attempts > 0 {
		retry.Attempts = int(attempts)
	}

	if delay, ok := retryMap["delay_seconds"].(float64); ok && delay > 0 {
		retry.Delay = time.Duration(delay * float64(time.Second))
	}

	return retry
}

func stringMap(value any) map[string]string {
	result := make(map[string]string)

	valueMap, ok := value.(map[string]any)
	if !ok {
		return result
	}

	for key, raw := range valueMap {
		if str, ok := raw.(string); ok {
			result[key] = str
		}
	}

	return result
}
