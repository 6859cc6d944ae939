package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// PublishError represents a non-2xx answer from the share endpoint.
type PublishError struct {
	StatusCode int
	Body       string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("artifact publish failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are considered permanent.
func (e *PublishError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPClient publishes artifact metadata to the share service.
type HTTPClient struct {
	baseURL    string
	token      string
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *HTTPClient) SetDeviceID(id string) {
	c.deviceID = id
}

func (c *HTTPClient) PublishArtifact(ctx context.Context, payload SharePayload) (*ShareResponse, error) {
	if payload.DeviceID == "" {
		payload.DeviceID = c.deviceID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal share payload: %w", err)
	}

	url := c.baseURL + "/api/shares"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Reelfix-Request-Id", uuid.NewString())
	if c.deviceID != "" {
		req.Header.Set("X-Reelfix-Device-Id", c.deviceID)
	}

	c.logger.Info("publishing artifact",
		"url", url,
		"recording_id", payload.RecordingID,
		"filename", payload.Filename,
		"body_bytes", len(body),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &PublishError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result ShareResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("decode share response: %w", err)
		}
	}
	c.logger.Info("artifact published", "recording_id", payload.RecordingID, "share_id", result.ShareID)
	return &result, nil
}
