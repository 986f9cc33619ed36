package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RezaEskandarii/postfire/types"
)

// PlatformClient performs the publish call against one platform.
type PlatformClient interface {
	Publish(ctx context.Context, accessToken string, content types.Content) (string, error)
}

// PlatformClientFunc adapts a function to PlatformClient.
type PlatformClientFunc func(ctx context.Context, accessToken string, content types.Content) (string, error)

func (f PlatformClientFunc) Publish(ctx context.Context, accessToken string, content types.Content) (string, error) {
	return f(ctx, accessToken, content)
}

// HTTPPlatformClient posts content as JSON to "{endpoint}/posts" with a bearer token and
// expects {"id": "..."} back.
type HTTPPlatformClient struct {
	platform types.Platform
	endpoint string
	client   *http.Client
}

func NewHTTPPlatformClient(platform types.Platform, endpoint string, client *http.Client) *HTTPPlatformClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPPlatformClient{
		platform: platform,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
	}
}

type publishRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
	VideoURL string `json:"video_url,omitempty"`
}

type publishResponse struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

func (c *HTTPPlatformClient) Publish(ctx context.Context, accessToken string, content types.Content) (string, error) {
	body, err := json.Marshal(publishRequest{Text: content.Text, ImageURL: content.ImageURL, VideoURL: content.VideoURL})
	if err != nil {
		return "", fmt.Errorf("failed to marshal publish request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/posts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", NewTransientError(c.platform, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", NewTransientError(c.platform, err)
	}

	var out publishResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out.ID == "" {
			return "", &PublishError{Kind: types.FailureUnknown, Platform: c.platform, Err: errors.New("response has no post id")}
		}
		return out.ID, nil
	}

	msg := out.Error
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	statusErr := fmt.Errorf("status %d: %s", resp.StatusCode, msg)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", NewAuthFailure(c.platform, statusErr)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", NewTransientError(c.platform, statusErr)
	default:
		return "", NewValidationFailure(c.platform, statusErr)
	}
}
