package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Endpoint paths served by tokend.
const (
	PathToken      = "/connect/token"
	PathIntrospect = "/connect/introspect"
	PathJWKS       = "/.well-known/jwks.json"
	PathMetadata   = "/.well-known/oauth-authorization-server"
	PathLivez      = "/livez"
	PathReadyz     = "/readyz"
)

// SDKClient talks to a tokend instance.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SDKClient) url(path string) string { return c.BaseURL + path }

func (c *SDKClient) do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("authsdk: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authsdk: %s %s: %w", method, path, err)
	}
	return resp, nil
}

// decodeJSON closes resp and decodes it into target when the status is
// expectedStatus, otherwise it returns an *OAuth2Error.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("authsdk: read body: %w", err)
	}
	if resp.StatusCode != expectedStatus {
		return parseErrorResponse(resp, body)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("authsdk: decode body: %w", err)
	}
	return nil
}

func parseErrorResponse(resp *http.Response, body []byte) error {
	oerr := &OAuth2Error{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, oerr); err != nil || oerr.Code == "" {
		oerr.Code = fallbackCode(resp.StatusCode)
		oerr.Description = strings.TrimSpace(string(body))
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		oerr.RetryAfter = time.Duration(secs) * time.Second
	}
	return oerr
}

func fallbackCode(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return ErrorCodeInvalidToken
	case status == http.StatusServiceUnavailable, status == http.StatusTooManyRequests:
		return ErrorCodeTemporarilyUnavailable
	case status >= 500:
		return ErrorCodeServerError
	default:
		return ErrorCodeInvalidRequest
	}
}
