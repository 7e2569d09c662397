package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/vitphire/flow-peacock/internal/logging"
	"github.com/vitphire/flow-peacock/internal/official"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// UserAgent mimics the game client; the official backend rejects unknown agents.
const UserAgent = "G2 Http/1.0 (Windows NT 10.0; DX12/1; d3d12/1)"

// readBody reads at most limit bytes of an official response. A limit of
// zero or less reads everything.
func readBody(r io.Reader, endpoint string, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, &official.TooLargeError{Endpoint: endpoint, Limit: limit}
	}
	return data, nil
}

// NewHTTPClient builds the HTTP client shared by every session. The cookie
// jar keeps the load-balancer affinity cookies the backend hands out.
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &http.Client{Timeout: timeout, Jar: jar}, nil
}

// Client issues authenticated requests against the official backend.
type Client struct {
	http             *http.Client
	accessToken      string
	maxResponseBytes int64
	logger           *zap.Logger
}

// NewClient creates a client for one access token.
func NewClient(httpClient *http.Client, accessToken string, maxResponseBytes int64, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger = logging.OrNop(logger)
	return &Client{
		http:             httpClient,
		accessToken:      accessToken,
		maxResponseBytes: maxResponseBytes,
		logger:           logger,
	}
}

// PrepareRequest adds the headers the official backend expects.
func PrepareRequest(req *http.Request, accessToken string) {
	req.Header.Set("Authorization", "bearer "+accessToken)
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
}

// Call performs a request against endpoint. With useGet the body is ignored;
// otherwise body is JSON-encoded (nil sends an empty object). Non-success
// statuses are not errors here; callers inspect Response.Status.
func (c *Client) Call(ctx context.Context, endpoint string, useGet bool, body any) (*official.Response, error) {
	method := http.MethodPost
	var reader io.Reader
	if useGet {
		method = http.MethodGet
	} else {
		payload := []byte("{}")
		if body != nil {
			var err error
			payload, err = json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request body: %w", err)
			}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	PrepareRequest(req, c.accessToken)
	if !useGet {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Official request failed", zap.String("method", method), zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp.Body, endpoint, c.maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	c.logger.Debug("Official request",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)))

	return &official.Response{Status: resp.StatusCode, Data: data}, nil
}
