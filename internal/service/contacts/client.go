package contacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	applog "github.com/janisto/wa-photo-proxy/internal/platform/logging"
)

const (
	// DefaultTimeout bounds one upstream call end to end.
	DefaultTimeout = 10 * time.Second

	acceptHeader = "application/json"
	maxBodyBytes = 1 << 20
	// logSnippetBytes caps how much of an unexpected body is logged.
	logSnippetBytes = 256
)

// Client implements Service against the upstream contact lookup REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the upstream root, e.g. https://api.example/instance-id.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a contact lookup client. A nil httpClient uses http.DefaultClient.
func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient: httpClient,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type upstreamContact struct {
	Profile *struct {
		Image json.RawMessage `json:"image"`
	} `json:"profile"`
}

// GetContact fetches GET <base>/contacts/{phone}. No retries are attempted.
func (c *Client) GetContact(ctx context.Context, phone string) (*Contact, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + "/contacts/" + url.PathEscape(phone)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &UpstreamError{Kind: UpstreamErrorKindTransport, cause: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UpstreamError{Kind: UpstreamErrorKindTransport, cause: fmt.Errorf("fetching contact: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		applog.LogWarn(ctx, "contact lookup returned unexpected status", zap.Int("status", resp.StatusCode))
		return nil, &UpstreamError{Kind: UpstreamErrorKindStatus, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &UpstreamError{
			Kind:   UpstreamErrorKindTransport,
			Status: resp.StatusCode,
			cause:  fmt.Errorf("reading contact body: %w", err),
		}
	}
	applog.LogDebug(ctx, "contact lookup raw response", zap.Int("bytes", len(body)), zap.String("body", snippet(body)))

	trimmed := bytes.TrimSpace(body)
	if !bytes.HasPrefix(trimmed, []byte("{")) && !bytes.HasPrefix(trimmed, []byte("[")) {
		applog.LogWarn(ctx, "contact lookup response is not JSON",
			zap.Int("status", resp.StatusCode),
			zap.String("body", snippet(trimmed)),
		)
		return nil, &UpstreamError{Kind: UpstreamErrorKindNotJSON, Status: resp.StatusCode}
	}

	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		applog.LogWarn(ctx, "contact lookup response failed to parse", zap.Error(err))
		return nil, &UpstreamError{
			Kind:   UpstreamErrorKindDecode,
			Status: resp.StatusCode,
			cause:  fmt.Errorf("decoding contact: %w", err),
		}
	}

	return &Contact{Phone: phone, ProfileImage: profileImage(trimmed)}, nil
}

// profileImage extracts profile.image when the document is an object whose
// profile is an object holding a string image. Any other shape yields "".
func profileImage(doc []byte) string {
	var uc upstreamContact
	if err := json.Unmarshal(doc, &uc); err != nil || uc.Profile == nil {
		return ""
	}
	var image string
	if err := json.Unmarshal(uc.Profile.Image, &image); err != nil {
		return ""
	}
	return image
}

func snippet(b []byte) string {
	if len(b) > logSnippetBytes {
		return string(b[:logSnippetBytes]) + "..."
	}
	return string(b)
}

// Compile-time interface check
var _ Service = (*Client)(nil)
