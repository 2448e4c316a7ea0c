package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rl1809/order-console/internal/core/domain"
	"github.com/rl1809/order-console/internal/port"
)

const (
	defaultTimeout  = 10 * time.Second
	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 64 << 10
)

// Client implements the catalog, order, payment and account facades over the
// REST API. It holds no state besides its collaborators.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     port.TokenSource
	log        logrus.FieldLogger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func NewClient(baseURL string, tokens port.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens: tokens,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ port.CatalogService = (*Client)(nil)
	_ port.OrderService   = (*Client)(nil)
	_ port.PaymentService = (*Client)(nil)
	_ port.AccountService = (*Client)(nil)
)

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", domain.NewTransportFailure(errors.Wrap(err, "load credential"))
	}
	return token, nil
}

// do sends one request. A nil out discards the response body; authRequired
// short-circuits to an unauthorized failure when no credential is held.
func (c *Client) do(ctx context.Context, method, path string, authRequired bool, in, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	if authRequired && token == "" {
		return domain.NewUnauthorizedFailure("no credential held")
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "encode %s %s", method, path)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)

	log := c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"request_id": requestID,
		"has_token":  token != "",
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Debug("request failed without response")
		return domain.NewTransportFailure(errors.Wrapf(err, "%s %s", method, path))
	}
	defer resp.Body.Close()
	log = log.WithField("status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		failure := failureFromResponse(resp)
		log.WithField("kind", failure.Kind.String()).Debug("request rejected")
		return failure
	}
	log.Debug("request succeeded")

	if resp.StatusCode == http.StatusNoContent || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.Failure{
			Kind:    domain.FailureServer,
			Status:  resp.StatusCode,
			Message: "malformed response",
			Err:     errors.Wrapf(err, "decode %s %s", method, path),
		}
	}
	return nil
}

func failureFromResponse(resp *http.Response) *domain.Failure {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	failure := &domain.Failure{
		Kind:    kindForStatus(resp.StatusCode),
		Status:  resp.StatusCode,
		Message: diagnostic(raw),
	}
	if failure.Message == "" {
		failure.Message = http.StatusText(resp.StatusCode)
	}
	return failure
}

func kindForStatus(status int) domain.FailureKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.FailureUnauthorized
	case status == http.StatusNotFound:
		return domain.FailureNotFound
	case status >= 400 && status < 500:
		return domain.FailureValidation
	default:
		return domain.FailureServer
	}
}

// diagnostic extracts the message from a JSON error body, falling back to
// the raw text.
func diagnostic(raw []byte) string {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		for _, msg := range []string{eb.Message, eb.Detail, eb.Error} {
			if msg != "" {
				return msg
			}
		}
	}
	return text
}
