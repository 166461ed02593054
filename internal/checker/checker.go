// Package checker looks up package names on a crates.io-compatible registry
// and classifies them as available, taken, or unknown.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazz-dev/cratecheck/internal/config"
)

// DefaultTimeout bounds a lookup when no other timeout is configured.
const DefaultTimeout = config.DefaultTimeout

const lookupPath = "/api/v1/crates/"

var (
	// ErrEmptyName is returned when a lookup is requested for an empty name.
	ErrEmptyName = errors.New("package name can't be empty")
	// ErrNegativeTimeout is returned when a lookup is given a negative timeout.
	ErrNegativeTimeout = errors.New("timeout must not be negative")
)

// Client is the subset of *http.Client used for lookups.
type Client interface {
	Do(*http.Request) (*http.Response, error)
}

var _ Client = (*http.Client)(nil)

// Checker issues availability lookups against a single registry. It holds no
// mutable state and is safe for concurrent use.
type Checker struct {
	registry string
	timeout  time.Duration
	client   Client
	logger   *slog.Logger
}

// New returns a Checker for the configured registry using a plain HTTP client.
// Redirects are not followed so that they classify as Unknown. Pass nil logger
// to use the default logger.
func New(reg config.Registry, logger *slog.Logger) (*Checker, error) {
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return NewWithClient(reg, client, logger)
}

// NewWithClient returns a Checker that sends lookups through client.
func NewWithClient(reg config.Registry, client Client, logger *slog.Logger) (*Checker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	base := reg.URL
	if base == "" {
		base = config.DefaultRegistryURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing registry url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("registry url %q must be absolute", base)
	}
	if reg.Timeout.Duration < 0 {
		return nil, ErrNegativeTimeout
	}
	timeout := reg.Timeout.Duration
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		registry: strings.TrimSuffix(u.String(), "/"),
		timeout:  timeout,
		client:   client,
		logger:   logger,
	}, nil
}

// Timeout returns the timeout applied by Check.
func (c *Checker) Timeout() time.Duration {
	return c.timeout
}

// LookupURL returns the registry endpoint queried for name.
func (c *Checker) LookupURL(name string) string {
	return c.registry + lookupPath + escapeSegment(name)
}

// Check looks up name using the checker's configured timeout.
func (c *Checker) Check(ctx context.Context, name string) (Result, error) {
	return c.CheckWithTimeout(ctx, name, c.timeout)
}

// CheckWithTimeout looks up name with a single GET bounded by timeout. A zero
// timeout means the checker's configured timeout.
//
// Only input validation fails with an error. Statuses other than 200 and 404,
// timeouts and transport failures all yield an Unknown result.
func (c *Checker) CheckWithTimeout(ctx context.Context, name string, timeout time.Duration) (Result, error) {
	if name == "" {
		c.logger.Error("rejecting lookup", "error", ErrEmptyName)
		return Result{}, ErrEmptyName
	}
	if timeout < 0 {
		c.logger.Error("rejecting lookup", "name", name, "timeout", timeout, "error", ErrNegativeTimeout)
		return Result{}, ErrNegativeTimeout
	}
	if timeout == 0 {
		timeout = c.timeout
	}

	start := time.Now()
	result := Result{
		Name:      name,
		CheckedAt: start,
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.LookupURL(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		result.Error = fmt.Sprintf("creating request: %v", err)
		result.ResponseTime = time.Since(start)
		return result, nil
	}

	resp, err := c.client.Do(req)
	result.ResponseTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		c.logger.Warn("registry lookup failed", "name", name, "url", target, "error", err)
		return result, nil
	}
	resp.Body.Close()

	result.StatusCode = resp.StatusCode
	result.Availability = Classify(resp.StatusCode)
	c.logger.Debug("registry lookup",
		"name", name,
		"status", resp.StatusCode,
		"availability", result.Availability,
		"response_time", result.ResponseTime,
	)
	return result, nil
}

// Classify maps a registry HTTP status code to an Availability.
func Classify(statusCode int) Availability {
	switch statusCode {
	case http.StatusOK:
		return Unavailable
	case http.StatusNotFound:
		return Available
	default:
		return Unknown
	}
}

// CheckAvailability checks name against crates.io with the default timeout.
func CheckAvailability(ctx context.Context, name string) (Availability, error) {
	return CheckAvailabilityWithTimeout(ctx, name, DefaultTimeout)
}

// CheckAvailabilityWithTimeout checks name against crates.io, giving up after timeout.
func CheckAvailabilityWithTimeout(ctx context.Context, name string, timeout time.Duration) (Availability, error) {
	c, err := New(config.Default().Registry, nil)
	if err != nil {
		return Unknown, err
	}
	r, err := c.CheckWithTimeout(ctx, name, timeout)
	if err != nil {
		return Unknown, err
	}
	return r.Availability, nil
}

// escapeSegment encodes name as exactly one path segment.
func escapeSegment(name string) string {
	if strings.Trim(name, ".") == "" {
		// "." and ".." would otherwise be resolved as relative segments.
		return strings.ReplaceAll(name, ".", "%2E")
	}
	return url.PathEscape(name)
}
