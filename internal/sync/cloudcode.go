package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/calebmorten/pwc-deal-tracker/internal/metrics"
)

// Provider stores and retrieves payloads under short codes.
type Provider interface {
	Name() string
	Put(ctx context.Context, code string, payload []byte, ttl time.Duration) error
	Get(ctx context.Context, code string) ([]byte, error)
}

const (
	defaultCodeTTL         = 24 * time.Hour
	defaultProviderTimeout = 10 * time.Second
)

// CloudCode uploads payloads to an ordered provider list and hands back a
// short-lived code the receiving device redeems. Providers are tried in
// order with a per-provider timeout; the first success wins.
type CloudCode struct {
	providers []Provider
	ttl       time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	codeFunc  func() string
}

// NewCloudCode creates the cloud code transport. Zero ttl and timeout take
// the defaults (24h, 10s).
func NewCloudCode(providers []Provider, ttl, timeout time.Duration, logger *slog.Logger) *CloudCode {
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudCode{
		providers: providers,
		ttl:       ttl,
		timeout:   timeout,
		logger:    logger.With("component", "cloudcode"),
		codeFunc:  newCode,
	}
}

// Upload stores payload with every-provider fallback and returns the code.
func (c *CloudCode) Upload(ctx context.Context, payload []byte) (string, error) {
	if len(c.providers) == 0 {
		return "", &TransportError{Transport: "cloudcode", Op: "upload", Err: errors.New("no providers configured")}
	}

	code := c.codeFunc()
	var errs []error
	for _, p := range c.providers {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		err := p.Put(pctx, code, payload, c.ttl)
		cancel()

		if err == nil {
			metrics.TransportUploadsTotal.WithLabelValues(p.Name(), "success").Inc()
			c.logger.Info("payload uploaded", "provider", p.Name(), "code", code, "bytes", len(payload))
			return code, nil
		}

		metrics.TransportUploadsTotal.WithLabelValues(p.Name(), "error").Inc()
		c.logger.Warn("provider upload failed", "provider", p.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	metrics.TransportFailuresTotal.WithLabelValues("cloudcode").Inc()
	return "", &TransportError{Transport: "cloudcode", Op: "upload", Err: errors.Join(errs...)}
}

// Download redeems a code, trying providers in order. When every provider
// reports the code unknown, the caller sees ErrCodeNotFound.
func (c *CloudCode) Download(ctx context.Context, code string) ([]byte, error) {
	if len(c.providers) == 0 {
		return nil, &TransportError{Transport: "cloudcode", Op: "download", Err: errors.New("no providers configured")}
	}

	var errs []error
	allNotFound := true
	for _, p := range c.providers {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		payload, err := p.Get(pctx, code)
		cancel()

		if err == nil {
			return payload, nil
		}
		if !errors.Is(err, ErrCodeNotFound) {
			allNotFound = false
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	metrics.TransportFailuresTotal.WithLabelValues("cloudcode").Inc()
	if allNotFound {
		return nil, &TransportError{Transport: "cloudcode", Op: "download", Err: ErrCodeNotFound}
	}
	return nil, &TransportError{Transport: "cloudcode", Op: "download", Err: errors.Join(errs...)}
}

// newCode derives a short shareable code. Collisions are irrelevant at this
// scale but the full UUID entropy backs the prefix.
func newCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// HTTPKVProvider is a generic HTTP key-value provider: PUT and GET on
// /codes/{code}. TTL travels as a header; enforcement is server-side.
type HTTPKVProvider struct {
	name    string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPKVProvider creates a provider for baseURL, rate limited to
// ratePerSecond with the given burst.
func NewHTTPKVProvider(baseURL string, ratePerSecond float64, burst int) *HTTPKVProvider {
	name := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		name = u.Host
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &HTTPKVProvider{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
	}
}

// Name returns the provider host for logs and metrics.
func (p *HTTPKVProvider) Name() string { return p.name }

// Put stores payload under code.
func (p *HTTPKVProvider) Put(ctx context.Context, code string, payload []byte, ttl time.Duration) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.codeURL(code), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-TTL-Seconds", strconv.Itoa(int(ttl.Seconds())))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("storing code: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("storing code: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Get retrieves the payload stored under code.
func (p *HTTPKVProvider) Get(ctx context.Context, code string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.codeURL(code), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching code: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, ErrCodeNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, fmt.Errorf("fetching code: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	return body, nil
}

func (p *HTTPKVProvider) codeURL(code string) string {
	return p.baseURL + "/codes/" + url.PathEscape(code)
}

// MemoryProvider holds codes in process memory with TTL enforcement. Used
// in local mode and tests.
type MemoryProvider struct {
	mu      sync.Mutex
	entries map[string]memEntry
	nowFunc func() time.Time
}

type memEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		entries: make(map[string]memEntry),
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the clock; tests only.
func (m *MemoryProvider) SetNowFunc(f func() time.Time) {
	m.nowFunc = f
}

// Name identifies the provider in logs and metrics.
func (m *MemoryProvider) Name() string { return "memory" }

// Put stores payload under code until ttl elapses.
func (m *MemoryProvider) Put(_ context.Context, code string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.entries[code] = memEntry{payload: cp, expiresAt: m.nowFunc().Add(ttl)}
	return nil
}

// Get returns the payload for code, or ErrCodeNotFound when missing or
// expired. Expired entries are dropped on access.
func (m *MemoryProvider) Get(_ context.Context, code string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[code]
	if !ok {
		return nil, ErrCodeNotFound
	}
	if m.nowFunc().After(e.expiresAt) {
		delete(m.entries, code)
		return nil, ErrCodeNotFound
	}

	cp := make([]byte, len(e.payload))
	copy(cp, e.payload)
	return cp, nil
}
