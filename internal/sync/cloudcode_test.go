package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmorten/pwc-deal-tracker/pkg/logger"
)

type failingProvider struct {
	name string
	err  error
}

func (f *failingProvider) Name() string { return f.name }
func (f *failingProvider) Put(context.Context, string, []byte, time.Duration) error {
	return f.err
}
func (f *failingProvider) Get(context.Context, string) ([]byte, error) {
	return nil, f.err
}

func TestCloudCode_UploadDownloadRoundTrip(t *testing.T) {
	t.Parallel()

	mem := NewMemoryProvider()
	cc := NewCloudCode([]Provider{mem}, time.Hour, time.Second, logger.Discard())

	code, err := cc.Upload(t.Context(), []byte(`{"data":[]}`))
	require.NoError(t, err)
	require.NotEmpty(t, code)
	assert.Equal(t, strings.ToUpper(code), code, "codes are shareable uppercase")

	got, err := cc.Download(t.Context(), code)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"data":[]}`), got)
}

func TestCloudCode_FallbackToSecondProvider(t *testing.T) {
	t.Parallel()

	broken := &failingProvider{name: "broken", err: errors.New("service down")}
	mem := NewMemoryProvider()
	cc := NewCloudCode([]Provider{broken, mem}, time.Hour, time.Second, logger.Discard())

	code, err := cc.Upload(t.Context(), []byte("payload"))
	require.NoError(t, err, "second provider should win")

	got, err := cc.Download(t.Context(), code)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}

func TestCloudCode_AllProvidersFail(t *testing.T) {
	t.Parallel()

	cc := NewCloudCode([]Provider{
		&failingProvider{name: "a", err: errors.New("boom a")},
		&failingProvider{name: "b", err: errors.New("boom b")},
	}, time.Hour, time.Second, logger.Discard())

	_, err := cc.Upload(t.Context(), []byte("payload"))
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "cloudcode", terr.Transport)
	assert.Contains(t, err.Error(), "boom a")
	assert.Contains(t, err.Error(), "boom b")
}

func TestCloudCode_DownloadUnknownCode(t *testing.T) {
	t.Parallel()

	cc := NewCloudCode([]Provider{NewMemoryProvider()}, time.Hour, time.Second, logger.Discard())

	_, err := cc.Download(t.Context(), "NOSUCHCODE")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestMemoryProvider_TTLExpiry(t *testing.T) {
	t.Parallel()

	mem := NewMemoryProvider()
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	mem.SetNowFunc(func() time.Time { return now })

	require.NoError(t, mem.Put(t.Context(), "CODE", []byte("x"), 24*time.Hour))

	_, err := mem.Get(t.Context(), "CODE")
	require.NoError(t, err)

	now = now.Add(25 * time.Hour)
	_, err = mem.Get(t.Context(), "CODE")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestHTTPKVProvider(t *testing.T) {
	t.Parallel()

	var mu stdsync.Mutex
	blobs := map[string][]byte{}
	ttls := map[string]string{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimPrefix(r.URL.Path, "/codes/")
		mu.Lock()
		defer mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			body := make([]byte, r.ContentLength)
			r.Body.Read(body) //nolint:errcheck
			blobs[code] = body
			ttls[code] = r.Header.Get("X-TTL-Seconds")
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			b, ok := blobs[code]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(b) //nolint:errcheck
		}
	}))
	defer srv.Close()

	p := NewHTTPKVProvider(srv.URL, 100, 100)

	require.NoError(t, p.Put(t.Context(), "ABC123", []byte("hello"), time.Hour))

	mu.Lock()
	assert.Equal(t, "3600", ttls["ABC123"], "TTL travels as a header")
	mu.Unlock()

	got, err := p.Get(t.Context(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	_, err = p.Get(t.Context(), "MISSING")
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestCloudCode_PerProviderTimeout(t *testing.T) {
	t.Parallel()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer slow.Close()

	slowProvider := NewHTTPKVProvider(slow.URL, 100, 100)
	mem := NewMemoryProvider()
	cc := NewCloudCode([]Provider{slowProvider, mem}, time.Hour, 50*time.Millisecond, logger.Discard())

	start := time.Now()
	code, err := cc.Upload(t.Context(), []byte("payload"))
	require.NoError(t, err, "slow provider times out, memory provider succeeds")
	assert.Less(t, time.Since(start), 2*time.Second)

	got, err := cc.Download(t.Context(), code)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)
}
