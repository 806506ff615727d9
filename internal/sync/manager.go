package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/calebmorten/pwc-deal-tracker/internal/config"
	"github.com/calebmorten/pwc-deal-tracker/internal/store"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// Transport moves an encoded dataset payload between devices. Deliver
// returns a transport-specific reference the receiving side redeems with
// Fetch: a file path for blob, a short-lived code for cloud codes, a chunk
// directory for qr.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, payload []byte) (ref string, err error)
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// ListingSource provides the canonical dataset for export.
type ListingSource interface {
	ListListings(ctx context.Context, opts *store.ListingQuery) ([]domain.Listing, int, error)
}

// Importer applies a decoded batch behind the deduplicator.
type Importer interface {
	ImportBatch(ctx context.Context, batch *domain.SyncBatch) (*domain.ImportReport, error)
}

// Manager owns the configured transports and connects them to the import
// pipeline: Push exports the dataset through a transport, Pull redeems a
// reference and funnels the decoded records through the deduplicator, and
// RunLive keeps a relay session open doing both continuously.
type Manager struct {
	source     ListingSource
	importer   Importer
	transports map[string]Transport
	live       config.LiveConfig
	logger     *slog.Logger
	nowFunc    func() time.Time
}

// NewManager builds the transports described by cfg and wires them to the
// given dataset source and importer.
func NewManager(src ListingSource, imp Importer, cfg config.SyncConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	providers := make([]Provider, 0, len(cfg.CloudCode.Providers))
	for _, u := range cfg.CloudCode.Providers {
		providers = append(providers, NewHTTPKVProvider(u, cfg.CloudCode.RatePerSecond, cfg.CloudCode.Burst))
	}

	return &Manager{
		source:   src,
		importer: imp,
		transports: map[string]Transport{
			"blob":       &blobTransport{path: cfg.Blob.Path},
			"cloud_code": &codeTransport{cc: NewCloudCode(providers, cfg.CloudCode.TTL, cfg.CloudCode.Timeout, logger)},
			"qr":         &qrTransport{chunkSize: cfg.QR.ChunkSize, dir: cfg.QR.Dir},
		},
		live:    cfg.Live,
		logger:  logger.With("component", "syncmgr"),
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the clock; tests only.
func (m *Manager) SetNowFunc(f func() time.Time) {
	m.nowFunc = f
}

// Transport returns the named transport, or an error listing the valid
// names.
func (m *Manager) Transport(name string) (Transport, error) {
	t, ok := m.transports[name]
	if !ok {
		names := make([]string, 0, len(m.transports))
		for n := range m.transports {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown transport %q (have %s)", name, strings.Join(names, ", "))
	}
	return t, nil
}

// Push exports the dataset through the named transport and returns the
// reference the receiving device redeems.
func (m *Manager) Push(ctx context.Context, via string, includeDuplicates bool) (string, error) {
	t, err := m.Transport(via)
	if err != nil {
		return "", err
	}

	records, err := m.exportRecords(ctx, includeDuplicates)
	if err != nil {
		return "", err
	}
	payload, err := EncodePayload(records, m.nowFunc())
	if err != nil {
		return "", err
	}

	ref, err := t.Deliver(ctx, payload)
	if err != nil {
		return "", err
	}

	m.logger.Info("dataset pushed",
		"transport", t.Name(), "records", len(records), "bytes", len(payload), "ref", ref)
	return ref, nil
}

// Pull redeems a reference through the named transport and imports the
// decoded records. Replays are safe: every record goes through the
// deduplicator.
func (m *Manager) Pull(ctx context.Context, via, ref string) (*domain.ImportReport, error) {
	t, err := m.Transport(via)
	if err != nil {
		return nil, err
	}

	payload, err := t.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	batch, err := ImportPayload(payload, t.Name(), m.nowFunc())
	if err != nil {
		return nil, err
	}

	report, err := m.importer.ImportBatch(ctx, batch)
	if err != nil {
		return nil, err
	}

	m.logger.Info("dataset pulled",
		"transport", t.Name(),
		"added", report.Added, "merged", report.Merged,
		"conflicted", report.Conflicted, "rejected", report.Rejected)
	return report, nil
}

// RunLive joins a relay session and keeps it open: the local dataset is sent
// once on connect, and every inbound record batch funnels through the
// deduplicator. Returns when ctx is cancelled or the channel drops.
func (m *Manager) RunLive(ctx context.Context, sessionID string) error {
	if m.live.RelayURL == "" {
		return errors.New("sync.live.relay_url is not configured")
	}

	handler := func(ctx context.Context, records []domain.RawRecord) error {
		batch := &domain.SyncBatch{
			SourceTransport: "live",
			ReceivedAt:      m.nowFunc(),
			Records:         records,
		}
		report, err := m.importer.ImportBatch(ctx, batch)
		if err != nil {
			return err
		}
		m.logger.Info("live batch applied",
			"added", report.Added, "merged", report.Merged,
			"conflicted", report.Conflicted, "rejected", report.Rejected)
		return nil
	}

	sess, err := DialSession(ctx, m.live.RelayURL, sessionID, handler, m.live.PingInterval, m.logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	records, err := m.exportRecords(ctx, false)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		if err := sess.Send(records); err != nil {
			return err
		}
	}

	return sess.Run(ctx)
}

func (m *Manager) exportRecords(ctx context.Context, includeDuplicates bool) ([]domain.RawRecord, error) {
	var listings []domain.Listing
	for offset := 0; ; {
		page, total, err := m.source.ListListings(ctx, &store.ListingQuery{
			IncludeDuplicates: includeDuplicates,
			Limit:             500,
			Offset:            offset,
		})
		if err != nil {
			return nil, fmt.Errorf("listing dataset for export: %w", err)
		}
		listings = append(listings, page...)
		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}
	return RecordsFromListings(listings), nil
}

// blobTransport moves the dataset as a single local file. Deliver writes the
// configured path; Fetch reads a given path, falling back to the configured
// one.
type blobTransport struct {
	path string
}

func (b *blobTransport) Name() string { return "blob" }

func (b *blobTransport) Deliver(_ context.Context, payload []byte) (string, error) {
	if err := NewBlobStore(b.path).Write(payload); err != nil {
		return "", err
	}
	return b.path, nil
}

func (b *blobTransport) Fetch(_ context.Context, ref string) ([]byte, error) {
	path := ref
	if path == "" {
		path = b.path
	}
	return NewBlobStore(path).Read()
}

// codeTransport moves the dataset through short-lived cloud codes.
type codeTransport struct {
	cc *CloudCode
}

func (c *codeTransport) Name() string { return "cloud_code" }

func (c *codeTransport) Deliver(ctx context.Context, payload []byte) (string, error) {
	return c.cc.Upload(ctx, payload)
}

func (c *codeTransport) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, &TransportError{Transport: "cloud_code", Op: "download", Err: errors.New("a code is required")}
	}
	return c.cc.Download(ctx, ref)
}

// qrTransport moves the dataset as chunked QR codes. Deliver renders one PNG
// per chunk into the directory alongside the encoded chunk JSON; Fetch
// reassembles a directory of decoded chunk files written by a scanner.
type qrTransport struct {
	chunkSize int
	dir       string
}

func (q *qrTransport) Name() string { return "qr" }

func (q *qrTransport) Deliver(_ context.Context, payload []byte) (string, error) {
	chunks, err := ChunkPayload(payload, q.chunkSize)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(q.dir, 0o750); err != nil {
		return "", &TransportError{Transport: "qr", Op: "deliver", Err: err}
	}

	for _, c := range chunks {
		encoded, err := EncodeChunk(c)
		if err != nil {
			return "", err
		}
		png, err := RenderPNG(c, 0)
		if err != nil {
			return "", err
		}

		base := filepath.Join(q.dir, fmt.Sprintf("chunk-%03d", c.Seq))
		if err := os.WriteFile(base+".png", png, 0o600); err != nil {
			return "", &TransportError{Transport: "qr", Op: "deliver", Err: err}
		}
		if err := os.WriteFile(base+".json", encoded, 0o600); err != nil {
			return "", &TransportError{Transport: "qr", Op: "deliver", Err: err}
		}
	}

	return q.dir, nil
}

func (q *qrTransport) Fetch(_ context.Context, ref string) ([]byte, error) {
	dir := ref
	if dir == "" {
		dir = q.dir
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &TransportError{Transport: "qr", Op: "fetch", Err: err}
	}

	r := NewReassembler()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name())) //nolint:gosec // path from trusted config/flag
		if err != nil {
			return nil, &TransportError{Transport: "qr", Op: "fetch", Err: err}
		}
		chunk, err := DecodeChunk(data)
		if err != nil {
			return nil, err
		}
		payload, done, err := r.Add(chunk)
		if err != nil {
			return nil, err
		}
		if done {
			return payload, nil
		}
	}

	return nil, &TransportError{
		Transport: "qr", Op: "fetch",
		Err: fmt.Errorf("incomplete chunk set in %s", dir),
	}
}
