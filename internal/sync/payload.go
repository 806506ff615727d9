// Package sync implements the offline and realtime transports that move
// listing datasets between devices: blob export/import, short-lived cloud
// codes, chunked QR payloads, and a live websocket session channel. Every
// transport speaks the same JSON payload schema and every import funnels
// through the deduplicator, so replayed or overlapping deliveries are safe.
package sync

import (
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// Payload is the wire schema shared by all transports.
type Payload struct {
	Timestamp    time.Time          `json:"timestamp"`
	ListingCount int                `json:"listing_count"`
	Data         []domain.RawRecord `json:"data"`
}

// EncodePayload serializes records into the shared payload schema.
func EncodePayload(records []domain.RawRecord, now time.Time) ([]byte, error) {
	p := Payload{
		Timestamp:    now.UTC(),
		ListingCount: len(records),
		Data:         records,
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return b, nil
}

// DecodePayload parses a payload, tolerating a stale listing_count (the
// data array is authoritative) but rejecting structural garbage.
func DecodePayload(data []byte) (*Payload, error) {
	p := &Payload{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	if p.Data == nil {
		return nil, fmt.Errorf("decoding payload: missing data array")
	}
	p.ListingCount = len(p.Data)
	return p, nil
}

// RecordsFromListings converts canonical listings back into raw-record form
// for transport. Analysis results travel with the record so the receiving
// side doesn't re-analyze unchanged listings.
func RecordsFromListings(listings []domain.Listing) []domain.RawRecord {
	records := make([]domain.RawRecord, 0, len(listings))
	for _, l := range listings {
		records = append(records, domain.RawRecord{
			URL:        l.CanonicalURL,
			Title:      l.Title,
			RawPrice:   l.RawPriceText,
			Location:   l.Location,
			Seller:     l.Seller,
			Source:     l.Source,
			Photos:     l.Photos,
			CapturedAt: l.UpdatedAt,
			Make:       l.Make,
			Model:      l.Model,
			Year:       l.Year,
			Analysis:   l.Analysis,
		})
	}
	return records
}

// ExportListings serializes canonical listings into the shared payload
// schema.
func ExportListings(listings []domain.Listing, now time.Time) ([]byte, error) {
	return EncodePayload(RecordsFromListings(listings), now)
}

// ImportPayload decodes a payload into a SyncBatch tagged with the
// delivering transport.
func ImportPayload(data []byte, transport string, now time.Time) (*domain.SyncBatch, error) {
	p, err := DecodePayload(data)
	if err != nil {
		return nil, &TransportError{Transport: transport, Op: "import", Err: err}
	}
	return &domain.SyncBatch{
		SourceTransport: transport,
		ReceivedAt:      now,
		Records:         p.Data,
	}, nil
}
