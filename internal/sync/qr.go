package sync

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/google/uuid"
)

const defaultChunkSize = 1800

// Chunk is one QR-sized fragment of a payload. Multi-chunk batches carry a
// shared batch id plus sequence index and count so a scanner can reassemble
// them in any order.
type Chunk struct {
	BatchID string `json:"batch_id"`
	Seq     int    `json:"seq"`
	Count   int    `json:"count"`
	Data    string `json:"data"` // base64 payload segment
}

// ChunkPayload splits payload into QR-sized chunks. chunkSize bounds the
// base64 data per chunk; zero takes the default.
func ChunkPayload(payload []byte, chunkSize int) ([]Chunk, error) {
	if len(payload) == 0 {
		return nil, &TransportError{Transport: "qr", Op: "chunk", Err: fmt.Errorf("empty payload")}
	}
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	encoded := base64.StdEncoding.EncodeToString(payload)
	batchID := uuid.NewString()

	count := (len(encoded) + chunkSize - 1) / chunkSize
	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, len(encoded))
		chunks = append(chunks, Chunk{
			BatchID: batchID,
			Seq:     i,
			Count:   count,
			Data:    encoded[start:end],
		})
	}

	return chunks, nil
}

// EncodeChunk serializes a chunk for embedding in a QR code.
func EncodeChunk(c Chunk) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding chunk: %w", err)
	}
	return b, nil
}

// DecodeChunk parses a scanned chunk.
func DecodeChunk(data []byte) (Chunk, error) {
	var c Chunk
	if err := json.Unmarshal(data, &c); err != nil {
		return Chunk{}, &TransportError{Transport: "qr", Op: "decode", Err: err}
	}
	if c.Count <= 0 || c.Seq < 0 || c.Seq >= c.Count || c.BatchID == "" {
		return Chunk{}, &TransportError{Transport: "qr", Op: "decode", Err: fmt.Errorf("malformed chunk header")}
	}
	return c, nil
}

// RenderPNG renders a chunk as a QR code PNG.
func RenderPNG(c Chunk, size int) ([]byte, error) {
	if size <= 0 {
		size = 512
	}
	data, err := EncodeChunk(c)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(string(data), qrcode.Medium, size)
	if err != nil {
		return nil, &TransportError{Transport: "qr", Op: "render", Err: err}
	}
	return png, nil
}

// Reassembler collects scanned chunks by batch and yields the payload once
// every sequence index of a batch is present. Duplicate scans of the same
// chunk are ignored.
type Reassembler struct {
	batches map[string]*partialBatch
}

type partialBatch struct {
	count  int
	chunks map[int]string
}

// NewReassembler creates an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{batches: make(map[string]*partialBatch)}
}

// Add records one scanned chunk. When the chunk completes its batch, the
// decoded payload is returned with done=true and the batch is discarded.
func (r *Reassembler) Add(c Chunk) (payload []byte, done bool, err error) {
	b, ok := r.batches[c.BatchID]
	if !ok {
		b = &partialBatch{count: c.Count, chunks: make(map[int]string)}
		r.batches[c.BatchID] = b
	}

	if c.Count != b.count {
		return nil, false, &TransportError{
			Transport: "qr", Op: "reassemble",
			Err: fmt.Errorf("chunk count mismatch for batch %s: %d vs %d", c.BatchID, c.Count, b.count),
		}
	}

	b.chunks[c.Seq] = c.Data
	if len(b.chunks) < b.count {
		return nil, false, nil
	}

	var encoded []byte
	for i := 0; i < b.count; i++ {
		seg, ok := b.chunks[i]
		if !ok {
			return nil, false, &TransportError{
				Transport: "qr", Op: "reassemble",
				Err: fmt.Errorf("batch %s missing sequence %d", c.BatchID, i),
			}
		}
		encoded = append(encoded, seg...)
	}
	delete(r.batches, c.BatchID)

	decoded, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, false, &TransportError{Transport: "qr", Op: "reassemble", Err: err}
	}
	return decoded, true, nil
}

// Pending reports how many chunks of a batch are still missing; -1 for an
// unknown batch.
func (r *Reassembler) Pending(batchID string) int {
	b, ok := r.batches[batchID]
	if !ok {
		return -1
	}
	return b.count - len(b.chunks)
}
