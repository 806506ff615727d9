package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/calebmorten/pwc-deal-tracker/internal/store"
	"github.com/calebmorten/pwc-deal-tracker/internal/sync"
	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// Importer applies a transport-delivered batch to the canonical store.
type Importer interface {
	ImportBatch(ctx context.Context, batch *domain.SyncBatch) (*domain.ImportReport, error)
}

// ImportHandler handles dataset import and export endpoints.
type ImportHandler struct {
	importer Importer
	store    store.Store
	nowFunc  func() time.Time
}

// NewImportHandler creates a new ImportHandler.
func NewImportHandler(imp Importer, s store.Store) *ImportHandler {
	return &ImportHandler{importer: imp, store: s, nowFunc: time.Now}
}

// ImportInput carries a sync payload in the shared transport schema. The
// listing_count field is advisory; the data array is authoritative.
type ImportInput struct {
	Transport string `query:"transport" doc:"Delivering transport label" enum:"blob,cloud_code,qr,live,api,"`
	Body      struct {
		Timestamp    time.Time          `json:"timestamp"     doc:"Export time at the sending device"`
		ListingCount int                `json:"listing_count" doc:"Advisory record count"`
		Data         []domain.RawRecord `json:"data"          doc:"Raw listing records"`
	}
}

// ImportOutput is the per-batch outcome report.
type ImportOutput struct {
	Body domain.ImportReport
}

// Import applies a payload record by record. Invalid records are counted as
// rejected, never aborting the batch.
func (h *ImportHandler) Import(ctx context.Context, input *ImportInput) (*ImportOutput, error) {
	if input.Body.Data == nil {
		return nil, huma.Error422UnprocessableEntity("payload missing data array")
	}

	transport := input.Transport
	if transport == "" {
		transport = "api"
	}

	batch := &domain.SyncBatch{
		SourceTransport: transport,
		ReceivedAt:      h.nowFunc(),
		Records:         input.Body.Data,
	}

	report, err := h.importer.ImportBatch(ctx, batch)
	if err != nil {
		return nil, huma.Error500InternalServerError("import failed: " + err.Error())
	}

	return &ImportOutput{Body: *report}, nil
}

// ExportInput selects what to export.
type ExportInput struct {
	IncludeDuplicates bool `query:"include_duplicates" doc:"Also export duplicate-flagged listings"`
}

// ExportOutput is a full dataset snapshot in the shared transport schema.
type ExportOutput struct {
	Body struct {
		Timestamp    time.Time          `json:"timestamp"`
		ListingCount int                `json:"listing_count"`
		Data         []domain.RawRecord `json:"data"`
	}
}

// Export snapshots the dataset as raw records so any transport (or another
// device) can re-import it. Analysis travels with each record.
func (h *ImportHandler) Export(ctx context.Context, input *ExportInput) (*ExportOutput, error) {
	var listings []domain.Listing
	for offset := 0; ; {
		page, total, err := h.store.ListListings(ctx, &store.ListingQuery{
			IncludeDuplicates: input.IncludeDuplicates,
			Limit:             500,
			Offset:            offset,
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("export query failed: " + err.Error())
		}
		listings = append(listings, page...)
		offset += len(page)
		if len(page) == 0 || offset >= total {
			break
		}
	}

	records := sync.RecordsFromListings(listings)

	resp := &ExportOutput{}
	resp.Body.Timestamp = h.nowFunc().UTC()
	resp.Body.ListingCount = len(records)
	resp.Body.Data = records

	return resp, nil
}

// RegisterImportRoutes registers import/export endpoints with the Huma API.
func RegisterImportRoutes(api huma.API, h *ImportHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "import-payload",
		Method:      http.MethodPost,
		Path:        "/api/v1/import",
		Summary:     "Import a sync payload",
		Description: "Applies a transport payload record by record through deduplication. " +
			"Invalid records are counted as rejected and never abort the batch.",
		Tags:   []string{"sync"},
		Errors: []int{http.StatusUnprocessableEntity, http.StatusInternalServerError},
	}, h.Import)

	huma.Register(api, huma.Operation{
		OperationID: "export-payload",
		Method:      http.MethodGet,
		Path:        "/api/v1/export",
		Summary:     "Export the dataset",
		Description: "Returns the full dataset as a sync payload for transport to another device.",
		Tags:        []string{"sync"},
	}, h.Export)
}
