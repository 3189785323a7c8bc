package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/receipt-ledger/internal/api/middleware"
	"github.com/dvloznov/receipt-ledger/internal/imagestore"
	"github.com/dvloznov/receipt-ledger/internal/jobs"
	"github.com/dvloznov/receipt-ledger/internal/ledger"
	"github.com/dvloznov/receipt-ledger/internal/query"
	"github.com/dvloznov/receipt-ledger/internal/report"
	"github.com/dvloznov/receipt-ledger/internal/store"
)

// maxReceiptUpload caps receipt image uploads at 20 MB.
const maxReceiptUpload = 20 << 20

// ReceiptsHandler handles receipt upload and processing endpoints.
type ReceiptsHandler struct {
	archive   *imagestore.Archive
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewReceiptsHandler creates a new receipts handler.
func NewReceiptsHandler(archive *imagestore.Archive, publisher jobs.Publisher, log zerolog.Logger) *ReceiptsHandler {
	return &ReceiptsHandler{
		archive:   archive,
		publisher: publisher,
		log:       log,
	}
}

// Upload handles POST /api/receipts. The receipt image arrives as the
// multipart field "receipt"; the original image is archived and a
// processing job is enqueued, so the response is 202 with the job id
// rather than the finished purchase.
func (h *ReceiptsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptUpload)
	file, header, err := r.FormFile("receipt")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Multipart field 'receipt' is required")
		return
	}
	defer file.Close()

	imageURI, err := h.archive.UploadReceiptStream(ctx, file, header.Filename)
	if err != nil {
		h.log.Error().Err(err).Str("filename", header.Filename).Msg("Failed to archive receipt image")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to archive receipt image")
		return
	}

	job := &jobs.ProcessReceiptJob{
		ImageURI:   imageURI,
		SourceFile: header.Filename,
	}
	if err := h.publisher.PublishProcessReceipt(ctx, job); err != nil {
		h.log.Error().Err(err).Str("image_uri", imageURI).Msg("Failed to enqueue receipt job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue receipt processing")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("image_uri", imageURI).
		Msg("Receipt processing job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":    job.JobID,
		"image_uri": imageURI,
		"status":    string(job.Status),
	})
}

// PurchasesHandler handles purchase read and delete endpoints.
type PurchasesHandler struct {
	facade *query.Facade
	store  store.Store
	log    zerolog.Logger
}

// NewPurchasesHandler creates a new purchases handler.
func NewPurchasesHandler(facade *query.Facade, s store.Store, log zerolog.Logger) *PurchasesHandler {
	return &PurchasesHandler{
		facade: facade,
		store:  s,
		log:    log,
	}
}

// List handles GET /api/purchases. Optional query parameters merchant,
// category, and start_date+end_date select a filter; the first one
// present wins, matching the facade's dispatch order.
func (h *PurchasesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	filter := query.Filter{
		Merchant:  params.Get("merchant"),
		Category:  params.Get("category"),
		StartDate: params.Get("start_date"),
		EndDate:   params.Get("end_date"),
	}

	for _, d := range []string{filter.StartDate, filter.EndDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Dates must be YYYY-MM-DD")
			return
		}
	}

	purchases := h.facade.Purchases(ctx, filter)
	if purchases == nil {
		purchases = []ledger.Purchase{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"purchases": purchases,
		"count":     len(purchases),
	})
}

// Delete handles DELETE /api/purchases/{id}. Deleting an unknown id
// still returns 204; the end state is the same.
func (h *PurchasesHandler) Delete(w http.ResponseWriter, r *http.Request, purchaseID string) {
	ctx := r.Context()

	if err := h.store.DeletePurchase(ctx, purchaseID); err != nil {
		h.log.Error().Err(err).Str("purchase_id", purchaseID).Msg("Failed to delete purchase")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete purchase")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReportsHandler handles monthly report endpoints.
type ReportsHandler struct {
	generator *report.Generator
	log       zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(generator *report.Generator, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		generator: generator,
		log:       log,
	}
}

// Monthly handles GET /api/reports/monthly?year=2025&month=4. Month is
// required; year defaults to the current year.
func (h *ReportsHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	month, err := strconv.Atoi(params.Get("month"))
	if err != nil || month < 1 || month > 12 {
		middleware.WriteError(w, http.StatusBadRequest, "month must be 1-12")
		return
	}

	year := time.Now().Year()
	if y := params.Get("year"); y != "" {
		year, err = strconv.Atoi(y)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid year")
			return
		}
	}

	text, err := h.generator.Monthly(ctx, year, time.Month(month))
	if err != nil {
		h.log.Error().Err(err).Int("year", year).Int("month", month).Msg("Failed to generate report")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to generate report")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"year":   year,
		"month":  month,
		"report": text,
	})
}

// QueryHandler handles the ad-hoc read-only query endpoint.
type QueryHandler struct {
	store store.Store
	log   zerolog.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(s store.Store, log zerolog.Logger) *QueryHandler {
	return &QueryHandler{
		store: s,
		log:   log,
	}
}

// Execute handles POST /api/query with body {"query": "SELECT ..."}.
// Non-SELECT statements are rejected with 400.
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Query == "" {
		middleware.WriteError(w, http.StatusBadRequest, "query is required")
		return
	}

	rows, err := h.store.ExecuteQuery(ctx, req.Query)
	if err != nil {
		if errors.Is(err, store.ErrQueryNotAllowed) {
			middleware.WriteError(w, http.StatusBadRequest, "Only SELECT queries are allowed")
			return
		}
		h.log.Error().Err(err).Msg("Ad-hoc query failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Query failed")
		return
	}

	if rows == nil {
		rows = []map[string]any{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rows":  rows,
		"count": len(rows),
	})
}

// JobsHandler handles job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := r.URL.Query()
	filter := jobs.JobFilter{
		ImageURI: params.Get("image_uri"),
		Status:   jobs.JobStatus(params.Get("status")),
	}

	if limitStr := params.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := params.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
