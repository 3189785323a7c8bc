package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/receipt-ledger/internal/api/handlers"
	"github.com/dvloznov/receipt-ledger/internal/api/middleware"
	"github.com/dvloznov/receipt-ledger/internal/extract"
	"github.com/dvloznov/receipt-ledger/internal/imagestore"
	"github.com/dvloznov/receipt-ledger/internal/ingest"
	"github.com/dvloznov/receipt-ledger/internal/jobs"
	"github.com/dvloznov/receipt-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/receipt-ledger/internal/logger"
	"github.com/dvloznov/receipt-ledger/internal/query"
	"github.com/dvloznov/receipt-ledger/internal/report"
	"github.com/dvloznov/receipt-ledger/internal/store/sqlite"
)

func main() {
	var (
		port    = flag.String("port", "8080", "HTTP server port")
		dbPath  = flag.String("db", envOr("RECEIPT_DB", sqlite.DefaultPath), "path to the sqlite database file (or set RECEIPT_DB env)")
		bucket  = flag.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket name for receipt image archive (or set GCS_BUCKET env)")
		model   = flag.String("model", os.Getenv("GEMINI_MODEL"), "Gemini model for receipt extraction (or set GEMINI_MODEL env)")
		workers = flag.Int("workers", 3, "number of concurrent receipt processing workers")
	)
	flag.Parse()

	log := logger.New()

	if *bucket == "" {
		log.Warn().Msg("No GCS bucket configured - receipt uploads will be disabled")
	}

	ctx := logger.WithContext(context.Background(), log)

	purchaseStore, err := sqlite.Open(*dbPath, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", *dbPath).Msg("Failed to open purchase store")
	}
	defer purchaseStore.Close()

	archive := imagestore.NewArchive(*bucket)
	pipeline := ingest.New(extract.NewGeminiExtractor(*model), purchaseStore)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, *workers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		receiptJob, ok := job.(*jobs.ProcessReceiptJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", receiptJob.JobID).
			Str("image_uri", receiptJob.ImageURI).
			Msg("Processing receipt job")

		purchase, err := pipeline.ProcessReceiptURI(ctx, receiptJob.ImageURI)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", receiptJob.JobID).
				Str("image_uri", receiptJob.ImageURI).
				Msg("Receipt processing failed")
			return err
		}

		receiptJob.PurchaseID = purchase.ID
		log.Info().
			Str("job_id", receiptJob.JobID).
			Str("purchase_id", purchase.ID).
			Msg("Receipt processing completed")

		return nil
	}

	go func() {
		log.Info().Int("workers", *workers).Msg("Starting receipt workers")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Receipt workers stopped with error")
		}
	}()

	facade := query.New(purchaseStore)
	reportGen := report.New(purchaseStore, report.NewGeminiNarrator(*model))

	receiptsHandler := handlers.NewReceiptsHandler(archive, jobQueue, log)
	purchasesHandler := handlers.NewPurchasesHandler(facade, purchaseStore, log)
	reportsHandler := handlers.NewReportsHandler(reportGen, log)
	queryHandler := handlers.NewQueryHandler(purchaseStore, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/receipts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			receiptsHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/purchases", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			purchasesHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/purchases/", func(w http.ResponseWriter, r *http.Request) {
		purchaseID := strings.TrimPrefix(r.URL.Path, "/api/purchases/")
		if purchaseID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Purchase ID is required")
			return
		}
		if r.Method == http.MethodDelete {
			purchasesHandler.Delete(w, r, purchaseID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/reports/monthly", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reportsHandler.Monthly(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			queryHandler.Execute(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("db", *dbPath).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
