package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/receipt-ledger/internal/extract"
	"github.com/dvloznov/receipt-ledger/internal/imagestore"
	"github.com/dvloznov/receipt-ledger/internal/ingest"
	"github.com/dvloznov/receipt-ledger/internal/ledger"
	"github.com/dvloznov/receipt-ledger/internal/logger"
	"github.com/dvloznov/receipt-ledger/internal/query"
	"github.com/dvloznov/receipt-ledger/internal/report"
	"github.com/dvloznov/receipt-ledger/internal/store/sqlite"
	"github.com/dvloznov/receipt-ledger/internal/warehouse"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "process":
		runProcess(log)
	case "add":
		runAdd(log)
	case "list":
		runList(log)
	case "report":
		runReport(log)
	case "query":
		runQuery(log)
	case "delete":
		runDelete(log)
	case "export":
		runExport(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Receipt Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  process   Extract a local receipt image and store the purchase")
	fmt.Println("  add       Add a purchase from a raw JSON document")
	fmt.Println("  list      List stored purchases, optionally filtered")
	fmt.Println("  report    Generate a monthly spending report")
	fmt.Println("  query     Run a read-only SQL query against the ledger")
	fmt.Println("  delete    Delete a purchase by ID")
	fmt.Println("  export    Export purchases to the BigQuery warehouse")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// openStore opens the sqlite-backed ledger at dbPath.
func openStore(dbPath string, log zerolog.Logger) *sqlite.Store {
	s, err := sqlite.Open(dbPath, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open purchase store")
	}
	return s
}

func dbFlag(fs *flag.FlagSet) *string {
	def := os.Getenv("RECEIPT_DB")
	if def == "" {
		def = sqlite.DefaultPath
	}
	return fs.String("db", def, "path to the sqlite database file")
}

func runProcess(log zerolog.Logger) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	dbPath := dbFlag(fs)
	filePath := fs.String("file", "", "path to the receipt image")
	bucket := fs.String("bucket", os.Getenv("GCS_BUCKET"), "GCS bucket for the image archive (skips archiving when empty)")
	model := fs.String("model", os.Getenv("GEMINI_MODEL"), "Gemini model for extraction")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store := openStore(*dbPath, log)
	defer store.Close()

	pipe := ingest.New(extract.NewGeminiExtractor(*model), store)

	if *bucket != "" {
		archive := imagestore.NewArchive(*bucket)
		uri, err := archive.UploadReceipt(ctx, *filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to archive receipt image")
		}
		log.Info().Str("image_uri", uri).Msg("Receipt image archived")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read receipt image")
	}

	purchase, err := pipe.ProcessReceipt(ctx, data, imagestore.MimeTypeForURI(*filePath))
	if err != nil {
		log.Fatal().Err(err).Msg("Receipt processing failed")
	}

	fmt.Printf("Stored purchase %s: %s on %s for %.2f %s\n",
		purchase.ID, purchase.MerchantName, purchase.TransactionDate,
		purchase.TotalAmount, purchase.Currency)
}

func runAdd(log zerolog.Logger) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	dbPath := dbFlag(fs)
	filePath := fs.String("file", "", "path to a JSON receipt document")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read document")
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Fatal().Err(err).Msg("Document is not valid JSON")
	}

	ctx := logger.WithContext(context.Background(), log)

	store := openStore(*dbPath, log)
	defer store.Close()

	purchase, err := ingest.New(nil, store).AddDocument(ctx, doc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add purchase")
	}

	fmt.Printf("Stored purchase %s\n", purchase.ID)
}

func runList(log zerolog.Logger) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := dbFlag(fs)
	merchant := fs.String("merchant", "", "filter by merchant name substring")
	category := fs.String("category", "", "filter by item category substring")
	startDate := fs.String("start-date", "", "range start, YYYY-MM-DD (with --end-date)")
	endDate := fs.String("end-date", "", "range end, YYYY-MM-DD (with --start-date)")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	store := openStore(*dbPath, log)
	defer store.Close()

	purchases := query.New(store).Purchases(ctx, query.Filter{
		Merchant:  *merchant,
		Category:  *category,
		StartDate: *startDate,
		EndDate:   *endDate,
	})

	if len(purchases) == 0 {
		fmt.Println("No purchases found.")
		return
	}

	for _, p := range purchases {
		printPurchase(&p)
	}
	fmt.Printf("\n%d purchase(s)\n", len(purchases))
}

func printPurchase(p *ledger.Purchase) {
	fmt.Printf("\n%s\n", p.ID)
	fmt.Printf("  Merchant: %s\n", p.MerchantName)
	fmt.Printf("  Date:     %s\n", p.TransactionDate)
	fmt.Printf("  Total:    %.2f %s\n", p.TotalAmount, p.Currency)
	if p.PaymentMethod != "" {
		fmt.Printf("  Payment:  %s\n", p.PaymentMethod)
	}
	for _, item := range p.Items {
		fmt.Printf("  - %s x%d @ %.2f (%s)\n", item.Name, item.Quantity, item.Price, item.Category)
	}
	for _, note := range p.Notes {
		fmt.Printf("  note: %s\n", note)
	}
}

func runReport(log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dbPath := dbFlag(fs)
	month := fs.Int("month", 0, "month to report on (1-12)")
	year := fs.Int("year", time.Now().Year(), "year to report on")
	narrate := fs.Bool("narrate", false, "ask the model for a prose write-up")
	model := fs.String("model", os.Getenv("GEMINI_MODEL"), "Gemini model for narration")
	fs.Parse(os.Args[2:])

	if *month < 1 || *month > 12 {
		log.Fatal().Msg("Error: --month must be 1-12")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store := openStore(*dbPath, log)
	defer store.Close()

	var narrator report.Narrator
	if *narrate {
		narrator = report.NewGeminiNarrator(*model)
	}

	text, err := report.New(store, narrator).Monthly(ctx, *year, time.Month(*month))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate report")
	}

	fmt.Println(text)
}

func runQuery(log zerolog.Logger) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	dbPath := dbFlag(fs)
	sqlText := fs.String("sql", "", "SELECT statement to run")
	fs.Parse(os.Args[2:])

	if *sqlText == "" {
		log.Fatal().Msg("Error: --sql is required")
	}

	ctx := logger.WithContext(context.Background(), log)

	store := openStore(*dbPath, log)
	defer store.Close()

	rows, err := store.ExecuteQuery(ctx, *sqlText)
	if err != nil {
		log.Fatal().Err(err).Msg("Query failed")
	}

	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render rows")
	}
	fmt.Println(string(out))
}

func runDelete(log zerolog.Logger) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	dbPath := dbFlag(fs)
	purchaseID := fs.String("id", "", "purchase ID to delete")
	fs.Parse(os.Args[2:])

	if *purchaseID == "" {
		log.Fatal().Msg("Error: --id is required")
	}

	ctx := logger.WithContext(context.Background(), log)

	store := openStore(*dbPath, log)
	defer store.Close()

	if err := store.DeletePurchase(ctx, *purchaseID); err != nil {
		log.Fatal().Err(err).Msg("Delete failed")
	}

	fmt.Printf("Deleted purchase %s\n", *purchaseID)
}

func runExport(log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dbPath := dbFlag(fs)
	project := fs.String("project", os.Getenv("GOOGLE_CLOUD_PROJECT"), "GCP project ID")
	dataset := fs.String("dataset", "receipts", "BigQuery dataset")
	startDate := fs.String("start-date", "", "export range start, YYYY-MM-DD (defaults to everything)")
	endDate := fs.String("end-date", "", "export range end, YYYY-MM-DD")
	fs.Parse(os.Args[2:])

	if *project == "" {
		log.Fatal().Msg("Error: --project is required (or set GOOGLE_CLOUD_PROJECT)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	store := openStore(*dbPath, log)
	defer store.Close()

	var purchases []ledger.Purchase
	if *startDate != "" && *endDate != "" {
		purchases = store.GetPurchasesByDateRange(ctx, *startDate, *endDate)
	} else {
		purchases = store.GetAllPurchases(ctx)
	}

	if len(purchases) == 0 {
		fmt.Println("Nothing to export.")
		return
	}

	exporter := warehouse.NewExporter(*project, *dataset)
	if err := exporter.Export(ctx, purchases); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Exported %d purchase(s) to %s.%s\n", len(purchases), *project, *dataset)
}
