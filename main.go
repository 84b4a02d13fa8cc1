package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"japanhouse/config"
	"japanhouse/logging"
	"japanhouse/models"
	"japanhouse/scheduler"
	"japanhouse/scraper"
	"japanhouse/storage"
	"japanhouse/workers"
)

var (
	sitesFlag      = flag.String("sites", "", "Comma-separated site ids to scrape (default: all)")
	location       = flag.String("location", "tokyo", "Location to search")
	propertyType   = flag.String("property-type", "rent", "Property type: rent or buy")
	maxPages       = flag.Int("max-pages", 0, "Max result pages per site (0 = config default)")
	maxListings    = flag.Int("max-listings", 0, "Cap retained listings per site (0 = no cap)")
	table          = flag.String("table", "", "Store table name (default: config)")
	updateMode     = flag.Bool("update-mode", true, "Check store for existing listings")
	updateExisting = flag.Bool("update-existing", false, "Rewrite matched duplicates instead of skipping")
	imageQuality   = flag.Bool("enforce-image-quality", false, "Drop listings with no usable images")
	daemon         = flag.Bool("daemon", false, "Run on a schedule instead of once")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("scraper.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting japanhouse scraper...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s)", site.Name, id)
	}

	ctx := context.Background()

	params := models.RunParams{
		Location:            *location,
		PropertyType:        *propertyType,
		MaxPages:            *maxPages,
		MaxListings:         *maxListings,
		Table:               *table,
		UpdateMode:          *updateMode,
		UpdateExisting:      *updateExisting,
		EnforceImageQuality: *imageQuality,
	}
	if params.MaxPages <= 0 {
		params.MaxPages = cfg.Scraper.MaxPages
	}
	if params.Table == "" {
		params.Table = cfg.Storage.Table
	}

	store, cleanup, err := openStore(ctx, cfg, params.Table)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer cleanup()

	history, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open run history: %v", err)
	}
	defer history.Close()
	log.Printf("Run history database: %s", cfg.DBPath)

	orchestrator := scraper.NewOrchestrator(cfg, store, history)

	var archiver *workers.Archiver
	if cfg.Scraper.ArchiveImgs && cfg.S3.Bucket != "" {
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			log.Printf("Warning: image archiver disabled: %v", err)
		} else {
			archiver = workers.NewArchiver(uploader)
			orchestrator.SetArchiver(archiver)
			defer archiver.Stop()
			log.Printf("Image archiver enabled, bucket %s", cfg.S3.Bucket)
		}
	}

	var sites []string
	if *sitesFlag != "" {
		for _, id := range strings.Split(*sitesFlag, ",") {
			if id = strings.TrimSpace(id); id != "" {
				sites = append(sites, id)
			}
		}
	}

	if !*daemon {
		stats, err := orchestrator.RunSites(ctx, sites, params)
		if err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Printf("Scrape complete: %s", stats.ToJSON())
		return
	}

	sched := scheduler.New(cfg, orchestrator, sites, params)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	log.Println("Daemon running. Press Ctrl+C to stop.")

	// First scrape right away; the schedule covers subsequent runs.
	if err := sched.TriggerNow(ctx); err != nil {
		log.Printf("Warning: initial run failed: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// openStore picks the listing sink: direct Postgres when a DB URL is set,
// otherwise the Supabase REST API, otherwise local JSON files.
func openStore(ctx context.Context, cfg *config.Config, tableName string) (storage.Store, func(), error) {
	if cfg.Supabase.DBURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.Supabase.DBURL, tableName)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Supabase.DBURL))
		return pg, pg.Close, nil
	}

	if cfg.Supabase.URL != "" && cfg.Supabase.ServiceKey != "" {
		log.Printf("Using Supabase REST store: %s", cfg.Supabase.URL)
		return storage.NewSupabaseStore(&cfg.Supabase, tableName), func() {}, nil
	}

	log.Printf("No store credentials configured, writing JSON files to %s", cfg.DataDir)
	jf, err := storage.NewJSONFileStore(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return jf, func() {}, nil
}

// maskConnectionString hides the password portion of a connection string
// before it hits the logs.
func maskConnectionString(connStr string) string {
	schemeEnd := strings.Index(connStr, "://")
	if schemeEnd < 0 {
		return connStr
	}
	rest := connStr[schemeEnd+3:]

	atIdx := strings.Index(rest, "@")
	if atIdx < 0 {
		return connStr
	}
	colonIdx := strings.Index(rest[:atIdx], ":")
	if colonIdx < 0 {
		return connStr
	}

	return connStr[:schemeEnd+3] + rest[:colonIdx+1] + "****" + rest[atIdx:]
}
