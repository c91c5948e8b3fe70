package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/rpupo63/metadata-catalog/api"
	"github.com/rpupo63/metadata-catalog/catalog"
	"github.com/rpupo63/metadata-catalog/config"
	"github.com/rpupo63/metadata-catalog/connectors"
	"github.com/rpupo63/metadata-catalog/connectors/example"
	"github.com/rpupo63/metadata-catalog/connectors/s3dump"
	"github.com/rpupo63/metadata-catalog/database"
	"github.com/rpupo63/metadata-catalog/models"
	"github.com/rpupo63/metadata-catalog/services"
)

func main() {
	fmt.Println("Initializing app...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: Error loading .env file: %v\n", err)
	}
	c := config.New()

	dbType := config.GetString(c, "DB_TYPE", "postgres")
	fmt.Printf("DB_TYPE: %s\n", dbType)

	// Build connection string based on DB_TYPE
	var connStr string
	switch dbType {
	case "supa", "postgres":
		sslMode := config.GetString(c, "DB_SSLMODE", "disable")
		if dbType == "supa" {
			sslMode = "require"
		}
		connStr = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			config.GetString(c, "DB_HOST", "localhost"),
			config.GetString(c, "DB_USER", ""),
			config.GetString(c, "DB_PASSWORD", ""),
			config.GetString(c, "DB_NAME", ""),
			config.GetString(c, "DB_PORT", "5432"),
			sslMode,
		)
		fmt.Printf("Connecting to %s database...\n", dbType)
	default:
		fmt.Println("Unsupported DB_TYPE. Exiting...")
		os.Exit(1)
	}

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             10 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := database.Open(database.OpenConfig{
		DSN:        connStr,
		ReplicaDSN: config.GetString(c, "DB_REPLICA_DSN", ""),
		Logger:     newLogger,
	})
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}

	// If generating column mismatch report, run report and exit
	if config.GetBool(c, "GENERATE_COLUMN_REPORT", false) {
		fmt.Println("Generating column mismatch report...")
		report, err := models.ColumnMismatchReport(db)
		if err != nil {
			fmt.Printf("Error generating column report: %v\n", err)
			os.Exit(1)
		}
		models.PrintColumnMismatchReport(os.Stdout, report)
		return
	}

	registry, err := models.NewRegistry()
	if err != nil {
		fmt.Printf("Error building resource registry: %v\n", err)
		os.Exit(1)
	}

	currentDB, err := database.New(db, registry, database.Config{
		MaxPageLimit:  config.GetInt(c, "MAX_PAGE_LIMIT", 1000),
		NestingDepth:  config.GetInt(c, "NESTING_DEPTH", 1),
		NamedCacheTTL: config.GetDuration(c, "NAMED_CACHE_TTL", 10*time.Minute),
	})
	if err != nil {
		fmt.Printf("Error initializing database: %v\n", err)
		os.Exit(1)
	}

	if err := currentDB.Migrate(context.Background()); err != nil {
		fmt.Printf("Error migrating database: %v\n", err)
		os.Exit(1)
	}

	connectorRegistry, err := loadConnectors(c, registry.Descriptors())
	if err != nil {
		fmt.Printf("Error configuring connectors: %v\n", err)
		os.Exit(1)
	}

	metrics := services.NewMetrics(prometheus.DefaultRegisterer)
	ingestor := services.NewIngestor(currentDB, connectorRegistry, metrics, config.GetInt(c, "SYNC_PARALLELISM", 2))

	var scheduler *services.Scheduler
	if schedule := config.GetString(c, "SYNC_SCHEDULE", ""); schedule != "" && connectorRegistry.Len() > 0 {
		scheduler, err = services.NewScheduler(ingestor, schedule, config.GetDuration(c, "SYNC_TIMEOUT", time.Hour))
		if err != nil {
			fmt.Printf("Error scheduling synchronisation: %v\n", err)
			os.Exit(1)
		}
		scheduler.Start()
		zlog.Info().Str("schedule", schedule).Time("next", scheduler.Next()).Msg("Synchronisation scheduled")
	}

	// buffered for both senders, never closed
	errChannel := make(chan error, 2)

	server := api.NewServer(c, currentDB, api.WithIngestor(ingestor))

	go server.Start(errChannel)

	// Listen for interrupt signals to gracefully shutdown the server
	go listenToInterrupt(errChannel)

	fatalErr := <-errChannel
	fmt.Printf("Closing server: %v\n", fatalErr)

	server.ShutdownGracefully(30 * time.Second)

	if scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := scheduler.Stop(ctx); err != nil {
			zlog.Error().Err(err).Msg("Synchronisation still running at shutdown")
		}
	}
}

// loadConnectors configures the example connector when EXAMPLE_CONNECTOR_DIR is set and the
// S3 dump connector when S3_BUCKET is set.
func loadConnectors(c map[string]string, descriptors []*catalog.Descriptor) (*connectors.Registry, error) {
	registry := connectors.NewRegistry()

	if dir := config.GetString(c, "EXAMPLE_CONNECTOR_DIR", ""); dir != "" {
		resources := make([]string, 0, len(descriptors))
		for _, d := range descriptors {
			resources = append(resources, d.Name)
		}
		found, err := example.Discover(os.DirFS(dir), resources)
		if err != nil {
			return nil, err
		}
		for _, connector := range found {
			registry.Add(connector)
		}
	}

	if bucket := config.GetString(c, "S3_BUCKET", ""); bucket != "" {
		client, err := s3dump.NewClient(
			context.Background(),
			config.GetString(c, "S3_REGION", "eu-west-1"),
			config.GetString(c, "S3_ENDPOINT", ""),
		)
		if err != nil {
			return nil, err
		}
		registry.Add(s3dump.New(client, s3dump.Config{
			Bucket:   bucket,
			Prefix:   config.GetString(c, "S3_PREFIX", ""),
			Platform: config.GetString(c, "S3_PLATFORM", "zenodo"),
			Resource: config.GetString(c, "S3_RESOURCE", models.DatasetName),
		}))
	}

	for _, connector := range registry.All() {
		zlog.Info().
			Str("platform", connector.Platform()).
			Str("resource", connector.Resource()).
			Msg("Connector configured")
	}
	return registry, nil
}

// listenToInterrupt waits for SIGINT or SIGTERM and then sends an error to the error channel.
func listenToInterrupt(errChannel chan<- error) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	errChannel <- fmt.Errorf("%s", <-c)
}
