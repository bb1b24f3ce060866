package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cutroom-ai/cutroom/internal/api/handlers"
	"github.com/cutroom-ai/cutroom/internal/config"
	"github.com/cutroom-ai/cutroom/internal/database"
	"github.com/cutroom-ai/cutroom/internal/jobs"
	"github.com/cutroom-ai/cutroom/internal/openai"
	"github.com/cutroom-ai/cutroom/internal/repository"
	"github.com/cutroom-ai/cutroom/internal/server"
	"github.com/cutroom-ai/cutroom/internal/service"
	"github.com/cutroom-ai/cutroom/internal/storage"
	"github.com/cutroom-ai/cutroom/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the cutroom API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DatabaseMaxConns,
		MinConns: cfg.DatabaseMinConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	projectRepo := repository.NewProjectRepository(pool)
	segmentRepo := repository.NewSegmentRepository(pool)
	analysisRepo := repository.NewAnalysisRepository(pool)
	analysisJobRepo := repository.NewAnalysisJobRepository(pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var reportStorage service.ReportStorage
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		reportStorage = s3Client
	} else {
		log.Println("S3 not configured, report export disabled")
	}

	var workers []*jobs.Worker

	var evaluator *service.Evaluator
	if cfg.HasOpenAI() {
		embeddingClient := openai.NewClient(cfg.OpenAIAPIKey)
		embeddingSvc := service.NewEmbeddingService(embeddingClient, segmentRepo)
		embeddingProcessor := jobs.NewEmbeddingWorker(embeddingJobRepo, embeddingSvc)
		embeddingWorker := jobs.NewWorker(embeddingProcessor, 10*time.Second)
		go embeddingWorker.Start(ctx)
		workers = append(workers, embeddingWorker)
		log.Println("embedding worker started")

		judge := openai.NewJudge(cfg.OpenAIAPIKey)
		evaluator = service.NewEvaluatorWithConcurrency(
			&JudgeAdapter{judge: judge},
			cfg.CreatorProfile,
			cfg.JudgeConcurrency,
		)
	}

	redundancyCfg := service.RedundancyConfig{
		Enabled:               cfg.RedundancyEnabled,
		JudgeConfigured:       cfg.HasOpenAI(),
		CreatorProfile:        cfg.CreatorProfile,
		AsyncSegmentThreshold: cfg.AsyncSegmentThreshold,

		DefaultSimilarityThreshold: cfg.SimilarityThreshold,
		DefaultMaxGroups:           cfg.MaxGroups,
	}

	redundancySvc := service.NewRedundancyService(
		redundancyCfg,
		projectRepo,
		segmentRepo,
		analysisRepo,
		analysisJobRepo,
		segmentRepo,
		evaluator,
	)

	if evaluator != nil {
		analysisProcessor := jobs.NewAnalysisWorker(analysisJobRepo, redundancySvc, analysisRepo)
		analysisWorker := jobs.NewWorker(analysisProcessor, 5*time.Second)
		go analysisWorker.Start(ctx)
		workers = append(workers, analysisWorker)
		log.Println("analysis worker started")
	}

	projectSvc := service.NewProjectService(projectRepo)
	segmentSvc := service.NewSegmentService(segmentRepo, embeddingJobRepo).WithTxRunner(txRunner)
	reportSvc := service.NewReportService(analysisRepo, projectRepo, reportStorage)

	routerCfg := server.RouterConfig{
		ProjectHandler:    handlers.NewProjectHandler(projectSvc),
		SegmentHandler:    handlers.NewSegmentHandler(segmentSvc),
		RedundancyHandler: handlers.NewRedundancyHandler(redundancySvc, reportSvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	for _, worker := range workers {
		worker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// JudgeAdapter bridges the OpenAI judge to the service-level interface.
type JudgeAdapter struct {
	judge *openai.Judge
}

func (a *JudgeAdapter) JudgeGroup(ctx context.Context, creatorProfile string, candidates []service.JudgeCandidate) (*service.JudgeVerdict, error) {
	judgeCandidates := make([]openai.Candidate, 0, len(candidates))
	for _, c := range candidates {
		judgeCandidates = append(judgeCandidates, openai.Candidate{
			SegmentID:  c.SegmentID,
			Transcript: c.Transcript,
		})
	}

	judgment, err := a.judge.JudgeGroup(ctx, creatorProfile, judgeCandidates)
	if err != nil {
		return nil, err
	}

	verdict := &service.JudgeVerdict{
		Certainty: judgment.Certainty,
		Summary:   judgment.Summary,
	}
	for _, s := range judgment.Candidates {
		verdict.Scores = append(verdict.Scores, service.JudgeScore{
			SegmentID:    s.SegmentID,
			Delivery:     s.Delivery,
			Clarity:      s.Clarity,
			Completeness: s.Completeness,
			Overall:      s.Overall,
			Notes:        s.Notes,
		})
	}

	return verdict, nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
