package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smart-classroom/presence/internal/attendance"
	"github.com/smart-classroom/presence/internal/config"
	"github.com/smart-classroom/presence/internal/database/postgres"
	"github.com/smart-classroom/presence/internal/recognizer"
	"github.com/smart-classroom/presence/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance server",
	Long: `Start the Presence attendance server.
The server exposes the verification, enrollment, class session, and
emotion analytics API over HTTP.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// initStudentHNSW builds the in-memory HNSW index over enrolled embeddings.
func initStudentHNSW(ctx context.Context, students *postgres.StudentRepository) {
	fmt.Printf("Building in-memory HNSW index for student matching...\n")
	if err := students.EnableHNSW(ctx); err != nil {
		fmt.Printf("Warning: Failed to build student HNSW index: %v\n", err)
		fmt.Printf("Matching will use PostgreSQL queries (slower)\n")
	} else {
		fmt.Printf("Student HNSW index built with %d students (in-memory only)\n", students.HNSWCount())
	}
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (string, int) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return host, port
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	students := postgres.NewStudentRepository(pool)
	records := postgres.NewAttendanceRepository(pool)
	emotions := postgres.NewEmotionRepository(pool)
	sessions := postgres.NewSessionRepository(pool)

	if cfg.Database.HNSWEnabled {
		initStudentHNSW(context.Background(), students)
	}

	client := recognizer.NewClient(cfg.Recognizer)

	ledger := attendance.NewLedger(records)
	resolver := attendance.NewResolver(students, cfg.Attendance.MatchThreshold, cfg.Attendance.MaxCandidates)
	clock := attendance.NewClock(cfg.Attendance.Location(), time.Duration(cfg.Attendance.LateThresholdMinutes)*time.Minute)
	verifier := attendance.NewVerifier(client, resolver, clock, sessions, ledger, recognizer.ValidateImage)
	aggregator := attendance.NewEmotionAggregator(emotions, cfg.Engagement.Positive, cfg.Engagement.Negative)

	host, port := resolveServeHostPort(cmd)

	server := web.NewServer(host, port, web.Engine{
		Verifier:   verifier,
		Ledger:     ledger,
		Aggregator: aggregator,
		Embedder:   client,
		Analyzer:   client,
		Validate:   recognizer.ValidateImage,
	}, web.Stores{
		Students: students,
		Records:  records,
		Emotions: emotions,
		Sessions: sessions,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Presence API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
