package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/smart-classroom/presence/internal/attendance"
	"github.com/smart-classroom/presence/internal/config"
	"github.com/smart-classroom/presence/internal/database"
	"github.com/smart-classroom/presence/internal/database/postgres"
	"github.com/smart-classroom/presence/internal/recognizer"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <directory>",
	Short: "Bulk-enroll students from a directory of face photos",
	Long: `Enroll students from a directory of face photos.

Each file must be named <student_id>_<full name>.<ext>, for example:
  S001_Maria Paz.jpg
  S002_Bruno Diaz.png

The face embedding is computed once per photo via the recognition server
and stored with the student. Files whose student_id is already enrolled
are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true,
}

// parseEnrollFilename splits "<student_id>_<name>.<ext>" into its parts.
func parseEnrollFilename(name string) (studentID, fullName string, ok bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	studentID, fullName, ok = strings.Cut(base, "_")
	if !ok || studentID == "" || fullName == "" {
		return "", "", false
	}
	return studentID, fullName, true
}

func runEnroll(cmd *cobra.Command, args []string) error {
	dir := args[0]
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory: %w", err)
	}

	var photos []string
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		photos = append(photos, entry.Name())
	}
	if len(photos) == 0 {
		return fmt.Errorf("no image files found in %s", dir)
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	students := postgres.NewStudentRepository(pool)
	client := recognizer.NewClient(cfg.Recognizer)
	ctx := context.Background()

	bar := progressbar.NewOptions(len(photos),
		progressbar.OptionSetDescription("Enrolling students"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled, skipped, failed int
	var failures []string
	for _, name := range photos {
		bar.Add(1)

		studentID, fullName, ok := parseEnrollFilename(name)
		if !ok {
			failed++
			failures = append(failures, fmt.Sprintf("%s: filename must be <student_id>_<name>.<ext>", name))
			continue
		}

		image, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			failed++
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		if err := recognizer.ValidateImage(image); err != nil {
			failed++
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}

		embedding, err := client.EmbedFace(ctx, image)
		if err != nil {
			failed++
			if errors.Is(err, attendance.ErrFaceNotDetected) {
				failures = append(failures, fmt.Sprintf("%s: no face detected", name))
			} else {
				failures = append(failures, fmt.Sprintf("%s: %v", name, err))
			}
			continue
		}

		_, err = students.Create(ctx, &database.Student{
			StudentID: studentID,
			Name:      fullName,
			Embedding: embedding,
		})
		switch {
		case errors.Is(err, database.ErrDuplicateStudent):
			skipped++
		case err != nil:
			failed++
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
		default:
			enrolled++
		}
	}

	fmt.Printf("\nEnrolled %d students (%d already enrolled, %d failed)\n", enrolled, skipped, failed)
	for _, f := range failures {
		fmt.Printf("  - %s\n", f)
	}
	if failed > 0 {
		return fmt.Errorf("%d photos failed", failed)
	}
	return nil
}
