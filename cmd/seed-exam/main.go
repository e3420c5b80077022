package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-attempt/internal/config"
	"github.com/stemsi/exstem-attempt/internal/database"
	"github.com/stemsi/exstem-attempt/internal/examfile"
	"github.com/stemsi/exstem-attempt/internal/logger"
	"github.com/stemsi/exstem-attempt/internal/repository"
	"github.com/stemsi/exstem-attempt/internal/service"
)

//go:embed sample_exam.json
var sampleExam []byte

var rootCmd = &cobra.Command{
	Use:          "seed-exam [file.json]",
	Short:        "Load an exam file into PostgreSQL and warm its cache",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runSeed,
}

func init() {
	rootCmd.Flags().String("teacher", "", "Owner teacher id (overrides the file's teacher_id)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSeed(cmd *cobra.Command, args []string) error {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	// ─── Read Exam File ────────────────────────────────────────────────
	raw := sampleExam
	source := "built-in sample"
	if len(args) == 1 {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read exam file: %w", err)
		}
		raw, source = b, args[0]
	}

	req, err := examfile.Parse(raw)
	if err != nil {
		return err
	}
	if t, _ := cmd.Flags().GetString("teacher"); t != "" {
		req.TeacherID = t
	}

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	// ─── Create Exam ───────────────────────────────────────────────────
	examService := service.NewExamService(repository.NewExamRepository(pool), rdb, cfg.ExamCacheTTL, log)

	exam, err := examService.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("create exam: %w", err)
	}

	fmt.Printf("Seeded exam %q from %s\n", exam.Title, source)
	fmt.Printf("  id:        %s\n", exam.ID)
	fmt.Printf("  questions: %d\n", len(exam.Questions))
	return nil
}
