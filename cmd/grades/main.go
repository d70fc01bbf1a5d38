package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jorgesolerrr/umet-reports/internal/config"
	"github.com/jorgesolerrr/umet-reports/internal/logger"
	"github.com/jorgesolerrr/umet-reports/internal/pipeline"
	"github.com/jorgesolerrr/umet-reports/internal/providers"
	"github.com/jorgesolerrr/umet-reports/internal/sftpclient"
	"github.com/jorgesolerrr/umet-reports/internal/staging"
)

func main() {
	var (
		patterns   = flag.String("patterns", "", "comma separated course search patterns (overrides COURSE_PATTERNS)")
		keepStaged = flag.Bool("keep-staged", false, "do not flush the staging store after rendering")
		upload     = flag.Bool("sftp", false, "upload the workbook over SFTP")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()

	err := run(ctx, *patterns, *keepStaged, *upload)

	log.Printf("Execution finished in %s", time.Since(start))

	if err != nil {
		log.Fatalf("Job failed: %v", err)
	}
}

func run(ctx context.Context, patterns string, keepStaged, upload bool) error {
	cfg, err := config.Load(".env.grades")
	if err != nil {
		return err
	}
	cfg = applyFlags(cfg, patterns, keepStaged)

	lg, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer lg.Sync()

	if err := cfg.ValidateGrades(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	store, err := staging.Connect(ctx, staging.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Log:      lg,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	glog := lg.With("lms", cfg.Grades.Name)
	runner := &pipeline.Runner{
		Store: store,
		Extractor: &pipeline.Extractor{
			Factory: providers.MoodleFactory(cfg.Grades.URL, cfg.Grades.Token, nil),
			Workers: cfg.Workers,
			Log:     glog,
		},
		KeepStaged: cfg.KeepStaged,
		Log:        glog,
	}
	out, err := pipeline.RunGradesReport(ctx, runner, store, pipeline.NewGradesReportOptions(cfg))
	if err != nil {
		return err
	}
	glog.Info("grades report written",
		"workbook", out.Workbook,
		"courses", out.Stats.Courses,
		"rows", len(out.Result.Rows),
		"cuts", out.Result.MaxCuts,
		"with_problems", len(out.Result.WithProblems),
	)

	if !upload {
		return nil
	}
	up := cfg.SFTP()
	if !up.Enabled() {
		glog.Warn("Skipping SFTP upload: missing SFTP_HOST")
		return nil
	}
	return sftpclient.UploadReport(ctx, up, out.Workbook, glog)
}

// applyFlags lets the command line override the loaded config.
func applyFlags(cfg config.Config, patterns string, keepStaged bool) config.Config {
	if p := splitList(patterns); len(p) > 0 {
		cfg.Grades.Patterns = p
	}
	if keepStaged {
		cfg.KeepStaged = true
	}
	return cfg
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
