package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jorgesolerrr/umet-reports/internal/config"
	"github.com/jorgesolerrr/umet-reports/internal/export"
	"github.com/jorgesolerrr/umet-reports/internal/logger"
	"github.com/jorgesolerrr/umet-reports/internal/pipeline"
	"github.com/jorgesolerrr/umet-reports/internal/providers"
	"github.com/jorgesolerrr/umet-reports/internal/sftpclient"
	"github.com/jorgesolerrr/umet-reports/internal/staging"
)

type options struct {
	lms          string
	keepStaged   bool
	fromSnapshot string
	upload       bool
}

func main() {
	var opts options
	flag.StringVar(&opts.lms, "lms", "", "comma separated LMS names to run (default: all configured)")
	flag.BoolVar(&opts.keepStaged, "keep-staged", false, "do not flush the staging store after rendering")
	flag.StringVar(&opts.fromSnapshot, "from-snapshot", "", "render the workbook from a .json.br snapshot instead of extracting")
	flag.BoolVar(&opts.upload, "sftp", false, "upload the generated workbooks over SFTP")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Medir tiempo total de ejecución
	start := time.Now()

	err := run(ctx, opts)

	log.Printf("Execution finished in %s", time.Since(start))

	if err != nil {
		log.Fatalf("Job failed: %v", err)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(".env.educontrol")
	if err != nil {
		return err
	}
	lg, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer lg.Sync()

	if opts.fromSnapshot != "" {
		return renderSnapshot(ctx, cfg, opts, lg)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if opts.keepStaged {
		cfg.KeepStaged = true
	}
	targets, err := selectLMS(cfg.LMS, opts.lms)
	if err != nil {
		return err
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

	var failed []string
	for _, l := range targets {
		llog := lg.With("lms", l.Name)
		out, err := runLMS(ctx, cfg, l, store, llog)
		if err != nil {
			// sin redis no tiene sentido seguir con el resto
			if errors.Is(err, staging.ErrStoreUnavailable) {
				return fmt.Errorf("lms %s: %w", l.Name, err)
			}
			llog.Error("report failed", "error", err)
			failed = append(failed, l.Name)
			continue
		}
		llog.Info("report written",
			"workbook", out.Workbook,
			"courses", out.Stats.Courses,
			"processed", out.Stats.Processed,
			"rows", len(out.Result.Rows),
			"without_teacher", len(out.Result.WithoutTeacher),
			"with_problems", len(out.Result.WithProblems),
		)
		if opts.upload {
			if err := upload(ctx, cfg, llog, out.Workbook, out.CSV); err != nil {
				llog.Error("upload failed", "error", err)
				failed = append(failed, l.Name)
			}
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d LMS failed: %s", len(failed), len(targets), strings.Join(failed, ", "))
	}
	return nil
}

func runLMS(ctx context.Context, cfg config.Config, l config.LMSConfig, store *staging.Store, lg *logger.Logger) (*pipeline.CourseReportOutput, error) {
	opts, err := pipeline.NewCourseReportOptions(cfg, l)
	if err != nil {
		return nil, err
	}
	factory := providers.MoodleFactory(l.URL, l.Token, providers.WithRetry(l.RetryAttempts))
	runner := &pipeline.Runner{
		Store:      store,
		Extractor:  &pipeline.Extractor{Factory: factory, Workers: cfg.Workers, Log: lg},
		KeepStaged: cfg.KeepStaged,
		Log:        lg,
	}
	return pipeline.RunCourseReport(ctx, runner, store, opts)
}

// renderSnapshot rebuilds the workbook of a previous run, no LMS or Redis needed.
func renderSnapshot(ctx context.Context, cfg config.Config, opts options, lg *logger.Logger) error {
	f, err := os.Open(opts.fromSnapshot)
	if err != nil {
		return err
	}
	defer f.Close()
	snap, err := export.ReadSnapshot(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.ReportDir, 0o755); err != nil {
		return fmt.Errorf("report dir: %w", err)
	}
	path := filepath.Join(cfg.ReportDir, export.CourseReportFileName(snap.LMSName, snap.GeneratedAt, snap.Cut))
	if err := export.WriteCourseWorkbook(path, snap.CourseReport()); err != nil {
		return err
	}
	lg.Info("report rendered from snapshot", "run_id", snap.RunID, "lms", snap.LMSName, "workbook", path)
	if opts.upload {
		return upload(ctx, cfg, lg, path)
	}
	return nil
}

func upload(ctx context.Context, cfg config.Config, lg *logger.Logger, paths ...string) error {
	up := cfg.SFTP()
	if !up.Enabled() {
		lg.Warn("Skipping SFTP upload: missing SFTP_HOST")
		return nil
	}
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := sftpclient.UploadReport(ctx, up, p, lg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// selectLMS filters the configured instances by a comma separated name list.
func selectLMS(all []config.LMSConfig, names string) ([]config.LMSConfig, error) {
	if strings.TrimSpace(names) == "" {
		return all, nil
	}
	byName := make(map[string]config.LMSConfig, len(all))
	for _, l := range all {
		byName[strings.ToLower(l.Name)] = l
	}
	var out []config.LMSConfig
	for _, n := range strings.Split(names, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		l, ok := byName[strings.ToLower(n)]
		if !ok {
			return nil, fmt.Errorf("unknown lms %q", n)
		}
		out = append(out, l)
	}
	return out, nil
}
