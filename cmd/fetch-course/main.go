package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jorgesolerrr/umet-reports/internal/config"
	"github.com/jorgesolerrr/umet-reports/internal/devutil"
	"github.com/jorgesolerrr/umet-reports/internal/logger"
	"github.com/jorgesolerrr/umet-reports/internal/mappers"
	"github.com/jorgesolerrr/umet-reports/internal/providers"
)

const defaultKeys = "shortName,fullName,categoryPath,ofg,students,teachers,counters,openActivities,documents"

func main() {
	var (
		id   = flag.Int("id", 0, "course id")
		lms  = flag.String("lms", "", "LMS name (default: first configured)")
		keys = flag.String("keys", defaultKeys, "comma separated summary fields, dotted paths allowed")
		full = flag.Bool("full", false, "print the whole staged fragment, modules included")
	)
	flag.Parse()

	start := time.Now()

	err := run(*id, *lms, *keys, *full)

	log.Printf("Execution finished in %s", time.Since(start))

	if err != nil {
		log.Fatalf("Job failed: %v", err)
	}
}

func run(id int, lmsName, keys string, full bool) error {
	if id <= 0 {
		return fmt.Errorf("missing -id")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load(".env.educontrol")
	if err != nil {
		return err
	}
	lg, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer lg.Sync()

	l, err := pickLMS(cfg.LMS, lmsName)
	if err != nil {
		return err
	}
	parser, err := mappers.NewParser(mappers.ParseOptions{
		OFGPos:            l.OFGPos,
		AnnouncementNames: l.AnnouncementNames,
		ClassLinkPatterns: l.ClassLinkPatterns,
		Log:               lg.With("lms", l.Name),
	})
	if err != nil {
		return err
	}
	api := providers.MoodleFactory(l.URL, l.Token, providers.WithRetry(l.RetryAttempts))()

	frag, err := parser.BuildCourseSummary(ctx, api, id)
	if err != nil {
		return err
	}
	if frag == nil {
		return fmt.Errorf("course %d not found in %s", id, l.Name)
	}
	return printCourse(os.Stdout, frag, keys, full)
}

func printCourse(w io.Writer, frag any, keys string, full bool) error {
	if full {
		return devutil.Dump(w, frag)
	}
	var ks []string
	for _, k := range strings.Split(keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			ks = append(ks, "summary."+k)
		}
	}
	return devutil.Dump(w, devutil.Pick(frag, ks...))
}

func pickLMS(all []config.LMSConfig, name string) (config.LMSConfig, error) {
	if len(all) == 0 {
		return config.LMSConfig{}, fmt.Errorf("no LMS configured (REPORT_CONFIG_PATH or MOODLE_URL)")
	}
	if name == "" {
		return all[0], nil
	}
	for _, l := range all {
		if strings.EqualFold(l.Name, name) {
			return l, nil
		}
	}
	return config.LMSConfig{}, fmt.Errorf("unknown lms %q", name)
}
