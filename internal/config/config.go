package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jorgesolerrr/umet-reports/internal/mappers"
	"github.com/jorgesolerrr/umet-reports/internal/report"
	"github.com/jorgesolerrr/umet-reports/internal/sftpclient"
)

type Config struct {
	LogMode  string
	LogLevel string

	// Redis (staging)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Workers    int
	ReportDir  string
	KeepStaged bool
	WriteCSV   bool
	WriteSnap  bool

	// SFTP
	SFTPHost                  string
	SFTPPort                  int
	SFTPUser                  string
	SFTPPass                  string
	SFTPDir                   string
	SFTPInsecureIgnoreHostKey bool
	SFTPKnownHosts            string

	LMS    []LMSConfig
	Grades GradesConfig
}

// LMSConfig is one Moodle instance of the course report.
type LMSConfig struct {
	Name              string                 `yaml:"name"`
	URL               string                 `yaml:"url"`
	Token             string                 `yaml:"token"`
	Periods           []string               `yaml:"periods"`
	CurrentCut        int                    `yaml:"current_cut"`
	OFGPos            int                    `yaml:"ofg_pos"`
	Layout            string                 `yaml:"layout"`
	Thresholds        map[string]map[int]int `yaml:"thresholds"`
	ApprovalTypes     []string               `yaml:"approval_types"`
	SummaryDimensions []string               `yaml:"summary_dimensions"`
	ClassLinkPatterns []string               `yaml:"class_link_patterns"`
	AnnouncementNames []string               `yaml:"announcement_names"`
	RetryAttempts     int                    `yaml:"retry_attempts"`
}

// GradesConfig drives cmd/grades.
type GradesConfig struct {
	Name           string   `yaml:"name"`
	URL            string   `yaml:"url"`
	Token          string   `yaml:"token"`
	Patterns       []string `yaml:"patterns"`
	OFGPos         int      `yaml:"ofg_pos"`
	PeriodPosition int      `yaml:"period_position"`
}

type fileConfig struct {
	LMS    []LMSConfig   `yaml:"lms"`
	Grades *GradesConfig `yaml:"grades"`
}

// Load reads the dotenv file (ENV_FILE, else defaultEnvFile when present),
// then the environment, then the optional YAML at REPORT_CONFIG_PATH.
func Load(defaultEnvFile string) (Config, error) {
	if err := loadEnvFile(defaultEnvFile); err != nil {
		return Config{}, err
	}

	cfg := Config{
		LogMode:  getenv("LOG_MODE", "prod"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getenvInt("REDIS_DB", 0),

		Workers:    getenvInt("WORKERS", 10),
		ReportDir:  getenv("REPORT_DIR", "."),
		KeepStaged: getenvBool("KEEP_STAGED", false),
		WriteCSV:   getenvBool("WRITE_CSV", false),
		WriteSnap:  getenvBool("WRITE_SNAPSHOT", false),

		SFTPHost:                  os.Getenv("SFTP_HOST"),
		SFTPPort:                  getenvInt("SFTP_PORT", 22),
		SFTPUser:                  os.Getenv("SFTP_USER"),
		SFTPPass:                  os.Getenv("SFTP_PASS"),
		SFTPDir:                   getenv("SFTP_DIR", "/inbound"),
		SFTPInsecureIgnoreHostKey: getenvBool("SFTP_INSECURE_IGNORE_HOSTKEY", true),
		SFTPKnownHosts:            os.Getenv("SFTP_KNOWN_HOSTS"),

		Grades: gradesFromEnv(),
	}

	if p := os.Getenv("REPORT_CONFIG_PATH"); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", p, err)
		}
		fc, err := parseFile(b)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", p, err)
		}
		cfg.LMS = fc.LMS
		if fc.Grades != nil {
			cfg.Grades = mergeGrades(cfg.Grades, *fc.Grades)
		}
	}
	if len(cfg.LMS) == 0 && os.Getenv("MOODLE_URL") != "" {
		cfg.LMS = []LMSConfig{lmsFromEnv()}
	}
	for i := range cfg.LMS {
		cfg.LMS[i] = withLMSDefaults(cfg.LMS[i])
	}
	return cfg, nil
}

func loadEnvFile(def string) error {
	if p := os.Getenv("ENV_FILE"); p != "" {
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
		return nil
	}
	if def == "" {
		return nil
	}
	if _, err := os.Stat(def); err != nil {
		return nil
	}
	if err := godotenv.Load(def); err != nil {
		return fmt.Errorf("config: load %s: %w", def, err)
	}
	return nil
}

// parseFile decodes the YAML report params. ${VAR} references in urls and
// tokens are expanded from the environment.
func parseFile(b []byte) (fileConfig, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fileConfig{}, err
	}
	for i := range fc.LMS {
		fc.LMS[i].URL = os.ExpandEnv(fc.LMS[i].URL)
		fc.LMS[i].Token = os.ExpandEnv(fc.LMS[i].Token)
	}
	if fc.Grades != nil {
		fc.Grades.URL = os.ExpandEnv(fc.Grades.URL)
		fc.Grades.Token = os.ExpandEnv(fc.Grades.Token)
	}
	return fc, nil
}

func lmsFromEnv() LMSConfig {
	return LMSConfig{
		Name:       getenv("MOODLE_NAME", "moodle"),
		URL:        os.Getenv("MOODLE_URL"),
		Token:      os.Getenv("MOODLE_TOKEN"),
		Periods:    getenvList("MOODLE_PERIODS", nil),
		CurrentCut: getenvInt("CURRENT_CUT", 1),
		OFGPos:     getenvInt("OFG_POS", -3),
		Layout:     getenv("LAYOUT", "grado"),
		Thresholds: map[string]map[int]int{
			report.MetricResources: cutTable(getenvList("THRESHOLDS_RESOURCES", []string{"30", "40", "50", "50"})),
			report.MetricActivity:  cutTable(getenvList("THRESHOLDS_ACTIVITY", []string{"5", "10", "15", "16"})),
		},
		RetryAttempts: getenvInt("MOODLE_RETRY_ATTEMPTS", 1),
	}
}

func gradesFromEnv() GradesConfig {
	return GradesConfig{
		Name:           getenv("GRADES_NAME", "calificaciones"),
		URL:            getenv("GRADES_MOODLE_URL", os.Getenv("MOODLE_URL")),
		Token:          getenv("GRADES_MOODLE_TOKEN", os.Getenv("MOODLE_TOKEN")),
		Patterns:       getenvList("COURSE_PATTERNS", []string{"GRA-PA66", "UAFTT-PA12"}),
		OFGPos:         getenvInt("GRADES_OFG_POS", -3),
		PeriodPosition: getenvInt("GRADES_PERIOD_INDEX", 2),
	}
}

func mergeGrades(base, over GradesConfig) GradesConfig {
	if over.Name != "" {
		base.Name = over.Name
	}
	if over.URL != "" {
		base.URL = over.URL
	}
	if over.Token != "" {
		base.Token = over.Token
	}
	if len(over.Patterns) > 0 {
		base.Patterns = over.Patterns
	}
	if over.OFGPos != 0 {
		base.OFGPos = over.OFGPos
	}
	if over.PeriodPosition != 0 {
		base.PeriodPosition = over.PeriodPosition
	}
	return base
}

func withLMSDefaults(l LMSConfig) LMSConfig {
	if l.Name == "" {
		l.Name = "moodle"
	}
	if l.CurrentCut == 0 {
		l.CurrentCut = 1
	}
	if l.OFGPos == 0 {
		l.OFGPos = -3
	}
	if l.Layout == "" {
		l.Layout = "grado"
	}
	if l.RetryAttempts <= 0 {
		l.RetryAttempts = 1
	}
	return l
}

// cutTable maps positional values to cuts 1..n; unparsable entries are skipped.
func cutTable(vals []string) map[int]int {
	out := make(map[int]int, len(vals))
	for i, v := range vals {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			continue
		}
		out[i+1] = n
	}
	return out
}

// SFTP returns the upload settings.
func (c Config) SFTP() sftpclient.Config {
	return sftpclient.Config{
		Host:                  c.SFTPHost,
		Port:                  c.SFTPPort,
		User:                  c.SFTPUser,
		Pass:                  c.SFTPPass,
		RemoteDir:             c.SFTPDir,
		InsecureIgnoreHostKey: c.SFTPInsecureIgnoreHostKey,
		KnownHostsPath:        c.SFTPKnownHosts,
	}
}

// Validate checks what the course report needs before any network call.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("WORKERS must be >= 1, got %d", c.Workers))
	}
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("missing REDIS_ADDR"))
	}
	if len(c.LMS) == 0 {
		errs = append(errs, errors.New("no LMS configured (REPORT_CONFIG_PATH or MOODLE_URL)"))
	}
	for _, l := range c.LMS {
		if err := l.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l LMSConfig) Validate() error {
	var errs []error
	if l.URL == "" {
		errs = append(errs, errors.New("missing url"))
	}
	if l.Token == "" {
		errs = append(errs, errors.New("missing token"))
	}
	if len(l.Periods) == 0 {
		errs = append(errs, errors.New("no periods"))
	}
	if _, ok := mappers.LayoutByName(l.Layout); !ok {
		errs = append(errs, fmt.Errorf("unknown layout %q", l.Layout))
	}
	for _, m := range []string{report.MetricResources, report.MetricActivity} {
		if _, ok := l.Thresholds[m][l.CurrentCut]; !ok {
			errs = append(errs, fmt.Errorf("no %s threshold for cut %d", m, l.CurrentCut))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("lms %s: %w", l.Name, err)
	}
	return nil
}

// ValidateGrades checks what cmd/grades needs.
func (c Config) ValidateGrades() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("WORKERS must be >= 1, got %d", c.Workers))
	}
	if c.RedisAddr == "" {
		errs = append(errs, errors.New("missing REDIS_ADDR"))
	}
	if c.Grades.URL == "" || c.Grades.Token == "" {
		errs = append(errs, errors.New("grades: missing url/token"))
	}
	if len(c.Grades.Patterns) == 0 {
		errs = append(errs, errors.New("grades: no course patterns"))
	}
	if c.Grades.PeriodPosition < 1 {
		errs = append(errs, fmt.Errorf("grades: period position must be >= 1, got %d", c.Grades.PeriodPosition))
	}
	return errors.Join(errs...)
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getenvList splits a comma separated variable, dropping blanks.
func getenvList(k string, def []string) []string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
