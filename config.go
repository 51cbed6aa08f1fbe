package orator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eringen/orator/convert"
	"github.com/eringen/orator/logging"
)

// DefaultConfigFile is the optional YAML file read from the site root.
const DefaultConfigFile = "orator.yaml"

// SiteConfig holds all configuration for an orator site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "Orator")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:5000")
	Description string `yaml:"description"` // Site description for the RSS feed
	Author      string `yaml:"author"`

	Root         string `yaml:"root"` // Site root (default ".")
	PagesDir     string `yaml:"pages_dir"`
	TemplatesDir string `yaml:"templates_dir"`
	DataDir      string `yaml:"data_dir"`
	FilesDir     string `yaml:"files_dir"`
	BooksDir     string `yaml:"books_dir"`

	Addr string `yaml:"addr"` // Listen address (default ":5000")

	ActivityDatabasePath  string `yaml:"activity_db"`             // default "<root>/.orator/activity.db"
	ActivityRetentionDays int    `yaml:"activity_retention_days"` // default 90

	AdminPassword string `yaml:"-"` // Required: shared admin secret
	SessionSecret string `yaml:"-"` // Required: session encryption secret
	CookieSecure  bool   `yaml:"cookie_secure"`

	Debug   bool   `yaml:"debug"`    // Enables /check_files and /debug/paths
	LogMode string `yaml:"log_mode"` // "dev" or "prod"
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Orator"
	}
	if c.URL == "" {
		c.URL = "http://localhost:5000"
	}
	if c.Addr == "" {
		c.Addr = ":5000"
	}
	if c.Root == "" {
		c.Root = "."
	}
	under := func(p *string, name string) {
		if *p == "" {
			*p = filepath.Join(c.Root, name)
		}
	}
	under(&c.PagesDir, "pages")
	under(&c.TemplatesDir, "templates")
	under(&c.DataDir, "data")
	under(&c.FilesDir, "files")
	under(&c.BooksDir, "books")
	under(&c.ActivityDatabasePath, filepath.Join(".orator", "activity.db"))
	if c.ActivityRetentionDays == 0 {
		c.ActivityRetentionDays = 90
	}
	if c.LogMode == "" {
		c.LogMode = "dev"
	}
}

// ConvertOptions returns the conversion options for the site's directories.
func (c SiteConfig) ConvertOptions(log *logging.Logger) convert.Options {
	c.setDefaults()
	return convert.Options{
		Root:         c.Root,
		PagesDir:     c.PagesDir,
		TemplatesDir: c.TemplatesDir,
		DataDir:      c.DataDir,
		FilesDir:     c.FilesDir,
		BooksDir:     c.BooksDir,
		Log:          log,
	}
}

// LoadConfig reads the YAML file at path, when it exists, overlays the
// environment, then applies overrides. An empty path looks for orator.yaml in
// the site root.
func LoadConfig(path string, overrides ...func(*SiteConfig)) (SiteConfig, error) {
	var cfg SiteConfig
	if path == "" {
		path = filepath.Join(EnvOr("ORATOR_ROOT", "."), DefaultConfigFile)
	}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	for _, o := range overrides {
		o(&cfg)
	}
	cfg.setDefaults()
	return cfg, nil
}

// applyEnv overrides cfg with any set environment variables.
func applyEnv(cfg *SiteConfig) error {
	str := map[string]*string{
		"ORATOR_ROOT":          &cfg.Root,
		"ORATOR_ADDR":          &cfg.Addr,
		"ORATOR_NAME":          &cfg.Name,
		"ORATOR_URL":           &cfg.URL,
		"ORATOR_ACTIVITY_DB":   &cfg.ActivityDatabasePath,
		"ADMIN_PASSWORD":       &cfg.AdminPassword,
		"ADMIN_SESSION_SECRET": &cfg.SessionSecret,
		"LOG_MODE":             &cfg.LogMode,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	flags := map[string]*bool{
		"COOKIE_SECURE": &cfg.CookieSecure,
		"ORATOR_DEBUG":  &cfg.Debug,
	}
	for key, dst := range flags {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger sets the logger used by the server and everything it runs.
func WithLogger(l *logging.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithViews replaces the built-in admin and error views.
func WithViews(v ViewFuncs) Option {
	return func(a *App) {
		a.Views = v
	}
}
