package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Upstream  UpstreamConfig    `mapstructure:"upstream"`
	Paths     PathsConfig       `mapstructure:"paths"`
	Routes    map[string]string `mapstructure:"routes"`
	Database  DatabaseConfig    `mapstructure:"database"`
	Bootstrap BootstrapConfig   `mapstructure:"bootstrap"`
	Stack     StackConfig       `mapstructure:"stack"`
	Logging   LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	AdminListen     string        `mapstructure:"admin_listen"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
}

type UpstreamConfig struct {
	Backend string `mapstructure:"backend"`
}

type PathsConfig struct {
	StaticVolume string `mapstructure:"static_volume"`
	MediaRoot    string `mapstructure:"media_root"`
	DocsRoot     string `mapstructure:"docs_root"`
	SPARoot      string `mapstructure:"spa_root"`
}

type DatabaseConfig struct {
	DSN           string        `mapstructure:"dsn"`
	MigrationsDir string        `mapstructure:"migrations_dir"`
	WaitTimeout   time.Duration `mapstructure:"wait_timeout"`
}

type BootstrapConfig struct {
	AssetDirs  []string `mapstructure:"asset_dirs"`
	StagingDir string   `mapstructure:"staging_dir"`
}

type StackConfig struct {
	Network       string   `mapstructure:"network"`
	EnvFile       string   `mapstructure:"env_file"`
	DBImage       string   `mapstructure:"db_image"`
	BackendImage  string   `mapstructure:"backend_image"`
	FrontendImage string   `mapstructure:"frontend_image"`
	ProxyImage    string   `mapstructure:"proxy_image"`
	StaticVolume  string   `mapstructure:"static_volume"`
	MediaVolume   string   `mapstructure:"media_volume"`
	ProxyPort     int      `mapstructure:"proxy_port"`
	AppCommand    []string `mapstructure:"app_command"`
}

type LoggingConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Level         string `mapstructure:"level"`
	Dir           string `mapstructure:"dir"`
	MainLogFile   string `mapstructure:"main_log_file"`
	AccessLogFile string `mapstructure:"access_log_file"`
	MaxSize       int    `mapstructure:"max_size"`
	MaxBackups    int    `mapstructure:"max_backups"`
	MaxAge        int    `mapstructure:"max_age"`
	Compress      bool   `mapstructure:"compress"`
}

// DestinationClasses are the valid values on the right-hand side of a route
// rule. Each maps to either a network upstream or a filesystem root.
var DestinationClasses = []string{"backend", "docs", "static", "media", "spa"}

// LoadEnvFile loads the orchestrator-injected flat KEY=VALUE file into the
// process environment so viper's AutomaticEnv picks the values up. A missing
// file is not an error: outside the container the environment is already set.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		log.Debug().Str("env_file", path).Err(err).Msg("No env file loaded")
		return nil
	}
	log.Debug().Str("env_file", path).Msg("Loaded env file")
	return nil
}

func Load() (*Config, error) {
	var cfg Config

	viper.SetDefault("server.listen", ":80")
	viper.SetDefault("server.admin_listen", ":8081")
	viper.SetDefault("server.max_body_bytes", int64(10*1024*1024))
	viper.SetDefault("server.upstream_timeout", "30s")

	viper.SetDefault("upstream.backend", "http://backend:8000")

	viper.SetDefault("paths.static_volume", "/var/lib/maitred/static")
	viper.SetDefault("paths.media_root", "/var/lib/maitred/media")
	viper.SetDefault("paths.docs_root", "/usr/share/maitred/docs")
	viper.SetDefault("paths.spa_root", "/var/lib/maitred/www")

	viper.SetDefault("routes", map[string]string{
		"/api/docs/": "docs",
		"/api/":      "backend",
		"/admin/":    "backend",
		"/static/":   "static",
		"/media/":    "media",
		"/":          "spa",
	})

	viper.SetDefault("database.wait_timeout", "60s")
	viper.SetDefault("database.migrations_dir", "/app/migrations")

	viper.SetDefault("bootstrap.staging_dir", "/tmp/maitred-staging")

	viper.SetDefault("stack.network", "maitred")
	viper.SetDefault("stack.db_image", "postgres:16-alpine")
	viper.SetDefault("stack.static_volume", "maitred-static")
	viper.SetDefault("stack.media_volume", "maitred-media")
	viper.SetDefault("stack.proxy_port", 80)

	viper.SetDefault("logging.enabled", false)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.dir", "/var/log/maitred")
	viper.SetDefault("logging.main_log_file", "maitred.log")
	viper.SetDefault("logging.access_log_file", "access.log")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate refuses configurations the router cannot serve deterministically.
// A malformed rule set is fatal at startup, not a per-request concern.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.Server.UpstreamTimeout <= 0 {
		return fmt.Errorf("server.upstream_timeout must be positive")
	}

	if len(c.Routes) == 0 {
		return fmt.Errorf("no route rules configured")
	}

	needsBackend := false
	for prefix, class := range c.Routes {
		if !strings.HasPrefix(prefix, "/") {
			return fmt.Errorf("route prefix %q must start with /", prefix)
		}
		if !validClass(class) {
			return fmt.Errorf("route %q has unknown destination class %q (valid: %s)",
				prefix, class, strings.Join(DestinationClasses, ", "))
		}
		if class == "backend" {
			needsBackend = true
		}
	}

	if needsBackend {
		if c.Upstream.Backend == "" {
			return fmt.Errorf("upstream.backend is required by the configured routes")
		}
		u, err := url.Parse(c.Upstream.Backend)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("upstream.backend %q is not a valid URL", c.Upstream.Backend)
		}
	}

	return nil
}

func validClass(class string) bool {
	for _, valid := range DestinationClasses {
		if class == valid {
			return true
		}
	}
	return false
}

// StaticRoot returns the directory the /static/ alias serves from: the
// collected-assets subdirectory inside the shared static volume.
func (c *Config) StaticRoot() string {
	return strings.TrimRight(c.Paths.StaticVolume, "/") + "/static"
}
