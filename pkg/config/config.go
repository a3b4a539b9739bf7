// Package config loads the worker configuration from defaults, an optional
// YAML file, a .env file and process environment variables, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/entrhq/quatro-rpa/pkg/logging"
)

// Config is the full worker configuration.
type Config struct {
	Portal   PortalConfig   `yaml:"portal" json:"portal"`
	Browser  BrowserConfig  `yaml:"browser" json:"browser"`
	Debug    DebugConfig    `yaml:"debug" json:"debug"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Security SecurityConfig `yaml:"security" json:"security"`
	Logging  logging.Config `yaml:"logging" json:"logging"`
	Locators Locators       `yaml:"locators" json:"locators"`
}

// PortalConfig describes the external portal and the bounded waits used
// while driving it.
type PortalConfig struct {
	URL string `yaml:"url" json:"url"`

	LoginTimeout  time.Duration `yaml:"login_timeout" json:"login_timeout"`
	ResultTimeout time.Duration `yaml:"result_timeout" json:"result_timeout"`
	PollInterval  time.Duration `yaml:"poll_interval" json:"poll_interval"`
	PopupTimeout  time.Duration `yaml:"popup_timeout" json:"popup_timeout"`

	// SettleDelay lets client-side rendering finish on the print tab
	// before it is exported.
	SettleDelay time.Duration `yaml:"settle_delay" json:"settle_delay"`

	// PrintURLPattern is a glob the print tab URL must match ("*" accepts any)
	PrintURLPattern string `yaml:"print_url_pattern" json:"print_url_pattern"`

	// FilenameSuffix is appended to the sanitized plate to name the PDF
	FilenameSuffix string `yaml:"filename_suffix" json:"filename_suffix"`
}

// BrowserConfig controls the browser session lifecycle.
type BrowserConfig struct {
	Headless bool `yaml:"headless" json:"headless"`

	// IdleSeconds closes a session unused for this long; <= 0 disables it
	IdleSeconds int `yaml:"idle_seconds" json:"idle_seconds"`

	// CooldownSeconds is the minimum delay before a new session may be
	// created after a close
	CooldownSeconds int `yaml:"cooldown_seconds" json:"cooldown_seconds"`

	ViewportWidth  int `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height" json:"viewport_height"`

	// ActionTimeout is the default driver timeout for a single action
	ActionTimeout time.Duration `yaml:"action_timeout" json:"action_timeout"`
}

// DebugConfig enables screenshots and markup dumps on every workflow exit.
type DebugConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
}

// RedisConfig points at the Redis instance shared with the web application.
type RedisConfig struct {
	URL       string        `yaml:"url" json:"url"`
	StatusKey string        `yaml:"status_key" json:"status_key"`
	StatusTTL time.Duration `yaml:"status_ttl" json:"status_ttl"`
	RPAQueue  string        `yaml:"rpa_queue" json:"rpa_queue"`
	PDFQueue  string        `yaml:"pdf_queue" json:"pdf_queue"`
}

// DatabaseConfig points at the relational job store.
type DatabaseConfig struct {
	URL string `yaml:"url" json:"url"`
}

// SecurityConfig holds the keys used to decrypt stored portal passwords.
type SecurityConfig struct {
	SecretKey     string `yaml:"secret_key" json:"-"`
	EncryptionKey string `yaml:"encryption_key" json:"-"`
}

// Locators are the selectors used to find controls on the portal. They are
// configuration, not contract: the portal markup changes without notice.
type Locators struct {
	LoggedIn           string `yaml:"logged_in" json:"logged_in"`
	Username           string `yaml:"username" json:"username"`
	Password           string `yaml:"password" json:"password"`
	LoginSubmit        string `yaml:"login_submit" json:"login_submit"`
	LoginMessage       string `yaml:"login_message" json:"login_message"`
	InvalidCredentials string `yaml:"invalid_credentials" json:"invalid_credentials"`
	Logout             string `yaml:"logout" json:"logout"`
	QueryMenu          string `yaml:"query_menu" json:"query_menu"`
	QueryByPlate       string `yaml:"query_by_plate" json:"query_by_plate"`
	PlateInput         string `yaml:"plate_input" json:"plate_input"`
	PlateSubmit        string `yaml:"plate_submit" json:"plate_submit"`
	ResultContainer    string `yaml:"result_container" json:"result_container"`
	ResultRows         string `yaml:"result_rows" json:"result_rows"`
	RowAction          string `yaml:"row_action" json:"row_action"`
	ErrorBanner        string `yaml:"error_banner" json:"error_banner"`
	PrintButton        string `yaml:"print_button" json:"print_button"`
}

// Default values
const (
	DefaultPortalURL       = "https://www.enargas.gob.ar/"
	DefaultIdleSeconds     = 300
	DefaultCooldownSeconds = 60
	DefaultStatusKey       = "rpa:session_status"
	DefaultRPAQueue        = "quatro:queue:rpa"
	DefaultPDFQueue        = "quatro:queue:pdf"
	DefaultFilenameSuffix  = "_ENARGAS.pdf"
)

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Portal: PortalConfig{
			URL:             DefaultPortalURL,
			LoginTimeout:    10 * time.Second,
			ResultTimeout:   15 * time.Second,
			PollInterval:    200 * time.Millisecond,
			PopupTimeout:    30 * time.Second,
			SettleDelay:     1500 * time.Millisecond,
			PrintURLPattern: "*",
			FilenameSuffix:  DefaultFilenameSuffix,
		},
		Browser: BrowserConfig{
			Headless:        true,
			IdleSeconds:     DefaultIdleSeconds,
			CooldownSeconds: DefaultCooldownSeconds,
			ViewportWidth:   1280,
			ViewportHeight:  900,
			ActionTimeout:   30 * time.Second,
		},
		Debug: DebugConfig{
			Dir: "debug/rpa",
		},
		Redis: RedisConfig{
			URL:       "redis://localhost:6379/0",
			StatusKey: DefaultStatusKey,
			StatusTTL: time.Hour,
			RPAQueue:  DefaultRPAQueue,
			PDFQueue:  DefaultPDFQueue,
		},
		Database: DatabaseConfig{
			URL: "postgres://postgres:postgres@db:5432/quatro_gnc",
		},
		Security: SecurityConfig{
			SecretKey: "dev-secret-change",
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "console",
		},
		Locators: DefaultLocators(),
	}
}

// DefaultLocators returns the selectors matching the portal markup at the
// time of writing.
func DefaultLocators() Locators {
	return Locators{
		LoggedIn:           "#btnCerrarSesion",
		Username:           "#usuario",
		Password:           "#clave",
		LoginSubmit:        "#btnIngresar",
		LoginMessage:       "body",
		InvalidCredentials: "#mensajeLogin.alert-danger",
		Logout:             "#btnCerrarSesion",
		QueryMenu:          "#menuConsultas",
		QueryByPlate:       "#consultaPorDominio",
		PlateInput:         "#dominio",
		PlateSubmit:        "#btnBuscar",
		ResultContainer:    "#resultado",
		ResultRows:         "tr",
		RowAction:          "a, button, input[type=button], input[type=submit], input[type=image], [onclick]",
		ErrorBanner:        "#resultado .alert-danger",
		PrintButton:        "#btnImprimir",
	}
}

// IdleTimeout returns the idle close duration, zero when disabled.
func (b BrowserConfig) IdleTimeout() time.Duration {
	if b.IdleSeconds <= 0 {
		return 0
	}
	return time.Duration(b.IdleSeconds) * time.Second
}

// Cooldown returns the post-close cooldown duration.
func (b BrowserConfig) Cooldown() time.Duration {
	if b.CooldownSeconds <= 0 {
		return 0
	}
	return time.Duration(b.CooldownSeconds) * time.Second
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Portal.URL == "" {
		return fmt.Errorf("portal url is required")
	}
	if u, err := url.Parse(c.Portal.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid portal url: %q", c.Portal.URL)
	}

	timeouts := map[string]time.Duration{
		"login_timeout":  c.Portal.LoginTimeout,
		"result_timeout": c.Portal.ResultTimeout,
		"poll_interval":  c.Portal.PollInterval,
		"popup_timeout":  c.Portal.PopupTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Portal.SettleDelay < 0 {
		return fmt.Errorf("settle_delay cannot be negative")
	}
	if c.Portal.PrintURLPattern == "" {
		c.Portal.PrintURLPattern = "*"
	}
	if c.Portal.FilenameSuffix == "" {
		c.Portal.FilenameSuffix = DefaultFilenameSuffix
	}

	if c.Browser.CooldownSeconds < 0 {
		return fmt.Errorf("cooldown_seconds cannot be negative")
	}

	if c.Debug.Enabled && c.Debug.Dir == "" {
		return fmt.Errorf("debug dir is required when debug is enabled")
	}

	if c.Redis.StatusTTL <= 0 {
		return fmt.Errorf("status_ttl must be positive")
	}

	return c.Locators.validate()
}

func (l Locators) validate() error {
	required := map[string]string{
		"logged_in":        l.LoggedIn,
		"username":         l.Username,
		"password":         l.Password,
		"login_submit":     l.LoginSubmit,
		"query_by_plate":   l.QueryByPlate,
		"plate_input":      l.PlateInput,
		"plate_submit":     l.PlateSubmit,
		"result_container": l.ResultContainer,
		"result_rows":      l.ResultRows,
		"row_action":       l.RowAction,
		"print_button":     l.PrintButton,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("locator %s is required", name)
		}
	}
	return nil
}
