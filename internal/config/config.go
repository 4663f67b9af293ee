package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// SandboxNumber is the shared Twilio WhatsApp sandbox sender.
const SandboxNumber = "+14155238886"

// ConfigurationError reports missing or inconsistent settings. It is fatal
// and raised before any message is sent.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Config is built once at process start and injected into every component.
type Config struct {
	LogLevel string   `envconfig:"LOG_LEVEL" default:"info"`
	HTTP     HTTP     `envconfig:"HTTP"`
	Store    Store    `envconfig:"STORE"`
	Redis    Redis    `envconfig:"REDIS"`
	WhatsApp WhatsApp `envconfig:"WHATSAPP"`
	Retry    Retry    `envconfig:"RETRY"`
	Alert    Alert    `envconfig:"ALERT"`
	Schedule Schedule `envconfig:"SCHEDULE"`
}

type HTTP struct {
	Addr         string   `envconfig:"ADDR" default:":8080"`
	AllowOrigins []string `envconfig:"ALLOW_ORIGINS" default:"http://localhost:5173"`
	JWTKey       string   `envconfig:"JWT_KEY"`
}

type Redis struct {
	Addr     string        `envconfig:"ADDR"`
	Password string        `envconfig:"PASSWORD"`
	DB       int           `envconfig:"DB" default:"0"`
	LockTTL  time.Duration `envconfig:"LOCK_TTL" default:"30m"`
}

// Enabled reports whether a Redis server was configured.
func (r Redis) Enabled() bool { return r.Addr != "" }

type WhatsApp struct {
	AccountSID          string `envconfig:"ACCOUNT_SID"`
	AuthToken           string `envconfig:"AUTH_TOKEN"`
	FromNumber          string `envconfig:"FROM_NUMBER"`
	MessagingServiceSID string `envconfig:"MESSAGING_SERVICE_SID"`
	// Sandbox overrides mode detection when set to a boolean value.
	Sandbox        string        `envconfig:"SANDBOX"`
	ForcePlainText bool          `envconfig:"FORCE_TEXT" default:"false"`
	SandboxPacing  time.Duration `envconfig:"SANDBOX_PACING" default:"3100ms"`

	Template3DaysSID    string `envconfig:"TEMPLATE_3_DAYS_SID"`
	Template1DaySID     string `envconfig:"TEMPLATE_1_DAY_SID"`
	TemplateDueTodaySID string `envconfig:"TEMPLATE_DUE_TODAY_SID"`
}

// IsSandbox resolves sandbox mode: explicit override first, then the
// configured sender compared against the shared sandbox number.
func (w WhatsApp) IsSandbox() bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(w.Sandbox)); err == nil {
		return v
	}
	from := strings.TrimPrefix(strings.TrimSpace(w.FromNumber), "whatsapp:")
	return from == SandboxNumber
}

// Validate checks credentials and that a sender identity exists for the
// resolved mode.
func (w WhatsApp) Validate() error {
	if w.AccountSID == "" || w.AuthToken == "" {
		return &ConfigurationError{Field: "WHATSAPP_ACCOUNT_SID/WHATSAPP_AUTH_TOKEN", Reason: "gateway credentials are required"}
	}
	if s := strings.TrimSpace(w.Sandbox); s != "" {
		if _, err := strconv.ParseBool(s); err != nil {
			return &ConfigurationError{Field: "WHATSAPP_SANDBOX", Reason: "must be a boolean"}
		}
	}
	if w.IsSandbox() {
		if w.FromNumber == "" {
			return &ConfigurationError{Field: "WHATSAPP_FROM_NUMBER", Reason: "sandbox mode needs a sender number"}
		}
		return nil
	}
	if w.MessagingServiceSID == "" && w.FromNumber == "" {
		return &ConfigurationError{Field: "WHATSAPP_MESSAGING_SERVICE_SID/WHATSAPP_FROM_NUMBER", Reason: "production mode needs a sender identity"}
	}
	return nil
}

type Retry struct {
	MaxRetries int           `envconfig:"MAX_RETRIES" default:"2"`
	BaseDelay  time.Duration `envconfig:"BASE_DELAY" default:"1s"`
}

type Schedule struct {
	Enabled  bool   `envconfig:"ENABLED" default:"false"`
	RunAt    string `envconfig:"RUN_AT" default:"09:00"`
	TimeZone string `envconfig:"TIMEZONE" default:"America/Sao_Paulo"`
}

// Location returns the business time zone, falling back to UTC.
func (s Schedule) Location() *time.Location {
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RunAtMinutes parses RunAt ("HH:MM") into minutes since midnight.
func (s Schedule) RunAtMinutes() (int, error) {
	parts := strings.Split(strings.TrimSpace(s.RunAt), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s.RunAt)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s.RunAt)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s.RunAt)
	}
	return h*60 + m, nil
}

// Load reads environment variables into Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadHTTP reads only the HTTP section, for tooling that does not send.
func LoadHTTP() (HTTP, error) {
	var h HTTP
	if err := envconfig.Process("HTTP", &h); err != nil {
		return h, fmt.Errorf("read environment: %w", err)
	}
	return h, nil
}

// Validate checks every section that must be correct before the first send.
func (c *Config) Validate() error {
	if err := c.WhatsApp.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Alert.Validate(); err != nil {
		return err
	}
	if c.Retry.MaxRetries < 0 {
		return &ConfigurationError{Field: "RETRY_MAX_RETRIES", Reason: "must not be negative"}
	}
	if c.Retry.BaseDelay < 0 {
		return &ConfigurationError{Field: "RETRY_BASE_DELAY", Reason: "must not be negative"}
	}
	if _, err := time.LoadLocation(c.Schedule.TimeZone); err != nil {
		return &ConfigurationError{Field: "SCHEDULE_TIMEZONE", Reason: err.Error()}
	}
	if _, err := c.Schedule.RunAtMinutes(); err != nil {
		return &ConfigurationError{Field: "SCHEDULE_RUN_AT", Reason: err.Error()}
	}
	return nil
}
