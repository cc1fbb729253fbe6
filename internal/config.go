package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string              `mapstructure:"environment" env:"APP_ENV" envDefault:"development"`
	Server        ServerConfig        `mapstructure:"http_server" envPrefix:"HTTP_"`
	Database      DatabaseConfig      `mapstructure:"database" envPrefix:"DB_"`
	Security      SecurityConfig      `mapstructure:"security" envPrefix:"SECURITY_"`
	Observability ObservabilityConfig `mapstructure:"observability" envPrefix:"OBSERVABILITY_"`
	Leave         LeaveConfig         `mapstructure:"leave" envPrefix:"LEAVE_"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler" envPrefix:"SCHEDULER_"`
	Notification  NotificationConfig  `mapstructure:"notification" envPrefix:"NOTIFICATION_"`
	Storage       StorageConfig       `mapstructure:"storage" envPrefix:"STORAGE_"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url" env:"BASE_URL"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" env:"ALLOWED_ORIGINS"`
	OpenAPIPath       string        `mapstructure:"openapi_path" env:"OPENAPI_PATH" envDefault:"./api/openapi.yml"`
	ValidateRequests  bool          `mapstructure:"validate_requests" env:"VALIDATE_REQUESTS"`
	RunScheduler      bool          `mapstructure:"run_scheduler" env:"RUN_SCHEDULER"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" env:"READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" env:"READ_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" env:"IDLE_TIMEOUT" envDefault:"60s"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" env:"WRITE_TIMEOUT" envDefault:"30s"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" env:"MAX_OPEN_CONNS" envDefault:"20" validate:"min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" env:"MAX_IDLE_CONNS" envDefault:"5" validate:"min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME" envDefault:"5m"`
	Source          string        `mapstructure:"source" env:"SOURCE" validate:"required"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret" env:"ACCESS_TOKEN_SECRET" validate:"required,min=16"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" env:"REFRESH_TOKEN_SECRET" validate:"required,min=16"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" env:"ACCESS_TOKEN_DURATION" envDefault:"15m"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" env:"REFRESH_TOKEN_DURATION" envDefault:"168h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" env:"BCRYPT_COST" envDefault:"10" validate:"min=4,max=15"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics" envPrefix:"METRICS_"`
	Logging LoggingConfig `mapstructure:"logging" envPrefix:"LOG_"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" env:"ENABLED" envDefault:"true"`
	Path    string `mapstructure:"path" env:"PATH" envDefault:"/metrics" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" env:"LEVEL" envDefault:"info" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" env:"FORMAT" envDefault:"json" validate:"omitempty,oneof=json text"`
}

// LeaveConfig holds the entitlement policy.
type LeaveConfig struct {
	AnnualDays          int    `mapstructure:"annual_days" env:"ANNUAL_DAYS" envDefault:"24" validate:"min=0"`
	// MaxCarryover further caps the days carried into a new year; 0 leaves only the per-type cap.
	MaxCarryover        int    `mapstructure:"max_carryover" env:"MAX_CARRYOVER" envDefault:"0" validate:"min=0"`
	ShortAbsenceMaxDays int    `mapstructure:"short_absence_max_days" env:"SHORT_ABSENCE_MAX_DAYS" envDefault:"2" validate:"min=0"`
	PrimaryLeaveType    string `mapstructure:"primary_leave_type" env:"PRIMARY_LEAVE_TYPE" envDefault:"Annual" validate:"required"`
	SeniorityMonths     int    `mapstructure:"seniority_months" env:"SENIORITY_MONTHS" envDefault:"12" validate:"min=0"`
}

type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled" env:"ENABLED" envDefault:"true"`
	Timezone     string        `mapstructure:"timezone" env:"TIMEZONE" envDefault:"UTC"`
	DeactivateAt string        `mapstructure:"deactivate_at" env:"DEACTIVATE_AT" envDefault:"00:00" validate:"required"`
	ReactivateAt string        `mapstructure:"reactivate_at" env:"REACTIVATE_AT" envDefault:"01:00" validate:"required"`
	LockBackend  string        `mapstructure:"lock_backend" env:"LOCK_BACKEND" envDefault:"memory" validate:"oneof=memory redis"`
	LockTTL      time.Duration `mapstructure:"lock_ttl" env:"LOCK_TTL" envDefault:"10m"`
	RedisAddr    string        `mapstructure:"redis_addr" env:"REDIS_ADDR" validate:"required_if=LockBackend redis"`
	RedisDB      int           `mapstructure:"redis_db" env:"REDIS_DB"`
	InstanceID   string        `mapstructure:"instance_id" env:"INSTANCE_ID"`
}

type NotificationConfig struct {
	Enabled      bool          `mapstructure:"enabled" env:"ENABLED" envDefault:"true"`
	MaxWorkers   int           `mapstructure:"max_workers" env:"MAX_WORKERS" envDefault:"4"`
	JobQueueSize int           `mapstructure:"job_queue_size" env:"JOB_QUEUE_SIZE" envDefault:"100"`
	SMTPHost     string        `mapstructure:"smtp_host" env:"SMTP_HOST"`
	SMTPPort     int           `mapstructure:"smtp_port" env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string        `mapstructure:"smtp_username" env:"SMTP_USERNAME"`
	SMTPPassword string        `mapstructure:"smtp_password" env:"SMTP_PASSWORD"`
	SMTPTimeout  time.Duration `mapstructure:"smtp_timeout" env:"SMTP_TIMEOUT" envDefault:"10s"`
	From         string        `mapstructure:"from" env:"FROM" envDefault:"no-reply@leave.local" validate:"omitempty,email"`
}

type StorageConfig struct {
	UploadDir         string   `mapstructure:"upload_dir" env:"UPLOAD_DIR" envDefault:"./uploads" validate:"required"`
	MaxSizeBytes      int64    `mapstructure:"max_size_bytes" env:"MAX_SIZE_BYTES" envDefault:"104857600" validate:"min=1"`
	AllowedExtensions []string `mapstructure:"allowed_extensions" env:"ALLOWED_EXTENSIONS" envSeparator:"," envDefault:"pdf,jpg,jpeg,png,doc,docx"`
}

// LoadConfigFromEnv builds the configuration from process environment,
// optionally seeded from .env files. Used for container deployments.
func LoadConfigFromEnv(envFiles ...string) (*Config, error) {
	existing := make([]string, 0, len(envFiles))
	for _, f := range envFiles {
		if fileExists(f) {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return nil, fmt.Errorf("failed to load env files: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ApplyDefaults fills the fields a partial config.yml may leave out.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 10
	}
	if c.Leave.AnnualDays == 0 {
		c.Leave.AnnualDays = 24
	}
	if c.Leave.ShortAbsenceMaxDays == 0 {
		c.Leave.ShortAbsenceMaxDays = 2
	}
	if c.Leave.PrimaryLeaveType == "" {
		c.Leave.PrimaryLeaveType = "Annual"
	}
	if c.Leave.SeniorityMonths == 0 {
		c.Leave.SeniorityMonths = 12
	}
	if c.Scheduler.Timezone == "" {
		c.Scheduler.Timezone = "UTC"
	}
	if c.Scheduler.DeactivateAt == "" {
		c.Scheduler.DeactivateAt = "00:00"
	}
	if c.Scheduler.ReactivateAt == "" {
		c.Scheduler.ReactivateAt = "01:00"
	}
	if c.Scheduler.LockBackend == "" {
		c.Scheduler.LockBackend = "memory"
	}
	if c.Scheduler.LockTTL == 0 {
		c.Scheduler.LockTTL = 10 * time.Minute
	}
	if c.Notification.SMTPPort == 0 {
		c.Notification.SMTPPort = 587
	}
	if c.Notification.SMTPTimeout == 0 {
		c.Notification.SMTPTimeout = 10 * time.Second
	}
	if c.Storage.UploadDir == "" {
		c.Storage.UploadDir = "./uploads"
	}
	if c.Storage.MaxSizeBytes == 0 {
		c.Storage.MaxSizeBytes = 100 << 20
	}
	if len(c.Storage.AllowedExtensions) == 0 {
		c.Storage.AllowedExtensions = []string{"pdf", "jpg", "jpeg", "png", "doc", "docx"}
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Server.OpenAPIPath == "" {
		c.Server.OpenAPIPath = "./api/openapi.yml"
	}
}

// ----------------- VALIDATION -----------------

var structValidator = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	var errs []string

	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Scheduler.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("scheduler config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SchedulerConfig) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if _, _, err := ParseClock(c.DeactivateAt); err != nil {
		return fmt.Errorf("deactivate_at: %w", err)
	}
	if _, _, err := ParseClock(c.ReactivateAt); err != nil {
		return fmt.Errorf("reactivate_at: %w", err)
	}
	return nil
}

func (c *SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseClock parses a "HH:MM" wall clock time.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}
