package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/yacht-customization/internal/domain/entity"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration. Migrations are embedded in
// the binary unless MigrationsDir is set.
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// LarkConfig holds Lark API configuration. Notifications fall back to the
// log when credentials are empty.
type LarkConfig struct {
	AppID      string        `mapstructure:"app_id"`
	AppSecret  string        `mapstructure:"app_secret"`
	BaseURL    string        `mapstructure:"base_url"`
	APITimeout time.Duration `mapstructure:"api_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WorkflowConfig holds the business rules of the change-order pipeline.
// It is read once at startup and passed by value.
type WorkflowConfig struct {
	EngineeringRate             float64        `mapstructure:"engineering_rate"`
	ContingencyPercent          float64        `mapstructure:"contingency_percent"`
	CommercialApprovalThreshold float64        `mapstructure:"commercial_approval_threshold"`
	CommercialReviewerRoles     []string       `mapstructure:"commercial_reviewer_roles"`
	SLADays                     map[string]int `mapstructure:"sla_days"`
	NotificationTimeout         time.Duration  `mapstructure:"notification_timeout"`
}

// ReviewerRoles returns the configured commercial reviewer roles
func (w WorkflowConfig) ReviewerRoles() []entity.Role {
	roles := make([]entity.Role, 0, len(w.CommercialReviewerRoles))
	for _, name := range w.CommercialReviewerRoles {
		roles = append(roles, entity.Role(strings.TrimSpace(name)))
	}
	return roles
}

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from file and environment variables. An empty
// configPath uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/customization.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_dir", "")

	// Lark defaults
	v.SetDefault("lark.api_timeout", 30*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Workflow defaults
	v.SetDefault("workflow.engineering_rate", 150.0)
	v.SetDefault("workflow.contingency_percent", 10.0)
	v.SetDefault("workflow.commercial_approval_threshold", 50000.0)
	v.SetDefault("workflow.commercial_reviewer_roles", []string{
		string(entity.RoleGerenteComercial),
		string(entity.RoleDiretorComercial),
	})
	v.SetDefault("workflow.sla_days", map[string]int{
		entity.StepTypePMInitial:     2,
		entity.StepTypeSupplyQuote:   5,
		entity.StepTypePlanningCheck: 2,
		entity.StepTypePMFinal:       1,
	})
	v.SetDefault("workflow.notification_timeout", 30*time.Second)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"lark.app_id":                            "LARK_APP_ID",
		"lark.app_secret":                        "LARK_APP_SECRET",
		"lark.base_url":                          "LARK_BASE_URL",
		"database.path":                          "DATABASE_PATH",
		"server.port":                            "PORT",
		"logger.level":                           "LOG_LEVEL",
		"workflow.commercial_approval_threshold": "COMMERCIAL_APPROVAL_THRESHOLD",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Lark credentials come as a pair
	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}

	return c.Workflow.Validate()
}

// Validate rejects business rules the engine cannot run with
func (w WorkflowConfig) Validate() error {
	if w.EngineeringRate < 0 {
		return fmt.Errorf("workflow.engineering_rate must be >= 0, got %v", w.EngineeringRate)
	}
	if w.ContingencyPercent < 0 {
		return fmt.Errorf("workflow.contingency_percent must be >= 0, got %v", w.ContingencyPercent)
	}
	if w.CommercialApprovalThreshold <= 0 {
		return fmt.Errorf("workflow.commercial_approval_threshold must be > 0, got %v", w.CommercialApprovalThreshold)
	}
	for _, role := range w.ReviewerRoles() {
		if !role.IsValid() {
			return fmt.Errorf("workflow.commercial_reviewer_roles: unknown role %q", role)
		}
	}
	for stepType, days := range w.SLADays {
		if _, ok := validStepTypes[stepType]; !ok {
			return fmt.Errorf("workflow.sla_days: unknown step type %q", stepType)
		}
		if days <= 0 {
			return fmt.Errorf("workflow.sla_days.%s must be > 0, got %d", stepType, days)
		}
	}
	return nil
}

var validStepTypes = map[string]struct{}{
	entity.StepTypePMInitial:     {},
	entity.StepTypeSupplyQuote:   {},
	entity.StepTypePlanningCheck: {},
	entity.StepTypePMFinal:       {},
}
