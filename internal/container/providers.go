// Package container provides dependency injection and lifecycle management
// for the yacht customization service following Clean Architecture principles.
package container

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/garyjia/yacht-customization/internal/application/dispatcher"
	"github.com/garyjia/yacht-customization/internal/application/port"
	"github.com/garyjia/yacht-customization/internal/application/service"
	"github.com/garyjia/yacht-customization/internal/application/workflow"
	"github.com/garyjia/yacht-customization/internal/config"
	"github.com/garyjia/yacht-customization/internal/domain/entity"
	"github.com/garyjia/yacht-customization/internal/domain/pricing"
	infraLark "github.com/garyjia/yacht-customization/internal/infrastructure/external/lark"
	"github.com/garyjia/yacht-customization/internal/infrastructure/metrics"
	"github.com/garyjia/yacht-customization/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/yacht-customization/migrations"
	"github.com/garyjia/yacht-customization/pkg/database"
	"github.com/garyjia/yacht-customization/pkg/utils"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Customization port.CustomizationRepository
	Step          port.StepRepository
	Approval      port.ApprovalRepository
	Totals        port.QuotationTotalsRepository
	Directory     *sqlite.DirectoryRepository
}

// MetricsBundle holds the Prometheus registry and the workflow recorder.
type MetricsBundle struct {
	Registry *prometheus.Registry
	Recorder *metrics.Recorder
}

// ProvideDatabase opens the SQLite database and applies pending migrations.
// Migrations come from MigrationsDir when set, otherwise from the binary.
func ProvideDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := migrate(conn, cfg.MigrationsDir, logger); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

func migrate(conn *database.DB, dir string, logger *zap.Logger) error {
	migrator := database.NewMigrator(conn, logger)
	if dir != "" {
		if err := migrator.RunMigrations(dir); err != nil {
			return fmt.Errorf("failed to run migrations from %s: %w", dir, err)
		}
		return nil
	}
	if err := migrator.RunMigrationsFS(migrations.FS); err != nil {
		return fmt.Errorf("failed to run embedded migrations: %w", err)
	}
	return nil
}

// ProvideRepositories creates all repositories over the shared transaction manager.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &RepositoryBundle{
		Customization: sqlite.NewCustomizationRepository(db, logger),
		Step:          sqlite.NewStepRepository(db, logger),
		Approval:      sqlite.NewApprovalRepository(db, logger),
		Totals:        sqlite.NewQuotationTotalsRepository(db, logger),
		Directory:     sqlite.NewDirectoryRepository(db, logger),
	}, nil
}

// ProvideNotifier returns the Lark notifier when credentials are configured
// and the log notifier otherwise. The second result names the channel.
func ProvideNotifier(cfg config.LarkConfig, logger *zap.Logger) (port.Notifier, string) {
	larkCfg := infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.APITimeout,
	}
	if !larkCfg.Enabled() {
		logger.Warn("Lark credentials not configured, notifications go to the log")
		return infraLark.NewLogNotifier(logger), "log"
	}

	sdk := infraLark.NewSDKClient(larkCfg, logger)
	return infraLark.NewNotifier(infraLark.NewMessenger(sdk, logger), logger), "lark"
}

// ProvideMetrics creates a private registry with the Go and process
// collectors plus the workflow recorder.
func ProvideMetrics() *MetricsBundle {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &MetricsBundle{
		Registry: reg,
		Recorder: metrics.NewRecorder(reg),
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(cfg config.WorkflowConfig, logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(utils.NewKVLogger(logger.Named("dispatcher"))),
		dispatcher.WithHandlerTimeout(cfg.NotificationTimeout),
	)
}

// ProvidePolicy converts the workflow configuration into engine rules.
func ProvidePolicy(cfg config.WorkflowConfig) (workflow.Policy, error) {
	policy := workflow.Policy{
		Rates: pricing.Rates{
			EngineeringRate:    cfg.EngineeringRate,
			ContingencyPercent: cfg.ContingencyPercent,
		},
		CommercialApprovalThreshold: cfg.CommercialApprovalThreshold,
		CommercialReviewerRoles:     entity.NewRoleSet(cfg.ReviewerRoles()...),
	}
	if err := policy.Validate(); err != nil {
		return workflow.Policy{}, fmt.Errorf("invalid workflow policy: %w", err)
	}
	return policy, nil
}

// WorkflowDeps holds dependencies for the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Metrics    workflow.Metrics
	Policy     workflow.Policy
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps.Repos == nil || deps.TxManager == nil {
		return nil, fmt.Errorf("repositories and transaction manager are required")
	}

	return workflow.NewEngine(
		workflow.Repositories{
			Customizations: deps.Repos.Customization,
			Steps:          deps.Repos.Step,
			Approvals:      deps.Repos.Approval,
			Totals:         deps.Repos.Totals,
		},
		deps.TxManager,
		deps.Repos.Directory,
		deps.Repos.Directory,
		deps.Policy,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithMetrics(deps.Metrics),
		workflow.WithLogger(deps.Logger.Named("workflow")),
	), nil
}

// ProvideNotificationService creates the notification service and subscribes
// it to the dispatcher.
func ProvideNotificationService(
	repos *RepositoryBundle,
	notifier port.Notifier,
	cfg config.WorkflowConfig,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
) service.NotificationService {
	svc := service.NewNotificationService(
		repos.Directory,
		notifier,
		cfg.SLADays,
		cfg.ReviewerRoles(),
		utils.NewKVLogger(logger.Named("notification")),
	)
	svc.Register(d)
	return svc
}
