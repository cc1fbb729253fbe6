package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	"github.com/frahmantamala/leave-management/internal/absence"
	absencePostgres "github.com/frahmantamala/leave-management/internal/absence/postgres"
	"github.com/frahmantamala/leave-management/internal/auth"
	"github.com/frahmantamala/leave-management/internal/core/database"
	"github.com/frahmantamala/leave-management/internal/core/events"
	"github.com/frahmantamala/leave-management/internal/core/metrics"
	"github.com/frahmantamala/leave-management/internal/employee"
	employeePostgres "github.com/frahmantamala/leave-management/internal/employee/postgres"
	"github.com/frahmantamala/leave-management/internal/leaverequest"
	leaveRequestPostgres "github.com/frahmantamala/leave-management/internal/leaverequest/postgres"
	"github.com/frahmantamala/leave-management/internal/leavetype"
	leaveTypePostgres "github.com/frahmantamala/leave-management/internal/leavetype/postgres"
	"github.com/frahmantamala/leave-management/internal/ledger"
	ledgerPostgres "github.com/frahmantamala/leave-management/internal/ledger/postgres"
	"github.com/frahmantamala/leave-management/internal/notification"
	notificationPostgres "github.com/frahmantamala/leave-management/internal/notification/postgres"
	"github.com/frahmantamala/leave-management/internal/scheduler"
	schedulerPostgres "github.com/frahmantamala/leave-management/internal/scheduler/postgres"
	"github.com/frahmantamala/leave-management/internal/storage"
	"github.com/frahmantamala/leave-management/internal/transport"
	"github.com/frahmantamala/leave-management/internal/transport/openapi"
	"github.com/frahmantamala/leave-management/internal/transport/rest"
	"github.com/frahmantamala/leave-management/pkg/logger"
	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *gorm.DB
	SQLX   *sqlx.DB
	Logger *slog.Logger

	Employees  employee.RepositoryAPI
	LeaveTypes *leavetype.Service
	Ledger     *ledger.Service
	Absences   *absence.Service
	Inbox      *notification.Service
	Requests   *leaverequest.Service
	Auth       *auth.Service

	Bus        *events.EventBus
	Dispatcher *notification.Dispatcher
}

func startHTTPServer() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	deps, err := initializeDependencies(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	log := deps.Logger

	router, err := setupRoutes(deps)
	if err != nil {
		log.Error("failed to set up routes", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runner *scheduler.Runner
	var closeLocker func() error
	if config.Server.RunScheduler && config.Scheduler.Enabled {
		runner, closeLocker, err = newSchedulerRunner(deps)
		if err != nil {
			log.Error("failed to start embedded scheduler", "error", err)
			os.Exit(1)
		}
		runner.Start(ctx)
	}

	addr := fmt.Sprintf(":%d", config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: config.Server.ReadHeaderTimeout,
		ReadTimeout:       config.Server.ReadTimeout,
		WriteTimeout:      config.Server.WriteTimeout,
		IdleTimeout:       config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", addr)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("Received signal, shutting down...")
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", "error", err)
	}
	if runner != nil {
		runner.Wait()
		if err := closeLocker(); err != nil {
			log.Error("Scheduler lock close error", "error", err)
		}
	}
	deps.Close()

	log.Info("Server stopped")
}

func setupRoutes(deps *Dependencies) (*chi.Mux, error) {
	cfg := deps.Config
	base := transport.NewBaseHandler(deps.Logger)

	opts := rest.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		OpenAPIPath:    cfg.Server.OpenAPIPath,
	}
	if cfg.Observability.Metrics.Enabled {
		opts.Metrics = metrics.Handler()
		opts.MetricsPath = cfg.Observability.Metrics.Path
	}
	if cfg.Server.ValidateRequests {
		validator, err := openapi.Load(context.Background(), cfg.Server.OpenAPIPath, deps.Logger)
		if err != nil {
			return nil, err
		}
		opts.Validate = validator.Middleware
	}

	sqlDB, err := deps.DB.DB()
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, sqlDB, rest.Handlers{
		Auth:         auth.NewHandler(deps.Auth),
		Employee:     employee.NewHandler(employee.NewService(deps.Employees, deps.Logger)),
		LeaveRequest: leaverequest.NewHandler(base, deps.Requests),
		LeaveType:    leavetype.NewHandler(base, deps.LeaveTypes),
		Ledger:       ledger.NewHandler(base, deps.Ledger),
		Absence:      absence.NewHandler(base, deps.Absences),
		Notification: notification.NewHandler(base, deps.Inbox),
	}, opts, deps.Logger)
	return router, nil
}

// initializeDependencies opens the database and builds every service. The
// caller owns the result and must call Close.
func initializeDependencies(config *internal.Config) (*Dependencies, error) {
	log := logger.LoggerWrapper()

	db, err := database.Open(database.Options{
		Source:          config.Database.Source,
		MaxOpenConns:    config.Database.MaxOpenConns,
		MaxIdleConns:    config.Database.MaxIdleConns,
		ConnMaxLifetime: config.Database.ConnMaxLifetime,
		ConnMaxIdleTime: config.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if database.IsSQLite(config.Database.Source) {
		// no goose run for local sqlite files
		if err := database.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
	}
	sqlDB, err := database.SQLX(db)
	if err != nil {
		return nil, err
	}

	tx := database.NewTransactor(db)
	employees := employeePostgres.NewEmployeeRepository(db, sqlDB)
	leaveTypes := leavetype.NewService(leaveTypePostgres.NewLeaveTypeRepository(db), log)
	ledgerService := ledger.NewService(ledgerPostgres.NewLedgerRepository(db), leaveTypes, employees, tx, config.Leave, log)
	absences := absence.NewService(absencePostgres.NewAbsenceRepository(db), log)
	inbox := notification.NewService(notificationPostgres.NewNotificationRepository(db), log)

	files, err := storage.NewLocalStorage(config.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	bus := events.NewEventBus(log)
	dispatcher := notification.NewDispatcher(notification.DispatcherConfig{
		MaxWorkers:   config.Notification.MaxWorkers,
		JobQueueSize: config.Notification.JobQueueSize,
	}, log)
	if config.Notification.Enabled {
		sender, err := notification.NewEmailSender(config.Notification, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize email sender: %w", err)
		}
		notifier := notification.NewNotifier(sender, inbox, dispatcher, log)
		notifier.Register(bus)
	} else {
		log.Info("notifications disabled, leave events have no subscribers")
	}

	requests := leaverequest.NewService(leaverequest.Dependencies{
		Repo:       leaveRequestPostgres.NewLeaveRequestRepository(db),
		Types:      leaveTypes,
		Directory:  employees,
		Activation: employees,
		Ledger:     ledgerService,
		Absences:   absences,
		Files:      files,
		Events:     bus,
		Tx:         tx,
	}, config.Leave, log)

	tokens := auth.NewJWTTokenGenerator(
		config.Security.AccessTokenSecret,
		config.Security.RefreshTokenSecret,
		config.Security.AccessTokenDuration,
		config.Security.RefreshTokenDuration,
	)

	return &Dependencies{
		Config:     config,
		DB:         db,
		SQLX:       sqlDB,
		Logger:     log,
		Employees:  employees,
		LeaveTypes: leaveTypes,
		Ledger:     ledgerService,
		Absences:   absences,
		Inbox:      inbox,
		Requests:   requests,
		Auth:       auth.NewService(employees, tokens, config.Security.BCryptCost),
		Bus:        bus,
		Dispatcher: dispatcher,
	}, nil
}

// Close gives queued notifications a few seconds to go out, then stops the
// dispatcher and closes the database.
func (d *Dependencies) Close() {
	d.Bus.Wait()

	drained := make(chan struct{})
	go func() {
		d.Dispatcher.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(10 * time.Second):
		d.Logger.Warn("notification queue not drained before shutdown")
	}
	d.Dispatcher.Shutdown()

	sqlDB, err := d.DB.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	if err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func newSchedulerRunner(deps *Dependencies) (*scheduler.Runner, func() error, error) {
	locker, closeLocker, err := scheduler.NewLocker(deps.Config.Scheduler, deps.Logger)
	if err != nil {
		return nil, nil, err
	}
	reconciler := scheduler.NewReconciler(schedulerPostgres.NewReconciliationStore(deps.SQLX), deps.Employees, deps.Logger)
	runner, err := scheduler.NewRunner(reconciler, locker, deps.Config.Scheduler, deps.Logger)
	if err != nil {
		_ = closeLocker()
		return nil, nil, err
	}
	return runner, closeLocker, nil
}
