package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	disbursementservice "tokendrip/contexts/treasury/disbursement-service"
	"tokendrip/contexts/treasury/disbursement-service/adapters/export"
	"tokendrip/contexts/treasury/disbursement-service/adapters/ledger"
	postgresadapter "tokendrip/contexts/treasury/disbursement-service/adapters/postgres"
	"tokendrip/contexts/treasury/disbursement-service/application/commands"
	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	"tokendrip/contexts/treasury/disbursement-service/ports"
	"tokendrip/internal/platform/config"
	"tokendrip/internal/platform/db"
	"tokendrip/internal/platform/httpserver"
	platformotel "tokendrip/internal/platform/otel"
	platformruntime "tokendrip/internal/platform/runtime"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const shutdownTimeout = 15 * time.Second

type APIApp struct {
	core   *core
	server *httpserver.Server
}

type WorkerApp struct {
	core *core
}

// CLIApp exposes the module to one-shot commands. It has no runtime drivers.
type CLIApp struct {
	core *core
}

// core holds everything the three processes share.
type core struct {
	cfg      config.Config
	logger   *slog.Logger
	module   disbursementservice.Module
	runtime  *platformruntime.Controller
	database *db.Database
	ledger   *ledger.EVM
	tracing  func(context.Context) error
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	c, err := buildCore(ctx, config.ProcessAPI)
	if err != nil {
		return nil, err
	}
	auth, err := httpserver.NewAuthenticator(
		c.cfg.JWTSecret,
		c.cfg.JWTTTL,
		c.cfg.AdminUserID,
		c.cfg.AdminPassword,
		c.cfg.AdminRole,
	)
	if err != nil {
		_ = c.close()
		return nil, err
	}
	server := httpserver.New(c.module, auth, c.cfg.AdminRole, c.logger, normalizeAddr(c.cfg.HTTPPort))
	return &APIApp{core: c, server: server}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	c, err := buildCore(ctx, config.ProcessWorker)
	if err != nil {
		return nil, err
	}
	return &WorkerApp{core: c}, nil
}

func BuildCLI(ctx context.Context) (*CLIApp, error) {
	c, err := buildCore(ctx, config.ProcessCLI)
	if err != nil {
		return nil, err
	}
	return &CLIApp{core: c}, nil
}

func buildCore(ctx context.Context, process string) (*core, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(process); err != nil {
		return nil, err
	}

	logOutput := os.Stdout
	if process == config.ProcessCLI {
		logOutput = os.Stderr
	}
	logger := NewLogger(cfg.LogLevel, cfg.LogFormat, logOutput).
		With("service", cfg.ServiceName, "process", process)
	slog.SetDefault(logger)

	c := &core{cfg: cfg, logger: logger}
	c.tracing, err = platformotel.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		return nil, err
	}

	deps := disbursementservice.Dependencies{
		Keys: ledger.KeyGenerator{},
		Exporter: export.FileExporter{
			Dir:    cfg.ExportDir,
			Logger: logger,
		},
		Tracer:           platformotel.Tracer(),
		Defaults:         runtimeDefaults(cfg),
		PoolTarget:       cfg.WalletPoolTarget,
		SubmitBatchSize:  cfg.SubmitBatchSize,
		ConfirmBatchSize: cfg.ConfirmBatchSize,
		Logger:           logger,
	}

	if strings.TrimSpace(cfg.LedgerRPCURL) == "" {
		logger.Warn("ledger rpc url not configured; submissions will fail",
			"event", "bootstrap_ledger_offline",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		deps.Ledger = ledger.Offline{}
	} else {
		evm, err := ledger.Dial(ctx, cfg.LedgerRPCURL, cfg.ChainID, logger)
		if err != nil {
			_ = c.close()
			return nil, err
		}
		c.ledger = evm
		deps.Ledger = evm
	}

	if process != config.ProcessCLI {
		controller, err := platformruntime.NewController(ctx, platformruntime.Options{
			PoolSpec:     cfg.WalletPoolCron,
			ScheduleSpec: cfg.DistributionCron,
			TickInterval: cfg.WorkerInterval,
			Logger:       logger,
		})
		if err != nil {
			_ = c.close()
			return nil, err
		}
		c.runtime = controller
		deps.Runtime = controller
		if cfg.StopOnTotalTarget {
			deps.Notifier = controller
		}
	}

	if cfg.StoreDriver == config.StoreMemory {
		c.module = disbursementservice.NewInMemoryModule(nil, deps)
	} else {
		database, err := connect(ctx, cfg)
		if err != nil {
			_ = c.close()
			return nil, err
		}
		c.database = database
		if err := postgresadapter.Migrate(ctx, database.DB); err != nil {
			_ = c.close()
			return nil, err
		}
		repo := postgresadapter.NewRepository(database.DB, logger)
		deps.Identities = repo
		deps.Pool = repo
		deps.Disbursements = repo
		deps.Purger = repo
		deps.SettingsRepo = repo
		deps.Clock = postgresadapter.SystemClock{}
		deps.IDGen = postgresadapter.UUIDGenerator{}
		c.module = disbursementservice.NewModule(deps)
	}

	if c.runtime != nil {
		c.runtime.Register(platformruntime.Jobs{
			Pool:       c.module.PoolJob,
			Scheduler:  c.module.SchedulerJob,
			Settlement: c.module.SettlementJob,
		})
	}

	if _, err := c.module.Settings.Ensure(ctx); err != nil {
		_ = c.close()
		return nil, err
	}

	logger.Info("bootstrap completed",
		"event", "bootstrap_core_ready",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"store_driver", cfg.StoreDriver,
		"chain", cfg.Chain,
	)
	return c, nil
}

func connect(ctx context.Context, cfg config.Config) (*db.Database, error) {
	if cfg.StoreDriver == config.StoreSQLite {
		return db.ConnectSQLite(ctx, cfg.SQLitePath)
	}
	return db.ConnectPostgres(ctx, cfg.PostgresDSN)
}

func runtimeDefaults(cfg config.Config) commands.RuntimeDefaults {
	return commands.RuntimeDefaults{
		Settings: entities.Settings{
			TokenRef:           strings.TrimSpace(cfg.TokenContract),
			AmountCeiling:      strings.TrimSpace(cfg.DistributionAmount),
			TreasuryCredential: strings.TrimSpace(cfg.TreasuryPrivateKey),
			DailyTarget:        cfg.DailyDistributionTarget,
			LifetimeTarget:     cfg.TotalDistributionTarget,
		},
		Chain:            cfg.Chain,
		Decimals:         cfg.TokenDecimals,
		MinConfirmations: cfg.MinConfirmations,
		StopOnLifetime:   cfg.StopOnTotalTarget,
	}
}

// close releases resources in reverse order of acquisition.
func (c *core) close() error {
	var errs []error
	if c.runtime != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := c.runtime.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	if c.database != nil {
		if err := c.database.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ledger != nil {
		c.ledger.Close()
	}
	if c.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := c.tracing(ctx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	return errors.Join(errs...)
}

// Run starts the runtime drivers (the service runs from boot) and serves HTTP
// until ctx is cancelled.
func (a *APIApp) Run(ctx context.Context) error {
	a.core.runtime.Start()
	a.core.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Start()
	}()

	select {
	case err := <-serveErr:
		a.core.runtime.Stop()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.core.runtime.Stop()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-serveErr
}

func (a *APIApp) Close() error {
	return a.core.close()
}

// Run starts the runtime drivers and blocks until ctx is cancelled.
func (w *WorkerApp) Run(ctx context.Context) error {
	w.core.runtime.Start()
	w.core.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"tick_interval", w.core.cfg.WorkerInterval.String(),
	)
	<-ctx.Done()
	w.core.runtime.Stop()
	return nil
}

func (w *WorkerApp) Close() error {
	return w.core.close()
}

func (a *CLIApp) Module() disbursementservice.Module {
	return a.core.module
}

func (a *CLIApp) LedgerOnline() bool {
	return a.core.ledger != nil
}

func (a *CLIApp) Close() error {
	return a.core.close()
}

var _ ports.RuntimeControl = (*platformruntime.Controller)(nil)
var _ ports.LifetimeTargetNotifier = (*platformruntime.Controller)(nil)

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
