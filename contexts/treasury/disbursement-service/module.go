package disbursementservice

import (
	"log/slog"

	httpadapter "tokendrip/contexts/treasury/disbursement-service/adapters/http"
	"tokendrip/contexts/treasury/disbursement-service/adapters/memory"
	"tokendrip/contexts/treasury/disbursement-service/application/commands"
	"tokendrip/contexts/treasury/disbursement-service/application/queries"
	"tokendrip/contexts/treasury/disbursement-service/application/workers"
	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	"tokendrip/contexts/treasury/disbursement-service/domain/services"
	"tokendrip/contexts/treasury/disbursement-service/ports"

	"go.opentelemetry.io/otel/trace"
)

type Module struct {
	Handler    httpadapter.Handler
	Scheduler  commands.ScheduleCycleUseCase
	Settlement commands.SettlementUseCase
	Settings   commands.SettingsUseCase
	Pool       commands.PoolReplenishUseCase
	Reset      commands.ResetUseCase
	Queries    queries.UseCase

	SchedulerJob  workers.SchedulerJob
	SettlementJob workers.SettlementJob
	PoolJob       workers.PoolJob

	Store *memory.Store
}

type Dependencies struct {
	Identities    ports.IdentityStore
	Pool          ports.PoolRepository
	Disbursements ports.DisbursementStore
	Purger        ports.Purger
	SettingsRepo  ports.SettingsRepository
	Ledger        ports.Ledger
	Keys          ports.KeyGenerator
	Exporter      ports.IdentityExporter
	Runtime       ports.RuntimeControl
	Notifier      ports.LifetimeTargetNotifier
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Random        ports.Random
	Tracer        trace.Tracer

	Defaults         commands.RuntimeDefaults
	PoolTarget       int
	SubmitBatchSize  int
	ConfirmBatchSize int

	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	settings := commands.SettingsUseCase{
		Repository: deps.SettingsRepo,
		Defaults:   deps.Defaults,
		Clock:      deps.Clock,
		Logger:     deps.Logger,
	}
	scheduler := commands.ScheduleCycleUseCase{
		Identities:    deps.Identities,
		Disbursements: deps.Disbursements,
		Settings:      settings,
		Clock:         deps.Clock,
		IDGenerator:   deps.IDGen,
		Random:        deps.Random,
		Logger:        deps.Logger,
	}
	settlement := commands.SettlementUseCase{
		Identities:       deps.Identities,
		Disbursements:    deps.Disbursements,
		Settings:         settings,
		Ledger:           deps.Ledger,
		Notifier:         deps.Notifier,
		Latch:            &services.LifetimeLatch{},
		Clock:            deps.Clock,
		SubmitBatchSize:  deps.SubmitBatchSize,
		ConfirmBatchSize: deps.ConfirmBatchSize,
		Tracer:           deps.Tracer,
		Logger:           deps.Logger,
	}
	pool := commands.PoolReplenishUseCase{
		Identities:  deps.Identities,
		Pool:        deps.Pool,
		Keys:        deps.Keys,
		Exporter:    deps.Exporter,
		Clock:       deps.Clock,
		IDGenerator: deps.IDGen,
		Logger:      deps.Logger,
	}
	reset := commands.ResetUseCase{
		Purger:     deps.Purger,
		Pool:       pool,
		Runtime:    deps.Runtime,
		Chain:      deps.Defaults.Chain,
		PoolTarget: deps.PoolTarget,
		Logger:     deps.Logger,
	}
	queryUseCase := queries.UseCase{
		Identities:    deps.Identities,
		Disbursements: deps.Disbursements,
		Pool:          deps.Pool,
		Settings:      settings,
		Runtime:       deps.Runtime,
		Chain:         deps.Defaults.Chain,
		Logger:        deps.Logger,
	}

	return Module{
		Handler: httpadapter.Handler{
			Scheduler:  scheduler,
			Settlement: settlement,
			Settings:   settings,
			Reset:      reset,
			Queries:    queryUseCase,
			Runtime:    deps.Runtime,
			Logger:     deps.Logger,
		},
		Scheduler:  scheduler,
		Settlement: settlement,
		Settings:   settings,
		Pool:       pool,
		Reset:      reset,
		Queries:    queryUseCase,

		SchedulerJob: workers.SchedulerJob{
			Scheduler: scheduler,
			Logger:    deps.Logger,
		},
		SettlementJob: workers.SettlementJob{
			Settlement: settlement,
			Logger:     deps.Logger,
		},
		PoolJob: workers.PoolJob{
			Pool:   pool,
			Chain:  deps.Defaults.Chain,
			Target: deps.PoolTarget,
			Logger: deps.Logger,
		},
	}
}

// NewInMemoryModule backs every store port with one in-memory Store. Ports
// already set in deps (ledger, keys, runtime) are kept.
func NewInMemoryModule(seed []entities.Identity, deps Dependencies) Module {
	store := memory.NewStore(seed)
	deps.Identities = store
	deps.Pool = store
	deps.Disbursements = store
	deps.Purger = store
	deps.SettingsRepo = store
	if deps.Clock == nil {
		deps.Clock = store
	}
	if deps.IDGen == nil {
		deps.IDGen = store
	}
	module := NewModule(deps)
	module.Store = store
	return module
}
