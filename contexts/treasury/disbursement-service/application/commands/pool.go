package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "tokendrip/contexts/treasury/disbursement-service/application"
	"tokendrip/contexts/treasury/disbursement-service/domain/entities"
	"tokendrip/contexts/treasury/disbursement-service/ports"
)

type PoolReplenishResult struct {
	Created    int
	Idle       int
	ExportPath string
}

// PoolReplenishUseCase keeps the idle recipient pool at its target size.
type PoolReplenishUseCase struct {
	Identities  ports.IdentityStore
	Pool        ports.PoolRepository
	Keys        ports.KeyGenerator
	Exporter    ports.IdentityExporter
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func (uc PoolReplenishUseCase) Run(ctx context.Context, chain string, target int) (PoolReplenishResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	chain = strings.TrimSpace(chain)
	idle, err := uc.Identities.CountIdentities(ctx, chain, entities.IdentityStatusIdle)
	if err != nil {
		logger.Error("pool replenish count failed",
			"event", "disbursement_pool_count_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"chain", chain,
			"error", err.Error(),
		)
		return PoolReplenishResult{}, err
	}
	if idle >= target {
		logger.Debug("pool replenish not needed",
			"event", "disbursement_pool_full",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"chain", chain,
			"idle", idle,
			"target", target,
		)
		return PoolReplenishResult{Idle: idle}, nil
	}

	created, err := uc.Generate(ctx, chain, target-idle)
	if err != nil {
		return PoolReplenishResult{}, err
	}

	result := PoolReplenishResult{Created: len(created), Idle: idle + len(created)}
	if uc.Exporter != nil {
		path, err := uc.Exporter.Export(ctx, created)
		if err != nil {
			// Identities are already stored; the export can be redone from the admin API.
			logger.Error("pool replenish export failed",
				"event", "disbursement_pool_export_failed",
				"module", "treasury/disbursement-service",
				"layer", "application",
				"chain", chain,
				"created", len(created),
				"error", err.Error(),
			)
			return result, err
		}
		result.ExportPath = path
	}

	logger.Info("pool replenished",
		"event", "disbursement_pool_replenished",
		"module", "treasury/disbursement-service",
		"layer", "application",
		"chain", chain,
		"created", result.Created,
		"idle", result.Idle,
		"export_path", result.ExportPath,
	)
	return result, nil
}

// Generate creates and stores count new IDLE identities for chain.
func (uc PoolReplenishUseCase) Generate(ctx context.Context, chain string, count int) ([]entities.Identity, error) {
	logger := application.ResolveLogger(uc.Logger)
	if count <= 0 {
		return nil, nil
	}
	now := uc.now()
	identities := make([]entities.Identity, 0, count)
	for range count {
		pair, err := uc.Keys.Generate(chain)
		if err != nil {
			return nil, fmt.Errorf("generate identity keypair: %w", err)
		}
		id, err := uc.IDGenerator.NewID(ctx)
		if err != nil {
			return nil, err
		}
		identities = append(identities, entities.Identity{
			ID:        id,
			Chain:     chain,
			Address:   pair.Address,
			Secret:    pair.Secret,
			Status:    entities.IdentityStatusIdle,
			CreatedAt: now,
		})
	}
	if err := uc.Pool.InsertIdentities(ctx, identities); err != nil {
		logger.Error("pool identity insert failed",
			"event", "disbursement_pool_insert_failed",
			"module", "treasury/disbursement-service",
			"layer", "application",
			"chain", chain,
			"count", count,
			"error", err.Error(),
		)
		return nil, err
	}
	return identities, nil
}

func (uc PoolReplenishUseCase) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
