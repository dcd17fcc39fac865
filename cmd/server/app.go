package main

import (
	"database/sql"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/cache"
	"github.com/prisonfinance/ledger-sync/internal/config"
	"github.com/prisonfinance/ledger-sync/internal/database"
	"github.com/prisonfinance/ledger-sync/internal/generalledger"
	"github.com/prisonfinance/ledger-sync/internal/repository"
	"github.com/prisonfinance/ledger-sync/internal/repository/memory"
	"github.com/prisonfinance/ledger-sync/internal/repository/postgres"
	"github.com/prisonfinance/ledger-sync/internal/services"
)

// app holds the wired service graph.
type app struct {
	cfg *config.Config
	db  *sql.DB
	rdb *redis.Client

	sync      *services.SyncService
	balances  *services.BalanceService
	merge     *services.MergeService
	migration *services.MigrationService
	query     *services.TransactionQueryService
}

// buildApp connects to storage and wires every service. With inMemory the
// ledger lives in process and nothing is persisted.
func buildApp(cfg *config.Config, inMemory bool) (*app, error) {
	a := &app{cfg: cfg}

	var store repository.Store
	if inMemory {
		store = memory.NewStore()
	} else {
		db, err := database.InitDB(cfg.Database)
		if err != nil {
			return nil, errors.Wrap(err, "connect database")
		}
		a.db = db
		store = postgres.NewStore(db)
	}

	var observers []services.TransactionObserver
	var balanceCache services.BalanceCache
	if a.rdb = database.InitRedis(cfg.Redis); a.rdb != nil {
		c := cache.NewBalanceCache(a.rdb, cfg.BalanceCacheTTL, cfg.PublishChannel)
		observers = append(observers, c)
		balanceCache = c
	}

	resolver := services.NewAccountResolver()
	recorder := services.NewTransactionRecorder(observers...)
	prisons := services.NewPrisonService(resolver)
	cutoff := services.NewMigrationCutoffResolver()

	glClient := generalledger.NewHTTPClient(cfg.GeneralLedger.BaseURL, cfg.GeneralLedger.Timeout)
	mirror := services.NewGeneralLedgerMirror(
		services.NewDualWriteForwarder(cfg.GeneralLedger.DualWrite),
		services.NewSubAccountResolver(glClient),
		glClient,
	)

	a.balances = services.NewBalanceService(store, cutoff, balanceCache)
	a.sync = services.NewSyncService(store, services.NewLegacyDataNormalizer(), resolver, prisons, recorder, mirror)
	a.merge = services.NewMergeService(store, resolver, a.balances, recorder)
	a.migration = services.NewMigrationService(store, resolver, prisons, recorder)
	a.query = services.NewTransactionQueryService(store)
	return a, nil
}

func (a *app) Close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
