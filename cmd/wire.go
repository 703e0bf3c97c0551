package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"worker-proxy-server/config"
	"worker-proxy-server/logger"
	"worker-proxy-server/services"
)

type configLoader func() (*config.Config, error)

type app struct {
	config   *config.Config
	logger   zerolog.Logger
	gate     *services.ConcurrencyGate
	executor *services.ProcessExecutor
	metrics  *services.Metrics
	proxy    *services.ProxyService
	warm     *services.WarmKeeper
	redis    *services.RedisService
	db       *services.DBService
}

// wireApp builds the core services. With backends set it also connects
// the optional Redis queue, Postgres archive and transcript store.
func wireApp(cfg *config.Config, backends bool) (*app, error) {
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	executor := services.NewProcessExecutor(services.ExecutorConfig{
		Binary:         cfg.Worker.Binary,
		Args:           cfg.Worker.Args,
		WorkDir:        cfg.Worker.WorkDir,
		Env:            cfg.Worker.Env,
		DefaultTimeout: cfg.Worker.RunTimeout,
		KillGrace:      cfg.Worker.KillGrace,
		MaxOutputBytes: cfg.Worker.MaxOutputBytes,
		MaxEvents:      cfg.Worker.MaxEvents,
	}, log)
	gate := services.NewConcurrencyGate(cfg.Gate.MaxConcurrent, cfg.Gate.MaxQueue)
	ledger := services.NewSessionLedger(cfg.Ledger.MaxEntries, cfg.Ledger.TTL, cfg.Ledger.MaxEvents)
	metrics := services.NewMetrics(gate)

	actions, err := services.NewActionExtractor()
	if err != nil {
		return nil, fmt.Errorf("wire action extractor: %w", err)
	}

	a := &app{
		config:   cfg,
		logger:   log,
		gate:     gate,
		executor: executor,
		metrics:  metrics,
	}

	var opts []services.ProxyOption
	if cfg.Warm.Enabled {
		a.warm = services.NewWarmKeeper(services.WarmConfig{
			Interval: cfg.Warm.Interval,
			Debounce: cfg.Warm.Debounce,
			Timeout:  cfg.Warm.Timeout,
			Payload:  cfg.Warm.Payload,
		}, executor, gate, metrics, log)
		opts = append(opts, services.WithWarmKeeper(a.warm))
	}

	if backends {
		backendOpts, err := a.wireBackends()
		if err != nil {
			a.close()
			return nil, err
		}
		opts = append(opts, backendOpts...)
	}

	a.proxy = services.NewProxyService(services.ProxyConfig{
		QueueTimeout:   cfg.Gate.QueueTimeout,
		RetryAfter:     cfg.Gate.RetryAfter,
		DefaultTimeout: cfg.Worker.RunTimeout,
		MaxTimeout:     cfg.Worker.MaxRunTimeout,
	}, executor, executor, gate, ledger, actions, metrics, log, opts...)

	return a, nil
}

func (a *app) wireBackends() ([]services.ProxyOption, error) {
	cfg := a.config
	var opts []services.ProxyOption

	storage, err := services.NewStorageService(cfg.Storage.Type, cfg.Storage.Path, cfg.Tracing.Enabled)
	if err != nil {
		return nil, fmt.Errorf("wire storage service: %w", err)
	}
	if storage != nil {
		opts = append(opts, services.WithStorage(storage))
		a.logger.Info().Str("type", cfg.Storage.Type).Str("path", cfg.Storage.Path).Msg("transcript storage initialized")
	}

	if cfg.DB.Enabled {
		db, err := services.NewDBService(cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		if err := db.InitSchema(context.Background()); err != nil {
			return nil, fmt.Errorf("initialize database schema: %w", err)
		}
		opts = append(opts, services.WithArchive(db))
		a.logger.Info().Str("host", cfg.DB.Host).Int("port", cfg.DB.Port).Str("name", cfg.DB.Name).Msg("session archive initialized")
	}

	if cfg.Redis.Enabled {
		a.redis = services.NewRedisService(cfg.Redis.Host, cfg.Redis.Port, cfg.Async.ResultTTL)
		if err := a.redis.Ping(context.Background()); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		opts = append(opts, services.WithJobQueue(a.redis))
		a.logger.Info().Str("host", cfg.Redis.Host).Int("port", cfg.Redis.Port).Msg("async queue initialized")
	}

	return opts, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("closing redis")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("closing database")
		}
	}
}
