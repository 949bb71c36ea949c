package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/nodeflow"
	"github.com/aretw0/nodeflow/internal/config"
	"github.com/aretw0/nodeflow/internal/metrics"
	"github.com/aretw0/nodeflow/pkg/adapters/file"
	"github.com/aretw0/nodeflow/pkg/adapters/memory"
	"github.com/aretw0/nodeflow/pkg/adapters/postgres"
	"github.com/aretw0/nodeflow/pkg/adapters/redis"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/persistence/middleware"
	"github.com/aretw0/nodeflow/pkg/ports"
	"github.com/aretw0/nodeflow/pkg/runner"
)

// Runtime bundles an engine with the resources that must be released with it.
type Runtime struct {
	Engine  *nodeflow.Engine
	Store   ports.SnapshotStore
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	closers []func() error
}

// Close releases the store connections.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewRuntime builds an engine following cfg: the snapshot backend, its
// middleware, the optional lock, the run policies and the metrics hooks.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Metrics: metrics.New(), Logger: logger}

	store, locker, err := rt.openStore(ctx, cfg.Store)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	mws, err := persistenceMiddleware(cfg.Security)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	if store != nil {
		store = middleware.Chain(store, mws...)
	}
	rt.Store = store

	opts := []nodeflow.Option{
		nodeflow.WithLogger(logger),
		nodeflow.WithGraphID(cfg.GraphID),
		nodeflow.WithTimeout(cfg.Run.Timeout),
		nodeflow.WithLifecycleHooks(rt.Metrics.Hooks()),
		nodeflow.WithLifecycleHooks(debugHooks(logger)),
	}
	if store != nil {
		opts = append(opts, nodeflow.WithSnapshotStore(store))
	}
	if locker != nil {
		opts = append(opts, nodeflow.WithLocker(locker, cfg.Store.LockTTL))
	}
	if len(cfg.Run.AllowHosts) > 0 {
		opts = append(opts, nodeflow.WithInterceptor(runner.AllowHostsMiddleware(cfg.Run.AllowHosts...)))
	}
	if cfg.Run.ReadOnly {
		opts = append(opts, nodeflow.WithInterceptor(runner.ReadOnlyMiddleware()))
	}

	engine, err := nodeflow.New(ctx, opts...)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	rt.Engine = engine
	return rt, nil
}

// openStore returns a nil store for the memory backend unless locking asks for a shared one.
func (rt *Runtime) openStore(ctx context.Context, sc config.StoreConfig) (ports.SnapshotStore, ports.DistributedLocker, error) {
	switch sc.Backend {
	case config.BackendMemory, "":
		if sc.Lock {
			return memory.NewStore(), memory.NewLocker(), nil
		}
		return nil, nil, nil

	case config.BackendFile:
		return file.New(sc.Path), nil, nil

	case config.BackendRedis:
		var opts []redis.Option
		if sc.Redis.Prefix != "" {
			opts = append(opts, redis.WithPrefix(sc.Redis.Prefix))
		}
		if sc.Redis.TTL > 0 {
			opts = append(opts, redis.WithTTL(sc.Redis.TTL))
		}
		store := redis.New(sc.Redis.Addr, sc.Redis.Password, sc.Redis.DB, opts...)
		rt.closers = append(rt.closers, store.Close)
		if err := store.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", sc.Redis.Addr, err)
		}
		var locker ports.DistributedLocker
		if sc.Lock {
			locker = redis.NewLocker(store.Client(), lockPrefix(sc.Redis.Prefix))
		}
		return store, locker, nil

	case config.BackendPostgres:
		var opts []postgres.Option
		if sc.Table != "" {
			opts = append(opts, postgres.WithTable(sc.Table))
		}
		store, err := postgres.Open(ctx, sc.DSN, opts...)
		if err != nil {
			return nil, nil, err
		}
		rt.closers = append(rt.closers, store.Close)
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", sc.Backend)
}

// lockPrefix shares the store's namespace; the locker appends "lock:".
func lockPrefix(storePrefix string) string {
	if storePrefix == "" {
		return redis.DefaultPrefix
	}
	return storePrefix
}

func persistenceMiddleware(sc config.SecurityConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if sc.Mask {
		patterns := sc.MaskPatterns
		if len(patterns) == 0 {
			patterns = middleware.DefaultSecretPatterns
		}
		mws = append(mws, middleware.NewMaskingMiddleware(patterns))
	}
	if sc.EncryptionKey != "" {
		active, err := middleware.DecodeKey(sc.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range sc.FallbackKeys {
			key, err := middleware.DecodeKey(k)
			if err != nil {
				return nil, fmt.Errorf("invalid fallback key %d: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	return mws, nil
}

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnRunStart: func(ctx context.Context, e *domain.RunEvent) {
			logger.Debug("Run Start", "node_id", e.NodeID, "run_id", e.RunID)
		},
		OnRunFinish: func(ctx context.Context, e *domain.RunEvent) {
			logger.Debug("Run Finish", "node_id", e.NodeID, "run_id", e.RunID, "success", e.Success)
		},
		OnPersistError: func(ctx context.Context, op string, err error) {
			logger.Warn("Persistence failed", "op", op, "err", err)
		},
	}
}
