// Command account-server serves the account API over HTTP/JSON and gRPC.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/account-keeper/internal/config"
	"github.com/and161185/account-keeper/internal/crypto"
	"github.com/and161185/account-keeper/internal/limiter"
	"github.com/and161185/account-keeper/internal/logger"
	"github.com/and161185/account-keeper/internal/metrics"
	"github.com/and161185/account-keeper/internal/migrate"
	"github.com/and161185/account-keeper/internal/repository"
	"github.com/and161185/account-keeper/internal/repository/memory"
	"github.com/and161185/account-keeper/internal/repository/postgres"
	grpcserver "github.com/and161185/account-keeper/internal/server/grpc"
	httpserver "github.com/and161185/account-keeper/internal/server/http"
	"github.com/and161185/account-keeper/internal/service"
	"github.com/and161185/account-keeper/internal/token"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfgPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	// A missing .env is fine; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("env", cfg.App.Env),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		logger.Error(log, "server stopped", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// deps holds everything the transports need.
type deps struct {
	users   repository.UserRepository
	lim     limiter.Limiter
	tokens  *token.Manager
	hasher  *crypto.Hasher
	metrics *metrics.Metrics
	ready   func(context.Context) error
	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// build connects the stores and constructs the services' collaborators.
func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*deps, error) {
	d := &deps{hasher: crypto.NewHasher(cfg.Password.BcryptCost)}

	var db *postgres.DB
	if cfg.Postgres.DSN != "" {
		if cfg.Postgres.Migrate {
			if err := migrate.Up(ctx, cfg.Postgres.DSN, log); err != nil {
				return nil, err
			}
		}
		var err error
		db, err = postgres.New(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, db.Close)
		d.users = postgres.NewUserRepo(db)
		d.ready = db.Ping
		log.Info("user store", zap.String("backend", "postgres"))
	} else {
		d.users = memory.NewUserRepo()
		log.Warn("user store", zap.String("backend", "memory"))
	}

	rl := cfg.RateLimit
	switch rl.Backend {
	case config.LimiterPostgres:
		if db == nil {
			d.close()
			return nil, errors.New("postgres limiter needs a postgres user store")
		}
		d.lim = limiter.NewPG(db.Pool, rl.Window, rl.MaxFails, rl.BlockFor)
	case config.LimiterRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			d.close()
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = rdb.Close() })
		d.lim = limiter.NewRedis(rdb, cfg.Redis.KeyPrefix, rl.Window, rl.MaxFails, rl.BlockFor)
	case config.LimiterMemory:
		d.lim = limiter.NewMemory(rl.Window, rl.MaxFails, rl.BlockFor)
	default:
		d.lim = limiter.Nop{}
	}
	log.Info("login limiter", zap.String("backend", rl.Backend))

	jwtCfg := cfg.JWT
	if jwtCfg.Secret == "" {
		// Only reachable outside production; config validation rejects it there.
		b, err := crypto.RandBytes(32)
		if err != nil {
			d.close()
			return nil, err
		}
		jwtCfg.Secret = hex.EncodeToString(b)
		log.Warn("jwt secret not configured, using an ephemeral one")
	}
	tm, err := token.NewManager(jwtCfg)
	if err != nil {
		d.close()
		return nil, err
	}
	d.tokens = tm

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if d.metrics, err = metrics.New(reg); err != nil {
		d.close()
		return nil, err
	}
	return d, nil
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	d, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.close()

	authSvc := service.NewAuthService(d.users, d.hasher, d.tokens, d.lim, service.WithLogger(log))
	userSvc := service.NewUserService(d.users, d.hasher)

	// HTTP
	proxies, err := cfg.App.TrustedProxyPrefixes()
	if err != nil {
		return err
	}
	h := httpserver.NewHandler(authSvc, userSvc, d.tokens, log,
		httpserver.WithMetrics(d.metrics),
		httpserver.WithReadiness(d.ready),
		httpserver.WithTrustedProxies(proxies...),
	)
	hs := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           httpserver.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// gRPC
	var opts []grpc.ServerOption
	if cfg.App.TLSCert != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.App.TLSCert, cfg.App.TLSKey)
		if err != nil {
			return err
		}
		opts = append(opts, grpc.Creds(creds))
	}
	gs, health := grpcserver.NewGRPCServer(grpcserver.New(authSvc, userSvc), d.tokens, log, d.metrics, opts...)
	if !cfg.IsProduction() {
		reflection.Register(gs)
	}
	lis, err := net.Listen("tcp", cfg.App.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("transport", "http"), zap.String("addr", cfg.App.HTTPAddr))
		if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("listening", zap.String("transport", "grpc"), zap.String("addr", lis.Addr().String()))
		return gs.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		health.Shutdown()

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = hs.Shutdown(sctx)

		done := make(chan struct{})
		go func() {
			gs.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-sctx.Done():
			gs.Stop()
		}
		return nil
	})
	return g.Wait()
}
