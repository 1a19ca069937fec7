package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/NT912/Finwise---final-sub002/internal/core/port"
	"github.com/NT912/Finwise---final-sub002/internal/infra/config"
	"github.com/NT912/Finwise---final-sub002/internal/infra/database"
	kafkainfra "github.com/NT912/Finwise---final-sub002/internal/infra/kafka"
	"github.com/NT912/Finwise---final-sub002/internal/infra/logger"
	"github.com/NT912/Finwise---final-sub002/internal/infra/mail"
	redisinfra "github.com/NT912/Finwise---final-sub002/internal/infra/redis"
	"github.com/NT912/Finwise---final-sub002/internal/infra/security"
	"github.com/NT912/Finwise---final-sub002/internal/infra/telemetry"
	postgresrepo "github.com/NT912/Finwise---final-sub002/internal/repository/postgres"
	redisrepo "github.com/NT912/Finwise---final-sub002/internal/repository/redis"
	transportgrpc "github.com/NT912/Finwise---final-sub002/internal/transport/grpc"
	grpcinterceptors "github.com/NT912/Finwise---final-sub002/internal/transport/grpc/interceptors"
	"github.com/NT912/Finwise---final-sub002/internal/transport/http/middleware"
	"github.com/NT912/Finwise---final-sub002/internal/transport/http/routes"
	"github.com/NT912/Finwise---final-sub002/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	tracer     *telemetry.TracerProvider
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	if err := a.init(ctx); err != nil {
		a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *Application) init(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.tracer = tracer

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, a.pool, log); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}

	a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}

	codec, err := NewTokenCodec(cfg, log)
	if err != nil {
		return fmt.Errorf("init token codec: %w", err)
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return fmt.Errorf("configure argon2: %w", err)
	}

	repos := postgresrepo.NewRepositories(a.pool)

	var codes port.VerificationCodeStore
	switch cfg.Verification.Store {
	case config.StorePostgres:
		codes = repos.VerificationCodes
	default:
		codes = redisrepo.NewVerificationCodeStore(a.redis.Client(), cfg.Redis.KeyPrefix)
	}
	log.Info("verification code store selected", zap.String("store", cfg.Verification.Store))

	mailer, err := a.newMailer()
	if err != nil {
		return fmt.Errorf("init mailer: %w", err)
	}

	rateLimitStore := redisrepo.NewRateLimitRepository(a.redis.Client(), cfg.Redis.KeyPrefix+":rate-limit")

	credentials := usecase.NewCredentialService(
		usecase.CredentialSettingsFromConfig(cfg),
		repos.Accounts,
		codes,
		mailer,
		hasher,
		rateLimitStore,
		telemetry.NewCredentialMetrics(prometheus.DefaultRegisterer),
		log,
	)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	if cfg.GRPC.Enabled {
		grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{})
		if err != nil {
			return fmt.Errorf("init grpc metrics: %w", err)
		}
		a.grpcServer, err = transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Verifier: codec,
			Logger:   log,
			Metrics:  grpcMetrics,
		})
		if err != nil {
			return fmt.Errorf("init grpc server: %w", err)
		}
		a.grpcAddr = net.JoinHostPort(cfg.GRPC.Host, fmt.Sprint(cfg.GRPC.Port))
	}

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Verifier:    codec,
		Credentials: credentials,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, cfg.Timeouts.Store, log),
		Metrics:     httpMetrics,
		Database:    a.pool,
		Cache:       a.redis,
	})

	return nil
}

// NewTokenCodec builds the bearer token codec. Outside production a missing
// secret is replaced by a per-process random one.
func NewTokenCodec(cfg *config.AppConfig, log *zap.Logger) (*security.TokenCodec, error) {
	secret := []byte(cfg.Auth.Secret)
	if len(secret) == 0 {
		if cfg.IsProduction() {
			return nil, errors.New("auth.secret is required in production")
		}
		var err error
		if secret, err = security.EphemeralSecret(); err != nil {
			return nil, err
		}
		log.Warn("auth.secret not set, using an ephemeral signing secret; tokens will not survive a restart")
	}

	return security.NewTokenCodec(security.TokenCodecConfig{
		Secret: secret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
	})
}

func (a *Application) newMailer() (port.CodeMailer, error) {
	cfg, log := a.cfg, a.logger

	switch cfg.Mail.Driver {
	case config.MailDriverSMTP:
		return mail.NewSMTPMailer(cfg.Mail, log)
	case config.MailDriverKafka:
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			if cfg.IsProduction() {
				return nil, err
			}
			log.Warn("failed to init kafka producer, falling back to log mailer", zap.Error(err))
			return mail.NewLogMailer(log, true), nil
		}
		a.producer = producer
		return kafkainfra.NewNotificationPublisher(producer, cfg.App, log), nil
	default:
		return mail.NewLogMailer(log, !cfg.IsProduction()), nil
	}
}

func (a *Application) Run(ctx context.Context) error {
	defer a.close(context.Background())

	grpcErrCh := make(chan error, 1)
	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
		go func() {
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.App.Host, fmt.Sprint(a.cfg.App.Port)),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting FinWise identity API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-serverErrCh:
	case runErr = <-grpcErrCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.grpcServer != nil {
		a.grpcServer.Shutdown()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("shutdown server: %w", err))
	}
	return runErr
}

// close releases everything init acquired; it tolerates partial initialisation.
func (a *Application) close(ctx context.Context) {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
