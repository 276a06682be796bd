package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/teamquiz/internal/api"
	"github.com/victornm/teamquiz/internal/event"
	"github.com/victornm/teamquiz/internal/game"
	"github.com/victornm/teamquiz/internal/history"
	"github.com/victornm/teamquiz/internal/leaderboard"
	"github.com/victornm/teamquiz/internal/question"
	"github.com/victornm/teamquiz/internal/storage"
	"github.com/victornm/teamquiz/internal/telemetry"
)

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

type PostgresConfig struct {
	Addr string
	User string
	Pass string
	Name string
}

func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s", c.User, c.Pass, c.Addr, c.Name)
}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Leaderboard RedisConfig
		Pubsub      RedisConfig
		Questions   RedisConfig
	}

	Postgres struct {
		Questions PostgresConfig
		Results   PostgresConfig
	}

	Game struct {
		PointsPerCorrect  string
		DefaultRoundTime  int
		DefaultRoundCount int
		TickInterval      time.Duration
		Retention         time.Duration
	}
}

// DefaultConfig returns the values used for every setting missing from the file and the environment.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Redis.Leaderboard.Prefix = "teamquiz"
	c.Redis.Pubsub.Prefix = "teamquiz"
	c.Redis.Questions.Prefix = "teamquiz"
	c.Game.PointsPerCorrect = "1"
	c.Game.DefaultRoundTime = 60
	c.Game.DefaultRoundCount = 10
	c.Game.TickInterval = time.Second
	c.Game.Retention = 30 * time.Minute
	return c
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
			questions   redis.UniversalClient
		}

		postgres struct {
			questions *pgxpool.Pool
			results   *pgxpool.Pool
		}
	}

	service struct {
		game        *game.Service
		history     *history.Service
		leaderboard *leaderboard.Service
		userBank    *question.UserBank
	}

	ctx    context.Context
	cancel context.CancelFunc
	health *health.Server
	http   *http.Server
	grpc   *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, rc RedisConfig) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    rc.Addrs,
			Password: rc.Pass,
		})

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect("leaderboard", s.c.Redis.Leaderboard)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	s.infra.redis.questions, err = connect("questions", s.c.Redis.Questions)
	if err != nil {
		return fmt.Errorf("questions: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(pc PostgresConfig) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := storage.Migrate(ctx, pc.URL()); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}

		cc, err := pgxpool.ParseConfig(pc.URL())
		if err != nil {
			return nil, err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return nil, err
		}

		if err := db.Ping(ctx); err != nil {
			return nil, err
		}

		return db, nil
	}

	s.infra.postgres.questions, err = connect(s.c.Postgres.Questions)
	if err != nil {
		return fmt.Errorf("postgres: questions: %w", err)
	}

	s.infra.postgres.results, err = connect(s.c.Postgres.Results)
	if err != nil {
		return fmt.Errorf("postgres: results: %w", err)
	}

	return nil
}

func (s *Server) initService() error {
	points, err := parsePoints(s.c.Game.PointsPerCorrect)
	if err != nil {
		return err
	}

	s.service.userBank = question.NewUserBank(s.infra.redis.questions, s.c.Redis.Questions.Prefix)

	s.service.game = game.NewService(game.Config{
		Questions: question.NewRouter(
			question.NewBank(s.infra.postgres.questions),
			s.service.userBank,
		),
		EventBus:         s.eb,
		PointsPerCorrect: decimal.NewNullDecimal(points),
		Retention:        s.c.Game.Retention,
		TickInterval:     s.c.Game.TickInterval,
	})

	s.service.history = history.NewService(history.Config{
		EventBus: s.eb,
		Store:    history.NewPostgres(s.infra.postgres.results),
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})

	return nil
}

// parsePoints reads the award of a correct answer, which must be positive.
func parsePoints(v string) (decimal.Decimal, error) {
	points, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("points per correct answer: %w", err)
	}
	if !points.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("points per correct answer must be positive, got %s", points)
	}

	return points, nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	api.New(api.Config{
		Router:            e,
		EventBus:          s.eb,
		Game:              s.service.game,
		History:           s.service.history,
		Leaderboard:       s.service.leaderboard,
		Questions:         s.service.userBank,
		Redis:             s.infra.redis.pubsub,
		PubsubPrefix:      s.c.Redis.Pubsub.Prefix,
		DefaultRoundTime:  s.c.Game.DefaultRoundTime,
		DefaultRoundCount: s.c.Game.DefaultRoundCount,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := s.ctx

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		s.service.game.Run(ctx)
		return nil
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}
	s.grpc.GracefulStop()

	s.cancel()
	s.service.game.Close(ctx)

	s.eb.Stop()

	s.infra.postgres.questions.Close()
	s.infra.postgres.results.Close()
	for _, r := range []redis.UniversalClient{s.infra.redis.leaderboard, s.infra.redis.pubsub, s.infra.redis.questions} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
