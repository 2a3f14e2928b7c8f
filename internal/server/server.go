package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/yssalam/mini-quiz-app/internal/api"
	"github.com/yssalam/mini-quiz-app/internal/auth"
	"github.com/yssalam/mini-quiz-app/internal/domain"
	"github.com/yssalam/mini-quiz-app/internal/event"
	"github.com/yssalam/mini-quiz-app/internal/history"
	"github.com/yssalam/mini-quiz-app/internal/quiz"
	"github.com/yssalam/mini-quiz-app/internal/session"
	"github.com/yssalam/mini-quiz-app/internal/telemetry"
)

const (
	// DriverMemory wires in-memory catalog, records and history: a mock
	// backend for local development and tests.
	DriverMemory = "memory"
	// DriverExternal wires redis-backed session records and postgres-backed
	// catalog and history.
	DriverExternal = "external"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Storage struct {
		Driver string
	}

	Auth struct {
		// Tokens maps bearer tokens to principals. Stands in for the real
		// identity provider.
		Tokens map[string]string
	}

	Redis struct {
		Session struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Quiz struct {
			Addr string
			User string
			Pass string
			Name string
		}

		History struct {
			Addr string
			User string
			Pass string
			Name string
		}
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			session redis.UniversalClient
			pubsub  redis.UniversalClient
		}

		postgres struct {
			quiz    *pgxpool.Pool
			history *pgxpool.Pool
		}
	}

	backend struct {
		quizzes interface {
			session.QuizCatalog
			api.QuizLister
		}
		records session.Records
		history history.Store
		pubsub  api.Redis
	}

	service struct {
		session *session.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initBackend(); err != nil {
		return nil, fmt.Errorf("server: init backend: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initBackend() error {
	switch s.c.Storage.Driver {
	case DriverMemory, "":
		s.backend.quizzes = quiz.NewMemory(seedQuizzes()...)
		s.backend.records = session.NewMemoryRecords()
		s.backend.history = history.NewMemory()
		s.backend.pubsub = noopPubsub{}
		return nil

	case DriverExternal:
		if err := s.initRedis(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		if err := s.initPostgres(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}

		s.backend.quizzes = quiz.NewService(quiz.Config{DB: s.infra.postgres.quiz})
		s.backend.records = session.NewRedisRecords(session.RedisRecordsConfig{
			Redis:  s.infra.redis.session,
			Prefix: s.c.Redis.Session.Prefix,
		})
		s.backend.history = history.NewPostgres(history.PostgresConfig{DB: s.infra.postgres.history})
		s.backend.pubsub = s.infra.redis.pubsub
		return nil

	default:
		return fmt.Errorf("unknown storage driver %q", s.c.Storage.Driver)
	}
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.session, err = connect(s.c.Redis.Session.Addrs, s.c.Redis.Session.Pass)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	connect := func(addr, user, pass, name string) (*pgxpool.Pool, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", user, pass, addr, name))
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

	s.infra.postgres.quiz, err = connect(s.c.Postgres.Quiz.Addr, s.c.Postgres.Quiz.User, s.c.Postgres.Quiz.Pass, s.c.Postgres.Quiz.Name)
	if err != nil {
		return fmt.Errorf("quiz: %w", err)
	}

	s.infra.postgres.history, err = connect(s.c.Postgres.History.Addr, s.c.Postgres.History.User, s.c.Postgres.History.Pass, s.c.Postgres.History.Name)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	return nil
}

func (s *Server) initService() {
	s.service.session = session.NewService(session.Config{
		Quizzes:  s.backend.quizzes,
		Records:  s.backend.records,
		History:  s.backend.history,
		EventBus: s.eb,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Session:      s.service.session,
		Quizzes:      s.backend.quizzes,
		History:      s.backend.history,
		Auth:         auth.NewStaticVerifier(s.c.Auth.Tokens),
		Redis:        s.backend.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	// Armed deadlines die with the process; persisted records are finalized
	// lazily on the next resume.
	s.service.session.Stop()
	s.eb.Stop()

	slog.InfoContext(ctx, "server: shutdown completed")
}

type noopPubsub struct{}

func (noopPubsub) Publish(ctx context.Context, _ string, _ any) *redis.IntCmd {
	return redis.NewIntCmd(ctx)
}

// seedQuizzes is the fixture catalog served by the memory driver.
func seedQuizzes() []domain.Quiz {
	return []domain.Quiz{
		{
			QuizID:   "math-101",
			Name:     "Mathematics",
			Duration: 60 * time.Minute,
			Questions: []domain.Question{
				{
					Number:  "1",
					Text:    "What is 1 + 1?",
					Options: []string{"1", "2", "3", "4"},
					Correct: "B",
				},
				{
					Number:  "2",
					Text:    "What is 2 + 2?",
					Options: []string{"2", "3", "4", "5"},
					Correct: "C",
				},
			},
		},
	}
}
