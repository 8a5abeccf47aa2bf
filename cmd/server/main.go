package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sokolovdm/socialnet/internal/cache"
	"github.com/sokolovdm/socialnet/internal/config"
	"github.com/sokolovdm/socialnet/internal/events"
	"github.com/sokolovdm/socialnet/internal/httpserver"
	"github.com/sokolovdm/socialnet/internal/logging"
	"github.com/sokolovdm/socialnet/internal/middleware"
	"github.com/sokolovdm/socialnet/internal/repo"
	"github.com/sokolovdm/socialnet/internal/search"
	"github.com/sokolovdm/socialnet/internal/service"
	"github.com/sokolovdm/socialnet/internal/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := config.InitDB(initCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	var store cache.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		rds, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		defer rds.Close()
		store = rds
	}

	var producer *events.Producer
	if cfg.KafkaAddress != "" {
		producer = events.NewProducer(strings.Split(cfg.KafkaAddress, ","))
		defer producer.Close()
	}

	var index *search.Index
	if cfg.ESURL != "" {
		index, err = search.NewIndex(search.Config{
			URL:      cfg.ESURL,
			Username: cfg.ESUser,
			Password: cfg.ESPassword,
			Index:    cfg.ESIndex,
		})
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
	}

	gormRepo := repo.New(db)
	codec := tokens.NewCodec([]byte(cfg.JWTSecret), cfg.AccessTTL, cfg.RefreshTTL)

	authSvc := &service.AuthService{
		Repo:          gormRepo,
		Codec:         codec,
		Producer:      producer,
		SingleSession: cfg.SingleSession,
	}
	postSvc := &service.PostService{
		Repo:     gormRepo,
		Cache:    store,
		Producer: producer,
		Index:    index,
	}
	userSvc := &service.UserService{Repo: gormRepo}

	guard := &middleware.Guard{
		Codec:        codec,
		Repo:         gormRepo,
		Svc:          authSvc,
		AllowRefresh: cfg.AllowRefreshFallback,
	}

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(middleware.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: authSvc},
		PostHandler: &httpserver.PostHTTP{Svc: postSvc},
		UserHandler: &httpserver.UserHTTP{Svc: userSvc},
		Guard:       guard,
	})

	go func() {
		if err := e.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}
