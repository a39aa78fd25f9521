package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	api "github.com/mind-engage/peerinst/internal/api/http"
	"github.com/mind-engage/peerinst/internal/auth"
	"github.com/mind-engage/peerinst/internal/config"
	"github.com/mind-engage/peerinst/internal/db"
	"github.com/mind-engage/peerinst/internal/gradesink"
	"github.com/mind-engage/peerinst/internal/question"
	"github.com/mind-engage/peerinst/internal/workflow"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := question.NewSQLStore(dbh, cfg.DBDriver)

	// --- Stage store ---
	var stages workflow.StageStore
	switch cfg.StageStore {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping failed: %v", err)
		}
		stages = workflow.NewRedisStageStore(rdb, cfg.StageTTL)
	default:
		stages = workflow.NewMemoryStageStore()
	}

	// --- Grade sink ---
	var sink workflow.GradeSink = gradesink.Noop{}
	if cfg.GradeTokenURL != "" {
		sink = gradesink.NewAGS(gradesink.Config{
			TokenURL:     cfg.GradeTokenURL,
			ClientID:     cfg.GradeClientID,
			ClientSecret: cfg.GradeClientSecret,
			LineItemBase: cfg.GradeLineItemBase,
			Timeout:      10 * time.Second,
		})
	}

	engine := workflow.NewEngine(store, stages, sink, workflow.NewEventLogger(os.Stdout))
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, cfg.LoginPasscodeHash))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		api.MountQuestionFlow(pr, engine, store)
		api.MountAuthoring(pr, store)
	})

	log.Printf("listening on %s (db=%s, stages=%s)", cfg.HTTPAddr, cfg.DBDriver, cfg.StageStore)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
