package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/task-tracker-api/internal/cache"
	"github.com/yukikurage/task-tracker-api/internal/config"
	"github.com/yukikurage/task-tracker-api/internal/database"
	"github.com/yukikurage/task-tracker-api/internal/hub"
	"github.com/yukikurage/task-tracker-api/internal/middleware"
	"gorm.io/gorm"
)

// App owns the process-wide resources: database, optional Redis, the hub registry and
// the router built on top of them.
type App struct {
	cfg    *config.Config
	log    *logrus.Logger
	db     *gorm.DB
	redis  *redis.Client
	hub    *hub.Registry
	router *gin.Engine
}

// New connects to the configured database (and Redis when REDIS_ADDR is set), migrates
// the schema and builds the router.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	db, err := database.Connect(cfg, log)
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(db, log); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		rdb, err = cache.NewClient(pingCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		cancel()
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
		log.WithField("addr", cfg.RedisAddr).Info("Task list cache enabled")
	}

	a, err := NewWithResources(cfg, log, db, rdb)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = database.Close(db)
		return nil, err
	}
	return a, nil
}

// NewWithResources builds the app on an already migrated database. rdb may be nil.
func NewWithResources(cfg *config.Config, log *logrus.Logger, db *gorm.DB, rdb *redis.Client) (*App, error) {
	a := &App{
		cfg:   cfg,
		log:   log,
		db:    db,
		redis: rdb,
		hub:   hub.NewRegistry(log),
	}

	router, err := a.newRouter()
	if err != nil {
		return nil, err
	}
	a.router = router

	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Hub exposes the connection registry.
func (a *App) Hub() *hub.Registry {
	return a.hub
}

// Close releases Redis and the database handle.
func (a *App) Close() error {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to close Redis client")
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}

func (a *App) newRouter() (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(a.log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:  a.cfg.CORSAllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "X-Request-ID", "Location"},
		MaxAge:        12 * time.Hour,
	}))

	if err := a.setup(r); err != nil {
		return nil, err
	}
	return r, nil
}
