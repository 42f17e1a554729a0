package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/carpoolio/carpool-api/internal/config"
	"github.com/carpoolio/carpool-api/internal/database"
	"github.com/carpoolio/carpool-api/internal/handler"
	"github.com/carpoolio/carpool-api/internal/middleware"
	"github.com/carpoolio/carpool-api/internal/queue"
	"github.com/carpoolio/carpool-api/internal/repository"
	"github.com/carpoolio/carpool-api/internal/router"
	"github.com/carpoolio/carpool-api/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis is optional: a nil client disables rate limiting and caching.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and caching disabled")
	}

	// Repositories.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	families := repository.NewFamilyRepo(db)
	vehicles := repository.NewVehicleRepo(db)
	groups := repository.NewGroupRepo(db)
	slots := repository.NewScheduleSlotRepo(db)
	access := repository.NewAccessRepo(db)
	store := repository.NewAssignmentStore(db)

	// The notifier is injected; nil (no AMQP_URL) simply disables events.
	notifier := queue.NewNotifier(cfg.AMQPURL)
	var assignSvc *service.AssignmentService
	if notifier != nil {
		assignSvc = service.NewAssignmentService(store, access, notifier)
		go func() {
			if err := queue.StartAssignmentConsumer(cfg.AMQPURL); err != nil {
				log.Printf("assignment consumer stopped: %v", err)
			}
		}()
	} else {
		log.Println("AMQP_URL unset; assignment events disabled")
		assignSvc = service.NewAssignmentService(store, access, nil)
	}

	// Handlers.
	authH := handler.NewAuthHandler(cfg, users, tokens)
	familyH := handler.NewFamilyHandler(families, vehicles)
	groupH := handler.NewGroupHandler(groups, families, slots, access)
	slotH := handler.NewSlotHandler(slots, groups, vehicles, access)
	assignH := handler.NewAssignmentHandler(assignSvc, slots)

	e := echo.New()

	// Both middlewares key on the authenticated user, so the route
	// groups apply them after JWTAuth instead of a global e.Use.
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret, limiter)
	router.RegisterParent(e, familyH, groupH, assignH, slotH, cfg.JWTSecret, limiter, cache)
	router.RegisterAdmin(e, groupH, slotH, cfg.JWTSecret, limiter)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
