package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/scheduler"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	txManager := repository.NewTxManager(pool)
	userRepo := repository.NewUserRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	attachmentRepo := repository.NewAttachmentRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	ruleRepo := repository.NewAutoAssignRuleRepository(pool)
	auditRepo := repository.NewAuditLogRepository(pool)
	activityRepo := repository.NewActivityEventRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	auditService := service.NewAuditService(auditRepo, activityRepo)

	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:       ticketRepo,
		AssignmentRepo:   assignmentRepo,
		RuleRepo:         ruleRepo,
		UserRepo:         userRepo,
		NotificationRepo: notificationRepo,
		Audit:            auditService,
		Tx:               txManager,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})

	transitionService := service.NewTransitionService(service.TransitionDependencies{
		TicketRepo:       ticketRepo,
		CommentRepo:      commentRepo,
		UserRepo:         userRepo,
		NotificationRepo: notificationRepo,
		Audit:            auditService,
		Tx:               txManager,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:       ticketRepo,
		CommentRepo:      commentRepo,
		AttachmentRepo:   attachmentRepo,
		CatalogRepo:      catalogRepo,
		UserRepo:         userRepo,
		NotificationRepo: notificationRepo,
		ActivityRepo:     activityRepo,
		Audit:            auditService,
		AutoAssign:       assignmentService,
		Tx:               txManager,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})

	slaService := service.NewSLAService(service.SLADependencies{
		TicketRepo:       ticketRepo,
		UserRepo:         userRepo,
		NotificationRepo: notificationRepo,
		Audit:            auditService,
		Tx:               txManager,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})

	notificationService := service.NewNotificationService(notificationRepo)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(userRepo, tokenManager, cfg.Auth.BcryptCost)
	authMiddleware := auth.NewAuthMiddleware(tokenManager, userRepo)

	mailer := worker.NewMailer(cfg.Notification, logger)
	notificationWorker := worker.NewNotificationWorker(dispatcher, mailer, logger, cfg.Notification)
	notificationWorker.Start()
	defer notificationWorker.Stop()

	slaScheduler := scheduler.NewSLAScheduler(slaService, redis.Client, logger, cfg.SLA)
	if err := slaScheduler.Start(); err != nil {
		logger.Fatal("failed to start sla scheduler", zap.Error(err))
	}
	defer slaScheduler.Stop()

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, transitionService, assignmentService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		SLA:            handlers.NewSLAHandler(slaService, cfg.SLA),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
