package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"anoa.com/itdesk/internal/authz"
	"anoa.com/itdesk/internal/config"
	"anoa.com/itdesk/internal/middleware"
	"anoa.com/itdesk/internal/web"
	"anoa.com/itdesk/pkg/apperror"
	"anoa.com/itdesk/pkg/mailer"
	"anoa.com/itdesk/pkg/markdown"
	"anoa.com/itdesk/pkg/ratelimiter"
	"anoa.com/itdesk/pkg/session"
	"anoa.com/itdesk/pkg/storage"

	attachmentHttp "anoa.com/itdesk/internal/modules/attachment/delivery/http"
	attachmentRepo "anoa.com/itdesk/internal/modules/attachment/repository"
	attachmentService "anoa.com/itdesk/internal/modules/attachment/service"

	authHttp "anoa.com/itdesk/internal/modules/auth/delivery/http"
	authService "anoa.com/itdesk/internal/modules/auth/service"

	notiHttp "anoa.com/itdesk/internal/modules/notification/delivery/http"
	notifService "anoa.com/itdesk/internal/modules/notification/service"

	profileHttp "anoa.com/itdesk/internal/modules/profile/delivery/http"
	profileService "anoa.com/itdesk/internal/modules/profile/service"

	reportHttp "anoa.com/itdesk/internal/modules/report/delivery/http"
	reportService "anoa.com/itdesk/internal/modules/report/service"

	searchHttp "anoa.com/itdesk/internal/modules/search/delivery/http"
	searchService "anoa.com/itdesk/internal/modules/search/service"

	ticketHttp "anoa.com/itdesk/internal/modules/ticket/delivery/http"
	ticketRepo "anoa.com/itdesk/internal/modules/ticket/repository"
	ticketService "anoa.com/itdesk/internal/modules/ticket/service"

	userHttp "anoa.com/itdesk/internal/modules/user/delivery/http"
	userRepo "anoa.com/itdesk/internal/modules/user/repository"
	userService "anoa.com/itdesk/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	engine        *gin.Engine
	db            *gorm.DB
	redisClient   *redis.Client
	notifications notifService.NotificationService
	log           *slog.Logger
}

// NewServer wires every module. redisClient may be nil, which disables
// revocable sessions, the submission cooldown and live notifications.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, fileStorage storage.FileStorage, log *slog.Logger) (*Server, error) {
	renderer := markdown.NewRenderer()
	tmpl, err := web.LoadTemplates(renderer)
	if err != nil {
		return nil, err
	}

	enforcer, err := authz.NewEnforcer()
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(redisClient, session.Options{
		Secret: cfg.SessionSecret,
		TTL:    cfg.SessionTTL,
		Secure: cfg.CookieSecure,
	})

	userRepo := userRepo.NewUserRepository(db)
	ticketRepo := ticketRepo.NewRepository(db)
	attachmentRepo := attachmentRepo.NewAttachmentRepository(db)

	var meiliClient meilisearch.ServiceManager
	if cfg.MeiliSearchHost != "" {
		meiliClient = meilisearch.New(cfg.MeiliSearchHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	}
	searchSvc := searchService.NewSearchService(meiliClient, ticketRepo, renderer, log)
	searchHandler := searchHttp.NewSearchHandler(searchSvc)

	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		BaseURL:  cfg.BaseURL,
	}, log)
	notificationSvc := notifService.NewNotificationService(mail, redisClient, log)
	notificationHandler := notiHttp.NewNotificationHandler(redisClient, splitOrigins(cfg.AllowedOrigins), log)

	authSvc := authService.NewService(userRepo, log)
	authHandler := authHttp.NewAuthHandler(authSvc, sessions)

	ticketSvc := ticketService.NewService(
		ticketRepo,
		userRepo,
		fileStorage,
		ratelimiter.New(redisClient),
		notificationSvc,
		searchSvc,
		ticketService.Options{CreateCooldown: cfg.RateLimitTicket},
		log,
	)
	ticketHandler := ticketHttp.NewTicketHandler(ticketSvc)

	userSvc := userService.NewService(userRepo, ticketRepo, log)
	userHandler := userHttp.NewUserHandler(userSvc)

	profileSvc := profileService.NewService(userRepo, fileStorage, log)
	profileHandler := profileHttp.NewProfileHandler(profileSvc)

	attachmentSvc := attachmentService.NewAttachmentService(attachmentRepo, fileStorage)
	attachmentHandler := attachmentHttp.NewAttachmentHandler(attachmentSvc)

	reportSvc := reportService.NewService(ticketRepo, userRepo, log)
	reportHandler := reportHttp.NewReportHandler(reportSvc, log)

	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadMB << 20
	router.SetHTMLTemplate(tmpl)

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		web.Error(c, fmt.Errorf("panic recovered: %v", recovered))
	}))
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz"},
	}))

	authMiddleware := middleware.NewAuthMiddleware(userRepo, sessions, enforcer, log)
	router.Use(authMiddleware.LoadIdentity())

	s := &Server{
		engine:        router,
		db:            db,
		redisClient:   redisClient,
		notifications: notificationSvc,
		log:           log,
	}

	router.NoRoute(func(c *gin.Context) {
		web.Error(c, apperror.ErrNotFound)
	})

	// Public routes
	router.GET("/", authHandler.Index)
	router.GET("/login", authHandler.LoginPage)
	router.POST("/login", authHandler.Login)
	router.Any("/user-login", authHandler.LegacyLogin)
	router.Any("/admin-login", authHandler.LegacyLogin)
	router.GET("/logout", authHandler.Logout)
	router.GET("/healthz", s.health)

	protected := router.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.GET("/user-dashboard", ticketHandler.UserDashboard)
		protected.GET("/user-profile", profileHandler.ProfilePage)
		protected.POST("/user-profile", profileHandler.UpdateProfile)
		protected.GET("/profile-image/:filename", attachmentHandler.ProfileImage)

		protected.GET("/create-ticket", authMiddleware.RequirePermission(authz.ObjTicket, authz.ActCreate), ticketHandler.CreateTicketPage)
		protected.POST("/create-ticket", authMiddleware.RequirePermission(authz.ObjTicket, authz.ActCreate), ticketHandler.CreateTicket)
		protected.GET("/ticket/:id", authMiddleware.RequirePermission(authz.ObjTicket, authz.ActRead), ticketHandler.ViewTicket)
		protected.POST("/ticket/:id/comment", authMiddleware.RequirePermission(authz.ObjTicket, authz.ActComment), ticketHandler.AddComment)

		protected.GET("/view-image/:filename", attachmentHandler.ViewImage)
		protected.GET("/download-attachment/:filename", attachmentHandler.DownloadAttachment)

		tickets := protected.Group("")
		tickets.Use(authMiddleware.RequirePermission(authz.ObjTicket, authz.ActManage))
		{
			tickets.GET("/ticket/:id/edit", ticketHandler.EditTicketPage)
			tickets.POST("/ticket/:id/edit", ticketHandler.UpdateStatus)
			tickets.POST("/ticket/:id/assign", ticketHandler.AssignTicket)
			tickets.GET("/edit-assignment/:id", ticketHandler.EditAssignmentPage)
			tickets.POST("/edit-assignment/:id", ticketHandler.EditAssignment)
		}

		users := protected.Group("")
		users.Use(authMiddleware.RequirePermission(authz.ObjUser, authz.ActManage))
		{
			users.GET("/manage-users", userHandler.ManageUsers)
			users.GET("/create-user", userHandler.CreateUserPage)
			users.POST("/create-user", userHandler.CreateUser)
			users.GET("/view-user/:id", userHandler.ViewUser)
			users.GET("/edit-user/:id", userHandler.EditUserPage)
			users.POST("/edit-user/:id", userHandler.EditUser)
			users.POST("/delete-user/:id", userHandler.DeleteUser)
		}

		reports := protected.Group("")
		reports.Use(authMiddleware.RequirePermission(authz.ObjReport, authz.ActRead))
		{
			reports.GET("/super-admin-dashboard", reportHandler.AdminDashboard)
			reports.GET("/reports-dashboard", reportHandler.ReportsDashboard)
			reports.GET("/download-excel-report", reportHandler.DownloadExcelReport)
		}
	}

	api := router.Group("")
	api.Use(authMiddleware.RequireAPIAuth())
	{
		api.GET("/notifications/ws", notificationHandler.HandleWebSocket)
		api.GET("/search/tickets", authMiddleware.RequireAPIPermission(authz.ObjSearch, authz.ActRead), searchHandler.SearchTickets)
	}

	return s, nil
}

// Handler exposes the router, for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)

	s.log.Info("waiting for queued emails")
	s.notifications.Wait()
	return err
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"database": "ok"}
	code := http.StatusOK

	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["database"] = "unavailable"
		code = http.StatusServiceUnavailable
	}
	if s.redisClient != nil {
		status["redis"] = "ok"
		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			status["redis"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, status)
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	origins := splitOrigins(allowedOrigins)
	if len(origins) == 0 {
		origins = []string{"http://localhost:8080"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
