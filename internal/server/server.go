package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"chimu.app/backend/internal/config"
	"chimu.app/backend/internal/middleware"
	"chimu.app/backend/internal/scheduler"
	"chimu.app/backend/pkg/cache"
	"chimu.app/backend/pkg/storage"

	accessRepo "chimu.app/backend/internal/modules/access/repository"
	accessService "chimu.app/backend/internal/modules/access/service"

	agreementHttp "chimu.app/backend/internal/modules/agreement/delivery/http"
	agreementRepo "chimu.app/backend/internal/modules/agreement/repository"
	agreementService "chimu.app/backend/internal/modules/agreement/service"

	classHttp "chimu.app/backend/internal/modules/class/delivery/http"
	classRepo "chimu.app/backend/internal/modules/class/repository"
	classService "chimu.app/backend/internal/modules/class/service"

	dashboardHttp "chimu.app/backend/internal/modules/dashboard/delivery/http"
	dashboardRepo "chimu.app/backend/internal/modules/dashboard/repository"
	dashboardService "chimu.app/backend/internal/modules/dashboard/service"

	icebreakerHttp "chimu.app/backend/internal/modules/icebreaker/delivery/http"
	icebreakerRepo "chimu.app/backend/internal/modules/icebreaker/repository"
	icebreakerService "chimu.app/backend/internal/modules/icebreaker/service"

	notiHttp "chimu.app/backend/internal/modules/notification/delivery/http"
	notifRepo "chimu.app/backend/internal/modules/notification/repository"
	notifService "chimu.app/backend/internal/modules/notification/service"

	profileHttp "chimu.app/backend/internal/modules/profile/delivery/http"
	profileService "chimu.app/backend/internal/modules/profile/service"

	searchService "chimu.app/backend/internal/modules/search/service"

	surveyHttp "chimu.app/backend/internal/modules/survey/delivery/http"
	surveyRepo "chimu.app/backend/internal/modules/survey/repository"
	surveyService "chimu.app/backend/internal/modules/survey/service"

	teamHttp "chimu.app/backend/internal/modules/team/delivery/http"
	teamRepo "chimu.app/backend/internal/modules/team/repository"
	teamService "chimu.app/backend/internal/modules/team/service"

	userHttp "chimu.app/backend/internal/modules/user/delivery/http"
	userRepo "chimu.app/backend/internal/modules/user/repository"
	userService "chimu.app/backend/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the external clients the server runs on. Redis, Meilisearch and Photos may be nil.
type Deps struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Meilisearch meilisearch.ServiceManager
	Photos      storage.PhotoStorage
}

type Server struct {
	engine    *gin.Engine
	http      *http.Server
	scheduler *scheduler.Scheduler
}

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	db := deps.DB
	views := cache.New(deps.Redis)
	index := searchService.NewCatalogIndex(deps.Meilisearch)

	access := accessService.NewChecker(accessRepo.NewAccessRepository(db))

	users := userRepo.NewUserRepository(db)
	authSvc := userService.NewAuthService(users, userService.Options{
		Secret:             cfg.JWTSecret,
		TokenTTL:           cfg.JWTTTL,
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		GoogleRedirectURL:  cfg.GoogleRedirectURL,
	})
	authHandler := userHttp.NewAuthHandler(authSvc, cfg.FrontendURL, cfg.IsProduction())

	profileHandler := profileHttp.NewProfileHandler(profileService.NewProfileService(users, deps.Photos, views))

	// Notification Module
	notificationSvc := notifService.NewNotificationService(notifRepo.NewNotificationRepository(db), deps.Redis)
	notificationHandler := notiHttp.NewNotificationHandler(notificationSvc, deps.Redis, cfg.AllowedOrigins)

	classSvc := classService.NewClassService(classRepo.NewClassRepository(db), access, authSvc, views, deps.Redis, cfg.RateLimitJoin)
	classHandler := classHttp.NewClassHandler(classSvc)

	teamSvc := teamService.NewTeamService(teamRepo.NewTeamRepository(db), access, notificationSvc, views)
	teamHandler := teamHttp.NewTeamHandler(teamSvc)

	surveySvc := surveyService.NewSurveyService(surveyRepo.NewSurveyRepository(db), access, notificationSvc, views)
	surveyHandler := surveyHttp.NewSurveyHandler(surveySvc)

	icebreakers := icebreakerRepo.NewIcebreakerRepository(db)
	icebreakerSvc := icebreakerService.NewIcebreakerService(icebreakers, access, index, views)
	icebreakerHandler := icebreakerHttp.NewIcebreakerHandler(icebreakerSvc)

	agreementSvc := agreementService.NewAgreementService(agreementRepo.NewAgreementRepository(db), access, notificationSvc, views)
	agreementHandler := agreementHttp.NewAgreementHandler(agreementSvc)

	dashboardSvc := dashboardService.NewDashboardService(dashboardRepo.NewDashboardRepository(db), views)
	dashboardHandler := dashboardHttp.NewDashboardHandler(dashboardSvc)

	jobs := scheduler.New(0)
	for _, job := range []scheduler.Job{
		surveyService.NewReminderJob(surveySvc, cfg.SurveyReminderSchedule),
		surveyService.NewReleaseJob(surveySvc, cfg.SurveyReleaseSchedule),
		icebreakerService.NewCatalogSyncJob(icebreakers, index, ""),
	} {
		if err := jobs.Register(job); err != nil {
			return nil, err
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/notifications/ws", "/healthz"},
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)

	api := router.Group("/api")

	// Public routes
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/register", authHandler.Register)
		auth.GET("/google/login", authHandler.GoogleLogin)
		auth.GET("/google/callback", authHandler.GoogleCallback)
	}

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.GET("/dashboard/instructor", dashboardHandler.Instructor)
		protected.GET("/dashboard/student", dashboardHandler.Student)

		protected.GET("/profile/me", profileHandler.GetCurrentProfile)
		protected.PUT("/profile", profileHandler.UpdateProfile)

		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.GET("/notifications/ws", notificationHandler.HandleWebSocket)

		// Classes
		protected.POST("/classes", classHandler.CreateClass)
		protected.POST("/classes/join", classHandler.JoinClass)
		protected.GET("/classes/:classId", classHandler.GetClass)
		protected.PATCH("/classes/:classId/archive", classHandler.ToggleArchive)
		protected.GET("/classes/:classId/roster", classHandler.ListRoster)

		// Teams
		protected.GET("/classes/:classId/teams", teamHandler.ListTeams)
		protected.POST("/classes/:classId/teams", teamHandler.CreateTeam)
		protected.POST("/classes/:classId/my-team", teamHandler.CreateOwnTeam)
		protected.POST("/classes/:classId/teams/:teamId/join", teamHandler.JoinTeam)
		protected.DELETE("/classes/:classId/teams/:teamId", teamHandler.DeleteTeam)
		protected.GET("/teams/:teamId", teamHandler.GetTeam)
		protected.POST("/teams/:teamId/members", teamHandler.AddMember)
		protected.DELETE("/teams/:teamId/members/:userId", teamHandler.RemoveMember)
		protected.POST("/teams/:teamId/move", teamHandler.MoveMember)

		// Surveys
		protected.POST("/classes/:classId/surveys", surveyHandler.CreateSurvey)
		protected.GET("/classes/:classId/surveys", surveyHandler.ListSurveys)
		protected.POST("/surveys/:surveyId/responses", surveyHandler.SubmitResponse)

		// Icebreakers
		protected.GET("/icebreakers/search", icebreakerHandler.SearchCatalog)
		protected.POST("/classes/:classId/icebreakers", icebreakerHandler.AddQuestion)
		protected.GET("/classes/:classId/icebreakers", icebreakerHandler.ListClassQuestions)
		protected.DELETE("/classes/:classId/icebreakers/:questionId", icebreakerHandler.RemoveQuestion)
		protected.POST("/teams/:teamId/icebreakers", icebreakerHandler.SubmitResponse)

		// Team agreement
		protected.GET("/teams/:teamId/agreement", agreementHandler.Get)
		protected.PUT("/teams/:teamId/agreement", agreementHandler.Save)
		protected.POST("/teams/:teamId/agreement/:agreementId/sign", agreementHandler.Sign)
		protected.POST("/teams/:teamId/agreement/:agreementId/lock", agreementHandler.Lock)
	}

	return &Server{
		engine: router,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		scheduler: jobs,
	}, nil
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the background jobs and blocks serving HTTP until Shutdown is called.
func (s *Server) Run() error {
	s.scheduler.Start()

	// warm the search index in the background; the DB fallback covers the gap
	go func() {
		if err := s.scheduler.RunByName(context.Background(), icebreakerService.CatalogSyncJobName); err != nil {
			logrus.WithError(err).Warn("initial icebreaker catalog sync failed")
		}
	}()

	logrus.WithField("addr", s.http.Addr).Info("server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.scheduler.Stop(ctx)
	return s.http.Shutdown(ctx)
}

func setupCORS(router *gin.Engine, origins []string) {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
