package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ciphergram/ciphergram-server/internal/api/http/handler"
	"github.com/ciphergram/ciphergram-server/internal/api/http/middleware"
	"github.com/ciphergram/ciphergram-server/internal/api/ws"
	"github.com/ciphergram/ciphergram-server/internal/logger"
	"github.com/ciphergram/ciphergram-server/internal/metrics"
	"github.com/ciphergram/ciphergram-server/internal/model"
	"github.com/ciphergram/ciphergram-server/internal/service"
)

// Router wires the HTTP surface: public auth routes, the authenticated
// API, the live-channel upgrade and the metrics endpoint.
type Router struct {
	authService       *service.Auth
	tokenService      *service.TokenService
	userService       *service.User
	dispatch          *service.Dispatch
	attachmentService *service.Attachment
	adminService      *service.Admin
	userStore         model.UserStore
	sessionHandler    *ws.Handler
	contextManager    model.ContextManager
	metrics           *metrics.Metrics
	logger            *logger.Logger
}

// New creates a new Router instance.
func New(
	authService *service.Auth,
	tokenService *service.TokenService,
	userService *service.User,
	dispatch *service.Dispatch,
	attachmentService *service.Attachment,
	adminService *service.Admin,
	userStore model.UserStore,
	sessionHandler *ws.Handler,
	contextManager model.ContextManager,
	m *metrics.Metrics,
	logger *logger.Logger,
) *Router {
	return &Router{
		authService:       authService,
		tokenService:      tokenService,
		userService:       userService,
		dispatch:          dispatch,
		attachmentService: attachmentService,
		adminService:      adminService,
		userStore:         userStore,
		sessionHandler:    sessionHandler,
		contextManager:    contextManager,
		metrics:           m,
		logger:            logger,
	}
}

// Register builds the route tree and returns the root handler.
func (rt *Router) Register() http.Handler {
	logging := middleware.NewLogging(rt.logger)
	authenticate := middleware.NewAuthenticate(rt.tokenService, rt.userStore, rt.contextManager, rt.logger)

	authHandler := handler.NewAuth(rt.authService, rt.tokenService, rt.logger)
	userHandler := handler.NewUser(rt.userService, rt.contextManager, rt.logger)
	messageHandler := handler.NewMessage(rt.dispatch, rt.userService, rt.contextManager, rt.logger)
	fileHandler := handler.NewFile(rt.attachmentService, rt.contextManager, rt.logger)
	adminHandler := handler.NewAdmin(rt.adminService, rt.logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Route("/api", func(api chi.Router) {
		api.Group(func(public chi.Router) {
			public.Use(logging.Handle)
			authHandler.RegisterRoutes(public)
		})

		api.Group(func(private chi.Router) {
			private.Use(logging.Handle)
			private.Use(authenticate.Handle)
			userHandler.RegisterRoutes(private)
			messageHandler.RegisterRoutes(private)
			fileHandler.RegisterRoutes(private)
		})

		api.Group(func(admin chi.Router) {
			admin.Use(logging.Handle)
			admin.Use(authenticate.Handle)
			admin.Use(authenticate.RequireAdmin)
			admin.Route("/admin", adminHandler.RegisterRoutes)
		})
	})

	// The upgrade endpoint skips the logging middleware; its response
	// writer must stay hijackable.
	r.Group(func(live chi.Router) {
		live.Use(authenticate.Handle)
		live.Get("/ws", rt.sessionHandler.Handle)
	})

	r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())

	return r
}
