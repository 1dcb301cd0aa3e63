package server

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sitewrap/backend/internal/api/http"
	"github.com/sitewrap/backend/internal/api/middleware"
	"github.com/sitewrap/backend/internal/api/ws"
	"github.com/sitewrap/backend/internal/domain/tabs"
	"github.com/sitewrap/backend/internal/infrastructure/config"
	"github.com/sitewrap/backend/internal/infrastructure/logging"
	"github.com/sitewrap/backend/internal/infrastructure/monitoring"
	"github.com/sitewrap/backend/internal/surface/fetch"
	"github.com/sitewrap/backend/internal/wrapper"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	router  *gin.Engine
	manager *tabs.Manager
	hub     *ws.Hub
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	descriptor, err := loadDescriptor(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("Initializing wrapper backend",
		zap.String("port", cfg.Server.Port),
		zap.String("name", descriptor.Name),
		zap.String("home", descriptor.HomeAddress),
	)

	metrics := monitoring.NewMetrics()

	factory := fetch.NewFactory(
		fetch.ClientConfig{
			Timeout:    time.Duration(cfg.Surface.TimeoutSeconds) * time.Second,
			MaxRetries: cfg.Surface.MaxRetries,
		},
		fetch.WithLogger(logger.Named("surface")),
		fetch.WithMetrics(metrics),
	)

	manager := tabs.NewManager(descriptor, factory,
		tabs.WithLogger(logger.Named("tabs")),
		tabs.WithMetrics(metrics),
	)

	hub := ws.NewHub(metrics)
	manager.AddSink(hub)

	// Routed navigations land back on the manager; anything destined for
	// the system browser is handed to connected clients over the stream.
	factory.SetPolicyHandler(&policyRouter{
		manager: manager,
		hub:     hub,
		logger:  logger.Named("policy"),
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := http.NewHandlers(manager, descriptor)
	wsHandler := ws.NewHandler(hub, manager, logger.Named("ws"))

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/config", handlers.GetConfig)

	// Tab management
	router.GET("/tabs", handlers.ListTabs)
	router.POST("/tabs", handlers.CreateTab)
	router.GET("/tabs/:id", handlers.GetTab)
	router.DELETE("/tabs/:id", handlers.CloseTab)
	router.POST("/tabs/:id/close-others", handlers.CloseOtherTabs)
	router.POST("/tabs/:id/close-right", handlers.CloseTabsRight)
	router.POST("/tabs/:id/activate", handlers.ActivateTab)
	router.POST("/tabs/:id/duplicate", handlers.DuplicateTab)
	router.POST("/tabs/move", handlers.MoveTab)
	router.POST("/tabs/select/next", handlers.SelectNext)
	router.POST("/tabs/select/previous", handlers.SelectPrevious)
	router.POST("/tabs/select/ordinal", handlers.SelectOrdinal)

	// Navigation
	router.POST("/tabs/:id/navigate", handlers.NavigateTab)
	router.POST("/tabs/:id/reload", handlers.ReloadTab)
	router.POST("/tabs/:id/stop", handlers.StopTab)
	router.POST("/tabs/:id/back", handlers.BackTab)
	router.POST("/tabs/:id/forward", handlers.ForwardTab)

	// WebSocket
	router.GET("/stream", wsHandler.HandleConnection)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		metrics.Registry(),
		promhttp.HandlerOpts{},
	)))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		manager: manager,
		hub:     hub,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.manager.CloseAll()
	s.logger.Sync()

	return nil
}

// Manager exposes the tab manager, mainly for tests.
func (s *Server) Manager() *tabs.Manager {
	return s.manager
}

// loadDescriptor resolves the wrapper configuration this process serves:
// either the TOML descriptor baked into the bundle, or a default built from
// environment settings.
func loadDescriptor(cfg *config.Config) (*wrapper.Config, error) {
	if cfg.Wrapper.DescriptorPath != "" {
		data, err := os.ReadFile(cfg.Wrapper.DescriptorPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read descriptor: %w", err)
		}
		descriptor, err := wrapper.DecodeTOML(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse descriptor: %w", err)
		}
		if err := descriptor.Validate(); err != nil {
			return nil, fmt.Errorf("invalid descriptor: %w", err)
		}
		return &descriptor, nil
	}

	if cfg.Wrapper.HomeAddress == "" {
		return nil, fmt.Errorf("no descriptor path and no home address configured")
	}
	descriptor := wrapper.Default(cfg.Wrapper.Name, cfg.Wrapper.HomeAddress)
	if err := descriptor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wrapper settings: %w", err)
	}
	return &descriptor, nil
}

// policyRouter delivers routed navigation decisions from surfaces back into
// the tab manager and out to UI clients.
type policyRouter struct {
	manager *tabs.Manager
	hub     *ws.Hub
	logger  *logging.Logger
}

func (r *policyRouter) OpenTab(address string, background bool) {
	if _, err := r.manager.CreateRouted(address, background); err != nil {
		r.logger.Warn("failed to open routed tab",
			zap.String("address", address),
			zap.Error(err),
		)
	}
}

func (r *policyRouter) OpenExternal(address string) {
	r.logger.Info("handing address to system browser", zap.String("address", address))
	r.hub.BroadcastExternal(address)
}
