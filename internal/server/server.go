package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"linkrewards/internal/app"
)

const (
	clientCookie = "link_client"
	clientKey    = "client"
)

// Server provides the HTTP API for the rewards board.
type Server struct {
	engine    *gin.Engine
	clients   *app.Registry
	limiter   *ipLimiter
	creator   *ipLimiter
	logger    *slog.Logger
	staticDir string
	imageDir  string
	secure    bool
}

// Options configures New.
type Options struct {
	StaticDir string
	// ImageDir holds task images served at /images; defaults to StaticDir/images.
	ImageDir string
	// AuthRate is the number of auth attempts per second allowed per IP.
	AuthRate  float64
	AuthBurst int
	// CreateRate bounds how many new browser clients one IP may start per second.
	CreateRate  float64
	CreateBurst int
	// SecureCookies marks the client cookie Secure.
	SecureCookies bool
}

// New constructs the HTTP server with routes and middleware configured.
func New(clients *app.Registry, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AuthRate <= 0 {
		opts.AuthRate = 1
	}
	if opts.AuthBurst <= 0 {
		opts.AuthBurst = 5
	}
	if opts.CreateRate <= 0 {
		opts.CreateRate = 2
	}
	if opts.CreateBurst <= 0 {
		opts.CreateBurst = 20
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz", "/api/notifications"))

	srv := &Server{
		engine:    router,
		clients:   clients,
		limiter:   newIPLimiter(opts.AuthRate, opts.AuthBurst),
		creator:   newIPLimiter(opts.CreateRate, opts.CreateBurst),
		logger:    logger,
		staticDir: opts.StaticDir,
		imageDir:  opts.ImageDir,
		secure:    opts.SecureCookies,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)

		scoped := api.Group("", s.withClient)

		authGroup := scoped.Group("/auth", s.limiter.middleware)
		{
			authGroup.POST("/signup", s.handleSignUp)
			authGroup.POST("/signin", s.handleSignIn)
			authGroup.POST("/signout", s.handleSignOut)
		}

		scoped.GET("/me", s.handleMe)
		scoped.GET("/notifications", s.handleNotifications)

		scoped.GET("/board", s.handleBoard)
		scoped.POST("/board/refresh", s.handleRefreshBoard)

		scoped.POST("/tasks/:id/open", s.handleOpenTask)
		scoped.GET("/detail", s.handleGetDetail)
		scoped.POST("/detail/verify", s.handleVerify)
		scoped.DELETE("/detail", s.handleCloseDetail)

		scoped.GET("/rewards", s.handleGetRewards)
		scoped.POST("/rewards/open", s.handleOpenRewards)
		scoped.POST("/rewards/redeem", s.handleRedeem)
		scoped.DELETE("/rewards", s.handleCloseRewards)
	}

	s.mountStatic()
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": s.clients.Len()})
}

// withClient resolves the browser's client from its cookie, creating and
// initializing one on the first request. Creation is rate limited per IP.
func (s *Server) withClient(c *gin.Context) {
	if id, err := c.Cookie(clientCookie); err == nil {
		if client, ok := s.clients.Get(id); ok {
			c.Set(clientKey, client)
			c.Next()
			return
		}
	}

	if !s.creator.allow(c.ClientIP(), time.Now()) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	}

	client := s.clients.Create(c.Request.Context())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(clientCookie, client.ID, 0, "/", "", s.secure, true)
	c.Set(clientKey, client)
	c.Next()
}

func clientFrom(c *gin.Context) *app.Client {
	return c.MustGet(clientKey).(*app.Client)
}

// parseID converts a path parameter to int64 with error handling.
func parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	} else {
		s.logger.Debug("request rejected", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
