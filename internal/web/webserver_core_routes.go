// Package web provides the HTTP server and web interface for go-redsocial
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-while/go-redsocial/internal/auth"
	"github.com/go-while/go-redsocial/internal/config"
	"github.com/go-while/go-redsocial/internal/models"
)

// SessionCookieName is the name of the browser session cookie
const SessionCookieName = "redsocial_session"

// AccountStore is the persistence collaborator of the handlers
type AccountStore interface {
	// FindAccounts returns the accounts matching every set field of c
	FindAccounts(ctx context.Context, c models.Criteria) ([]*models.Account, error)
	// FindAccountsPage returns one page of accounts and the total account count
	FindAccountsPage(ctx context.Context, page int) ([]*models.Account, int, error)
	// InsertAccount stores a new account and returns its id
	InsertAccount(ctx context.Context, a *models.Account) (int64, error)
}

// WebServer represents the web server
type WebServer struct {
	Store     AccountStore
	Renderer  Renderer
	Router    *gin.Engine
	Config    *config.WebConfig
	Logger    *zap.Logger
	StartTime time.Time // Track server start time for uptime calculations

	hasher     *auth.Hasher
	httpServer *http.Server
}

// TemplateData represents common template data
type TemplateData struct {
	Title       string
	CurrentTime string
	AppVersion  string
	User        string // session identity, empty when anonymous
	Mensaje     string
	TipoMensaje string
}

// NewServer creates a new web server instance
func NewServer(store AccountStore, renderer Renderer, webconfig *config.WebConfig, logger *zap.Logger) (*WebServer, error) {
	if store == nil || renderer == nil || webconfig == nil {
		return nil, errors.New("web server needs a store, a renderer and a config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hasher, err := auth.NewHasher(webconfig.Secret)
	if err != nil {
		return nil, err
	}
	authKey, encKey, err := hasher.CookieKeys()
	if err != nil {
		return nil, err
	}

	router := gin.New()

	// Configure Gin to trust reverse proxy headers
	// Set trusted proxies for common reverse proxy setups (nginx, etc.)
	if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	server := &WebServer{
		Store:    store,
		Renderer: renderer,
		Router:   router,
		Config:   webconfig,
		Logger:   logger,
		hasher:   hasher,
	}

	router.Use(server.RequestIDMiddleware())
	router.Use(server.RequestLogger())
	router.Use(gin.CustomRecovery(server.recoverPanic))

	// Configure security headers based on SSL setup
	secureConfig := secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}

	// Only add SSL-specific headers if SSL is enabled on the application itself
	// (not when running behind a reverse proxy like nginx with SSL)
	if webconfig.SSL {
		secureConfig.SSLRedirect = true
		secureConfig.STSSeconds = 31536000
		secureConfig.STSIncludeSubdomains = true
	}
	router.Use(secure.New(secureConfig))

	// Add reverse proxy middleware for handling X-Forwarded headers
	router.Use(server.ReverseProxyMiddleware())

	cookieStore := cookie.NewStore(authKey, encKey)
	cookieStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   webconfig.SSL,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(SessionCookieName, cookieStore))

	server.setupRoutes()
	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *WebServer) setupRoutes() {
	s.Router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	s.Router.GET("/", s.homePage)

	// Registration and authentication
	s.Router.GET("/registrarse", s.registerPage)
	s.Router.POST("/usuario", s.registerSubmit)
	s.Router.GET("/identificarse", s.loginPage)
	s.Router.POST("/identificarse", s.loginSubmit)
	s.Router.GET("/desconectarse", s.logout)

	// Pages that need a session identity
	private := s.Router.Group("/")
	private.Use(s.SessionRequired())
	{
		private.GET("/listarUsuarios", s.usersPage)
	}

	s.Router.NoRoute(func(c *gin.Context) {
		s.renderError(c, http.StatusNotFound, "Página no encontrada", c.Request.URL.Path)
	})
}

// Start starts the web server with SSL support if configured.
// It returns http.ErrServerClosed after Shutdown.
func (s *WebServer) Start() error {
	addr := ":" + strconv.Itoa(s.Config.ListenPort)
	s.StartTime = time.Now() // Set the start time for uptime calculations
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.Config.SSL {
		if s.Config.CertFile == "" || s.Config.KeyFile == "" {
			return errors.New("SSL enabled but cert_file or key_file not specified in config")
		}
		s.Logger.Info("starting HTTPS server", zap.String("addr", addr))
		return s.httpServer.ListenAndServeTLS(s.Config.CertFile, s.Config.KeyFile)
	}
	s.Logger.Info("starting HTTP server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops a server started with Start
func (s *WebServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.Logger.Info("shutting down web server", zap.Duration("uptime", time.Since(s.StartTime)))
	return s.httpServer.Shutdown(ctx)
}

// ReverseProxyMiddleware handles X-Forwarded headers when running behind a reverse proxy
func (s *WebServer) ReverseProxyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Handle X-Forwarded-Proto to detect if the original request was HTTPS
		if proto := c.GetHeader("X-Forwarded-Proto"); strings.EqualFold(proto, "https") {
			c.Request.URL.Scheme = "https"
		}

		// Handle X-Forwarded-Host to get the original host
		if host := c.GetHeader("X-Forwarded-Host"); host != "" {
			c.Request.Host = host
		}

		c.Next()
	}
}

func (s *WebServer) recoverPanic(c *gin.Context, recovered any) {
	s.requestLogger(c).Error("panic while handling request", zap.Any("panic", recovered))
	s.renderError(c, http.StatusInternalServerError, "Error interno", "")
	c.Abort()
}
