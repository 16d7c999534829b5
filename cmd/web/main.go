// Web server for go-redsocial
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prof "github.com/go-while/go-cpu-mem-profiler"
	"go.uber.org/zap"

	"github.com/go-while/go-redsocial/internal/config"
	"github.com/go-while/go-redsocial/internal/database"
	"github.com/go-while/go-redsocial/internal/logging"
	"github.com/go-while/go-redsocial/internal/web"
)

var (
	// command-line flags
	envFile     string
	secret      string
	webport     int
	webssl      bool
	webcertFile string
	webkeyFile  string
	dbPath      string
	debug       bool
	pprofAddr   string
)

var appVersion = "-unset-"

const shutdownTimeout = 15 * time.Second

func main() {
	config.AppVersion = appVersion

	flag.StringVar(&envFile, "env", ".env", "dotenv file with REDSOCIAL_* settings (optional)")
	flag.StringVar(&secret, "secret", "", "server secret keying password digests and session cookies (overrides REDSOCIAL_SECRET)")
	flag.IntVar(&webport, "webport", 0, "Web server port (default: 8081)")
	flag.BoolVar(&webssl, "webssl", false, "Enable SSL")
	flag.StringVar(&webcertFile, "websslcert", "", "SSL certificate file (/path/to/fullchain.pem)")
	flag.StringVar(&webkeyFile, "websslkey", "", "SSL key file (/path/to/privkey.pem)")
	flag.StringVar(&dbPath, "db", "", "path to the SQLite database (default: "+config.DefaultMainDB+")")
	flag.BoolVar(&debug, "debug", false, "development logging")
	flag.StringVar(&pprofAddr, "pprof", "", "serve pprof on this address, e.g. 127.0.0.1:51111 (default: off)")
	flag.Parse()

	mainConfig, err := config.Load(envFile)
	if err != nil {
		log.Fatalf("[WEB]: Error loading config: %v", err)
	}

	// Override config with command-line flags if provided
	if secret != "" {
		mainConfig.Web.Secret = secret
	}
	if webport > 0 {
		mainConfig.Web.ListenPort = webport
	}
	if webssl {
		mainConfig.Web.SSL = true
	}
	if webcertFile != "" {
		mainConfig.Web.CertFile = webcertFile
	}
	if webkeyFile != "" {
		mainConfig.Web.KeyFile = webkeyFile
	}
	if dbPath != "" {
		mainConfig.Database.MainDB = dbPath
	}
	if debug {
		mainConfig.Web.Debug = true
	}
	if err := mainConfig.Validate(); err != nil {
		log.Fatalf("[WEB]: Invalid configuration: %v", err)
	}

	logger, err := logging.New(mainConfig.Web.Debug)
	if err != nil {
		log.Fatalf("[WEB]: Error creating logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting go-redsocial web server",
		zap.String("version", appVersion),
		zap.Int("port", mainConfig.Web.ListenPort),
		zap.Bool("ssl", mainConfig.Web.SSL),
		zap.String("db", mainConfig.Database.MainDB))

	if pprofAddr != "" {
		logger.Info("pprof enabled", zap.String("addr", pprofAddr))
		go prof.NewProf().PprofWeb(pprofAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.OpenDatabase(ctx, database.DefaultDBConfig(mainConfig.Database.MainDB), logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", zap.Error(err))
		}
	}()

	renderer, err := web.NewTemplateRenderer(web.EmbeddedTemplatesFS)
	if err != nil {
		logger.Fatal("failed to load templates", zap.Error(err))
	}

	server, err := web.NewServer(db, renderer, &mainConfig.Web, logger)
	if err != nil {
		logger.Fatal("failed to create web server", zap.Error(err))
	}

	// Start web server in goroutine to make it non-blocking
	webServerErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			webServerErrChan <- err
		}
	}()

	// Wait for either shutdown signal or server error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal, initiating graceful shutdown")
	case err := <-webServerErrChan:
		logger.Error("web server failed", zap.Error(err))
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("web server shutdown", zap.Error(err))
	}
	logger.Info("graceful shutdown completed")
}
