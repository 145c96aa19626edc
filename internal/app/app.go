package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SnippetRelay/internal/config"
	"github.com/router-for-me/SnippetRelay/internal/db"
	"github.com/router-for-me/SnippetRelay/internal/gateway"
	relayhttp "github.com/router-for-me/SnippetRelay/internal/http"
	"github.com/router-for-me/SnippetRelay/internal/provider"
	"github.com/router-for-me/SnippetRelay/internal/quota"
	"github.com/router-for-me/SnippetRelay/internal/store"
	"github.com/router-for-me/SnippetRelay/internal/usage"
	"github.com/router-for-me/SnippetRelay/internal/util"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	if cfg.Store.Driver != config.StoreDriverGorm {
		return fmt.Errorf("migrate: store driver %q has no managed schema", cfg.Store.Driver)
	}
	conn, err := db.Open(cfg.Store.DSN)
	if err != nil {
		return err
	}
	return db.Migrate(conn.WithContext(ctx))
}

// openStore builds the configured record store. The gorm driver migrates on open.
func openStore(ctx context.Context, cfg config.AppConfig) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverGorm:
		conn, err := db.Open(cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
			return nil, errMigrate
		}
		return store.NewGormStore(conn), nil
	case config.StoreDriverSupabase:
		return store.NewSupabaseStore(cfg.Store.SupabaseURL, cfg.Store.SupabaseServiceKey), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// newService wires evaluator, recorder and provider once for the process lifetime.
func newService(cfg config.AppConfig, s store.Store) *gateway.Service {
	logger := log.StandardLogger()
	llm := provider.NewOpenAI(cfg.Provider.APIKey, provider.WithBaseURL(cfg.Provider.BaseURL))
	return gateway.NewService(
		quota.NewEvaluator(s, quota.WithLogger(logger), quota.WithTimeout(cfg.Store.Timeout)),
		usage.NewRecorder(s, usage.WithLogger(logger), usage.WithTimeout(cfg.Store.Timeout)),
		llm,
		gateway.WithLogger(logger),
		gateway.WithDefaults(cfg.Provider.DefaultModel, cfg.Provider.DefaultTemperature, cfg.Provider.BaseMaxTokens),
		gateway.WithProviderTimeout(cfg.Provider.Timeout),
	)
}

// RunServer serves the relay API until ctx is canceled, then shuts down gracefully.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	if errValidate := cfg.Validate(); errValidate != nil {
		return fmt.Errorf("invalid config: %w", errValidate)
	}
	if !strings.EqualFold(cfg.Logging.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	engine := relayhttp.NewEngine(cfg, newService(cfg, s))

	listener, errListen := net.Listen("tcp", cfg.Addr())
	if errListen != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr(), errListen)
	}
	return serve(ctx, listener, engine, cfg)
}

func serve(ctx context.Context, listener net.Listener, handler http.Handler, cfg config.AppConfig) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.WithFields(log.Fields{
			"addr":  listener.Addr().String(),
			"mode":  cfg.Server.Mode,
			"store": cfg.Store.Driver,
			"key":   util.MaskSecret(cfg.Provider.APIKey),
		}).Infof("starting %s", cfg.Server.Name)
		if errServe := server.Serve(listener); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return errServe
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
