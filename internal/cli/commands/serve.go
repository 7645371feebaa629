package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tienda-labs/tienda/internal/cli/config"
	"github.com/tienda-labs/tienda/internal/media"
	"github.com/tienda-labs/tienda/internal/metrics"
	"github.com/tienda-labs/tienda/internal/ratelimit"
	"github.com/tienda-labs/tienda/internal/ui"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
	"github.com/tienda-labs/tienda/internal/ui/middleware"
	"github.com/tienda-labs/tienda/internal/ui/notifier"
	"github.com/tienda-labs/tienda/internal/ui/router"
	"github.com/tienda-labs/tienda/internal/ui/views"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the storefront",
		Long: `Start the storefront HTTP server.

Pending migrations are applied on start unless database.auto_migrate is off.
In dev mode a session secret is generated, and with --templates-dir and
--watch template edits reload open pages.`,
		Example: `  # Production style
  TIENDA_SESSION__SECRET=... tienda serve --addr :8080

  # Local development with live template reload
  tienda serve --dev --templates-dir internal/ui/views/templates --watch`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", config.DefaultAddr, "Address to listen on")
	cmd.Flags().Bool("dev", false, "Development mode")
	cmd.Flags().String("templates-dir", "", "Serve templates from this directory instead of the embedded copy")
	cmd.Flags().Bool("watch", false, "Reload templates on change (dev mode with --templates-dir)")
	cmd.Flags().Bool("metrics", false, "Expose Prometheus metrics on /metrics")
	cmd.Flags().Bool("auto-migrate", true, "Apply pending migrations on start")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	cc, cleanup, err := NewCommandContext(cmd, cfg.Database.AutoMigrate)
	if err != nil {
		return err
	}
	defer cleanup()
	logger := cc.Logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderer, err := views.New(views.Options{Dir: cfg.Server.TemplatesDir, Logger: logger})
	if err != nil {
		return err
	}

	cookies := middleware.NewCookieStore(middleware.SessionOptions{
		Secret: cfg.Session.Secret,
		Secure: cfg.Session.Secure,
		MaxAge: int(cfg.Session.MaxAge.Seconds()),
	})

	attempts, closeAttempts, err := newAttempts(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeAttempts()

	images, uploadsDir, err := newImageStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	routes := router.Options{
		Attempts:      attempts,
		Images:        images,
		UploadsDir:    uploadsDir,
		UploadsPrefix: cfg.Media.URLPrefix,
		CORSOrigins:   cfg.Server.CORSOrigins,
		ExposeMetrics: cfg.Metrics.Enabled,
		KeyFn:         ratelimit.DefaultKeyFunc("", cfg.Server.TrustProxy),
	}
	if cfg.RateLimit.Enabled {
		routes.RateLimit = ratelimit.NewStore(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst)
	}

	deps := &common.Deps{
		Store:    cc.Store,
		Views:    renderer,
		Sessions: middleware.NewSessions(cookies, cc.Store.Users, logger),
		Notifier: notifier.New(),
		Metrics:  metrics.New(),
		Logger:   logger,
		IsDev:    cfg.Server.Dev,
	}

	server := ui.NewServer(ui.Config{
		Addr:            cfg.Server.Addr,
		Deps:            deps,
		Routes:          routes,
		Watch:           cfg.Server.Watch,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	return server.Serve(ctx)
}

// newAttempts shares failed-login counters through Redis when configured.
func newAttempts(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ratelimit.Attempts, func(), error) {
	maxAttempts, lockout := cfg.RateLimit.LoginMaxAttempts, cfg.RateLimit.LoginLockout
	if cfg.Redis.Addr == "" {
		return ratelimit.NewMemoryAttempts(maxAttempts, lockout), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	logger.Info("login attempts shared through redis", "addr", cfg.Redis.Addr)
	return ratelimit.NewRedisAttempts(rdb, cfg.Redis.Prefix, maxAttempts, lockout), func() { _ = rdb.Close() }, nil
}

// newImageStore returns the product image store and, for local storage, the
// directory to serve uploads from.
func newImageStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (media.Store, string, error) {
	if cfg.Media.Driver != "s3" {
		local, err := media.NewLocal(cfg.Media.Dir, cfg.Media.URLPrefix)
		if err != nil {
			return nil, "", err
		}
		return local, cfg.Media.Dir, nil
	}

	s3cfg := media.S3Config{
		Bucket:          cfg.Media.S3.Bucket,
		Region:          cfg.Media.S3.Region,
		Endpoint:        cfg.Media.S3.Endpoint,
		AccessKeyID:     cfg.Media.S3.AccessKeyID,
		SecretAccessKey: cfg.Media.S3.SecretAccessKey,
		KeyPrefix:       cfg.Media.S3.KeyPrefix,
		PublicURL:       cfg.Media.S3.PublicURL,
	}
	client, err := media.NewS3Client(ctx, s3cfg)
	if err != nil {
		return nil, "", err
	}
	logger.Info("product images stored in s3", "bucket", s3cfg.Bucket)
	return media.NewS3(client, s3cfg, logger), "", nil
}
