package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"nextcube/internal/accesslog"
	"nextcube/internal/db"
	"nextcube/internal/server"
	"nextcube/internal/storage"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "nextcube").Logger()

	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		logger.Error().Err(err).Msg("invalid_flags")
		os.Exit(2)
	}
	// Safety: refuse to start on any configuration problem.
	if err := cfg.Validate(); err != nil {
		logger.Error().Msg(err.Error())
		os.Exit(1)
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}

	stdout := accesslog.NewSink(os.Stdout)
	access, err := accesslog.New(cfg.LogFormat, stdout, accesslog.Options{LogAuthorization: cfg.LogAuthorization})
	if err != nil {
		logger.Error().Err(err).Msg("access_log_setup_failed")
		os.Exit(1)
	}

	static, upload, closeStores, err := openStores(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("storage_setup_failed")
		os.Exit(1)
	}
	defer closeStores()

	deps := server.Deps{
		Static:    static,
		Upload:    upload,
		AccessLog: access,
		Stdout:    stdout,
		Log:       logger,
	}

	// Optional upload ledger
	if cfg.DatabaseURL != "" {
		dbConn, err := db.OpenDB(cfg.DatabaseURL)
		if err != nil {
			logger.Error().Err(err).Msg("db_connect_failed")
			os.Exit(1)
		}
		defer func() { _ = dbConn.Close() }()

		logger.Info().Msg("running_migrations")
		if err := db.RunMigrations(dbConn); err != nil {
			logger.Error().Err(err).Msg("migration_failed")
			os.Exit(1)
		}
		deps.Ledger = db.NewLedger(dbConn)
	}

	srv := server.New(cfg, deps)

	// Start the HTTP server in a background goroutine.
	// This allows us to listen for OS signals while the server runs.
	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr()).
			Bool("tls", cfg.TLSEnabled()).
			Str("metrics_addr", cfg.MetricsAddr()).
			Msg("starting")
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting_down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("shutdown_error")
			os.Exit(1)
		}
		logger.Info().Msg("shutdown_complete")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server_error")
			os.Exit(1)
		}
	}
}

// openStores returns the static and upload stores: S3 when configured,
// local directories otherwise. The upload root is created on demand; the
// static root must already exist.
func openStores(cfg server.Config) (static, upload storage.Store, closeFn func(), err error) {
	if cfg.S3.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := storage.NewMinioClient(ctx, cfg.S3)
		if err != nil {
			return nil, nil, nil, err
		}
		return storage.NewMinioStore(client, cfg.S3.Bucket, cfg.S3StaticPrefix),
			storage.NewMinioStore(client, cfg.S3.Bucket, cfg.S3UploadPrefix),
			func() {}, nil
	}

	st, err := storage.NewFSStore(cfg.StaticDir, false)
	if err != nil {
		return nil, nil, nil, err
	}
	up, err := storage.NewFSStore(cfg.UploadDir, true)
	if err != nil {
		_ = st.Close()
		return nil, nil, nil, err
	}
	return st, up, func() { _ = st.Close(); _ = up.Close() }, nil
}

// parseConfig reads flags from args. Every flag defaults to its NEXTCUBE_*
// environment variable, then to the built-in default.
func parseConfig(args []string, getenv func(string) string) (server.Config, error) {
	cfg := server.DefaultConfig()
	env := func(key, def string) string { return getenvDefault(getenv, "NEXTCUBE_"+key, def) }

	fs := flag.NewFlagSet("nextcube", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	port, err := envInt(env, "PORT", cfg.Port)
	if err != nil {
		return cfg, err
	}
	metricsPort, err := envInt(env, "METRICS_PORT", cfg.MetricsPort)
	if err != nil {
		return cfg, err
	}
	maxBody, err := envInt64(env, "MAX_BODY", cfg.MaxBodyBytes)
	if err != nil {
		return cfg, err
	}

	var logFormat string
	fs.IntVar(&cfg.Port, "port", port, "listening port")
	fs.StringVar(&cfg.TLSCert, "tls-cert", env("TLS_CERT", ""), "TLS certificate file (requires -tls-key)")
	fs.StringVar(&cfg.TLSKey, "tls-key", env("TLS_KEY", ""), "TLS private key file (requires -tls-cert)")
	fs.StringVar(&cfg.StaticDir, "static-dir", env("STATIC_DIR", cfg.StaticDir), "root directory for /static")
	fs.StringVar(&cfg.UploadDir, "upload-dir", env("UPLOAD_DIR", cfg.UploadDir), "root directory for /upload")
	fs.Int64Var(&cfg.MaxBodyBytes, "max-body", maxBody, "maximum upload/dump body size in bytes")
	fs.StringVar(&logFormat, "log-format", env("LOG_FORMAT", string(cfg.LogFormat)), "access log format: text or json")
	fs.BoolVar(&cfg.LogAuthorization, "log-auth", env("LOG_AUTH", "") == "true", "include Authorization in text access logs")
	fs.StringVar(&cfg.LogLevel, "log-level", env("LOG_LEVEL", cfg.LogLevel), "diagnostic log level")
	fs.BoolVar(&cfg.AcceptCH, "accept-ch", env("ACCEPT_CH", "") == "true", "advertise client hints with Accept-CH")
	fs.BoolVar(&cfg.H2C, "h2c", env("H2C", "") == "true", "accept cleartext HTTP/2")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", metricsPort, "Prometheus metrics port (0 disables)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", env("DATABASE_URL", ""), "Postgres URL for the upload ledger")
	fs.StringVar(&cfg.S3.Endpoint, "s3-endpoint", env("S3_ENDPOINT", ""), "S3/MinIO endpoint")
	fs.StringVar(&cfg.S3.AccessKey, "s3-access-key", env("S3_ACCESS_KEY", ""), "S3 access key")
	fs.StringVar(&cfg.S3.SecretKey, "s3-secret-key", env("S3_SECRET_KEY", ""), "S3 secret key")
	fs.StringVar(&cfg.S3.Bucket, "s3-bucket", env("S3_BUCKET", ""), "S3 bucket")
	fs.StringVar(&cfg.S3StaticPrefix, "s3-static-prefix", env("S3_STATIC_PREFIX", cfg.S3StaticPrefix), "key prefix for /static")
	fs.StringVar(&cfg.S3UploadPrefix, "s3-upload-prefix", env("S3_UPLOAD_PREFIX", cfg.S3UploadPrefix), "key prefix for /upload")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	cfg.LogFormat = accesslog.Mode(logFormat)
	return cfg, nil
}

func envInt(env func(string, string) string, key string, def int) (int, error) {
	raw := env(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("NEXTCUBE_%s: %w", key, err)
	}
	return v, nil
}

func envInt64(env func(string, string) string, key string, def int64) (int64, error) {
	raw := env(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("NEXTCUBE_%s: %w", key, err)
	}
	return v, nil
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(getenv func(string) string, key, def string) string {
	v := getenv(key)
	if v == "" {
		return def
	}
	return v
}

// Compile-time check that the ledger keeps satisfying the server's recorder.
var _ server.UploadRecorder = (*db.Ledger)(nil)
