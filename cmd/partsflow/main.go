package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	backend "github.com/redis/go-redis/v9"

	"github.com/fizzycl/partsflow/internal/api"
	"github.com/fizzycl/partsflow/internal/blob"
	"github.com/fizzycl/partsflow/internal/bus"
	"github.com/fizzycl/partsflow/internal/catalog"
	"github.com/fizzycl/partsflow/internal/engine"
	"github.com/fizzycl/partsflow/internal/lockfile"
	"github.com/fizzycl/partsflow/internal/messaging"
	"github.com/fizzycl/partsflow/internal/session"
	"github.com/fizzycl/partsflow/internal/steps"
	"github.com/fizzycl/partsflow/internal/store"
	"github.com/fizzycl/partsflow/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for engine state data
	DefaultStateDir = "/var/lib/partsflow"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "partsflow.db"
	// DefaultRedisURL is the default Redis connection string
	DefaultRedisURL = "redis://localhost:6379/0"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		slog.Error("partsflow failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("partsflow exited successfully")
}

// Config holds environment configuration
type Config struct {
	RedisURL    string
	DatabaseURL string
	StateDir    string
	APIAddr     string
	ManagerHost string
	MetaToken   string
	MediaBucket string
	VerifyToken string
	Sender      string
	TwilioSID   string
	TwilioToken string
	TwilioFrom  string
}

// Flags holds command line flag values
type Flags struct {
	stateDir    *string
	dbDSN       *string
	redisURL    *string
	apiAddr     *string
	managerHost *string
	metaToken   *string
	mediaBucket *string
	verifyToken *string
	sender      *string
	twilioSID   *string
	twilioToken *string
	twilioFrom  *string
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("PARTSFLOW_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		RedisURL:    util.GetenvDefault("REDIS_URL", DefaultRedisURL),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    util.GetenvDefault("PARTSFLOW_STATE_DIR", DefaultStateDir),
		APIAddr:     os.Getenv("API_ADDR"),
		ManagerHost: os.Getenv("WHATSAPP_MANAGER_HOST"),
		MetaToken:   os.Getenv("META_TOKEN"),
		MediaBucket: os.Getenv("MEDIA_BUCKET"),
		VerifyToken: os.Getenv("VERIFY_TOKEN"),
		Sender:      util.GetenvDefault("SENDER", "manager"),
		TwilioSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken: os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:  os.Getenv("TWILIO_FROM_NUMBER"),
	}

	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"REDIS_URL_SET", config.RedisURL != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"PARTSFLOW_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"WHATSAPP_MANAGER_HOST_SET", config.ManagerHost != "",
		"META_TOKEN_SET", config.MetaToken != "",
		"MEDIA_BUCKET_SET", config.MediaBucket != "",
		"SENDER", config.Sender)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for engine data (overrides $PARTSFLOW_STATE_DIR)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseURL, "database DSN for the tracker store (overrides $DATABASE_URL)"),
		redisURL:    flag.String("redis-url", config.RedisURL, "Redis connection string (overrides $REDIS_URL)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		managerHost: flag.String("manager-host", config.ManagerHost, "whatsapp-manager base URL (overrides $WHATSAPP_MANAGER_HOST)"),
		metaToken:   flag.String("meta-token", config.MetaToken, "provider access token (overrides $META_TOKEN)"),
		mediaBucket: flag.String("media-bucket", config.MediaBucket, "S3 bucket for attached media (overrides $MEDIA_BUCKET)"),
		verifyToken: flag.String("verify-token", config.VerifyToken, "webhook verification token (overrides $VERIFY_TOKEN)"),
		sender:      flag.String("sender", config.Sender, "message sender backend: manager or twilio (overrides $SENDER)"),
		twilioSID:   flag.String("twilio-sid", config.TwilioSID, "Twilio account SID (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken: flag.String("twilio-token", config.TwilioToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:  flag.String("twilio-from", config.TwilioFrom, "Twilio WhatsApp sender number (overrides $TWILIO_FROM_NUMBER)"),
	}

	flag.Parse()

	// Follow the state directory when the default SQLite path is in use.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"sender", *flags.sender)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		dir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.MkdirAll(*flags.stateDir, 0755)
}

// run wires the modules together and serves until the context is cancelled.
func run(ctx context.Context, flags Flags) error {
	redisOpts, err := backend.ParseURL(*flags.redisURL)
	if err != nil {
		return err
	}
	redisClient := backend.NewClient(redisOpts)
	defer redisClient.Close()

	trackerStore, err := openStore(flags)
	if err != nil {
		return err
	}
	defer trackerStore.Close()

	catalogs := catalog.NewResolver(catalog.NewRedisSourceFromClient(redisClient))
	modes := session.NewFromClient(redisClient)
	messageBus := bus.NewFromClient(redisClient)

	sender, err := buildSender(flags)
	if err != nil {
		return err
	}

	uploader, err := buildUploader(ctx, flags)
	if err != nil {
		return err
	}

	exec := steps.NewExecutor(trackerStore, catalogs, modes, uploader)
	eng := engine.New(trackerStore, exec, sender, messageBus)

	server := api.NewServer(eng, buildAPIOptions(flags)...)
	return server.Run(ctx)
}

// openStore selects the tracker store backend from the DSN.
func openStore(flags Flags) (store.TrackerStore, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithDSN(*flags.dbDSN))
}

// buildSender selects the message delivery backend.
func buildSender(flags Flags) (engine.Sender, error) {
	if *flags.sender == "twilio" {
		return messaging.NewTwilioService(
			messaging.WithTwilioAccountSID(*flags.twilioSID),
			messaging.WithTwilioAuthToken(*flags.twilioToken),
			messaging.WithTwilioFrom(*flags.twilioFrom),
		)
	}
	return messaging.NewManagerService(
		messaging.WithManagerHost(*flags.managerHost),
		messaging.WithManagerToken(*flags.metaToken),
	)
}

// buildUploader configures media storage; without a bucket attachments are
// simply skipped.
func buildUploader(ctx context.Context, flags Flags) (blob.Uploader, error) {
	if *flags.mediaBucket == "" {
		slog.Debug("No media bucket configured, attachments disabled")
		return blob.Disabled{}, nil
	}
	return blob.NewMediaUploader(ctx,
		blob.WithBucket(*flags.mediaBucket),
		blob.WithToken(*flags.metaToken),
	)
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.verifyToken != "" {
		apiOpts = append(apiOpts, api.WithVerifyToken(*flags.verifyToken))
	}
	return apiOpts
}
