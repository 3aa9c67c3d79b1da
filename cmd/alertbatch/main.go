package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/netspec/alertbatch/internal/alerter"
	"github.com/netspec/alertbatch/internal/api"
	"github.com/netspec/alertbatch/internal/config"
	"github.com/netspec/alertbatch/internal/decorator"
	"github.com/netspec/alertbatch/internal/notifier"
	"github.com/netspec/alertbatch/internal/policy"
	"github.com/netspec/alertbatch/internal/recovery"
	"github.com/netspec/alertbatch/internal/version"
	"github.com/netspec/alertbatch/internal/webui"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "/config/alertbatch.yaml", "Path to alertbatch configuration")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	// Create log buffer for the status page (captures last 1000 log entries)
	logBuffer := webui.NewLogBuffer(1000)

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logLevelParsed, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logLevelParsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevelParsed)

	// Write to both stdout and the log buffer
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	logger := zerolog.New(multiWriter).With().
		Timestamp().
		Str("version", version.GetVersion()).
		Str("commit", version.GetCommit()).
		Logger()

	logger.Info().Str("build", version.GetFullVersion()).Msg("Starting alertbatch")

	configDir := filepath.Dir(*configPath)
	policiesPath := filepath.Join(configDir, config.PoliciesFile)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("config_path", *configPath).
			Msg("Failed to load configuration")
	}

	logger.Info().
		Int("routes", len(cfg.Policies.Routes)).
		Int("suspend_minutes", cfg.Settings.Schedule.SuspendMinutes).
		Str("recovery_backend", cfg.Settings.Recovery.Backend).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Recovery store
	var store recovery.Store
	switch cfg.Settings.Recovery.Backend {
	case "redis":
		rc := cfg.Settings.Recovery.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", rc.Addr).Msg("Redis not reachable yet, recovery checks will fail until it is")
		}
		cancel()

		store = recovery.NewRedisDetector(client, rc.KeyPrefix, cfg.Settings.Recovery.Window)
	default:
		tracker := recovery.NewTracker(logger, cfg.Settings.Recovery.Window)
		g.Go(func() error {
			tracker.Run(ctx, time.Hour)
			return nil
		})
		store = tracker
	}

	resolver := policy.NewResolver(&cfg.Policies, logger)

	nc := cfg.Settings.Notifier
	sender := notifier.NewNotifier(notifier.Options{
		APIURL:        nc.APIURL,
		MailURL:       nc.MailURL(),
		Format:        nc.Format,
		Timeout:       nc.Timeout,
		RatePerMinute: nc.RatePerMinute,
		Burst:         nc.Burst,
		Logger:        logger,
	})
	if nc.APIURL == "" {
		logger.Warn().Msg("Apprise API URL not set, messages will only be logged")
	}

	sc := cfg.Settings.Schedule
	subscriber := alerter.NewSubscriber(alerter.Options{
		Detector:     store,
		Resolver:     resolver,
		Decorator:    decorator.New("[" + version.Name + "]"),
		Sender:       sender,
		Interval:     sc.Interval(),
		InitialDelay: sc.InitialDelay,
		SendTimeout:  sc.SendTimeout,
		Logger:       logger,
	})

	apiServer := api.NewServer(subscriber, store, logger, cfg.Settings.API.Port)
	apiServer.SetLogBuffer(logBuffer)
	apiServer.SetInterval(sc.Interval())
	apiServer.SetVersion(version.GetVersion(), version.GetCommit(), version.GetBuildDate())
	apiServer.SetReloadFunc(func() (*config.PolicyConfig, error) {
		logger.Info().Str("path", policiesPath).Msg("Reloading policies")
		policies, err := config.LoadPolicies(policiesPath)
		if err != nil {
			return nil, err
		}
		resolver.Update(policies)
		return policies, nil
	})

	g.Go(func() error {
		subscriber.Run(ctx)
		return nil
	})

	g.Go(func() error {
		return config.WatchPolicies(ctx, policiesPath, logger, resolver.Update)
	})

	g.Go(func() error {
		return apiServer.Start(ctx)
	})

	logger.Info().
		Str("port", cfg.Settings.API.Port).
		Dur("interval", sc.Interval()).
		Msg("alertbatch running, press Ctrl+C to stop")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("alertbatch stopped with error")
		os.Exit(1)
	}

	logger.Info().Msg("alertbatch stopped")
}
