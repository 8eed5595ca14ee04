package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/sms-campaign/internal/archive"
	"github.com/LeventeLantos/sms-campaign/internal/cache"
	"github.com/LeventeLantos/sms-campaign/internal/client"
	"github.com/LeventeLantos/sms-campaign/internal/config"
	"github.com/LeventeLantos/sms-campaign/internal/events"
	"github.com/LeventeLantos/sms-campaign/internal/logging"
	"github.com/LeventeLantos/sms-campaign/internal/metrics"
	"github.com/LeventeLantos/sms-campaign/internal/repo"
	"github.com/LeventeLantos/sms-campaign/internal/service"
)

// app holds everything a command needs, built once from the configuration.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	runner  *service.Runner
	syncer  *service.OptOutSyncer
	sendLog repo.SendLog

	closers []func() error
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp connects the optional backends. Logs go to logOut and to the daily
// log file.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg}

	logFile, err := logging.OpenDailyFile(cfg.Paths.LogsFolder, time.Now())
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	a.closers = append(a.closers, logFile.Close)
	a.logger = logging.New(cfg.LogLevel, io.MultiWriter(logOut, logFile))
	slog.SetDefault(a.logger.Logger)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg
	log := a.logger.Logger

	var (
		sendClient service.SendClient
		lister     service.InboundLister
	)
	if cfg.SMS.DryRun {
		sendClient = client.NewDryRunClient()
	} else {
		twilio := client.NewTwilioClient(client.TwilioConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			APIKey:     cfg.Twilio.APIKey,
			APISecret:  cfg.Twilio.APISecret,
			From:       cfg.Twilio.PhoneNumber,
		})
		sendClient, lister = twilio, twilio
	}

	archiver, err := a.archiver(ctx)
	if err != nil {
		return err
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(a.metrics),
	}

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		opts = append(opts, service.WithLedger(cache.NewRedisLedger(rdb, cfg.Redis.TTL)))
		log.Info("sent ledger enabled", "addr", cfg.Redis.Address)
	}

	if cfg.Database.PostgresURL != "" {
		db, err := sql.Open("pgx", cfg.Database.PostgresURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres ping: %w", err)
		}
		pg := repo.NewPostgresSendLog(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("send log schema: %w", err)
		}
		a.sendLog = pg
		opts = append(opts, service.WithSendLog(pg))
		log.Info("send log enabled")
	}

	if cfg.Events.AMQPURL != "" {
		pub, err := events.DialAMQP(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pub.Close)
		opts = append(opts, service.WithPublisher(pub))
		log.Info("campaign events enabled", "exchange", cfg.Events.Exchange)
	}

	runCfg := service.RunnerConfig{
		OldRosterPath:   cfg.CustomersOldPath(),
		NewRosterPath:   cfg.CustomersNewPath(),
		CampaignPath:    cfg.CampaignsPath(),
		TestNumbers:     cfg.SMS.TestPhoneNumbers,
		CustomerColumns: cfg.Columns.Customer,
		CampaignColumns: cfg.Columns.Campaign,
		DryRun:          cfg.SMS.DryRun,
	}
	sender := service.NewSender(sendClient, cfg.SMS.RateLimitDelay, cfg.SMS.DryRun)
	a.runner = service.NewRunner(runCfg, sender, archiver, opts...)

	a.syncer = service.NewOptOutSyncer(lister, cfg.Columns.Customer, cfg.CustomersOldPath(), cfg.SMS.OptOutLookback, cfg.SMS.DryRun).
		WithLogger(log).
		WithMetrics(a.metrics)

	return nil
}

func (a *app) archiver(ctx context.Context) (archive.Archiver, error) {
	if a.cfg.Archive.S3Bucket == "" {
		return archive.NewLocal(a.cfg.Paths.DeleteTempFolder), nil
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if a.cfg.Archive.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(a.cfg.Archive.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}
	a.logger.Info("archiving snapshots to s3", "bucket", a.cfg.Archive.S3Bucket, "prefix", a.cfg.Archive.S3Prefix)
	return archive.NewS3(s3.NewFromConfig(awsCfg), a.cfg.Archive.S3Bucket, a.cfg.Archive.S3Prefix, a.logger.Logger), nil
}

// Close releases backends in reverse order of acquisition.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
