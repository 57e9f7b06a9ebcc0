package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"admissionsbot/internal/api"
	"admissionsbot/internal/bot"
	"admissionsbot/internal/config"
	"admissionsbot/internal/crm"
	"admissionsbot/internal/database"
	"admissionsbot/internal/domain"
	"admissionsbot/internal/events"
	"admissionsbot/internal/export"
	"admissionsbot/internal/logging"
	"admissionsbot/internal/messages"
	"admissionsbot/internal/metrics"
	"admissionsbot/internal/models"
	"admissionsbot/internal/phone"
	"admissionsbot/internal/reminder"
	"admissionsbot/internal/repository"
	"admissionsbot/internal/service"
	"admissionsbot/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, logger); err != nil {
		return err
	}

	// Хранилище открываем до всего остального: битый файл останавливает запуск
	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return err
	}
	defer db.Close()
	db.SetEventOffsets(cfg.Scheduler.ReminderLead, cfg.Scheduler.FollowupLag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	redisClient, coordinator := initCoordinator(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	crmGateway, err := initCRM(ctx, cfg, logger)
	if err != nil {
		return err
	}

	botAPI, err := bot.NewBotAPI(cfg.Telegram, logging.Component(logger, "telegram"))
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}
	tgService := service.NewTelegramService(botAPI)

	msgs := messages.NewBuilder(cfg)
	eventBus := events.NewEventBus(logging.Component(logger, "events"))

	crmWorker := worker.NewCRMWorker(db, crmGateway, redisClient, tgService, msgs,
		worker.PolicyFromConfig(cfg.Retry), logging.Component(logger, "crm-worker"))
	crmWorker.Subscribe(eventBus)
	go crmWorker.Start(ctx)

	machine := service.NewMachine(cfg, phone.New(cfg.Phone.CountryCode, cfg.Phone.LocalLengths), msgs)
	conversation := service.NewConversation(db, crmGateway, crmWorker, coordinator, tgService, eventBus,
		machine, msgs, cfg.Retry, logging.Component(logger, "conversation"))
	bookingService := service.NewBookingService(db, coordinator, eventBus, logging.Component(logger, "bookings"))

	engine := reminder.NewEngine(db, coordinator, tgService, msgs, cfg.Scheduler, logging.Component(logger, "reminder"))
	go engine.Start(ctx)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		go backupService.Start(ctx)
	}

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, conversation, db, logging.Component(logger, "api"))
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	var registerer prometheus.Registerer
	if cfg.Monitoring.PrometheusEnabled {
		registerer = prometheus.DefaultRegisterer
	}
	exporter := export.NewExporter(db, cfg, logging.Component(logger, "export"))

	telegramBot, err := bot.NewBot(tgService, cfg, coordinator, conversation, bookingService, db, exporter,
		bot.NewMetrics(registerer), logging.Component(logger, "bot"))
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания бота")
		return err
	}

	go func() {
		<-ctx.Done()
		telegramBot.Stop()
	}()

	logger.Info().Msg("Бот запущен...")
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logging.Component(baseLogger, "bot-main"), closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}
	return nil
}

// initCoordinator returns the Redis client (nil when not configured) and the
// locker/guard the handlers share.
func initCoordinator(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, repository.Coordinator) {
	dedupTTL := time.Duration(models.UpdateDedupTTL) * time.Second
	memory := repository.NewMemoryCoordinator(dedupTTL)
	if cfg.Redis.Address == "" {
		logger.Info().Msg("Redis not configured, using in-process locks")
		return nil, memory
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if errPing := repository.Ping(ctx, redisClient); errPing != nil {
		logger.Warn().Err(errPing).Msg("Redis unavailable")
	}

	primary := repository.NewRedisCoordinator(redisClient, cfg.Redis.LockTTL, dedupTTL)
	return redisClient, repository.NewFailoverCoordinator(primary, memory, logging.Component(logger, "coordinator"))
}

// initCRM returns nil when the integration is disabled; callers treat a nil
// gateway as "CRM off".
func initCRM(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.CRMGateway, error) {
	if !cfg.CRM.Enabled {
		logger.Warn().Msg("CRM integration disabled")
		return nil, nil
	}

	crmLogger := logging.Component(logger, "crm")
	initial := &oauth2.Token{AccessToken: cfg.CRM.AccessToken, RefreshToken: cfg.CRM.RefreshToken}
	tokens, err := crm.NewTokenSource(crm.OAuthConfig(cfg.CRM), initial, cfg.CRM.TokenCachePath, crmLogger)
	if err != nil {
		crmLogger.Error().Err(err).Msg("Ошибка инициализации токена CRM")
		return nil, err
	}
	go crm.NewTokenRefresher(tokens, 10*time.Minute, crmLogger).Run(ctx)

	return crm.NewClient(cfg.CRM.BaseURL(), cfg.CRM, tokens, cfg.App.Location(), crmLogger), nil
}
