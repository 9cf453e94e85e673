package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"earnings/api"
	"earnings/bot"
	"earnings/config"
	"earnings/database"
	"earnings/events"
	"earnings/relay"
	"earnings/repository"
	"earnings/rules"
	"earnings/scheduler"
	"earnings/service"
)

// app holds the wired services shared by the server and the CLI jobs
type app struct {
	cfg        *config.Config
	db         *database.DB
	eventBus   *events.Bus
	table      *rules.Table
	calendar   *service.Calendar
	rates      service.RateService
	calculator service.CalculatorService
	freeze     service.FreezeService
	closure    service.ClosureService
}

// ConfigureLogging applies the configured level and formatter
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func loadRules(cfg *config.Config) (*rules.Table, error) {
	if cfg.ConversionRulesPath == "" {
		return rules.Default()
	}
	return rules.Load(cfg.ConversionRulesPath)
}

// newApp connects to the database and builds the service graph
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	table, err := loadRules(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load conversion rules: %w", err)
	}
	log.WithField("version", table.Version).Info("Conversion rules loaded")

	calendar, err := service.NewCalendar(cfg.BusinessTimezone)
	if err != nil {
		db.Close()
		return nil, err
	}

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	calculator := service.NewPayoutCalculator(table)
	rateService := service.NewRateService(uowFactory)

	return &app{
		cfg:        cfg,
		db:         db,
		eventBus:   eventBus,
		table:      table,
		calendar:   calendar,
		rates:      rateService,
		calculator: service.NewCalculatorService(uowFactory, rateService, calculator, calendar, cfg.AutosaveEnabled),
		freeze:     service.NewFreezeService(uowFactory, table, calendar),
		closure:    service.NewClosureService(uowFactory, rateService, calculator, calendar),
	}, nil
}

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.WithField("environment", cfg.Environment).Info("Starting earnings service...")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.db.Close()

	// Discord notifications are optional
	var notifier *bot.Notifier
	if cfg.DiscordToken != "" && cfg.DiscordNotifyChannelID != "" {
		notifier, err = bot.New(bot.Config{
			Token:     cfg.DiscordToken,
			ChannelID: cfg.DiscordNotifyChannelID,
		}, a.eventBus)
		if err != nil {
			return fmt.Errorf("failed to initialize Discord notifier: %w", err)
		}
		defer func() {
			if err := notifier.Close(); err != nil {
				log.WithError(err).Error("Error closing Discord notifier")
			}
		}()
	} else {
		log.Info("Discord notifications disabled")
	}

	if cfg.NATSURL != "" {
		eventRelay, err := relay.Connect(relay.Config{
			URL:           cfg.NATSURL,
			SubjectPrefix: cfg.NATSSubjectPrefix,
		}, a.eventBus)
		if err != nil {
			return fmt.Errorf("failed to initialize NATS relay: %w", err)
		}
		defer func() {
			if err := eventRelay.Close(); err != nil {
				log.WithError(err).Error("Error closing NATS relay")
			}
		}()
	}

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched = scheduler.New()
		if err := scheduler.RegisterAll(sched, a.table, cfg.BusinessTimezone, a.freeze, a.closure); err != nil {
			return fmt.Errorf("failed to register scheduled jobs: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	} else {
		log.Info("In-process scheduler disabled, relying on cron endpoints")
	}

	verifier := api.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	auth := api.NewAuthenticator(verifier, repository.NewUserRepository(a.db))
	handler := api.NewHandler(a.calculator, a.rates, a.freeze, a.closure)
	router := api.NewRouter(handler, api.RouterConfig{
		Auth:           auth,
		CronSecret:     cfg.CronSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	server := api.NewServer(cfg.Port, router)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	log.Info("Shutdown completed")
	return nil
}
