package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		defaultLogger = initLogger(LoggingConfig{})
		logError("loading config failed", "path", *configPath, "error", err)
		os.Exit(1)
	}

	defaultLogger = initLogger(cfg.Logging)
	defer defaultLogger.Close()
	logInfo("starting kusuri", "listenAddr", cfg.listenAddrOrDefault(), "store", cfg.storeOrDefault())

	zone := cfg.referenceZone()

	var store TaskStore
	switch cfg.storeOrDefault() {
	case "postgres":
		pg, err := openPostgres()
		if err != nil {
			logError("opening postgres failed", "error", err)
			os.Exit(1)
		}
		store = pg
	default:
		store = newMemoryStore()
	}
	defer store.Close()

	tasks := newTaskService(store, time.Now)

	// The bot is the deliverer when a token is present; the dispatcher is
	// wired in after the scheduler below, so both can reference each other.
	var bot *TelegramBot
	var deliver Deliverer = logDeliverer{}
	if token := cfg.Telegram.tokenOrEnv(); token != "" {
		bot = newTelegramBot(token, nil, cfg.snoozeMinutesOrDefault())
		deliver = bot
	} else {
		logWarn("no telegram token configured, reminders go to the log only")
	}

	sched := newReminderScheduler(deliver, cfg.Scheduler.misfireGraceOrDefault(), cfg.Scheduler.deliverTimeoutOrDefault(), time.Now)
	defer sched.Stop()

	ollama := newOllamaClient(cfg.Ollama)
	dispatcher := newDispatcher(tasks, sched, ollama, ollama, zone, cfg.Ollama.timeoutOrDefault(), time.Now)
	if bot != nil {
		bot.dispatcher = dispatcher
	}

	// Timers do not survive a restart, so rearm from the store.
	dispatcher.Rearm(store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if bot != nil {
		go bot.Start(ctx)
	}

	api := newAPIServer(tasks, sched, zone, time.Now)
	srv := &http.Server{
		Addr:         cfg.listenAddrOrDefault(),
		Handler:      api.handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logInfo("http api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logError("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logInfo("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logWarn("http shutdown failed", "error", err)
	}
}
