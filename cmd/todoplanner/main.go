package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"todo-planner/internal/auth"
	"todo-planner/internal/bot"
	"todo-planner/internal/config"
	"todo-planner/internal/logger"
	"todo-planner/internal/repository"
	"todo-planner/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	var store repository.TaskStore
	switch cfg.TaskStore {
	case config.StoreDatastore:
		ds, err := repository.NewDatastoreTaskStore(ctx, cfg.DatastoreProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("datastore")
		}
		defer ds.Close()
		store = ds
	default:
		store = repository.NewTaskRepository(db)
	}
	log.Info().Str("store", cfg.TaskStore).Msg("task store ready")

	userRepo := repository.NewUserRepository(db)
	sessions := auth.NewSessions(userRepo)

	taskSvc := service.NewTaskService(store, sessions)
	tagSvc := service.NewTagService(taskSvc)
	reminderSvc := service.NewReminderService(store)
	scheduler := service.NewSchedulerService(cfg.Location)

	var telegramBot *bot.Bot
	sendReports := func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("report")
		}
	}

	reportEntry, err := scheduler.ScheduleReports(cfg.ReportTime, cfg.ReportInterval, sendReports)
	if err != nil {
		log.Fatal().Err(err).Msg("schedule reports")
	}

	telegramBot, err = bot.New(cfg.TelegramToken, bot.Deps{
		Sessions:  sessions,
		Users:     userRepo,
		Tasks:     taskSvc,
		Tags:      tagSvc,
		Reminders: reminderSvc,
		Config:    &cfg,
		OnInterval: func(interval time.Duration) error {
			next, err := scheduler.ReplaceInterval(reportEntry, interval, sendReports)
			if err != nil {
				return err
			}
			reportEntry = next
			log.Info().Dur("interval", interval).Msg("report interval changed")
			return nil
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("bot")
	}

	scheduler.Start()
	defer scheduler.Stop()

	log.Info().Msg("todo planner bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot stopped with error")
	}
	log.Info().Msg("shutdown complete")
}
