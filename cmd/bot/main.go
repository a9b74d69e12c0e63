// Command bot runs the question relay: it watches one group-chat topic for
// questions, posts delayed generated answers unless a moderator got there
// first, and serves an operator HTTP surface with health, metrics, and CSV
// exports.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/question-relay/go-question-relay/internal/auditlog"
	"github.com/question-relay/go-question-relay/internal/bot"
	"github.com/question-relay/go-question-relay/internal/config"
	httpapi "github.com/question-relay/go-question-relay/internal/http"
	"github.com/question-relay/go-question-relay/internal/llm"
	"github.com/question-relay/go-question-relay/internal/observability"
	"github.com/question-relay/go-question-relay/internal/repo"
	"github.com/question-relay/go-question-relay/internal/services"
	"github.com/question-relay/go-question-relay/internal/sysutil"
	"github.com/question-relay/go-question-relay/internal/telegram"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.InitSchema(db); err != nil {
		log.Fatal().Err(err).Msg("init schema failed")
	}
	log.Info().Str("path", cfg.DBPath).Msg("database initialized")

	tg := telegram.NewClient(telegram.Config{
		Token:     cfg.BotToken,
		SendRPS:   cfg.SendRPS,
		SendBurst: cfg.SendBurst,
	})

	// Fail fast on a bad token or an inaccessible chat.
	chat, err := tg.GetChat(ctx, cfg.AllowedChatID)
	if err != nil {
		log.Fatal().Err(err).Int64("chat_id", cfg.AllowedChatID).Msg("chat verification failed")
	}
	log.Info().Int64("chat_id", chat.ID).Str("title", chat.Title).Msg("watching chat")

	completer := llm.New(llm.Config{
		Endpoint:    cfg.LLM.Endpoint,
		IAMToken:    cfg.LLM.IAMToken,
		FolderID:    cfg.LLM.FolderID,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	systemPrompt := llm.LoadSystemPrompt(cfg.SystemPromptPath)

	scheduler := &services.ResponseScheduler{
		DB:           db,
		Completer:    completer,
		Sender:       tg,
		SystemPrompt: systemPrompt,
		Delay:        cfg.ResponseDelay,
	}
	ingest := &services.IngestService{
		DB:                  db,
		Audit:               auditlog.New(cfg.QuestionLogPath),
		Scheduler:           scheduler,
		AllowedChatID:       cfg.AllowedChatID,
		AllowedTopicID:      cfg.AllowedTopicID,
		MaxQuestionsPerUser: cfg.MaxQuestionsPerUser,
	}
	moderation := &services.ModeratorReplyService{DB: db, Admins: tg}
	feedback := &services.FeedbackService{DB: db, Audit: auditlog.New(cfg.FeedbackLogPath)}
	sweeper := &services.RetentionSweeper{
		DB:       db,
		Interval: cfg.CleanupInterval,
		Horizon:  cfg.RetentionHorizon,
	}

	go sweeper.Run(ctx)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	httpapi.RegisterRoutes(router, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("admin server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("admin server failed")
		}
	}()

	relay := &bot.Bot{
		Transport:   tg,
		Ingest:      ingest,
		Moderation:  moderation,
		Feedback:    feedback,
		PollTimeout: cfg.PollTimeout,
	}
	log.Info().
		Int64("topic_id", cfg.AllowedTopicID).
		Dur("response_delay", cfg.ResponseDelay).
		Msg("bot started")
	relay.Run(ctx)

	// Signal received: drain the admin server and in-flight answer tasks.
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin server forced to shutdown")
	}
	scheduler.Wait()
	log.Info().Msg("stopped")
}
