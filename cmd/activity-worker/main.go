package main

import (
	"context"
	"errors"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"topic-tonic/internal/adapters/repo"
	"topic-tonic/internal/domain"
	"topic-tonic/internal/infra/config"
	"topic-tonic/internal/infra/db"
	applog "topic-tonic/internal/infra/log"
	"topic-tonic/internal/infra/metrics"
	"topic-tonic/internal/infra/queue"
)

// activity-worker вычитывает события активности из очереди и складывает их
// в журнал аудита в Postgres. Повторная доставка события безопасна.
func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("activity-worker: нет подключения к БД")
	}
	defer pool.Close()

	var activityQueue domain.ActivityQueue
	if cfg.AMQPURL != "" {
		rabbit, err := queue.NewRabbitActivityQueue(cfg.AMQPURL, cfg.Queues.Activity)
		if err != nil {
			logger.Fatal().Err(err).Msg("activity-worker: нет подключения к RabbitMQ")
		}
		defer rabbit.Close()
		activityQueue = rabbit
	} else {
		logger.Warn().Msg("activity-worker: AMQP_URL не задан, читаем события из Redis")
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		activityQueue = queue.NewRedisActivityQueue(redisClient, cfg.Queues.Activity)
	}

	audit := repo.NewPostgres(pool, cfg.TZ)

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":"+strconv.Itoa(cfg.MetricsPort))

	worker := auditWorker{queue: activityQueue, audit: audit, log: logger}
	logger.Info().Str("queue", cfg.Queues.Activity).Msg("activity-worker: запущен")
	if err := worker.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("activity-worker: остановлен с ошибкой")
	}
	logger.Info().Msg("activity-worker: остановка")
}

type auditWorker struct {
	queue domain.ActivityQueue
	audit domain.ActivityAuditRepo
	log   zerolog.Logger
}

func (w *auditWorker) run(ctx context.Context) error {
	for {
		event, err := w.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error().Err(err).Msg("activity-worker: ошибка чтения очереди")
			continue
		}
		if err := w.audit.RecordActivity(ctx, event); err != nil {
			w.log.Error().Err(err).Str("event", event.Event).Str("id", event.ID).Msg("activity-worker: не удалось сохранить событие")
			continue
		}
		w.log.Debug().Str("event", event.Event).Int64("user", event.UserID).Msg("activity-worker: событие сохранено")
	}
}
