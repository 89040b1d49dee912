package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"rollcall/internal/config"
	"rollcall/internal/logging"
	"rollcall/internal/queue"
	"rollcall/internal/store"
)

// Worker drains the change-event queue and writes an audit log entry per event.
func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env, cfg.LogLevel)

	if cfg.QueueBackend != "redis" || cfg.RedisAddr == "" {
		log.WithField("queue_backend", cfg.QueueBackend).
			Fatal("worker needs QUEUE_BACKEND=redis and REDIS_ADDR to receive events")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.WithField("addr", cfg.RedisAddr).Warn("redis not reachable yet, consumer will keep retrying")
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	messages, err := q.Consume(ctx)
	if err != nil {
		log.WithError(err).Fatal("queue consume init failed")
	}

	log.WithField("key", cfg.QueueKey).Info("worker started, waiting for events")
	n := run(messages, log)
	log.WithField("processed", n).Info("worker stopped")
}

// run audits messages until the channel closes and returns how many were seen.
func run(messages <-chan queue.Message, log logrus.FieldLogger) int {
	n := 0
	for msg := range messages {
		audit(log, msg)
		n++
	}
	return n
}

func audit(log logrus.FieldLogger, msg queue.Message) {
	entry := log.WithFields(logrus.Fields{
		"event_id": msg.ID,
		"event":    msg.Type,
		"at":       msg.At,
	})
	var body map[string]any
	if len(msg.Body) > 0 {
		if err := json.Unmarshal(msg.Body, &body); err != nil {
			entry.WithError(err).Warn("undecodable event body")
			return
		}
	}
	for k, v := range body {
		entry = entry.WithField(k, v)
	}
	switch msg.Type {
	case queue.StudentCreated, queue.StudentUpdated, queue.StudentDeleted,
		queue.AttendanceMarked, queue.AttendanceUpdated, queue.AttendanceDeleted:
		entry.Info("change recorded")
	default:
		entry.Warn("unknown event type")
	}
}
