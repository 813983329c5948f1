package app

import (
	"strings"
	"time"

	"github.com/yungbote/escrow-backend/internal/platform/envutil"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

type Config struct {
	Env         string
	Port        string
	ServiceName string
	CORSOrigins []string
	PolicyFile  string

	MetricsAddr string

	RedisAddr      string
	RedisChannel   string
	IdempotencyTTL time.Duration

	AMQPURL   string
	AMQPQueue string

	// log, redis or rabbitmq.
	OutboxPublisher   string
	OutboxBatchSize   int
	OutboxMaxAttempts int
	OutboxInterval    time.Duration
	OutboxParallelism int

	DeliverySweepInterval time.Duration
	DeliverySweepBatch    int

	SettlementMaxRetries int
	LockTimeout          time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Env:         envutil.GetEnv("APP_ENV", "development", log),
		Port:        envutil.GetEnv("PORT", "8080", log),
		ServiceName: envutil.GetEnv("OTEL_SERVICE_NAME", "escrow-backend", log),
		CORSOrigins: splitList(envutil.GetEnv("CORS_ALLOWED_ORIGINS", "", log)),
		PolicyFile:  envutil.GetEnv("POLICY_FILE", "", log),

		MetricsAddr: envutil.GetEnv("METRICS_ADDR", ":9090", log),

		RedisAddr:      envutil.GetEnv("REDIS_ADDR", "", log),
		RedisChannel:   envutil.GetEnv("REDIS_CHANNEL", "escrow.events", log),
		IdempotencyTTL: envutil.Seconds("IDEMPOTENCY_TTL_SECONDS", 24*time.Hour),

		AMQPURL:   envutil.GetEnv("AMQP_URL", "", log),
		AMQPQueue: envutil.GetEnv("AMQP_QUEUE", "escrow.events", log),

		OutboxPublisher:   strings.ToLower(strings.TrimSpace(envutil.GetEnv("OUTBOX_PUBLISHER", "log", log))),
		OutboxBatchSize:   envutil.GetEnvAsInt("OUTBOX_BATCH_SIZE", 25, log),
		OutboxMaxAttempts: envutil.GetEnvAsInt("OUTBOX_MAX_ATTEMPTS", 10, log),
		OutboxInterval:    envutil.Seconds("OUTBOX_INTERVAL_SECONDS", 5*time.Second),
		OutboxParallelism: envutil.GetEnvAsInt("OUTBOX_PARALLELISM", 4, log),

		DeliverySweepInterval: envutil.Seconds("DELIVERY_SWEEP_INTERVAL_SECONDS", time.Minute),
		DeliverySweepBatch:    envutil.GetEnvAsInt("DELIVERY_SWEEP_BATCH_SIZE", 100, log),

		SettlementMaxRetries: envutil.GetEnvAsInt("SETTLEMENT_MAX_RETRIES", 3, log),
		LockTimeout:          envutil.Seconds("SETTLEMENT_LOCK_TIMEOUT_SECONDS", 5*time.Second),
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
