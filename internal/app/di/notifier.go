package di

import (
	"go.uber.org/zap"

	"account_backend/internal/config"
	"account_backend/internal/feature/auth/usecase"
	"account_backend/internal/platform/notify"
)

// NewNotifier returns the Kafka notifier when NOTIFY_SINK=kafka, otherwise
// the log notifier. The closer flushes the Kafka writer.
func NewNotifier(cfg config.Config, logger *zap.Logger) (usecase.Notifier, func()) {
	if cfg.NotifySink != config.SinkKafka {
		return notify.NewLogNotifier(logger), func() {}
	}
	w := notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	closer := func() {
		if err := w.Close(); err != nil {
			logger.Error("failed to close kafka writer", zap.Error(err))
		}
	}
	return notify.NewKafkaNotifier(w, logger), closer
}
