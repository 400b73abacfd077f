package kafka_middleware

import (
	"context"
	"time"

	"parksphere/pkg/kafka"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_published_total",
			Help: "Kafka messages published, by topic, event type and result",
		},
		[]string{"topic", "event_type", "result"},
	)
	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_publish_duration_seconds",
			Help:    "Kafka publish latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)

func MetricsProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)

		result := "success"
		if err != nil {
			result = "failure"
		}
		MessagesPublished.WithLabelValues(msg.Topic, msg.GetEventType(), result).Inc()
		PublishDuration.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())
		return err
	}
}
