package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/roadside-dispatch/internal/models"
)

// Subscriber reads change events from Kafka and hands each one to an
// apply function. Read errors back off exponentially; malformed payloads
// are logged and skipped. The apply function must be idempotent since
// redelivery and reordering are both possible.
type Subscriber struct {
	reader *kafka.Reader
	log    *slog.Logger
}

func NewSubscriber(brokers []string, topic, group string, log *slog.Logger) *Subscriber {
	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	return &Subscriber{reader: r, log: log}
}

func (s *Subscriber) Run(ctx context.Context, apply func(models.ChangeEvent)) {
	defer s.reader.Close()

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("change-stream subscriber stopping")
				return
			}
			s.log.Warn("change-stream read error", "error", err, "backoff", backoff.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		var ev models.ChangeEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			s.log.Warn("invalid change event", "error", err)
			continue
		}
		apply(ev)
	}
}
