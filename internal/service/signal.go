package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/veratrail/veratrail"
)

const signalChannelPrefix = "veratrail:signal:"

// SignalService fans workflow events out over redis pub/sub so every API
// replica can feed its open websocket sessions.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

// Publish sends the event on the channel of its target. Callers treat
// failures as non-fatal.
func (s *SignalService) Publish(ctx context.Context, event veratrail.Event) error {
	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := signalChannelPrefix + event.TargetType + ":" + event.TargetID
	return s.rdb.Publish(ctx, channel, jsonstr).Err()
}

// Realtime relays events for the requested targets until ctx ends. input
// replaces the subscription set; output receives decoded events. Target ids
// arrive as "<targetType>:<targetID>".
func (s *SignalService) Realtime(ctx context.Context, input chan []string, output chan veratrail.Event) {
	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	var current []string
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case targets, ok := <-input:
			if !ok {
				return
			}
			if len(current) > 0 {
				if err := pubsub.Unsubscribe(ctx, current...); err != nil {
					slog.ErrorContext(
						ctx, "signal unsubscribe failed",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}
			current = current[:0]
			for _, t := range targets {
				current = append(current, signalChannelPrefix+t)
			}
			if len(current) > 0 {
				if err := pubsub.Subscribe(ctx, current...); err != nil {
					slog.ErrorContext(
						ctx, "signal subscribe failed",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event veratrail.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.ErrorContext(
					ctx, "signal payload decode failed",
					slog.String("error", err.Error()),
					slog.String("module", "signal"),
				)
				continue
			}
			output <- event
		}
	}
}
